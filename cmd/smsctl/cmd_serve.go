package main

import (
	"github.com/spf13/cobra"

	"github.com/danmuck/smsctl/internal/daemon"
)

func newServeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the connector core daemon",
		Long:  "Start the connector bus, dispatcher and admin API and run until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			svc, err := daemon.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			runErr := svc.Run()
			if err := svc.Close(); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}
}
