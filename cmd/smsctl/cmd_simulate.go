package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/danmuck/smsctl/internal/bus"
	"github.com/danmuck/smsctl/internal/connector"
	"github.com/danmuck/smsctl/internal/loopback"
)

const allCapabilities = connector.CapBootstrap | connector.CapUpdate | connector.CapSend |
	connector.CapFlash | connector.CapSendLater | connector.CapCustomSender

func newSimulateCmd(g *globals) *cobra.Command {
	var (
		id, name, balance, fail, addr string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a loopback connector against the daemon bus",
		Long:  "Connect to the daemon bus as a connector that accepts every command.\nWith --fail every send is reported back as failed with that message.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Bus.Listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client, err := bus.Dial(ctx, addr, cfg.Bus)
			if err != nil {
				return err
			}
			defer client.Close()

			spec := connector.NewSpec(id, name).
				WithCapabilities(allCapabilities).
				WithBalance(balance).
				WithAuthor("smsctl simulate")
			err = loopback.New(spec, fail).Run(ctx, client)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&id, "id", "loopback", "connector id")
	f.StringVar(&name, "name", "Loopback", "connector display name")
	f.StringVar(&balance, "balance", "", "reported balance")
	f.StringVar(&fail, "fail", "", "report every send as failed with this message")
	f.StringVar(&addr, "bus", "", "bus address (defaults to bus.listen)")
	return cmd
}
