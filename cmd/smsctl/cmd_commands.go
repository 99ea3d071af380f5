package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/danmuck/smsctl/internal/compose"
)

func newBootstrapCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Ask every connector to announce itself",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			res, err := c.Bootstrap(cmd.Context())
			if err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bootstrap delivered to %d subscriber(s)\n", res.Delivered)
			return nil
		},
	}
}

func newUpdateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Ask every connector to refresh its status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			res, err := c.Update(cmd.Context())
			if err != nil {
				return fmt.Errorf("update: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "update delivered to %d subscriber(s)\n", res.Delivered)
			return nil
		},
	}
}

func newSendCmd(g *globals) *cobra.Command {
	var (
		req    compose.SendRequest
		sendAt string
	)
	cmd := &cobra.Command{
		Use:   "send --connector <id> --to <number> --text <message>",
		Short: "Send a message through one connector",
		Long:  "Send text to one or more recipients through a registered connector.\n--to may be repeated or given as a comma separated list.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sendAt != "" {
				at, err := parseSendAt(sendAt)
				if err != nil {
					return err
				}
				req.SendAt = &at
			}
			c, err := g.client()
			if err != nil {
				return err
			}
			res, err := c.Send(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("send: %w", err)
			}
			when := "now"
			if res.Deferred {
				when = "later"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "send to %d recipient(s) via %s queued (%s)\n",
				res.Recipients, res.Connector, when)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Connector, "connector", "", "target connector id")
	f.StringSliceVar(&req.Recipients, "to", nil, "recipient number")
	f.StringVar(&req.Text, "text", "", "message text")
	f.StringVar(&req.DefaultPrefix, "prefix", "", "default country prefix")
	f.StringVar(&req.DefaultSender, "sender", "", "default sender identity")
	f.StringVar(&req.CustomSender, "custom-sender", "", "custom sender identity")
	f.BoolVar(&req.Flash, "flash", false, "send as flash sms")
	f.StringVar(&sendAt, "at", "", "deferred send time (RFC3339 or unix ms)")
	_ = cmd.MarkFlagRequired("connector")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// parseSendAt accepts RFC3339 or a unix millisecond timestamp.
func parseSendAt(v string) (int64, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UnixMilli(), nil
	}
	var ms int64
	if _, err := fmt.Sscan(v, &ms); err != nil || ms < 0 {
		return 0, fmt.Errorf("send: invalid --at %q", v)
	}
	return ms, nil
}

func newConnectorsCmd(g *globals) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "connectors [id]",
		Short: "List registered connectors",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				info, err := c.Connector(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("connectors: %w", err)
				}
				return writeJSON(cmd.OutOrStdout(), info)
			}
			list, err := c.Connectors(cmd.Context())
			if err != nil {
				return fmt.Errorf("connectors: %w", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tCAPABILITIES\tBALANCE")
			for _, info := range list {
				status := string(info.Status)
				if info.ErrorMessage != "" {
					status += ": " + info.ErrorMessage
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", info.ID, info.Name, status,
					strings.Join(info.Capabilities, ","), info.Balance)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newAlertsCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "Show recent send-failure alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			alerts, err := c.Alerts(cmd.Context())
			if err != nil {
				return fmt.Errorf("alerts: %w", err)
			}
			for _, a := range alerts {
				fmt.Fprintf(cmd.OutOrStdout(), "#%d %s\n    %s\n    %s\n", a.ID, a.Title, a.Body, a.Tap.URI())
			}
			return nil
		},
	}
}

func newMessagesCmd(g *globals) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Show recently stored sent messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client()
			if err != nil {
				return err
			}
			msgs, err := c.Messages(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("messages: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), msgs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of messages")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

