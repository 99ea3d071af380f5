// Package loopback is a connector that answers every command without
// reaching a real gateway. It backs `smsctl simulate` and end-to-end tests.
package loopback

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/danmuck/smsctl/internal/bus"
	"github.com/danmuck/smsctl/internal/compose"
	"github.com/danmuck/smsctl/internal/connector"
	"github.com/danmuck/smsctl/internal/observability"
)

// Peer is the bus side a connector talks through; *bus.Client satisfies it.
type Peer interface {
	Send(b bus.Broadcast) error
	Receive() <-chan bus.Broadcast
}

type Connector struct {
	spec connector.Spec
	// fail, when set, is reported as the error for every send.
	fail string
	log  zerolog.Logger
}

func New(spec connector.Spec, fail string) *Connector {
	return &Connector{
		spec: spec.WithStatus(connector.StatusIdle),
		fail: fail,
		log:  observability.ComponentLogger("loopback").With().Str("connector", spec.ID()).Logger(),
	}
}

func (c *Connector) Spec() connector.Spec { return c.spec }

// Run announces the connector and answers commands until ctx ends or the
// peer's receive channel closes.
func (c *Connector) Run(ctx context.Context, peer Peer) error {
	if err := c.announce(peer); err != nil {
		return err
	}
	in := peer.Receive()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-in:
			if !ok {
				return nil
			}
			if err := c.Handle(peer, b); err != nil {
				return err
			}
		}
	}
}

// Handle answers one broadcast. Broadcasts that are not run commands for
// this connector are ignored.
func (c *Connector) Handle(peer Peer, b bus.Broadcast) error {
	if b.Kind != bus.KindRun {
		return nil
	}
	if target := compose.Target(b.Payload); target != "" && target != c.spec.ID() {
		return nil
	}
	cmd, err := connector.CommandFromEnvelope(b.Payload)
	if err != nil {
		c.log.Warn().Err(err).Msg("loopback.Connector.Handle ignoring undecodable command")
		return nil
	}

	switch cmd.Type() {
	case connector.TypeSend:
		spec := c.spec
		if c.fail != "" {
			spec = spec.WithError(c.fail)
		}
		c.log.Info().Int("recipients", cmd.RecipientCount()).Bool("failed", c.fail != "").
			Msg("loopback.Connector.Handle send")
		return c.reply(peer, bus.Broadcast{
			Kind:    bus.KindInfo,
			Payload: spec.ToEnvelope().Merge(cmd.ToEnvelope()),
		})
	default:
		c.log.Debug().Stringer("command", cmd.Type()).Msg("loopback.Connector.Handle announce")
		return c.announce(peer)
	}
}

func (c *Connector) announce(peer Peer) error {
	return c.reply(peer, bus.Broadcast{Kind: bus.KindInfo, Payload: c.spec.ToEnvelope()})
}

func (c *Connector) reply(peer Peer, b bus.Broadcast) error {
	if err := peer.Send(b); err != nil {
		if errors.Is(err, bus.ErrClientClosed) {
			return nil
		}
		return err
	}
	return nil
}
