// Package compose turns operator requests into Commands and publishes them
// to connectors, checking the registry for what each connector supports.
package compose

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/danmuck/smsctl/internal/bus"
	"github.com/danmuck/smsctl/internal/connector"
	"github.com/danmuck/smsctl/internal/envelope"
	"github.com/danmuck/smsctl/internal/observability"
	"github.com/danmuck/smsctl/internal/recipient"
	"github.com/danmuck/smsctl/internal/registry"
)

var (
	ErrUnknownConnector = errors.New("compose: unknown connector")
	ErrUnsupported      = errors.New("compose: connector does not support request")
	ErrNoRecipients     = errors.New("compose: no recipients")
	ErrNotDelivered     = errors.New("compose: no subscriber received the command")
)

// KeyTarget names the connector a run broadcast is meant for. Broadcasts
// without it address every connector.
const KeyTarget = "command_target"

// SendRequest is one operator send.
type SendRequest struct {
	Connector     string   `json:"connector"`
	Recipients    []string `json:"recipients"`
	Text          string   `json:"text"`
	DefaultPrefix string   `json:"default_prefix,omitempty"`
	DefaultSender string   `json:"default_sender,omitempty"`
	CustomSender  string   `json:"custom_sender,omitempty"`
	Flash         bool     `json:"flash,omitempty"`
	SendAt        *int64   `json:"send_at,omitempty"`
}

// Command builds the send command for r.
func (r SendRequest) Command() connector.Command {
	opts := []connector.SendOption{
		connector.WithDefaultPrefix(r.DefaultPrefix),
		connector.WithDefaultSender(r.DefaultSender),
		connector.WithCustomSender(r.CustomSender),
		connector.WithFlash(r.Flash),
	}
	if r.SendAt != nil {
		opts = append(opts, connector.WithSendAt(*r.SendAt))
	}
	return connector.Send(r.Recipients, r.Text, opts...)
}

type Composer struct {
	pub bus.Publisher
	reg *registry.Registry
	log zerolog.Logger
}

func New(pub bus.Publisher, reg *registry.Registry) *Composer {
	return &Composer{pub: pub, reg: reg, log: observability.ComponentLogger("compose")}
}

// Bootstrap asks every connector to set itself up. It returns the number of
// local subscribers the broadcast reached.
func (c *Composer) Bootstrap() int {
	return c.publish(connector.Bootstrap(), "")
}

// Update asks every connector to refresh its Spec.
func (c *Composer) Update() int {
	return c.publish(connector.Update(), "")
}

// Send validates req against the target connector's Spec and publishes it.
func (c *Composer) Send(req SendRequest) (connector.Command, error) {
	id := strings.TrimSpace(req.Connector)
	spec, ok := c.reg.Get(id)
	if !ok {
		return connector.Command{}, fmt.Errorf("%w: %q", ErrUnknownConnector, id)
	}
	cmd := req.Command()
	if err := checkSend(spec, cmd); err != nil {
		return connector.Command{}, err
	}
	if c.publish(cmd, id) == 0 {
		return cmd, ErrNotDelivered
	}
	return cmd, nil
}

func checkSend(spec connector.Spec, cmd connector.Command) error {
	usable := 0
	for _, r := range cmd.Recipients() {
		if !recipient.Blank(r) {
			usable++
		}
	}
	if usable == 0 {
		return ErrNoRecipients
	}
	need := []struct {
		cap  connector.Capability
		want bool
		what string
	}{
		{connector.CapSend, true, "send"},
		{connector.CapFlash, cmd.Flash(), "flash"},
		{connector.CapSendLater, cmd.Deferred(), "send_later"},
		{connector.CapCustomSender, strings.TrimSpace(cmd.CustomSender()) != "", "custom_sender"},
	}
	for _, n := range need {
		if n.want && !spec.Supports(n.cap) {
			return fmt.Errorf("%w: %s lacks %s", ErrUnsupported, spec.ID(), n.what)
		}
	}
	return nil
}

func (c *Composer) publish(cmd connector.Command, target string) int {
	env := cmd.ToEnvelope()
	if target != "" {
		env[KeyTarget] = envelope.String(target)
	}
	n := c.pub.Publish(bus.Broadcast{Kind: bus.KindRun, Payload: env})
	c.log.Info().Str("command", cmd.Type().String()).Str("target", target).
		Int("recipients", cmd.RecipientCount()).Int("delivered", n).
		Msg("compose.Composer.publish")
	return n
}

// Target returns the connector a run payload addresses, or "" for all.
func Target(env envelope.Envelope) string {
	v, _, err := env.String(KeyTarget)
	if err != nil {
		return ""
	}
	return v
}
