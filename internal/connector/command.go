package connector

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/danmuck/smsctl/internal/envelope"
)

// ErrNoCommand reports an envelope that carries no command_type key.
var ErrNoCommand = errors.New("connector: no command in envelope")

// CommandType is what the receiving connector should do.
type CommandType uint16

const (
	TypeBootstrap CommandType = 1
	TypeUpdate    CommandType = 2
	TypeSend      CommandType = 4
)

func (t CommandType) Valid() bool {
	return t == TypeBootstrap || t == TypeUpdate || t == TypeSend
}

func (t CommandType) String() string {
	switch t {
	case TypeBootstrap:
		return "bootstrap"
	case TypeUpdate:
		return "update"
	case TypeSend:
		return "send"
	default:
		return fmt.Sprintf("command_type(%d)", uint16(t))
	}
}

// SendNow is the sendAt sentinel for an immediate send.
const SendNow int64 = -1

// Command is an immutable request to a connector. Build it with Bootstrap,
// Update or Send; the type never changes after construction.
type Command struct {
	typ           CommandType
	defaultPrefix string
	defaultSender string
	recipients    []string
	text          string
	flash         bool
	sendAt        int64
	customSender  string
}

func Bootstrap() Command {
	return Command{typ: TypeBootstrap, sendAt: SendNow}
}

func Update() Command {
	return Command{typ: TypeUpdate, sendAt: SendNow}
}

// SendOption sets one optional send field.
type SendOption func(*Command)

func WithDefaultPrefix(prefix string) SendOption {
	return func(c *Command) { c.defaultPrefix = prefix }
}

func WithDefaultSender(sender string) SendOption {
	return func(c *Command) { c.defaultSender = sender }
}

func WithCustomSender(sender string) SendOption {
	return func(c *Command) { c.customSender = sender }
}

func WithFlash(flash bool) SendOption {
	return func(c *Command) { c.flash = flash }
}

// WithSendAt defers delivery to the given epoch time. SendNow clears it.
func WithSendAt(at int64) SendOption {
	return func(c *Command) { c.sendAt = at }
}

// Send builds a send command. recipients is kept as given, blanks included.
func Send(recipients []string, text string, opts ...SendOption) Command {
	c := Command{
		typ:        TypeSend,
		recipients: slices.Clone(recipients),
		text:       text,
		sendAt:     SendNow,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c Command) Type() CommandType { return c.typ }
func (c Command) DefaultPrefix() string { return c.defaultPrefix }
func (c Command) DefaultSender() string { return c.defaultSender }
func (c Command) Recipients() []string { return slices.Clone(c.recipients) }
func (c Command) Text() string { return c.text }
func (c Command) Flash() bool { return c.flash }
func (c Command) SendAt() int64 { return c.sendAt }
func (c Command) CustomSender() string { return c.customSender }
func (c Command) Deferred() bool { return c.sendAt != SendNow }
func (c Command) RecipientCount() int { return len(c.recipients) }
func (c Command) HasType(t CommandType) bool { return c.typ == t }

// Sender resolves the sender identity: a custom sender wins over the default.
func (c Command) Sender() string {
	if strings.TrimSpace(c.customSender) != "" {
		return c.customSender
	}
	return c.defaultSender
}

// Equal compares field by field; nil and empty recipient lists are equal.
func (c Command) Equal(o Command) bool {
	return c.typ == o.typ &&
		c.defaultPrefix == o.defaultPrefix &&
		c.defaultSender == o.defaultSender &&
		slices.Equal(c.recipients, o.recipients) &&
		c.text == o.text &&
		c.flash == o.flash &&
		c.sendAt == o.sendAt &&
		c.customSender == o.customSender
}

// ToEnvelope encodes the command. Send-only fields are written only for
// send commands; empty optional strings are omitted.
func (c Command) ToEnvelope() envelope.Envelope {
	env := envelope.Envelope{KeyCommandType: envelope.U16(uint16(c.typ))}
	if c.typ != TypeSend {
		return env
	}
	putOptionalString(env, KeyCommandDefPrefix, c.defaultPrefix)
	putOptionalString(env, KeyCommandDefSender, c.defaultSender)
	putOptionalString(env, KeyCommandText, c.text)
	putOptionalString(env, KeyCommandCustomSender, c.customSender)
	if c.recipients != nil {
		env[KeyCommandRecipients] = envelope.Strings(c.recipients)
	}
	env[KeyCommandFlash] = envelope.Bool(c.flash)
	env[KeyCommandTimestamp] = envelope.I64(c.sendAt)
	return env
}

// CommandFromEnvelope decodes a command. It returns ErrNoCommand when the
// envelope has no command_type and an envelope.ErrMalformedEnvelope wrap when
// a known key holds the wrong kind or the type is not a known value.
func CommandFromEnvelope(env envelope.Envelope) (Command, error) {
	raw, ok, err := env.U16(KeyCommandType)
	if err != nil {
		return Command{}, err
	}
	if !ok {
		return Command{}, ErrNoCommand
	}
	typ := CommandType(raw)
	if !typ.Valid() {
		return Command{}, fmt.Errorf("%w: unknown %s", envelope.ErrMalformedEnvelope, typ)
	}

	c := Command{typ: typ, sendAt: SendNow}
	if typ != TypeSend {
		return c, nil
	}

	d := decoder{env: env}
	c.defaultPrefix = d.string(KeyCommandDefPrefix)
	c.defaultSender = d.string(KeyCommandDefSender)
	c.text = d.string(KeyCommandText)
	c.customSender = d.string(KeyCommandCustomSender)
	if list, ok, err := env.Strings(KeyCommandRecipients); err != nil {
		d.fail(err)
	} else if ok {
		c.recipients = list
	}
	if v, _, err := env.Bool(KeyCommandFlash); err != nil {
		d.fail(err)
	} else {
		c.flash = v
	}
	if v, ok, err := env.I64(KeyCommandTimestamp); err != nil {
		d.fail(err)
	} else if ok {
		c.sendAt = v
	}
	if d.err != nil {
		return Command{}, d.err
	}
	return c, nil
}

func putOptionalString(env envelope.Envelope, key, v string) {
	if v != "" {
		env[key] = envelope.String(v)
	}
}

// decoder keeps the first typed-getter failure so field reads stay linear.
type decoder struct {
	env envelope.Envelope
	err error
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *decoder) string(key string) string {
	v, _, err := d.env.String(key)
	if err != nil {
		d.fail(err)
	}
	return v
}
