package connector

import (
	"fmt"
	"strings"

	"github.com/danmuck/smsctl/internal/envelope"
)

// Status is a connector's self-reported state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusWorking Status = "working"
	StatusError   Status = "error"
)

func (s Status) Valid() bool {
	return s == StatusIdle || s == StatusWorking || s == StatusError
}

// ParseStatus reads a reported status case-insensitively. Blank reads as
// idle; any state it does not know reads as working, never as error.
func ParseStatus(raw string) Status {
	st := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch {
	case st == "":
		return StatusIdle
	case st.Valid():
		return st
	default:
		return StatusWorking
	}
}

// Capability is a bit set of what a connector supports.
type Capability uint32

const (
	CapBootstrap Capability = 1 << iota
	CapUpdate
	CapSend
	CapFlash
	CapSendLater
	CapCustomSender
)

func (c Capability) Has(flag Capability) bool {
	return c&flag == flag
}

var capabilityNames = []struct {
	flag Capability
	name string
}{
	{CapBootstrap, "bootstrap"},
	{CapUpdate, "update"},
	{CapSend, "send"},
	{CapFlash, "flash"},
	{CapSendLater, "send_later"},
	{CapCustomSender, "custom_sender"},
}

// Names lists the set flags in declaration order.
func (c Capability) Names() []string {
	out := make([]string, 0, len(capabilityNames))
	for _, n := range capabilityNames {
		if c.Has(n.flag) {
			out = append(out, n.name)
		}
	}
	return out
}

// Spec is one connector's self-report. It is a value; copies are independent.
type Spec struct {
	id           string
	name         string
	author       string
	balance      string
	capabilities Capability
	status       Status
	errorMessage string
}

// NewSpec starts an idle Spec for the given identity.
func NewSpec(id, name string) Spec {
	return Spec{id: strings.TrimSpace(id), name: name, status: StatusIdle}
}

func (s Spec) WithCapabilities(c Capability) Spec {
	s.capabilities = c
	return s
}

func (s Spec) WithStatus(st Status) Spec {
	s.status = st
	if st != StatusError {
		s.errorMessage = ""
	}
	return s
}

// WithError marks the Spec as failed with msg.
func (s Spec) WithError(msg string) Spec {
	s.status = StatusError
	s.errorMessage = msg
	return s
}

func (s Spec) WithBalance(balance string) Spec {
	s.balance = balance
	return s
}

func (s Spec) WithAuthor(author string) Spec {
	s.author = author
	return s
}

func (s Spec) ID() string { return s.id }
func (s Spec) Name() string { return s.name }
func (s Spec) Author() string { return s.author }
func (s Spec) Balance() string { return s.balance }
func (s Spec) Capabilities() Capability { return s.capabilities }
func (s Spec) Status() Status { return s.status }
func (s Spec) ErrorMessage() string { return s.errorMessage }
func (s Spec) HasStatus(st Status) bool { return s.status == st }
func (s Spec) Supports(c Capability) bool { return s.capabilities.Has(c) }

func (s Spec) ToEnvelope() envelope.Envelope {
	env := envelope.Envelope{
		KeySpecID:           envelope.String(s.id),
		KeySpecCapabilities: envelope.U32(uint32(s.capabilities)),
		KeySpecStatus:       envelope.String(string(s.status)),
	}
	putOptionalString(env, KeySpecName, s.name)
	putOptionalString(env, KeySpecAuthor, s.author)
	putOptionalString(env, KeySpecBalance, s.balance)
	putOptionalString(env, KeySpecError, s.errorMessage)
	return env
}

// SpecFromEnvelope decodes a Spec. The connector identity is required;
// the status is read with ParseStatus.
func SpecFromEnvelope(env envelope.Envelope) (Spec, error) {
	d := decoder{env: env}
	s := Spec{
		id:           strings.TrimSpace(d.string(KeySpecID)),
		name:         d.string(KeySpecName),
		author:       d.string(KeySpecAuthor),
		balance:      d.string(KeySpecBalance),
		errorMessage: d.string(KeySpecError),
		status:       ParseStatus(d.string(KeySpecStatus)),
	}
	if caps, _, err := env.U32(KeySpecCapabilities); err != nil {
		d.fail(err)
	} else {
		s.capabilities = Capability(caps)
	}
	if d.err != nil {
		return Spec{}, d.err
	}
	if s.id == "" {
		return Spec{}, fmt.Errorf("%w: missing %s", envelope.ErrMalformedEnvelope, KeySpecID)
	}
	return s, nil
}

// SpecView is the JSON shape of a Spec for admin and CLI output.
type SpecView struct {
	ID           string   `json:"id"`
	Name         string   `json:"name,omitempty"`
	Author       string   `json:"author,omitempty"`
	Balance      string   `json:"balance,omitempty"`
	Capabilities []string `json:"capabilities"`
	Status       Status   `json:"status"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

func (s Spec) View() SpecView {
	return SpecView{
		ID:           s.id,
		Name:         s.name,
		Author:       s.author,
		Balance:      s.balance,
		Capabilities: s.capabilities.Names(),
		Status:       s.status,
		ErrorMessage: s.errorMessage,
	}
}
