package connector

import (
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/smsctl/internal/envelope"
	"github.com/danmuck/smsctl/internal/testutil/testlog"
)

func TestSpecRoundTrip(t *testing.T) {
	testlog.Start(t)
	cases := []Spec{
		NewSpec("c.idle", ""),
		NewSpec("c.full", "Full").
			WithAuthor("someone").
			WithBalance("4.20 EUR").
			WithCapabilities(CapBootstrap | CapSend | CapSendLater).
			WithStatus(StatusWorking),
		NewSpec("c.err", "Err").WithCapabilities(CapSend).WithError("timeout"),
	}
	for _, in := range cases {
		out, err := SpecFromEnvelope(in.ToEnvelope())
		if err != nil {
			t.Fatalf("%s: decode: %v", in.ID(), err)
		}
		if out != in {
			t.Fatalf("%s: round trip mismatch: got=%+v want=%+v", in.ID(), out, in)
		}
		wire, err := envelope.Unmarshal(envelope.Marshal(in.ToEnvelope()))
		if err != nil {
			t.Fatalf("%s: unmarshal: %v", in.ID(), err)
		}
		if out, err = SpecFromEnvelope(wire); err != nil || out != in {
			t.Fatalf("%s: wire round trip: got=%+v err=%v", in.ID(), out, err)
		}
	}
}

func TestSpecDefaults(t *testing.T) {
	testlog.Start(t)
	s, err := SpecFromEnvelope(envelope.Envelope{KeySpecID: envelope.String("c.one")})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Status() != StatusIdle || s.Capabilities() != 0 || s.ErrorMessage() != "" {
		t.Fatalf("unexpected defaults: %+v", s)
	}
}

func TestSpecMalformed(t *testing.T) {
	testlog.Start(t)
	cases := map[string]envelope.Envelope{
		"missing id":    {KeySpecName: envelope.String("x")},
		"blank id":      {KeySpecID: envelope.String("   ")},
		"id as u32":     {KeySpecID: envelope.U32(1)},
		"caps as str":   {KeySpecID: envelope.String("c"), KeySpecCapabilities: envelope.String("all")},
		"status as u32": {KeySpecID: envelope.String("c"), KeySpecStatus: envelope.U32(2)},
		"error as i64":  {KeySpecID: envelope.String("c"), KeySpecError: envelope.I64(1)},
	}
	for name, env := range cases {
		if _, err := SpecFromEnvelope(env); !errors.Is(err, envelope.ErrMalformedEnvelope) {
			t.Fatalf("%s: expected ErrMalformedEnvelope, got %v", name, err)
		}
	}
}

func TestSpecStatusDecoding(t *testing.T) {
	testlog.Start(t)
	cases := map[string]Status{
		"":          StatusIdle,
		"idle":      StatusIdle,
		"IDLE":      StatusIdle,
		" Working ": StatusWorking,
		"ERROR":     StatusError,
		"error":     StatusError,
		"sending":   StatusWorking,
		"sleeping":  StatusWorking,
	}
	for raw, want := range cases {
		env := envelope.Envelope{
			KeySpecID:     envelope.String("c"),
			KeySpecStatus: envelope.String(raw),
		}
		s, err := SpecFromEnvelope(env)
		if err != nil {
			t.Fatalf("%q: decode: %v", raw, err)
		}
		if s.Status() != want {
			t.Fatalf("%q: status got=%q want=%q", raw, s.Status(), want)
		}
	}
}

func TestSpecWithStatusClearsError(t *testing.T) {
	testlog.Start(t)
	s := NewSpec("c", "C").WithError("boom").WithStatus(StatusIdle)
	if s.ErrorMessage() != "" || s.HasStatus(StatusError) {
		t.Fatalf("status change should clear error: %+v", s)
	}
}

func TestCapabilityNames(t *testing.T) {
	testlog.Start(t)
	got := (CapSend | CapBootstrap | CapCustomSender).Names()
	want := []string{"bootstrap", "send", "custom_sender"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("names: got=%v want=%v", got, want)
	}
	if !NewSpec("c", "").WithCapabilities(CapSend|CapFlash).Supports(CapFlash) {
		t.Fatalf("expected flash support")
	}
}

func TestSpecAndCommandEnvelopesMerge(t *testing.T) {
	testlog.Start(t)
	spec := NewSpec("c.one", "One").WithError("timeout")
	cmd := Send([]string{"+111"}, "hi")
	merged := spec.ToEnvelope().Merge(cmd.ToEnvelope())

	gotSpec, err := SpecFromEnvelope(merged)
	if err != nil || gotSpec != spec {
		t.Fatalf("spec from merged: got=%+v err=%v", gotSpec, err)
	}
	gotCmd, err := CommandFromEnvelope(merged)
	if err != nil || !gotCmd.Equal(cmd) {
		t.Fatalf("command from merged: got=%+v err=%v", gotCmd, err)
	}
}
