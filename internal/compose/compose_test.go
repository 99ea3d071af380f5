package compose

import (
	"errors"
	"testing"

	"github.com/danmuck/smsctl/internal/bus"
	"github.com/danmuck/smsctl/internal/connector"
	"github.com/danmuck/smsctl/internal/registry"
	"github.com/danmuck/smsctl/internal/testutil/testlog"
)

func setup(t *testing.T) (*Composer, *registry.Registry, *bus.Subscription) {
	t.Helper()
	b := bus.New(8)
	t.Cleanup(b.Close)
	reg := registry.New()
	return New(b, reg), reg, b.Subscribe(bus.KindRun)
}

func TestBootstrapAndUpdateReachEveryConnector(t *testing.T) {
	testlog.Start(t)
	c, _, sub := setup(t)
	if n := c.Bootstrap(); n != 1 {
		t.Fatalf("bootstrap delivered to %d", n)
	}
	c.Update()

	for _, want := range []connector.CommandType{connector.TypeBootstrap, connector.TypeUpdate} {
		got := <-sub.C()
		cmd, err := connector.CommandFromEnvelope(got.Payload)
		if err != nil || !cmd.HasType(want) {
			t.Fatalf("expected %s, got %+v err=%v", want, cmd, err)
		}
		if Target(got.Payload) != "" {
			t.Fatalf("broadcast commands must not carry a target")
		}
	}
}

func TestSendPublishesTargetedCommand(t *testing.T) {
	testlog.Start(t)
	c, reg, sub := setup(t)
	_ = reg.Put(connector.NewSpec("c.one", "One").WithCapabilities(connector.CapSend | connector.CapSendLater))

	at := int64(1700000000)
	cmd, err := c.Send(SendRequest{Connector: "c.one", Recipients: []string{"+111", ""}, Text: "hi", SendAt: &at})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	got := <-sub.C()
	if Target(got.Payload) != "c.one" {
		t.Fatalf("missing target: %v", got.Payload.Keys())
	}
	decoded, err := connector.CommandFromEnvelope(got.Payload)
	if err != nil || !decoded.Equal(cmd) || decoded.SendAt() != at {
		t.Fatalf("published command mismatch: %+v err=%v", decoded, err)
	}
}

func TestSendValidation(t *testing.T) {
	testlog.Start(t)
	c, reg, _ := setup(t)
	_ = reg.Put(connector.NewSpec("c.basic", "").WithCapabilities(connector.CapSend))
	_ = reg.Put(connector.NewSpec("c.mute", "").WithCapabilities(connector.CapUpdate))
	at := int64(5)

	cases := []struct {
		name string
		req  SendRequest
		want error
	}{
		{"unknown", SendRequest{Connector: "c.none", Recipients: []string{"+1"}}, ErrUnknownConnector},
		{"blank recipients", SendRequest{Connector: "c.basic", Recipients: []string{" "}}, ErrNoRecipients},
		{"no send cap", SendRequest{Connector: "c.mute", Recipients: []string{"+1"}}, ErrUnsupported},
		{"flash", SendRequest{Connector: "c.basic", Recipients: []string{"+1"}, Flash: true}, ErrUnsupported},
		{"later", SendRequest{Connector: "c.basic", Recipients: []string{"+1"}, SendAt: &at}, ErrUnsupported},
		{"custom sender", SendRequest{Connector: "c.basic", Recipients: []string{"+1"}, CustomSender: "ACME"}, ErrUnsupported},
	}
	for _, tc := range cases {
		if _, err := c.Send(tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestSendWithoutSubscribers(t *testing.T) {
	testlog.Start(t)
	b := bus.New(1)
	defer b.Close()
	reg := registry.New()
	_ = reg.Put(connector.NewSpec("c.one", "").WithCapabilities(connector.CapSend))
	if _, err := New(b, reg).Send(SendRequest{Connector: "c.one", Recipients: []string{"+1"}}); !errors.Is(err, ErrNotDelivered) {
		t.Fatalf("expected ErrNotDelivered, got %v", err)
	}
}
