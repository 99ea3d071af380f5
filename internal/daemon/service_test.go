package daemon

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/danmuck/smsctl/internal/bus"
	"github.com/danmuck/smsctl/internal/compose"
	"github.com/danmuck/smsctl/internal/config"
	"github.com/danmuck/smsctl/internal/connector"
	"github.com/danmuck/smsctl/internal/loopback"
	"github.com/danmuck/smsctl/internal/testutil/testlog"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Name = "smsctl-test"
	cfg.Bus.Listen = "127.0.0.1:0"
	cfg.Admin.Listen = "127.0.0.1:0"
	cfg.Store.Path = filepath.Join(dir, "messages.db")
	cfg.Prefs.Path = filepath.Join(dir, "prefs.toml")
	return cfg
}

// start runs svc in the background and returns a stop func that waits for it.
func start(t *testing.T, svc *Service) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunContext(ctx) }()
	select {
	case <-svc.Started():
	case err := <-done:
		t.Fatalf("service exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("service did not start")
	}
	return func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("run: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("service did not stop")
		}
		if err := svc.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig(t)
	cfg.Name = ""
	if _, err := New(context.Background(), cfg); !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestRunContextListenFailureReleasesStarted(t *testing.T) {
	testlog.Start(t)
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer taken.Close()

	cfg := testConfig(t)
	cfg.Bus.Listen = taken.Addr().String()
	svc, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer svc.Close()

	for i := 0; i < 2; i++ {
		if err := svc.RunContext(context.Background()); err == nil {
			t.Fatalf("run %d: expected listen error", i)
		}
	}
	select {
	case <-svc.Started():
	case <-time.After(time.Second):
		t.Fatalf("Started must be closed after a listen failure")
	}
}

func TestServiceHandlesInfoFromBusPeer(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig(t)
	svc, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	stop := start(t, svc)
	defer stop()

	client, err := bus.Dial(context.Background(), svc.Transport().Addr().String(), cfg.Bus)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	spec := connector.NewSpec("c.loop", "Loop").WithCapabilities(connector.CapSend)
	cmd := connector.Send([]string{"+111", " ", "+222"}, "hello")
	if err := client.Send(bus.Broadcast{
		Kind:    bus.KindInfo,
		Payload: spec.ToEnvelope().Merge(cmd.ToEnvelope()),
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	waitFor(t, "stored messages", func() bool {
		n, err := svc.Store().Count(context.Background())
		return err == nil && n == 2
	})
	got, ok := svc.Runtime().Registry.Get("c.loop")
	if !ok || got != spec {
		t.Fatalf("registry: got=%+v ok=%v", got, ok)
	}
}

func TestServiceAlertsOnFailedSend(t *testing.T) {
	testlog.Start(t)
	svc, err := New(context.Background(), testConfig(t))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	stop := start(t, svc)
	defer stop()

	spec := connector.NewSpec("c.fail", "Fail").WithError("no credit")
	cmd := connector.Send([]string{"+111"}, "hello")
	svc.Bus().Publish(bus.Broadcast{Kind: bus.KindInfo, Payload: spec.ToEnvelope().Merge(cmd.ToEnvelope())})

	waitFor(t, "alert", func() bool { return len(svc.Alerts().Recent()) == 1 })
	if a := svc.Alerts().Recent()[0]; a.Tap.To != "+111" || a.Connector != "c.fail" {
		t.Fatalf("unexpected alert: %+v", a)
	}
}

func TestServiceMirrorsCommandsToKafka(t *testing.T) {
	testlog.Start(t)
	producer := mocks.NewSyncProducer(t, nil)
	mirrored := make(chan struct{})
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		defer close(mirrored)
		if msg.Topic != bus.DefaultKafkaTopic {
			return errors.New("wrong topic " + msg.Topic)
		}
		return nil
	})

	svc, err := New(context.Background(), testConfig(t), WithKafkaProducer(producer))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	stop := start(t, svc)

	if n := svc.Composer().Bootstrap(); n < 1 {
		t.Fatalf("bootstrap reached %d subscribers", n)
	}
	select {
	case <-mirrored:
	case <-time.After(5 * time.Second):
		t.Fatalf("command was not mirrored")
	}
	stop()
}

func TestServiceRoundTripWithLoopbackConnector(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig(t)
	svc, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	stop := start(t, svc)
	defer stop()

	client, err := bus.Dial(context.Background(), svc.Transport().Addr().String(), cfg.Bus)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	spec := connector.NewSpec("c.loop", "Loop").WithCapabilities(connector.CapSend)
	go func() { _ = loopback.New(spec, "").Run(ctx, client) }()

	waitFor(t, "registration", func() bool {
		_, ok := svc.Runtime().Registry.Get("c.loop")
		return ok
	})
	waitFor(t, "peer", func() bool { return svc.Transport().Peers() == 1 })
	if _, err := svc.Composer().Send(compose.SendRequest{
		Connector:  "c.loop",
		Recipients: []string{"Bob <+49 170 123>"},
		Text:       "ping",
	}); err != nil {
		t.Fatalf("compose send: %v", err)
	}
	waitFor(t, "stored reply", func() bool {
		n, err := svc.Store().Count(context.Background())
		return err == nil && n == 1
	})
	msgs, err := svc.Store().Recent(context.Background(), 1)
	if err != nil || msgs[0].Address != "+49170123" || msgs[0].Body != "ping" {
		t.Fatalf("stored message: got=%+v err=%v", msgs, err)
	}
}
