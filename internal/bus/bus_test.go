package bus

import (
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/smsctl/internal/envelope"
	"github.com/danmuck/smsctl/internal/testutil/testlog"
)

func TestBusFiltersByKind(t *testing.T) {
	testlog.Start(t)
	b := New(4)
	info := b.Subscribe(KindInfo)
	all := b.Subscribe()
	inbound := b.SubscribeExcept(KindRun)

	b.Publish(Broadcast{Kind: KindRun, Payload: envelope.New()})
	b.Publish(Broadcast{Kind: KindInfo, Payload: envelope.New()})

	if got := len(info.C()); got != 1 {
		t.Fatalf("info subscriber: got %d broadcasts", got)
	}
	if got := len(all.C()); got != 2 {
		t.Fatalf("catch-all subscriber: got %d broadcasts", got)
	}
	if got := (<-inbound.C()).Kind; got != KindInfo {
		t.Fatalf("inbound subscriber received %q", got)
	}
}

func TestBusDropsWhenSubscriberFull(t *testing.T) {
	testlog.Start(t)
	b := New(1)
	sub := b.Subscribe()
	if n := b.Publish(Broadcast{Kind: KindInfo}); n != 1 {
		t.Fatalf("first publish delivered to %d", n)
	}
	done := make(chan int, 1)
	go func() { done <- b.Publish(Broadcast{Kind: KindInfo}) }()
	select {
	case n := <-done:
		if n != 0 {
			t.Fatalf("full subscriber should miss the broadcast, delivered=%d", n)
		}
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}
	if len(sub.C()) != 1 {
		t.Fatalf("expected one buffered broadcast")
	}
}

func TestBusGivesEachSubscriberItsOwnPayload(t *testing.T) {
	testlog.Start(t)
	b := New(2)
	a, c := b.Subscribe(), b.Subscribe()
	b.Publish(Broadcast{Kind: KindInfo, Payload: envelope.Envelope{"k": envelope.String("v")}})

	first := <-a.C()
	first.Payload["k"] = envelope.String("mutated")
	second := <-c.C()
	if v, _, _ := second.Payload.String("k"); v != "v" {
		t.Fatalf("payload shared between subscribers: %q", v)
	}
}

func TestSubscriptionAndBusClose(t *testing.T) {
	testlog.Start(t)
	b := New(1)
	sub := b.Subscribe()
	sub.Close()
	sub.Close()
	if _, ok := <-sub.C(); ok {
		t.Fatalf("closed subscription should yield nothing")
	}
	if n := b.Publish(Broadcast{Kind: KindInfo}); n != 0 {
		t.Fatalf("closed subscription received a broadcast")
	}

	other := b.Subscribe()
	b.Close()
	if _, ok := <-other.C(); ok {
		t.Fatalf("bus close should close subscriptions")
	}
	late := b.Subscribe()
	if _, ok := <-late.C(); ok {
		t.Fatalf("subscribing to a closed bus should yield a closed channel")
	}
	other.Close()
}

func TestKindCodes(t *testing.T) {
	testlog.Start(t)
	for _, k := range []Kind{KindInfo, KindCaptchaRequest, KindRun} {
		if got := KindFromCode(k.Code()); got != k {
			t.Fatalf("code round trip for %q: got %q", k, got)
		}
	}
	if Kind("other").Code() != 0 || KindFromCode(99) != "" {
		t.Fatalf("unknown kinds must map to the zero code and empty kind")
	}
}

func TestNextBackoffDelay(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: 500 * time.Millisecond}
	want := []time.Duration{100, 200, 400, 500, 500}
	for i, w := range want {
		if got := NextBackoffDelay(cfg, i+1, nil); got != w*time.Millisecond {
			t.Fatalf("attempt %d: got %s want %s", i+1, got, w*time.Millisecond)
		}
	}

	cfg.Jitter = true
	rng := rand.New(rand.NewSource(1))
	for attempt := 2; attempt < 6; attempt++ {
		got := NextBackoffDelay(cfg, attempt, rng)
		if got < 50*time.Millisecond || got > 750*time.Millisecond {
			t.Fatalf("jittered delay out of range: %s", got)
		}
	}
	if NextBackoffDelay(BackoffConfig{}, 3, nil) != 0 {
		t.Fatalf("zero initial delay should stay zero")
	}
}
