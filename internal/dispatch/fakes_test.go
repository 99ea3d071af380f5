package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/danmuck/smsctl/internal/connector"
	"github.com/danmuck/smsctl/internal/envelope"
	"github.com/danmuck/smsctl/internal/notify"
)

type fakeStore struct {
	mu      sync.Mutex
	records []Record
	failOn  map[string]bool
}

func (s *fakeStore) Insert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn[rec.Address] {
		return errors.New("disk full")
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeStore) all() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

type fakeAlerts struct {
	mu     sync.Mutex
	alerts []notify.Alert
	err    error
}

func (a *fakeAlerts) Post(_ context.Context, al notify.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, al)
	return a.err
}

func (a *fakeAlerts) all() []notify.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]notify.Alert(nil), a.alerts...)
}

type fakeLauncher struct {
	mu       sync.Mutex
	payloads []envelope.Envelope
}

func (l *fakeLauncher) Launch(_ context.Context, payload envelope.Envelope) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.payloads = append(l.payloads, payload)
	return nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.payloads)
}

type fakePrefs struct {
	mu      sync.Mutex
	vibrate bool
	sound   string
	reads   int
}

func (p *fakePrefs) VibrateOnFail() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	return p.vibrate
}

func (p *fakePrefs) SoundOnFail() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sound
}

type countingRegistrar struct {
	mu    sync.Mutex
	specs []connector.Spec
	err   error
	panic bool
}

func (r *countingRegistrar) Put(spec connector.Spec) error {
	if r.panic {
		panic("registry exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs = append(r.specs, spec)
	return r.err
}

func (r *countingRegistrar) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.specs)
}

type harness struct {
	rt       *Runtime
	store    *fakeStore
	alerts   *fakeAlerts
	launcher *fakeLauncher
	prefs    *fakePrefs
	reg      *countingRegistrar
	d        *Dispatcher
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	h := &harness{
		rt:       NewRuntime(nil),
		store:    &fakeStore{failOn: map[string]bool{}},
		alerts:   &fakeAlerts{},
		launcher: &fakeLauncher{},
		prefs:    &fakePrefs{},
		reg:      &countingRegistrar{},
	}
	opts := Options{
		Store:     h.store,
		Alerts:    h.alerts,
		Prefs:     h.prefs,
		Launcher:  h.launcher,
		Registrar: h.reg,
	}
	for _, m := range mutate {
		m(&opts)
	}
	d, err := New(h.rt, opts)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	h.d = d
	return h
}

func infoEnvelope(spec connector.Spec, cmd *connector.Command) envelope.Envelope {
	env := spec.ToEnvelope()
	if cmd != nil {
		env = env.Merge(cmd.ToEnvelope())
	}
	return env
}
