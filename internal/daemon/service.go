// Package daemon wires the smsctl core together and runs it until shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/danmuck/smsctl/internal/auth"
	"github.com/danmuck/smsctl/internal/bus"
	"github.com/danmuck/smsctl/internal/compose"
	"github.com/danmuck/smsctl/internal/config"
	"github.com/danmuck/smsctl/internal/dispatch"
	"github.com/danmuck/smsctl/internal/notify"
	"github.com/danmuck/smsctl/internal/observability"
	"github.com/danmuck/smsctl/internal/prefs"
	"github.com/danmuck/smsctl/internal/recipient"
	"github.com/danmuck/smsctl/internal/registry"
	"github.com/danmuck/smsctl/internal/server"
	"github.com/danmuck/smsctl/internal/store"
)

type Option func(*Service)

// WithKafkaProducer uses p for the Kafka bridge instead of dialing brokers.
func WithKafkaProducer(p sarama.SyncProducer) Option {
	return func(s *Service) { s.producer = p }
}

// Service owns every long-lived part of the daemon.
type Service struct {
	cfg config.Config
	log zerolog.Logger

	runtime    *dispatch.Runtime
	bus        *bus.Bus
	transport  *bus.Server
	store      *store.Store
	prefs      *prefs.File
	alerts     *notify.LogSurface
	captcha    *notify.LogLauncher
	dispatcher *dispatch.Dispatcher
	composer   *compose.Composer
	admin      *server.Admin
	producer   sarama.SyncProducer
	kafka      *bus.KafkaBridge

	started   chan struct{}
	startOnce sync.Once
}

// New builds the service and opens its store. Nothing listens until Run.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Service, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	s := &Service{
		cfg:     cfg,
		log:     observability.ComponentLogger("daemon"),
		started: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	st, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	s.store = st
	s.runtime = dispatch.NewRuntime(registry.New())
	s.bus = bus.New(cfg.Bus.SubscriberBuffer)
	s.transport = bus.NewServer(cfg.Bus, s.bus, auth.ForToken(cfg.Bus.Token))
	s.prefs = prefs.NewFile(cfg.Prefs.Path)
	s.alerts = notify.NewLogSurface(cfg.Admin.History)
	s.captcha = notify.NewLogLauncher(cfg.Admin.History)

	var surface dispatch.AlertSurface = s.alerts
	if len(cfg.Alerts.Command) > 0 {
		surface = notify.Surfaces{s.alerts, notify.NewCommandSurface(cfg.Alerts.Command, notify.ExecRunner{})}
	}
	s.dispatcher, err = dispatch.New(s.runtime, dispatch.Options{
		Store:       s.store,
		Alerts:      surface,
		Prefs:       s.prefs,
		Launcher:    s.captcha,
		Normalize:   recipient.Normalize,
		SendFailed:  cfg.Strings.SendFailed,
		Concurrency: cfg.Dispatch.Concurrency,
	})
	if err != nil {
		_ = s.store.Close()
		return nil, err
	}
	s.composer = compose.New(s.bus, s.runtime.Registry)

	if s.producer == nil && cfg.Kafka.Enabled() {
		s.producer, err = bus.NewKafkaProducer(cfg.Kafka.Brokers)
		if err != nil {
			_ = s.store.Close()
			return nil, err
		}
	}
	if s.producer != nil {
		s.kafka = bus.NewKafkaBridge(s.producer, cfg.Kafka.Topic)
	}

	s.admin = server.Appear(cfg.Name, cfg.Admin.Listen, cfg.Admin.CorsOrigins, server.Deps{
		Registry: s.runtime.Registry,
		Composer: s.composer,
		Alerts:   s.alerts,
		Captcha:  s.captcha,
		Messages: s.store,
		Ready:    s.store.Ping,
		Peers:    s.transport.Peers,
	})
	return s, nil
}

// Run blocks until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext starts the bus transport, dispatcher, admin API and optional
// Kafka bridge, and stops them all when ctx ends or any of them fails.
func (s *Service) RunContext(ctx context.Context) error {
	if err := s.transport.Listen(); err != nil {
		s.markStarted()
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inbound := s.bus.SubscribeExcept(bus.KindRun)
	defer inbound.Close()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error().Err(err).Str("part", name).Msg("daemon.Service.RunContext part failed")
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
			cancel()
		}()
	}

	start("bus", s.transport.Serve)
	start("dispatch", func(ctx context.Context) error { return s.dispatcher.Run(ctx, inbound.C()) })
	start("admin", s.admin.Serve)
	if s.kafka != nil {
		mirror := s.bus.Subscribe(bus.KindRun)
		defer mirror.Close()
		start("kafka", func(ctx context.Context) error { return s.kafka.Run(ctx, mirror.C()) })
	}

	s.log.Info().
		Str("name", s.cfg.Name).
		Str("bus", s.transport.Addr().String()).
		Str("admin", s.cfg.Admin.Listen).
		Bool("kafka", s.kafka != nil).
		Msg("daemon.Service.RunContext started")
	s.markStarted()

	<-ctx.Done()
	wg.Wait()
	s.log.Info().Msg("daemon.Service.RunContext stopped")
	return errors.Join(errs...)
}

// Close releases the store, bus and Kafka producer.
func (s *Service) Close() error {
	var errs []error
	s.bus.Close()
	if s.kafka != nil {
		errs = append(errs, s.kafka.Close())
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}

// Started is closed once every part is listening and subscribed, or once
// RunContext has failed to listen.
func (s *Service) Started() <-chan struct{} { return s.started }

func (s *Service) markStarted() {
	s.startOnce.Do(func() { close(s.started) })
}

func (s *Service) Runtime() *dispatch.Runtime { return s.runtime }
func (s *Service) Bus() *bus.Bus { return s.bus }
func (s *Service) Composer() *compose.Composer { return s.composer }
func (s *Service) Store() *store.Store { return s.store }
func (s *Service) Alerts() *notify.LogSurface { return s.alerts }
func (s *Service) Transport() *bus.Server { return s.transport }
