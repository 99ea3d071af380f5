// Package dispatch is the single ingress point for broadcasts coming back
// from connectors. It registers the reporting connector and, for replies to a
// send, either persists the sent message or raises a failure alert.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/danmuck/smsctl/internal/bus"
	"github.com/danmuck/smsctl/internal/connector"
	"github.com/danmuck/smsctl/internal/envelope"
	"github.com/danmuck/smsctl/internal/observability"
	"github.com/danmuck/smsctl/internal/recipient"
)

const (
	DefaultConcurrency = 8
	DefaultSendFailed  = "Sending failed:"
)

var ErrMissingCollaborator = errors.New("dispatch: missing collaborator")

// State is the terminal state a broadcast reached.
type State string

const (
	StateDropped           State = "dropped"
	StateRegistered        State = "registered"
	StateSendSaved         State = "send_saved"
	StateSendAlerted       State = "send_alerted"
	StateSecondaryLaunched State = "secondary_launched"
)

// Result reports how one broadcast was handled. Err is informational: it
// collects the failures that were logged along the way.
type Result struct {
	State State
	Err   error
}

type Options struct {
	Store     MessageStore
	Alerts    AlertSurface
	Prefs     Preferences
	Launcher  Launcher
	Normalize Normalizer
	// Registrar defaults to the runtime registry.
	Registrar Registrar
	// SendFailed prefixes the alert title.
	SendFailed  string
	Concurrency int
}

type Dispatcher struct {
	rt          *Runtime
	store       MessageStore
	alerts      AlertSurface
	prefs       Preferences
	launcher    Launcher
	normalize   Normalizer
	registrar   Registrar
	sendFailed  string
	concurrency int
	log         zerolog.Logger
}

func New(rt *Runtime, opts Options) (*Dispatcher, error) {
	if rt == nil {
		return nil, fmt.Errorf("%w: runtime", ErrMissingCollaborator)
	}
	switch {
	case opts.Store == nil:
		return nil, fmt.Errorf("%w: message store", ErrMissingCollaborator)
	case opts.Alerts == nil:
		return nil, fmt.Errorf("%w: alert surface", ErrMissingCollaborator)
	case opts.Launcher == nil:
		return nil, fmt.Errorf("%w: launcher", ErrMissingCollaborator)
	}
	d := &Dispatcher{
		rt:          rt,
		store:       opts.Store,
		alerts:      opts.Alerts,
		prefs:       opts.Prefs,
		launcher:    opts.Launcher,
		normalize:   opts.Normalize,
		registrar:   opts.Registrar,
		sendFailed:  strings.TrimSpace(opts.SendFailed),
		concurrency: opts.Concurrency,
		log:         observability.ComponentLogger("dispatch"),
	}
	if d.prefs == nil {
		d.prefs = noPreferences{}
	}
	if d.normalize == nil {
		d.normalize = recipient.Normalize
	}
	if d.registrar == nil {
		d.registrar = rt.Registry
	}
	if d.sendFailed == "" {
		d.sendFailed = DefaultSendFailed
	}
	if d.concurrency <= 0 {
		d.concurrency = DefaultConcurrency
	}
	return d, nil
}

// OnMessage handles one broadcast to completion. It never panics and never
// blocks beyond the collaborator calls it makes.
func (d *Dispatcher) OnMessage(ctx context.Context, kind bus.Kind, env envelope.Envelope) (res Result) {
	defer func() {
		observability.RecordBroadcast(string(kind), string(res.State))
	}()

	switch kind {
	case bus.KindInfo:
		return d.handleInfo(ctx, env)
	case bus.KindCaptchaRequest:
		return d.handleCaptcha(ctx, env)
	default:
		d.log.Debug().Str("kind", string(kind)).Err(ErrUnrecognizedBroadcast).
			Msg("dispatch.Dispatcher.OnMessage ignoring broadcast")
		return Result{State: StateDropped}
	}
}

func (d *Dispatcher) handleInfo(ctx context.Context, env envelope.Envelope) Result {
	spec, err := connector.SpecFromEnvelope(env)
	if err != nil {
		d.log.Warn().Err(err).Strs("keys", env.Keys()).
			Msg("dispatch.Dispatcher.handleInfo dropping undecodable spec")
		return Result{State: StateDropped, Err: err}
	}
	log := d.log.With().Str("connector", spec.ID()).Str("status", string(spec.Status())).Logger()

	cmd, cmdErr := connector.CommandFromEnvelope(env)
	hasCommand := cmdErr == nil
	if cmdErr != nil && !errors.Is(cmdErr, connector.ErrNoCommand) {
		log.Warn().Err(cmdErr).Msg("dispatch.Dispatcher.handleInfo ignoring undecodable command")
	}

	var errs []error
	if err := d.register(spec); err != nil {
		log.Error().Err(err).Msg("dispatch.Dispatcher.handleInfo registration failed")
		errs = append(errs, err)
	}

	res := Result{State: StateRegistered}
	if !hasCommand || !cmd.HasType(connector.TypeSend) {
		log.Debug().Bool("command", hasCommand).Msg("dispatch.Dispatcher.handleInfo registered")
		res.Err = errors.Join(errs...)
		return res
	}

	if spec.HasStatus(connector.StatusError) {
		res.State = StateSendAlerted
		errs = append(errs, d.alert(ctx, spec, cmd))
	} else {
		res.State = StateSendSaved
		errs = append(errs, d.persist(ctx, spec, cmd))
	}
	res.Err = errors.Join(errs...)
	return res
}

func (d *Dispatcher) handleCaptcha(ctx context.Context, env envelope.Envelope) Result {
	if err := d.launcher.Launch(ctx, env); err != nil {
		err = fmt.Errorf("%w: %w", ErrLaunchFailure, err)
		d.log.Error().Err(err).Msg("dispatch.Dispatcher.handleCaptcha launch failed")
		return Result{State: StateSecondaryLaunched, Err: err}
	}
	return Result{State: StateSecondaryLaunched}
}

// register stores spec and converts a registrar panic into an error.
func (d *Dispatcher) register(spec connector.Spec) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: panic: %v", ErrRegistrationFailure, spec.ID(), r)
		}
		observability.RecordRegistration(err == nil)
	}()
	if err := d.registrar.Put(spec); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRegistrationFailure, spec.ID(), err)
	}
	return nil
}

// Run feeds broadcasts from in to OnMessage until in closes or ctx ends.
// Handlers run concurrently up to the configured limit and are allowed to
// finish after ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context, in <-chan bus.Broadcast) error {
	sem := make(chan struct{}, d.concurrency)
	work := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-in:
			if !ok {
				return nil
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				res := d.OnMessage(work, b.Kind, b.Payload)
				if res.Err != nil {
					d.log.Debug().Str("source", b.Source).Str("state", string(res.State)).Err(res.Err).
						Msg("dispatch.Dispatcher.Run broadcast finished with errors")
				}
			}()
		}
	}
}

type noPreferences struct{}

func (noPreferences) VibrateOnFail() bool { return false }
func (noPreferences) SoundOnFail() string { return "" }
