package notify

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/smsctl/internal/envelope"
)

const DefaultHistory = 64

// history is a bounded, newest-last buffer.
type history[T any] struct {
	mu    sync.Mutex
	limit int
	items []T
}

func (h *history[T]) add(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = append(h.items, v)
	if over := len(h.items) - h.limit; over > 0 {
		h.items = slices.Delete(h.items, 0, over)
	}
}

func (h *history[T]) snapshot() []T {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.items)
}

func newHistory[T any](limit int) *history[T] {
	if limit <= 0 {
		limit = DefaultHistory
	}
	return &history[T]{limit: limit}
}

// LogSurface posts alerts to the process log and keeps the most recent ones
// for the admin API.
type LogSurface struct {
	recent *history[Alert]
}

func NewLogSurface(limit int) *LogSurface {
	return &LogSurface{recent: newHistory[Alert](limit)}
}

func (s *LogSurface) Post(ctx context.Context, a Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.recent.add(a)
	log.Warn().
		Int("alert_id", a.ID).
		Str("connector", a.Connector).
		Str("title", a.Title).
		Str("body", a.Body).
		Str("tap", a.Tap.URI()).
		Bool("vibrate", a.Vibrate).
		Str("sound", a.Sound).
		Msg("notify.LogSurface.Post alert")
	return nil
}

// Recent returns posted alerts, oldest first.
func (s *LogSurface) Recent() []Alert {
	return s.recent.snapshot()
}

// CaptchaRequest is one forwarded captcha payload.
type CaptchaRequest struct {
	ReceivedAt time.Time         `json:"received_at"`
	Payload    envelope.Envelope `json:"-"`
	Keys       []string          `json:"keys"`
}

// LogLauncher stands in for the captcha entry screen: it records forwarded
// payloads so an operator can pick them up from the admin API.
type LogLauncher struct {
	recent *history[CaptchaRequest]
	now    func() time.Time
}

func NewLogLauncher(limit int) *LogLauncher {
	return &LogLauncher{recent: newHistory[CaptchaRequest](limit), now: time.Now}
}

func (l *LogLauncher) Launch(ctx context.Context, payload envelope.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	req := CaptchaRequest{
		ReceivedAt: l.now(),
		Payload:    payload.Clone(),
		Keys:       payload.Keys(),
	}
	l.recent.add(req)
	log.Info().Strs("keys", req.Keys).Msg("notify.LogLauncher.Launch captcha request")
	return nil
}

func (l *LogLauncher) Recent() []CaptchaRequest {
	return l.recent.snapshot()
}
