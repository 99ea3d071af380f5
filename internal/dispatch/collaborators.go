package dispatch

import (
	"context"

	"github.com/danmuck/smsctl/internal/connector"
	"github.com/danmuck/smsctl/internal/envelope"
	"github.com/danmuck/smsctl/internal/notify"
)

// TypeSent is the message-store type value for sent messages.
const TypeSent = 2

// Record is one persisted sent message. Date is nil when the send was not
// deferred; the store then stamps its own time.
type Record struct {
	Address string
	Body    string
	Read    bool
	Type    int
	Date    *int64
}

type MessageStore interface {
	Insert(ctx context.Context, rec Record) error
}

type AlertSurface interface {
	Post(ctx context.Context, a notify.Alert) error
}

// Preferences is read at alert-build time, never cached.
type Preferences interface {
	VibrateOnFail() bool
	SoundOnFail() string
}

type Launcher interface {
	Launch(ctx context.Context, payload envelope.Envelope) error
}

// Normalizer maps a raw recipient to its canonical address.
type Normalizer func(raw string) string

type Registrar interface {
	Put(spec connector.Spec) error
}
