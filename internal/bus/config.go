package bus

import (
	"math"
	"math/rand"
	"time"

	"github.com/danmuck/smsctl/internal/protocol/frame"
)

// BackoffConfig defines redial backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines the TCP transport.
type Config struct {
	Listen           string
	Token            string
	SubscriberBuffer int
	// PeerBuffer bounds frames queued for one slow peer.
	PeerBuffer   int
	DialTimeout  time.Duration
	DialAttempts int
	WriteTimeout time.Duration
	Backoff      BackoffConfig
	Limits       frame.Limits
}

func DefaultConfig() Config {
	return Config{
		Listen:           "127.0.0.1:7470",
		SubscriberBuffer: DefaultSubscriberBuffer,
		PeerBuffer:       32,
		DialTimeout:      5 * time.Second,
		DialAttempts:     5,
		WriteTimeout:     10 * time.Second,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
		Limits: frame.DefaultLimits(),
	}
}

// NextBackoffDelay returns the retry delay for attempt N (1-based).
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 {
		return cfg.InitialDelay
	}
	if cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay *= f
	}
	return time.Duration(delay)
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SubscriberBuffer <= 0 {
		c.SubscriberBuffer = d.SubscriberBuffer
	}
	if c.PeerBuffer <= 0 {
		c.PeerBuffer = d.PeerBuffer
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.DialAttempts <= 0 {
		c.DialAttempts = d.DialAttempts
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits = d.Limits
	}
	return c
}
