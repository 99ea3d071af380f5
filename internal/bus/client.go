package bus

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/smsctl/internal/observability"
	"github.com/danmuck/smsctl/internal/protocol/frame"
)

var ErrClientClosed = errors.New("bus: client closed")

// Client is one connector-side connection to a Server. It sends broadcasts
// with the configured token and surfaces run broadcasts on Receive.
type Client struct {
	cfg  Config
	conn net.Conn
	log  zerolog.Logger

	writeMu sync.Mutex
	nextID  atomic.Uint64

	in        chan Broadcast
	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to addr, retrying with backoff up to cfg.DialAttempts times.
func Dial(ctx context.Context, addr string, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	dialer := net.Dialer{Timeout: cfg.DialTimeout}

	var lastErr error
	for attempt := 1; attempt <= cfg.DialAttempts; attempt++ {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return newClient(conn, cfg), nil
		}
		lastErr = err
		if attempt == cfg.DialAttempts {
			break
		}
		delay := NextBackoffDelay(cfg.Backoff, attempt, rng)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("bus: dial %s after %d attempts: %w", addr, cfg.DialAttempts, lastErr)
}

func newClient(conn net.Conn, cfg Config) *Client {
	c := &Client{
		cfg:    cfg,
		conn:   conn,
		log:    observability.ComponentLogger("bus.client"),
		in:     make(chan Broadcast, cfg.SubscriberBuffer),
		closed: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Send writes one broadcast to the server.
func (c *Client) Send(b Broadcast) error {
	select {
	case <-c.closed:
		return ErrClientClosed
	default:
	}
	f, err := EncodeFrame(b, c.nextID.Add(1), c.cfg.Token)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := frame.WriteFrame(c.conn, f, c.cfg.Limits); err != nil {
		observability.RecordFrame("out", "write_error")
		return fmt.Errorf("bus: send %s: %w", b.Kind, err)
	}
	observability.RecordFrame("out", "ok")
	return nil
}

// Receive yields broadcasts from the server. It closes when the connection ends.
func (c *Client) Receive() <-chan Broadcast { return c.in }

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) readLoop() {
	defer close(c.in)
	r := bufio.NewReader(c.conn)
	for {
		f, err := frame.ReadFrame(r, c.cfg.Limits)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.log.Warn().Err(err).Msg("bus.Client.readLoop read failed")
			}
			_ = c.Close()
			return
		}
		b, _, err := DecodeFrame(f)
		if err != nil {
			observability.RecordFrame("in", "malformed")
			c.log.Warn().Err(err).Msg("bus.Client.readLoop dropping malformed frame")
			continue
		}
		select {
		case c.in <- b:
		case <-c.closed:
			return
		default:
			observability.RecordFrame("in", "dropped_full")
			c.log.Warn().Str("kind", string(b.Kind)).Msg("bus.Client.readLoop receiver full, broadcast dropped")
		}
	}
}
