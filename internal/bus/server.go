package bus

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/danmuck/smsctl/internal/auth"
	"github.com/danmuck/smsctl/internal/observability"
	"github.com/danmuck/smsctl/internal/protocol/frame"
)

var ErrServerNotListening = errors.New("bus: server not listening")

// Server accepts connector peers over TCP. Frames a peer sends are published
// on the local Bus; run broadcasts published locally are sent to every peer.
type Server struct {
	cfg       Config
	bus       *Bus
	validator auth.Validator
	log       zerolog.Logger

	mu    sync.Mutex
	ln    net.Listener
	peers map[string]*peer

	nextID atomic.Uint64
}

func NewServer(cfg Config, b *Bus, v auth.Validator) *Server {
	if v == nil {
		v = auth.ForToken(cfg.Token)
	}
	return &Server{
		cfg:       cfg.withDefaults(),
		bus:       b,
		validator: v,
		log:       observability.ComponentLogger("bus.server"),
		peers:     make(map[string]*peer),
	}
}

// Listen binds the configured address. Serve must follow.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("bus: listen %s: %w", s.cfg.Listen, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return nil
}

func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Peers returns the number of connected peers.
func (s *Server) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts peers until ctx ends, then closes every connection.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	if ln == nil {
		return ErrServerNotListening
	}

	outbound := s.bus.Subscribe(KindRun)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.fanOut(outbound.C())
	}()

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("bus.Server.Serve listening")

	var acceptErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				acceptErr = fmt.Errorf("bus: accept: %w", err)
			}
			break
		}
		p := s.addPeer(conn)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.servePeer(ctx, p)
		}()
	}

	outbound.Close()
	s.mu.Lock()
	for _, p := range s.peers {
		p.close()
	}
	s.mu.Unlock()
	wg.Wait()
	s.log.Info().Msg("bus.Server.Serve stopped")
	return acceptErr
}

func (s *Server) fanOut(in <-chan Broadcast) {
	for b := range in {
		f, err := EncodeFrame(b, s.nextID.Add(1), "")
		if err != nil {
			s.log.Error().Err(err).Msg("bus.Server.fanOut encode failed")
			continue
		}
		s.mu.Lock()
		for _, p := range s.peers {
			p.enqueue(f)
		}
		s.mu.Unlock()
	}
}

func (s *Server) addPeer(conn net.Conn) *peer {
	p := &peer{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan frame.Frame, s.cfg.PeerBuffer),
		done: make(chan struct{}),
		log:  s.log,
	}
	s.mu.Lock()
	s.peers[p.id] = p
	s.mu.Unlock()
	s.log.Info().Str("peer", p.id).Str("remote", conn.RemoteAddr().String()).Msg("bus.Server peer connected")
	return p
}

func (s *Server) removePeer(p *peer) {
	s.mu.Lock()
	delete(s.peers, p.id)
	s.mu.Unlock()
	p.close()
	s.log.Info().Str("peer", p.id).Msg("bus.Server peer disconnected")
}

func (s *Server) servePeer(ctx context.Context, p *peer) {
	defer s.removePeer(p)
	go p.writeLoop(s.cfg.WriteTimeout, s.cfg.Limits)

	r := bufio.NewReader(p.conn)
	for {
		f, err := frame.ReadFrame(r, s.cfg.Limits)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && ctx.Err() == nil {
				observability.RecordFrame("in", "read_error")
				s.log.Warn().Err(err).Str("peer", p.id).Msg("bus.Server.servePeer read failed")
			}
			return
		}
		b, token, err := DecodeFrame(f)
		if err != nil {
			observability.RecordFrame("in", "malformed")
			s.log.Warn().Err(err).Str("peer", p.id).Msg("bus.Server.servePeer dropping malformed frame")
			continue
		}
		if err := s.validator.Validate(token); err != nil {
			observability.RecordFrame("in", "auth_rejected")
			s.log.Warn().Err(err).Str("peer", p.id).Msg("bus.Server.servePeer dropping foreign broadcast")
			continue
		}
		if b.Kind == KindRun {
			observability.RecordFrame("in", "rejected_kind")
			continue
		}
		b.Source = p.id
		observability.RecordFrame("in", "ok")
		s.bus.Publish(b)
	}
}

type peer struct {
	id   string
	conn net.Conn
	out  chan frame.Frame
	done chan struct{}
	once sync.Once
	log  zerolog.Logger
}

func (p *peer) enqueue(f frame.Frame) {
	select {
	case <-p.done:
	case p.out <- f:
	default:
		observability.RecordFrame("out", "dropped_full")
		p.log.Warn().Str("peer", p.id).Msg("bus.peer.enqueue queue full, frame dropped")
	}
}

func (p *peer) writeLoop(timeout time.Duration, limits frame.Limits) {
	for {
		select {
		case <-p.done:
			return
		case f := <-p.out:
			_ = p.conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := frame.WriteFrame(p.conn, f, limits); err != nil {
				observability.RecordFrame("out", "write_error")
				p.log.Warn().Err(err).Str("peer", p.id).Msg("bus.peer.writeLoop write failed")
				p.close()
				return
			}
			observability.RecordFrame("out", "ok")
		}
	}
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}
