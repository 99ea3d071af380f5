// Package server exposes the smsctl admin HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/smsctl/internal/compose"
	"github.com/danmuck/smsctl/internal/notify"
	"github.com/danmuck/smsctl/internal/observability"
	"github.com/danmuck/smsctl/internal/registry"
	"github.com/danmuck/smsctl/internal/store"
)

const Version = "0.1.0"

type AlertHistory interface {
	Recent() []notify.Alert
}

type CaptchaHistory interface {
	Recent() []notify.CaptchaRequest
}

type MessageLister interface {
	Recent(ctx context.Context, limit int) ([]store.Message, error)
}

// Deps are the daemon parts the admin API reads from or drives.
type Deps struct {
	Registry *registry.Registry
	Composer *compose.Composer
	Alerts   AlertHistory
	Captcha  CaptchaHistory
	Messages MessageLister
	// Ready reports whether the daemon can serve; nil means always ready.
	Ready func(ctx context.Context) error
	// Peers reports connected bus peers.
	Peers func() int
}

type Admin struct {
	ID       string
	Addr     string
	Appeared time.Time

	deps   Deps
	router *gin.Engine
}

func Appear(id, addr string, corsOrigins []string, deps Deps) *Admin {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	if deps.Registry == nil {
		deps.Registry = registry.New()
	}
	return &Admin{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		deps:     deps,
		router:   r,
	}
}

func (a *Admin) HTTPRouter() *gin.Engine {
	return a.router
}

// Serve registers routes and serves until ctx ends.
func (a *Admin) Serve(ctx context.Context) error {
	a.RegisterRoutes()
	srv := &http.Server{
		Addr:              a.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", a.Addr).Msg("server.Admin.Serve listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
