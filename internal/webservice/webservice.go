// Package webservice provides the HTTP server accepting asset compliance
// submissions and serving the authenticated review surface.
package webservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/assetsentry/assetsentry/internal/auth"
	"github.com/assetsentry/assetsentry/internal/common/metrics"
	"github.com/assetsentry/assetsentry/internal/intake/checks"
	"github.com/assetsentry/assetsentry/internal/webservice/handlers"
	wsmetrics "github.com/assetsentry/assetsentry/internal/webservice/metrics"
)

// Server is a struct that holds the HTTP server and its configuration.
type Server struct {
	httpServer    *http.Server
	metricsServer *metrics.Server
	cm            dChecksManager

	mu          sync.RWMutex
	primaryAddr net.Addr

	// This context is used to interrupt any action.
	// It must be the parent of gracefulCtx.
	ctx    context.Context
	cancel context.CancelFunc

	// This context lets in-flight requests drain before shutdown.
	gracefulCtx    context.Context
	gracefulCancel context.CancelFunc
}

// StaticConfig holds the static configuration for the server.
type StaticConfig struct {
	ChecksPath string

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxHeaderBytes int
	MaxUploadBytes int

	ListenHost string
	ListenPort int

	MetricsHost string
	MetricsPort int

	// RequireIntakeAuth additionally gates the intake route behind a
	// session. Off by default to preserve the wire contract with the
	// existing submission form.
	RequireIntakeAuth bool
}

// Deps are the collaborators the request handlers are built around.
type Deps struct {
	Pipeline handlers.SubmissionPipeline
	Store    handlers.SubmissionStore
	Users    handlers.UserStore
	Sessions handlers.SessionManager
}

type dChecksManager interface {
	Load() error
	Watch(context.Context) (<-chan struct{}, <-chan error, error)
	Definitions() []checks.Definition
	Label(key string) string
}

// New creates a new Server wired to the given collaborators.
func New(ctx context.Context, cm dChecksManager, deps Deps, sc StaticConfig, reg *prometheus.Registry) (*Server, error) {
	if err := cm.Load(); err != nil {
		return nil, fmt.Errorf("failed to load check definitions: %v", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	gCtx, gCancel := context.WithCancel(ctx)

	s := Server{
		cm:     cm,
		ctx:    ctx,
		cancel: cancel,

		gracefulCtx:    gCtx,
		gracefulCancel: gCancel}

	mw := wsmetrics.New(reg)
	session := handlers.NewSession(deps.Users, deps.Sessions)

	var intakeHandler http.Handler = handlers.NewIntake(deps.Pipeline, deps.Store, int64(sc.MaxUploadBytes))
	if sc.RequireIntakeAuth {
		intakeHandler = handlers.RequireSession(deps.Sessions, auth.CapSubmitAssets, intakeHandler)
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/asset-submissions", monitored(mw, "intake", intakeHandler))
	mux.Handle("GET /api/asset-submissions", monitored(mw, "submissions",
		handlers.RequireSession(deps.Sessions, auth.CapReviewSubmissions, handlers.NewSubmissions(deps.Store, cm))))
	mux.Handle("POST /api/auth/login", monitored(mw, "login", http.HandlerFunc(session.Login)))
	mux.Handle("POST /api/auth/logout", monitored(mw, "logout", http.HandlerFunc(session.Logout)))
	mux.Handle("GET /api/auth/me", monitored(mw, "me", http.HandlerFunc(session.Me)))
	mux.Handle("GET /api/checks", monitored(mw, "checks", handlers.NewChecks(cm)))
	mux.Handle("GET /version", monitored(mw, "version", http.HandlerFunc(handlers.VersionHandler)))

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", sc.ListenHost, sc.ListenPort),
		ReadTimeout:    sc.ReadTimeout,
		WriteTimeout:   sc.WriteTimeout,
		Handler:        http.TimeoutHandler(mux, sc.RequestTimeout, ""),
		MaxHeaderBytes: sc.MaxHeaderBytes,
	}
	s.metricsServer = metrics.New(metrics.Config{
		Host:         sc.MetricsHost,
		Port:         sc.MetricsPort,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
	}, reg)

	return &s, nil
}

func monitored(mw *wsmetrics.Middleware, name string, h http.Handler) http.Handler {
	return mw.Monitor(name, wsmetrics.HandlerApplyLabels(h))
}

// Run starts the HTTP server and listens for incoming requests.
func (s *Server) Run() error {
	slog.Info("Starting server", "addr", s.httpServer.Addr)

	// already asked to quit?
	select {
	case <-s.gracefulCtx.Done():
		return errors.New("server is already shutting down")
	default:
	}

	_, watchErr, err := s.cm.Watch(s.gracefulCtx)
	if err != nil {
		return fmt.Errorf("failed to start watching check definitions: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		defer close(serverErr)

		listener, err := net.Listen("tcp", s.httpServer.Addr)
		if err != nil {
			serverErr <- err
			return
		}
		s.mu.Lock()
		s.primaryAddr = listener.Addr()
		s.mu.Unlock()

		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	metricsErr := make(chan error, 1)
	go func() {
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-s.gracefulCtx.Done():
		slog.Info("Graceful shutdown initiated")
		// use parent ctx so a hard cancel elsewhere unblocks Shutdown immediately
		err := errors.Join(s.httpServer.Shutdown(s.ctx), s.metricsServer.Shutdown(s.ctx))
		if err != nil {
			slog.Error("Graceful shutdown failed", "err", err)
			return err
		}
		slog.Info("Server shut down gracefully")
		// now stop everything else (watchers, in-flight uploads)
		s.cancel()
		return nil

	case err := <-serverErr:
		if err != nil {
			slog.Error("Server encountered error", "err", err)
		}
		errM := s.metricsServer.Close()
		s.cancel()
		return errors.Join(err, errM)

	case err := <-metricsErr:
		if err != nil {
			slog.Error("Metrics server encountered error", "err", err)
		}
		errC := s.httpServer.Close()
		s.cancel()
		return errors.Join(err, errC)

	case err := <-watchErr:
		if err != nil {
			slog.Error("Check definitions watcher encountered unrecoverable error", "err", err)
		}
		errC := errors.Join(s.httpServer.Close(), s.metricsServer.Close())
		s.cancel()
		return errors.Join(err, errC)
	}
}

// Addr returns the address the primary server is listening on, or an empty
// string before Run has bound the listener.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.primaryAddr == nil {
		return ""
	}
	return s.primaryAddr.String()
}

// Quit shuts down the HTTP server.
func (s *Server) Quit(force bool) {
	defer s.cancel()

	if force {
		s.httpServer.Close()
		s.metricsServer.Close()
		s.cancel()
	} else {
		s.gracefulCancel()
	}
	slog.Info("Server quit")
}
