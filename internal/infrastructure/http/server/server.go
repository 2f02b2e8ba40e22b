package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	healthhttp "amlchecker/internal/adapters/http/health"
	historyhttp "amlchecker/internal/adapters/http/history"
	screeninghttp "amlchecker/internal/adapters/http/screening"
	"amlchecker/internal/infrastructure/config"
	httperrors "amlchecker/internal/infrastructure/http"
	"amlchecker/internal/infrastructure/http/middleware"
)

// Server wires the HTTP router and owns the listener lifecycle.
type Server struct {
	cfg        config.AppConfig
	log        *slog.Logger
	httpServer *http.Server
	auth       *middleware.JWTAuthenticator
	onShutdown []func(context.Context) error
}

// Options groups the dependencies of New. Only Logger and HealthHandler are
// required; routes whose handler is nil are not mounted.
type Options struct {
	Config           config.AppConfig
	Logger           *slog.Logger
	HealthHandler    *healthhttp.Handler
	ScreeningHandler *screeninghttp.Handler
	HistoryHandler   *historyhttp.Handler
	MetricsHandler   http.Handler
	Authenticator    *middleware.JWTAuthenticator
	// OnShutdown hooks run after the listener stops, in order, sharing the
	// shutdown deadline.
	OnShutdown []func(context.Context) error
}

// New builds the router and the underlying http.Server.
func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.HealthHandler == nil {
		return nil, errors.New("health handler is required")
	}

	s := &Server{
		cfg:        opts.Config,
		log:        opts.Logger,
		auth:       opts.Authenticator,
		onShutdown: opts.OnShutdown,
	}

	s.httpServer = &http.Server{
		Addr:         opts.Config.HTTP.Address(),
		Handler:      s.routes(opts),
		ReadTimeout:  opts.Config.HTTP.ReadTimeout,
		WriteTimeout: opts.Config.HTTP.WriteTimeout,
		IdleTimeout:  opts.Config.HTTP.IdleTimeout,
	}
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) routes(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(s.log))
	r.Use(chimw.Recoverer)

	r.Get("/health", opts.HealthHandler.Status)
	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		if s.auth != nil {
			r.Use(s.auth.Middleware)
		}
		r.Use(middleware.RequireIdentity(opts.Config.Auth.BypassPaths, s.log))

		if h := opts.ScreeningHandler; h != nil {
			r.Get("/check", h.Check)
			r.Post("/check", h.CheckJSON)
		}
		if h := opts.HistoryHandler; h != nil {
			r.Route("/history", func(r chi.Router) {
				r.Use(middleware.RequestTimeout(opts.Config.HTTP.WriteTimeout))
				r.Get("/", h.List)
				r.Get("/stats", h.Stats)
				r.Get("/{id}", h.Get)
			})
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, http.StatusNotFound, "Not found", []string{"route not found"}, s.log)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed", nil, s.log)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully within
// HTTP.ShutdownTimeout and runs the shutdown hooks.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server started", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

func (s *Server) shutdown() error {
	ctx := context.Background()
	if s.cfg.HTTP.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.HTTP.ShutdownTimeout)
		defer cancel()
	}

	s.log.Info("shutting down HTTP server")
	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	for _, hook := range s.onShutdown {
		if err := hook(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases background resources such as JWKS refreshers.
func (s *Server) Close() {
	if s.auth != nil {
		s.auth.Close()
	}
}
