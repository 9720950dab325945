// Package httpapi exposes the auth service over HTTP/JSON using a chi router.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/chirp/internal/logging"
	"github.com/dmitrijs2005/chirp/internal/server/auth"
	"github.com/dmitrijs2005/chirp/internal/server/models"
	"github.com/dmitrijs2005/chirp/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Version is reported by /health. Overridden at build time with -ldflags.
var Version = "1.0.0"

const shutdownTimeout = 10 * time.Second

type authSvc interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	Login(ctx context.Context, in services.LoginInput) (*services.AuthResult, error)
	Refresh(ctx context.Context, in services.RefreshInput) (*services.AuthResult, error)
	Logout(ctx context.Context, authorizationHeader string) error
	Authenticate(ctx context.Context, bearerToken string) (*auth.Claims, error)
	Me(ctx context.Context, accountID string) (*models.Account, error)
}

type avatarSvc interface {
	RequestUpload(ctx context.Context, accountID string) (*services.AvatarUpload, error)
}

type dbPinger interface {
	PingContext(ctx context.Context) error
}

type HTTPServer struct {
	address string
	logger  logging.Logger
	auth    authSvc
	avatars avatarSvc
	db      dbPinger
	metrics *Metrics
	now     func() time.Time
}

func NewHTTPServer(a string, l logging.Logger, as authSvc, av avatarSvc, db dbPinger, m *Metrics) *HTTPServer {
	return &HTTPServer{
		address: a,
		logger:  l.With("module", "http_server"),
		auth:    as,
		avatars: av,
		db:      db,
		metrics: m,
		now:     time.Now,
	}
}

// Router builds the handler tree. Middleware order matters: the request id
// must be in the context before anything logs, and instrumentation wraps
// recovery so panics are counted as 500s.
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestContext)
	r.Use(s.instrument)
	r.Use(s.recoverer)

	r.Get("/health", s.Health)
	r.Get("/health/database", s.DatabaseHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.Register)
		r.Post("/login", s.Login)
		r.Post("/refresh", s.Refresh)
		r.Post("/logout", s.Logout)

		r.Group(func(r chi.Router) {
			r.Use(s.accessTokenMiddleware)
			r.Get("/me", s.Me)
			r.Post("/me/avatar", s.RequestAvatarUpload)
		})
	})

	return r
}

func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// closed once Shutdown has drained in-flight requests
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-drained
	return nil
}
