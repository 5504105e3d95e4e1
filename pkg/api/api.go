package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/sqlbridge/pkg/httpserver"
	"github.com/dmitrymomot/sqlbridge/pkg/logger"
	"github.com/dmitrymomot/sqlbridge/pkg/requestid"
	"github.com/dmitrymomot/sqlbridge/pkg/server"
)

// API exposes the session manager over HTTP.
type API struct {
	state   *server.State
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures API.
type Option func(*API)

func WithLogger(l *slog.Logger) Option {
	return func(a *API) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRequestTimeout cancels request contexts after d. Zero disables it.
func WithRequestTimeout(d time.Duration) Option {
	return func(a *API) { a.timeout = d }
}

// New returns an API backed by state.
func New(state *server.State, opts ...Option) *API {
	a := &API{state: state, logger: logger.Discard()}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(logger.Component("api"))
	return a
}

// Routes builds the router:
//
//	GET    /health
//	GET    /health/ready
//	POST   /sessions
//	GET    /sessions
//	POST   /sessions/cleanup
//	GET    /sessions/{id}
//	DELETE /sessions/{id}
//	POST   /query
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestid.Middleware())
	r.Use(middleware.RealIP)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)
	if a.timeout > 0 {
		r.Use(middleware.Timeout(a.timeout))
	}

	r.Get("/health", a.handle(a.health))
	r.Get("/health/ready", httpserver.ReadinessHandler(a.logger, a.state.Ready))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", a.handle(a.createSession))
		r.Get("/", a.handle(a.listSessions))
		r.Post("/cleanup", a.handle(a.cleanupSessions))
		r.Get("/{id}", a.handle(a.getSession))
		r.Delete("/{id}", a.handle(a.terminateSession))
	})

	r.Post("/query", a.handle(a.query))
	return r
}

type handlerFunc func(r *http.Request) Response

func (a *API) handle(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(r).Render(w, r); err != nil {
			a.logger.ErrorContext(r.Context(), "failed to render response", logger.Error(err))
		}
	}
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		a.logger.Log(r.Context(), level, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Int("bytes", ww.BytesWritten()),
			logger.Duration(time.Since(start)))
	})
}
