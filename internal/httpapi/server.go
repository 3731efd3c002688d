// Package httpapi exposes a Scheduler over HTTP.
//
//	POST /schedule            solve a problem without busy windows
//	POST /schedule_with_busy  solve a problem honoring busy windows
//	GET  /health              liveness plus registered dependency checks
//
// Bodies are JSON, or YAML when the Content-Type says so. A well-formed
// problem without a plan answers 422 with
// {"detail": "No feasible schedule", "cause": ..., "task_id": ...}.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/gitrdm/gokanplan/internal/problemio"
	"github.com/gitrdm/gokanplan/pkg/schedule"
)

// maxBodyBytes bounds a problem upload.
const maxBodyBytes = 16 << 20

// Source yields the Scheduler serving the next request.
// *atomic.Pointer[schedule.Scheduler] satisfies it.
type Source interface {
	Load() *schedule.Scheduler
}

// HealthCheck reports a dependency as unhealthy by returning an error.
type HealthCheck func() error

type server struct {
	source  Source
	logger  *zap.Logger
	timeout time.Duration
	checks  map[string]HealthCheck
}

// Option configures the router.
type Option func(*server)

// WithLogger sets the logger for request and solve logs.
func WithLogger(l *zap.Logger) Option {
	return func(s *server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRequestTimeout bounds every request. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *server) { s.timeout = d }
}

// WithHealthCheck adds a named check to GET /health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *server) { s.checks[name] = check }
}

// NewRouter builds the chi router.
func NewRouter(source Source, opts ...Option) http.Handler {
	s := &server{source: source, logger: zap.NewNop(), checks: map[string]HealthCheck{}}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	if s.timeout > 0 {
		r.Use(middleware.Timeout(s.timeout))
	}

	r.Get("/health", s.health)
	r.Post("/schedule", s.solveHandler(false))
	r.Post("/schedule_with_busy", s.solveHandler(true))
	return r
}

func (s *server) solveHandler(withBusy bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := decodeProblem(w, r)
		if err != nil {
			s.fail(w, r, err)
			return
		}

		sch := s.source.Load()
		var plan *schedule.Plan
		if withBusy {
			plan, err = sch.SolveWithAvailability(r.Context(), p)
		} else {
			plan, err = sch.Solve(r.Context(), p)
		}
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	}
}

func decodeProblem(w http.ResponseWriter, r *http.Request) (schedule.Problem, error) {
	format := problemio.JSON
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = problemio.YAML
	}
	p, err := problemio.DecodeProblem(http.MaxBytesReader(w, r.Body, maxBodyBytes), format)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return p, fmt.Errorf("%w: body exceeds %d bytes", schedule.ErrInvalidProblem, tooLarge.Limit)
	}
	return p, err
}

// statusFor maps a failure code onto an HTTP status.
func statusFor(code string) int {
	switch code {
	case problemio.CodeInvalidProblem:
		return http.StatusBadRequest
	case problemio.CodeInfeasible, problemio.CodeTimeout:
		return http.StatusUnprocessableEntity
	case problemio.CodeCancelled:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	f := problemio.DescribeError(err)
	status := statusFor(f.Code)

	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("code", f.Code),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("solve failed", fields...)
	} else {
		s.logger.Info("solve rejected", fields...)
	}
	writeJSON(w, status, f)
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks,omitempty"`
	}{Status: "ok"}
	status := http.StatusOK

	if len(s.checks) > 0 {
		resp.Checks = make(map[string]string, len(s.checks))
		for name, check := range s.checks {
			if err := check(); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// requestLogger logs one line per request.
func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("request completed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_ip", r.RemoteAddr),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}

// Server wraps http.Server with start and graceful stop.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer binds handler to addr.
func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Start serves until Stop is called. It returns nil after a clean stop.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop drains open connections until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("http server stopping")
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
