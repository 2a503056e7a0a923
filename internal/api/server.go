// Package api exposes the HTTP surface: health, status, ad-hoc sends and
// manual report triggers.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"EmailManager/internal/domain"
	"EmailManager/pkg/logger"
)

const (
	serviceName     = "Email Manager API"
	shutdownTimeout = 10 * time.Second
)

// EmailSender renders and sends one ad-hoc email.
type EmailSender interface {
	Send(ctx context.Context, req domain.SendRequest) error
}

// ReportRunner executes report runs under the single-run guard.
type ReportRunner interface {
	Run(ctx context.Context, trigger domain.Trigger) (domain.ReportRun, error)
	Start(ctx context.Context, trigger domain.Trigger) (string, error)
	Status() (current, last fn.Option[domain.ReportRun])
}

// ScheduleStatus describes the periodic driver.
type ScheduleStatus interface {
	Running() bool
	Interval() time.Duration
	NextRunAt() (time.Time, bool)
}

// DeliveryHistory reads back the audit log.
type DeliveryHistory interface {
	Count(ctx context.Context) (int, error)
	Recent(ctx context.Context, limit int) ([]domain.Delivery, error)
}

// Deps are the collaborators behind the handlers. Schedule and Deliveries
// may be nil.
type Deps struct {
	Sender     EmailSender
	Runner     ReportRunner
	Schedule   ScheduleStatus
	Deliveries DeliveryHistory

	EmailConfigured bool
	LLMAvailable    bool
	Version         string
}

// Server is the HTTP server for the service.
type Server struct {
	deps   Deps
	mux    *http.ServeMux
	addr   string
	logger *slog.Logger
	now    func() time.Time
}

// NewServer registers all routes.
func NewServer(addr string, deps Deps, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}

	s := &Server{
		deps:   deps,
		mux:    http.NewServeMux(),
		addr:   addr,
		logger: log,
		now:    time.Now,
	}

	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /status", s.handleStatus)
	s.mux.HandleFunc("POST /send-email/", s.handleSendEmail)
	s.mux.HandleFunc("POST /trigger-report/", s.handleTriggerReport)

	return s
}

// Handler returns the routed handler wrapped with request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe serves until ctx is cancelled, then drains open requests
// for up to ten seconds.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          logger.New(s.logger, "http", slog.LevelWarn),
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", s.addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
