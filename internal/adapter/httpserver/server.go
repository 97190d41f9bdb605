package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/adapter/metrics"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/platform/config"
)

type appService interface {
	Process(ctx context.Context, req domain.SignalRequest) (domain.ProcessResult, error)
	Consent(ctx context.Context, userID string) (domain.ConsentRecord, error)
	SetConsent(ctx context.Context, userID string, record domain.ConsentRecord) (domain.ConsentRecord, error)
	RevokeConsent(ctx context.Context, userID string) error
	Conversation(ctx context.Context, userID string) (domain.ConversationState, bool, error)
	Devices() []domain.DeviceState
}

// Options carries the optional collaborators of a Server.
type Options struct {
	WebsocketHandler http.Handler // nil disables /connection/websocket
	MetricsHandler   http.Handler // nil disables /metrics
	HTTPMetrics      *metrics.HTTPMetrics
	HealthChecks     []HealthCheck
	Actuators        []ActuatorBreaker
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	app    appService

	websocketHandler http.Handler
	metricsHandler   http.Handler
	httpMetrics      *metrics.HTTPMetrics

	healthChecks []HealthCheck
	actuators    []ActuatorBreaker
	startTime    time.Time
}

func NewServer(cfg *config.Config, app appService, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:             e,
		config:           cfg,
		app:              app,
		websocketHandler: opts.WebsocketHandler,
		metricsHandler:   opts.MetricsHandler,
		httpMetrics:      opts.HTTPMetrics,
		healthChecks:     opts.HealthChecks,
		actuators:        opts.Actuators,
		startTime:        time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets tests drive the full middleware chain.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
