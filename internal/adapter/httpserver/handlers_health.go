package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/platform/version"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second

	breakerClosed = "closed"
)

// HealthCheck is a backend the service cannot run without.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// ActuatorBreaker reports the circuit breaker state of one device family's
// primary actuator. Anything but "closed" degrades readiness; the simulator
// keeps directives flowing meanwhile.
type ActuatorBreaker struct {
	Family string
	State  func() string
}

type readinessReport struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Actuators map[string]string `json:"actuators,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

// handleStartup only waits for the backends; actuators may come up later.
func (s *Server) handleStartup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), startupProbeTimeout)
	defer cancel()

	report := readinessReport{Status: "ready", Checks: s.runChecks(ctx)}
	if failed(report.Checks) {
		report.Status = "unhealthy"
	}
	return s.writeReport(c, report)
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	report := readinessReport{
		Status:    "ready",
		Checks:    s.runChecks(ctx),
		Actuators: s.actuatorStates(),
	}
	switch {
	case failed(report.Checks):
		report.Status = "unhealthy"
	case anyOpen(report.Actuators):
		report.Status = "degraded"
	}
	return s.writeReport(c, report)
}

func (s *Server) runChecks(ctx context.Context) map[string]string {
	if len(s.healthChecks) == 0 {
		return nil
	}
	results := make(map[string]string, len(s.healthChecks))
	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			results[hc.Name] = err.Error()
			continue
		}
		results[hc.Name] = "ok"
	}
	return results
}

func (s *Server) actuatorStates() map[string]string {
	if len(s.actuators) == 0 {
		return nil
	}
	states := make(map[string]string, len(s.actuators))
	for _, a := range s.actuators {
		states[a.Family] = a.State()
	}
	return states
}

func (s *Server) writeReport(c echo.Context, report readinessReport) error {
	code := http.StatusOK
	if report.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	if err := c.JSON(code, report); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func failed(checks map[string]string) bool {
	for _, result := range checks {
		if result != "ok" {
			return true
		}
	}
	return false
}

func anyOpen(actuators map[string]string) bool {
	for _, state := range actuators {
		if state != breakerClosed {
			return true
		}
	}
	return false
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
