package httpserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
	apperrors "github.com/Manorajkrishan/NeuroSync-sub001/internal/platform/errors"
)

const maxUserIDLength = 128

func (s *Server) registerAPIRoutes() {
	api := s.echo.Group("/api/v1", newRateLimiter(s.config.APIRateLimit, s.config.APIRateBurst))

	api.POST("/signals", s.handleSignal)
	api.GET("/users/:userID/consent", s.handleGetConsent)
	api.PUT("/users/:userID/consent", s.handlePutConsent)
	api.DELETE("/users/:userID/consent", s.handleDeleteConsent)
	api.GET("/users/:userID/conversation", s.handleGetConversation)
	api.GET("/devices", s.handleDevices)
}

func (s *Server) handleSignal(c echo.Context) error {
	var req domain.SignalRequest
	if err := decodeJSON(c, &req); err != nil {
		return err
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if err := validateUserID(req.UserID); err != nil {
		return err
	}

	result, err := s.app.Process(c.Request().Context(), req)
	if err != nil {
		return toAPIError(err, req.UserID)
	}

	if err := c.JSON(http.StatusOK, result); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetConsent(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}

	record, err := s.app.Consent(c.Request().Context(), userID)
	if err != nil {
		return apperrors.InternalError("failed to load consent", err).WithField("user_id", userID)
	}

	if err := c.JSON(http.StatusOK, record); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// consentRequest is the writable part of a consent record.
type consentRequest struct {
	EmotionSensing bool `json:"emotionSensing"`
	Visual         bool `json:"visual"`
	Audio          bool `json:"audio"`
	Biometric      bool `json:"biometric"`
	DataStorage    bool `json:"dataStorage"`
	DataSharing    bool `json:"dataSharing"`
	Anonymize      bool `json:"anonymize"`
}

func (s *Server) handlePutConsent(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}

	var body consentRequest
	if err := decodeJSON(c, &body); err != nil {
		return err
	}

	saved, err := s.app.SetConsent(c.Request().Context(), userID, domain.ConsentRecord{
		UserID:         userID,
		EmotionSensing: body.EmotionSensing,
		Visual:         body.Visual,
		Audio:          body.Audio,
		Biometric:      body.Biometric,
		DataStorage:    body.DataStorage,
		DataSharing:    body.DataSharing,
		Anonymize:      body.Anonymize,
	})
	if err != nil {
		return apperrors.InternalError("failed to save consent", err).WithField("user_id", userID)
	}

	if err := c.JSON(http.StatusOK, saved); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleDeleteConsent(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}

	if err := s.app.RevokeConsent(c.Request().Context(), userID); err != nil {
		return apperrors.InternalError("failed to revoke consent", err).WithField("user_id", userID)
	}

	if err := c.NoContent(http.StatusNoContent); err != nil {
		return fmt.Errorf("failed to send response: %w", err)
	}
	return nil
}

func (s *Server) handleGetConversation(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}

	state, ok, err := s.app.Conversation(c.Request().Context(), userID)
	if err != nil {
		return apperrors.InternalError("failed to load conversation", err).WithField("user_id", userID)
	}
	if !ok {
		return apperrors.NotFoundError("no conversation recorded").WithField("user_id", userID)
	}

	if err := c.JSON(http.StatusOK, state); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleDevices(c echo.Context) error {
	devices := s.app.Devices()
	if devices == nil {
		devices = []domain.DeviceState{}
	}
	if err := c.JSON(http.StatusOK, map[string]any{"devices": devices}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func userIDParam(c echo.Context) (string, error) {
	userID := strings.TrimSpace(c.Param("userID"))
	if err := validateUserID(userID); err != nil {
		return "", err
	}
	return userID, nil
}

func validateUserID(userID string) error {
	if userID == "" {
		return apperrors.ValidationError("userId is required")
	}
	if len(userID) > maxUserIDLength {
		return apperrors.ValidationError("userId is too long").WithField("max_length", maxUserIDLength)
	}
	return nil
}

func decodeJSON(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) && httpErr.Code == http.StatusRequestEntityTooLarge {
			return err
		}
		if errors.Is(err, io.EOF) {
			return apperrors.ValidationError("request body is required")
		}
		return apperrors.ValidationError("invalid JSON body")
	}
	return nil
}
