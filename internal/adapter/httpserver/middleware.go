package httpserver

import (
	"errors"
	"net/http"

	"github.com/centrifugal/centrifuge"
	"github.com/labstack/echo/v4"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/domain"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/platform/correlation"
	apperrors "github.com/Manorajkrishan/NeuroSync-sub001/internal/platform/errors"
)

// correlationMiddleware reuses an inbound correlation id or mints one, stores
// it on the request context and echoes it back.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.FromHeader(c.Request().Header.Get(correlation.Header))
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		c.Response().Header().Set(correlation.Header, id)
		return next(c)
	}
}

// centrifugeAuthMiddleware identifies the listener by the user_id query
// parameter. End users are not authenticated.
func centrifugeAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			http.Error(w, "missing user_id parameter", http.StatusBadRequest)
			return
		}

		cred := &centrifuge.Credentials{UserID: userID}
		r = r.WithContext(centrifuge.SetCredentials(r.Context(), cred))

		next.ServeHTTP(w, r)
	})
}

// toAPIError maps pipeline errors onto structured API errors.
func toAPIError(err error, userID string) error {
	var (
		consentErr *domain.ConsentRequiredError
		weightsErr *domain.InvalidWeightsError
		noSignal   *domain.NoSignalError
		apiErr     *apperrors.Error
	)

	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &consentErr):
		denied := deniedChannels(err)
		return apperrors.ForbiddenError("consent required", err).
			WithField("user_id", userID).
			WithField("channels", denied)
	case errors.As(err, &noSignal):
		return apperrors.UnprocessableError("no usable signal", err).
			WithField("user_id", userID).
			WithField("supplied", noSignal.Supplied)
	case errors.As(err, &weightsErr):
		return apperrors.UnprocessableError(weightsErr.Error(), err).WithField("user_id", userID)
	case errors.Is(err, domain.ErrUserIDRequired):
		return apperrors.ValidationError("userId is required")
	default:
		return apperrors.InternalError("failed to process request", err).WithField("user_id", userID)
	}
}

// deniedChannels collects every channel named by a (possibly joined) consent error.
func deniedChannels(err error) []domain.Channel {
	var out []domain.Channel
	var walk func(error)
	walk = func(err error) {
		var consentErr *domain.ConsentRequiredError
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				walk(e)
			}
			return
		}
		if errors.As(err, &consentErr) {
			out = append(out, consentErr.Channel)
		}
	}
	walk(err)
	return out
}
