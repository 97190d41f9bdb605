package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *Error
		want int
	}{
		{ValidationError("bad"), http.StatusBadRequest},
		{ForbiddenError("no consent", nil), http.StatusForbidden},
		{NotFoundError("missing"), http.StatusNotFound},
		{UnprocessableError("no signal", nil), http.StatusUnprocessableEntity},
		{InternalError("boom", nil), http.StatusInternalServerError},
		{ExternalError("upstream", nil), http.StatusBadGateway},
		{&Error{Type: "mystery"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.err.Type), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestError_UnwrapAndMessage(t *testing.T) {
	cause := errors.New("disk full")
	err := InternalError("failed to save", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal: failed to save: disk full", err.Error())
	assert.Equal(t, "validation: bad", ValidationError("bad").Error())
}

func TestAsStructuredError(t *testing.T) {
	assert.Nil(t, AsStructuredError(nil))

	original := ForbiddenError("no consent", nil)
	assert.Same(t, original, AsStructuredError(fmt.Errorf("wrapped: %w", original)))

	plain := AsStructuredError(errors.New("plain"))
	assert.Equal(t, TypeInternal, plain.Type)
}

func TestToResponse_OmitsEmptyContext(t *testing.T) {
	resp := ValidationError("bad").ToResponse()
	assert.Nil(t, resp.Context)

	resp = ForbiddenError("no consent", nil).WithField("channels", []string{"visual"}).ToResponse()
	assert.Equal(t, []string{"visual"}, resp.Context["channels"])
}

func TestMiddleware_RendersStructuredError(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "errors_total"}, []string{"type"})
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/v1/signals", nil), rec)

	err := Middleware(counter)(func(echo.Context) error {
		return UnprocessableError("no usable signal", nil)
	})(c)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "no usable signal", resp.Error)
	assert.Equal(t, TypeUnprocessable, resp.Type)
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("unprocessable")))
}

func TestMiddleware_PlainErrorBecomesInternal(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	err := Middleware(nil)(func(echo.Context) error { return errors.New("secret detail") })(c)
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
}

func TestMiddleware_PassesEchoHTTPErrorThrough(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "errors_total"}, []string{"type"})
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := Middleware(counter)(func(echo.Context) error {
		return echo.NewHTTPError(http.StatusTooManyRequests, "slow down")
	})(c)

	var httpErr *echo.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusTooManyRequests, httpErr.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(counter.WithLabelValues("rate_limited")))
}

func TestMiddleware_NoErrorIsUntouched(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	err := Middleware(nil)(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })(c)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
