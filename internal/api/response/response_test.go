package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starseeker/starseeker/internal/api/middleware"
	"github.com/starseeker/starseeker/internal/api/models"
	"github.com/starseeker/starseeker/internal/api/response"
	"github.com/starseeker/starseeker/internal/network"
)

// serve runs write behind the RequestID middleware with the given inbound request ID.
func serve(t *testing.T, method, path, requestID string, write http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)
	if requestID != "" {
		req.Header.Set(middleware.RequestIDHeader, requestID)
	}
	rec := httptest.NewRecorder()
	middleware.RequestID(write).ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p models.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return p
}

func TestJSON_WritesGateWithRequestID(t *testing.T) {
	rec := serve(t, http.MethodGet, "/v1/gates/SOL", "req-sol", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, models.GateView{Gate: network.Gate{Code: "SOL", Name: "Sol"}, IsFavourite: true})
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "req-sol", rec.Header().Get(middleware.RequestIDHeader))

	assert.JSONEq(t, `{"code":"SOL","name":"Sol","isFavorite":true}`, rec.Body.String())
}

func TestJSON_GeneratesRequestIDWhenAbsent(t *testing.T) {
	rec := serve(t, http.MethodGet, "/v1/gates", "", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, nil)
	})

	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	assert.Zero(t, rec.Body.Len())
}

func TestJSON_OutsideMiddlewareHasNoRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	response.JSON(rec, httptest.NewRequest(http.MethodGet, "/v1/gates", http.NoBody), http.StatusOK, []string{})

	assert.Empty(t, rec.Header().Get(middleware.RequestIDHeader))
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestNoContent(t *testing.T) {
	rec := serve(t, http.MethodDelete, "/v1/favourites/gates/SOL", "req-del", func(w http.ResponseWriter, r *http.Request) {
		response.NoContent(w, r)
	})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "req-del", rec.Header().Get(middleware.RequestIDHeader))
	assert.Zero(t, rec.Body.Len())
}

func TestProblemHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, *http.Request)
		status int
		typ    string
		detail string
	}{
		{
			name:   "bad request",
			write:  func(w http.ResponseWriter, r *http.Request) { response.BadRequest(w, r, "invalid query parameters", nil) },
			status: http.StatusBadRequest, typ: models.ProblemTypeValidation, detail: "invalid query parameters",
		},
		{
			name:   "not found",
			write:  func(w http.ResponseWriter, r *http.Request) { response.NotFound(w, r, "gate not found") },
			status: http.StatusNotFound, typ: models.ProblemTypeNotFound, detail: "gate not found",
		},
		{
			name:   "too many requests",
			write:  func(w http.ResponseWriter, r *http.Request) { response.TooManyRequests(w, r, "slow down") },
			status: http.StatusTooManyRequests, typ: models.ProblemTypeTooManyRequests, detail: "slow down",
		},
		{
			name:   "internal",
			write:  func(w http.ResponseWriter, r *http.Request) { response.InternalError(w, r, "boom") },
			status: http.StatusInternalServerError, typ: models.ProblemTypeInternal, detail: "boom",
		},
		{
			name:   "unavailable",
			write:  func(w http.ResponseWriter, r *http.Request) { response.ServiceUnavailable(w, r, "gates offline") },
			status: http.StatusServiceUnavailable, typ: models.ProblemTypeUnavailable, detail: "gates offline",
		},
		{
			name:   "bad gateway",
			write:  func(w http.ResponseWriter, r *http.Request) { response.BadGateway(w, r, "bad key") },
			status: http.StatusBadGateway, typ: models.ProblemTypeBadGateway, detail: "bad key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, http.MethodGet, "/v1/routes", "trace-1", tt.write)

			assert.Equal(t, tt.status, rec.Code)
			p := decodeProblem(t, rec)
			assert.Equal(t, tt.typ, p.Type)
			assert.Equal(t, tt.status, p.Status)
			assert.Equal(t, tt.detail, p.Detail)
			assert.Equal(t, "/v1/routes", p.Instance)
			assert.Equal(t, "trace-1", p.TraceID)
		})
	}
}

func TestFromError_MapsNetworkErrors(t *testing.T) {
	gatewayErr := func(sentinel error) error {
		return &network.Error{Provider: "hstc", Message: "failed", Err: sentinel}
	}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"validation", &network.ValidationError{Errors: []network.FieldError{{Field: "from", Message: "is required"}}}, http.StatusBadRequest, models.ProblemTypeValidation},
		{"bare validation", fmt.Errorf("distance: %w", network.ErrValidation), http.StatusBadRequest, models.ProblemTypeValidation},
		{"gate not found", gatewayErr(network.ErrGateNotFound), http.StatusNotFound, models.ProblemTypeNotFound},
		{"no route", gatewayErr(network.ErrNoRouteFound), http.StatusNotFound, models.ProblemTypeNotFound},
		{"rate limited", gatewayErr(network.ErrRateLimited), http.StatusTooManyRequests, models.ProblemTypeTooManyRequests},
		{"timeout", gatewayErr(network.ErrTimeout), http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
		{"unavailable", gatewayErr(network.ErrUnavailable), http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
		{"unauthorized", gatewayErr(network.ErrUnauthorized), http.StatusBadGateway, models.ProblemTypeBadGateway},
		{"invalid response", gatewayErr(network.ErrInvalidResponse), http.StatusBadGateway, models.ProblemTypeBadGateway},
		{"wrapped", fmt.Errorf("list gates: %w", gatewayErr(network.ErrUnavailable)), http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, models.ProblemTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, http.MethodGet, "/v1/gates", "", func(w http.ResponseWriter, r *http.Request) {
				response.FromError(w, r, tt.err)
			})

			assert.Equal(t, tt.wantStatus, rec.Code)
			p := decodeProblem(t, rec)
			assert.Equal(t, tt.wantType, p.Type)
			assert.Equal(t, "/v1/gates", p.Instance)
		})
	}
}

func TestFromError_ValidationFields(t *testing.T) {
	rec := serve(t, http.MethodGet, "/v1/routes", "", func(w http.ResponseWriter, r *http.Request) {
		response.FromError(w, r, &network.ValidationError{Errors: []network.FieldError{
			{Field: "from", Message: "is required"},
			{Field: "to", Message: "is required"},
		}})
	})

	p := decodeProblem(t, rec)
	require.Len(t, p.Errors, 2)
	assert.Equal(t, "from", p.Errors[0].Field)
	assert.Equal(t, "to", p.Errors[1].Field)
	assert.Equal(t, "INVALID", p.Errors[0].Code)
}
