// Package response writes JSON bodies and RFC7807 problems for the gate network API
// handlers, and maps network errors onto HTTP statuses.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/starseeker/starseeker/internal/api/middleware"
	"github.com/starseeker/starseeker/internal/api/models"
	"github.com/starseeker/starseeker/internal/network"
)

// JSON writes data with status. A nil data writes headers only.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter, r *http.Request) {
	setRequestID(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func writeProblem(w http.ResponseWriter, r *http.Request, p *models.Problem) {
	p.At(r.URL.Path).Write(w)
}

func traceID(r *http.Request) string { return middleware.GetRequestID(r.Context()) }

// BadRequest writes a 400 listing the invalid fields, if any.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, fields []models.FieldError) {
	writeProblem(w, r, models.NewValidation(traceID(r), detail, fields))
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, models.KindNotFound.New(traceID(r), detail))
}

// TooManyRequests writes a 429.
func TooManyRequests(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, models.KindTooManyRequests.New(traceID(r), detail))
}

// InternalError writes a 500.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, models.KindInternal.New(traceID(r), detail))
}

// ServiceUnavailable writes a 503.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, models.KindUnavailable.New(traceID(r), detail))
}

// BadGateway writes a 502, used when the gate network API rejects our credentials or
// answers with something unusable.
func BadGateway(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, models.KindBadGateway.New(traceID(r), detail))
}

// FromError maps a gate network error onto the matching Problem response.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *network.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make([]models.FieldError, 0, len(verr.Errors))
		for _, fe := range verr.Errors {
			fields = append(fields, models.FieldError{Field: fe.Field, Message: fe.Message, Code: "INVALID"})
		}
		BadRequest(w, r, "request validation failed", fields)
	case errors.Is(err, network.ErrValidation):
		BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, network.ErrGateNotFound):
		NotFound(w, r, "gate not found")
	case errors.Is(err, network.ErrNoRouteFound):
		NotFound(w, r, "no route found between the given gates")
	case errors.Is(err, network.ErrRateLimited):
		TooManyRequests(w, r, "the gate network API rate limit was exceeded, try again later")
	case errors.Is(err, network.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		ServiceUnavailable(w, r, "the gate network API timed out")
	case errors.Is(err, network.ErrUnavailable):
		ServiceUnavailable(w, r, "the gate network API is unavailable")
	case errors.Is(err, network.ErrUnauthorized):
		BadGateway(w, r, "the gate network API rejected the configured credentials")
	case errors.Is(err, network.ErrInvalidResponse):
		BadGateway(w, r, "the gate network API returned an invalid response")
	default:
		InternalError(w, r, "an unexpected error occurred")
	}
}

func setRequestID(w http.ResponseWriter, r *http.Request) {
	if id := traceID(r); id != "" {
		w.Header().Set(middleware.RequestIDHeader, id)
	}
}
