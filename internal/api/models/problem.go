package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC7807 body. Every error the API returns is one, served as
// application/problem+json.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError points at one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const problemBase = "https://starseeker.dev/problems/"

// Problem type URIs.
const (
	ProblemTypeValidation       = problemBase + "validation-error"
	ProblemTypeNotFound         = problemBase + "not-found"
	ProblemTypeTooManyRequests  = problemBase + "too-many-requests"
	ProblemTypeInternal         = problemBase + "internal-error"
	ProblemTypeUnavailable      = problemBase + "service-unavailable"
	ProblemTypeBadGateway       = problemBase + "bad-gateway"
	ProblemTypeTLSRequired      = problemBase + "tls-required"
	ProblemTypeUnsupportedMedia = problemBase + "unsupported-media-type"
)

// Kind fixes the type, title and status of a family of problems.
type Kind struct {
	Type   string
	Title  string
	Status int
}

// Problem kinds the API emits.
var (
	KindValidation       = Kind{ProblemTypeValidation, "Validation error", http.StatusBadRequest}
	KindNotFound         = Kind{ProblemTypeNotFound, "Not found", http.StatusNotFound}
	KindTooManyRequests  = Kind{ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests}
	KindInternal         = Kind{ProblemTypeInternal, "Internal server error", http.StatusInternalServerError}
	KindUnavailable      = Kind{ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable}
	KindBadGateway       = Kind{ProblemTypeBadGateway, "Bad gateway", http.StatusBadGateway}
	KindTLSRequired      = Kind{ProblemTypeTLSRequired, "TLS required", http.StatusForbidden}
	KindUnsupportedMedia = Kind{ProblemTypeUnsupportedMedia, "Unsupported media type", http.StatusUnsupportedMediaType}
)

// New builds a problem of this kind for the request traced by traceID.
func (k Kind) New(traceID, detail string) *Problem {
	return &Problem{
		Type:    k.Type,
		Title:   k.Title,
		Status:  k.Status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// NewValidation is a 400 carrying the offending fields.
func NewValidation(traceID, detail string, fields []FieldError) *Problem {
	p := KindValidation.New(traceID, detail)
	p.Errors = fields
	return p
}

// At sets the request path the problem occurred on.
func (p *Problem) At(path string) *Problem {
	p.Instance = path
	return p
}

// Write sends the problem with its status and echoes the trace id as X-Request-Id.
func (p *Problem) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
