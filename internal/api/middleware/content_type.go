package middleware

import (
	"mime"
	"net/http"

	"github.com/starseeker/starseeker/internal/api/models"
)

// ContentTypeJSON defaults the response Content-Type to application/json. Handlers may
// override it.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// RequireJSON rejects POST, PUT and PATCH bodies that declare a non-JSON media type.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if ct := r.Header.Get("Content-Type"); ct != "" {
				mediaType, _, err := mime.ParseMediaType(ct)
				if err != nil || mediaType != "application/json" {
					models.KindUnsupportedMedia.New(GetRequestID(r.Context()), "Content-Type must be application/json").
						At(r.URL.Path).Write(w)
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
