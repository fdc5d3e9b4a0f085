package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/starseeker/starseeker/internal/api/models"
)

// RateLimit is a sliding-window request budget per client IP.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

var (
	// LocalReads covers endpoints answered from the cache or local storage.
	LocalReads = RateLimit{Requests: 100, Window: time.Minute}

	// UpstreamReads covers endpoints that may call the gate network API on a cache miss.
	UpstreamReads = RateLimit{Requests: 30, Window: time.Minute}
)

// PerMinute allows n requests a minute. n <= 0 means LocalReads.
func PerMinute(n int) RateLimit {
	if n <= 0 {
		return LocalReads
	}
	return RateLimit{Requests: n, Window: time.Minute}
}

// ByIP enforces the budget per client address as resolved by chi's RealIP. Rejected
// requests get a 429 problem with Retry-After set to the window length, since httprate
// does not expose when the window resets.
func (l RateLimit) ByIP() func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(l.Window.Seconds()))
	return httprate.Limit(l.Requests, l.Window,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", retryAfter)
			models.KindTooManyRequests.New(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.").
				At(r.URL.Path).Write(w)
		}),
	)
}
