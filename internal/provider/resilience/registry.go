package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Level summarizes how usable an upstream is.
type Level int

// Health levels, from best to worst.
const (
	LevelHealthy Level = iota
	LevelDegraded
	LevelUnhealthy
)

func (l Level) String() string {
	switch l {
	case LevelHealthy:
		return "healthy"
	case LevelDegraded:
		return "degraded"
	default:
		return "unhealthy"
	}
}

// Health is a point-in-time view of one upstream. Zero times mean "never".
type Health struct {
	Name                string
	CircuitState        gobreaker.State
	Counts              gobreaker.Counts
	Successes           int64
	Failures            int64
	ConsecutiveFailures int
	LastSuccessAt       time.Time
	LastFailureAt       time.Time
	LastError           string
}

// Level reports an open circuit as unhealthy. A half-open circuit, or a closed one whose
// most recent call failed, is degraded.
func (h Health) Level() Level {
	switch {
	case h.CircuitState == gobreaker.StateOpen:
		return LevelUnhealthy
	case h.CircuitState == gobreaker.StateHalfOpen, h.ConsecutiveFailures > 0:
		return LevelDegraded
	default:
		return LevelHealthy
	}
}

// breaker is the circuit breaker view the registry reads.
type breaker interface {
	CircuitBreakerState() gobreaker.State
	CircuitBreakerCounts() gobreaker.Counts
}

// Registry collects the outcome of every upstream call so the status endpoint can report
// on the gate network API without issuing requests of its own.
type Registry struct {
	now func() time.Time

	mu       sync.RWMutex
	upstream map[string]*upstream
}

type upstream struct {
	breaker             breaker
	successes           int64
	failures            int64
	consecutiveFailures int
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastError           string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		now:      time.Now,
		upstream: make(map[string]*upstream),
	}
}

// SetClock overrides the clock used for timestamps, for tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Register tracks b under name. Registering a name again replaces its breaker and keeps
// the recorded history.
func (r *Registry) Register(name string, b breaker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.upstream[name]; ok {
		u.breaker = b
		return
	}
	r.upstream[name] = &upstream{breaker: b}
}

// Observe records the outcome of one call. Unknown names are ignored.
func (r *Registry) Observe(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.upstream[name]
	if !ok {
		return
	}
	if err == nil {
		u.successes++
		u.consecutiveFailures = 0
		u.lastSuccessAt = r.now()
		return
	}
	u.failures++
	u.consecutiveFailures++
	u.lastFailureAt = r.now()
	u.lastError = err.Error()
}

// Health returns the state of one upstream.
func (r *Registry) Health(name string) (Health, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.upstream[name]
	if !ok {
		return Health{}, false
	}
	return u.health(name), true
}

// Snapshot returns the state of every upstream ordered by name.
func (r *Registry) Snapshot() []Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Health, 0, len(r.upstream))
	for name, u := range r.upstream {
		out = append(out, u.health(name))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered upstream names in order.
func (r *Registry) Names() []string {
	snap := r.Snapshot()
	names := make([]string, len(snap))
	for i, h := range snap {
		names[i] = h.Name
	}
	return names
}

func (u *upstream) health(name string) Health {
	h := Health{
		Name:                name,
		Successes:           u.successes,
		Failures:            u.failures,
		ConsecutiveFailures: u.consecutiveFailures,
		LastSuccessAt:       u.lastSuccessAt,
		LastFailureAt:       u.lastFailureAt,
		LastError:           u.lastError,
	}
	if u.breaker != nil {
		h.CircuitState = u.breaker.CircuitBreakerState()
		h.Counts = u.breaker.CircuitBreakerCounts()
	}
	return h
}
