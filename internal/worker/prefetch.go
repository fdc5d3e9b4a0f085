package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/starseeker/starseeker/internal/favourites"
	"github.com/starseeker/starseeker/internal/network"
)

// Network is the part of the request cache the job warms.
type Network interface {
	ListGates(ctx context.Context) ([]network.Gate, error)
	GetGate(ctx context.Context, code string) (*network.Gate, error)
	FindRoutes(ctx context.Context, from, to string) ([]network.Route, error)
}

// GateFavourites lists the favourite gates to warm.
type GateFavourites interface {
	Favourites() []favourites.FavouriteGate
}

// RouteFavourites lists the favourite routes to warm.
type RouteFavourites interface {
	Favourites() []favourites.SavedRoute
}

// Target kinds.
const (
	TargetGates = "gates"
	TargetGate  = "gate"
	TargetRoute = "route"
)

// Target is a single lookup the job performs.
type Target struct {
	Kind string
	Code string // gate code for TargetGate
	From string // route endpoints for TargetRoute
	To   string
}

func (t Target) String() string {
	switch t.Kind {
	case TargetGate:
		return t.Kind + ":" + t.Code
	case TargetRoute:
		return t.Kind + ":" + t.From + ":" + t.To
	default:
		return t.Kind
	}
}

// PrefetchJobConfig holds configuration for creating a PrefetchJob.
type PrefetchJobConfig struct {
	Config  PrefetchConfig
	Logger  zerolog.Logger
	Network Network
	Gates   GateFavourites  // optional
	Routes  RouteFavourites // optional
}

// PrefetchJob keeps the request cache warm for the gate list and the user's favourites.
type PrefetchJob struct {
	config  PrefetchConfig
	logger  zerolog.Logger
	network Network
	gates   GateFavourites
	routes  RouteFavourites

	mu      sync.RWMutex
	metrics PrefetchMetrics
}

// PrefetchMetrics accumulates statistics across runs.
type PrefetchMetrics struct {
	Runs                int64
	Successful          int64
	Failed              int64
	LastRunAt           time.Time
	LastRunDuration     time.Duration
	TotalDuration       time.Duration
	LastRunFailureCount int
}

// PrefetchResult contains the result of one run.
type PrefetchResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Total      int
	Successful int
	Failed     int
	Errors     []PrefetchError
}

// PrefetchError records a failed lookup.
type PrefetchError struct {
	Target Target
	Error  string
}

// NewPrefetchJob creates a new prefetch job.
func NewPrefetchJob(cfg PrefetchJobConfig) *PrefetchJob {
	return &PrefetchJob{
		config:  cfg.Config.withDefaults(),
		logger:  cfg.Logger,
		network: cfg.Network,
		gates:   cfg.Gates,
		routes:  cfg.Routes,
	}
}

// Targets returns the lookups the next run will perform. Favourites are read at call
// time so newly added favourites are picked up by the next run.
func (j *PrefetchJob) Targets() []Target {
	var targets []Target
	if j.config.Gates {
		targets = append(targets, Target{Kind: TargetGates})
	}

	if j.config.FavouriteGates && j.gates != nil {
		for _, g := range j.gates.Favourites() {
			targets = append(targets, Target{Kind: TargetGate, Code: g.Code})
		}
	}

	if j.config.FavouriteRoutes && j.routes != nil {
		seen := make(map[string]bool)
		for _, r := range j.routes.Favourites() {
			t := Target{Kind: TargetRoute, From: r.From.Code, To: r.To.Code}
			if seen[t.String()] {
				continue
			}
			seen[t.String()] = true
			targets = append(targets, t)
		}
	}
	return targets
}

// Run performs one warming pass with a bounded worker pool.
func (j *PrefetchJob) Run(ctx context.Context) *PrefetchResult {
	startTime := time.Now()
	targets := j.Targets()
	result := &PrefetchResult{
		StartTime: startTime,
		Total:     len(targets),
	}

	j.logger.Info().
		Int("targets", result.Total).
		Int("concurrency", j.config.Concurrency).
		Msg("starting prefetch job")

	targetsChan := make(chan Target, len(targets))
	resultsChan := make(chan targetResult, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.prefetchWorker(ctx, targetsChan, resultsChan)
		}()
	}

	for _, t := range targets {
		targetsChan <- t
	}
	close(targetsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for tr := range resultsChan {
		if tr.err == nil {
			result.Successful++
			continue
		}
		result.Failed++
		result.Errors = append(result.Errors, PrefetchError{Target: tr.target, Error: tr.err.Error()})
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)
	j.updateMetrics(result)

	event := j.logger.Info()
	if result.Failed > 0 {
		event = j.logger.Warn()
	}
	event.
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("prefetch job completed")

	return result
}

// Start runs the job immediately and then on every interval until ctx is cancelled.
func (j *PrefetchJob) Start(ctx context.Context) {
	j.Run(ctx)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("prefetch job stopped")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

type targetResult struct {
	target Target
	err    error
}

func (j *PrefetchJob) prefetchWorker(ctx context.Context, targets <-chan Target, results chan<- targetResult) {
	for t := range targets {
		if err := ctx.Err(); err != nil {
			results <- targetResult{target: t, err: err}
			continue
		}
		results <- targetResult{target: t, err: j.prefetch(ctx, t)}
	}
}

func (j *PrefetchJob) prefetch(ctx context.Context, t Target) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	var err error
	switch t.Kind {
	case TargetGates:
		_, err = j.network.ListGates(ctx)
	case TargetGate:
		_, err = j.network.GetGate(ctx, t.Code)
	case TargetRoute:
		_, err = j.network.FindRoutes(ctx, t.From, t.To)
	}

	if err != nil {
		j.logger.Debug().Err(err).Str("target", t.String()).Msg("prefetch failed")
	}
	return err
}

func (j *PrefetchJob) updateMetrics(result *PrefetchResult) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.metrics.Runs++
	j.metrics.Successful += int64(result.Successful)
	j.metrics.Failed += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
	j.metrics.LastRunFailureCount = result.Failed
}

// Metrics returns a copy of the accumulated metrics.
func (j *PrefetchJob) Metrics() PrefetchMetrics {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.metrics
}
