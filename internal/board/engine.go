package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/TonyTwoStep/mini-metro-display/internal/models"
	"github.com/TonyTwoStep/mini-metro-display/internal/telemetry"
	"github.com/TonyTwoStep/mini-metro-display/internal/transit"
)

// ScheduleSource abstracts the scheduled departures provider
type ScheduleSource interface {
	Departures(ctx context.Context, stopID string, window time.Duration) ([]models.DepartureRecord, error)
}

// RealtimeSource abstracts the live estimates provider
type RealtimeSource interface {
	DeparturesForStop(ctx context.Context, stopID string) ([]models.DepartureRecord, error)
}

// rateLimitBackoffFactor stretches the refresh interval after the provider
// throttles us
const rateLimitBackoffFactor = 4

// EngineConfig carries the refresh parameters the engine runs with
type EngineConfig struct {
	Origin          models.Coordinate
	RadiusMeters    float64
	RefreshInterval time.Duration
	TickTimeout     time.Duration
	DepartureWindow time.Duration
	MaxEntries      int

	// ReindexEvery is how many ticks the resolved stop set is reused
	// before a full re-resolution picks up newly added routes
	ReindexEvery int
}

// Engine owns the refresh state: the resolved index, the latest snapshot,
// and the sources it polls. It is the single owner object the refresh loop
// runs against; there is no ambient global state.
type Engine struct {
	cfg     EngineConfig
	stopSrc StopSource
	sched   ScheduleSource
	rt      RealtimeSource
	rec     *Reconciler
	metrics *telemetry.Metrics

	// Now is injectable for tests; defaults to time.Now
	Now func() time.Time

	mu      sync.RWMutex
	snap    models.Snapshot
	limited bool

	idx             *Index
	ticksUntilReidx int
}

// NewEngine wires an engine from its sources. metrics may be nil when
// telemetry is not wanted (tests).
func NewEngine(cfg EngineConfig, stops StopSource, sched ScheduleSource, rt RealtimeSource, metrics *telemetry.Metrics) *Engine {
	return &Engine{
		cfg:     cfg,
		stopSrc: stops,
		sched:   sched,
		rt:      rt,
		rec:     NewReconciler(),
		metrics: metrics,
		Now:     time.Now,
	}
}

// Snapshot returns the latest board snapshot. Snapshots are immutable;
// callers may hold them across ticks.
func (e *Engine) Snapshot() models.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snap
}

func (e *Engine) swap(snap models.Snapshot, limited bool) {
	e.mu.Lock()
	e.snap = snap
	e.limited = limited
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.BoardDepartures.Set(float64(len(snap.Departures)))
		result := "ok"
		if snap.Unavailable {
			result = "unavailable"
		}
		e.metrics.TicksTotal.WithLabelValues(result).Inc()
	}
}

func (e *Engine) rateLimited() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.limited
}

// stopResult is one stop's reconciled outcome within a tick
type stopResult struct {
	stopID     string
	departures []models.CanonicalDeparture
	err        error
}

// Tick runs one full refresh cycle: resolve (or reuse) the stop index, fetch
// and reconcile every stop in parallel, and atomically swap in the new
// snapshot. Per-stop failures are isolated; only a failed index resolution
// or a fully failed fetch round marks the board unavailable. The previous
// snapshot's departures ride along on an unavailable snapshot so the display
// can show stale-but-marked data instead of a blank board.
func (e *Engine) Tick(ctx context.Context) error {
	started := e.Now()
	if e.metrics != nil {
		defer func() {
			e.metrics.TickSeconds.Observe(time.Since(started).Seconds())
		}()
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.TickTimeout)
	defer cancel()

	if e.idx == nil || e.ticksUntilReidx <= 0 {
		idx, err := ResolveIndex(ctx, e.stopSrc, e.cfg.Origin, e.cfg.RadiusMeters)
		if err != nil {
			slog.Error("stop index resolution failed", "err", err)
			e.swap(UnavailableSnapshot("stop discovery failed", e.Snapshot(), started), errors.Is(err, transit.ErrRateLimited))
			return fmt.Errorf("resolving index: %w", err)
		}
		e.idx = idx
		e.ticksUntilReidx = e.cfg.ReindexEvery
		if e.metrics != nil {
			e.metrics.StopsMonitored.Set(float64(len(idx.Stops)))
		}
		slog.Info("stop index resolved", "stops", len(idx.Stops), "routes", len(idx.Routes))
	} else {
		e.ticksUntilReidx--
	}

	idx := e.idx
	if len(idx.Stops) == 0 {
		// A successful empty resolution really is "no stops nearby"
		e.swap(BuildSnapshot(nil, nil, e.cfg.MaxEntries, started), false)
		return nil
	}

	results := make(chan stopResult, len(idx.Stops))
	var wg sync.WaitGroup
	for _, stop := range idx.Stops {
		wg.Add(1)
		go func(stop models.Stop) {
			defer wg.Done()
			results <- e.fetchStop(ctx, stop, started)
		}(stop)
	}
	wg.Wait()
	close(results)

	perStop := make(map[string][]models.CanonicalDeparture, len(idx.Stops))
	failed := 0
	limited := false
	for res := range results {
		if res.err != nil {
			failed++
			if errors.Is(res.err, transit.ErrRateLimited) {
				limited = true
			}
			slog.Warn("stop fetch failed", "stop_id", res.stopID, "err", res.err)
			continue
		}
		perStop[res.stopID] = res.departures
	}

	if failed == len(idx.Stops) {
		e.swap(UnavailableSnapshot("all stop fetches failed", e.Snapshot(), started), limited)
		return nil
	}

	snap := BuildSnapshot(idx.Stops, perStop, e.cfg.MaxEntries, started)
	e.swap(snap, limited)
	slog.Info("board refreshed",
		"stops", len(idx.Stops),
		"failed_stops", failed,
		"departures", len(snap.Departures),
	)
	return nil
}

// fetchStop retrieves both departure sources for one stop and reconciles
// them. Pure with respect to its siblings; safe to run in parallel.
func (e *Engine) fetchStop(ctx context.Context, stop models.Stop, now time.Time) stopResult {
	scheduled, err := e.sched.Departures(ctx, stop.ID, e.cfg.DepartureWindow)
	if err != nil {
		if e.metrics != nil {
			e.metrics.FetchErrorsTotal.WithLabelValues("scheduled").Inc()
		}
		return stopResult{stopID: stop.ID, err: err}
	}

	var realtime []models.DepartureRecord
	if e.rt != nil {
		realtime, err = e.rt.DeparturesForStop(ctx, stop.ID)
		if err != nil {
			// Scheduled data alone still makes a truthful board
			if e.metrics != nil {
				e.metrics.FetchErrorsTotal.WithLabelValues("realtime").Inc()
			}
			slog.Warn("realtime fetch failed, serving schedule only", "stop_id", stop.ID, "err", err)
			realtime = nil
		}
	}

	departures := e.rec.Reconcile(stop, scheduled, realtime, now)
	e.enrichFromIndex(departures)
	return stopResult{stopID: stop.ID, departures: departures}
}

// enrichFromIndex back-fills route names and modes that the realtime feed
// does not carry
func (e *Engine) enrichFromIndex(departures []models.CanonicalDeparture) {
	for i, dep := range departures {
		route, ok := e.idx.RouteByID(dep.RouteID)
		if !ok {
			continue
		}
		if dep.RouteName == "" || dep.RouteName == dep.RouteID {
			departures[i].RouteName = route.DisplayName()
		}
		if dep.Mode == "" || dep.Mode == models.ModeUnknown {
			departures[i].Mode = route.Mode
		}
	}
}

// Run drives the periodic refresh loop, one tick at a time, until the
// context is cancelled. After a rate-limited tick the wait stretches beyond
// the normal interval before polling again.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Tick(ctx); err != nil {
		slog.Error("initial refresh failed", "err", err)
	}

	timer := time.NewTimer(e.nextDelay())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			if err := e.Tick(ctx); err != nil {
				slog.Error("refresh tick failed", "err", err)
			}
			timer.Reset(e.nextDelay())
		}
	}
}

func (e *Engine) nextDelay() time.Duration {
	if e.rateLimited() {
		slog.Warn("provider rate limited, backing off",
			"delay", e.cfg.RefreshInterval*rateLimitBackoffFactor)
		return e.cfg.RefreshInterval * rateLimitBackoffFactor
	}
	return e.cfg.RefreshInterval
}
