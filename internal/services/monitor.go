// Package services contains the monitoring controller that drives hazard
// detection for an active navigation session.
package services

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/truckpilot/hazardwatch/internal/config"
	"github.com/truckpilot/hazardwatch/internal/lib/geo"
	"github.com/truckpilot/hazardwatch/internal/lib/hazard"
)

// alertDistanceTolerance is the distance delta under which a repeated alert
// of the same kind is treated as an update to the on-screen warning rather
// than a new alert.
const alertDistanceTolerance = 100.0

// AlertSink receives hazard alerts from the monitor. Implemented by the
// host application's warning presentation layer. Callbacks run on the
// monitor's serialized execution context and must not call back into the
// monitor.
type AlertSink interface {
	// OnNewAlert is called when a hazard not currently on screen is found.
	OnNewAlert(alert hazard.Alert)
	// OnAlertUpdated is called when the active hazard's distance changed
	// but the warning itself should stay up.
	OnAlertUpdated(alert hazard.Alert)
}

// RestrictionFetcher retrieves restriction records near a route.
type RestrictionFetcher interface {
	FetchRestrictions(ctx context.Context, route []geo.Point) ([]hazard.RestrictionRecord, error)
}

// State is the monitor lifecycle state.
type State int

const (
	Idle State = iota
	Monitoring
)

// Monitor owns the polling cadence for one navigation session: it fetches
// restrictions once per route, re-evaluates hazards on position updates and
// on a fixed-interval timer, and applies alert deduplication.
//
// All state is guarded by one mutex; the async restriction fetch is the
// only suspending operation and its completion is checked against a
// generation counter so a fetch that outlives its session is discarded.
type Monitor struct {
	fetcher RestrictionFetcher
	sink    AlertSink
	cfg     config.MonitoringConfig
	logger  *zap.Logger

	mu           sync.Mutex
	state        State
	paused       bool
	enabled      bool
	generation   uint64
	route        []geo.Point
	records      []hazard.RestrictionRecord
	matcher      *hazard.Matcher
	lastPosition geo.Point
	lastEvalAt   geo.Point
	hasEval      bool
	lastAlert    *hazard.Alert
	stopChan     chan struct{}
	cancelFetch  context.CancelFunc
}

// NewMonitor creates a Monitor. A nil logger disables logging.
func NewMonitor(fetcher RestrictionFetcher, sink AlertSink, cfg config.MonitoringConfig, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		fetcher: fetcher,
		sink:    sink,
		cfg:     cfg,
		logger:  logger,
		enabled: cfg.HazardWarningsEnabled,
	}
}

// Status returns the current lifecycle state.
func (m *Monitor) Status() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetWarningsEnabled flips the hazard warning toggle. Turning warnings off
// makes the whole subsystem inert; turning them back on takes effect on the
// next Start (a session stopped mid-flight stays stopped).
func (m *Monitor) SetWarningsEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// Start begins monitoring a route from the given position with the given
// vehicle profile. It triggers one restriction fetch for the whole route,
// runs an evaluation cycle when the fetch lands, and starts the periodic
// timer. A Start while already monitoring replaces the session.
func (m *Monitor) Start(position geo.Point, route []geo.Point, profile hazard.VehicleProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		m.logger.Debug("hazard warnings disabled, not starting monitor")
		return
	}

	if m.state == Monitoring {
		m.teardownLocked()
	}

	m.generation++
	gen := m.generation
	m.state = Monitoring
	m.route = route
	m.records = nil
	m.matcher = hazard.NewMatcher(profile, m.cfg.WarningDistanceMeters)
	m.lastPosition = position
	m.hasEval = false
	m.lastAlert = nil
	m.paused = false
	m.stopChan = make(chan struct{})

	fetchCtx, cancel := context.WithCancel(context.Background())
	m.cancelFetch = cancel

	m.logger.Info("monitoring started",
		zap.Int("route_vertices", len(route)),
		zap.Float64("warning_distance_m", m.cfg.WarningDistanceMeters))

	go m.fetch(fetchCtx, gen, route)
	go m.pollLoop(gen, m.stopChan)
}

// UpdateLocation feeds a new vehicle position. Movement below the
// configured threshold since the last evaluation is a no-op beyond
// recording the position for timer-driven cycles.
func (m *Monitor) UpdateLocation(position geo.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Monitoring {
		return
	}

	m.lastPosition = position
	if m.hasEval && geo.Distance(position, m.lastEvalAt) < m.cfg.MovementThresholdMeters {
		return
	}

	m.evaluateLocked()
}

// Pause suspends evaluation while the host application is backgrounded.
// The session, cache and timer goroutine stay alive.
func (m *Monitor) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

// Resume re-enables evaluation and immediately runs one cycle so a hazard
// passed while backgrounded is reported without waiting for the next tick.
func (m *Monitor) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Monitoring || !m.paused {
		return
	}
	m.paused = false
	m.evaluateLocked()
}

// Stop ends the session: the timer is cancelled synchronously, the
// in-flight fetch is cancelled, and all session state is cleared so a
// subsequent Start begins fresh.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Monitoring {
		return
	}
	m.teardownLocked()
	m.logger.Info("monitoring stopped")
}

// teardownLocked cancels timers and fetches and resets session state.
// Bumping the generation makes any in-flight fetch completion stale.
func (m *Monitor) teardownLocked() {
	m.generation++
	if m.stopChan != nil {
		close(m.stopChan)
		m.stopChan = nil
	}
	if m.cancelFetch != nil {
		m.cancelFetch()
		m.cancelFetch = nil
	}
	m.state = Idle
	m.route = nil
	m.records = nil
	m.matcher = nil
	m.lastAlert = nil
	m.hasEval = false
	m.paused = false
}

// fetch retrieves restrictions for the route and commits them if the
// session is still the one that started the fetch.
func (m *Monitor) fetch(ctx context.Context, gen uint64, route []geo.Point) {
	records, err := m.fetcher.FetchRestrictions(ctx, route)
	if err != nil {
		// Cancelled fetch: the session is gone, nothing to commit.
		m.logger.Debug("restriction fetch aborted", zap.Error(err))
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generation != gen {
		m.logger.Debug("discarding stale restriction fetch",
			zap.Uint64("fetch_generation", gen),
			zap.Uint64("current_generation", m.generation))
		return
	}

	m.records = records
	m.logger.Info("restriction cache populated", zap.Int("records", len(records)))
	m.evaluateLocked()
}

// pollLoop re-runs evaluation at the configured interval using the last
// known position, so hazards are refreshed even when the vehicle sits still
// or location updates stall.
func (m *Monitor) pollLoop(gen uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			if m.generation == gen && m.state == Monitoring {
				m.evaluateLocked()
			}
			m.mu.Unlock()
		}
	}
}

// evaluateLocked runs one evaluation cycle: route window, restriction
// matcher, geometry fallback, then dedup against the previous alert.
// Callers must hold the mutex.
func (m *Monitor) evaluateLocked() {
	if !m.enabled || m.paused || m.state != Monitoring {
		return
	}

	m.lastEvalAt = m.lastPosition
	m.hasEval = true

	window := geo.RouteWindow(m.lastPosition, m.route, m.cfg.LookaheadMeters)
	if len(window) == 0 {
		return
	}

	alert := m.matcher.Match(m.lastPosition, window, m.records)
	if alert == nil {
		alert = hazard.DetectSharpTurn(m.lastPosition, window)
	}
	if alert == nil {
		return
	}

	m.forwardLocked(*alert)
}

// forwardLocked applies the deduplication policy: the same kind within the
// distance tolerance of the previous alert refreshes the existing warning,
// anything else is a new alert.
func (m *Monitor) forwardLocked(alert hazard.Alert) {
	previous := m.lastAlert
	m.lastAlert = &alert

	if previous != nil && previous.Kind == alert.Kind &&
		math.Abs(previous.DistanceMeters-alert.DistanceMeters) <= alertDistanceTolerance {
		m.sink.OnAlertUpdated(alert)
		return
	}

	m.logger.Info("hazard detected",
		zap.String("kind", alert.Kind.Label()),
		zap.Float64("distance_m", alert.DistanceMeters),
		zap.String("road", alert.RoadName),
		zap.Bool("critical", alert.Kind.Critical()))
	m.sink.OnNewAlert(alert)
}
