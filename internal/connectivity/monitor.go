// Package connectivity tracks backend reachability. State changes are
// debounced: subscribers are notified only when the effective boolean
// ("connected and not explicitly unreachable") differs from the last
// emitted value, so a flapping link does not churn consumers.
package connectivity

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the last known reachability of the backend.
type State string

const (
	StateUnknown State = "unknown"
	StateOnline  State = "online"
	StateOffline State = "offline"
)

const defaultProbeTimeout = 5 * time.Second

var errMissingProber = errors.New("connectivity: prober is required")

// Prober performs an active reachability check. The api client
// satisfies this with its Health endpoint.
type Prober interface {
	Health(ctx context.Context) error
}

// MonitorConfig configures the connectivity monitor.
type MonitorConfig struct {
	Prober       Prober
	ProbeTimeout time.Duration
	Logger       *zap.Logger
}

// Monitor owns the reachability state. Events arrive either from an
// external source via ReportReachability or from the Run polling loop.
type Monitor struct {
	prober       Prober
	probeTimeout time.Duration
	logger       *zap.Logger

	mu          sync.RWMutex
	lastEmitted State
	subscribers map[int64]func(State)
	nextID      int64
}

// NewMonitor validates the configuration and constructs a Monitor in
// the unknown state.
func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if cfg.Prober == nil {
		return nil, errMissingProber
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		prober:       cfg.Prober,
		probeTimeout: probeTimeout,
		logger:       logger,
		lastEmitted:  StateUnknown,
		subscribers:  make(map[int64]func(State)),
	}, nil
}

// CurrentStatus returns the last known state without blocking.
func (m *Monitor) CurrentStatus() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastEmitted
}

// Probe performs an active reachability check and feeds the result
// through the debounced event path. It never fails: a probe error
// resolves to offline.
func (m *Monitor) Probe(ctx context.Context) State {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	if err := m.prober.Health(probeCtx); err != nil {
		m.logger.Debug("connectivity probe failed", zap.Error(err))
		m.ReportReachability(false, false)
		return StateOffline
	}
	m.ReportReachability(true, false)
	return StateOnline
}

// ReportReachability ingests a platform-level network event. The
// effective state is online when the link is connected and not
// explicitly marked unreachable. Subscribers are notified once per
// transition; repeated events with the same effective state are
// dropped.
func (m *Monitor) ReportReachability(connected, explicitlyUnreachable bool) {
	next := StateOffline
	if connected && !explicitlyUnreachable {
		next = StateOnline
	}

	m.mu.Lock()
	if m.lastEmitted == next {
		m.mu.Unlock()
		return
	}
	m.lastEmitted = next
	callbacks := make([]func(State), 0, len(m.subscribers))
	for _, callback := range m.subscribers {
		callbacks = append(callbacks, callback)
	}
	m.mu.Unlock()

	for _, callback := range callbacks {
		callback(next)
	}
}

// Subscribe registers a listener for state transitions and returns a
// deregistration closure. Calling the closure more than once is a
// no-op.
func (m *Monitor) Subscribe(callback func(State)) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subscribers[id] = callback
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subscribers, id)
			m.mu.Unlock()
		})
	}
}

// Run probes on the given interval until the context is cancelled,
// feeding results through the debounced event path. It stands in for
// platform reachability events on hosts without a push source.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
