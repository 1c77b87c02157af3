// Package syncer orchestrates the dashboard data flow: periodic
// refresh while online, cache fallback while offline, and credential
// cleanup when the backend rejects the stored token.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/TedjaSatedji/iotUx/internal/api"
	"github.com/TedjaSatedji/iotUx/internal/connectivity"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 10 * time.Second
	subscriberBuffer    = 16
)

var (
	errMissingRemote  = errors.New("syncer: remote client is required")
	errMissingStore   = errors.New("syncer: snapshot store is required")
	errMissingNetwork = errors.New("syncer: connectivity source is required")

	// ErrNotStarted is returned by RefreshNow before Start has run or
	// after Logout/Close.
	ErrNotStarted = errors.New("syncer: controller is not started")
	// ErrAlreadyStarted is returned by a second Start without an
	// intervening Logout or Close.
	ErrAlreadyStarted = errors.New("syncer: controller already started")
)

// RemoteClient is the backend surface the controller refreshes from.
type RemoteClient interface {
	GetCurrentUser(ctx context.Context) (api.UserProfile, error)
	ListDevices(ctx context.Context) ([]api.Device, error)
	GetDeviceStatus(ctx context.Context, deviceID string) (api.CurrentStatus, error)
	GetDeviceAlerts(ctx context.Context, deviceID string) ([]api.Alert, error)
}

// SnapshotStore is the durable local storage the controller reads
// credentials from and writes fetched snapshots through.
type SnapshotStore interface {
	GetAuthToken(ctx context.Context) (string, error)
	GetCachedSnapshot(ctx context.Context) (*CachedSnapshot, error)
	SetCachedSnapshot(ctx context.Context, snapshot Snapshot) error
	ClearAll(ctx context.Context) error
}

// ConnectivitySource supplies reachability state and transitions.
type ConnectivitySource interface {
	CurrentStatus() connectivity.State
	Probe(ctx context.Context) connectivity.State
	Subscribe(callback func(connectivity.State)) func()
}

// TokenChecker answers whether a stored token is already past its
// expiry, locally, without a network round trip.
type TokenChecker interface {
	Expired(token string) bool
}

// ControllerConfig configures the sync controller.
type ControllerConfig struct {
	Remote       RemoteClient
	Store        SnapshotStore
	Network      ConnectivitySource
	Tokens       TokenChecker
	PollInterval time.Duration
	Clock        func() time.Time
	Logger       *zap.Logger
}

// Controller runs the refresh state machine. At most one refresh is in
// flight at a time; results started before a Logout or Close never
// commit, enforced by a generation counter captured at refresh start
// and checked at commit.
type Controller struct {
	remote       RemoteClient
	store        SnapshotStore
	network      ConnectivitySource
	tokens       TokenChecker
	pollInterval time.Duration
	clock        func() time.Time
	logger       *zap.Logger

	mu                 sync.Mutex
	state              State
	generation         int64
	inFlight           chan struct{}
	started            bool
	stopPolling        context.CancelFunc
	unsubscribeNetwork func()

	subscriberMu     sync.RWMutex
	subscribers      map[int64]chan State
	nextSubscriberID int64
}

// NewController validates dependencies and constructs a Controller in
// the loading state. Nothing runs until Start.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Remote == nil {
		return nil, errMissingRemote
	}
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	if cfg.Network == nil {
		return nil, errMissingNetwork
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Controller{
		remote:       cfg.Remote,
		store:        cfg.Store,
		network:      cfg.Network,
		tokens:       cfg.Tokens,
		pollInterval: pollInterval,
		clock:        clock,
		logger:       logger,
		state:        loadingState(),
		subscribers:  make(map[int64]chan State),
	}, nil
}

// Start checks stored credentials and, when a usable token is present,
// begins polling, subscribes to connectivity transitions, and kicks an
// initial refresh. Without a token it emits the unauthenticated state
// and performs no network activity.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.mu.Unlock()

	token, err := c.store.GetAuthToken(ctx)
	if err != nil {
		c.logger.Warn("auth token read failed, treating as signed out", zap.Error(err))
		token = ""
	}
	if token == "" {
		c.setState(unauthenticatedState())
		return nil
	}
	if c.tokens != nil && c.tokens.Expired(token) {
		c.logger.Info("stored token is expired, clearing credentials")
		if err := c.store.ClearAll(ctx); err != nil {
			c.logger.Warn("credential clear failed", zap.Error(err))
		}
		c.setState(unauthenticatedState())
		return nil
	}

	pollCtx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		cancel()
		return ErrAlreadyStarted
	}
	c.started = true
	c.stopPolling = cancel
	c.state = loadingState()
	c.unsubscribeNetwork = c.network.Subscribe(func(status connectivity.State) {
		c.handleConnectivityChange(pollCtx, status)
	})
	c.mu.Unlock()

	c.publish(loadingState())
	go c.pollLoop(pollCtx)
	c.triggerRefresh(pollCtx)
	return nil
}

// CurrentState returns the current view-model state.
func (c *Controller) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers for state-change notifications. The stream is
// buffered; slow consumers miss intermediate states rather than block
// the controller. The returned closure deregisters and is safe to call
// more than once; cancelling ctx deregisters as well.
func (c *Controller) Subscribe(ctx context.Context) (<-chan State, func()) {
	c.subscriberMu.Lock()
	c.nextSubscriberID++
	id := c.nextSubscriberID
	stream := make(chan State, subscriberBuffer)
	c.subscribers[id] = stream
	c.subscriberMu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			c.subscriberMu.Lock()
			delete(c.subscribers, id)
			c.subscriberMu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return stream, cleanup
}

// RefreshNow performs a user-initiated refresh. When a refresh is
// already in flight it waits for that one to finish, then starts
// another only if the finished one did not leave fresh data behind.
func (c *Controller) RefreshNow(ctx context.Context) (State, error) {
	for {
		handle, generation, acquired := c.acquireRefresh()
		if acquired {
			c.runRefresh(ctx, handle, generation)
			return c.CurrentState(), nil
		}
		if handle == nil {
			return c.CurrentState(), ErrNotStarted
		}

		select {
		case <-handle:
		case <-ctx.Done():
			return c.CurrentState(), ctx.Err()
		}

		state := c.CurrentState()
		if state.Kind == KindUnauthenticated || (state.Kind == KindReady && !state.Stale) {
			return state, nil
		}
	}
}

// Logout stops polling, invalidates any in-flight refresh, clears
// stored credentials, and emits the unauthenticated state. The state
// transition is synchronous; the storage wipe follows it.
func (c *Controller) Logout(ctx context.Context) error {
	c.teardown(unauthenticatedState())
	if err := c.store.ClearAll(ctx); err != nil {
		c.logger.Warn("credential clear failed during logout", zap.Error(err))
		return err
	}
	return nil
}

// Close stops polling and invalidates in-flight work without touching
// stored credentials. Used on consumer teardown.
func (c *Controller) Close() {
	c.teardown(c.CurrentState())
}

func (c *Controller) teardown(next State) {
	c.mu.Lock()
	c.generation++
	c.started = false
	if c.stopPolling != nil {
		c.stopPolling()
		c.stopPolling = nil
	}
	if c.unsubscribeNetwork != nil {
		c.unsubscribeNetwork()
		c.unsubscribeNetwork = nil
	}
	changed := c.state.Kind != next.Kind
	c.state = next
	c.mu.Unlock()
	if changed {
		c.publish(next)
	}
}

// acquireRefresh claims the single in-flight slot. It returns the
// new handle and the captured generation when acquired, the existing
// handle when a refresh is already running, and (nil, 0, false) when
// the controller is not started.
func (c *Controller) acquireRefresh() (chan struct{}, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil, 0, false
	}
	if c.inFlight != nil {
		return c.inFlight, 0, false
	}
	handle := make(chan struct{})
	c.inFlight = handle
	return handle, c.generation, true
}

func (c *Controller) triggerRefresh(ctx context.Context) {
	handle, generation, acquired := c.acquireRefresh()
	if !acquired {
		return
	}
	go c.runRefresh(ctx, handle, generation)
}

func (c *Controller) runRefresh(ctx context.Context, handle chan struct{}, generation int64) {
	defer func() {
		c.mu.Lock()
		if c.inFlight == handle {
			c.inFlight = nil
		}
		c.mu.Unlock()
		close(handle)
	}()
	c.refreshOnce(ctx, generation)
}

// refreshOnce executes one pass of the refresh algorithm: probe, then
// either serve the cache (offline) or fetch the authoritative snapshot
// (online), with per-device failures tolerated.
func (c *Controller) refreshOnce(ctx context.Context, generation int64) {
	if status := c.network.Probe(ctx); status != connectivity.StateOnline {
		if cached := c.readCache(ctx); cached != nil {
			c.commit(generation, readyState(cached.Snapshot, true))
			return
		}
		c.commit(generation, errorState("offline, no cached data available", nil))
		return
	}

	user, devices, err := c.fetchAccount(ctx)
	if err != nil {
		if errors.Is(err, api.ErrAuthExpired) {
			c.logger.Info("backend rejected stored token, clearing credentials")
			if clearErr := c.store.ClearAll(ctx); clearErr != nil {
				c.logger.Warn("credential clear failed", zap.Error(clearErr))
			}
			c.commit(generation, unauthenticatedState())
			return
		}
		var cachedSnapshot *Snapshot
		if cached := c.readCache(ctx); cached != nil {
			cachedSnapshot = &cached.Snapshot
		}
		c.commit(generation, errorState(fmt.Sprintf("refresh failed: %v", err), cachedSnapshot))
		return
	}

	statuses, alertsByDevice := c.fetchDeviceDetails(ctx, devices)
	snapshot := buildSnapshot(user, devices, statuses, alertsByDevice)

	if err := c.store.SetCachedSnapshot(ctx, snapshot); err != nil {
		// Non-fatal: fresh data still reaches consumers, only a later
		// offline read is degraded.
		c.logger.Warn("snapshot cache write failed", zap.Error(err))
	}
	c.commit(generation, readyState(snapshot, false))
}

// fetchAccount loads the profile and device list in parallel. Both
// must succeed; an auth rejection on either wins over other failures.
func (c *Controller) fetchAccount(ctx context.Context) (api.UserProfile, []api.Device, error) {
	var (
		user       api.UserProfile
		devices    []api.Device
		userErr    error
		devicesErr error
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		user, userErr = c.remote.GetCurrentUser(ctx)
	}()
	go func() {
		defer wg.Done()
		devices, devicesErr = c.remote.ListDevices(ctx)
	}()
	wg.Wait()

	if errors.Is(userErr, api.ErrAuthExpired) {
		return api.UserProfile{}, nil, userErr
	}
	if errors.Is(devicesErr, api.ErrAuthExpired) {
		return api.UserProfile{}, nil, devicesErr
	}
	if userErr != nil {
		return api.UserProfile{}, nil, userErr
	}
	if devicesErr != nil {
		return api.UserProfile{}, nil, devicesErr
	}
	return user, devices, nil
}

// fetchDeviceDetails loads statuses and alerts for all devices
// concurrently. A failure for one device omits that device's entries
// for this cycle instead of failing the refresh.
func (c *Controller) fetchDeviceDetails(ctx context.Context, devices []api.Device) (map[string]api.CurrentStatus, map[string][]api.Alert) {
	statuses := make(map[string]api.CurrentStatus, len(devices))
	alertsByDevice := make(map[string][]api.Alert, len(devices))
	var resultMu sync.Mutex
	var wg sync.WaitGroup

	for _, device := range devices {
		device := device
		wg.Add(2)
		go func() {
			defer wg.Done()
			status, err := c.remote.GetDeviceStatus(ctx, device.ID)
			if err != nil {
				c.logger.Debug("device status fetch failed",
					zap.String("device_id", device.ID), zap.Error(err))
				return
			}
			resultMu.Lock()
			statuses[device.ID] = status
			resultMu.Unlock()
		}()
		go func() {
			defer wg.Done()
			alerts, err := c.remote.GetDeviceAlerts(ctx, device.ID)
			if err != nil {
				c.logger.Debug("device alerts fetch failed",
					zap.String("device_id", device.ID), zap.Error(err))
				return
			}
			resultMu.Lock()
			alertsByDevice[device.ID] = alerts
			resultMu.Unlock()
		}()
	}
	wg.Wait()
	return statuses, alertsByDevice
}

func (c *Controller) readCache(ctx context.Context) *CachedSnapshot {
	cached, err := c.store.GetCachedSnapshot(ctx)
	if err != nil {
		c.logger.Warn("cached snapshot read failed", zap.Error(err))
		return nil
	}
	return cached
}

// commit publishes a refresh result unless the controller's generation
// moved on since the refresh started.
func (c *Controller) commit(generation int64, next State) {
	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		c.logger.Debug("discarding refresh result from a previous session",
			zap.String("kind", string(next.Kind)))
		return
	}
	c.state = next
	c.mu.Unlock()
	c.publish(next)
}

func (c *Controller) setState(next State) {
	c.mu.Lock()
	c.state = next
	c.mu.Unlock()
	c.publish(next)
}

func (c *Controller) publish(state State) {
	c.subscriberMu.RLock()
	streams := make([]chan State, 0, len(c.subscribers))
	for _, stream := range c.subscribers {
		streams = append(streams, stream)
	}
	c.subscriberMu.RUnlock()
	for _, stream := range streams {
		select {
		case stream <- state:
		default:
		}
	}
}

// handleConnectivityChange reacts to debounced transitions: going
// offline marks displayed fresh data stale immediately, coming back
// online refreshes right away when the last result was an error or
// stale data.
func (c *Controller) handleConnectivityChange(ctx context.Context, status connectivity.State) {
	if status != connectivity.StateOnline {
		c.mu.Lock()
		if c.state.Kind == KindReady && !c.state.Stale {
			marked := c.state
			marked.Stale = true
			c.state = marked
			c.mu.Unlock()
			c.publish(marked)
			return
		}
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	kind, stale := c.state.Kind, c.state.Stale
	c.mu.Unlock()
	if kind == KindError || (kind == KindReady && stale) {
		c.triggerRefresh(ctx)
	}
}

// pollLoop drives the timer trigger. A tick is skipped while a refresh
// is in flight, before the first result lands, after sign-out, and
// while the last known connectivity is not online.
func (c *Controller) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			kind := c.state.Kind
			busy := c.inFlight != nil
			c.mu.Unlock()
			if busy || kind == KindLoading || kind == KindUnauthenticated {
				continue
			}
			if c.network.CurrentStatus() != connectivity.StateOnline {
				continue
			}
			c.triggerRefresh(ctx)
		}
	}
}
