package syncer

import (
	"time"

	"github.com/TedjaSatedji/iotUx/internal/api"
)

// Snapshot is the authoritative application data for one user: profile,
// registered devices, their latest statuses, and recent alerts. Status
// and alert entries may reference device ids no longer present in
// Devices; consumers drop such entries from rendering, storage keeps
// them.
type Snapshot struct {
	User           api.UserProfile              `json:"user"`
	Devices        []api.Device                 `json:"devices"`
	DeviceStatuses map[string]api.CurrentStatus `json:"device_statuses"`
	Alerts         []api.Alert                  `json:"alerts"`
}

// Status returns the current status for a device id, with presence.
// A missing entry means the device could not be reached this cycle.
func (s Snapshot) Status(deviceID string) (api.CurrentStatus, bool) {
	status, ok := s.DeviceStatuses[deviceID]
	return status, ok
}

// OnlineDeviceCount counts devices with a present status marked online.
func (s Snapshot) OnlineDeviceCount() int {
	count := 0
	for _, device := range s.Devices {
		if status, ok := s.DeviceStatuses[device.ID]; ok && status.Online {
			count++
		}
	}
	return count
}

// OfflineDeviceCount counts devices without a status entry or with a
// status marked offline.
func (s Snapshot) OfflineDeviceCount() int {
	return len(s.Devices) - s.OnlineDeviceCount()
}

// CachedSnapshot is a Snapshot persisted after a successful fetch,
// served when the backend is unreachable.
type CachedSnapshot struct {
	Snapshot  Snapshot  `json:"snapshot"`
	FetchedAt time.Time `json:"fetched_at"`
}

// StateKind enumerates the observable sync states.
type StateKind string

const (
	KindLoading         StateKind = "loading"
	KindReady           StateKind = "ready"
	KindUnauthenticated StateKind = "unauthenticated"
	KindError           StateKind = "error"
)

// State is the view-model the controller exposes. Snapshot is set for
// KindReady; Cached carries the last known snapshot, when one exists,
// for KindError so consumers can render stale data behind an error
// banner. States are immutable once published.
type State struct {
	Kind     StateKind `json:"kind"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Stale    bool      `json:"stale,omitempty"`
	Message  string    `json:"message,omitempty"`
	Cached   *Snapshot `json:"cached,omitempty"`
}

func loadingState() State {
	return State{Kind: KindLoading}
}

func unauthenticatedState() State {
	return State{Kind: KindUnauthenticated}
}

func readyState(snapshot Snapshot, stale bool) State {
	return State{Kind: KindReady, Snapshot: &snapshot, Stale: stale}
}

func errorState(message string, cached *Snapshot) State {
	return State{Kind: KindError, Message: message, Cached: cached}
}
