package syncer

import (
	"reflect"
	"testing"
	"time"

	"github.com/TedjaSatedji/iotUx/internal/api"
)

func alertAt(t *testing.T, deviceID, alertID string, unixSeconds int64) api.Alert {
	t.Helper()
	return api.Alert{
		DeviceID:  deviceID,
		AlertID:   alertID,
		Status:    "motion",
		CreatedAt: time.Unix(unixSeconds, 0).UTC(),
	}
}

func TestBuildSnapshotOrdersAlertsNewestFirst(t *testing.T) {
	devices := []api.Device{{ID: "d1", Name: "Gate"}, {ID: "d2", Name: "Barn"}}
	alertsByDevice := map[string][]api.Alert{
		"d1": {alertAt(t, "d1", "a1", 100), alertAt(t, "d1", "a3", 300)},
		"d2": {alertAt(t, "d2", "a2", 200)},
	}

	snapshot := buildSnapshot(api.UserProfile{ID: "u1"}, devices, nil, alertsByDevice)

	if len(snapshot.Alerts) != 3 {
		t.Fatalf("expected three alerts, got %d", len(snapshot.Alerts))
	}
	got := []string{snapshot.Alerts[0].AlertID, snapshot.Alerts[1].AlertID, snapshot.Alerts[2].AlertID}
	want := []string{"a3", "a2", "a1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected alert order: got %v want %v", got, want)
	}
}

func TestBuildSnapshotBreaksTimestampTiesByAlertID(t *testing.T) {
	devices := []api.Device{{ID: "d1"}, {ID: "d2"}}
	alertsByDevice := map[string][]api.Alert{
		"d1": {alertAt(t, "d1", "a1", 500)},
		"d2": {alertAt(t, "d2", "a9", 500)},
	}

	snapshot := buildSnapshot(api.UserProfile{}, devices, nil, alertsByDevice)

	if snapshot.Alerts[0].AlertID != "a9" || snapshot.Alerts[1].AlertID != "a1" {
		t.Fatalf("expected alert id descending tie break, got %v then %v",
			snapshot.Alerts[0].AlertID, snapshot.Alerts[1].AlertID)
	}
}

func TestBuildSnapshotDeduplicates(t *testing.T) {
	devices := []api.Device{{ID: "d1", Name: "Gate"}, {ID: "d1", Name: "Gate Again"}}
	alertsByDevice := map[string][]api.Alert{
		"d1": {alertAt(t, "d1", "a1", 100), alertAt(t, "d1", "a1", 100)},
	}

	snapshot := buildSnapshot(api.UserProfile{}, devices, nil, alertsByDevice)

	if len(snapshot.Devices) != 1 {
		t.Fatalf("expected duplicate device ids dropped, got %d devices", len(snapshot.Devices))
	}
	if snapshot.Devices[0].Name != "Gate" {
		t.Fatalf("first occurrence should win, got %q", snapshot.Devices[0].Name)
	}
	if len(snapshot.Alerts) != 1 {
		t.Fatalf("expected duplicate alerts dropped, got %d", len(snapshot.Alerts))
	}
}

func TestBuildSnapshotIsDeterministic(t *testing.T) {
	devices := []api.Device{{ID: "d1"}, {ID: "d2"}, {ID: "d3"}}
	statuses := map[string]api.CurrentStatus{
		"d1": {Online: true},
		"d3": {Online: false},
	}
	alertsByDevice := map[string][]api.Alert{
		"d1": {alertAt(t, "d1", "a1", 100)},
		"d2": {alertAt(t, "d2", "a2", 100)},
		"d3": {alertAt(t, "d3", "a3", 400)},
	}

	first := buildSnapshot(api.UserProfile{ID: "u1"}, devices, statuses, alertsByDevice)
	second := buildSnapshot(api.UserProfile{ID: "u1"}, devices, statuses, alertsByDevice)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("merge should be deterministic:\nfirst:  %#v\nsecond: %#v", first, second)
	}
}

func TestDeviceCountsTreatMissingStatusAsOffline(t *testing.T) {
	snapshot := Snapshot{
		Devices: []api.Device{{ID: "d1"}, {ID: "d2"}, {ID: "d3"}},
		DeviceStatuses: map[string]api.CurrentStatus{
			"d1": {Online: true},
			"d2": {Online: false},
			// d3 unreachable this cycle: no entry.
			"ghost": {Online: true},
		},
	}

	if snapshot.OnlineDeviceCount() != 1 {
		t.Fatalf("expected one online device, got %d", snapshot.OnlineDeviceCount())
	}
	if snapshot.OfflineDeviceCount() != 2 {
		t.Fatalf("expected two offline devices, got %d", snapshot.OfflineDeviceCount())
	}
	if _, ok := snapshot.Status("d3"); ok {
		t.Fatalf("missing status entry should read as absent")
	}
}
