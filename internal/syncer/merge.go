package syncer

import (
	"sort"

	"github.com/TedjaSatedji/iotUx/internal/api"
)

// buildSnapshot merges the fetched collections into a Snapshot. It is a
// pure function of its inputs: devices keep their fetch order with
// duplicates by id dropped, statuses are kept only for present entries,
// and alerts are deduplicated by device-id+alert-id and ordered newest
// first, ties broken by alert id descending.
func buildSnapshot(user api.UserProfile, devices []api.Device, statuses map[string]api.CurrentStatus, alertsByDevice map[string][]api.Alert) Snapshot {
	uniqueDevices := make([]api.Device, 0, len(devices))
	seenDevices := make(map[string]struct{}, len(devices))
	for _, device := range devices {
		if _, ok := seenDevices[device.ID]; ok {
			continue
		}
		seenDevices[device.ID] = struct{}{}
		uniqueDevices = append(uniqueDevices, device)
	}

	deviceStatuses := make(map[string]api.CurrentStatus, len(statuses))
	for deviceID, status := range statuses {
		deviceStatuses[deviceID] = status
	}

	alerts := make([]api.Alert, 0)
	seenAlerts := make(map[alertKey]struct{})
	for _, device := range uniqueDevices {
		for _, alert := range alertsByDevice[device.ID] {
			key := alertKey{deviceID: alert.DeviceID, alertID: alert.AlertID}
			if _, ok := seenAlerts[key]; ok {
				continue
			}
			seenAlerts[key] = struct{}{}
			alerts = append(alerts, alert)
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if !alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
		}
		return alerts[i].AlertID > alerts[j].AlertID
	})

	return Snapshot{
		User:           user,
		Devices:        uniqueDevices,
		DeviceStatuses: deviceStatuses,
		Alerts:         alerts,
	}
}

type alertKey struct {
	deviceID string
	alertID  string
}
