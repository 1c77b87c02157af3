package api

import "time"

// UserProfile is the account profile returned by the backend.
type UserProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Device is a registered IoT device. The identifier is immutable; the
// display name may be changed by the owner.
type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CurrentStatus is the latest reported state of a single device.
type CurrentStatus struct {
	Online     bool     `json:"online"`
	LastStatus *string  `json:"last_status,omitempty"`
	Latitude   *float64 `json:"lat,omitempty"`
	Longitude  *float64 `json:"lon,omitempty"`
}

// Alert is an immutable event emitted by a device.
type Alert struct {
	DeviceID   string    `json:"device_id"`
	AlertID    string    `json:"alert_id"`
	DeviceName string    `json:"device_name"`
	Status     string    `json:"status"`
	Latitude   *float64  `json:"lat,omitempty"`
	Longitude  *float64  `json:"lon,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// LoginResult carries the bearer token and profile returned by Login.
type LoginResult struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        UserProfile `json:"user"`
}
