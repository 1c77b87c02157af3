// Package api implements the HTTP client for the iotUx backend. A
// rejected bearer token (HTTP 401) is reported as ErrAuthExpired,
// distinct from transport failures and payload rejections, because the
// caller reacts to each differently.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second

	headerClientID = "X-Client-Id"
)

var errMissingBaseURL = errors.New("api: base url is required")

// TokenSource supplies the bearer token attached to authenticated
// requests. An empty token means the request goes out unauthenticated.
type TokenSource interface {
	AuthToken(ctx context.Context) (string, error)
}

// ClientConfig configures the backend client.
type ClientConfig struct {
	BaseURL    string
	Tokens     TokenSource
	ClientID   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the iotUx backend REST API.
type Client struct {
	baseURL    string
	tokens     TokenSource
	clientID   string
	httpClient *http.Client
}

// NewClient validates the configuration and constructs a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    baseURL,
		tokens:     cfg.Tokens,
		clientID:   cfg.ClientID,
		httpClient: httpClient,
	}, nil
}

// Login exchanges credentials for a bearer token and the user profile.
// A 401 here means bad credentials, not token expiry.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	payload := map[string]string{"email": email, "password": password}
	data, err := c.doRequest(ctx, http.MethodPost, "/auth/login", payload, false)
	if err != nil {
		if errors.Is(err, ErrAuthExpired) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	return decodeJSON[LoginResult](data)
}

// GetCurrentUser fetches the profile for the stored token.
func (c *Client) GetCurrentUser(ctx context.Context) (UserProfile, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/auth/me", nil, true)
	if err != nil {
		return UserProfile{}, err
	}
	return decodeJSON[UserProfile](data)
}

// ListDevices returns the devices registered to the authenticated user.
func (c *Client) ListDevices(ctx context.Context) ([]Device, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/devices", nil, true)
	if err != nil {
		return nil, err
	}
	devices, err := decodeJSON[[]Device](data)
	if err != nil {
		return nil, err
	}
	return devices, nil
}

// GetDeviceStatus returns the latest reported status for one device.
func (c *Client) GetDeviceStatus(ctx context.Context, deviceID string) (CurrentStatus, error) {
	path := "/devices/" + url.PathEscape(deviceID) + "/status/current"
	data, err := c.doRequest(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return CurrentStatus{}, err
	}
	return decodeJSON[CurrentStatus](data)
}

// GetDeviceAlerts returns recent alerts for one device.
func (c *Client) GetDeviceAlerts(ctx context.Context, deviceID string) ([]Alert, error) {
	path := "/devices/" + url.PathEscape(deviceID) + "/alerts"
	data, err := c.doRequest(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return nil, err
	}
	alerts, err := decodeJSON[[]Alert](data)
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// RegisterDevice claims a device id for the authenticated user.
func (c *Client) RegisterDevice(ctx context.Context, deviceID, name string) (Device, error) {
	payload := map[string]string{"device_id": deviceID, "name": name}
	data, err := c.doRequest(ctx, http.MethodPost, "/devices/register", payload, true)
	if err != nil {
		return Device{}, err
	}
	return decodeJSON[Device](data)
}

// RemoveDevice releases a device from the authenticated user's account.
func (c *Client) RemoveDevice(ctx context.Context, deviceID string) error {
	path := "/devices/" + url.PathEscape(deviceID)
	_, err := c.doRequest(ctx, http.MethodDelete, path, nil, true)
	return err
}

// Health performs an unauthenticated reachability check against the
// backend. Used by the connectivity monitor's probe.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil, false)
	return err
}

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, authenticated bool) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api: failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("api: failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.clientID != "" {
		req.Header.Set(headerClientID, c.clientID)
	}
	if authenticated && c.tokens != nil {
		token, err := c.tokens.AuthToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("api: failed to read auth token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: method + " " + path, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: %s", ErrAuthExpired, errorDetail(data))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &RequestError{StatusCode: resp.StatusCode, Detail: errorDetail(data)}
	}

	return data, nil
}

// errorDetail extracts the backend's "detail" message from an error body.
func errorDetail(data []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(data))
}

func decodeJSON[T any](data []byte) (T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("api: failed to unmarshal response: %w", err)
	}
	return result, nil
}
