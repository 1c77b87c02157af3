package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) AuthToken(ctx context.Context) (string, error) {
	return s.token, s.err
}

func mustClient(t *testing.T, cfg ClientConfig) *Client {
	t.Helper()
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(ClientConfig{BaseURL: "  "}); err == nil {
		t.Fatalf("expected an error for a blank base url")
	}
}

func TestAuthenticatedRequestCarriesHeaders(t *testing.T) {
	var gotAuth, gotClientID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotClientID = r.Header.Get("X-Client-Id")
		w.Write([]byte(`{"id":"u1","email":"a@b.c","name":"Ada"}`))
	}))
	defer server.Close()

	client := mustClient(t, ClientConfig{
		BaseURL:  server.URL,
		Tokens:   staticTokens{token: "bearer-1"},
		ClientID: "client-7",
	})
	profile, err := client.GetCurrentUser(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.ID != "u1" || profile.Email != "a@b.c" {
		t.Fatalf("unexpected profile: %#v", profile)
	}
	if gotAuth != "Bearer bearer-1" {
		t.Fatalf("expected bearer header, got %q", gotAuth)
	}
	if gotClientID != "client-7" {
		t.Fatalf("expected client id header, got %q", gotClientID)
	}
}

func TestUnauthorizedResponseMapsToAuthExpired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"token expired"}`))
	}))
	defer server.Close()

	client := mustClient(t, ClientConfig{BaseURL: server.URL, Tokens: staticTokens{token: "stale"}})
	_, err := client.ListDevices(context.Background())
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
	if IsNetworkError(err) {
		t.Fatalf("auth rejection must not look like a transport failure")
	}
}

func TestLoginRejectionMapsToInvalidCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"bad password"}`))
	}))
	defer server.Close()

	client := mustClient(t, ClientConfig{BaseURL: server.URL})
	_, err := client.Login(context.Background(), "a@b.c", "nope")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if errors.Is(err, ErrAuthExpired) {
		t.Fatalf("a login rejection is not token expiry")
	}
}

func TestValidationFailureCarriesServerDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"detail":"device already registered"}`))
	}))
	defer server.Close()

	client := mustClient(t, ClientConfig{BaseURL: server.URL, Tokens: staticTokens{token: "bearer-1"}})
	_, err := client.RegisterDevice(context.Background(), "d1", "Gate")
	var requestErr *RequestError
	if !errors.As(err, &requestErr) {
		t.Fatalf("expected a RequestError, got %v", err)
	}
	if requestErr.StatusCode != http.StatusConflict || requestErr.Detail != "device already registered" {
		t.Fatalf("unexpected request error: %#v", requestErr)
	}
	if !IsValidationError(err) {
		t.Fatalf("a 4xx response should classify as a validation failure")
	}
}

func TestUnreachableBackendMapsToNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := mustClient(t, ClientConfig{BaseURL: server.URL})
	err := client.Health(context.Background())
	if !IsNetworkError(err) {
		t.Fatalf("expected a network error, got %v", err)
	}
	if errors.Is(err, ErrAuthExpired) {
		t.Fatalf("a transport failure must not look like token expiry")
	}
}

func TestEmptyTokenSendsNoAuthorizationHeader(t *testing.T) {
	var sawAuthHeader bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuthHeader = r.Header["Authorization"]
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := mustClient(t, ClientConfig{BaseURL: server.URL, Tokens: staticTokens{}})
	if _, err := client.ListDevices(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sawAuthHeader {
		t.Fatalf("no bearer token should be attached when none is stored")
	}
}
