package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TedjaSatedji/iotUx/internal/api"
	"github.com/TedjaSatedji/iotUx/internal/auth"
	"github.com/TedjaSatedji/iotUx/internal/connectivity"
	"github.com/TedjaSatedji/iotUx/internal/store"
	"github.com/TedjaSatedji/iotUx/internal/syncer"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	accountUserID   = "user-abc"
	accountEmail    = "owner@example.com"
	accountDeviceID = "device-1"
)

// fakeBackend serves the subset of the REST API the sync flow touches.
// Revoking the session makes every authenticated route answer 401.
type fakeBackend struct {
	token   string
	revoked atomic.Bool
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/auth/me", b.authenticated(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, api.UserProfile{ID: accountUserID, Email: accountEmail, Name: "Owner"})
	}))
	mux.HandleFunc("/devices", b.authenticated(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []api.Device{{ID: accountDeviceID, Name: "Front Gate"}})
	}))
	mux.HandleFunc("/devices/"+accountDeviceID+"/status/current", b.authenticated(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, api.CurrentStatus{Online: true})
	}))
	mux.HandleFunc("/devices/"+accountDeviceID+"/alerts", b.authenticated(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []api.Alert{{
			DeviceID:   accountDeviceID,
			AlertID:    "alert-1",
			DeviceName: "Front Gate",
			Status:     "motion detected",
			CreatedAt:  time.Date(2026, time.February, 1, 9, 0, 0, 0, time.UTC),
		}})
	}))
	return mux
}

func (b *fakeBackend) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if b.revoked.Load() || r.Header.Get("Authorization") != "Bearer "+b.token {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"token rejected"}`))
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func mustMintToken(testContext *testing.T, expiresAt time.Time) string {
	testContext.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   accountUserID,
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	signed, err := token.SignedString([]byte("integration-secret"))
	if err != nil {
		testContext.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func mustOpenStore(testContext *testing.T) *store.Store {
	testContext.Helper()
	db, err := store.OpenSQLite(filepath.Join(testContext.TempDir(), "client.db"), zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	localStore, err := store.NewStore(store.StoreConfig{Database: db})
	if err != nil {
		testContext.Fatalf("failed to create store: %v", err)
	}
	return localStore
}

func buildController(testContext *testing.T, baseURL string, localStore *store.Store) *syncer.Controller {
	testContext.Helper()

	client, err := api.NewClient(api.ClientConfig{BaseURL: baseURL, Tokens: localStore})
	if err != nil {
		testContext.Fatalf("failed to create api client: %v", err)
	}
	monitor, err := connectivity.NewMonitor(connectivity.MonitorConfig{
		Prober:       client,
		ProbeTimeout: time.Second,
	})
	if err != nil {
		testContext.Fatalf("failed to create monitor: %v", err)
	}
	controller, err := syncer.NewController(syncer.ControllerConfig{
		Remote:       client,
		Store:        localStore,
		Network:      monitor,
		Tokens:       auth.NewTokenInspector(auth.TokenInspectorConfig{}),
		PollInterval: time.Hour,
	})
	if err != nil {
		testContext.Fatalf("failed to create controller: %v", err)
	}
	return controller
}

func waitForKind(testContext *testing.T, controller *syncer.Controller, want syncer.StateKind) syncer.State {
	testContext.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		state := controller.CurrentState()
		if state.Kind == want {
			return state
		}
		time.Sleep(10 * time.Millisecond)
	}
	testContext.Fatalf("timed out waiting for %s, last state %s", want, controller.CurrentState().Kind)
	return syncer.State{}
}

func TestAuthAndSyncFlow(testContext *testing.T) {
	backend := &fakeBackend{token: mustMintToken(testContext, time.Now().Add(time.Hour))}
	testServer := httptest.NewServer(backend.handler())
	defer testServer.Close()

	localStore := mustOpenStore(testContext)
	ctx := context.Background()
	if err := localStore.SetAuthToken(ctx, backend.token); err != nil {
		testContext.Fatalf("failed to seed token: %v", err)
	}

	controller := buildController(testContext, testServer.URL, localStore)
	defer controller.Close()

	if err := controller.Start(ctx); err != nil {
		testContext.Fatalf("start failed: %v", err)
	}

	state := waitForKind(testContext, controller, syncer.KindReady)
	if state.Stale {
		testContext.Fatalf("a fresh fetch must not be stale")
	}
	if state.Snapshot == nil {
		testContext.Fatalf("expected snapshot data")
	}
	if state.Snapshot.User.ID != accountUserID {
		testContext.Fatalf("unexpected user: %#v", state.Snapshot.User)
	}
	if len(state.Snapshot.Devices) != 1 || state.Snapshot.Devices[0].ID != accountDeviceID {
		testContext.Fatalf("unexpected devices: %#v", state.Snapshot.Devices)
	}
	if status, found := state.Snapshot.Status(accountDeviceID); !found || !status.Online {
		testContext.Fatalf("expected an online status for %s", accountDeviceID)
	}
	if len(state.Snapshot.Alerts) != 1 || state.Snapshot.Alerts[0].AlertID != "alert-1" {
		testContext.Fatalf("unexpected alerts: %#v", state.Snapshot.Alerts)
	}

	cached, err := localStore.GetCachedSnapshot(ctx)
	if err != nil || cached == nil {
		testContext.Fatalf("expected a cached snapshot after the fetch, err=%v", err)
	}

	backend.revoked.Store(true)
	state, err = controller.RefreshNow(ctx)
	if err != nil {
		testContext.Fatalf("manual refresh failed: %v", err)
	}
	if state.Kind != syncer.KindUnauthenticated {
		testContext.Fatalf("a rejected token must end the session, got %s", state.Kind)
	}

	if token, _ := localStore.GetAuthToken(ctx); token != "" {
		testContext.Fatalf("stored token must be cleared after rejection")
	}
	if cached, _ := localStore.GetCachedSnapshot(ctx); cached != nil {
		testContext.Fatalf("cached snapshot must be cleared after rejection")
	}
}

func TestStartWithExpiredStoredToken(testContext *testing.T) {
	backend := &fakeBackend{token: mustMintToken(testContext, time.Now().Add(-time.Hour))}
	testServer := httptest.NewServer(backend.handler())
	defer testServer.Close()

	localStore := mustOpenStore(testContext)
	ctx := context.Background()
	if err := localStore.SetAuthToken(ctx, backend.token); err != nil {
		testContext.Fatalf("failed to seed token: %v", err)
	}

	controller := buildController(testContext, testServer.URL, localStore)
	defer controller.Close()

	if err := controller.Start(ctx); err != nil {
		testContext.Fatalf("start failed: %v", err)
	}
	if state := controller.CurrentState(); state.Kind != syncer.KindUnauthenticated {
		testContext.Fatalf("an expired token must sign out locally, got %s", state.Kind)
	}
	if token, _ := localStore.GetAuthToken(ctx); token != "" {
		testContext.Fatalf("the expired token must be cleared")
	}
}

func TestStartOfflineWithoutCache(testContext *testing.T) {
	backend := &fakeBackend{token: mustMintToken(testContext, time.Now().Add(time.Hour))}
	testServer := httptest.NewServer(backend.handler())
	testServer.Close()

	localStore := mustOpenStore(testContext)
	ctx := context.Background()
	if err := localStore.SetAuthToken(ctx, backend.token); err != nil {
		testContext.Fatalf("failed to seed token: %v", err)
	}

	controller := buildController(testContext, testServer.URL, localStore)
	defer controller.Close()

	if err := controller.Start(ctx); err != nil {
		testContext.Fatalf("start failed: %v", err)
	}
	state := waitForKind(testContext, controller, syncer.KindError)
	if state.Cached != nil {
		testContext.Fatalf("no cached data should be attached, got %#v", state.Cached)
	}
	if state.Message == "" {
		testContext.Fatalf("expected a user-facing error message")
	}
}
