// Package server exposes a local debug endpoint over HTTP: the current
// sync state, connectivity state, a redacted dump of local storage, and
// a manual refresh trigger. Intended for localhost use while developing
// against the client; disabled unless an address is configured.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/TedjaSatedji/iotUx/internal/connectivity"
	"github.com/TedjaSatedji/iotUx/internal/store"
	"github.com/TedjaSatedji/iotUx/internal/syncer"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errMissingSyncController = errors.New("sync controller dependency required")
	errMissingNetworkMonitor = errors.New("network monitor dependency required")
	errMissingStorage        = errors.New("storage dependency required")
)

// SyncController is the sync surface the debug endpoint reads.
type SyncController interface {
	CurrentState() syncer.State
	RefreshNow(ctx context.Context) (syncer.State, error)
}

// NetworkMonitor is the connectivity surface the debug endpoint reads.
type NetworkMonitor interface {
	CurrentStatus() connectivity.State
}

// StorageReader lists stored records for inspection.
type StorageReader interface {
	DebugRecords(ctx context.Context) ([]store.RecordInfo, error)
}

// Dependencies wires the debug endpoint.
type Dependencies struct {
	Sync    SyncController
	Network NetworkMonitor
	Storage StorageReader
	Logger  *zap.Logger
}

// NewHTTPHandler builds the debug router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sync == nil {
		return nil, errMissingSyncController
	}
	if deps.Network == nil {
		return nil, errMissingNetworkMonitor
	}
	if deps.Storage == nil {
		return nil, errMissingStorage
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		sync:    deps.Sync,
		network: deps.Network,
		storage: deps.Storage,
		logger:  logger,
	}

	router.GET("/debug/state", handler.handleState)
	router.GET("/debug/connectivity", handler.handleConnectivity)
	router.GET("/debug/storage", handler.handleStorage)
	router.POST("/debug/refresh", handler.handleRefresh)

	return router, nil
}

type httpHandler struct {
	sync    SyncController
	network NetworkMonitor
	storage StorageReader
	logger  *zap.Logger
}

func (h *httpHandler) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.CurrentState())
}

func (h *httpHandler) handleConnectivity(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": h.network.CurrentStatus()})
}

func (h *httpHandler) handleStorage(c *gin.Context) {
	records, err := h.storage.DebugRecords(c.Request.Context())
	if err != nil {
		h.logger.Error("storage dump failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_read_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *httpHandler) handleRefresh(c *gin.Context) {
	state, err := h.sync.RefreshNow(c.Request.Context())
	if err != nil {
		if errors.Is(err, syncer.ErrNotStarted) {
			c.JSON(http.StatusConflict, gin.H{"error": "not_started"})
			return
		}
		h.logger.Error("manual refresh failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh_failed"})
		return
	}
	c.JSON(http.StatusOK, state)
}
