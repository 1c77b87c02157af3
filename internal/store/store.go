// Package store persists credentials, the cached snapshot, and local
// profile data in a SQLite-backed key-value table. Reads that fail at
// the storage layer degrade to "no value"; only writes surface errors,
// and callers treat those as non-fatal.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TedjaSatedji/iotUx/internal/api"
	"github.com/TedjaSatedji/iotUx/internal/syncer"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const debugPreviewLength = 100

var errMissingDatabase = errors.New("store: database handle is required")

// StorageError wraps a failure of the underlying storage engine,
// keeping it distinguishable from domain errors.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err originated in the storage engine.
func IsStorageError(err error) bool {
	var storageErr *StorageError
	return errors.As(err, &storageErr)
}

// IDProvider issues identifiers for the persisted client instance id.
type IDProvider interface {
	NewID() (string, error)
}

// StoreConfig configures the local store.
type StoreConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Store is the durable local key-value store.
type Store struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewStore validates the configuration and constructs a Store.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: cfg.Database, clock: clock, logger: logger}, nil
}

// GetAuthToken returns the stored bearer token, or "" when absent.
func (s *Store) GetAuthToken(ctx context.Context) (string, error) {
	return s.getValue(ctx, keyAuthToken)
}

// SetAuthToken persists the bearer token.
func (s *Store) SetAuthToken(ctx context.Context, token string) error {
	return s.setValue(ctx, keyAuthToken, token)
}

// ClearAuthToken removes the bearer token.
func (s *Store) ClearAuthToken(ctx context.Context) error {
	return s.deleteKeys(ctx, keyAuthToken)
}

// AuthToken adapts the store to the api client's token source. A
// storage read failure degrades to an unauthenticated request rather
// than failing the call.
func (s *Store) AuthToken(ctx context.Context) (string, error) {
	token, err := s.getValue(ctx, keyAuthToken)
	if err != nil {
		s.logger.Warn("auth token read failed", zap.Error(err))
		return "", nil
	}
	return token, nil
}

// GetCachedSnapshot returns the last persisted snapshot, or nil when
// none exists. A storage read failure or a corrupt blob reads as no
// cache.
func (s *Store) GetCachedSnapshot(ctx context.Context) (*syncer.CachedSnapshot, error) {
	value, err := s.getValue(ctx, keyCachedSnapshot)
	if err != nil || value == "" {
		return nil, err
	}
	var cached syncer.CachedSnapshot
	if err := json.Unmarshal([]byte(value), &cached); err != nil {
		s.logger.Warn("cached snapshot is corrupt, ignoring", zap.Error(err))
		return nil, nil
	}
	return &cached, nil
}

// SetCachedSnapshot overwrites the cached snapshot as a single
// serialized blob, stamped with the fetch time.
func (s *Store) SetCachedSnapshot(ctx context.Context, snapshot syncer.Snapshot) error {
	cached := syncer.CachedSnapshot{Snapshot: snapshot, FetchedAt: s.clock().UTC()}
	encoded, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("store: failed to encode snapshot: %w", err)
	}
	return s.setValue(ctx, keyCachedSnapshot, string(encoded))
}

// GetUserProfile returns the persisted profile blob, or nil when absent.
func (s *Store) GetUserProfile(ctx context.Context) (*api.UserProfile, error) {
	value, err := s.getValue(ctx, keyUserData)
	if err != nil || value == "" {
		return nil, err
	}
	var profile api.UserProfile
	if err := json.Unmarshal([]byte(value), &profile); err != nil {
		s.logger.Warn("stored user profile is corrupt, ignoring", zap.Error(err))
		return nil, nil
	}
	return &profile, nil
}

// SetUserProfile persists the profile blob.
func (s *Store) SetUserProfile(ctx context.Context, profile api.UserProfile) error {
	encoded, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("store: failed to encode user profile: %w", err)
	}
	return s.setValue(ctx, keyUserData, string(encoded))
}

// GetProfileOverrides returns the raw local profile overrides blob.
func (s *Store) GetProfileOverrides(ctx context.Context) (string, error) {
	return s.getValue(ctx, keyProfileOverrides)
}

// SetProfileOverrides persists the raw local profile overrides blob.
func (s *Store) SetProfileOverrides(ctx context.Context, value string) error {
	return s.setValue(ctx, keyProfileOverrides, value)
}

// EnsureClientID returns the persisted client instance id, generating
// and storing one on first use.
func (s *Store) EnsureClientID(ctx context.Context, ids IDProvider) (string, error) {
	existing, err := s.getValue(ctx, keyClientID)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}
	id, err := ids.NewID()
	if err != nil {
		return "", fmt.Errorf("store: failed to generate client id: %w", err)
	}
	if err := s.setValue(ctx, keyClientID, id); err != nil {
		return "", err
	}
	return id, nil
}

// ClearAll removes the auth token, user data, cached snapshot, and
// profile overrides. The key set is enumerated explicitly, never
// derived from a scan.
func (s *Store) ClearAll(ctx context.Context) error {
	return s.deleteKeys(ctx, clearAllKeys...)
}

// DebugRecords lists stored records with values truncated and the auth
// token redacted, for the local debug endpoint.
func (s *Store) DebugRecords(ctx context.Context) ([]RecordInfo, error) {
	var records []Record
	if err := s.db.WithContext(ctx).Order("key").Find(&records).Error; err != nil {
		return nil, &StorageError{Op: "list records", Err: err}
	}
	infos := make([]RecordInfo, 0, len(records))
	for _, record := range records {
		preview := record.Value
		if record.Key == keyAuthToken {
			preview = "<redacted>"
		} else if len(preview) > debugPreviewLength {
			preview = preview[:debugPreviewLength] + "..."
		}
		infos = append(infos, RecordInfo{
			Key:       record.Key,
			Preview:   preview,
			UpdatedAt: record.UpdatedAtSeconds,
		})
	}
	return infos, nil
}

func (s *Store) getValue(ctx context.Context, key string) (string, error) {
	var record Record
	err := s.db.WithContext(ctx).Where("key = ?", key).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", &StorageError{Op: "read " + key, Err: err}
	}
	return record.Value, nil
}

func (s *Store) setValue(ctx context.Context, key, value string) error {
	record := Record{
		Key:              key,
		Value:            value,
		UpdatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
		return &StorageError{Op: "write " + key, Err: err}
	}
	return nil
}

func (s *Store) deleteKeys(ctx context.Context, keys ...string) error {
	if err := s.db.WithContext(ctx).Where("key IN ?", keys).Delete(&Record{}).Error; err != nil {
		return &StorageError{Op: "delete keys", Err: err}
	}
	return nil
}
