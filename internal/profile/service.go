// Package profile layers local-only edits over the cached remote
// profile. Overrides never sync to the backend and are erased with the
// rest of the session data on logout.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/TedjaSatedji/iotUx/internal/api"
	"go.uber.org/zap"
)

var errMissingStore = errors.New("profile: override store is required")

// Overrides are the locally editable profile fields.
type Overrides struct {
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// OverrideStore is the storage surface the service needs.
type OverrideStore interface {
	GetUserProfile(ctx context.Context) (*api.UserProfile, error)
	GetProfileOverrides(ctx context.Context) (string, error)
	SetProfileOverrides(ctx context.Context, value string) error
}

// ServiceConfig configures the profile service.
type ServiceConfig struct {
	Store  OverrideStore
	Logger *zap.Logger
}

// Service reads and edits the locally displayed profile.
type Service struct {
	store  OverrideStore
	logger *zap.Logger
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: cfg.Store, logger: logger}, nil
}

// View returns the cached remote profile with local overrides applied.
// Without a cached profile it returns false.
func (s *Service) View(ctx context.Context) (api.UserProfile, bool, error) {
	remote, err := s.store.GetUserProfile(ctx)
	if err != nil {
		return api.UserProfile{}, false, err
	}
	if remote == nil {
		return api.UserProfile{}, false, nil
	}

	merged := *remote
	overrides, err := s.readOverrides(ctx)
	if err != nil {
		s.logger.Warn("profile overrides read failed, showing remote profile", zap.Error(err))
		return merged, true, nil
	}
	if overrides.Name != "" {
		merged.Name = overrides.Name
	}
	if overrides.AvatarURL != "" {
		merged.AvatarURL = overrides.AvatarURL
	}
	return merged, true, nil
}

// Update stores local edits. Empty fields keep their current override.
func (s *Service) Update(ctx context.Context, edits Overrides) error {
	current, err := s.readOverrides(ctx)
	if err != nil {
		return err
	}
	if name := strings.TrimSpace(edits.Name); name != "" {
		current.Name = name
	}
	if avatar := strings.TrimSpace(edits.AvatarURL); avatar != "" {
		current.AvatarURL = avatar
	}
	encoded, err := json.Marshal(current)
	if err != nil {
		return err
	}
	return s.store.SetProfileOverrides(ctx, string(encoded))
}

func (s *Service) readOverrides(ctx context.Context) (Overrides, error) {
	raw, err := s.store.GetProfileOverrides(ctx)
	if err != nil {
		return Overrides{}, err
	}
	if raw == "" {
		return Overrides{}, nil
	}
	var overrides Overrides
	if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
		s.logger.Warn("profile overrides are corrupt, ignoring", zap.Error(err))
		return Overrides{}, nil
	}
	return overrides, nil
}
