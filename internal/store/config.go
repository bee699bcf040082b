package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/open-tvbox/boxhub/internal/models"
	"github.com/open-tvbox/boxhub/internal/settings"
	"gorm.io/gorm"
)

// policyCacheKey holds the serialized SecurityPolicy read cache.
const policyCacheKey = "cfg:policy"

// configCachePrefix covers every cached config document derived from the
// security policy; invalidated on any policy write.
const configCachePrefix = "cfg:"

// ConfigStore reads and writes the gateway configuration entities.
type ConfigStore struct {
	db    *gorm.DB
	cache Cache

	// policyMu serializes read-modify-write cycles on the policy row so two
	// concurrent device auto-binds in one process cannot overwrite each other.
	// Cross-process writers still race; see DESIGN.md.
	policyMu sync.Mutex
}

// NewConfigStore constructs a ConfigStore.
func NewConfigStore(conn *gorm.DB, cache Cache) *ConfigStore {
	return &ConfigStore{db: conn, cache: cache}
}

// SecurityPolicy returns the policy row through a short-TTL cache.
func (s *ConfigStore) SecurityPolicy(ctx context.Context) (*models.SecurityPolicy, error) {
	if raw, found, errGet := s.cache.Get(ctx, policyCacheKey); errGet == nil && found {
		var cached models.SecurityPolicy
		if errUnmarshal := json.Unmarshal(raw, &cached); errUnmarshal == nil {
			return &cached, nil
		}
	}

	var policy models.SecurityPolicy
	if errFind := s.db.WithContext(ctx).First(&policy).Error; errFind != nil {
		return nil, fmt.Errorf("store: load security policy: %w", errFind)
	}

	if raw, errMarshal := json.Marshal(policy); errMarshal == nil {
		ttl := time.Duration(settings.IntValue(settings.ConfigCacheTTLSecondsKey, settings.DefaultConfigCacheTTLSeconds)) * time.Second
		_ = s.cache.Set(ctx, policyCacheKey, raw, ttl)
	}
	return &policy, nil
}

// SaveSecurityPolicy persists the policy row and invalidates cached config.
func (s *ConfigStore) SaveSecurityPolicy(ctx context.Context, policy *models.SecurityPolicy) error {
	if policy == nil {
		return fmt.Errorf("store: nil security policy")
	}
	if errSave := s.db.WithContext(ctx).Save(policy).Error; errSave != nil {
		return fmt.Errorf("store: save security policy: %w", errSave)
	}
	return s.InvalidateConfigCache(ctx)
}

// MutateSecurityPolicy runs fn against a freshly loaded policy row under the
// store's write lock, then persists the result. fn returning false skips the
// write.
func (s *ConfigStore) MutateSecurityPolicy(ctx context.Context, fn func(policy *models.SecurityPolicy) (bool, error)) error {
	s.policyMu.Lock()
	defer s.policyMu.Unlock()

	var policy models.SecurityPolicy
	if errFind := s.db.WithContext(ctx).First(&policy).Error; errFind != nil {
		return fmt.Errorf("store: load security policy: %w", errFind)
	}
	changed, errFn := fn(&policy)
	if errFn != nil {
		return errFn
	}
	if !changed {
		return nil
	}
	return s.SaveSecurityPolicy(ctx, &policy)
}

// InvalidateConfigCache drops every cached config document.
func (s *ConfigStore) InvalidateConfigCache(ctx context.Context) error {
	return s.cache.DeletePrefix(ctx, configCachePrefix)
}

// Sources returns all sources ordered by sort position then key.
func (s *ConfigStore) Sources(ctx context.Context) ([]models.Source, error) {
	var sources []models.Source
	if errFind := s.db.WithContext(ctx).Order("sort_order ASC, id ASC").Find(&sources).Error; errFind != nil {
		return nil, fmt.Errorf("store: list sources: %w", errFind)
	}
	return sources, nil
}

// LiveSources returns all enabled live sources in insertion order.
func (s *ConfigStore) LiveSources(ctx context.Context) ([]models.LiveSource, error) {
	var lives []models.LiveSource
	if errFind := s.db.WithContext(ctx).Where("disabled = ?", false).Order("id ASC").Find(&lives).Error; errFind != nil {
		return nil, fmt.Errorf("store: list live sources: %w", errFind)
	}
	return lives, nil
}

// Tags returns all permission tags.
func (s *ConfigStore) Tags(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	if errFind := s.db.WithContext(ctx).Order("id ASC").Find(&tags).Error; errFind != nil {
		return nil, fmt.Errorf("store: list tags: %w", errFind)
	}
	return tags, nil
}

// UserByName returns the user row for a username, or nil when absent.
func (s *ConfigStore) UserByName(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, nil
	}
	var user models.User
	errFind := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: load user: %w", errFind)
	}
	return &user, nil
}

// DecodeTokens parses the policy's JSON token column.
func DecodeTokens(policy *models.SecurityPolicy) []models.UserToken {
	if policy == nil || len(policy.Tokens) == 0 {
		return nil
	}
	var tokens []models.UserToken
	if errUnmarshal := json.Unmarshal(policy.Tokens, &tokens); errUnmarshal != nil {
		return nil
	}
	return tokens
}

// EncodeTokens serializes tokens back into the policy's JSON column.
func EncodeTokens(policy *models.SecurityPolicy, tokens []models.UserToken) error {
	raw, errMarshal := json.Marshal(tokens)
	if errMarshal != nil {
		return fmt.Errorf("store: encode tokens: %w", errMarshal)
	}
	policy.Tokens = raw
	return nil
}

// DecodeStrings parses a JSON string-array column, tolerating empty columns.
func DecodeStrings(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if errUnmarshal := json.Unmarshal(raw, &list); errUnmarshal != nil {
		return nil
	}
	return list
}
