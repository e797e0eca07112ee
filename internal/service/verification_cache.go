package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/medsurat-api/internal/models"
	appErrors "github.com/noah-isme/medsurat-api/pkg/errors"
)

const verificationKeyPrefix = "verify:"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// VerificationCache keeps VALID verification views keyed by every ID a
// caller may look them up with. Approval is terminal, so entries never go
// stale. Backend failures degrade to misses.
type VerificationCache struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewVerificationCache constructs the cache. A non-positive ttl means ten minutes.
func NewVerificationCache(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *VerificationCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationCache{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (c *VerificationCache) Enabled() bool {
	return c != nil && c.enabled && c.repo != nil
}

// Lookup returns the cached view for a certificate or record ID.
func (c *VerificationCache) Lookup(ctx context.Context, id string) (*models.VerificationView, bool) {
	if !c.Enabled() {
		return nil, false
	}
	var view models.VerificationView
	start := time.Now()
	err := c.repo.Get(ctx, verificationKeyPrefix+id, &view)
	if err == nil && view.CertificateID == "" {
		err = appErrors.ErrCacheMiss
	}
	c.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			c.logger.Warn("verification cache read failed", zap.String("id", id), zap.Error(err))
		}
		return nil, false
	}
	return &view, true
}

// Store caches view under each of ids. Signed document links expire sooner
// than the entry and are dropped.
func (c *VerificationCache) Store(ctx context.Context, view models.VerificationView, ids ...string) {
	if !c.Enabled() || view.CertificateID == "" {
		return
	}
	view.DocumentURL = ""
	view.DocumentURLExpiresAt = nil

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		start := time.Now()
		err := c.repo.Set(ctx, verificationKeyPrefix+id, view, c.ttl)
		c.metrics.ObserveCacheWrite(time.Since(start))
		if err != nil {
			c.logger.Warn("verification cache write failed", zap.String("id", id), zap.Error(err))
		}
	}
}

// Forget drops the entry for id.
func (c *VerificationCache) Forget(ctx context.Context, id string) {
	if !c.Enabled() {
		return
	}
	if err := c.repo.Delete(ctx, verificationKeyPrefix+id); err != nil {
		c.logger.Warn("verification cache delete failed", zap.String("id", id), zap.Error(err))
	}
}
