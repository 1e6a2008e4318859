package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/jobshop-api/internal/models"
	appErrors "github.com/noah-isme/jobshop-api/pkg/errors"
)

const (
	resultKeyPrefix   = "solve:"
	defaultResultTTL  = time.Hour
	cacheableStatus   = "OPTIMAL"
	resultKeyWildcard = resultKeyPrefix + "*"
)

// CacheStore persists JSON payloads by key. *repository.CacheRepository satisfies it.
type CacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ResultCache memoises solve reports by instance fingerprint. Only proven
// optimal reports are stored: a FEASIBLE report depends on the time budget
// of the solve that produced it.
type ResultCache struct {
	store   CacheStore
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewResultCache constructs a cache. A disabled cache misses every lookup.
func NewResultCache(store CacheStore, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *ResultCache {
	if ttl <= 0 {
		ttl = defaultResultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultCache{store: store, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether lookups can hit.
func (c *ResultCache) Enabled() bool {
	return c != nil && c.enabled && c.store != nil
}

// Lookup returns the cached report for fingerprint with Cached set.
// Backend failures count as misses so the caller falls back to solving.
func (c *ResultCache) Lookup(ctx context.Context, fingerprint string) (*models.ScheduleResult, bool) {
	if !c.Enabled() {
		return nil, false
	}
	start := time.Now()
	var report models.ScheduleResult
	err := c.store.Get(ctx, resultKeyPrefix+fingerprint, &report)
	c.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			c.logger.Warn("result cache lookup failed", zap.String("fingerprint", fingerprint), zap.Error(err))
		}
		return nil, false
	}
	report.Cached = true
	return &report, true
}

// Store saves an optimal report. Other statuses and write failures are ignored.
func (c *ResultCache) Store(ctx context.Context, fingerprint string, report *models.ScheduleResult) {
	if !c.Enabled() || report == nil || report.Status != cacheableStatus {
		return
	}
	start := time.Now()
	err := c.store.Set(ctx, resultKeyPrefix+fingerprint, report, c.ttl)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("result cache write failed", zap.String("fingerprint", fingerprint), zap.Error(err))
	}
}

// Flush drops every cached report.
func (c *ResultCache) Flush(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.store.DeleteByPattern(ctx, resultKeyWildcard)
}
