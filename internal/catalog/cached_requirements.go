package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"skyfire-equipment/internal/bos"
	"skyfire-equipment/internal/domain"
	"skyfire-equipment/internal/metrics"
	"skyfire-equipment/internal/store"
)

// DefaultRequirementsTTL 需求表缓存时间
const DefaultRequirementsTTL = 10 * time.Minute

const requirementsKeyPrefix = "equipment:utility_req:"

// CachedRequirements 需求表查询缓存（未找到的结果也缓存）
type CachedRequirements struct {
	next   bos.RequirementsLookup
	kv     store.KV
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedRequirements(next bos.RequirementsLookup, kv store.KV, ttl time.Duration, logger *zap.Logger) *CachedRequirements {
	if ttl <= 0 {
		ttl = DefaultRequirementsTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedRequirements{next: next, kv: kv, ttl: ttl, logger: logger}
}

func requirementsKey(utility string) string {
	return requirementsKeyPrefix + strings.ToLower(strings.TrimSpace(utility))
}

func (c *CachedRequirements) Get(ctx context.Context, utility string) ([]domain.UtilityRequirement, error) {
	key := requirementsKey(utility)
	if raw, err := c.kv.Get(ctx, key); err == nil {
		var reqs []domain.UtilityRequirement
		if err := json.Unmarshal([]byte(raw), &reqs); err == nil {
			metrics.RecordCacheLookup(true)
			return reqs, nil
		}
		c.logger.Warn("corrupt utility requirement cache entry", zap.String("key", key))
	} else if !errors.Is(err, store.ErrMiss) {
		c.logger.Warn("utility requirement cache unavailable", zap.Error(err))
	}
	metrics.RecordCacheLookup(false)

	reqs, err := c.next.Get(ctx, utility)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(reqs)
	if err == nil {
		if err := c.kv.Set(ctx, key, string(payload), c.ttl); err != nil {
			c.logger.Warn("failed to cache utility requirements", zap.String("key", key), zap.Error(err))
		}
	}
	return reqs, nil
}

// Invalidate 清空全部需求表缓存，返回删除的键数
func (c *CachedRequirements) Invalidate(ctx context.Context) (int, error) {
	keys, err := c.kv.ScanKeys(ctx, requirementsKeyPrefix+"*")
	if err != nil {
		return 0, err
	}
	if err := c.kv.Delete(ctx, keys...); err != nil {
		return 0, err
	}
	return len(keys), nil
}
