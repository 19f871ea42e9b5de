package taxcalc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dvloznov/refund-explainer/internal/cache"
	"github.com/dvloznov/refund-explainer/internal/domain"
	"github.com/dvloznov/refund-explainer/internal/logger"
)

const cacheKeyPrefix = "refund:calc:"

// Cached memoizes another calculator's results in a cache.Store.
// Cache failures are logged and never fail the calculation.
type Cached struct {
	next  Calculator
	store cache.Store
	ttl   time.Duration
}

// NewCached wraps next with store. A zero ttl keeps entries until evicted.
func NewCached(next Calculator, store cache.Store, ttl time.Duration) *Cached {
	return &Cached{next: next, store: store, ttl: ttl}
}

func (c *Cached) Calculate(ctx context.Context, r domain.TaxRecord) (domain.BalanceResult, error) {
	log := logger.FromContext(ctx)

	key, err := CacheKey(r)
	if err != nil {
		return domain.BalanceResult{}, fmt.Errorf("Calculate: build cache key: %w", err)
	}

	if raw, ok, err := c.store.Get(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Calculator cache read failed")
	} else if ok {
		var res domain.BalanceResult
		if err := json.Unmarshal([]byte(raw), &res); err == nil {
			return res, nil
		}
		log.Warn().Str("key", key).Msg("Discarding malformed calculator cache entry")
	}

	res, err := c.next.Calculate(ctx, r)
	if err != nil {
		return domain.BalanceResult{}, err
	}

	data, err := json.Marshal(res)
	if err != nil {
		return res, nil
	}
	if err := c.store.Set(ctx, key, string(data), c.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Calculator cache write failed")
	}
	return res, nil
}

// CacheKey hashes the canonical JSON form of r.
func CacheKey(r domain.TaxRecord) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return cacheKeyPrefix + strconv.FormatUint(xxhash.Sum64(data), 16), nil
}
