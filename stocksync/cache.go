package stocksync

import (
	"time"

	"bitbucket.org/mmdatafocus/stockverify_backend/config"
)

// ResultCache absorbs repeated real-time checks of the same item within a
// short window, keeping request bursts off the ERP.
type ResultCache interface {
	Get(itemCode string) (*RefreshResult, bool)
	Set(itemCode string, res *RefreshResult)
}

type redisResultCache struct {
	ttl time.Duration
}

// NewRedisResultCache caches refresh results in Redis. The helpers are
// nil-safe, so a deployment without Redis degrades to no caching.
func NewRedisResultCache(ttl time.Duration) ResultCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &redisResultCache{ttl: ttl}
}

func (c *redisResultCache) Get(itemCode string) (*RefreshResult, bool) {
	var res RefreshResult
	found, err := config.GetRedisObject("RealtimeQty:"+itemCode, &res)
	if err != nil || !found {
		return nil, false
	}
	return &res, true
}

func (c *redisResultCache) Set(itemCode string, res *RefreshResult) {
	_ = config.SetRedisObject("RealtimeQty:"+itemCode, res, c.ttl)
}
