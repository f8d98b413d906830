package stocksync

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
)

type redisCycleLocker struct {
	client *redislock.Client
}

// NewRedisCycleLocker guards batch cycles with a Redis lock so two service
// replicas never run the same cycle concurrently. A held lock means skip, not
// fail.
func NewRedisCycleLocker(client *redislock.Client) CycleLocker {
	return &redisCycleLocker{client: client}
}

func (l *redisCycleLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	if l.client == nil {
		noop := func() {}
		return noop, true, nil
	}
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, false, nil
		}
		return nil, false, err
	}
	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}
	return release, true, nil
}
