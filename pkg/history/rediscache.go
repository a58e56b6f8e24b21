package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedBackend wraps a Backend with a Redis read-through cache for the
// baseline query the deviation analyzer calls on every run. Only Baseline is
// cached; Recent and every other method go straight to the wrapped Backend.
// Grounded on the teacher's pkg/store/redis/redis.go: JSON-blob values
// under a namespaced key, best-effort cache writes that log and continue
// rather than fail the call.
type CachedBackend struct {
	Backend
	client *redis.Client
	ttl    time.Duration
}

func NewCachedBackend(backend Backend, client *redis.Client, ttl time.Duration) *CachedBackend {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedBackend{Backend: backend, client: client, ttl: ttl}
}

func (c *CachedBackend) baselineKey(testName string, sampleSize int) string {
	return fmt.Sprintf("stresslab:baseline:%s:%d", testName, sampleSize)
}

func (c *CachedBackend) Baseline(testName string, sampleSize int) (*HistoryRecord, error) {
	ctx := context.Background()
	key := c.baselineKey(testName, sampleSize)

	if data, err := c.client.Get(ctx, key).Result(); err == nil {
		var rec HistoryRecord
		if jsonErr := json.Unmarshal([]byte(data), &rec); jsonErr == nil {
			return &rec, nil
		}
	} else if err != redis.Nil {
		log.Printf(`{"level":"warn","msg":"history_cache_get_failed","key":%q,"error":%q}`, key, err.Error())
	}

	rec, err := c.Backend.Baseline(testName, sampleSize)
	if err != nil || rec == nil {
		return rec, err
	}

	if data, marshalErr := json.Marshal(rec); marshalErr == nil {
		if setErr := c.client.Set(ctx, key, data, c.ttl).Err(); setErr != nil {
			log.Printf(`{"level":"warn","msg":"history_cache_set_failed","key":%q,"error":%q}`, key, setErr.Error())
		}
	}
	return rec, nil
}

// Append invalidates the baseline cache for the affected test before
// delegating, since a new Completed run changes the baseline's composition.
func (c *CachedBackend) Append(rec HistoryRecord) (HistoryRecord, error) {
	stored, err := c.Backend.Append(rec)
	if err == nil {
		ctx := context.Background()
		pattern := fmt.Sprintf("stresslab:baseline:%s:*", stored.TestName)
		if keys, kerr := c.client.Keys(ctx, pattern).Result(); kerr == nil && len(keys) > 0 {
			if derr := c.client.Del(ctx, keys...).Err(); derr != nil {
				log.Printf(`{"level":"warn","msg":"history_cache_invalidate_failed","pattern":%q,"error":%q}`, pattern, derr.Error())
			}
		}
	}
	return stored, err
}
