package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"proxycare/internal/database"
	"proxycare/internal/domain"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
)

const (
	poolKeyPrefix  = "proxycare:pool:"
	defaultPoolTTL = 6 * time.Minute
)

// PoolCache mirrors each source's eligible proxies into a Redis sorted set
// scored by priority, so readers that only need "what does the pool look
// like" don't hit the database. The cache is advisory: selection always goes
// through the store's atomic claim, and a nil cache disables everything.
type PoolCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPoolCache(client *redis.Client) *PoolCache {
	if client == nil {
		return nil
	}
	return &PoolCache{client: client, ttl: defaultPoolTTL}
}

func (poolCache *PoolCache) Enabled() bool {
	return poolCache != nil && poolCache.client != nil
}

type poolEntry struct {
	ProxyID  uint64 `json:"proxy_id"`
	Address  string `json:"address"`
	Priority int    `json:"priority"`
}

func poolKey(sourceID uint) string {
	return fmt.Sprintf("%s%d", poolKeyPrefix, sourceID)
}

// SnapshotSource replaces the source's sorted set with the given proxies.
func (poolCache *PoolCache) SnapshotSource(ctx context.Context, sourceID uint, proxies []domain.Proxy) error {
	if !poolCache.Enabled() {
		return nil
	}

	key := poolKey(sourceID)
	members := make([]redis.Z, 0, len(proxies))
	for idx := range proxies {
		proxy := &proxies[idx]
		payload, err := json.Marshal(poolEntry{
			ProxyID:  proxy.ID,
			Address:  proxy.Address,
			Priority: proxy.Priority,
		})
		if err != nil {
			return fmt.Errorf("pool cache: marshal proxy %d: %w", proxy.ID, err)
		}
		members = append(members, redis.Z{Score: float64(proxy.Priority), Member: string(payload)})
	}

	pipe := poolCache.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(members) > 0 {
		pipe.ZAdd(ctx, key, members...)
		pipe.Expire(ctx, key, poolCache.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pool cache: snapshot source %d: %w", sourceID, err)
	}
	return nil
}

// RefreshSource rebuilds the snapshot from the store.
func (poolCache *PoolCache) RefreshSource(ctx context.Context, sourceID uint) error {
	if !poolCache.Enabled() {
		return nil
	}

	proxies, err := database.ListEligibleProxies(sourceID)
	if err != nil {
		return fmt.Errorf("pool cache: load eligible proxies for source %d: %w", sourceID, err)
	}
	return poolCache.SnapshotSource(ctx, sourceID, proxies)
}

// RefreshAll rebuilds snapshots for every known source and returns how many
// were written.
func (poolCache *PoolCache) RefreshAll(ctx context.Context) (int, error) {
	if !poolCache.Enabled() {
		return 0, nil
	}

	sourceIDs, err := database.ListSourceIDs()
	if err != nil {
		return 0, fmt.Errorf("pool cache: list sources: %w", err)
	}

	refreshed := 0
	for _, sourceID := range sourceIDs {
		if err := poolCache.RefreshSource(ctx, sourceID); err != nil {
			log.Error("pool cache refresh failed", "source_id", sourceID, "error", err)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// PoolSizes reports the cached pool size per source key, for the debug
// surface.
func (poolCache *PoolCache) PoolSizes(ctx context.Context) (map[string]int64, error) {
	if !poolCache.Enabled() {
		return map[string]int64{}, nil
	}

	sizes := make(map[string]int64)
	iter := poolCache.client.Scan(ctx, 0, poolKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		size, err := poolCache.client.ZCard(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("pool cache: zcard %s: %w", key, err)
		}
		sizes[key] = size
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("pool cache: scan keys: %w", err)
	}
	return sizes, nil
}
