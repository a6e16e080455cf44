package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

const (
	itemKeyPrefix  = "item:"
	defaultItemTTL = 10 * time.Minute
	snapshotField  = "data"
	versionField   = "version"
)

// setItemScript writes a snapshot only when it is newer than the cached one,
// so a slow writer cannot roll the cache back to an older stock value.
var setItemScript = redis.NewScript(`
local key = KEYS[1]
local version = tonumber(ARGV[1])

local current = redis.call('HGET', key, 'version')
if current and tonumber(current) >= version then
	return 0
end

redis.call('HSET', key, 'version', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', key, ARGV[3])
return 1
`)

type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	if ttl <= 0 {
		ttl = defaultItemTTL
	}
	return &RedisAdapter{client: client, ttl: ttl}
}

type cachedItem struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Stock        int    `json:"stock"`
	MinimumStock int    `json:"minimum_stock"`
	State        string `json:"state"`
	Version      int64  `json:"version"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

func itemKey(itemID int64) string {
	return itemKeyPrefix + strconv.FormatInt(itemID, 10)
}

func (r *RedisAdapter) GetItem(ctx context.Context, itemID int64) (*domain.Item, error) {
	data, err := r.client.HGet(ctx, itemKey(itemID), snapshotField).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached item: %w", err)
	}

	var c cachedItem
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode cached item: %w", err)
	}

	return &domain.Item{
		ID:           c.ID,
		Name:         c.Name,
		Stock:        c.Stock,
		MinimumStock: c.MinimumStock,
		State:        domain.LifecycleState(c.State),
		Version:      c.Version,
		CreatedAt:    time.UnixMicro(c.CreatedAt).UTC(),
		UpdatedAt:    time.UnixMicro(c.UpdatedAt).UTC(),
	}, nil
}

func (r *RedisAdapter) SetItem(ctx context.Context, item domain.Item) error {
	data, err := json.Marshal(cachedItem{
		ID:           item.ID,
		Name:         item.Name,
		Stock:        item.Stock,
		MinimumStock: item.MinimumStock,
		State:        string(item.State),
		Version:      item.Version,
		CreatedAt:    item.CreatedAt.UnixMicro(),
		UpdatedAt:    item.UpdatedAt.UnixMicro(),
	})
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}

	err = setItemScript.Run(ctx, r.client, []string{itemKey(item.ID)},
		item.Version, data, r.ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("set cached item: %w", err)
	}
	return nil
}

func (r *RedisAdapter) InvalidateItem(ctx context.Context, itemID int64) error {
	return r.client.Del(ctx, itemKey(itemID)).Err()
}
