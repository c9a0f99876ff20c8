package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bazar-store/bazar/internal/core/domain"
)

const (
	itemKeyPrefix  = "item:"
	stockKeyPrefix = "stock:"
	itemIndexKey   = "items"

	idempotencyTTL = 24 * time.Hour
	// idemPending marks a claimed key whose purchase has not completed.
	idemPending = "__pending__"
)

// reserveStockScript is the atomic check-and-decrement. Returns the
// post-decrement stock, -1 when the stock is insufficient, -2 when the item
// is unknown. The check and the DECRBY run as one unit inside Redis, so
// concurrent reservations on the same item cannot oversell.
var reserveStockScript = redis.NewScript(`
local stock = redis.call('GET', KEYS[1])
if not stock then
	return -2
end

stock = tonumber(stock)
local quantity = tonumber(ARGV[1])
if stock < quantity then
	return -1
end

return redis.call('DECRBY', KEYS[1], quantity)
`)

var restoreStockScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -2
end

return redis.call('INCRBY', KEYS[1], tonumber(ARGV[1]))
`)

// RedisCatalog stores item records as hashes and stock as plain integer keys
// so the Lua reservation script can mutate them atomically.
type RedisCatalog struct {
	client *redis.Client
}

func NewRedisCatalog(client *redis.Client) *RedisCatalog {
	return &RedisCatalog{client: client}
}

func (r *RedisCatalog) GetItem(ctx context.Context, id int) (domain.Item, error) {
	fields, err := r.client.HGetAll(ctx, itemKey(id)).Result()
	if err != nil {
		return domain.Item{}, fmt.Errorf("get item %d: %w", id, err)
	}
	if len(fields) == 0 {
		return domain.Item{}, domain.ErrNotFound
	}

	stock, err := r.client.Get(ctx, stockKey(id)).Int()
	if errors.Is(err, redis.Nil) {
		// PutItem writes the hash and the stock key together, so this is
		// corrupted state, not a missing item.
		return domain.Item{}, fmt.Errorf("stock key missing for item %d: %w", id, err)
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("get stock for item %d: %w", id, err)
	}

	cost, _ := strconv.Atoi(fields["cost"])
	return domain.Item{
		ID:    id,
		Title: fields["title"],
		Topic: fields["topic"],
		Cost:  cost,
		Stock: stock,
	}, nil
}

func (r *RedisCatalog) ListItems(ctx context.Context, pred func(domain.Item) bool) ([]domain.Item, error) {
	ids, err := r.client.SMembers(ctx, itemIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	out := make([]domain.Item, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		item, err := r.GetItem(ctx, id)
		if err != nil {
			return nil, err
		}
		if pred == nil || pred(item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *RedisCatalog) PutItem(ctx context.Context, item domain.Item) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, itemKey(item.ID), map[string]interface{}{
		"title": item.Title,
		"topic": item.Topic,
		"cost":  item.Cost,
	})
	pipe.Set(ctx, stockKey(item.ID), item.Stock, 0)
	pipe.SAdd(ctx, itemIndexKey, item.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put item %d: %w", item.ID, err)
	}
	return nil
}

func (r *RedisCatalog) Count(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, itemIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return int(n), nil
}

func (r *RedisCatalog) ReserveStock(ctx context.Context, id, quantity int) (int, error) {
	result, err := reserveStockScript.Run(ctx, r.client, []string{stockKey(id)}, quantity).Int()
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			// Transient contention; the caller retries with backoff.
			return 0, fmt.Errorf("reserve stock for item %d: %w", id,
				errors.Join(domain.ErrReservationRace, err))
		}
		return 0, fmt.Errorf("reserve stock for item %d: %w", id, err)
	}
	switch result {
	case -2:
		return 0, domain.ErrNotFound
	case -1:
		return 0, domain.ErrOutOfStock
	default:
		return result, nil
	}
}

func (r *RedisCatalog) RestoreStock(ctx context.Context, id, quantity int) (int, error) {
	result, err := restoreStockScript.Run(ctx, r.client, []string{stockKey(id)}, quantity).Int()
	if err != nil {
		return 0, fmt.Errorf("restore stock for item %d: %w", id, err)
	}
	if result == -2 {
		return 0, domain.ErrNotFound
	}
	return result, nil
}

func itemKey(id int) string  { return itemKeyPrefix + strconv.Itoa(id) }
func stockKey(id int) string { return stockKeyPrefix + strconv.Itoa(id) }

// RedisIdempotency keeps idempotency claims in Redis so retries survive an
// order service restart. Claims expire after idempotencyTTL.
type RedisIdempotency struct {
	client *redis.Client
}

func NewRedisIdempotency(client *redis.Client) *RedisIdempotency {
	return &RedisIdempotency{client: client}
}

func (r *RedisIdempotency) Claim(ctx context.Context, key string) (string, bool, error) {
	ok, err := r.client.SetNX(ctx, key, idemPending, idempotencyTTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return "", true, nil
	}

	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		// Claim released between SETNX and GET; treat as in flight, the
		// client may retry.
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read idempotency key: %w", err)
	}
	if val == idemPending {
		return "", false, nil
	}
	return val, false, nil
}

func (r *RedisIdempotency) Complete(ctx context.Context, key, orderID string) error {
	if err := r.client.Set(ctx, key, orderID, idempotencyTTL).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

func (r *RedisIdempotency) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
