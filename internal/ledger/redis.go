package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

const (
	entryKeyPrefix = "railmeal:ledger:entry:"
	pendingSetKey  = "railmeal:ledger:pending"
)

// Redis is a Ledger backed by Redis. Entries are JSON values that expire
// after the configured TTL; a set indexes the pending ones.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

var _ Ledger = (*Redis)(nil)

// NewRedis returns a Redis ledger. A non-positive ttl keeps entries forever.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl < 0 {
		ttl = 0
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

func entryKey(key string) string {
	return entryKeyPrefix + key
}

// Record stores e under its key and indexes it while pending. Every write
// refreshes the TTL.
func (r *Redis) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.Key == "" {
		return Entry{}, errors.New("ledger: empty key")
	}

	stored, err := r.Get(ctx, e.Key)
	if err != nil && !errors.Is(err, ErrEntryNotFound) {
		return Entry{}, err
	}
	out := merge(stored, e, r.now())

	data, err := json.Marshal(out)
	if err != nil {
		return Entry{}, errors.Wrap(err, "marshal entry")
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, entryKey(out.Key), data, r.ttl)
		if out.Status == StatusPending {
			p.SAdd(ctx, pendingSetKey, out.Key)
		}
		return nil
	})
	if err != nil {
		return Entry{}, errors.Wrap(err, "redis record")
	}
	return out, nil
}

// Get returns the entry for key, or ErrEntryNotFound.
func (r *Redis) Get(ctx context.Context, key string) (*Entry, error) {
	data, err := r.client.Get(ctx, entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.Wrap(err, "unmarshal entry")
	}
	return &e, nil
}

// Pending lists pending entries, oldest first. Index members whose entry
// expired are pruned on the way.
func (r *Redis) Pending(ctx context.Context) ([]Entry, error) {
	keys, err := r.client.SMembers(ctx, pendingSetKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis smembers")
	}
	if len(keys) == 0 {
		return nil, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = entryKey(k)
	}
	values, err := r.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis mget")
	}

	var (
		out     []Entry
		expired []any
	)
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			expired = append(expired, keys[i])
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			return nil, errors.Wrapf(err, "unmarshal entry %s", keys[i])
		}
		if e.Status == StatusPending {
			out = append(out, e)
		}
	}
	if len(expired) > 0 {
		if err := r.client.SRem(ctx, pendingSetKey, expired...).Err(); err != nil {
			return nil, errors.Wrap(err, "redis srem")
		}
	}

	sortByCreated(out)
	return out, nil
}

// Resolve marks the entry settled by orderID and drops it from the pending
// index. The entry keeps its remaining TTL.
func (r *Redis) Resolve(ctx context.Context, key string, orderID int64) error {
	e, err := r.Get(ctx, key)
	if err != nil {
		return err
	}
	e.Status = StatusResolved
	e.OrderID = orderID
	e.UpdatedAt = r.now()

	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal entry")
	}

	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SetArgs(ctx, entryKey(key), data, redis.SetArgs{KeepTTL: true})
		p.SRem(ctx, pendingSetKey, key)
		return nil
	})
	return errors.Wrap(err, "redis resolve")
}

// Ping checks the connection. It backs the readiness probe.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
