package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fidotel/internal/platform/sentinel"
)

const settingsKey = "fidotel:telemetry:settings"

// RedisStore keeps the settings as a JSON blob in Redis. Useful for
// multi-node deployments that propagate operator updates without a shared
// relational database.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedis constructs a Redis-backed settings store.
func NewRedis(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Load reads the settings blob. A missing key maps to sentinel.ErrNotFound
// so callers can seed defaults.
func (s *RedisStore) Load(ctx context.Context) (Snapshot, error) {
	raw, err := s.client.Get(ctx, settingsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, fmt.Errorf("telemetry settings: %w", sentinel.ErrNotFound)
		}
		return Snapshot{}, fmt.Errorf("load telemetry settings: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode telemetry settings: %w", err)
	}
	return snap, nil
}

// Save writes the settings blob, bumping the version past whatever is
// currently stored. Concurrent saves are last-writer-wins; the version only
// signals "changed" to refreshing nodes.
func (s *RedisStore) Save(ctx context.Context, snap Snapshot) (Snapshot, error) {
	current, err := s.Load(ctx)
	switch {
	case err == nil:
		snap.Version = current.Version + 1
	case errors.Is(err, sentinel.ErrNotFound):
		snap.Version = 1
	default:
		return Snapshot{}, err
	}
	snap.UpdatedAt = time.Now()

	raw, err := json.Marshal(snap)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode telemetry settings: %w", err)
	}
	if err := s.client.Set(ctx, settingsKey, raw, 0).Err(); err != nil {
		return Snapshot{}, fmt.Errorf("save telemetry settings: %w", err)
	}
	return snap, nil
}
