package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// runningTTL bounds keys left behind by a crashed renderer.
	runningTTL     = 24 * time.Hour
	retentionGrace = 5 * time.Second
)

// RedisOptions configures the Redis store.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	Retention time.Duration
}

// RedisStore keeps progress documents as JSON strings with expiry.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, errors.New("progress: redis address required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("progress: connect redis %s: %w", opts.Addr, err)
	}
	return &RedisStore{client: client, prefix: opts.KeyPrefix, retention: opts.Retention}, nil
}

func (r *RedisStore) key(jobID string) string {
	return r.prefix + sanitizeID(jobID)
}

// ttlFor keeps finished jobs only for the retention window plus a grace period.
func ttlFor(state State, retention time.Duration) time.Duration {
	if state.Status == StatusComplete || state.Status == StatusFailed {
		return retention + retentionGrace
	}
	return runningTTL
}

func (r *RedisStore) Load(ctx context.Context, jobID string) (State, error) {
	data, err := r.client.Get(ctx, r.key(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("progress: redis get: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("progress: decode redis state: %w", err)
	}
	return state, nil
}

func (r *RedisStore) Save(ctx context.Context, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("progress: encode state: %w", err)
	}
	if err := r.client.Set(ctx, r.key(state.JobID), data, ttlFor(state, r.retention)).Err(); err != nil {
		return fmt.Errorf("progress: redis set: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, jobID string) error {
	if err := r.client.Del(ctx, r.key(jobID)).Err(); err != nil {
		return fmt.Errorf("progress: redis del: %w", err)
	}
	return nil
}

func (r *RedisStore) List(ctx context.Context) ([]State, error) {
	var states []State
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		state, err := r.Load(ctx, strings.TrimPrefix(iter.Val(), r.prefix))
		if err != nil {
			continue
		}
		states = append(states, state)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("progress: redis scan: %w", err)
	}
	return states, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
