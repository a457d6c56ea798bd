package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/modelscope/agentscope-sub001/types"
)

const (
	redisKeyPrefix   = "agentscope:checkpoint:"
	redisThreadIndex = "agentscope:checkpoint:thread:"
)

// RedisStore persists checkpoints in Redis. Each checkpoint is a JSON value
// under its own key, and a per-thread sorted set scored by version serves
// latest-checkpoint lookups.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithTTL sets an expiration on stored checkpoints. Zero means no expiry.
func WithTTL(ttl time.Duration) RedisStoreOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// NewRedisStore creates a Redis-backed checkpoint store.
func NewRedisStore(client *redis.Client, logger *zap.Logger, opts ...RedisStoreOption) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RedisStore{
		client: client,
		logger: logger.With(zap.String("component", "checkpoint_redis")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(id string) string { return redisKeyPrefix + id }

func (s *RedisStore) threadKey(threadID string) string { return redisThreadIndex + threadID }

func (s *RedisStore) Save(ctx context.Context, cp *Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(cp.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.threadKey(cp.ThreadID), redis.Z{
		Score:  float64(cp.Version),
		Member: cp.ID,
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, s.threadKey(cp.ThreadID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", cp.ID, err)
	}

	s.logger.Debug("checkpoint saved",
		zap.String("id", cp.ID),
		zap.String("thread_id", cp.ThreadID),
		zap.Int("version", cp.Version),
	)
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (*Checkpoint, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", id, err)
	}
	return decodeCheckpoint(data)
}

func (s *RedisStore) LoadLatest(ctx context.Context, threadID string) (*Checkpoint, error) {
	ids, err := s.client.ZRevRange(ctx, s.threadKey(threadID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("load latest for thread %s: %w", threadID, err)
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	return s.Load(ctx, ids[0])
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	cp, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(id))
	pipe.ZRem(ctx, s.threadKey(cp.ThreadID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", id, err)
	}
	return nil
}

func decodeCheckpoint(data []byte) (*Checkpoint, error) {
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	if cp.State == nil {
		cp.State = &types.Snapshot{}
	}
	return &cp, nil
}
