// Package redis stores node results in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/nodeflow/store"
)

// RedisResultStore implements store.ResultStore using Redis
type RedisResultStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	codec  store.Codec
}

// RedisOptions configuration for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "nodeflow:"
	TTL      time.Duration // Expiration for records, default 0 (no expiration)
	Codec    store.Codec   // Record encoding, default store.DefaultCodec
}

// NewRedisResultStore creates a new Redis result store
func NewRedisResultStore(opts RedisOptions) *RedisResultStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "nodeflow:"
	}
	codec := opts.Codec
	if codec == nil {
		codec = store.DefaultCodec
	}

	return &RedisResultStore{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
		codec:  codec,
	}
}

// Close closes the underlying client.
func (s *RedisResultStore) Close() error {
	return s.client.Close()
}

func (s *RedisResultStore) recordKey(id string) string {
	return fmt.Sprintf("%srecord:%s", s.prefix, id)
}

func (s *RedisResultStore) runKey(id string) string {
	return fmt.Sprintf("%srun:%s:records", s.prefix, id)
}

// Save stores a record and indexes it by run
func (s *RedisResultStore) Save(ctx context.Context, record *store.Record) error {
	data, err := s.codec.Encode(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.recordKey(record.ID), data, s.ttl)
	if record.RunID != "" {
		runKey := s.runKey(record.RunID)
		pipe.SAdd(ctx, runKey, record.ID)
		if s.ttl > 0 {
			pipe.Expire(ctx, runKey, s.ttl)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save record to redis: %w", err)
	}
	return nil
}

// Load retrieves a record by ID
func (s *RedisResultStore) Load(ctx context.Context, recordID string) (*store.Record, error) {
	data, err := s.client.Get(ctx, s.recordKey(recordID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, recordID)
		}
		return nil, fmt.Errorf("failed to load record from redis: %w", err)
	}

	record, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return record, nil
}

// List returns all records of a run, oldest first
func (s *RedisResultStore) List(ctx context.Context, runID string) ([]*store.Record, error) {
	ids, err := s.client.SMembers(ctx, s.runKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list records for run %s: %w", runID, err)
	}
	if len(ids) == 0 {
		return []*store.Record{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(id)
	}

	// MGet returns nil for keys that expired since they were indexed.
	results, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}

	records := make([]*store.Record, 0, len(results))
	for _, result := range results {
		str, ok := result.(string)
		if !ok {
			continue
		}
		record, err := s.codec.Decode([]byte(str))
		if err != nil {
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

// Delete removes a record
func (s *RedisResultStore) Delete(ctx context.Context, recordID string) error {
	record, err := s.Load(ctx, recordID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.recordKey(recordID))
	if record.RunID != "" {
		pipe.SRem(ctx, s.runKey(record.RunID), recordID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Clear removes all records of a run
func (s *RedisResultStore) Clear(ctx context.Context, runID string) error {
	runKey := s.runKey(runID)
	ids, err := s.client.SMembers(ctx, runKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get records for clearing: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.recordKey(id))
	}
	pipe.Del(ctx, runKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}
