// Package redisstore keeps job state in Redis so several server processes
// can answer progress polls for each other's jobs.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"videograb/internal/core/domain"
)

const (
	keyPrefix        = "job:"
	maxUpdateRetries = 10
)

// Store implements ports.JobStore on Redis. Every write refreshes the key's
// TTL, so expiry replaces explicit eviction.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// New wraps an existing client.
func New(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Connect dials addr and pings it.
func Connect(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return New(rdb, ttl), nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func jobKey(id string) string {
	return keyPrefix + id
}

func encodeJob(job domain.Job) ([]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}
	return data, nil
}

func decodeJob(data []byte) (domain.Job, error) {
	var job domain.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return domain.Job{}, fmt.Errorf("failed to decode job: %w", err)
	}
	return job, nil
}

func (s *Store) Put(ctx context.Context, job domain.Job) error {
	data, err := encodeJob(job)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, jobKey(job.ID), data, s.ttl).Err()
}

func (s *Store) Get(ctx context.Context, id string) (domain.Job, bool, error) {
	data, err := s.rdb.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Job{}, false, nil
	}
	if err != nil {
		return domain.Job{}, false, fmt.Errorf("redis get %s: %w", id, err)
	}
	job, err := decodeJob(data)
	if err != nil {
		return domain.Job{}, false, err
	}
	return job, true, nil
}

// Update runs fn inside an optimistic WATCH/MULTI transaction, retrying when
// another writer touched the key in between.
func (s *Store) Update(ctx context.Context, id string, fn func(*domain.Job)) (bool, error) {
	key := jobKey(id)
	found := false

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		job, err := decodeJob(data)
		if err != nil {
			return err
		}
		found = true
		fn(&job)

		updated, err := encodeJob(job)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("redis update %s: %w", id, err)
		}
		return found, nil
	}
	return false, fmt.Errorf("redis update %s: too much contention", id)
}

// EvictFinished is a no-op: keys expire on their own.
func (s *Store) EvictFinished(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (s *Store) Len(ctx context.Context) (int, error) {
	n := 0
	iter := s.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return n, nil
}
