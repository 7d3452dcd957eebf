package buffer

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces the keys written by the redis store.
const DefaultRedisKeyPrefix = "hist:"

// RedisOptions configures a redis-backed change buffer.
type RedisOptions struct {
	Addr      string
	DB        int
	KeyPrefix string // DefaultRedisKeyPrefix when empty
}

// redisStore keeps each project's queue in a list and the set of projects
// with queued changes in a set:
//
//	<prefix>changes:<project id>  LIST of records
//	<prefix>projects              SET of project ids
type redisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisChangeBuffer connects to redis and returns a change buffer stored
// there. Several processes may share one redis as long as they do not
// flush the same project concurrently.
func NewRedisChangeBuffer(ctx context.Context, opts RedisOptions, maxChanges int) (*Buffer, error) {
	rdb := redis.NewClient(&redis.Options{Addr: opts.Addr, DB: opts.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return newBuffer(&redisStore{rdb: rdb, prefix: prefix}, maxChanges), nil
}

func (s *redisStore) queueKey(projectID string) string {
	return s.prefix + "changes:" + projectID
}

func (s *redisStore) projectsKey() string {
	return s.prefix + "projects"
}

func (s *redisStore) Append(ctx context.Context, projectID string, records [][]byte) error {
	values := make([]any, 0, len(records))
	for _, r := range records {
		values = append(values, r)
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, s.queueKey(projectID), values...)
		pipe.SAdd(ctx, s.projectsKey(), projectID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("appending to redis queue: %w", err)
	}
	return nil
}

func (s *redisStore) Range(ctx context.Context, projectID string) ([][]byte, error) {
	values, err := s.rdb.LRange(ctx, s.queueKey(projectID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading redis queue: %w", err)
	}
	records := make([][]byte, 0, len(values))
	for _, v := range values {
		records = append(records, []byte(v))
	}
	return records, nil
}

func (s *redisStore) Trim(ctx context.Context, projectID string, n int) error {
	var remaining *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LTrim(ctx, s.queueKey(projectID), int64(n), -1)
		remaining = pipe.LLen(ctx, s.queueKey(projectID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("trimming redis queue: %w", err)
	}
	if remaining.Val() == 0 {
		if err := s.rdb.SRem(ctx, s.projectsKey(), projectID).Err(); err != nil {
			return fmt.Errorf("updating redis project set: %w", err)
		}
	}
	return nil
}

func (s *redisStore) Len(ctx context.Context, projectID string) (int, error) {
	n, err := s.rdb.LLen(ctx, s.queueKey(projectID)).Result()
	if err != nil {
		return 0, fmt.Errorf("counting redis queue: %w", err)
	}
	return int(n), nil
}

func (s *redisStore) Projects(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, s.projectsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("listing redis queues: %w", err)
	}
	return ids, nil
}

func (s *redisStore) Close() error {
	return s.rdb.Close()
}
