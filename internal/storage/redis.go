package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/recipeshelf/shelf/internal/models"
)

// listMembersScript reads a bucket in one round trip whatever its type.
var listMembersScript = redis.NewScript(`
local t = redis.call('TYPE', KEYS[1])
if type(t) == 'table' then t = t['ok'] end
if t == 'set' then
	return redis.call('SMEMBERS', KEYS[1])
elseif t == 'zset' then
	return redis.call('ZRANGE', KEYS[1], 0, -1)
elseif t == 'hash' then
	return redis.call('HKEYS', KEYS[1])
elseif t == 'list' then
	return redis.call('LRANGE', KEYS[1], 0, -1)
end
return {}
`)

// RedisStorage implements Storage on a Redis database.
// Each bucket is one key holding a set, sorted set, or hash.
type RedisStorage struct {
	client *redis.Client
}

// ParseEndpoint turns a cache endpoint into client options. Both
// "redis://[user:pass@]host:port/db" URLs and bare "host:port" are accepted.
func ParseEndpoint(endpoint string) (*redis.Options, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("cache endpoint is empty")
	}
	if strings.Contains(endpoint, "://") {
		opts, err := redis.ParseURL(endpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid cache endpoint: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: endpoint}, nil
}

// NewRedisStorage connects to Redis and verifies the connection with PING.
func NewRedisStorage(ctx context.Context, opts *redis.Options) (*RedisStorage, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to cache at %s: %w", opts.Addr, err)
	}
	return &RedisStorage{client: client}, nil
}

// ListMembers returns the bucket's members. Missing keys yield an empty slice.
func (s *RedisStorage) ListMembers(ctx context.Context, bucket string) ([]string, error) {
	names, err := listMembersScript.Run(ctx, s.client, []string{bucket}).StringSlice()
	if err == redis.Nil {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Buckets scans the keyspace and returns every key, sorted.
func (s *RedisStorage) Buckets(ctx context.Context) ([]string, error) {
	var buckets []string
	iter := s.client.Scan(ctx, 0, "*", 100).Iterator()
	for iter.Next(ctx) {
		buckets = append(buckets, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(buckets)
	return buckets, nil
}

// Replace flushes the database and loads ds inside one MULTI/EXEC block.
// EXEC does not roll back, so ds is validated before anything is queued.
func (s *RedisStorage) Replace(ctx context.Context, ds *models.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.FlushDB(ctx)
		for _, b := range ds.Buckets {
			var set []interface{}
			var ranked []redis.Z
			for _, m := range b.Members {
				if m.Rank != nil {
					ranked = append(ranked, redis.Z{Score: *m.Rank, Member: m.Name})
				} else {
					set = append(set, m.Name)
				}
			}
			if len(set) > 0 {
				pipe.SAdd(ctx, b.Name, set...)
			}
			if len(ranked) > 0 {
				pipe.ZAdd(ctx, b.Name, ranked...)
			}
			if len(b.Fields) > 0 {
				fields := make(map[string]interface{}, len(b.Fields))
				for k, v := range b.Fields {
					fields[k] = v
				}
				pipe.HSet(ctx, b.Name, fields)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
