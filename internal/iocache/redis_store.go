package iocache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/schema"
	"github.com/redis/go-redis/v9"
)

// redisPrefix namespaces every key the store writes.
const redisPrefix = "shellcache"

// RedisStore keeps cache partitions in Redis.
// Partition names live in a sorted set scored by creation time; each partition is one hash.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ contract.CacheStore = &RedisStore{} // Compile-time check

// NewRedisStore connects to the Redis server at redisURL.
func NewRedisStore(redisURL, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis database. Check that the server is running and connection parameters are valid: %w", err)
	}
	if prefix == "" {
		prefix = redisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) partitionsKey() string {
	return s.prefix + ":partitions"
}

func (s *RedisStore) partitionKey(name string) string {
	return s.prefix + ":partition:" + name
}

func (s *RedisStore) openCmd(ctx context.Context, pipe redis.Pipeliner, partition string) {
	pipe.ZAddNX(ctx, s.partitionsKey(), redis.Z{Score: float64(time.Now().UnixMicro()), Member: partition})
}

func encodeEntry(resp *schema.CachedResponse) (string, error) {
	c := resp.Clone()
	if c.StoredAt.IsZero() {
		c.StoredAt = time.Now()
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", resp.Key, err)
	}
	return string(b), nil
}

func decodeEntry(raw string) (*schema.CachedResponse, error) {
	var resp schema.CachedResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode cached response: %w", err)
	}
	return &resp, nil
}

// Open creates the partition if it does not exist yet.
func (s *RedisStore) Open(ctx context.Context, partition string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.openCmd(ctx, pipe, partition)
		return nil
	})
	return err
}

// Partitions lists partition names in creation order.
func (s *RedisStore) Partitions(ctx context.Context) ([]string, error) {
	names, err := s.client.ZRange(ctx, s.partitionsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	return names, nil
}

// Match returns the stored response for key, or nil on a miss.
func (s *RedisStore) Match(ctx context.Context, partition, key string) (*schema.CachedResponse, error) {
	raw, err := s.client.HGet(ctx, s.partitionKey(partition), key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to match %s in %s: %w", key, partition, err)
	}
	return decodeEntry(raw)
}

// Put stores a response under its key, replacing any previous entry.
func (s *RedisStore) Put(ctx context.Context, partition string, resp *schema.CachedResponse) error {
	return s.PutAll(ctx, partition, []*schema.CachedResponse{resp})
}

// PutAll stores every response inside one MULTI/EXEC block.
func (s *RedisStore) PutAll(ctx context.Context, partition string, resps []*schema.CachedResponse) error {
	values := make([]any, 0, 2*len(resps))
	for _, resp := range resps {
		raw, err := encodeEntry(resp)
		if err != nil {
			return err
		}
		values = append(values, resp.Key, raw)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.openCmd(ctx, pipe, partition)
		if len(values) > 0 {
			pipe.HSet(ctx, s.partitionKey(partition), values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store entries in %s: %w", partition, err)
	}
	return nil
}

// Keys lists the keys held by a partition in sorted order.
func (s *RedisStore) Keys(ctx context.Context, partition string) ([]string, error) {
	keys, err := s.client.HKeys(ctx, s.partitionKey(partition)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys of %s: %w", partition, err)
	}
	slices.Sort(keys)
	return keys, nil
}

// DeletePartition removes a partition and its entries.
func (s *RedisStore) DeletePartition(ctx context.Context, partition string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, s.partitionsKey(), partition)
		pipe.Del(ctx, s.partitionKey(partition))
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete partition %s: %w", partition, err)
	}
	return removed.Val() > 0, nil
}

// GetStatus returns status information about the store.
func (s *RedisStore) GetStatus(ctx context.Context) (schema.CacheStatus, error) {
	status := schema.CacheStatus{Backend: string(schema.RedisBackend)}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return status, nil
	}
	status.Connected = true

	members, err := s.client.ZRangeWithScores(ctx, s.partitionsKey(), 0, -1).Result()
	if err != nil {
		return status, fmt.Errorf("failed to list partitions: %w", err)
	}
	for _, z := range members {
		name, _ := z.Member.(string)
		ps := schema.PartitionStatus{Name: name, CreatedAt: time.UnixMicro(int64(z.Score))}
		values, err := s.client.HVals(ctx, s.partitionKey(name)).Result()
		if err != nil {
			return status, fmt.Errorf("failed to read partition %s: %w", name, err)
		}
		for _, raw := range values {
			resp, err := decodeEntry(raw)
			if err != nil {
				return status, err
			}
			ps.Entries++
			ps.Bytes += int64(len(resp.Body))
			trackEntryTime(&status, resp.StoredAt)
		}
		status.Partitions = append(status.Partitions, ps)
		status.TotalEntries += ps.Entries
		status.TotalBytes += ps.Bytes
	}
	status.TotalPartitions = len(status.Partitions)
	return status, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// clearRedis deletes every key under the store prefix.
func clearRedis(ctx context.Context, client *redis.Client, prefix string) error {
	iter := client.Scan(ctx, 0, prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan redis keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return client.Del(ctx, keys...).Err()
}
