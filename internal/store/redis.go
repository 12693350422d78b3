package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "arnime"

// mgetBatch bounds the number of keys fetched per MGET
const mgetBatch = 200

// RedisStore keeps each document as a JSON string and each collection
// as a sorted set of ids scored by insertion sequence
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to redisURL
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// only the address is logged, the URL may carry a password
	log.Info().Str("addr", opt.Addr).Msg("✅ Redis connected")

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func docKey(collection, id string) string {
	return fmt.Sprintf("%s:doc:%s:%s", redisKeyPrefix, collection, id)
}

func indexKey(collection string) string {
	return fmt.Sprintf("%s:idx:%s", redisKeyPrefix, collection)
}

// fieldIndexKey is a sorted set of the ids whose field equals value,
// scored like indexKey
func fieldIndexKey(collection, field, value string) string {
	return fmt.Sprintf("%s:idx:%s:%s:%s", redisKeyPrefix, collection, field, value)
}

// indexedFields are kept in a per-value index so Query can skip the
// collection scan
var indexedFields = []string{"userId"}

// indexedValues returns the string values of fields that are indexed
func indexedValues(fields Fields) map[string]string {
	out := make(map[string]string, len(indexedFields))
	for _, f := range indexedFields {
		if v, ok := fields[f].(string); ok {
			out[f] = v
		}
	}
	return out
}

func seqKey(collection string) string {
	return fmt.Sprintf("%s:seq:%s", redisKeyPrefix, collection)
}

// Get implements Store
func (s *RedisStore) Get(ctx context.Context, collection, id string) (*Doc, error) {
	val, err := s.client.Get(ctx, docKey(collection, id)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, wrap("get", collection, id, err)
	}

	var fields Fields
	if err := json.Unmarshal([]byte(val), &fields); err != nil {
		return nil, wrap("get", collection, id, err)
	}
	return &Doc{ID: id, Fields: fields}, nil
}

// Set implements Store
func (s *RedisStore) Set(ctx context.Context, collection, id string, fields Fields, mergeFields bool) error {
	if err := validateID(id); err != nil {
		return wrap("set", collection, id, err)
	}

	existing, err := s.Get(ctx, collection, id)
	if err != nil && err != ErrNotFound {
		return err
	}

	body := fields
	var before map[string]string
	if existing != nil {
		before = indexedValues(existing.Fields)
		if mergeFields {
			body = merge(existing.Fields, fields)
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return wrap("set", collection, id, err)
	}

	score, err := s.score(ctx, collection, id, existing != nil)
	if err != nil {
		return wrap("set", collection, id, err)
	}

	after := indexedValues(body)

	pipe := s.client.Pipeline()
	pipe.Set(ctx, docKey(collection, id), data, 0)
	// NX keeps the original insertion position on overwrite
	pipe.ZAddNX(ctx, indexKey(collection), redis.Z{Score: score, Member: id})
	for field, value := range before {
		if after[field] != value {
			pipe.ZRem(ctx, fieldIndexKey(collection, field, value), id)
		}
	}
	for field, value := range after {
		pipe.ZAddNX(ctx, fieldIndexKey(collection, field, value), redis.Z{Score: score, Member: id})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return wrap("set", collection, id, err)
	}
	return nil
}

// score returns the insertion sequence of id, allocating one for new documents
func (s *RedisStore) score(ctx context.Context, collection, id string, exists bool) (float64, error) {
	if exists {
		score, err := s.client.ZScore(ctx, indexKey(collection), id).Result()
		if err == nil {
			return score, nil
		}
		if err != redis.Nil {
			return 0, err
		}
	}
	seq, err := s.client.Incr(ctx, seqKey(collection)).Result()
	if err != nil {
		return 0, err
	}
	return float64(seq), nil
}

// Delete implements Store
func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	existing, err := s.Get(ctx, collection, id)
	if err != nil && err != ErrNotFound {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, docKey(collection, id))
	pipe.ZRem(ctx, indexKey(collection), id)
	if existing != nil {
		for field, value := range indexedValues(existing.Fields) {
			pipe.ZRem(ctx, fieldIndexKey(collection, field, value), id)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return wrap("delete", collection, id, err)
	}
	return nil
}

// Query implements Store
func (s *RedisStore) Query(ctx context.Context, collection string, q Query) ([]Doc, error) {
	if err := validateQuery(q); err != nil {
		return nil, wrap("query", collection, "", err)
	}

	key := indexKey(collection)
	if field, value, ok := indexedFilter(q.Where); ok {
		key = fieldIndexKey(collection, field, value)
	}

	ids, err := s.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, wrap("query", collection, "", err)
	}

	docs := make([]Doc, 0, len(ids))
	for start := 0; start < len(ids); start += mgetBatch {
		end := start + mgetBatch
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		keys := make([]string, len(batch))
		for i, id := range batch {
			keys[i] = docKey(collection, id)
		}

		vals, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, wrap("query", collection, "", err)
		}

		for i, v := range vals {
			raw, ok := v.(string)
			if !ok {
				// index entry without a body, left behind by a concurrent delete
				continue
			}
			var fields Fields
			if err := json.Unmarshal([]byte(raw), &fields); err != nil {
				log.Warn().Err(err).Str("collection", collection).Str("id", batch[i]).Msg("Skipping unreadable document")
				continue
			}
			docs = append(docs, Doc{ID: batch[i], Fields: fields})
		}
	}

	return applyQuery(docs, q), nil
}

// indexedFilter returns the first filter on an indexed field
func indexedFilter(where []Filter) (string, string, bool) {
	for _, f := range where {
		for _, indexed := range indexedFields {
			if f.Field == indexed {
				return f.Field, f.Value, true
			}
		}
	}
	return "", "", false
}

// Insert implements Store
func (s *RedisStore) Insert(ctx context.Context, collection string, fields Fields) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, fields, false); err != nil {
		return "", err
	}
	return id, nil
}

// Ping implements Store
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
