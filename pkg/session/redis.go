package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "atlas:session:"

// Hash field names.
const (
	fieldID             = "id"
	fieldCreatedAt      = "created_at"
	fieldUpdatedAt      = "updated_at"
	fieldState          = "state"
	fieldContextDomain  = "context_domain"
	fieldViolationCount = "violation_count"
	fieldThoughtChain   = "thought_chain"
)

// RedisStore keeps each snapshot in a Redis hash. Saving writes only the
// fields present in the snapshot, which gives merge semantics for free.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the key prefix. Default "atlas:session:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithTTL expires idle sessions after ttl. Zero keeps them forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// NewRedisStore wraps an existing client. The store closes the client on Close.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, prefix: defaultRedisKeyPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// DialRedis parses url, connects and verifies the connection with PING.
func DialRedis(ctx context.Context, url string, opts ...RedisOption) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, newStoreError("redis", "parse_url", err)
	}
	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, newStoreError("redis", "ping", err)
	}
	return NewRedisStore(client, opts...), nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, id string) (*Snapshot, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, newStoreError("redis", "load", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	snap := &Snapshot{
		ID:            id,
		State:         State(fields[fieldState]),
		ContextDomain: fields[fieldContextDomain],
	}
	if v := fields[fieldViolationCount]; v != "" {
		if snap.ViolationCount, err = strconv.Atoi(v); err != nil {
			return nil, newStoreError("redis", "decode_violation_count", err)
		}
	}
	if snap.CreatedAt, err = parseTime(fields[fieldCreatedAt]); err != nil {
		return nil, newStoreError("redis", "decode_created_at", err)
	}
	if snap.UpdatedAt, err = parseTime(fields[fieldUpdatedAt]); err != nil {
		return nil, newStoreError("redis", "decode_updated_at", err)
	}
	if v := fields[fieldThoughtChain]; v != "" {
		if err := json.Unmarshal([]byte(v), &snap.ThoughtChain); err != nil {
			return nil, newStoreError("redis", "decode_thought_chain", err)
		}
	}
	return snap, nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, id string, snap *Snapshot) error {
	if snap == nil {
		return newStoreError("redis", "save", fmt.Errorf("nil snapshot"))
	}

	updatedAt := snap.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = updatedAt
	}

	values := map[string]any{
		fieldID:             id,
		fieldState:          string(snap.State),
		fieldViolationCount: snap.ViolationCount,
		fieldUpdatedAt:      updatedAt.UTC().Format(time.RFC3339Nano),
	}
	if snap.ContextDomain != "" {
		values[fieldContextDomain] = snap.ContextDomain
	}
	if snap.ThoughtChain != nil {
		data, err := json.Marshal(snap.ThoughtChain)
		if err != nil {
			return newStoreError("redis", "encode_thought_chain", err)
		}
		values[fieldThoughtChain] = string(data)
	}

	key := s.key(id)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, values)
	pipe.HSetNX(ctx, key, fieldCreatedAt, createdAt.UTC().Format(time.RFC3339Nano))
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return newStoreError("redis", "save", err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return newStoreError("redis", "delete", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, v)
}
