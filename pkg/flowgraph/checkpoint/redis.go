package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	backend "github.com/redis/go-redis/v9"
)

// RedisStore persists checkpoints in Redis so several workers can share and
// resume runs.
//
// Layout per run (prefix defaults to "brdflow:cp:"):
//
//	<prefix><run>:data  HASH  node -> checkpoint bytes
//	<prefix><run>:ts    HASH  node -> RFC3339Nano timestamp
//	<prefix><run>:seq   ZSET  node scored by sequence
//	<prefix><run>:next  STRING sequence counter
//	<prefix>runs        SET   run IDs
type RedisStore struct {
	client  *backend.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithRedisTTL expires a run's keys ttl after its latest save.
// Zero (the default) keeps checkpoints until deleted.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithRedisTimeout bounds each store operation. Default 5s.
func WithRedisTimeout(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewRedisStore connects to a Redis server.
func NewRedisStore(address, password string, db int, opts ...RedisOption) *RedisStore {
	return NewRedisStoreFromClient(backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	}), opts...)
}

// NewRedisStoreFromClient wraps an existing client. Close closes the client.
func NewRedisStoreFromClient(client *backend.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:  client,
		prefix:  "brdflow:cp:",
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(runID, suffix string) string {
	return s.prefix + runID + ":" + suffix
}

func (s *RedisStore) runsKey() string {
	return s.prefix + "runs"
}

func (s *RedisStore) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *RedisStore) checkOpen() error {
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Save implements Store.
func (s *RedisStore) Save(runID, nodeID string, data []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	ctx, cancel := s.ctx()
	defer cancel()

	seq, err := s.client.Incr(ctx, s.key(runID, "next")).Result()
	if err != nil {
		return fmt.Errorf("save checkpoint: next sequence: %w", err)
	}

	if data == nil {
		data = []byte{}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.HSet(ctx, s.key(runID, "data"), nodeID, data)
		pipe.HSet(ctx, s.key(runID, "ts"), nodeID, time.Now().UTC().Format(time.RFC3339Nano))
		pipe.ZAdd(ctx, s.key(runID, "seq"), backend.Z{Score: float64(seq), Member: nodeID})
		pipe.SAdd(ctx, s.runsKey(), runID)
		if s.ttl > 0 {
			for _, suffix := range []string{"data", "ts", "seq", "next"} {
				pipe.Expire(ctx, s.key(runID, suffix), s.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *RedisStore) Load(runID, nodeID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := s.ctx()
	defer cancel()

	data, err := s.client.HGet(ctx, s.key(runID, "data"), nodeID).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return data, nil
}

// List implements Store.
func (s *RedisStore) List(runID string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := s.ctx()
	defer cancel()

	members, err := s.client.ZRangeWithScores(ctx, s.key(runID, "seq"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	stamps, err := s.client.HGetAll(ctx, s.key(runID, "ts")).Result()
	if err != nil {
		return nil, fmt.Errorf("list checkpoint timestamps: %w", err)
	}

	pipe := s.client.Pipeline()
	sizes := make([]*backend.IntCmd, len(members))
	for i, m := range members {
		sizes[i] = pipe.HStrLen(ctx, s.key(runID, "data"), m.Member.(string))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("list checkpoint sizes: %w", err)
	}

	infos := make([]Info, 0, len(members))
	for i, m := range members {
		nodeID := m.Member.(string)
		ts, _ := time.Parse(time.RFC3339Nano, stamps[nodeID])
		infos = append(infos, Info{
			RunID:     runID,
			NodeID:    nodeID,
			Sequence:  int(m.Score),
			Timestamp: ts,
			Size:      sizes[i].Val(),
		})
	}
	return infos, nil
}

// Runs implements Store.
func (s *RedisStore) Runs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	ctx, cancel := s.ctx()
	defer cancel()

	ids, err := s.client.SMembers(ctx, s.runsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	// Drop runs whose checkpoints expired or were deleted one by one.
	live := ids[:0]
	for _, id := range ids {
		n, err := s.client.ZCard(ctx, s.key(id, "seq")).Result()
		if err != nil {
			return nil, fmt.Errorf("count checkpoints for %s: %w", id, err)
		}
		if n > 0 {
			live = append(live, id)
		}
	}
	sort.Strings(live)
	return live, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(runID, nodeID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	ctx, cancel := s.ctx()
	defer cancel()

	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.HDel(ctx, s.key(runID, "data"), nodeID)
		pipe.HDel(ctx, s.key(runID, "ts"), nodeID)
		pipe.ZRem(ctx, s.key(runID, "seq"), nodeID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// DeleteRun implements Store.
func (s *RedisStore) DeleteRun(runID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(); err != nil {
		return err
	}

	ctx, cancel := s.ctx()
	defer cancel()

	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Del(ctx,
			s.key(runID, "data"),
			s.key(runID, "ts"),
			s.key(runID, "seq"),
			s.key(runID, "next"),
		)
		pipe.SRem(ctx, s.runsKey(), runID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete run checkpoints: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

// String identifies the store in logs.
func (s *RedisStore) String() string {
	return "redis(" + s.client.Options().Addr + ", db=" + strconv.Itoa(s.client.Options().DB) + ")"
}
