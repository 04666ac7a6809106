package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// SessionStore mirrors session slots so a restart can pick up where users
// left off.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (State, bool, error)
	Save(ctx context.Context, sessionID string, st State) error
	Delete(ctx context.Context, sessionID string) error
}

// MemorySessionStore keeps slots in process memory.
type MemorySessionStore struct {
	mu    sync.Mutex
	slots map[string]State
}

// NewMemorySessionStore builds an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{slots: make(map[string]State)}
}

func (m *MemorySessionStore) Load(_ context.Context, sessionID string) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.slots[sessionID]
	return st, ok, nil
}

func (m *MemorySessionStore) Save(_ context.Context, sessionID string, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[sessionID] = st
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, sessionID)
	return nil
}

// RedisSessionStore stores slots as JSON strings. Drafts never expire, so
// keys carry no TTL.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore builds a store over an existing client.
func NewRedisSessionStore(client *redis.Client, prefix string) *RedisSessionStore {
	return &RedisSessionStore{client: client, prefix: prefix}
}

func (r *RedisSessionStore) key(sessionID string) string {
	return r.prefix + sessionID
}

func (r *RedisSessionStore) Load(ctx context.Context, sessionID string) (State, bool, error) {
	raw, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("session: load %s: %w", sessionID, err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, false, fmt.Errorf("session: decode %s: %w", sessionID, err)
	}
	return st, true, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, sessionID string, st State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", sessionID, err)
	}
	if err := r.client.Set(ctx, r.key(sessionID), raw, 0).Err(); err != nil {
		return fmt.Errorf("session: save %s: %w", sessionID, err)
	}
	return nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("session: delete %s: %w", sessionID, err)
	}
	return nil
}
