package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Registry keeps the live sessions.
type Registry interface {
	Put(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
}

// Memory is a process-local registry. A zero TTL never expires sessions.
type Memory struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	s       Session
	expires time.Time
}

// NewMemory creates an empty registry.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, items: make(map[string]memoryItem), now: time.Now}
}

// Put stores s and drops sessions that have expired.
func (m *Memory) Put(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var exp time.Time
	if m.ttl > 0 {
		now := m.now()
		exp = now.Add(m.ttl)
		for id, it := range m.items {
			if now.After(it.expires) {
				delete(m.items, id)
			}
		}
	}
	m.items[s.ID] = memoryItem{s: s, expires: exp}
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return Session{}, ErrUnknownSession
	}
	if !it.expires.IsZero() && m.now().After(it.expires) {
		delete(m.items, id)
		return Session{}, ErrUnknownSession
	}
	return it.s, nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// Redis keeps sessions as JSON values with a TTL so several API processes
// share logins.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis builds a registry on client.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "staffattend:session"
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(id string) string { return r.prefix + ":" + id }

// redisItem keeps the credential stamp, which Session hides from JSON.
type redisItem struct {
	Session    Session `json:"session"`
	Credential string  `json:"credential"`
}

func (r *Redis) Put(ctx context.Context, s Session) error {
	raw, err := json.Marshal(redisItem{Session: s, Credential: s.Credential})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(s.ID), raw, r.ttl).Err()
}

func (r *Redis) Get(ctx context.Context, id string) (Session, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrUnknownSession
	}
	if err != nil {
		return Session{}, err
	}
	var it redisItem
	if err := json.Unmarshal(raw, &it); err != nil {
		return Session{}, err
	}
	it.Session.Credential = it.Credential
	return it.Session, nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id)).Err()
}
