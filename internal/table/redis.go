package table

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisSource stores each table as a JSON document under <prefix>:<name>.
type RedisSource struct {
	client *redis.Client
	prefix string
}

// NewRedisSource builds a source on an existing client.
func NewRedisSource(client *redis.Client, prefix string) *RedisSource {
	if prefix == "" {
		prefix = "staffattend:table"
	}
	return &RedisSource{client: client, prefix: prefix}
}

// Table returns the backend for name.
func (s *RedisSource) Table(name string) Backend {
	return redisTable{client: s.client, key: s.prefix + ":" + name}
}

type redisTable struct {
	client *redis.Client
	key    string
}

func (b redisTable) Load(ctx context.Context) (Table, error) {
	raw, err := b.client.Get(ctx, b.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Table{}, nil
	}
	if err != nil {
		return Table{}, err
	}
	var t Table
	if err := json.Unmarshal(raw, &t); err != nil {
		return Table{}, err
	}
	return t, nil
}

func (b redisTable) Save(ctx context.Context, t Table) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return b.client.Set(ctx, b.key, raw, 0).Err()
}
