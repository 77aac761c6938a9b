package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mealswipe/internal/model"
)

// SessionCache keeps short-lived session snapshots so status reads skip the
// store. Snapshots are versioned: Set never replaces a newer version.
type SessionCache interface {
	// Set stores the snapshot unless the cache holds a higher version and
	// reports whether it was written
	Set(ctx context.Context, session *model.Session) (bool, error)
	// Get returns nil on a miss
	Get(ctx context.Context, id string) (*model.Session, error)
	Delete(ctx context.Context, id string) error
}

type sessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionCache(client *redis.Client) SessionCache {
	return &sessionCache{
		client: client,
		ttl:    10 * time.Minute,
	}
}

// setScript writes {v, data} unless the stored v is higher.
// KEYS[1] = meta hash
// ARGV[1] = version, ARGV[2] = snapshot, ARGV[3] = ttl in milliseconds
var setScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) > tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

func (c *sessionCache) key(id string) string {
	return fmt.Sprintf("session:%s:meta", id)
}

func (c *sessionCache) Set(ctx context.Context, session *model.Session) (bool, error) {
	data, err := json.Marshal(session)
	if err != nil {
		return false, err
	}
	written, err := setScript.Run(ctx, c.client,
		[]string{c.key(session.ID)},
		session.Version, data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return written == 1, nil
}

func (c *sessionCache) Get(ctx context.Context, id string) (*model.Session, error) {
	data, err := c.client.HGet(ctx, c.key(id), "data").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var session model.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *sessionCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.key(id)).Err()
}
