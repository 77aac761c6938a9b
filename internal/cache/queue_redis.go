package cache

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"mealswipe/internal/model"
)

// The queue is a Redis list of recipe IDs. Each entry has a companion set of
// user IDs that have already been shown it. The marker key keeps an empty
// queue distinguishable from a missing one.

var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
  return 0
end
redis.call('SET', KEYS[2], '1', 'EX', ARGV[1])
for i = 2, #ARGV do
  redis.call('RPUSH', KEYS[1], ARGV[i])
end
if #ARGV > 1 then
  redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return 1
`)

var dequeueScript = redis.NewScript(`
local limit = tonumber(ARGV[2])
local out = {}
if limit <= 0 then
  return out
end
local ids = redis.call('LRANGE', KEYS[1], 0, -1)
for _, id in ipairs(ids) do
  if #out >= limit then
    break
  end
  local seenKey = ARGV[3] .. id
  if redis.call('SISMEMBER', seenKey, ARGV[1]) == 0 then
    local seen = redis.call('SMEMBERS', seenKey)
    redis.call('LREM', KEYS[1], 1, id)
    redis.call('DEL', seenKey)
    table.insert(out, {id, seen})
  end
end
return out
`)

var pushScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 0 then
  return -1
end
local ids = redis.call('LRANGE', KEYS[1], 0, -1)
for _, id in ipairs(ids) do
  if id == ARGV[1] then
    return 0
  end
end
redis.call('LPUSH', KEYS[1], ARGV[1])
redis.call('DEL', KEYS[3])
for i = 3, #ARGV do
  redis.call('SADD', KEYS[3], ARGV[i])
end
redis.call('SET', KEYS[2], '1', 'EX', ARGV[2])
redis.call('EXPIRE', KEYS[1], ARGV[2])
if #ARGV >= 3 then
  redis.call('EXPIRE', KEYS[3], ARGV[2])
end
return 1
`)

var markSeenScript = redis.NewScript(`
local ids = redis.call('LRANGE', KEYS[1], 0, -1)
for _, id in ipairs(ids) do
  if id == ARGV[1] then
    for i = 3, #ARGV do
      redis.call('SADD', KEYS[2], ARGV[i])
    end
    if #ARGV >= 3 then
      redis.call('EXPIRE', KEYS[2], ARGV[2])
    end
    return 1
  end
end
return 0
`)

var pruneScript = redis.NewScript(`
if #ARGV < 2 then
  return 0
end
local removed = 0
local ids = redis.call('LRANGE', KEYS[1], 0, -1)
for _, id in ipairs(ids) do
  local seenKey = ARGV[1] .. id
  local all = true
  for i = 2, #ARGV do
    if redis.call('SISMEMBER', seenKey, ARGV[i]) == 0 then
      all = false
      break
    end
  end
  if all then
    redis.call('LREM', KEYS[1], 1, id)
    redis.call('DEL', seenKey)
    removed = removed + 1
  end
end
return removed
`)

var dropScript = redis.NewScript(`
local ids = redis.call('LRANGE', KEYS[1], 0, -1)
for _, id in ipairs(ids) do
  redis.call('DEL', ARGV[1] .. id)
end
redis.call('DEL', KEYS[1], KEYS[2])
return #ids
`)

type redisQueue struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRecipeQueue creates a queue backed by Redis. Every mutation runs as
// a single Lua script so concurrent callers never see a half-applied update.
func NewRedisRecipeQueue(client *redis.Client) RecipeQueue {
	return &redisQueue{
		client: client,
		ttl:    queueTTL,
	}
}

func (c *redisQueue) queueKey(sessionID string) string {
	return fmt.Sprintf("session:%s:queue", sessionID)
}

func (c *redisQueue) markerKey(sessionID string) string {
	return fmt.Sprintf("session:%s:queue:exists", sessionID)
}

func (c *redisQueue) seenPrefix(sessionID string) string {
	return fmt.Sprintf("session:%s:seen:", sessionID)
}

func (c *redisQueue) seenKey(sessionID string, recipeID int64) string {
	return c.seenPrefix(sessionID) + strconv.FormatInt(recipeID, 10)
}

func (c *redisQueue) ttlSeconds() int64 {
	return int64(c.ttl / time.Second)
}

func (c *redisQueue) Create(ctx context.Context, sessionID string, recipeIDs []int64) error {
	ids := shuffled(recipeIDs)
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, c.ttlSeconds())
	for _, id := range ids {
		args = append(args, id)
	}

	created, err := createScript.Run(ctx, c.client,
		[]string{c.queueKey(sessionID), c.markerKey(sessionID)}, args...).Int()
	if err != nil {
		return err
	}
	if created == 0 {
		return ErrQueueExists
	}
	return nil
}

func (c *redisQueue) Dequeue(ctx context.Context, sessionID string, userID int64, limit int) ([]model.QueueEntry, error) {
	rows, err := dequeueScript.Run(ctx, c.client,
		[]string{c.queueKey(sessionID)},
		userID, limit, c.seenPrefix(sessionID)).Slice()
	if err == redis.Nil {
		return []model.QueueEntry{}, nil
	}
	if err != nil {
		return nil, err
	}

	entries := make([]model.QueueEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := parseEntry(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (c *redisQueue) Push(ctx context.Context, sessionID string, recipeID int64, seenBy []int64) error {
	args := make([]interface{}, 0, len(seenBy)+2)
	args = append(args, recipeID, c.ttlSeconds())
	for _, id := range seenBy {
		args = append(args, id)
	}

	pushed, err := pushScript.Run(ctx, c.client,
		[]string{c.queueKey(sessionID), c.markerKey(sessionID), c.seenKey(sessionID, recipeID)},
		args...).Int()
	if err != nil {
		return err
	}
	switch pushed {
	case -1:
		return ErrQueueNotFound
	case 0:
		return ErrItemExists
	}
	return nil
}

func (c *redisQueue) MarkSeen(ctx context.Context, sessionID string, recipeID int64, userIDs []int64) (bool, error) {
	args := make([]interface{}, 0, len(userIDs)+2)
	args = append(args, recipeID, c.ttlSeconds())
	for _, id := range userIDs {
		args = append(args, id)
	}

	found, err := markSeenScript.Run(ctx, c.client,
		[]string{c.queueKey(sessionID), c.seenKey(sessionID, recipeID)},
		args...).Int()
	if err != nil {
		return false, err
	}
	return found == 1, nil
}

func (c *redisQueue) Prune(ctx context.Context, sessionID string, memberIDs []int64) (int, error) {
	if len(memberIDs) == 0 {
		return 0, nil
	}
	args := make([]interface{}, 0, len(memberIDs)+1)
	args = append(args, c.seenPrefix(sessionID))
	for _, id := range memberIDs {
		args = append(args, id)
	}
	return pruneScript.Run(ctx, c.client, []string{c.queueKey(sessionID)}, args...).Int()
}

func (c *redisQueue) Len(ctx context.Context, sessionID string) (int, error) {
	n, err := c.client.LLen(ctx, c.queueKey(sessionID)).Result()
	return int(n), err
}

func (c *redisQueue) Drop(ctx context.Context, sessionID string) error {
	return dropScript.Run(ctx, c.client,
		[]string{c.queueKey(sessionID), c.markerKey(sessionID)},
		c.seenPrefix(sessionID)).Err()
}

// parseEntry decodes one {id, {seen...}} pair returned by dequeueScript
func parseEntry(row interface{}) (model.QueueEntry, error) {
	pair, ok := row.([]interface{})
	if !ok || len(pair) != 2 {
		return model.QueueEntry{}, fmt.Errorf("unexpected queue row %v", row)
	}
	recipeID, err := toInt64(pair[0])
	if err != nil {
		return model.QueueEntry{}, err
	}

	entry := model.QueueEntry{RecipeID: recipeID, SeenBy: []int64{}}
	seen, _ := pair[1].([]interface{})
	for _, s := range seen {
		id, err := toInt64(s)
		if err != nil {
			return model.QueueEntry{}, err
		}
		entry.SeenBy = append(entry.SeenBy, id)
	}
	slices.Sort(entry.SeenBy)
	return entry, nil
}

func toInt64(v interface{}) (int64, error) {
	switch x := v.(type) {
	case string:
		return strconv.ParseInt(x, 10, 64)
	case int64:
		return x, nil
	default:
		return 0, fmt.Errorf("unexpected queue value %T", v)
	}
}
