package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealswipe/internal/model"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

// forEachBackend runs fn against every RecipeQueue implementation
func forEachBackend(t *testing.T, fn func(t *testing.T, q RecipeQueue)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryRecipeQueue())
	})
	t.Run("redis", func(t *testing.T) {
		fn(t, NewRedisRecipeQueue(newTestRedis(t)))
	})
}

func recipeIDs(entries []model.QueueEntry) []int64 {
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.RecipeID
	}
	return ids
}

func TestRecipeQueue_CreateTwice(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q RecipeQueue) {
		ctx := context.Background()
		require.NoError(t, q.Create(ctx, "s1", []int64{1, 2, 3}))
		assert.ErrorIs(t, q.Create(ctx, "s1", []int64{4}), ErrQueueExists)

		// An exhausted queue still exists
		require.NoError(t, q.Create(ctx, "s2", nil))
		assert.ErrorIs(t, q.Create(ctx, "s2", []int64{1}), ErrQueueExists)
	})
}

func TestRecipeQueue_DequeueIsPermutation(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q RecipeQueue) {
		ctx := context.Background()
		input := []int64{1, 2, 3, 4, 5, 6, 7, 8, 2, 5}
		require.NoError(t, q.Create(ctx, "s1", input))

		n, err := q.Len(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 8, n)

		got, err := q.Dequeue(ctx, "s1", 1, 100)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{1, 2, 3, 4, 5, 6, 7, 8}, recipeIDs(got))

		rest, err := q.Dequeue(ctx, "s1", 2, 10)
		require.NoError(t, err)
		assert.Empty(t, rest)
	})
}

func TestRecipeQueue_DequeueEmpty(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q RecipeQueue) {
		ctx := context.Background()

		got, err := q.Dequeue(ctx, "missing", 1, 5)
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)

		require.NoError(t, q.Create(ctx, "s1", []int64{1, 2}))
		got, err = q.Dequeue(ctx, "s1", 1, 0)
		require.NoError(t, err)
		assert.Empty(t, got)

		n, err := q.Len(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestRecipeQueue_DequeueSkipsSeen(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q RecipeQueue) {
		ctx := context.Background()
		require.NoError(t, q.Create(ctx, "s1", []int64{1}))
		require.NoError(t, q.Push(ctx, "s1", 9, []int64{1}))

		// User 1 already saw 9, so only 1 is handed out
		got, err := q.Dequeue(ctx, "s1", 1, 10)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, recipeIDs(got))

		// User 2 has not seen 9 and receives it with its seen set
		got, err = q.Dequeue(ctx, "s1", 2, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(9), got[0].RecipeID)
		assert.Equal(t, []int64{1}, got[0].SeenBy)

		n, err := q.Len(ctx, "s1")
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestRecipeQueue_PushFront(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q RecipeQueue) {
		ctx := context.Background()
		require.NoError(t, q.Create(ctx, "s1", []int64{1, 2, 3}))
		require.NoError(t, q.Push(ctx, "s1", 42, nil))

		got, err := q.Dequeue(ctx, "s1", 1, 1)
		require.NoError(t, err)
		assert.Equal(t, []int64{42}, recipeIDs(got))

		assert.ErrorIs(t, q.Push(ctx, "s1", 2, nil), ErrItemExists)
	})
}

func TestRecipeQueue_PushRequiresQueue(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q RecipeQueue) {
		ctx := context.Background()
		assert.ErrorIs(t, q.Push(ctx, "fresh", 7, []int64{3}), ErrQueueNotFound)

		n, err := q.Len(ctx, "fresh")
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.NoError(t, q.Create(ctx, "fresh", []int64{1}))

		// Dropped queues stay gone
		require.NoError(t, q.Drop(ctx, "fresh"))
		assert.ErrorIs(t, q.Push(ctx, "fresh", 7, nil), ErrQueueNotFound)
		n, err = q.Len(ctx, "fresh")
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestRecipeQueue_PushIntoExhaustedQueue(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q RecipeQueue) {
		ctx := context.Background()
		require.NoError(t, q.Create(ctx, "s1", []int64{1}))
		_, err := q.Dequeue(ctx, "s1", 1, 10)
		require.NoError(t, err)

		require.NoError(t, q.Push(ctx, "s1", 1, []int64{1}))
		got, err := q.Dequeue(ctx, "s1", 2, 10)
		require.NoError(t, err)
		assert.Equal(t, []int64{1}, recipeIDs(got))
	})
}

func TestRecipeQueue_MarkSeen(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q RecipeQueue) {
		ctx := context.Background()
		require.NoError(t, q.Create(ctx, "s1", nil))
		require.NoError(t, q.Push(ctx, "s1", 4, []int64{1}))

		found, err := q.MarkSeen(ctx, "s1", 4, []int64{2, 1})
		require.NoError(t, err)
		assert.True(t, found)

		found, err = q.MarkSeen(ctx, "s1", 99, []int64{2})
		require.NoError(t, err)
		assert.False(t, found)

		// Users 1 and 2 have both seen 4 now
		got, err := q.Dequeue(ctx, "s1", 2, 10)
		require.NoError(t, err)
		assert.Empty(t, got)

		got, err = q.Dequeue(ctx, "s1", 3, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, []int64{1, 2}, got[0].SeenBy)
	})
}

func TestRecipeQueue_Prune(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q RecipeQueue) {
		ctx := context.Background()
		require.NoError(t, q.Create(ctx, "s1", nil))
		require.NoError(t, q.Push(ctx, "s1", 1, []int64{1, 2}))
		require.NoError(t, q.Push(ctx, "s1", 2, []int64{1}))
		require.NoError(t, q.Push(ctx, "s1", 3, nil))

		removed, err := q.Prune(ctx, "s1", nil)
		require.NoError(t, err)
		assert.Zero(t, removed)

		removed, err = q.Prune(ctx, "s1", []int64{1, 2})
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		n, err := q.Len(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		got, err := q.Dequeue(ctx, "s1", 2, 10)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{2, 3}, recipeIDs(got))
	})
}

func TestRecipeQueue_Drop(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q RecipeQueue) {
		ctx := context.Background()
		require.NoError(t, q.Create(ctx, "s1", []int64{1, 2}))
		require.NoError(t, q.Push(ctx, "s1", 3, []int64{1}))
		require.NoError(t, q.Drop(ctx, "s1"))

		n, err := q.Len(ctx, "s1")
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.NoError(t, q.Create(ctx, "s1", []int64{5}))
	})
}

func TestRecipeQueue_ConcurrentDequeue(t *testing.T) {
	forEachBackend(t, func(t *testing.T, q RecipeQueue) {
		ctx := context.Background()
		input := make([]int64, 60)
		for i := range input {
			input[i] = int64(i + 1)
		}
		require.NoError(t, q.Create(ctx, "s1", input))

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seen = make(map[int64]int)
		)
		for user := int64(1); user <= 6; user++ {
			wg.Add(1)
			go func(user int64) {
				defer wg.Done()
				for {
					got, err := q.Dequeue(ctx, "s1", user, 3)
					if err != nil || len(got) == 0 {
						return
					}
					mu.Lock()
					for _, e := range got {
						seen[e.RecipeID]++
					}
					mu.Unlock()
				}
			}(user)
		}
		wg.Wait()

		assert.Len(t, seen, len(input))
		for id, count := range seen {
			assert.Equal(t, 1, count, "recipe %d handed out more than once", id)
		}
	})
}
