package cache

import (
	"context"
	"slices"
	"sync"

	"mealswipe/internal/model"
)

type queueItem struct {
	recipeID int64
	seen     map[int64]struct{}
}

func (it *queueItem) entry() model.QueueEntry {
	seen := make([]int64, 0, len(it.seen))
	for id := range it.seen {
		seen = append(seen, id)
	}
	slices.Sort(seen)
	return model.QueueEntry{RecipeID: it.recipeID, SeenBy: seen}
}

type memoryQueue struct {
	mu     sync.Mutex
	queues map[string][]*queueItem
}

// NewMemoryRecipeQueue creates a queue that lives in process memory
func NewMemoryRecipeQueue() RecipeQueue {
	return &memoryQueue{
		queues: make(map[string][]*queueItem),
	}
}

func (q *memoryQueue) Create(ctx context.Context, sessionID string, recipeIDs []int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.queues[sessionID]; ok {
		return ErrQueueExists
	}
	ids := shuffled(recipeIDs)
	items := make([]*queueItem, len(ids))
	for i, id := range ids {
		items[i] = &queueItem{recipeID: id, seen: make(map[int64]struct{})}
	}
	q.queues[sessionID] = items
	return nil
}

func (q *memoryQueue) Dequeue(ctx context.Context, sessionID string, userID int64, limit int) ([]model.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.queues[sessionID]
	if len(items) == 0 || limit <= 0 {
		return []model.QueueEntry{}, nil
	}

	out := make([]model.QueueEntry, 0, min(limit, len(items)))
	kept := items[:0]
	for _, it := range items {
		if _, seen := it.seen[userID]; !seen && len(out) < limit {
			out = append(out, it.entry())
			continue
		}
		kept = append(kept, it)
	}
	clear(items[len(kept):])
	q.queues[sessionID] = kept
	return out, nil
}

func (q *memoryQueue) Push(ctx context.Context, sessionID string, recipeID int64, seenBy []int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, ok := q.queues[sessionID]
	if !ok {
		return ErrQueueNotFound
	}
	for _, it := range items {
		if it.recipeID == recipeID {
			return ErrItemExists
		}
	}

	it := &queueItem{recipeID: recipeID, seen: make(map[int64]struct{}, len(seenBy))}
	for _, id := range seenBy {
		it.seen[id] = struct{}{}
	}
	q.queues[sessionID] = append([]*queueItem{it}, items...)
	return nil
}

func (q *memoryQueue) MarkSeen(ctx context.Context, sessionID string, recipeID int64, userIDs []int64) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, it := range q.queues[sessionID] {
		if it.recipeID == recipeID {
			for _, id := range userIDs {
				it.seen[id] = struct{}{}
			}
			return true, nil
		}
	}
	return false, nil
}

func (q *memoryQueue) Prune(ctx context.Context, sessionID string, memberIDs []int64) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.queues[sessionID]
	if len(items) == 0 || len(memberIDs) == 0 {
		return 0, nil
	}

	kept := items[:0]
	for _, it := range items {
		if !it.entry().SeenByAll(memberIDs) {
			kept = append(kept, it)
		}
	}
	removed := len(items) - len(kept)
	clear(items[len(kept):])
	q.queues[sessionID] = kept
	return removed, nil
}

func (q *memoryQueue) Len(ctx context.Context, sessionID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queues[sessionID]), nil
}

func (q *memoryQueue) Drop(ctx context.Context, sessionID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.queues, sessionID)
	return nil
}
