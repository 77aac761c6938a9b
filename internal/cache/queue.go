package cache

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"mealswipe/internal/model"
)

var (
	ErrQueueExists   = errors.New("queue already exists for session")
	ErrQueueNotFound = errors.New("no queue for session")
	ErrItemExists    = errors.New("recipe already queued for session")
)

// queueTTL bounds how long an abandoned session queue lives in Redis
const queueTTL = 24 * time.Hour

// RecipeQueue is the per-session recipe queue. Entries are keyed by recipe
// ID and never duplicated within one session.
type RecipeQueue interface {
	// Create builds a shuffled queue over recipeIDs
	Create(ctx context.Context, sessionID string, recipeIDs []int64) error
	// Dequeue removes and returns up to limit entries the user has not seen.
	// A missing or exhausted queue yields an empty result.
	Dequeue(ctx context.Context, sessionID string, userID int64, limit int) ([]model.QueueEntry, error)
	// Push inserts recipeID at the front, seeded with seenBy. It never
	// creates a queue: a session without one (never created, or dropped once
	// the session ended) yields ErrQueueNotFound.
	Push(ctx context.Context, sessionID string, recipeID int64, seenBy []int64) error
	// MarkSeen adds userIDs to the seen set of a queued recipe and reports
	// whether the recipe was queued
	MarkSeen(ctx context.Context, sessionID string, recipeID int64, userIDs []int64) (bool, error)
	// Prune removes entries every member has seen and returns how many went
	Prune(ctx context.Context, sessionID string, memberIDs []int64) (int, error)
	Len(ctx context.Context, sessionID string) (int, error)
	Drop(ctx context.Context, sessionID string) error
}

// shuffled returns the distinct IDs of recipeIDs in uniformly random order
func shuffled(recipeIDs []int64) []int64 {
	seen := make(map[int64]bool, len(recipeIDs))
	out := make([]int64, 0, len(recipeIDs))
	for _, id := range recipeIDs {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
