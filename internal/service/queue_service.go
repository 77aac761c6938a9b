package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"mealswipe/internal/cache"
	"mealswipe/internal/model"
	"mealswipe/internal/repository"
)

const (
	DefaultDequeueLimit = 10
	MaxDequeueLimit     = 50
)

// QueueService applies session membership to the recipe queue
type QueueService struct {
	queue    cache.RecipeQueue
	recipes  repository.RecipeRepo
	sessions *SessionService
}

// NewQueueService creates a new queue service
func NewQueueService(queue cache.RecipeQueue, recipes repository.RecipeRepo, sessions *SessionService) *QueueService {
	return &QueueService{
		queue:    queue,
		recipes:  recipes,
		sessions: sessions,
	}
}

// Push puts recipeID at the front of the session queue, then prunes every
// entry the live membership has fully seen. A seed set that already covers
// the whole group therefore leaves the queue unchanged.
func (s *QueueService) Push(ctx context.Context, session *model.Session, recipeID int64, seenBy []int64) error {
	if err := s.queue.Push(ctx, session.ID, recipeID, seenBy); err != nil {
		return err
	}
	return s.prune(ctx, session)
}

// Requeue offers a liked recipe to the members who have not voted on it. If
// the recipe is still queued its seen set absorbs voters instead. A session
// whose queue is gone has ended and is left alone.
func (s *QueueService) Requeue(ctx context.Context, session *model.Session, recipeID int64, voters []int64) error {
	err := s.queue.Push(ctx, session.ID, recipeID, voters)
	switch {
	case errors.Is(err, cache.ErrItemExists):
		if _, err := s.queue.MarkSeen(ctx, session.ID, recipeID, voters); err != nil {
			return fmt.Errorf("failed to mark recipe seen: %w", err)
		}
	case errors.Is(err, cache.ErrQueueNotFound):
		log.Printf("Session %s has no queue, recipe %d not requeued", session.ID, recipeID)
		return nil
	case err != nil:
		return err
	}
	return s.prune(ctx, session)
}

// prune drops every entry the live membership has fully seen
func (s *QueueService) prune(ctx context.Context, session *model.Session) error {
	members, err := s.sessions.MemberIDs(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to list members: %w", err)
	}
	removed, err := s.queue.Prune(ctx, session.ID, members)
	if err != nil {
		return fmt.Errorf("failed to prune queue: %w", err)
	}
	if removed > 0 {
		log.Printf("Pruned %d fully seen recipes from session %s", removed, session.ID)
	}
	return nil
}

// Offer is the managed form of Push: the caller must be allowed to manage
// the session and the recipe must exist
func (s *QueueService) Offer(ctx context.Context, p model.Principal, sessionID string, recipeID int64, seenBy []int64) error {
	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	ok, err := s.sessions.CanManage(ctx, p, session)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	if session.Status.IsTerminal() {
		return ErrInactiveSession
	}

	recipe, err := s.recipes.GetByID(ctx, recipeID)
	if err != nil {
		return fmt.Errorf("failed to get recipe: %w", err)
	}
	if recipe == nil {
		return ErrRecipeNotFound
	}
	return s.Push(ctx, session, recipeID, seenBy)
}

// Next hands the caller up to limit recipes they have not been shown yet.
// limit is clamped to [1, MaxDequeueLimit]; zero selects the default.
func (s *QueueService) Next(ctx context.Context, p model.Principal, sessionID string, limit int) ([]model.QueueEntry, error) {
	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.CheckVisible(ctx, p, session); err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, ErrInactiveSession
	}

	switch {
	case limit <= 0:
		limit = DefaultDequeueLimit
	case limit > MaxDequeueLimit:
		limit = MaxDequeueLimit
	}
	return s.queue.Dequeue(ctx, session.ID, p.UserID, limit)
}

// Remaining reports how many entries are still queued for the session
func (s *QueueService) Remaining(ctx context.Context, sessionID string) (int, error) {
	id, err := ParseSessionID(sessionID)
	if err != nil {
		return 0, err
	}
	return s.queue.Len(ctx, id)
}
