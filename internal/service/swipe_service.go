package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"mealswipe/internal/model"
	"mealswipe/internal/repository"
)

var (
	ErrRecipeNotFound = errors.New("recipe not found")
	ErrAlreadySwiped  = repository.ErrAlreadySwiped
)

// ValidationError reports a payload that failed schema checks
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Detail
}

// NewValidationError flattens validator field errors into one detail line
func NewValidationError(err error) *ValidationError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Detail: err.Error()}
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
	}
	return &ValidationError{Detail: strings.Join(parts, "; ")}
}

// SwipeService records votes and detects matches
type SwipeService struct {
	store    *repository.Store
	recipes  repository.RecipeRepo
	sessions *SessionService
	queue    *QueueService
	validate *validator.Validate

	broadcaster Broadcaster
}

// NewSwipeService creates a new swipe service
func NewSwipeService(
	store *repository.Store,
	recipes repository.RecipeRepo,
	sessions *SessionService,
	queue *QueueService,
) *SwipeService {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	return &SwipeService{
		store:    store,
		recipes:  recipes,
		sessions: sessions,
		queue:    queue,
		validate: v,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events
func (s *SwipeService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Swipe records one vote. The vote, the like tally and the COMPLETED
// transition on a match commit together; broadcasts and queue updates follow
// the commit.
func (s *SwipeService) Swipe(ctx context.Context, p model.Principal, sessionID string, in model.SwipePayload) (*model.SwipeResult, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, NewValidationError(err)
	}

	id, err := ParseSessionID(sessionID)
	if err != nil {
		return nil, err
	}

	recipe, err := s.recipes.GetByID(ctx, in.RecipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}
	if recipe == nil {
		return nil, ErrRecipeNotFound
	}

	result := &model.SwipeResult{Recipe: recipe}
	var session *model.Session
	err = s.store.WithTx(ctx, func(r *repository.Repos) error {
		var err error
		session, err = r.Sessions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if session == nil {
			return ErrSessionNotFound
		}
		if session.Status != model.SessionInProgress {
			return ErrInactiveSession
		}

		existing, err := r.Swipes.VoteBy(ctx, id, p.UserID, recipe.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrAlreadySwiped
		}

		swipe := &model.Swipe{
			SessionID: id,
			UserID:    p.UserID,
			RecipeID:  recipe.ID,
			Liked:     *in.Like,
		}
		if _, err := r.Swipes.Record(ctx, swipe); err != nil {
			return err
		}
		result.Swipe = swipe

		likes, err := r.Swipes.VotesFor(ctx, id, recipe.ID, true)
		if err != nil {
			return err
		}
		members, err := memberCount(ctx, r, session)
		if err != nil {
			return err
		}
		result.Likes = len(likes)
		result.Members = members
		result.Matched = result.Likes > 0 && result.Likes >= result.Members

		if result.Matched {
			if err := r.Sessions.UpdateStatus(ctx, id, model.SessionCompleted); err != nil {
				return err
			}
			session, err = r.Sessions.GetByID(ctx, id)
			return err
		}

		result.Voters, err = r.Swipes.VoterIDs(ctx, id, recipe.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	switch {
	case result.Matched:
		log.Printf("Session %s matched recipe %d (%d/%d likes)", id, recipe.ID, result.Likes, result.Members)
		if s.broadcaster != nil {
			s.broadcaster.SessionBroadcast(id, model.ActionRecipeMatch, model.RecipeMatchPayload{
				Message: fmt.Sprintf("Match found: %s", recipe.Name),
				Recipe:  recipe,
			})
		}
		s.sessions.statusChanged(ctx, session)
	case result.Swipe.Liked:
		if err := s.queue.Requeue(ctx, session, recipe.ID, result.Voters); err != nil {
			log.Printf("Failed to requeue recipe %d in session %s: %v", recipe.ID, id, err)
		}
	}

	return result, nil
}

// jsonFieldName makes validator report wire field names
func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}
