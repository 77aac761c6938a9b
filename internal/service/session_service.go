package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"mealswipe/internal/cache"
	"mealswipe/internal/model"
	"mealswipe/internal/repository"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidID         = errors.New("invalid identifier")
	ErrSessionNotFound   = errors.New("session not found")
	ErrGroupNotFound     = errors.New("group not found")
	ErrInactiveSession   = errors.New("session is not in progress")
	ErrInvalidTransition = errors.New("status transition not allowed")
)

// SessionService handles session lifecycle and access rules
type SessionService struct {
	store        *repository.Store
	recipes      repository.RecipeRepo
	queue        cache.RecipeQueue
	sessionCache cache.SessionCache
	broadcaster  Broadcaster
}

// NewSessionService creates a new session service. sessionCache may be nil.
func NewSessionService(
	store *repository.Store,
	recipes repository.RecipeRepo,
	queue cache.RecipeQueue,
	sessionCache cache.SessionCache,
) *SessionService {
	return &SessionService{
		store:        store,
		recipes:      recipes,
		queue:        queue,
		sessionCache: sessionCache,
	}
}

// SetBroadcaster sets the broadcaster for WebSocket events
func (s *SessionService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// ParseSessionID validates and normalizes a session identifier
func ParseSessionID(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", ErrInvalidID
	}
	return id.String(), nil
}

// Create opens a READY session and builds its recipe queue over the whole
// catalog. A nil groupID creates a personal session.
func (s *SessionService) Create(ctx context.Context, p model.Principal, groupID *int64) (*model.Session, error) {
	recipeIDs, err := s.recipes.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}

	session := &model.Session{
		ID:        uuid.NewString(),
		GroupID:   groupID,
		CreatedBy: p.UserID,
		Status:    model.SessionReady,
	}

	err = s.store.WithTx(ctx, func(r *repository.Repos) error {
		if groupID != nil {
			group, err := r.Groups.GetByID(ctx, *groupID)
			if err != nil {
				return err
			}
			if group == nil {
				return ErrGroupNotFound
			}
			if !p.IsAdmin {
				m, err := r.Groups.GetMembership(ctx, *groupID, p.UserID)
				if err != nil {
					return err
				}
				if m == nil || !m.IsAdmin {
					return ErrUnauthorized
				}
			}
		}
		return r.Sessions.Create(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	if err := s.queue.Create(ctx, session.ID, recipeIDs); err != nil {
		return nil, fmt.Errorf("failed to create recipe queue: %w", err)
	}

	log.Printf("Session %s created by user %d with %d recipes", session.ID, p.UserID, len(recipeIDs))
	return session, nil
}

// Get returns the session or ErrSessionNotFound
func (s *SessionService) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	id, err := ParseSessionID(sessionID)
	if err != nil {
		return nil, err
	}

	if s.sessionCache != nil {
		if cached, err := s.sessionCache.Get(ctx, id); err == nil && cached != nil {
			return cached, nil
		}
	}

	session, err := s.store.Repos().Sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	s.cacheSnapshot(ctx, session)
	return session, nil
}

// Load reads the session from the store, bypassing the cache. Decisions that
// depend on the current status go through Load.
func (s *SessionService) Load(ctx context.Context, sessionID string) (*model.Session, error) {
	id, err := ParseSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	session, err := s.store.Repos().Sessions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	s.cacheSnapshot(ctx, session)
	return session, nil
}

// GetVisible returns the session when p may look at it: platform admins,
// group members, or the creator of a personal session
func (s *SessionService) GetVisible(ctx context.Context, p model.Principal, sessionID string) (*model.Session, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.CheckVisible(ctx, p, session); err != nil {
		return nil, err
	}
	return session, nil
}

// CheckVisible returns ErrSessionNotFound when p may not look at the session
func (s *SessionService) CheckVisible(ctx context.Context, p model.Principal, session *model.Session) error {
	if p.IsAdmin {
		return nil
	}
	if !session.IsGroupSession() {
		if session.CreatedBy != p.UserID {
			return ErrSessionNotFound
		}
		return nil
	}
	m, err := s.store.Repos().Groups.GetMembership(ctx, *session.GroupID, p.UserID)
	if err != nil {
		return err
	}
	if m == nil {
		return ErrSessionNotFound
	}
	return nil
}

// Join checks whether p may open a live connection to the session. A group
// session admits its members and a personal session admits only its creator.
// Platform admins get no bypass. Unknown sessions and refused users both yield
// ErrInvalidID so outsiders cannot tell whether a session exists. The status
// is read from the store, never the cache.
func (s *SessionService) Join(ctx context.Context, p model.Principal, sessionID string) (*model.Session, error) {
	session, err := s.Load(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrInvalidID
	}
	if err != nil {
		return nil, err
	}

	if session.IsGroupSession() {
		m, err := s.store.Repos().Groups.GetMembership(ctx, *session.GroupID, p.UserID)
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, ErrInvalidID
		}
	} else if session.CreatedBy != p.UserID {
		return nil, ErrInvalidID
	}

	if session.Status != model.SessionInProgress {
		return nil, ErrInactiveSession
	}
	return session, nil
}

// UpdateStatus moves a session to the requested status. The requester must be
// a platform admin, the group admin of a group session, or the creator of a
// personal session.
func (s *SessionService) UpdateStatus(ctx context.Context, p model.Principal, sessionID, rawStatus string) (*model.Session, error) {
	id, err := ParseSessionID(sessionID)
	if err != nil {
		return nil, err
	}

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

		ok, err := canManage(ctx, r, p, session)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnauthorized
		}

		next, err := model.ParseSessionStatus(rawStatus)
		if err != nil {
			return err
		}
		if !session.Status.CanTransition(next) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, session.Status, next)
		}

		if err := r.Sessions.UpdateStatus(ctx, id, next); err != nil {
			return err
		}
		session, err = r.Sessions.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Session %s moved to %s by user %d", id, session.Status, p.UserID)
	s.statusChanged(ctx, session)
	return session, nil
}

// MemberIDs returns the users counted for consensus: the live group roster,
// or the creator alone for a personal session
func (s *SessionService) MemberIDs(ctx context.Context, session *model.Session) ([]int64, error) {
	if !session.IsGroupSession() {
		return []int64{session.CreatedBy}, nil
	}
	return s.store.Repos().Groups.ListMemberIDs(ctx, *session.GroupID)
}

// MemberCount is the number of likes a recipe needs to match
func (s *SessionService) MemberCount(ctx context.Context, session *model.Session) (int, error) {
	return memberCount(ctx, s.store.Repos(), session)
}

// CanManage reports whether p may change the session's status or queue
func (s *SessionService) CanManage(ctx context.Context, p model.Principal, session *model.Session) (bool, error) {
	return canManage(ctx, s.store.Repos(), p, session)
}

// statusChanged runs the post-commit side effects of a status change
func (s *SessionService) statusChanged(ctx context.Context, session *model.Session) {
	if s.sessionCache != nil {
		if _, err := s.sessionCache.Set(ctx, session); err != nil {
			log.Printf("Session cache write failed for %s: %v", session.ID, err)
			if err := s.sessionCache.Delete(ctx, session.ID); err != nil {
				log.Printf("Session cache evict failed for %s: %v", session.ID, err)
			}
		}
	}

	if session.Status.IsTerminal() {
		if err := s.queue.Drop(ctx, session.ID); err != nil {
			log.Printf("Failed to drop queue for session %s: %v", session.ID, err)
		}
	}

	if s.broadcaster != nil {
		s.broadcaster.SessionBroadcast(session.ID, model.ActionSessionStatusUpdate, model.SessionStatusPayload{
			SessionID: session.ID,
			Status:    session.Status,
		})
	}
}

// cacheSnapshot stores a snapshot read from the store. An older snapshot never
// replaces a newer one, so a read racing a status change cannot re-cache the
// old status.
func (s *SessionService) cacheSnapshot(ctx context.Context, session *model.Session) {
	if s.sessionCache == nil {
		return
	}
	if _, err := s.sessionCache.Set(ctx, session); err != nil {
		log.Printf("Session cache write failed for %s: %v", session.ID, err)
	}
}

func memberCount(ctx context.Context, r *repository.Repos, session *model.Session) (int, error) {
	if !session.IsGroupSession() {
		return 1, nil
	}
	return r.Groups.CountMembers(ctx, *session.GroupID)
}

func canManage(ctx context.Context, r *repository.Repos, p model.Principal, session *model.Session) (bool, error) {
	if p.IsAdmin {
		return true, nil
	}
	if !session.IsGroupSession() {
		return session.CreatedBy == p.UserID, nil
	}
	m, err := r.Groups.GetMembership(ctx, *session.GroupID, p.UserID)
	if err != nil {
		return false, err
	}
	return m != nil && m.IsAdmin, nil
}
