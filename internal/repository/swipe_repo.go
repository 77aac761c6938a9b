package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mealswipe/internal/model"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadySwiped = errors.New("recipe already swiped in this session")
)

// SwipeRepo is the swipe ledger: at most one vote per (session, user, recipe).
type SwipeRepo interface {
	// Record stores the vote and returns its ID, or ErrAlreadySwiped when a
	// vote for the same triple exists.
	Record(ctx context.Context, swipe *model.Swipe) (string, error)
	VotesFor(ctx context.Context, sessionID string, recipeID int64, like bool) ([]*model.Swipe, error)
	// VoteBy returns nil when the user has not voted on the recipe
	VoteBy(ctx context.Context, sessionID string, userID, recipeID int64) (*model.Swipe, error)
	// VoterIDs lists every user who voted on the recipe, likes and dislikes
	VoterIDs(ctx context.Context, sessionID string, recipeID int64) ([]int64, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
}

type swipeRepo struct {
	q Querier
}

func NewSwipeRepo(q Querier) SwipeRepo {
	return &swipeRepo{q: q}
}

const swipeColumns = `id, session_id, user_id, recipe_id, liked, created_at`

func (r *swipeRepo) Record(ctx context.Context, swipe *model.Swipe) (string, error) {
	if swipe.ID == "" {
		swipe.ID = uuid.NewString()
	}
	if swipe.CreatedAt.IsZero() {
		swipe.CreatedAt = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO swipes (`+swipeColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		swipe.ID, swipe.SessionID, swipe.UserID, swipe.RecipeID, swipe.Liked, swipe.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrAlreadySwiped
		}
		return "", fmt.Errorf("insert swipe: %w", err)
	}
	return swipe.ID, nil
}

func (r *swipeRepo) VotesFor(ctx context.Context, sessionID string, recipeID int64, like bool) ([]*model.Swipe, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+swipeColumns+` FROM swipes
		 WHERE session_id = ? AND recipe_id = ? AND liked = ?
		 ORDER BY created_at, id`,
		sessionID, recipeID, like)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var swipes []*model.Swipe
	for rows.Next() {
		s, err := scanSwipe(rows)
		if err != nil {
			return nil, err
		}
		swipes = append(swipes, s)
	}
	return swipes, rows.Err()
}

func (r *swipeRepo) VoteBy(ctx context.Context, sessionID string, userID, recipeID int64) (*model.Swipe, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+swipeColumns+` FROM swipes WHERE session_id = ? AND user_id = ? AND recipe_id = ?`,
		sessionID, userID, recipeID)
	s, err := scanSwipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *swipeRepo) VoterIDs(ctx context.Context, sessionID string, recipeID int64) ([]int64, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT user_id FROM swipes WHERE session_id = ? AND recipe_id = ? ORDER BY user_id`,
		sessionID, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *swipeRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM swipes WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSwipe(row rowScanner) (*model.Swipe, error) {
	var s model.Swipe
	if err := row.Scan(&s.ID, &s.SessionID, &s.UserID, &s.RecipeID, &s.Liked, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
