package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mealswipe/internal/model"
)

type SessionRepo interface {
	Create(ctx context.Context, session *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	UpdateStatus(ctx context.Context, id string, status model.SessionStatus) error
}

type sessionRepo struct {
	q Querier
}

func NewSessionRepo(q Querier) SessionRepo {
	return &sessionRepo{q: q}
}

func (r *sessionRepo) Create(ctx context.Context, session *model.Session) error {
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = session.CreatedAt
	session.Version = 0

	var groupID sql.NullInt64
	if session.GroupID != nil {
		groupID = sql.NullInt64{Int64: *session.GroupID, Valid: true}
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO sessions (id, group_id, created_by, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, groupID, session.CreatedBy, string(session.Status), session.CreatedAt, session.UpdatedAt)
	return err
}

// GetByID returns nil when the session does not exist
func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var (
		s       model.Session
		groupID sql.NullInt64
		status  string
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT id, group_id, created_by, status, version, created_at, updated_at FROM sessions WHERE id = ?`, id).
		Scan(&s.ID, &groupID, &s.CreatedBy, &status, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if groupID.Valid {
		gid := groupID.Int64
		s.GroupID = &gid
	}
	s.Status = model.SessionStatus(status)
	return &s, nil
}

// UpdateStatus bumps the row version on every write
func (r *sessionRepo) UpdateStatus(ctx context.Context, id string, status model.SessionStatus) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE sessions SET status = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
