package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mealswipe/internal/model"
)

type UserRepo interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

type userRepo struct {
	q Querier
}

func NewUserRepo(q Querier) UserRepo {
	return &userRepo{q: q}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	// A zero ID lets SQLite assign the rowid
	var id any
	if user.ID != 0 {
		id = user.ID
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO users (id, username, is_admin, created_at) VALUES (?, ?, ?, ?)`,
		id, user.Username, user.IsAdmin, user.CreatedAt)
	if err != nil {
		return err
	}
	if user.ID == 0 {
		user.ID, err = res.LastInsertId()
	}
	return err
}

// GetByID returns nil when the user does not exist
func (r *userRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	err := r.q.QueryRowContext(ctx,
		`SELECT id, username, is_admin, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.IsAdmin, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
