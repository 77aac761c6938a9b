package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mealswipe/internal/model"
)

// GroupRepo reads group membership. Writes exist for seeding only.
type GroupRepo interface {
	Create(ctx context.Context, group *model.Group) error
	AddMember(ctx context.Context, m *model.Membership) error
	GetByID(ctx context.Context, id int64) (*model.Group, error)
	// GetMembership returns nil when the user is not in the group
	GetMembership(ctx context.Context, groupID, userID int64) (*model.Membership, error)
	ListMemberIDs(ctx context.Context, groupID int64) ([]int64, error)
	CountMembers(ctx context.Context, groupID int64) (int, error)
}

type groupRepo struct {
	q Querier
}

func NewGroupRepo(q Querier) GroupRepo {
	return &groupRepo{q: q}
}

func (r *groupRepo) Create(ctx context.Context, group *model.Group) error {
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	var id any
	if group.ID != 0 {
		id = group.ID
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO user_groups (id, name, created_at) VALUES (?, ?, ?)`,
		id, group.Name, group.CreatedAt)
	if err != nil {
		return err
	}
	if group.ID == 0 {
		group.ID, err = res.LastInsertId()
	}
	return err
}

func (r *groupRepo) AddMember(ctx context.Context, m *model.Membership) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO group_members (group_id, user_id, is_admin) VALUES (?, ?, ?)
		 ON CONFLICT (group_id, user_id) DO UPDATE SET is_admin = excluded.is_admin`,
		m.GroupID, m.UserID, m.IsAdmin)
	return err
}

func (r *groupRepo) GetByID(ctx context.Context, id int64) (*model.Group, error) {
	var g model.Group
	err := r.q.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM user_groups WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *groupRepo) GetMembership(ctx context.Context, groupID, userID int64) (*model.Membership, error) {
	m := model.Membership{GroupID: groupID, UserID: userID}
	err := r.q.QueryRowContext(ctx,
		`SELECT is_admin FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID).
		Scan(&m.IsAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *groupRepo) ListMemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT user_id FROM group_members WHERE group_id = ? ORDER BY user_id`, groupID)
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

func (r *groupRepo) CountMembers(ctx context.Context, groupID int64) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM group_members WHERE group_id = ?`, groupID).Scan(&n)
	return n, err
}
