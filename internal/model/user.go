package model

import "time"

// User is a platform account. IsAdmin marks platform administrators.
type User struct {
	ID        int64     `json:"id" yaml:"id"`
	Username  string    `json:"username" yaml:"username"`
	IsAdmin   bool      `json:"is_admin" yaml:"is_admin"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Group is a set of users planning meals together
type Group struct {
	ID        int64     `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Membership links a user to a group
type Membership struct {
	GroupID int64 `json:"group_id" yaml:"group_id"`
	UserID  int64 `json:"user_id" yaml:"user_id"`
	IsAdmin bool  `json:"is_admin" yaml:"is_admin"`
}

// Principal is the authenticated identity bound to a request or connection.
// It is resolved once and never re-derived.
type Principal struct {
	UserID   int64
	Username string
	IsAdmin  bool
}

// NewPrincipal builds the principal for a resolved user
func NewPrincipal(u *User) Principal {
	return Principal{UserID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin}
}
