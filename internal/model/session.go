package model

import (
	"errors"
	"strings"
	"time"
)

var ErrStatusNotFound = errors.New("status not found")

type SessionStatus string

const (
	SessionReady      SessionStatus = "READY"
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionPaused     SessionStatus = "PAUSED"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionCancelled  SessionStatus = "CANCELLED"
)

// transitions lists the statuses reachable from each status.
var transitions = map[SessionStatus][]SessionStatus{
	SessionReady:      {SessionInProgress, SessionCancelled},
	SessionInProgress: {SessionPaused, SessionCompleted, SessionCancelled},
	SessionPaused:     {SessionInProgress, SessionCompleted, SessionCancelled},
	SessionCompleted:  nil,
	SessionCancelled:  nil,
}

// ParseSessionStatus maps a wire value to a status. Matching is exact apart
// from surrounding whitespace.
func ParseSessionStatus(s string) (SessionStatus, error) {
	status := SessionStatus(strings.TrimSpace(s))
	if _, ok := transitions[status]; !ok {
		return "", ErrStatusNotFound
	}
	return status, nil
}

// IsTerminal reports whether no further transitions are possible.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// CanTransition reports whether a session may move from s to next.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Session is a bounded voting round over the recipe catalog. GroupID is nil
// for personal sessions. Version increases with every status change.
type Session struct {
	ID        string        `json:"id"`
	GroupID   *int64        `json:"group_id,omitempty"`
	CreatedBy int64         `json:"created_by"`
	Status    SessionStatus `json:"status"`
	Version   int64         `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// IsGroupSession reports whether membership rules apply to the session.
func (s *Session) IsGroupSession() bool {
	return s.GroupID != nil
}
