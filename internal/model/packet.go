package model

import "errors"

var ErrActionNotFound = errors.New("action not found")

// Action names a packet on the session socket
type Action string

const (
	ActionGlobalMessage       Action = "GLOBAL_MESSAGE"
	ActionSessionMessage      Action = "SESSION_MESSAGE"
	ActionRecipeSwipe         Action = "RECIPE_SWIPE"
	ActionSessionStatusUpdate Action = "SESSION_STATUS_UPDATE"
	ActionConnectionCode      Action = "CONNECTION_CODE"
	ActionRecipeMatch         Action = "RECIPE_MATCH"
)

var actions = map[Action]struct{}{
	ActionGlobalMessage:       {},
	ActionSessionMessage:      {},
	ActionRecipeSwipe:         {},
	ActionSessionStatusUpdate: {},
	ActionConnectionCode:      {},
	ActionRecipeMatch:         {},
}

// ParseAction maps a wire value to a known action
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := actions[a]; !ok {
		return "", ErrActionNotFound
	}
	return a, nil
}

// Packet is the outbound envelope
type Packet struct {
	Action  Action      `json:"action"`
	Payload interface{} `json:"payload"`
}

// MessagePayload carries GLOBAL_MESSAGE and SESSION_MESSAGE text. SenderID is
// nil for server-originated notices.
type MessagePayload struct {
	Message  string `json:"message"`
	SenderID *int64 `json:"sender_id,omitempty"`
}

// SwipePayload is the RECIPE_SWIPE vote
type SwipePayload struct {
	RecipeID int64 `json:"recipe_id" validate:"required,gt=0"`
	Like     *bool `json:"like" validate:"required"`
}

// StatusUpdatePayload is the inbound SESSION_STATUS_UPDATE request
type StatusUpdatePayload struct {
	Status string `json:"status"`
}

// SessionStatusPayload announces a status change to a session
type SessionStatusPayload struct {
	SessionID string        `json:"session_id"`
	Status    SessionStatus `json:"status"`
}

type ConnectionCodePayload struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
}

type RecipeMatchPayload struct {
	Message string  `json:"message"`
	Recipe  *Recipe `json:"recipe"`
}
