package service

import "mealswipe/internal/model"

// Broadcaster interface for WebSocket broadcasting (avoids import cycle)
type Broadcaster interface {
	SessionBroadcast(sessionID string, action model.Action, payload interface{})
	GlobalBroadcast(action model.Action, payload interface{})
}
