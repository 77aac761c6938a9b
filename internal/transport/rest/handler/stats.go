package handler

import "net/http"

// ConnectionCounter reports live connection counts
type ConnectionCounter interface {
	ConnectionCount(sessionID string) int
	SessionCount() int
}

// StatsHandler handles platform statistics endpoints
type StatsHandler struct {
	counter ConnectionCounter
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(counter ConnectionCounter) *StatsHandler {
	return &StatsHandler{counter: counter}
}

type statsResponse struct {
	Connections    int `json:"connections"`
	ActiveSessions int `json:"active_sessions"`
}

// Get handles GET /v1/stats
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statsResponse{
		Connections:    h.counter.ConnectionCount(""),
		ActiveSessions: h.counter.SessionCount(),
	})
}
