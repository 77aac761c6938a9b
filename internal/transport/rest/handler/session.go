package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"mealswipe/internal/cache"
	"mealswipe/internal/model"
	"mealswipe/internal/service"
	"mealswipe/internal/transport/rest/middleware"
)

// SessionHandler handles session endpoints
type SessionHandler struct {
	sessionSvc *service.SessionService
	queueSvc   *service.QueueService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionSvc *service.SessionService, queueSvc *service.QueueService) *SessionHandler {
	return &SessionHandler{
		sessionSvc: sessionSvc,
		queueSvc:   queueSvc,
	}
}

// CreateSessionRequest is the request body for creating a session. A missing
// group_id creates a personal session.
type CreateSessionRequest struct {
	GroupID *int64 `json:"group_id,omitempty"`
}

// UpdateStatusRequest is the request body for a status change
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// PushRecipeRequest is the request body for putting a recipe at the front of
// a session queue
type PushRecipeRequest struct {
	RecipeID int64   `json:"recipe_id"`
	SeenBy   []int64 `json:"seen_by,omitempty"`
}

type sessionResponse struct {
	*model.Session
	Queued *int `json:"queued,omitempty"`
}

type recipesResponse struct {
	SessionID string             `json:"session_id"`
	Recipes   []model.QueueEntry `json:"recipes"`
}

// Create handles POST /v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	session, err := h.sessionSvc.Create(r.Context(), p, req.GroupID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, session)
}

// Get handles GET /v1/sessions/{sessionID}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	session, err := h.sessionSvc.GetVisible(r.Context(), p, mux.Vars(r)["sessionID"])
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := sessionResponse{Session: session}
	if n, err := h.queueSvc.Remaining(r.Context(), session.ID); err == nil {
		resp.Queued = &n
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles PATCH /v1/sessions/{sessionID}/status
func (h *SessionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.sessionSvc.UpdateStatus(r.Context(), p, mux.Vars(r)["sessionID"], req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// NextRecipes handles GET /v1/sessions/{sessionID}/recipes
func (h *SessionHandler) NextRecipes(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessionID := mux.Vars(r)["sessionID"]
	entries, err := h.queueSvc.Next(r.Context(), p, sessionID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, recipesResponse{SessionID: sessionID, Recipes: entries})
}

// PushRecipe handles POST /v1/sessions/{sessionID}/recipes
func (h *SessionHandler) PushRecipe(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req PushRecipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RecipeID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.queueSvc.Offer(r.Context(), p, mux.Vars(r)["sessionID"], req.RecipeID, req.SeenBy); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"recipe_id": req.RecipeID})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidID),
		errors.Is(err, model.ErrStatusNotFound):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrGroupNotFound),
		errors.Is(err, service.ErrRecipeNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrInactiveSession),
		errors.Is(err, service.ErrAlreadySwiped),
		errors.Is(err, cache.ErrItemExists),
		errors.Is(err, cache.ErrQueueExists),
		errors.Is(err, cache.ErrQueueNotFound):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("Request failed: %v", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
