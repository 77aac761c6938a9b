package rest

import (
	"net/http"

	"github.com/gorilla/mux"

	"mealswipe/internal/service"
	"mealswipe/internal/transport/rest/handler"
	"mealswipe/internal/transport/rest/middleware"
	"mealswipe/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService    *service.AuthService
	SessionService *service.SessionService
	QueueService   *service.QueueService
	SwipeService   *service.SwipeService
	WSHub          *ws.Hub
	CookieName     string
	AllowedOrigins string
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	// Initialize handlers
	authHandler := handler.NewAuthHandler()
	sessionHandler := handler.NewSessionHandler(c.SessionService, c.QueueService)
	statsHandler := handler.NewStatsHandler(c.WSHub)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.SessionService, c.SwipeService, c.CookieName)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService, c.CookieName)

	// CORS middleware (apply first)
	r.Use(corsMiddleware(c.AllowedOrigins))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// WebSocket route authenticates during the handshake
	v1.HandleFunc("/ws/sessions/{sessionID}", wsHandler.SessionWS).Methods("GET")

	// User routes (require auth)
	userRoutes := v1.NewRoute().Subrouter()
	userRoutes.Use(authMW.RequireUser)

	userRoutes.HandleFunc("/auth/me", authHandler.Me).Methods("GET", "OPTIONS")
	userRoutes.HandleFunc("/sessions", sessionHandler.Create).Methods("POST", "OPTIONS")
	userRoutes.HandleFunc("/sessions/{sessionID}", sessionHandler.Get).Methods("GET", "OPTIONS")
	userRoutes.HandleFunc("/sessions/{sessionID}/status", sessionHandler.UpdateStatus).Methods("PATCH", "OPTIONS")
	userRoutes.HandleFunc("/sessions/{sessionID}/recipes", sessionHandler.NextRecipes).Methods("GET", "OPTIONS")
	userRoutes.HandleFunc("/sessions/{sessionID}/recipes", sessionHandler.PushRecipe).Methods("POST", "OPTIONS")

	// Admin routes
	adminRoutes := v1.NewRoute().Subrouter()
	adminRoutes.Use(authMW.RequireUser, authMW.RequireAdmin)

	adminRoutes.HandleFunc("/stats", statsHandler.Get).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(allowedOrigins string) mux.MiddlewareFunc {
	if allowedOrigins == "" {
		allowedOrigins = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
