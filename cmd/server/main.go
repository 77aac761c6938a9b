package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mealswipe/internal/cache"
	"mealswipe/internal/config"
	"mealswipe/internal/repository"
	"mealswipe/internal/service"
	"mealswipe/internal/transport/rest"
	"mealswipe/internal/transport/ws"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:          "mealswipe-server",
		Short:        "Real-time group meal planning server",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			return serve(cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

func serve(cfg *config.Config) error {
	log.Println("started")
	ctx := context.Background()

	// SQLite store
	store, err := repository.Open(cfg.SQLiteDSN)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()
	log.Println("Opened SQLite store")

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		return fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	log.Println("Connected to MongoDB")

	recipeRepo := repository.NewRecipeRepo(mongoClient.Database(cfg.MongoDatabase))

	// Recipe queues live in Redis when configured, in process otherwise
	var (
		queue        cache.RecipeQueue
		sessionCache cache.SessionCache
	)
	if cfg.UseRedisQueue() {
		rdb := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr(),
		})
		defer rdb.Close()

		if _, err := rdb.Ping(ctx).Result(); err != nil {
			return fmt.Errorf("failed to ping Redis: %w", err)
		}
		log.Println("Connected to Redis")

		queue = cache.NewRedisRecipeQueue(rdb)
		sessionCache = cache.NewSessionCache(rdb)
	} else {
		log.Println("Warning: REDIS_URI not set, keeping recipe queues in memory")
		queue = cache.NewMemoryRecipeQueue()
	}

	// Initialize WebSocket hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// Initialize services
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.AccessTTL(), store.Repos().Users)
	sessionSvc := service.NewSessionService(store, recipeRepo, queue, sessionCache)
	queueSvc := service.NewQueueService(queue, recipeRepo, sessionSvc)
	swipeSvc := service.NewSwipeService(store, recipeRepo, sessionSvc, queueSvc)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	sessionSvc.SetBroadcaster(wsHub)
	swipeSvc.SetBroadcaster(wsHub)

	router := rest.NewRouter(&rest.Container{
		AuthService:    authSvc,
		SessionService: sessionSvc,
		QueueService:   queueSvc,
		SwipeService:   swipeSvc,
		WSHub:          wsHub,
		CookieName:     cfg.AccessCookieName,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on %s (%s)", cfg.HTTPAddr, cfg.Env)
		log.Println("Endpoints:")
		log.Println("  GET  /v1/auth/me")
		log.Println("  POST /v1/sessions")
		log.Println("  GET  /v1/sessions/{sessionID}")
		log.Println("  PATCH /v1/sessions/{sessionID}/status")
		log.Println("  GET/POST /v1/sessions/{sessionID}/recipes")
		log.Println("  GET  /v1/stats")
		log.Println("  WS   /v1/ws/sessions/{sessionID}")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server exited")
	return nil
}
