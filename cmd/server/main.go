package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/playduel/backend/internal/api"
	"github.com/playduel/backend/internal/arena"
	"github.com/playduel/backend/internal/config"
	"github.com/playduel/backend/internal/database"
	"github.com/playduel/backend/internal/leaderboard"
	"github.com/playduel/backend/internal/migrations"
	"github.com/playduel/backend/internal/redis"
	"github.com/playduel/backend/internal/store"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("↗ Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	st := store.New(db)

	// Initialize the leaderboard cache when Redis is configured
	var cache *leaderboard.Cache
	if cfg.RedisURL != "" {
		rdb, err := redis.Connect(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rdb.Close()
		cache = leaderboard.New(rdb)
	} else {
		log.Println("[REDIS] Not configured, leaderboard cache disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the arena on its TCP port. cache is a nil Presence when Redis
	// is off; the hub checks for that.
	var presence arena.Presence
	if cache != nil {
		presence = cache
	}
	hub := arena.NewHub(st, presence, cfg)

	ln, err := net.Listen("tcp", net.JoinHostPort(cfg.TCPHost, cfg.TCPPort))
	if err != nil {
		log.Fatalf("Failed to listen on TCP port: %v", err)
	}
	go func() {
		if err := hub.Serve(ctx, ln); err != nil {
			log.Printf("[ARENA] Listener stopped: %v", err)
		}
	}()

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	api.SetupRoutes(router, st, cache, hub, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}
	go func() {
		log.Printf("Starting PlayDuel HTTP server on port %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	// Close client sessions first so in-progress matches are recorded as
	// interrupted, then drain the HTTP side.
	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	log.Println("Server stopped")
}
