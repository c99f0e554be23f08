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

	"syncpad/internal/api"
	"syncpad/internal/auth"
	"syncpad/internal/config"
	"syncpad/internal/db"
	"syncpad/internal/repository"
	"syncpad/internal/services/collaboration"
	"syncpad/internal/telemetry"

	"github.com/redis/go-redis/v9"
)

/*
LEARNING: GRACEFUL SHUTDOWN PATTERN WITH OBSERVABILITY

This main function demonstrates:
1. Service initialization and dependency injection
2. Distributed tracing with Jaeger
3. Graceful shutdown handling (listening for SIGINT/SIGTERM)
4. Proper resource cleanup order: HTTP first, then live sessions
*/

func main() {
	log.Println("🚀 Starting syncpad collaborative editing server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Initialize Jaeger tracing
	// Learning: Do this FIRST so all operations are traced
	jaegerShutdown, err := telemetry.InitJaeger("syncpad", cfg.JaegerEndpoint)
	if err != nil {
		log.Printf("⚠️  Failed to initialize Jaeger: %v (continuing without tracing)", err)
		jaegerShutdown = func(ctx context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jaegerShutdown(ctx); err != nil {
			log.Printf("⚠️  Failed to shutdown Jaeger: %v", err)
		}
	}()

	// Initialize GORM database
	database, err := db.NewGorm(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Initialize repositories
	docRepo := repository.NewDocumentRepository(database.DB)
	userRepo := repository.NewUserRepository(database.DB)

	// Initialize the auth token service
	tokens := auth.NewTokenService(cfg.JWTSecret, time.Duration(cfg.TokenTTLMin)*time.Minute)

	// Offline edit buffer: Redis-backed when configured, else in-memory
	var offline collaboration.OfflineBuffer
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("❌ Failed to connect to Redis: %v", err)
		}
		offline = collaboration.NewRedisOfflineBuffer(client)
		log.Printf("✓ Offline buffer backed by Redis at %s", cfg.RedisAddr)
	} else {
		offline = collaboration.NewMemoryOfflineBuffer()
	}

	// Initialize the differential synchronization engine
	engine := collaboration.NewEngine(docRepo, offline)

	// Initialize the WebSocket handshake gate
	wsHandler := collaboration.NewWebSocketHandler(engine, tokens, cfg.SessionSendBuffer)

	// Initialize handlers with dependency injection
	handler := api.NewHandler(docRepo, userRepo, engine, tokens, wsHandler)

	// Setup routes
	router := api.SetupRoutes(handler, tokens)

	// Configure HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine so shutdown signals are handled
	go func() {
		log.Printf("🌐 Server listening on http://%s", addr)
		log.Printf("📚 API Endpoints:")
		log.Printf("   POST   /api/auth/register              - Create account")
		log.Printf("   POST   /api/auth/login                 - Login, get bearer token")
		log.Printf("   GET    /api/documents                  - List documents")
		log.Printf("   POST   /api/documents                  - Create document")
		log.Printf("   GET    /api/documents/:id              - Get document")
		log.Printf("   PUT    /api/documents/:id              - Update document")
		log.Printf("   DELETE /api/documents/:id              - Delete document (soft)")
		log.Printf("   POST   /api/documents/:id/collaborators - Add collaborator")
		log.Printf("   GET    /api/documents/:id/versions     - List versions")
		log.Printf("   POST   /api/documents/:id/revert/:n    - Revert to version")
		log.Printf("   WS     /ws                             - Collaboration socket")
		log.Println()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n🛑 Shutting down server...")

	// Stop accepting new connections; give in-flight requests 30 seconds
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	// Close all live collaboration sessions
	engine.Shutdown()

	log.Println("✓ Server shutdown complete")
}
