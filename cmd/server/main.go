package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mmuslimabdulj/goat-poker/internal/config"
	httpHandler "github.com/mmuslimabdulj/goat-poker/internal/delivery/http"
	"github.com/mmuslimabdulj/goat-poker/internal/delivery/ws"
	"github.com/mmuslimabdulj/goat-poker/internal/middleware"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file (ignore error if not exists, e.g. in production)
	_ = godotenv.Load()

	// Reload config after loading .env
	config.AppConfig = config.LoadFromEnv()
	cfg := config.AppConfig

	config.SetupLogging(cfg.LogLevel, os.Stderr)

	// Initialize dependencies
	roomManager := ws.NewRoomManager()
	roomManager.SetGracePeriod(cfg.RoomGracePeriod)
	handler := httpHandler.NewHandler(roomManager, cfg)

	apiLimiter := middleware.NewIPRateLimiter(cfg.RateLimitAPI, 2*int(cfg.RateLimitAPI))
	wsLimiter := middleware.NewIPRateLimiter(cfg.RateLimitWS, 2*int(cfg.RateLimitWS))
	defer apiLimiter.Stop()
	defer wsLimiter.Stop()

	// Setup routes
	mux := http.NewServeMux()

	mux.HandleFunc("/health", handler.HandleHealth)

	// WebSocket route with rate limiting
	mux.HandleFunc("/ws", middleware.RateLimitFunc(wsLimiter, handler.HandleWebSocket))

	// API routes with rate limiting, callable from the allowed browser origins
	withCORS := middleware.CORS(cfg.AllowedOrigins)
	mux.Handle("/api/room/create", withCORS(middleware.RateLimitFunc(apiLimiter, handler.HandleCreateRoom)))
	mux.Handle("/api/room/join", withCORS(middleware.RateLimitFunc(apiLimiter, handler.HandleJoinRoom)))

	// Apply security headers middleware to all requests
	securedHandler := middleware.SecurityHeaders(mux)

	// Create server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      securedHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msgf("GOAT poker relay running at http://localhost:%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Int("rooms", roomManager.GetRoomCount()).Msg("server exited gracefully")
}
