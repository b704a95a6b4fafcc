// Command server runs the Agora HTTP API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agora/internal/config"
	"agora/internal/middleware"
	"agora/internal/observability"
	"agora/internal/server"
)

// @title Agora API
// @version 1.0
// @description Social media API with users, posts, comments and like/dislike reactions
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@agora.local

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := middleware.SetupLogger(cfg.Env)
	middleware.RateLimitBypass = cfg.Env == "test"

	ctx := context.Background()
	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    "agora-api",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TraceSampleRate,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	srv, err := server.NewServer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	if cfg.DevBootstrapStaff && !cfg.IsProduction() {
		user, err := srv.Users().EnsureStaff(ctx, cfg.DevStaffUsername, cfg.DevStaffPassword)
		if err != nil {
			log.Fatalf("Failed to bootstrap staff account: %v", err)
		}
		logger.Info("staff account ready", "username", user.Username, "user_id", user.ID)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		if err := shutdownTracing(ctx); err != nil {
			logger.Error("tracer shutdown error", "error", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
