package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/etonealbert/improvlingo/internal/config"
	"github.com/etonealbert/improvlingo/internal/director"
	"github.com/etonealbert/improvlingo/internal/handlers"
	"github.com/etonealbert/improvlingo/internal/scenario"
	"github.com/etonealbert/improvlingo/internal/security"
	"github.com/etonealbert/improvlingo/internal/services"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	catalog, err := loadCatalog(cfg)
	if err != nil {
		logger.Fatal("loading scenario catalog", zap.Error(err))
	}
	logger.Info("scenario catalog loaded", zap.Int("scenarios", len(catalog.List())))

	metrics := services.NewMetrics()

	registry := services.NewRegistry(catalog, metrics, logger, services.RegistryOptions{
		VoteTimeout: cfg.VoteTimeout,
		IdleTTL:     cfg.SessionIdleTTL,
		NewGenerator: func() (director.Generator, director.Availability) {
			return director.NewGeminiGenerator(cfg.GeminiAPIKey, cfg.GeminiModel)
		},
	})

	dispatcher := handlers.NewDispatcher(registry, catalog, logger)
	hub := services.NewHub(dispatcher.Handle, metrics, logger)
	registry.SetHub(hub)

	go hub.Run()
	go registry.Run()

	origins := security.NewOriginValidator([]string{"*"})
	wsHandler := handlers.NewWSHandler(hub, registry, origins, logger)
	sessionHandlers := handlers.NewSessionHandlers(registry, catalog, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", sessionHandlers.CreateSession)
	mux.HandleFunc("POST /api/sessions/{sessionId}/join", sessionHandlers.JoinSession)
	mux.HandleFunc("POST /api/sessions/{sessionId}/leave", sessionHandlers.LeaveSession)
	mux.HandleFunc("GET /api/sessions/{sessionId}", sessionHandlers.GetSession)
	mux.HandleFunc("GET /api/scenarios", sessionHandlers.ListScenarios)
	mux.HandleFunc("GET /ws/{sessionId}/{participantId}", wsHandler.HandleWebSocket)
	mux.HandleFunc("GET /api/metrics", handlers.HandleMetrics(metrics))
	mux.HandleFunc("GET /api/health", handlers.HandleHealth(metrics, registry))

	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	registry.Stop()
}

func loadCatalog(cfg *config.Config) (*scenario.Catalog, error) {
	if cfg.ScenarioCatalog != "" {
		return scenario.LoadFile(cfg.ScenarioCatalog)
	}
	return scenario.LoadBuiltin()
}
