package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cardstudio-backend/internal/config"
	"cardstudio-backend/internal/database"
	"cardstudio-backend/internal/handlers"
	"cardstudio-backend/internal/llm"
	"cardstudio-backend/internal/persistence"
	"cardstudio-backend/internal/router"
	"cardstudio-backend/internal/services"
	"cardstudio-backend/internal/store"
	"cardstudio-backend/internal/websocket"
	"cardstudio-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting CardStudio Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Step 5: Initialize Persistence Gateway ────
	kv := persistence.NewPostgresKV(pool)
	gateway := persistence.NewGateway(kv)
	log.Println("✓ Persistence gateway ready")

	// ──── Step 6: Initialize Stores ────
	projectStore := store.NewProjectStore()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStartup()

	if stats, err := gateway.LoadStats(startupCtx); err == nil {
		projectStore.SetStats(*stats)
	} else if !errors.Is(err, persistence.ErrNotFound) {
		log.Fatalf("✗ Failed to load stats: %v", err)
	}

	defaults := store.DefaultSettings(cfg.OpenAIAPIKey, cfg.GeminiAPIKey, cfg.AnthropicAPIKey, cfg.LocalLLMURL, cfg.SnapshotScale)
	settingsStore := store.NewSettingsStore(defaults, cfg.RecentFilesKeep)
	if saved, err := gateway.LoadSettings(startupCtx); err == nil {
		settingsStore.Hydrate(*saved)
	} else if !errors.Is(err, persistence.ErrNotFound) {
		log.Fatalf("✗ Failed to load settings: %v", err)
	}
	log.Println("✓ Stores hydrated")

	// ──── Step 7: Wire Debounced Write-Behind ────
	metaDebounce := persistence.NewDebouncer(2*time.Second, func() {
		name := projectStore.Name()
		if name == "" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gateway.SaveProject(ctx, name, projectStore.Snapshot(), nil); err != nil {
			log.Printf("Auto-save failed for %q: %v", name, err)
		}
	})
	settingsDebounce := persistence.NewDebouncer(1*time.Second, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gateway.SaveSettings(ctx, settingsStore.Snapshot()); err != nil {
			log.Printf("Settings save failed: %v", err)
		}
	})
	statsDebounce := persistence.NewDebouncer(1*time.Second, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := gateway.SaveStats(ctx, projectStore.Stats()); err != nil {
			log.Printf("Stats save failed: %v", err)
		}
	})
	projectStore.OnChange(metaDebounce.Trigger)
	projectStore.OnStatsChange(statsDebounce.Trigger)
	settingsStore.OnChange(settingsDebounce.Trigger)
	log.Println("✓ Write-behind debouncers wired")

	// ──── Step 8: Initialize Generation Pipeline ────
	adapters := llm.Adapters(&http.Client{Timeout: 120 * time.Second})
	fileExtract := services.NewFileExtractService(gateway)
	generator := services.NewGenerationService(projectStore, settingsStore, fileExtract, adapters, redisClients.Queue)
	log.Println("✓ LLM adapters initialized")

	// ──── Step 9: Start Job Worker ────
	workerPool := worker.NewPool(redisClients.Queue, generator)
	workerPool.Start()

	// ──── Step 10: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub)
	log.Println("✓ WebSocket hub started")

	// ──── Step 11: Start HTTP Server ────
	generating := func() bool {
		busy, _ := generator.Status()
		return busy
	}
	projectHandler := handlers.NewProjectHandler(gateway, projectStore, settingsStore, metaDebounce.FlushNow, generating)
	cardHandler := handlers.NewCardHandler(projectStore)
	generateHandler := handlers.NewGenerateHandler(generator, projectStore, redisClients.Queue)
	archiveHandler := handlers.NewArchiveHandler(projectStore)
	statsHandler := handlers.NewStatsHandler(projectStore)
	settingsHandler := handlers.NewSettingsHandler(settingsStore, projectStore)

	r := router.New(
		projectHandler,
		cardHandler,
		generateHandler,
		archiveHandler,
		statsHandler,
		settingsHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: stop intake, then drain pending debounced writes
	// so the last edits reach storage.
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()
		metaDebounce.Stop()
		settingsDebounce.Stop()
		statsDebounce.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ CardStudio Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
