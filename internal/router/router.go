package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"cardstudio-backend/internal/handlers"
	"cardstudio-backend/internal/middleware"
	"cardstudio-backend/internal/websocket"
)

func New(
	projectHandler *handlers.ProjectHandler,
	cardHandler *handlers.CardHandler,
	generateHandler *handlers.GenerateHandler,
	archiveHandler *handlers.ArchiveHandler,
	statsHandler *handlers.StatsHandler,
	settingsHandler *handlers.SettingsHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Generation rate limiter (10 req/min per IP); provider quotas are the
	// real ceiling, this just stops runaway clients.
	generateLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Project Routes ────
		r.Route("/projects", func(r chi.Router) {
			r.Get("/", projectHandler.List)
			r.Post("/upload", projectHandler.Upload)
			r.Post("/open", projectHandler.Open)
			r.Post("/close", projectHandler.Close)
			r.Delete("/{name}", projectHandler.Delete)
			r.Post("/{name}/trim", projectHandler.Trim)
		})

		// ──── Card Routes ────
		r.Route("/cards", func(r chi.Router) {
			r.Get("/", cardHandler.List)
			r.Post("/", cardHandler.Create)
			r.Put("/{id}", cardHandler.Update)
			r.Delete("/{id}", cardHandler.Delete)
			r.Post("/bulk-delete", cardHandler.BulkDelete)
			r.Post("/reorder", cardHandler.Reorder)
			r.Post("/tags", cardHandler.AddTags)
			r.Post("/{id}/select", cardHandler.ToggleSelection)
			r.Post("/select-all", cardHandler.SelectAll)
			r.Post("/clear-selection", cardHandler.ClearSelection)
		})

		// ──── Annotation Routes ────
		r.Post("/annotations", projectHandler.AddAnnotation)

		// ──── Generation Routes ────
		r.Route("/generate", func(r chi.Router) {
			r.With(generateLimiter.Middleware).Post("/", generateHandler.Generate)
			r.Get("/status", generateHandler.Status)
		})

		// ──── Archive Routes ────
		r.Route("/archive", func(r chi.Router) {
			r.Post("/export", archiveHandler.Export)
			r.Post("/import", archiveHandler.Import)
		})

		// ──── Stats Routes ────
		r.Route("/stats", func(r chi.Router) {
			r.Get("/", statsHandler.Get)
			r.Post("/heartbeat", statsHandler.Heartbeat)
			r.Post("/reset", statsHandler.Reset)
		})

		// ──── Settings Routes ────
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", settingsHandler.Get)
			r.Put("/", settingsHandler.Update)
		})

		// Per-project prompt overrides (distinct from the global defaults
		// under /settings).
		r.Put("/prompts/{backend}", settingsHandler.SetPrompt)

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
