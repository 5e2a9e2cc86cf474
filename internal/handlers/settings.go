package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cardstudio-backend/internal/models"
	"cardstudio-backend/internal/store"
)

type SettingsHandler struct {
	settings *store.SettingsStore
	project  *store.ProjectStore
}

func NewSettingsHandler(settings *store.SettingsStore, project *store.ProjectStore) *SettingsHandler {
	return &SettingsHandler{settings: settings, project: project}
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Snapshot())
}

// Update replaces the settings record. Changed global default prompts are
// re-synced into the open project's unmodified prompt slots.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.Settings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	workspaceEmpty := len(h.project.Cards()) == 0
	changed := h.settings.Update(req, workspaceEmpty)
	if len(changed) > 0 {
		h.project.SyncDefaultPrompts(h.settings.DefaultPrompts())
	}

	writeJSON(w, http.StatusOK, h.settings.Snapshot())
}

// SetPrompt overrides one backend's prompt template for the open project
// and marks it user-modified, pinning it against default re-syncs.
func (h *SettingsHandler) SetPrompt(w http.ResponseWriter, r *http.Request) {
	backend := chi.URLParam(r, "backend")
	if !validPromptKey(backend) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Unknown backend", r))
		return
	}

	var req struct {
		Template string `json:"template"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Template == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "template is required", r))
		return
	}

	h.project.SetPrompt(backend, req.Template)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func validPromptKey(backend string) bool {
	if backend == "default" {
		return true
	}
	for _, b := range models.Backends {
		if b == backend {
			return true
		}
	}
	return false
}
