package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cardstudio-backend/internal/models"
	"cardstudio-backend/internal/store"
)

type CardHandler struct {
	project *store.ProjectStore
}

func NewCardHandler(project *store.ProjectStore) *CardHandler {
	return &CardHandler{project: project}
}

// List returns the full card list plus the page grouping the UI renders.
func (h *CardHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cards":    h.project.Cards(),
		"groups":   h.project.Grouped(),
		"selected": h.project.SelectedCardIDs(),
		"editing":  h.project.EditingCardID(),
	})
}

// Create adds an empty manual card and puts it into editing mode.
func (h *CardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PageNumber int    `json:"pageNumber"`
		Type       string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Type == "" {
		req.Type = models.CardTypeBasic
	}
	if req.Type != models.CardTypeBasic && req.Type != models.CardTypeCloze {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "type must be basic or cloze", r))
		return
	}

	card := h.project.CreateManual(req.PageNumber, req.Type)
	writeJSON(w, http.StatusCreated, card)
}

// Update applies a partial edit. An unknown id is a no-op, reported in the
// response rather than as an error.
func (h *CardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch models.CardUpdate
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	updated := h.project.Update(id, patch)
	writeJSON(w, http.StatusOK, map[string]interface{}{"updated": updated})
}

func (h *CardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted := h.project.Delete(id)
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
}

func (h *CardHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	deleted := h.project.BulkDelete(req.IDs)
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
}

// Reorder moves one card to a new position in the flat list.
func (h *CardHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From int `json:"from"`
		To   int `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	moved := h.project.Reorder(req.From, req.To)
	if !moved {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Index out of range", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"moved": true})
}

// AddTags appends tags to a set of cards, skipping duplicates per card.
func (h *CardHandler) AddTags(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs  []string `json:"ids"`
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if len(req.Tags) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "tags are required", r))
		return
	}

	h.project.AddTags(req.IDs, req.Tags)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CardHandler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.project.ToggleSelection(id)
	writeJSON(w, http.StatusOK, map[string]interface{}{"selected": h.project.SelectedCardIDs()})
}

func (h *CardHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	h.project.SelectAll()
	writeJSON(w, http.StatusOK, map[string]interface{}{"selected": h.project.SelectedCardIDs()})
}

func (h *CardHandler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	h.project.ClearSelection()
	writeJSON(w, http.StatusOK, map[string]interface{}{"selected": []string{}})
}
