package handlers

import (
	"encoding/json"
	"net/http"

	"cardstudio-backend/internal/store"
)

type StatsHandler struct {
	project *store.ProjectStore
}

func NewStatsHandler(project *store.ProjectStore) *StatsHandler {
	return &StatsHandler{project: project}
}

func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.project.Stats())
}

// Heartbeat accumulates study time while the UI is in study mode.
func (h *StatsHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds int `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Seconds <= 0 || req.Seconds > 300 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "seconds must be between 1 and 300", r))
		return
	}

	h.project.AddStudyTime(req.Seconds)
	writeJSON(w, http.StatusOK, h.project.Stats())
}

func (h *StatsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.project.ResetStats())
}
