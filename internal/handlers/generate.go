package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"cardstudio-backend/internal/models"
	"cardstudio-backend/internal/services"
	"cardstudio-backend/internal/store"
	"cardstudio-backend/internal/worker"
)

type GenerateHandler struct {
	generator *services.GenerationService
	project   *store.ProjectStore
	redis     *redis.Client
}

func NewGenerateHandler(generator *services.GenerationService, project *store.ProjectStore, redisClient *redis.Client) *GenerateHandler {
	return &GenerateHandler{
		generator: generator,
		project:   project,
		redis:     redisClient,
	}
}

// Generate reserves the generation slot and queues one job for the worker.
// A second request while a run is in flight gets 409, never a queued
// duplicate.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Page        int    `json:"page"`
		ImageBase64 string `json:"imageBase64"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Page < 1 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "page must be >= 1", r))
		return
	}
	if req.ImageBase64 == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "imageBase64 is required", r))
		return
	}

	project := h.project.Name()
	if project == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("NO_PROJECT", "No project is open", r))
		return
	}

	if err := h.generator.Reserve(req.Page); err != nil {
		if errors.Is(err, services.ErrBusy) {
			writeJSON(w, http.StatusConflict, errorResp("GENERATION_BUSY", err.Error(), r))
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to start generation", r))
		return
	}

	job := models.GenerationJob{
		ID:          uuid.New(),
		Project:     project,
		Page:        req.Page,
		ImageBase64: req.ImageBase64,
	}
	jobBytes, _ := json.Marshal(job)
	if err := h.redis.LPush(r.Context(), worker.QueueGeneration, string(jobBytes)).Err(); err != nil {
		h.generator.Release()
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to queue generation job", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"page":   job.Page,
	})
}

func (h *GenerateHandler) Status(w http.ResponseWriter, r *http.Request) {
	busy, page := h.generator.Status()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"busy": busy,
		"page": page,
	})
}
