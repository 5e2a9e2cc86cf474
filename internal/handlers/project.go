package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"cardstudio-backend/internal/models"
	"cardstudio-backend/internal/persistence"
	"cardstudio-backend/internal/store"
)

const maxUploadBytes = 100 * 1024 * 1024 // 100MB

type ProjectHandler struct {
	gateway  *persistence.Gateway
	project  *store.ProjectStore
	settings *store.SettingsStore

	// flushMeta forces the pending debounced metadata write before a
	// project is closed or switched.
	flushMeta func()

	// generating reports whether a generation run is in flight. Switching
	// or closing the workspace under a running job is rejected.
	generating func() bool
}

func NewProjectHandler(gateway *persistence.Gateway, project *store.ProjectStore, settings *store.SettingsStore, flushMeta func(), generating func() bool) *ProjectHandler {
	return &ProjectHandler{
		gateway:    gateway,
		project:    project,
		settings:   settings,
		flushMeta:  flushMeta,
		generating: generating,
	}
}

func (h *ProjectHandler) rejectIfGenerating(w http.ResponseWriter, r *http.Request) bool {
	if h.generating != nil && h.generating() {
		writeJSON(w, http.StatusConflict, errorResp("GENERATION_BUSY", "A generation is in progress", r))
		return true
	}
	return false
}

// Upload receives a PDF, stores meta and blob, and opens it as the active
// project.
func (h *ProjectHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.rejectIfGenerating(w, r) {
		return
	}
	if r.ContentLength > maxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "File size exceeds 100MB limit", r))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file provided", r))
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResp("UNSUPPORTED_FORMAT", "Only PDF files are supported", r))
		return
	}

	blob, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to read file", r))
		return
	}

	name := header.Filename

	// Switching documents: persist whatever the previous project still has
	// pending before resetting the workspace.
	h.flushMeta()

	defaults := h.settings.DefaultPrompts()

	// Existing project under this name resumes with its saved cards; a new
	// name starts clean.
	meta, err := h.gateway.LoadProject(r.Context(), name)
	switch {
	case err == nil:
		h.project.Open(meta.ProjectMeta, defaults)
	case errors.Is(err, persistence.ErrNotFound):
		h.project.Reset(defaults)
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load project", r))
		return
	}
	h.project.SetName(name)

	if err := h.gateway.SaveProject(r.Context(), name, h.project.Snapshot(), blob); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save project", r))
		return
	}

	h.touchRecent(r, name)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":  name,
		"cards": len(h.project.Cards()),
	})
}

// Open activates a previously saved project by name.
func (h *ProjectHandler) Open(w http.ResponseWriter, r *http.Request) {
	if h.rejectIfGenerating(w, r) {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "name is required", r))
		return
	}

	project, err := h.gateway.LoadProject(r.Context(), req.Name)
	if errors.Is(err, persistence.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Project not found", r))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load project", r))
		return
	}

	h.flushMeta()
	h.project.Open(project.ProjectMeta, h.settings.DefaultPrompts())
	h.project.SetName(req.Name)
	h.touchRecent(r, req.Name)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    req.Name,
		"meta":    h.project.Snapshot(),
		"hasBlob": len(project.PDFFile) > 0,
	})
}

// Close flushes pending writes and clears the workspace.
func (h *ProjectHandler) Close(w http.ResponseWriter, r *http.Request) {
	if h.rejectIfGenerating(w, r) {
		return
	}

	h.flushMeta()
	h.project.Reset(h.settings.DefaultPrompts())

	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

// List returns every saved project name, split-format and legacy alike.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.gateway.ListProjects(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list projects", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"projects": names,
		"recent":   h.settings.Snapshot().RecentFiles,
	})
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name, ok := projectName(w, r)
	if !ok {
		return
	}

	if err := h.gateway.DeleteProject(r.Context(), name); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete project", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Trim drops a project's PDF blob while keeping its cards loadable.
func (h *ProjectHandler) Trim(w http.ResponseWriter, r *http.Request) {
	name, ok := projectName(w, r)
	if !ok {
		return
	}

	if err := h.gateway.TrimProject(r.Context(), name); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to trim project", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "trimmed"})
}

// AddAnnotation appends a completed stroke to a page.
func (h *ProjectHandler) AddAnnotation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Page       int               `json:"page"`
		Annotation models.Annotation `json:"annotation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Page < 1 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "page must be >= 1", r))
		return
	}

	h.project.AddAnnotation(req.Page, req.Annotation)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// touchRecent bumps the recent-files list and reconciles storage with the
// eviction outcome: evicted entries lose their blob, a brand-new entry
// counts toward the file total.
func (h *ProjectHandler) touchRecent(r *http.Request, name string) {
	evicted, isNew := h.settings.TouchRecent(name, time.Now())
	for _, old := range evicted {
		if err := h.gateway.TrimProject(r.Context(), old); err != nil && !errors.Is(err, persistence.ErrNotFound) {
			// Already trimmed or never saved; nothing to reclaim.
			continue
		}
	}
	if isNew {
		h.project.RecordNewFile()
	}
}

func projectName(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "name")
	name, err := url.PathUnescape(raw)
	if err != nil || name == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid project name", r))
		return "", false
	}
	return name, true
}
