package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"cardstudio-backend/internal/archive"
	"cardstudio-backend/internal/models"
	"cardstudio-backend/internal/store"
)

type ArchiveHandler struct {
	project *store.ProjectStore
}

func NewArchiveHandler(project *store.ProjectStore) *ArchiveHandler {
	return &ArchiveHandler{project: project}
}

// Export streams the current project as a zip download.
func (h *ArchiveHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h.project.Name() == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("NO_PROJECT", "No project is open", r))
		return
	}

	data, filename, err := archive.Export(h.project.Snapshot())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to build archive", r))
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Write(data)
}

// Import merges cards from an uploaded archive's restore point into the
// open project. Existing ids are replaced wholesale, new ids appended.
func (h *ArchiveHandler) Import(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > maxUploadBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResp("FILE_TOO_LARGE", "File size exceeds 100MB limit", r))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No file provided", r))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to read file", r))
		return
	}

	state, err := archive.Import(data)
	if errors.Is(err, archive.ErrNoRestorePoint) {
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_ARCHIVE", err.Error(), r))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_ARCHIVE", "Failed to open archive", r))
		return
	}

	var meta models.ProjectMeta
	if err := json.Unmarshal(state, &meta); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_ARCHIVE", "Malformed restore point", r))
		return
	}

	replaced, added := h.project.MergeImport(meta.Cards)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"replaced": replaced,
		"added":    added,
		"total":    len(h.project.Cards()),
	})
}
