package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrNoRestorePoint means the archive carries no project.json. There is no
// reconstruction from flashcards.md or assets/; the import fails outright.
var ErrNoRestorePoint = errors.New("invalid project archive: project.json not found")

// Import opens an exported archive and returns the state payload from its
// restore point, verbatim. The caller merges cards via the store.
func Import(data []byte) (json.RawMessage, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != "project.json" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open restore point: %w", err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read restore point: %w", err)
		}

		var restore ExportState
		if err := json.Unmarshal(raw, &restore); err != nil {
			return nil, fmt.Errorf("parse restore point: %w", err)
		}
		if len(restore.State) == 0 {
			return nil, ErrNoRestorePoint
		}
		return restore.State, nil
	}

	return nil, ErrNoRestorePoint
}
