// Package archive packs a project into a portable zip (human-readable
// markdown, image assets, and a machine-readable restore point) and reads
// the restore point back on import.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"

	"cardstudio-backend/internal/models"
)

// FormatVersion tags the restore-point layout inside project.json.
const FormatVersion = 1

// Source marks exported archives so imports can be traced back to us.
const Source = "CardStudio"

// ExportState is the restore point embedded in the archive. State is the
// authoritative import payload; everything else in the zip is for human
// inspection only.
type ExportState struct {
	Version   int             `json:"version"`
	Timestamp int64           `json:"timestamp"`
	Source    string          `json:"source"`
	State     json.RawMessage `json:"state"`
}

var unsafeNameChars = regexp.MustCompile(`[^\w\-]`)

// CleanName turns a document name into a filesystem- and tag-safe token:
// the .pdf suffix is dropped and anything outside [A-Za-z0-9_-] becomes an
// underscore. An empty name falls back to "project".
func CleanName(pdfName string) string {
	if pdfName == "" {
		return "project"
	}
	name := pdfName
	if len(name) > 4 && strings.EqualFold(name[len(name)-4:], ".pdf") {
		name = name[:len(name)-4]
	}
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// Export builds the archive for one project: decoded image assets under
// assets/, a grouped markdown index, and the full state snapshot embedded
// verbatim as project.json. Returns the zip bytes and the suggested
// download filename.
func Export(meta models.ProjectMeta) ([]byte, string, error) {
	cleanName := CleanName(meta.PDFName)

	var out bytes.Buffer
	zw := zip.NewWriter(&out)

	// 1. Image assets, with per-card relative paths for the markdown index.
	paths := make(map[string]cardAssets, len(meta.Cards))
	for _, c := range meta.Cards {
		var ca cardAssets
		for idx, b64 := range c.FrontImages {
			name, ok := writeAsset(zw, c.ID, "f", idx, b64)
			if ok {
				ca.front = append(ca.front, name)
			}
		}
		for idx, b64 := range c.BackImages {
			name, ok := writeAsset(zw, c.ID, "b", idx, b64)
			if ok {
				ca.back = append(ca.back, name)
			}
		}
		paths[c.ID] = ca
	}

	// 2. Human-readable index.
	md, err := zw.Create("flashcards.md")
	if err != nil {
		return nil, "", fmt.Errorf("create flashcards.md: %w", err)
	}
	if _, err := md.Write([]byte(renderMarkdown(meta.PDFName, cleanName, meta.Cards, paths))); err != nil {
		return nil, "", fmt.Errorf("write flashcards.md: %w", err)
	}

	// 3. Restore point. The state payload is the snapshot as-is, images
	// still embedded, so import round-trips without touching assets/.
	state, err := json.Marshal(meta)
	if err != nil {
		return nil, "", fmt.Errorf("marshal project state: %w", err)
	}
	restore, err := json.MarshalIndent(ExportState{
		Version:   FormatVersion,
		Timestamp: meta.Timestamp,
		Source:    Source,
		State:     state,
	}, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("marshal restore point: %w", err)
	}
	pj, err := zw.Create("project.json")
	if err != nil {
		return nil, "", fmt.Errorf("create project.json: %w", err)
	}
	if _, err := pj.Write(restore); err != nil {
		return nil, "", fmt.Errorf("write project.json: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize archive: %w", err)
	}
	return out.Bytes(), cleanName + "_Export.zip", nil
}

type cardAssets struct {
	front []string
	back  []string
}

// writeAsset decodes one embedded image and stores it under assets/.
// Undecodable entries are skipped rather than failing the whole export.
func writeAsset(zw *zip.Writer, cardID, side string, idx int, b64 string) (string, bool) {
	raw, err := decodeDataURI(b64)
	if err != nil {
		log.Printf("[Archive] Skipping undecodable image on card %s: %v", cardID, err)
		return "", false
	}
	name := fmt.Sprintf("img_%s_%s_%d.png", cardID, side, idx)
	w, err := zw.Create("assets/" + name)
	if err != nil {
		return "", false
	}
	if _, err := w.Write(raw); err != nil {
		return "", false
	}
	return "assets/" + name, true
}

// decodeDataURI accepts either a full data URI or bare base64.
func decodeDataURI(s string) ([]byte, error) {
	if i := strings.Index(s, ";base64,"); i >= 0 {
		s = s[i+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(s)
}
