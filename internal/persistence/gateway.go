package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"cardstudio-backend/internal/models"
)

// Key scheme. Version 1 stored one combined record per document under the
// bare prefix; version 2 splits lightweight metadata from the PDF blob so
// frequent metadata writes never rewrite megabytes of binary.
const (
	metaPrefix   = "flashcards_project_meta_"
	blobPrefix   = "flashcards_project_blob_"
	legacyPrefix = "flashcards_project_"

	statsKey    = "flashcards_global_stats"
	settingsKey = "flashcards_user_settings"
)

// legacyProject is the version-1 combined record: metadata with the PDF
// bytes inline.
type legacyProject struct {
	models.ProjectMeta
	PDFFile []byte `json:"pdfFile,omitempty"`
}

// Gateway is the durable persistence layer for projects, stats and
// settings.
type Gateway struct {
	kv KV
}

func NewGateway(kv KV) *Gateway {
	return &Gateway{kv: kv}
}

// SaveProject always writes the metadata record; the blob is written only
// when the caller supplies one (i.e. once, at document-load time).
func (g *Gateway) SaveProject(ctx context.Context, name string, meta models.ProjectMeta, blob []byte) error {
	if name == "" {
		return errors.New("project name is empty")
	}

	meta.Version = models.MetaVersion
	meta.Timestamp = time.Now().UnixMilli()
	meta.PDFName = name

	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %s: %w", name, err)
	}
	if err := g.kv.Put(ctx, metaPrefix+name, payload); err != nil {
		return fmt.Errorf("failed to save metadata for %s: %w", name, err)
	}

	if len(blob) > 0 {
		if err := g.kv.Put(ctx, blobPrefix+name, blob); err != nil {
			return fmt.Errorf("failed to save blob for %s: %w", name, err)
		}
		log.Printf("[Persistence] Saved blob: %s (%.2f MB)", name, float64(len(blob))/1024/1024)
	}

	return nil
}

// LoadProject reads the split records, falling back to the legacy combined
// record. A legacy hit is migrated to the split scheme on the spot
// (write-through) before the combined view is returned. Absent metadata
// under both schemes is ErrNotFound.
func (g *Gateway) LoadProject(ctx context.Context, name string) (*models.Project, error) {
	if name == "" {
		return nil, ErrNotFound
	}

	metaBytes, metaErr := g.kv.Get(ctx, metaPrefix+name)
	if metaErr != nil && !errors.Is(metaErr, ErrNotFound) {
		return nil, metaErr
	}

	if errors.Is(metaErr, ErrNotFound) {
		return g.migrateLegacy(ctx, name)
	}

	var meta models.ProjectMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("corrupt metadata for %s: %w", name, err)
	}

	blob, blobErr := g.kv.Get(ctx, blobPrefix+name)
	if blobErr != nil && !errors.Is(blobErr, ErrNotFound) {
		// Metadata alone is still a valid, loadable project.
		log.Printf("[Persistence] Failed to load blob for %s: %v", name, blobErr)
		blob = nil
	}

	return &models.Project{ProjectMeta: meta, PDFFile: blob}, nil
}

func (g *Gateway) migrateLegacy(ctx context.Context, name string) (*models.Project, error) {
	legacyBytes, err := g.kv.Get(ctx, legacyPrefix+name)
	if err != nil {
		return nil, err // ErrNotFound passes through
	}

	var legacy legacyProject
	if err := json.Unmarshal(legacyBytes, &legacy); err != nil {
		return nil, fmt.Errorf("corrupt legacy record for %s: %w", name, err)
	}

	log.Printf("[Persistence] Migrating legacy project: %s", name)
	if err := g.SaveProject(ctx, name, legacy.ProjectMeta, legacy.PDFFile); err != nil {
		return nil, err
	}
	if err := g.kv.Delete(ctx, legacyPrefix+name); err != nil {
		log.Printf("[Persistence] Failed to remove legacy record for %s: %v", name, err)
	}

	return &models.Project{ProjectMeta: legacy.ProjectMeta, PDFFile: legacy.PDFFile}, nil
}

// LoadBlob returns just the PDF bytes, checking the legacy record when the
// split blob is absent.
func (g *Gateway) LoadBlob(ctx context.Context, name string) ([]byte, error) {
	blob, err := g.kv.Get(ctx, blobPrefix+name)
	if err == nil {
		return blob, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	legacyBytes, err := g.kv.Get(ctx, legacyPrefix+name)
	if err != nil {
		return nil, err
	}
	var legacy legacyProject
	if err := json.Unmarshal(legacyBytes, &legacy); err != nil {
		return nil, fmt.Errorf("corrupt legacy record for %s: %w", name, err)
	}
	if len(legacy.PDFFile) == 0 {
		return nil, ErrNotFound
	}
	return legacy.PDFFile, nil
}

// TrimProject deletes the blob only, bounding storage for documents that
// fell off the recent-files list. Metadata stays loadable. A project still
// in legacy form is split without its blob.
func (g *Gateway) TrimProject(ctx context.Context, name string) error {
	if err := g.kv.Delete(ctx, blobPrefix+name); err != nil {
		return fmt.Errorf("failed to trim blob for %s: %w", name, err)
	}

	legacyBytes, err := g.kv.Get(ctx, legacyPrefix+name)
	if errors.Is(err, ErrNotFound) {
		log.Printf("[Persistence] Trimmed blob: %s", name)
		return nil
	}
	if err != nil {
		return err
	}

	var legacy legacyProject
	if err := json.Unmarshal(legacyBytes, &legacy); err != nil {
		return fmt.Errorf("corrupt legacy record for %s: %w", name, err)
	}
	if err := g.SaveProject(ctx, name, legacy.ProjectMeta, nil); err != nil {
		return err
	}
	if err := g.kv.Delete(ctx, legacyPrefix+name); err != nil {
		return err
	}

	log.Printf("[Persistence] Trimmed blob: %s", name)
	return nil
}

// DeleteProject removes every record for the name, legacy included.
func (g *Gateway) DeleteProject(ctx context.Context, name string) error {
	var firstErr error
	for _, key := range []string{metaPrefix + name, blobPrefix + name, legacyPrefix + name} {
		if err := g.kv.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		log.Printf("[Persistence] Deleted: %s", name)
	}
	return firstErr
}

// ListProjects enumerates every known project name: split-scheme metadata
// keys unioned with legacy keys that are not meta/blob keys.
func (g *Gateway) ListProjects(ctx context.Context) ([]string, error) {
	keys, err := g.kv.Keys(ctx, legacyPrefix)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var names []string
	add := func(name string) {
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	for _, key := range keys {
		switch {
		case strings.HasPrefix(key, metaPrefix):
			add(strings.TrimPrefix(key, metaPrefix))
		case strings.HasPrefix(key, blobPrefix):
			// Blob without meta is not a loadable project.
		default:
			add(strings.TrimPrefix(key, legacyPrefix))
		}
	}
	return names, nil
}

// Global records.

func (g *Gateway) SaveStats(ctx context.Context, stats models.GlobalStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	return g.kv.Put(ctx, statsKey, payload)
}

func (g *Gateway) LoadStats(ctx context.Context) (*models.GlobalStats, error) {
	payload, err := g.kv.Get(ctx, statsKey)
	if err != nil {
		return nil, err
	}
	var stats models.GlobalStats
	if err := json.Unmarshal(payload, &stats); err != nil {
		return nil, fmt.Errorf("corrupt stats record: %w", err)
	}
	return &stats, nil
}

func (g *Gateway) SaveSettings(ctx context.Context, settings models.Settings) error {
	payload, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return g.kv.Put(ctx, settingsKey, payload)
}

func (g *Gateway) LoadSettings(ctx context.Context) (*models.Settings, error) {
	payload, err := g.kv.Get(ctx, settingsKey)
	if err != nil {
		return nil, err
	}
	var settings models.Settings
	if err := json.Unmarshal(payload, &settings); err != nil {
		return nil, fmt.Errorf("corrupt settings record: %w", err)
	}
	return &settings, nil
}
