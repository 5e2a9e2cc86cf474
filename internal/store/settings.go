package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"cardstudio-backend/internal/llm"
	"cardstudio-backend/internal/models"
)

// SettingsStore owns the global settings record: backend/model
// configuration, user preferences, global default prompts and the
// recent-files LRU.
type SettingsStore struct {
	mu       sync.RWMutex
	settings models.Settings
	keep     int // recent-files cap

	onChange func()
}

func NewSettingsStore(defaults models.Settings, recentKeep int) *SettingsStore {
	if recentKeep <= 0 {
		recentKeep = 10
	}
	s := &SettingsStore{settings: defaults, keep: recentKeep}
	s.migrate()
	return s
}

// DefaultSettings seeds the initial record. API keys from the environment
// act as fallbacks until the user stores their own.
func DefaultSettings(openaiKey, geminiKey, anthropicKey, localURL string, snapshotScale float64) models.Settings {
	if localURL == "" {
		localURL = "http://localhost:1234/v1"
	}
	return models.Settings{
		LLMConfig: models.LLMConfig{
			Backend:        models.BackendMock,
			DefaultBackend: models.BackendOpenAI,
			Models: map[string]models.ModelConfig{
				models.BackendGemini:    {ID: "gemini-2.5-flash", Name: "Gemini 2.5 Flash", Retries: 1},
				models.BackendAnthropic: {ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", Retries: 1},
				models.BackendOpenAI:    {ID: "gpt-4o", Name: "GPT-4o", Retries: 1},
				models.BackendLocal:     {ID: "qwen2.5-vl-7b-instruct", Name: "Local Model", Retries: 1},
			},
			OpenAIKey:    openaiKey,
			GeminiKey:    geminiKey,
			AnthropicKey: anthropicKey,
			OpenAISchema: llm.DefaultSchemaJSON,
			LocalURL:     localURL,
			LocalSchema:  llm.DefaultSchemaJSON,
		},
		UserSettings: models.UserSettings{
			SnapshotScale: snapshotScale,
			Theme:         "light",
		},
	}
}

func (s *SettingsStore) OnChange(fn func()) { s.onChange = fn }

func (s *SettingsStore) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Hydrate replaces the record with a persisted one, then re-applies schema
// migrations for records written by older versions.
func (s *SettingsStore) Hydrate(settings models.Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	s.migrate()
}

func (s *SettingsStore) migrate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := &s.settings.LLMConfig
	if cfg.Models == nil {
		cfg.Models = make(map[string]models.ModelConfig)
	}
	if cfg.OpenAISchema == "" {
		cfg.OpenAISchema = llm.DefaultSchemaJSON
	}
	if cfg.LocalSchema == "" {
		cfg.LocalSchema = llm.DefaultSchemaJSON
	}
	if cfg.LocalURL == "" {
		cfg.LocalURL = "http://localhost:1234/v1"
	}
	if cfg.DefaultBackend == "" {
		if cfg.Backend != "" {
			cfg.DefaultBackend = cfg.Backend
		} else {
			cfg.DefaultBackend = models.BackendOpenAI
		}
	}
	if cfg.Backend == "" {
		cfg.Backend = models.BackendMock
	}
}

func (s *SettingsStore) Snapshot() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *SettingsStore) ActiveBackend() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.LLMConfig.Backend
}

func (s *SettingsStore) ModelConfigFor(backend string) models.ModelConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.LLMConfig.Models[backend]
}

func (s *SettingsStore) LLMConfig() models.LLMConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.LLMConfig
}

func (s *SettingsStore) DefaultPrompts() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.settings.UserSettings.DefaultPrompts))
	for k, v := range s.settings.UserSettings.DefaultPrompts {
		out[k] = v
	}
	return out
}

// Update merges a new record in. Returns the new global default prompts
// when they changed, so the caller can re-sync unmodified project prompts.
func (s *SettingsStore) Update(settings models.Settings, workspaceEmpty bool) (changedDefaults map[string]string) {
	s.mu.Lock()
	oldDefaults := s.settings.UserSettings.DefaultPrompts
	recents := s.settings.RecentFiles

	s.settings = settings
	if s.settings.RecentFiles == nil {
		s.settings.RecentFiles = recents
	}
	// The preferred default backend becomes active only in an empty
	// workspace; switching mid-project would silently change what the
	// next generation call hits.
	if workspaceEmpty && s.settings.LLMConfig.DefaultBackend != "" {
		s.settings.LLMConfig.Backend = s.settings.LLMConfig.DefaultBackend
	}

	newDefaults := s.settings.UserSettings.DefaultPrompts
	changed := false
	for _, backend := range models.Backends {
		if oldDefaults[backend] != newDefaults[backend] {
			changed = true
			break
		}
	}
	s.mu.Unlock()

	s.migrate()
	s.notify()

	if changed {
		out := make(map[string]string, len(newDefaults))
		for k, v := range newDefaults {
			out[k] = v
		}
		return out
	}
	return nil
}

// SetActiveBackend switches the live backend selector.
func (s *SettingsStore) SetActiveBackend(backend string) {
	s.mu.Lock()
	s.settings.LLMConfig.Backend = backend
	s.mu.Unlock()
	s.notify()
}

// APIKeyFor resolves the credential for a backend. The local backend uses a
// placeholder the way LM Studio style servers expect.
func (s *SettingsStore) APIKeyFor(backend string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch backend {
	case models.BackendOpenAI:
		return s.settings.LLMConfig.OpenAIKey
	case models.BackendGemini:
		return s.settings.LLMConfig.GeminiKey
	case models.BackendAnthropic:
		return s.settings.LLMConfig.AnthropicKey
	case models.BackendLocal:
		return "lm-studio"
	default:
		return ""
	}
}

// TouchRecent bumps a file to the top of the recent list and reports which
// names fell off the cap (their blobs should be trimmed) and whether the
// file is new to the list.
func (s *SettingsStore) TouchRecent(name string, now time.Time) (evicted []string, isNew bool) {
	s.mu.Lock()
	existing := ""
	filtered := make([]models.RecentFile, 0, len(s.settings.RecentFiles))
	for _, f := range s.settings.RecentFiles {
		if f.Name == name {
			existing = f.ID
			continue
		}
		filtered = append(filtered, f)
	}
	isNew = existing == ""

	id := existing
	if id == "" {
		id = uuid.New().String()
	}
	entry := models.RecentFile{ID: id, Name: name, Date: now.Format(time.RFC3339)}
	updated := append([]models.RecentFile{entry}, filtered...)

	if len(updated) > s.keep {
		for _, f := range updated[s.keep:] {
			evicted = append(evicted, f.Name)
		}
		updated = updated[:s.keep]
	}
	s.settings.RecentFiles = updated
	s.mu.Unlock()

	s.notify()
	return evicted, isNew
}
