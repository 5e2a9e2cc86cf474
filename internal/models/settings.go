package models

import "encoding/json"

// Backend identifiers. Exactly one backend is active at a time; the active
// backend's model config supplies the fallback chain for the next
// generation call.
const (
	BackendOpenAI    = "openai"
	BackendGemini    = "gemini"
	BackendAnthropic = "anthropic"
	BackendLocal     = "local"
	BackendMock      = "mock"
)

// Backends lists the configurable (non-mock) provider families.
var Backends = []string{BackendOpenAI, BackendGemini, BackendAnthropic, BackendLocal}

// ModelConfig is the per-backend model record: primary model id, retry
// budget and the ordered fallback chain tried after the primary exhausts
// its retries.
type ModelConfig struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Retries   int      `json:"retries"`
	Fallbacks []string `json:"fallbacks,omitempty"`
}

type LLMConfig struct {
	Backend        string                 `json:"backend"`
	DefaultBackend string                 `json:"defaultBackend"`
	Models         map[string]ModelConfig `json:"models"`
	OpenAIKey      string                 `json:"openaiKey,omitempty"`
	GeminiKey      string                 `json:"geminiKey,omitempty"`
	AnthropicKey   string                 `json:"anthropicKey,omitempty"`
	OpenAISchema   string                 `json:"openaiSchema,omitempty"`
	LocalURL       string                 `json:"localUrl,omitempty"`
	LocalSchema    string                 `json:"localSchema,omitempty"`
}

type RecentFile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Date string `json:"date"`
}

// UserSettings holds presentation and capture preferences. Appearance is an
// opaque UI payload (theme colors, palettes) persisted and exported verbatim
// without interpretation.
type UserSettings struct {
	SnapshotScale  float64           `json:"snapshotScale"`
	Theme          string            `json:"theme"`
	DefaultPrompts map[string]string `json:"defaultPrompts,omitempty"`
	Appearance     json.RawMessage   `json:"appearance,omitempty"`
}

// Settings is the single global settings record.
type Settings struct {
	LLMConfig    LLMConfig    `json:"llmConfig"`
	UserSettings UserSettings `json:"userSettings"`
	RecentFiles  []RecentFile `json:"recentFiles,omitempty"`
}
