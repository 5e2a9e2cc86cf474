package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"cardstudio-backend/internal/models"
)

// Request carries everything an adapter needs for one provider call against
// one model. Fallback chains and retries live in the orchestrator.
type Request struct {
	ImageBase64     string
	APIKey          string
	ExtractedText   string
	ExistingContext string
	PromptTemplate  string
	ModelID         string
	BaseURL         string          // openai-compatible endpoints only
	Schema          json.RawMessage // custom response schema, openai/local only
}

// Adapter translates a Request into one provider-specific network call and
// normalizes the response into a card array. Failures are classified as
// *ProviderError or *ContentError.
type Adapter interface {
	Name() string
	Generate(ctx context.Context, req Request) ([]models.RawCard, error)
}

// Adapters builds the closed backend set. Unknown backend keys dispatch to
// the mock adapter, which is also the default when no credentials exist.
func Adapters(client *http.Client) map[string]Adapter {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return map[string]Adapter{
		models.BackendOpenAI:    NewOpenAIAdapter(models.BackendOpenAI, client),
		models.BackendLocal:     NewOpenAIAdapter(models.BackendLocal, client),
		models.BackendGemini:    NewGeminiAdapter(),
		models.BackendAnthropic: NewAnthropicAdapter(client),
		models.BackendMock:      NewMockAdapter(2 * time.Second),
	}
}

// NormalizeBase64 strips a data-URI prefix, returning the raw base64 payload.
func NormalizeBase64(s string) string {
	if idx := strings.Index(s, ";base64,"); idx >= 0 {
		return s[idx+len(";base64,"):]
	}
	return s
}

// DataURI wraps raw base64 in a PNG data URI unless it already is one.
func DataURI(s string) string {
	if strings.HasPrefix(s, "data:") {
		return s
	}
	return "data:image/png;base64," + s
}

// extractCards pulls the card array out of arbitrary parsed JSON: a bare
// array, an object with a "cards" wrapper, or the first array-valued
// property of any object.
func extractCards(raw json.RawMessage) ([]models.RawCard, error) {
	var cards []models.RawCard
	if err := json.Unmarshal(raw, &cards); err == nil {
		return cards, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &ContentError{Message: "response is neither a JSON array nor an object"}
	}

	if inner, ok := obj["cards"]; ok {
		if err := json.Unmarshal(inner, &cards); err == nil {
			return cards, nil
		}
	}

	for _, inner := range obj {
		if err := json.Unmarshal(inner, &cards); err == nil {
			return cards, nil
		}
	}

	return nil, &ContentError{Message: "no card array found in response object"}
}

// extractArrayText locates the first top-level bracketed array in plain
// model output and parses it. Used by adapters whose providers return text
// rather than constrained JSON.
func extractArrayText(text string) ([]models.RawCard, error) {
	text = stripCodeFences(text)

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, &ContentError{Message: "no JSON array found in response text"}
	}

	var cards []models.RawCard
	if err := json.Unmarshal([]byte(text[start:end+1]), &cards); err != nil {
		return nil, &ContentError{Message: "response array is not valid JSON: " + err.Error()}
	}
	return cards, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
