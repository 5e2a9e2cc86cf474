package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"cardstudio-backend/internal/models"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 4096
)

// AnthropicAdapter speaks the messages API directly. The response is plain
// text, so the card array is located by bracket scan rather than read from
// a constrained JSON object.
type AnthropicAdapter struct {
	client  *http.Client
	baseURL string
}

func NewAnthropicAdapter(client *http.Client) *AnthropicAdapter {
	return &AnthropicAdapter{client: client, baseURL: anthropicDefaultBaseURL}
}

func (a *AnthropicAdapter) Name() string { return models.BackendAnthropic }

type anthropicResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (a *AnthropicAdapter) Generate(ctx context.Context, req Request) ([]models.RawCard, error) {
	if req.APIKey == "" {
		return nil, &ProviderError{Status: 401, Message: "Anthropic API key is required"}
	}

	prompt := RenderPrompt(req.PromptTemplate, req.ExtractedText, req.ExistingContext)

	body := map[string]interface{}{
		"model":      req.ModelID,
		"max_tokens": anthropicMaxTokens,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type": "image",
						"source": map[string]string{
							"type":       "base64",
							"media_type": "image/png",
							"data":       NormalizeBase64(req.ImageBase64),
						},
					},
					{"type": "text", "text": prompt},
				},
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ProviderError{Message: "failed to encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Message: "failed to build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", req.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Status: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &ProviderError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, &ContentError{Message: "response is not valid JSON"}
	}

	if parsed.Error != nil {
		return nil, &ProviderError{Status: resp.StatusCode, Message: parsed.Error.Message}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if len(parsed.Content) == 0 {
		return nil, &ContentError{Message: "response has no content blocks"}
	}

	return extractArrayText(parsed.Content[0].Text)
}
