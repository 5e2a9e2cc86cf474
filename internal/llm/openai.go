package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"cardstudio-backend/internal/models"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// OpenAIAdapter speaks the OpenAI-compatible chat-completions protocol in
// schema-constrained mode. It also serves the local backend: same wire
// shape against a user-configured base URL with a placeholder credential.
type OpenAIAdapter struct {
	name   string
	client *http.Client
}

func NewOpenAIAdapter(name string, client *http.Client) *OpenAIAdapter {
	return &OpenAIAdapter{name: name, client: client}
}

func (a *OpenAIAdapter) Name() string { return a.name }

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat json.RawMessage `json:"response_format,omitempty"`
}

type chatResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (a *OpenAIAdapter) Generate(ctx context.Context, req Request) ([]models.RawCard, error) {
	if req.APIKey == "" && req.BaseURL == "" {
		return nil, &ProviderError{Status: 401, Message: "API key is required"}
	}

	prompt := RenderPrompt(req.PromptTemplate, req.ExtractedText, req.ExistingContext)

	body := chatRequest{
		Model: req.ModelID,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: "You are a helpful assistant. Output must strictly follow the provided JSON schema.",
			},
			{
				Role: "user",
				Content: []map[string]interface{}{
					{"type": "text", "text": prompt},
					{
						"type": "image_url",
						"image_url": map[string]string{
							"url":    DataURI(req.ImageBase64),
							"detail": "high",
						},
					},
				},
			},
		},
		ResponseFormat: responseFormat(req.Schema),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ProviderError{Message: "failed to encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, chatCompletionsURL(req.BaseURL), bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Message: "failed to build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Status: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &ProviderError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, &ContentError{Message: "response is not valid JSON"}
	}

	// Some providers report errors in the body even with 200 OK.
	if parsed.Error != nil {
		return nil, &ProviderError{Status: resp.StatusCode, Message: parsed.Error.Message}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if len(parsed.Choices) == 0 {
		return nil, &ContentError{Message: "'choices' array is missing or empty"}
	}

	content := stripCodeFences(parsed.Choices[0].Message.Content)
	return extractCards(json.RawMessage(content))
}

// chatCompletionsURL normalizes a configured base URL, appending the
// standard path unless the user already included it.
func chatCompletionsURL(baseURL string) string {
	url := baseURL
	if url == "" {
		url = openAIDefaultBaseURL
	}
	url = strings.TrimRight(url, "/")
	if !strings.HasSuffix(url, "/chat/completions") {
		url += "/chat/completions"
	}
	return url
}

func responseFormat(schema json.RawMessage) json.RawMessage {
	if len(schema) == 0 {
		schema = json.RawMessage(DefaultSchemaJSON)
	}
	format, err := json.Marshal(map[string]interface{}{
		"type":        "json_schema",
		"json_schema": schema,
	})
	if err != nil {
		// Invalid custom schema: fall back to generic JSON-object mode.
		return json.RawMessage(`{"type":"json_object"}`)
	}
	return format
}
