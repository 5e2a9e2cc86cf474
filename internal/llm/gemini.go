package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"cardstudio-backend/internal/models"
)

// GeminiAdapter sends the page raster inline with the prompt and asks for a
// JSON response body, then parses the card array out of the returned text.
type GeminiAdapter struct{}

func NewGeminiAdapter() *GeminiAdapter { return &GeminiAdapter{} }

func (a *GeminiAdapter) Name() string { return models.BackendGemini }

func (a *GeminiAdapter) Generate(ctx context.Context, req Request) ([]models.RawCard, error) {
	if req.APIKey == "" {
		return nil, &ProviderError{Status: 401, Message: "API key is missing"}
	}

	imgBytes, err := base64.StdEncoding.DecodeString(NormalizeBase64(req.ImageBase64))
	if err != nil {
		return nil, &ContentError{Message: "page image is not valid base64"}
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(req.APIKey))
	if err != nil {
		return nil, &ProviderError{Message: "failed to create Gemini client", Err: err}
	}
	defer client.Close()

	model := client.GenerativeModel(req.ModelID)
	model.ResponseMIMEType = "application/json"

	prompt := RenderPrompt(req.PromptTemplate, req.ExtractedText, req.ExistingContext)

	resp, err := model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.ImageData("png", imgBytes),
	)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	text := extractResponseText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, &ContentError{Message: "Gemini returned empty text"}
	}

	return extractArrayText(text)
}

func classifyGeminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &ProviderError{Status: gerr.Code, Message: gerr.Message, Err: err}
	}
	return &ProviderError{Message: err.Error(), Err: err}
}

func extractResponseText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				text.WriteString(string(t))
			}
		}
	}
	return text.String()
}
