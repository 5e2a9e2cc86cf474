package llm

import "strings"

// Placeholders every prompt template carries: one for extracted page text,
// one for the existing-cards summary.
const (
	PlaceholderText    = "{{textContent}}"
	PlaceholderContext = "{{existingContext}}"

	noTextFallback    = "No extracted text available."
	noContextFallback = "No existing cards."
)

// DefaultPromptTemplate is the shared global default for every backend.
// Users can override it per backend, globally or per project.
const DefaultPromptTemplate = `You are an expert Flashcard Creator.
Analyze the provided image of a document page and the extracted text.

EXTRACTED TEXT START:
{{textContent}}
EXTRACTED TEXT END

EXISTING CARDS:
{{existingContext}}

Identify the key concepts, definitions, and important facts.
Ignore any headers, footers, or page numbers.

CRITICAL: Do NOT create cards that duplicate "EXISTING CARDS".
CRITICAL: Do NOT use phrases like "According to the document".

For CLOZE cards:
- The "back" field is for Extra Context.
- Do NOT repeat the cloze content or the full sentence here.
- ONLY include information in "back" if it adds valuable context not already inside the card text.
- If no additional context is needed, leave "back" empty string.

Create 3-5 high-quality flashcards.

Return a JSON array of objects. Each object must have:
- "type": "basic" or "cloze"
- "front": Question (for basic)
- "back": Answer (for basic) OR Extra Context (for cloze)
- "text": Cloze text (e.g. "The {{c1::mitochondria}} is the powerhouse.")
- "tags": Array of strings

Do not include markdown formatting like ` + "```json" + `. Just return the raw JSON array.`

// DefaultSchemaJSON is the OpenAI-style response schema instructing
// schema-constrained providers to emit {"cards": [...]}.
const DefaultSchemaJSON = `{
  "name": "flashcards_response",
  "strict": true,
  "schema": {
    "type": "object",
    "properties": {
      "cards": {
        "type": "array",
        "description": "A list of flashcards generated from the text.",
        "items": {
          "type": "object",
          "properties": {
            "type": {
              "type": "string",
              "enum": ["basic", "cloze"],
              "description": "The type of flashcard: 'basic' for Q&A, 'cloze' for fill-in-the-blank."
            },
            "front": {
              "type": "string",
              "description": "The question or front side of the card (for basic type)."
            },
            "back": {
              "type": "string",
              "description": "The answer (for basic type). For cloze type, this is the Extra Info/Context (optional, max 30 words)."
            },
            "text": {
              "type": "string",
              "description": "The cloze text with {{c1::hidden}} parts (only for cloze type)."
            },
            "tags": {
              "type": "array",
              "items": { "type": "string" },
              "description": "Tags for categorizing the card."
            }
          },
          "required": ["type", "front", "back", "text", "tags"],
          "additionalProperties": false
        }
      }
    },
    "required": ["cards"],
    "additionalProperties": false
  }
}`

// RenderPrompt substitutes both placeholders, falling back to fixed markers
// when the page has no extractable text or no cards yet.
func RenderPrompt(template, extractedText, existingContext string) string {
	if template == "" {
		template = DefaultPromptTemplate
	}
	if extractedText == "" {
		extractedText = noTextFallback
	}
	if existingContext == "" {
		existingContext = noContextFallback
	}

	out := strings.Replace(template, PlaceholderText, extractedText, 1)
	out = strings.Replace(out, PlaceholderContext, existingContext, 1)
	return out
}
