package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"cardstudio-backend/internal/persistence"
)

// FileExtractService pulls plain text out of a stored PDF, one page at a
// time, to ground flashcard generation alongside the page snapshot.
type FileExtractService struct {
	gateway *persistence.Gateway
}

func NewFileExtractService(gateway *persistence.Gateway) *FileExtractService {
	return &FileExtractService{gateway: gateway}
}

// PageText extracts the text of a single page from the project's PDF blob.
// A trimmed or missing blob is a capture error; a page with no extractable
// text is not (the snapshot alone may still be enough for the model).
func (s *FileExtractService) PageText(ctx context.Context, project string, page int) (string, error) {
	blob, err := s.gateway.LoadBlob(ctx, project)
	if err != nil {
		return "", fmt.Errorf("load pdf for %q: %w", project, err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return "", fmt.Errorf("parse pdf for %q: %w", project, err)
	}

	if page < 1 || page > reader.NumPage() {
		return "", fmt.Errorf("page %d out of range (1-%d)", page, reader.NumPage())
	}

	p := reader.Page(page)
	if p.V.IsNull() {
		return "", nil
	}
	content, err := p.GetPlainText(nil)
	if err != nil {
		return "", nil
	}

	return normalizeExtractedText(content), nil
}

func normalizeExtractedText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	buf := bytes.Buffer{}

	emptyCount := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			emptyCount++
			if emptyCount > 1 {
				continue
			}
			buf.WriteString("\n")
			continue
		}
		emptyCount = 0
		buf.WriteString(trimmed)
		buf.WriteString("\n")
	}

	return strings.TrimSpace(buf.String())
}
