package llm

import (
	"context"
	"time"

	"cardstudio-backend/internal/models"
)

// MockAdapter ignores its inputs, waits a fixed delay and returns a static
// sample set. It is the default backend when no credentials are configured
// and keeps the whole pipeline testable offline.
type MockAdapter struct {
	delay time.Duration
}

func NewMockAdapter(delay time.Duration) *MockAdapter {
	return &MockAdapter{delay: delay}
}

func (a *MockAdapter) Name() string { return models.BackendMock }

func (a *MockAdapter) Generate(ctx context.Context, _ Request) ([]models.RawCard, error) {
	if a.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(a.delay):
		}
	}

	return []models.RawCard{
		{
			Type:  models.CardTypeBasic,
			Front: "What is the mitochondria?",
			Back:  "The powerhouse of the cell.",
			Tags:  []string{"biology", "basics"},
		},
		{
			Type:  models.CardTypeBasic,
			Front: "Define 'ATP'.",
			Back:  "Adenosine Triphosphate - the energy currency of the cell.",
			Tags:  []string{"biology", "energy"},
		},
		{
			Type:  models.CardTypeBasic,
			Front: "What is the process of cell division called?",
			Back:  "Mitosis (for somatic cells) or Meiosis (for gametes).",
			Tags:  []string{"biology", "cell-division"},
		},
	}, nil
}
