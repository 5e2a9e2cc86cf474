package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"cardstudio-backend/internal/llm"
	"cardstudio-backend/internal/models"
	"cardstudio-backend/internal/store"
)

// scriptAdapter replays a fixed sequence of results and records which model
// each attempt was dispatched to.
type scriptAdapter struct {
	mu      sync.Mutex
	calls   []string
	results []scriptResult
}

type scriptResult struct {
	cards []models.RawCard
	err   error
}

func (a *scriptAdapter) Name() string { return "script" }

func (a *scriptAdapter) Generate(_ context.Context, req llm.Request) ([]models.RawCard, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, req.ModelID)
	if len(a.results) == 0 {
		return nil, &llm.ContentError{Message: "script exhausted"}
	}
	r := a.results[0]
	a.results = a.results[1:]
	return r.cards, r.err
}

type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) PageText(context.Context, string, int) (string, error) {
	return f.text, f.err
}

func newTestService(t *testing.T, adapter llm.Adapter, extractErr error) (*GenerationService, *store.ProjectStore, *[]time.Duration) {
	t.Helper()

	defaults := store.DefaultSettings("", "", "", "", 2.0)
	defaults.LLMConfig.Models[models.BackendMock] = models.ModelConfig{
		ID:        "m-primary",
		Retries:   2,
		Fallbacks: []string{"m-fallback", ""},
	}
	settings := store.NewSettingsStore(defaults, 10)

	project := store.NewProjectStore()
	project.SetName("doc.pdf")

	svc := NewGenerationService(
		project,
		settings,
		&fakeExtractor{text: "page text", err: extractErr},
		map[string]llm.Adapter{models.BackendMock: adapter},
		nil,
	)
	sleeps := &[]time.Duration{}
	svc.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	svc.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	return svc, project, sleeps
}

func testJob(page int) *models.GenerationJob {
	return &models.GenerationJob{ID: uuid.New(), Project: "doc.pdf", Page: page, ImageBase64: "aW1n"}
}

func providerErr(status int) error {
	return &llm.ProviderError{Status: status, Message: "upstream"}
}

func TestReserve_RejectsConcurrentRuns(t *testing.T) {
	svc, _, _ := newTestService(t, &scriptAdapter{}, nil)

	if err := svc.Reserve(3); err != nil {
		t.Fatal(err)
	}
	if err := svc.Reserve(5); !errors.Is(err, ErrBusy) {
		t.Errorf("second reserve: err = %v, want ErrBusy", err)
	}
	busy, page := svc.Status()
	if !busy || page != 3 {
		t.Errorf("status = (%v, %d), want (true, 3)", busy, page)
	}
}

func TestRun_SuccessAppendsStampedCards(t *testing.T) {
	adapter := &scriptAdapter{results: []scriptResult{
		{cards: []models.RawCard{
			{Type: models.CardTypeBasic, Front: "Q", Back: "A", Tags: []string{"t"}},
			{Type: models.CardTypeCloze, Text: "{{c1::x}}"},
		}},
	}}
	svc, project, sleeps := newTestService(t, adapter, nil)

	if err := svc.Reserve(3); err != nil {
		t.Fatal(err)
	}
	if err := svc.Run(context.Background(), testJob(3)); err != nil {
		t.Fatal(err)
	}

	cards := project.Cards()
	if len(cards) != 2 {
		t.Fatalf("cards = %d, want 2", len(cards))
	}
	for _, c := range cards {
		if c.ID == "" || c.PageNumber != 3 || c.FileName != "doc.pdf" {
			t.Errorf("card not stamped: %+v", c)
		}
	}
	if got := project.Stats().TotalCards; got != 2 {
		t.Errorf("totalCards = %d, want 2", got)
	}
	if project.ActivePage() != 3 {
		t.Errorf("activePage = %d, want 3", project.ActivePage())
	}
	if len(*sleeps) != 0 {
		t.Errorf("unexpected backoff sleeps: %v", *sleeps)
	}

	// The reservation is released after the run.
	if err := svc.Reserve(4); err != nil {
		t.Errorf("slot not released: %v", err)
	}
}

func TestRun_RetryableErrorBacksOffAndRetries(t *testing.T) {
	adapter := &scriptAdapter{results: []scriptResult{
		{err: providerErr(503)},
		{err: providerErr(500)},
		{cards: []models.RawCard{{Type: models.CardTypeBasic, Front: "Q"}}},
	}}
	svc, project, sleeps := newTestService(t, adapter, nil)

	svc.Reserve(1)
	if err := svc.Run(context.Background(), testJob(1)); err != nil {
		t.Fatal(err)
	}

	want := []string{"m-primary", "m-primary", "m-primary"}
	if len(adapter.calls) != 3 || adapter.calls[0] != want[0] || adapter.calls[1] != want[1] || adapter.calls[2] != want[2] {
		t.Errorf("calls = %v, want %v", adapter.calls, want)
	}
	if len(*sleeps) != 2 || (*sleeps)[0] != time.Second || (*sleeps)[1] != 2*time.Second {
		t.Errorf("backoffs = %v, want [1s 2s]", *sleeps)
	}
	if len(project.Cards()) != 1 {
		t.Errorf("cards = %d, want 1", len(project.Cards()))
	}
}

func TestRun_NonRetryableErrorMovesToFallback(t *testing.T) {
	adapter := &scriptAdapter{results: []scriptResult{
		{err: providerErr(401)},
		{cards: []models.RawCard{{Type: models.CardTypeBasic, Front: "Q"}}},
	}}
	svc, _, sleeps := newTestService(t, adapter, nil)

	svc.Reserve(1)
	if err := svc.Run(context.Background(), testJob(1)); err != nil {
		t.Fatal(err)
	}

	if len(adapter.calls) != 2 || adapter.calls[0] != "m-primary" || adapter.calls[1] != "m-fallback" {
		t.Errorf("calls = %v, want primary then fallback without retries", adapter.calls)
	}
	if len(*sleeps) != 0 {
		t.Errorf("non-retryable failure must not back off, got %v", *sleeps)
	}
}

func TestRun_AllModelsExhausted(t *testing.T) {
	var results []scriptResult
	for i := 0; i < 6; i++ {
		results = append(results, scriptResult{err: providerErr(503)})
	}
	adapter := &scriptAdapter{results: results}
	svc, project, sleeps := newTestService(t, adapter, nil)

	svc.Reserve(1)
	err := svc.Run(context.Background(), testJob(1))
	if err == nil || !strings.Contains(err.Error(), "all models failed") {
		t.Fatalf("err = %v", err)
	}

	// Full retry budget on both models: 3 attempts each.
	if len(adapter.calls) != 6 {
		t.Errorf("attempts = %d, want 6: %v", len(adapter.calls), adapter.calls)
	}
	if len(*sleeps) != 4 {
		t.Errorf("backoffs = %v, want one 1s+2s pair per model", *sleeps)
	}
	if len(project.Cards()) != 0 {
		t.Error("failed run must not append cards")
	}
	if err := svc.Reserve(2); err != nil {
		t.Errorf("slot not released after failure: %v", err)
	}
}

func TestRun_ExtractFailureAbortsBeforeGeneration(t *testing.T) {
	adapter := &scriptAdapter{}
	svc, _, _ := newTestService(t, adapter, errors.New("no document"))

	svc.Reserve(1)
	if err := svc.Run(context.Background(), testJob(1)); err == nil {
		t.Fatal("expected error")
	}
	if len(adapter.calls) != 0 {
		t.Errorf("adapter called despite extraction failure: %v", adapter.calls)
	}
	if err := svc.Reserve(2); err != nil {
		t.Errorf("slot not released: %v", err)
	}
}
