package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"cardstudio-backend/internal/llm"
	"cardstudio-backend/internal/models"
	"cardstudio-backend/internal/store"
)

// ErrBusy means a generation run is already in flight. Concurrent requests
// are rejected, never interleaved; the client retries after the current run
// reports done or failed.
var ErrBusy = errors.New("a generation is already in progress")

// backoffBase is the first retry delay; each further attempt doubles it.
const backoffBase = 1000 * time.Millisecond

// PageTextExtractor resolves the text half of a page capture server-side.
type PageTextExtractor interface {
	PageText(ctx context.Context, project string, page int) (string, error)
}

// GenerationService runs the capture-to-cards pipeline for one page: page
// text extraction, prompt assembly with existing-card context, then the
// model fallback chain with per-model retries against the active backend.
type GenerationService struct {
	mu       sync.Mutex
	busy     bool
	busyPage int

	project  *store.ProjectStore
	settings *store.SettingsStore
	extract  PageTextExtractor
	adapters map[string]llm.Adapter
	redis    *redis.Client

	// Injected for tests.
	sleep func(time.Duration)
	now   func() time.Time
}

func NewGenerationService(
	project *store.ProjectStore,
	settings *store.SettingsStore,
	extract PageTextExtractor,
	adapters map[string]llm.Adapter,
	redisClient *redis.Client,
) *GenerationService {
	return &GenerationService{
		project:  project,
		settings: settings,
		extract:  extract,
		adapters: adapters,
		redis:    redisClient,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// Reserve claims the generation slot for a page. Callers must either see
// the matching Run complete or the reservation leaks; Run releases it in
// all paths.
func (s *GenerationService) Reserve(page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return fmt.Errorf("%w (page %d)", ErrBusy, s.busyPage)
	}
	s.busy = true
	s.busyPage = page
	return nil
}

func (s *GenerationService) release() {
	s.mu.Lock()
	s.busy = false
	s.busyPage = 0
	s.mu.Unlock()
}

// Release frees a reservation whose job never made it onto the queue.
func (s *GenerationService) Release() { s.release() }

// Status reports whether a run is in flight and for which page.
func (s *GenerationService) Status() (busy bool, page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy, s.busyPage
}

// Run executes one reserved generation job end to end. Progress and the
// terminal done/failed event are published to the project's update channel.
func (s *GenerationService) Run(ctx context.Context, job *models.GenerationJob) error {
	defer s.release()

	backend := s.settings.ActiveBackend()

	s.PublishUpdate(ctx, job.Project, models.WSMessage{
		Type: "generation_update",
		Payload: models.GenerationUpdate{
			Page: job.Page, Step: 1, StepName: "Extracting page text",
		},
	})

	text, err := s.extract.PageText(ctx, job.Project, job.Page)
	if err != nil {
		s.publishFailure(ctx, job, fmt.Errorf("page capture: %w", err))
		return err
	}

	req := llm.Request{
		ImageBase64:     job.ImageBase64,
		APIKey:          s.settings.APIKeyFor(backend),
		ExtractedText:   text,
		ExistingContext: s.project.ExistingContext(job.Page),
		PromptTemplate:  s.project.PromptFor(backend),
	}
	cfg := s.settings.ModelConfigFor(backend)
	llmCfg := s.settings.LLMConfig()
	switch backend {
	case models.BackendOpenAI:
		req.Schema = json.RawMessage(llmCfg.OpenAISchema)
	case models.BackendLocal:
		req.BaseURL = llmCfg.LocalURL
		req.Schema = json.RawMessage(llmCfg.LocalSchema)
	}

	adapter, ok := s.adapters[backend]
	if !ok {
		err := fmt.Errorf("no adapter for backend %q", backend)
		s.publishFailure(ctx, job, err)
		return err
	}

	candidates := []string{cfg.ID}
	for _, f := range cfg.Fallbacks {
		if f != "" {
			candidates = append(candidates, f)
		}
	}
	log.Printf("[Generate] %s page %d: primary=%s fallbacks=%d retries=%d",
		backend, job.Page, cfg.ID, len(candidates)-1, cfg.Retries)

	raw, genErr := s.generateWithFallback(ctx, job, adapter, req, candidates, cfg.Retries)
	if genErr != nil {
		s.publishFailure(ctx, job, genErr)
		return genErr
	}

	cards := make([]models.Card, 0, len(raw))
	fileName := s.project.Name()
	for _, rc := range raw {
		cards = append(cards, models.Card{
			ID:         uuid.NewString(),
			Type:       rc.Type,
			Front:      rc.Front,
			Back:       rc.Back,
			Text:       rc.Text,
			Tags:       rc.Tags,
			PageNumber: job.Page,
			FileName:   fileName,
		})
	}
	s.project.Append(cards)
	s.project.SetActivePage(job.Page)
	s.project.RecordActivity(len(cards), s.now())

	s.PublishUpdate(ctx, job.Project, models.WSMessage{
		Type: "generation_update",
		Payload: models.GenerationUpdate{
			Page: job.Page, Step: 3, StepName: "Done", Cards: len(cards),
		},
	})
	return nil
}

// generateWithFallback tries each candidate model in order. A model gets
// its full retry budget only for retryable failures; a non-retryable error
// moves straight to the next candidate. Backoff doubles per attempt
// starting at one second.
func (s *GenerationService) generateWithFallback(
	ctx context.Context,
	job *models.GenerationJob,
	adapter llm.Adapter,
	req llm.Request,
	candidates []string,
	retries int,
) ([]models.RawCard, error) {
	var lastErr error

	for _, model := range candidates {
		req.ModelID = model

		for attempt := 0; attempt <= retries; attempt++ {
			s.PublishUpdate(ctx, job.Project, models.WSMessage{
				Type: "generation_update",
				Payload: models.GenerationUpdate{
					Page: job.Page, Step: 2, StepName: "Generating cards",
					Model: model, Attempt: attempt + 1,
				},
			})

			cards, err := adapter.Generate(ctx, req)
			if err == nil {
				return cards, nil
			}

			log.Printf("[Generate] model %s attempt %d failed: %v", model, attempt+1, err)
			lastErr = err
			if !llm.Retryable(err) || attempt == retries {
				break
			}
			s.sleep(time.Duration(math.Pow(2, float64(attempt))) * backoffBase)
		}
		if len(candidates) > 1 {
			log.Printf("[Generate] model %s exhausted, falling back", model)
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no models configured")
	}
	return nil, fmt.Errorf("all models failed: %w", lastErr)
}

func (s *GenerationService) publishFailure(ctx context.Context, job *models.GenerationJob, err error) {
	log.Printf("[Generate] page %d failed: %v", job.Page, err)
	s.PublishUpdate(ctx, job.Project, models.WSMessage{
		Type: "generation_update",
		Payload: models.GenerationUpdate{
			Page: job.Page, Step: -1, StepName: "Failed", Error: err.Error(),
		},
	})
}

// PublishUpdate sends a WebSocket update via Redis pub/sub.
func (s *GenerationService) PublishUpdate(ctx context.Context, project string, msg models.WSMessage) {
	if s.redis == nil {
		return
	}
	data, _ := json.Marshal(msg)
	s.redis.Publish(ctx, "project_updates:"+project, string(data))
}
