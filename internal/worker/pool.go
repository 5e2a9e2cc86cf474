package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"cardstudio-backend/internal/models"
	"cardstudio-backend/internal/services"
)

// QueueGeneration is the Redis list the generate endpoint pushes jobs onto.
const QueueGeneration = "queue:card-generation"

// Pool drains the generation queue. One worker only: generation runs are
// mutually exclusive by design, so extra workers would just block on the
// reservation anyway.
type Pool struct {
	redis     *redis.Client
	generator *services.GenerationService
	stopChan  chan struct{}
}

func NewPool(redisClient *redis.Client, generator *services.GenerationService) *Pool {
	return &Pool{
		redis:     redisClient,
		generator: generator,
		stopChan:  make(chan struct{}),
	}
}

func (p *Pool) Start() {
	go p.worker()
	log.Printf("Started generation worker")
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker() {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Generation worker shutting down")
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout so the stop channel is checked regularly
		result, err := p.redis.BLPop(ctx, 30*time.Second, QueueGeneration).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job models.GenerationJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker: failed to parse job: %v", err)
			continue
		}

		log.Printf("Worker: generation job %s (project=%s page=%d)", job.ID, job.Project, job.Page)
		if err := p.generator.Run(ctx, &job); err != nil {
			log.Printf("Worker: job %s failed: %v", job.ID, err)
		}
	}
}
