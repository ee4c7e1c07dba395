package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"blocklab-backend/internal/models"
	"blocklab-backend/internal/repository"
	"blocklab-backend/internal/services"
)

// Pool drains the redis notification queue and dispatches emails, keeping
// SMTP latency off the session-transition path.
type Pool struct {
	redis       *redis.Client
	email       *services.EmailService
	experiments *repository.ExperimentRepo
	workerCount int
	stopChan    chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	email *services.EmailService,
	experiments *repository.ExperimentRepo,
	workerCount int,
) *Pool {
	return &Pool{
		redis:       redisClient,
		email:       email,
		experiments: experiments,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.worker(i)
	}
	log.Printf("Started %d notification workers", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int) {
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, services.NotificationQueue).Result()
		if err != nil {
			continue // Timeout or error, retry
		}
		if len(result) < 2 {
			continue
		}

		var job models.NotificationJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		// Dedupe across workers
		lockKey := fmt.Sprintf("job_lock:%s", job.ID)
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue
		}

		if err := p.process(ctx, &job); err != nil {
			log.Printf("Worker %d: job %s failed: %v", id, job.ID, err)
		}

		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) process(ctx context.Context, job *models.NotificationJob) error {
	switch job.Type {
	case services.JobParticipantFinished:
		exp, err := p.experiments.Get(ctx, job.ExperimentID)
		if err != nil {
			return err
		}
		if exp == nil || exp.NotifyEmail == nil {
			return nil // nobody to tell
		}
		return p.email.SendParticipantFinished(*exp.NotifyEmail, exp.Title, job.UserID)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}
