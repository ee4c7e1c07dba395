package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"blocklab-backend/internal/models"
)

const NotificationQueue = "queue:notifications"

const JobParticipantFinished = "participant-finished"

// RedisNotifier enqueues notification jobs for the worker pool; the request
// path never blocks on SMTP.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) ParticipantFinished(ctx context.Context, userID, experimentID int64) error {
	job := models.NotificationJob{
		ID:           uuid.NewString(),
		Type:         JobParticipantFinished,
		UserID:       userID,
		ExperimentID: experimentID,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := n.client.RPush(ctx, NotificationQueue, data).Err(); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
