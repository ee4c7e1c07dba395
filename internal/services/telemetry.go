package services

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"blocklab-backend/internal/models"
)

// TelemetryService appends interaction events to the session's log. Appends
// are gated and run inside the same per-user critical section as session
// transitions so an event can never slip past a concurrent stop.
type TelemetryService struct {
	sessions    SessionStore
	experiments ExperimentStore
	events      EventStore
	locks       *UserLocks
	monitor     MonitorPublisher
}

func NewTelemetryService(
	sessions SessionStore,
	experiments ExperimentStore,
	events EventStore,
	locks *UserLocks,
	monitor MonitorPublisher,
) *TelemetryService {
	return &TelemetryService{
		sessions:    sessions,
		experiments: experiments,
		events:      events,
		locks:       locks,
		monitor:     monitor,
	}
}

// Append gates the event against the owning session (requireRunning) and
// appends it. On acceptance a compact summary is published for live monitors.
func (s *TelemetryService) Append(ctx context.Context, e *models.Event, secret string) error {
	unlock := s.locks.Lock(e.UserID)
	defer unlock()

	sess, err := s.sessions.Get(ctx, e.ExperimentID, e.UserID)
	if err != nil {
		return err
	}
	exp, err := s.experiments.Get(ctx, e.ExperimentID)
	if err != nil {
		return err
	}
	if IsInvalidParticipant(sess, exp, secret, true) {
		return &InvalidParticipantError{}
	}

	if err := s.events.Append(ctx, e); err != nil {
		return err
	}

	if s.monitor != nil {
		s.monitor.Publish(ctx, models.MonitorMessage{
			ExperimentID: e.ExperimentID,
			UserID:       e.UserID,
			Kind:         string(e.Kind),
			Type:         e.Type,
			Event:        e.Event,
			OccurredAt:   e.OccurredAt.UTC().Format(time.RFC3339),
		})
	}
	return nil
}

// MonitorPublisher fans accepted events out to researcher monitors.
type MonitorPublisher interface {
	Publish(ctx context.Context, msg models.MonitorMessage)
}

// RedisMonitorPublisher publishes summaries on a per-experiment pubsub
// channel consumed by the websocket hub.
type RedisMonitorPublisher struct {
	client *redis.Client
}

func NewRedisMonitorPublisher(client *redis.Client) *RedisMonitorPublisher {
	return &RedisMonitorPublisher{client: client}
}

func MonitorChannel(experimentID int64) string {
	return "monitor:experiment:" + strconv.FormatInt(experimentID, 10)
}

func (p *RedisMonitorPublisher) Publish(ctx context.Context, msg models.MonitorMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := p.client.Publish(ctx, MonitorChannel(msg.ExperimentID), data).Err(); err != nil {
		log.Printf("monitor publish failed: %v", err)
	}
}
