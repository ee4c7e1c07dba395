package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"blocklab-backend/internal/models"
)

const analyticsCacheTTL = 30 * time.Second

// AnalyticsService computes derived counters by scanning the event log. It is
// stateless; results are cached briefly in redis keyed by the log's max event
// id. The aggregate queries are bounded by that same max id, so a cached value
// always describes exactly the prefix its key names.
type AnalyticsService struct {
	events EventStore
	cache  *redis.Client
}

func NewAnalyticsService(events EventStore, cache *redis.Client) *AnalyticsService {
	return &AnalyticsService{events: events, cache: cache}
}

// EventCounts groups the session's log by (kind, type, event).
func (s *AnalyticsService) EventCounts(ctx context.Context, experimentID, userID int64) ([]models.EventCount, error) {
	maxID, err := s.events.MaxID(ctx, experimentID, userID)
	if err != nil {
		return nil, err
	}

	key := s.cacheKey("counts", experimentID, userID, maxID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Result(); err == nil {
			var cached []models.EventCount
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return cached, nil
			}
		}
	}

	counts, err := s.events.CountByKind(ctx, experimentID, userID, maxID)
	if err != nil {
		return nil, err
	}
	s.put(ctx, key, counts)
	return counts, nil
}

// DistinctCodeCount counts unique code markers across the session's BLOCK
// events; repeated markers count once, no BLOCK events yields zero.
func (s *AnalyticsService) DistinctCodeCount(ctx context.Context, experimentID, userID int64) (int, error) {
	maxID, err := s.events.MaxID(ctx, experimentID, userID)
	if err != nil {
		return 0, err
	}

	key := s.cacheKey("codes", experimentID, userID, maxID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Result(); err == nil {
			var cached int
			if json.Unmarshal([]byte(raw), &cached) == nil {
				return cached, nil
			}
		}
	}

	count, err := s.events.DistinctCodeCount(ctx, experimentID, userID, maxID)
	if err != nil {
		return 0, err
	}
	s.put(ctx, key, count)
	return count, nil
}

func (s *AnalyticsService) cacheKey(what string, experimentID, userID, maxID int64) string {
	return fmt.Sprintf("analytics:%s:%d:%d:%d", what, experimentID, userID, maxID)
}

func (s *AnalyticsService) put(ctx context.Context, key string, v interface{}) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, analyticsCacheTTL).Err(); err != nil {
		log.Printf("analytics cache set failed: %v", err)
	}
}
