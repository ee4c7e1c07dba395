package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"blocklab-backend/internal/models"
)

// testStore is a minimal in-memory backend for wiring real services under the
// handlers in tests.
type testStore struct {
	mu          sync.Mutex
	sessions    map[[2]int64]*models.Session
	experiments map[int64]*models.Experiment
	active      map[int64]bool
	events      []*models.Event
	nextEventID int64
}

func newTestStore() *testStore {
	return &testStore{
		sessions:    make(map[[2]int64]*models.Session),
		experiments: make(map[int64]*models.Experiment),
		active:      make(map[int64]bool),
	}
}

func (m *testStore) Get(ctx context.Context, experimentID, userID int64) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[[2]int64{experimentID, userID}]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *testStore) Create(ctx context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[[2]int64{s.ExperimentID, s.UserID}] = &cp
	return nil
}

func (m *testStore) MarkStarted(ctx context.Context, experimentID, userID int64, start time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[[2]int64{experimentID, userID}]
	s.StartedAt = &start
	s.EndedAt = nil
	return nil
}

func (m *testStore) MarkFinished(ctx context.Context, experimentID, userID int64, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[[2]int64{experimentID, userID}]
	s.EndedAt = &end
	return nil
}

func (m *testStore) Reopen(ctx context.Context, experimentID, userID int64, start *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[[2]int64{experimentID, userID}]
	s.EndedAt = nil
	if start != nil {
		s.StartedAt = start
	}
	return nil
}

func (m *testStore) RunningElsewhere(ctx context.Context, userID, experimentID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, s := range m.sessions {
		if s.UserID == userID && key[0] != experimentID && s.State() == models.SessionRunning {
			return true, nil
		}
	}
	return false, nil
}

func (m *testStore) SetActive(ctx context.Context, userID int64, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[userID] = active
	return nil
}

func (m *testStore) CreateParticipant(ctx context.Context) (int64, error) {
	return 0, nil
}

type experimentsOf struct{ *testStore }

func (s experimentsOf) Get(ctx context.Context, id int64) (*models.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.experiments[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

type participantsOf struct{ *testStore }

func (s participantsOf) Create(ctx context.Context) (int64, error) {
	return s.CreateParticipant(ctx)
}

func (m *testStore) Append(ctx context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEventID++
	e.ID = m.nextEventID
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

func (m *testStore) ordered(experimentID, userID, maxID int64) []*models.Event {
	var out []*models.Event
	for _, e := range m.events {
		if e.ExperimentID == experimentID && e.UserID == userID && e.ID <= maxID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *testStore) MaxID(ctx context.Context, experimentID, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var maxID int64
	for _, e := range m.events {
		if e.ExperimentID == experimentID && e.UserID == userID && e.ID > maxID {
			maxID = e.ID
		}
	}
	return maxID, nil
}

func (m *testStore) CountBlocks(ctx context.Context, experimentID, userID, maxID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, e := range m.ordered(experimentID, userID, maxID) {
		if e.Kind == models.EventBlock {
			count++
		}
	}
	return count, nil
}

func (m *testStore) BlockAt(ctx context.Context, experimentID, userID, maxID int64, n int) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := 0
	for _, e := range m.ordered(experimentID, userID, maxID) {
		if e.Kind != models.EventBlock {
			continue
		}
		if i == n {
			cp := *e
			return &cp, nil
		}
		i++
	}
	return nil, nil
}

func (m *testStore) latestOfKind(experimentID, userID, maxID int64, kind models.EventKind) *models.Event {
	events := m.ordered(experimentID, userID, maxID)
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == kind {
			cp := *events[i]
			return &cp
		}
	}
	return nil
}

func (m *testStore) LatestBlock(ctx context.Context, experimentID, userID, maxID int64) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latestOfKind(experimentID, userID, maxID, models.EventBlock), nil
}

func (m *testStore) LatestZip(ctx context.Context, experimentID, userID, maxID int64) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latestOfKind(experimentID, userID, maxID, models.EventZip), nil
}

func (m *testStore) ResourcesAt(ctx context.Context, experimentID, userID, maxID int64, occurredAt time.Time, id int64) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resources := make(map[string][]byte)
	for _, e := range m.ordered(experimentID, userID, maxID) {
		if e.Kind != models.EventFile || e.BlobName == "" {
			continue
		}
		if e.OccurredAt.After(occurredAt) || (e.OccurredAt.Equal(occurredAt) && e.ID > id) {
			continue
		}
		resources[e.BlobName] = e.Blob
	}
	return resources, nil
}

func (m *testStore) CountByKind(ctx context.Context, experimentID, userID, maxID int64) ([]models.EventCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	grouped := make(map[models.EventCount]int64)
	for _, e := range m.ordered(experimentID, userID, maxID) {
		grouped[models.EventCount{Kind: e.Kind, Type: e.Type, Event: e.Event}]++
	}
	var counts []models.EventCount
	for k, n := range grouped {
		k.Count = n
		counts = append(counts, k)
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Kind != counts[j].Kind {
			return counts[i].Kind < counts[j].Kind
		}
		if counts[i].Type != counts[j].Type {
			return counts[i].Type < counts[j].Type
		}
		return counts[i].Event < counts[j].Event
	})
	return counts, nil
}

func (m *testStore) DistinctCodeCount(ctx context.Context, experimentID, userID, maxID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	for _, e := range m.ordered(experimentID, userID, maxID) {
		if e.Kind == models.EventBlock {
			seen[e.Code] = true
		}
	}
	return len(seen), nil
}
