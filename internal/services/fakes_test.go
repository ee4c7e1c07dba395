package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"blocklab-backend/internal/models"
)

// memStore is an in-memory implementation of the store interfaces, shared by
// the service tests.
type memStore struct {
	mu          sync.Mutex
	sessions    map[[2]int64]*models.Session // keyed by {experimentID, userID}
	experiments map[int64]*models.Experiment
	active      map[int64]bool
	events      []*models.Event
	nextEventID int64
	nextUserID  int64
	finished    [][2]int64 // notifier calls: {userID, experimentID}
}

func newMemStore() *memStore {
	return &memStore{
		sessions:    make(map[[2]int64]*models.Session),
		experiments: make(map[int64]*models.Experiment),
		active:      make(map[int64]bool),
	}
}

func (m *memStore) addExperiment(e models.Experiment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := e
	m.experiments[e.ID] = &cp
}

func (m *memStore) addSession(s models.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := s
	m.sessions[[2]int64{s.ExperimentID, s.UserID}] = &cp
}

func (m *memStore) session(experimentID, userID int64) *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.sessions[[2]int64{experimentID, userID}]
	return &cp
}

// ─── SessionStore ───

func (m *memStore) Get(ctx context.Context, experimentID, userID int64) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[[2]int64{experimentID, userID}]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) Create(ctx context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[[2]int64{s.ExperimentID, s.UserID}] = &cp
	return nil
}

func (m *memStore) MarkStarted(ctx context.Context, experimentID, userID int64, start time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[[2]int64{experimentID, userID}]
	s.StartedAt = &start
	s.EndedAt = nil
	return nil
}

func (m *memStore) MarkFinished(ctx context.Context, experimentID, userID int64, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[[2]int64{experimentID, userID}]
	s.EndedAt = &end
	return nil
}

func (m *memStore) Reopen(ctx context.Context, experimentID, userID int64, start *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[[2]int64{experimentID, userID}]
	s.EndedAt = nil
	if start != nil {
		s.StartedAt = start
	}
	return nil
}

func (m *memStore) RunningElsewhere(ctx context.Context, userID, experimentID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, s := range m.sessions {
		if s.UserID == userID && key[0] != experimentID && s.State() == models.SessionRunning {
			return true, nil
		}
	}
	return false, nil
}

// ─── ExperimentStore ───

func (m *memStore) GetExperiment(ctx context.Context, id int64) (*models.Experiment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.experiments[id]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

// experimentStore adapts memStore to the ExperimentStore interface (whose Get
// signature collides with SessionStore.Get).
type experimentStore struct{ *memStore }

func (s experimentStore) Get(ctx context.Context, id int64) (*models.Experiment, error) {
	return s.GetExperiment(ctx, id)
}

// ─── ParticipantStore ───

type participantStore struct{ *memStore }

func (s participantStore) Create(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	return s.nextUserID, nil
}

func (s participantStore) SetActive(ctx context.Context, userID int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[userID] = active
	return nil
}

// ─── Notifier ───

func (m *memStore) ParticipantFinished(ctx context.Context, userID, experimentID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, [2]int64{userID, experimentID})
	return nil
}

// ─── EventStore ───

func (m *memStore) Append(ctx context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextEventID++
	e.ID = m.nextEventID
	cp := *e
	m.events = append(m.events, &cp)
	return nil
}

// sessionEvents returns the session's log prefix up to maxID in
// (occurred_at, id) order.
func (m *memStore) sessionEvents(experimentID, userID, maxID int64) []*models.Event {
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

func (m *memStore) MaxID(ctx context.Context, experimentID, userID int64) (int64, error) {
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

func (m *memStore) CountBlocks(ctx context.Context, experimentID, userID, maxID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, e := range m.sessionEvents(experimentID, userID, maxID) {
		if e.Kind == models.EventBlock {
			count++
		}
	}
	return count, nil
}

func (m *memStore) BlockAt(ctx context.Context, experimentID, userID, maxID int64, n int) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := 0
	for _, e := range m.sessionEvents(experimentID, userID, maxID) {
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

func (m *memStore) latestOfKind(experimentID, userID, maxID int64, kind models.EventKind) *models.Event {
	events := m.sessionEvents(experimentID, userID, maxID)
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == kind {
			cp := *events[i]
			return &cp
		}
	}
	return nil
}

func (m *memStore) LatestBlock(ctx context.Context, experimentID, userID, maxID int64) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latestOfKind(experimentID, userID, maxID, models.EventBlock), nil
}

func (m *memStore) LatestZip(ctx context.Context, experimentID, userID, maxID int64) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latestOfKind(experimentID, userID, maxID, models.EventZip), nil
}

func (m *memStore) ResourcesAt(ctx context.Context, experimentID, userID, maxID int64, occurredAt time.Time, id int64) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	resources := make(map[string][]byte)
	for _, e := range m.sessionEvents(experimentID, userID, maxID) {
		if e.Kind != models.EventFile || e.BlobName == "" {
			continue
		}
		if e.OccurredAt.After(occurredAt) {
			continue
		}
		if e.OccurredAt.Equal(occurredAt) && e.ID > id {
			continue
		}
		resources[e.BlobName] = e.Blob
	}
	return resources, nil
}

func (m *memStore) CountByKind(ctx context.Context, experimentID, userID, maxID int64) ([]models.EventCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type key struct {
		kind models.EventKind
		typ  string
		ev   string
	}
	grouped := make(map[key]int64)
	for _, e := range m.sessionEvents(experimentID, userID, maxID) {
		grouped[key{e.Kind, e.Type, e.Event}]++
	}
	var counts []models.EventCount
	for k, n := range grouped {
		counts = append(counts, models.EventCount{Kind: k.kind, Type: k.typ, Event: k.ev, Count: n})
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

func (m *memStore) DistinctCodeCount(ctx context.Context, experimentID, userID, maxID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	for _, e := range m.sessionEvents(experimentID, userID, maxID) {
		if e.Kind == models.EventBlock {
			seen[e.Code] = true
		}
	}
	return len(seen), nil
}
