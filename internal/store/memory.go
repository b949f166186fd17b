package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spboyer/staffeval/internal/models"
)

// MemoryStore keeps everything in process. Records are stored as JSON so
// callers never share memory with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string][]byte
	assignments []models.AssignmentRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string][]byte{}}
}

// Create implements SessionStore
func (m *MemoryStore) Create(ctx context.Context, s *models.InterviewSession) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("%w: %s", ErrSessionExists, s.ID)
	}
	m.sessions[s.ID] = b
	return nil
}

// Get implements SessionStore
func (m *MemoryStore) Get(ctx context.Context, id string) (*models.InterviewSession, error) {
	m.mu.RLock()
	b, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return decodeSession(b)
}

// Save implements SessionStore
func (m *MemoryStore) Save(ctx context.Context, s *models.InterviewSession) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.sessions[s.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, s.ID)
	}
	stored, err := decodeSession(prev)
	if err != nil {
		return err
	}
	if err := checkForward(stored.Status, s.Status, s.ID); err != nil {
		return err
	}
	m.sessions[s.ID] = b
	return nil
}

// List implements SessionStore
func (m *MemoryStore) List(ctx context.Context) ([]*models.InterviewSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.InterviewSession, 0, len(m.sessions))
	for _, b := range m.sessions {
		s, err := decodeSession(b)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// RecentAssignments implements HistoryStore
func (m *MemoryStore) RecentAssignments(ctx context.Context, role string, limit int) ([]models.AssignmentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.AssignmentRecord
	for _, rec := range m.assignments {
		if rec.Role == role {
			out = append(out, copyRecord(rec))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AssignedAt.After(out[j].AssignedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Record implements HistoryStore
func (m *MemoryStore) Record(ctx context.Context, rec models.AssignmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments = append(m.assignments, copyRecord(rec))
	return nil
}

// CloseCurrent implements HistoryStore
func (m *MemoryStore) CloseCurrent(ctx context.Context, role string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.assignments {
		if m.assignments[i].Role == role && m.assignments[i].RemovedAt == nil {
			t := at
			m.assignments[i].RemovedAt = &t
		}
	}
	return nil
}

// Close implements Store
func (m *MemoryStore) Close() error { return nil }

func decodeSession(b []byte) (*models.InterviewSession, error) {
	var s models.InterviewSession
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &s, nil
}

func copyRecord(rec models.AssignmentRecord) models.AssignmentRecord {
	if rec.RemovedAt != nil {
		t := *rec.RemovedAt
		rec.RemovedAt = &t
	}
	return rec
}
