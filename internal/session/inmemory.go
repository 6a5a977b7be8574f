package session

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps sessions in process memory for local/dev use and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*InterviewSession
	byRoom   map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*InterviewSession),
		byRoom:   make(map[string]string),
	}
}

func (m *InMemoryStore) Create(_ context.Context, s InterviewSession) (InterviewSession, error) {
	now := time.Now().UTC()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = StatusPending
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[s.ID]; ok {
		return existing.Clone(), nil
	}
	if s.RoomName != "" {
		if _, taken := m.byRoom[s.RoomName]; taken {
			return InterviewSession{}, ErrRoomAssigned
		}
		m.byRoom[s.RoomName] = s.ID
	}
	c := s.Clone()
	m.sessions[s.ID] = &c
	return s.Clone(), nil
}

func (m *InMemoryStore) Get(_ context.Context, id string) (InterviewSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return InterviewSession{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *InMemoryStore) GetByRoom(_ context.Context, roomName string) (InterviewSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byRoom[roomName]
	if !ok {
		return InterviewSession{}, ErrNotFound
	}
	return m.sessions[id].Clone(), nil
}

func (m *InMemoryStore) LatestByCandidate(_ context.Context, candidateID string) (InterviewSession, error) {
	candidateID = strings.TrimSpace(candidateID)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *InterviewSession
	for _, s := range m.sessions {
		if s.CandidateID != candidateID {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	if latest == nil {
		return InterviewSession{}, ErrNotFound
	}
	return latest.Clone(), nil
}

func (m *InMemoryStore) ListByStatus(_ context.Context, status Status, updatedBefore time.Time, limit int) ([]InterviewSession, error) {
	if limit <= 0 {
		limit = 100
	}
	m.mu.RLock()
	out := make([]InterviewSession, 0, 8)
	for _, s := range m.sessions {
		if s.Status != status || !s.UpdatedAt.Before(updatedBefore) {
			continue
		}
		out = append(out, s.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *InMemoryStore) AssignRoom(_ context.Context, id, roomName string) (InterviewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return InterviewSession{}, ErrNotFound
	}
	if s.RoomName != "" {
		return s.Clone(), nil
	}
	if owner, taken := m.byRoom[roomName]; taken && owner != id {
		return InterviewSession{}, ErrRoomAssigned
	}
	s.RoomName = roomName
	s.UpdatedAt = time.Now().UTC()
	m.byRoom[roomName] = id
	return s.Clone(), nil
}

func (m *InMemoryStore) MarkStarted(_ context.Context, id string, at time.Time) (InterviewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return InterviewSession{}, ErrNotFound
	}
	if s.StartedAt == nil {
		t := at.UTC()
		s.StartedAt = &t
		s.UpdatedAt = time.Now().UTC()
	}
	return s.Clone(), nil
}

func (m *InMemoryStore) CompareAndSwapStatus(_ context.Context, id string, u StatusUpdate) (InterviewSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return InterviewSession{}, ErrNotFound
	}
	if s.Status != u.Expected {
		return InterviewSession{}, ErrStatusConflict
	}
	u.stamp(s, time.Now().UTC())
	return s.Clone(), nil
}

func (m *InMemoryStore) Close() error { return nil }
