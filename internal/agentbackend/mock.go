package agentbackend

import (
	"context"
	"sync"
)

type MockMode int

const (
	MockAccept MockMode = iota
	MockReject
	MockHang
)

// MockBackend records what it is sent. In MockHang mode every call blocks
// until the caller's context ends, which is how an unreachable backend looks
// from here.
type MockBackend struct {
	mu      sync.Mutex
	mode    MockMode
	onJoin  func(JoinRequest)
	joins   []JoinRequest
	details []CandidateDetails
	joined  []CandidateJoinedNotice
	ended   []EndNotice
}

func NewMockBackend(mode MockMode) *MockBackend {
	return &MockBackend{mode: mode}
}

func (m *MockBackend) SetMode(mode MockMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = mode
}

// OnJoin runs fn for every accepted join, e.g. to put a fake agent in a room.
func (m *MockBackend) OnJoin(fn func(JoinRequest)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onJoin = fn
}

func (m *MockBackend) Join(ctx context.Context, req JoinRequest) error {
	if err := m.respond(ctx, "/agent/join"); err != nil {
		return err
	}
	m.mu.Lock()
	m.joins = append(m.joins, req)
	hook := m.onJoin
	m.mu.Unlock()
	if hook != nil {
		hook(req)
	}
	return nil
}

func (m *MockBackend) SendCandidateDetails(ctx context.Context, details CandidateDetails) error {
	if err := m.respond(ctx, "/agent/candidate-details"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.details = append(m.details, details)
	return nil
}

func (m *MockBackend) NotifyCandidateJoined(ctx context.Context, notice CandidateJoinedNotice) error {
	if err := m.respond(ctx, "/agent/candidate-joined"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joined = append(m.joined, notice)
	return nil
}

func (m *MockBackend) NotifyEnded(ctx context.Context, notice EndNotice) error {
	if err := m.respond(ctx, "/end-interview"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended = append(m.ended, notice)
	return nil
}

func (m *MockBackend) Joins() []JoinRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]JoinRequest(nil), m.joins...)
}

func (m *MockBackend) Details() []CandidateDetails {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CandidateDetails(nil), m.details...)
}

func (m *MockBackend) CandidateJoins() []CandidateJoinedNotice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CandidateJoinedNotice(nil), m.joined...)
}

func (m *MockBackend) Ends() []EndNotice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]EndNotice(nil), m.ended...)
}

func (m *MockBackend) respond(ctx context.Context, route string) error {
	m.mu.Lock()
	mode := m.mode
	m.mu.Unlock()

	switch mode {
	case MockReject:
		return &StatusError{Route: route, Status: 404, Detail: "Not Found"}
	case MockHang:
		<-ctx.Done()
		return ErrUnreachable
	}
	select {
	case <-ctx.Done():
		return ErrUnreachable
	default:
		return nil
	}
}
