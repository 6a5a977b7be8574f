package session

import (
	"context"
	"sync"
	"time"
)

type Operation string

const (
	OpCreate            Operation = "create"
	OpGet               Operation = "get"
	OpGetByRoom         Operation = "get_by_room"
	OpLatestByCandidate Operation = "latest_by_candidate"
	OpAssignRoom        Operation = "assign_room"
	OpMarkStarted       Operation = "mark_started"
	OpCompareAndSwap    Operation = "compare_and_swap"
)

// FaultyStore wraps a Store and fails the operations it is told to, the way
// an unreachable database would. Operations not marked pass through.
type FaultyStore struct {
	Store

	mu    sync.Mutex
	fails map[Operation]error
}

func NewFaultyStore(inner Store) *FaultyStore {
	return &FaultyStore{Store: inner, fails: make(map[Operation]error)}
}

// FailOn makes op return err until Heal is called. A nil err clears op.
func (f *FaultyStore) FailOn(op Operation, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fails, op)
		return
	}
	f.fails[op] = err
}

func (f *FaultyStore) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails = make(map[Operation]error)
}

func (f *FaultyStore) fault(op Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fails[op]
}

func (f *FaultyStore) Create(ctx context.Context, s InterviewSession) (InterviewSession, error) {
	if err := f.fault(OpCreate); err != nil {
		return InterviewSession{}, err
	}
	return f.Store.Create(ctx, s)
}

func (f *FaultyStore) Get(ctx context.Context, id string) (InterviewSession, error) {
	if err := f.fault(OpGet); err != nil {
		return InterviewSession{}, err
	}
	return f.Store.Get(ctx, id)
}

func (f *FaultyStore) GetByRoom(ctx context.Context, roomName string) (InterviewSession, error) {
	if err := f.fault(OpGetByRoom); err != nil {
		return InterviewSession{}, err
	}
	return f.Store.GetByRoom(ctx, roomName)
}

func (f *FaultyStore) LatestByCandidate(ctx context.Context, candidateID string) (InterviewSession, error) {
	if err := f.fault(OpLatestByCandidate); err != nil {
		return InterviewSession{}, err
	}
	return f.Store.LatestByCandidate(ctx, candidateID)
}

func (f *FaultyStore) AssignRoom(ctx context.Context, id, roomName string) (InterviewSession, error) {
	if err := f.fault(OpAssignRoom); err != nil {
		return InterviewSession{}, err
	}
	return f.Store.AssignRoom(ctx, id, roomName)
}

func (f *FaultyStore) MarkStarted(ctx context.Context, id string, at time.Time) (InterviewSession, error) {
	if err := f.fault(OpMarkStarted); err != nil {
		return InterviewSession{}, err
	}
	return f.Store.MarkStarted(ctx, id, at)
}

func (f *FaultyStore) CompareAndSwapStatus(ctx context.Context, id string, u StatusUpdate) (InterviewSession, error) {
	if err := f.fault(OpCompareAndSwap); err != nil {
		return InterviewSession{}, err
	}
	return f.Store.CompareAndSwapStatus(ctx, id, u)
}
