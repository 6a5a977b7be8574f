package media

import (
	"context"
	"sort"
	"sync"
	"time"
)

// FakeRoomService keeps rooms in process. It backs MEDIA_MODE=mock and tests.
type FakeRoomService struct {
	mu      sync.Mutex
	rooms   map[string]*fakeRoom
	creates int
	failure error
	now     func() time.Time
}

type fakeRoom struct {
	room         Room
	participants map[string]Participant
}

func NewFakeRoomService() *FakeRoomService {
	return &FakeRoomService{
		rooms: make(map[string]*fakeRoom),
		now:   time.Now,
	}
}

// FailWith makes every call return err until cleared with nil.
func (f *FakeRoomService) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failure = err
}

func (f *FakeRoomService) CreateRoom(_ context.Context, req CreateRoomRequest) (Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failure != nil {
		return Room{}, f.failure
	}
	if existing, ok := f.rooms[req.Name]; ok {
		return f.snapshot(existing), nil
	}
	f.creates++
	r := &fakeRoom{
		room: Room{
			Name:            req.Name,
			SID:             "RM_" + req.Name,
			Metadata:        req.Metadata,
			EmptyTimeout:    int(req.EmptyTimeout / time.Second),
			MaxParticipants: req.MaxParticipants,
			CreatedAt:       f.now().UTC(),
		},
		participants: make(map[string]Participant),
	}
	f.rooms[req.Name] = r
	return f.snapshot(r), nil
}

func (f *FakeRoomService) UpdateRoomMetadata(_ context.Context, room, metadata string) (Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failure != nil {
		return Room{}, f.failure
	}
	r, ok := f.rooms[room]
	if !ok {
		return Room{}, &ServiceError{Method: "UpdateRoomMetadata", Status: 404, Code: "not_found", Msg: "room not found"}
	}
	r.room.Metadata = metadata
	return f.snapshot(r), nil
}

func (f *FakeRoomService) ListParticipants(_ context.Context, room string) ([]Participant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failure != nil {
		return nil, f.failure
	}
	r, ok := f.rooms[room]
	if !ok {
		return nil, &ServiceError{Method: "ListParticipants", Status: 404, Code: "not_found", Msg: "requested room does not exist"}
	}
	out := make([]Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].Identity < out[j].Identity
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

// Join puts identity into room, creating the room the way a connecting
// client would.
func (f *FakeRoomService) Join(room, identity, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[room]
	if !ok {
		f.creates++
		r = &fakeRoom{
			room:         Room{Name: room, SID: "RM_" + room, CreatedAt: f.now().UTC()},
			participants: make(map[string]Participant),
		}
		f.rooms[room] = r
	}
	r.participants[identity] = Participant{
		SID:      "PA_" + identity,
		Identity: identity,
		Name:     name,
		JoinedAt: f.now().UTC(),
	}
}

func (f *FakeRoomService) Leave(room, identity string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rooms[room]; ok {
		delete(r.participants, identity)
	}
}

// Room reports the stored room, if any.
func (f *FakeRoomService) Room(name string) (Room, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[name]
	if !ok {
		return Room{}, false
	}
	return f.snapshot(r), true
}

// RoomCount counts rooms ever created.
func (f *FakeRoomService) RoomCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

func (f *FakeRoomService) snapshot(r *fakeRoom) Room {
	out := r.room
	out.NumParticipants = len(r.participants)
	return out
}
