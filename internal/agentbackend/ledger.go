package agentbackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SummonRecord is the last known outcome of summoning an agent into a room.
type SummonRecord struct {
	RoomName  string        `json:"roomName"`
	SessionID string        `json:"sessionId,omitempty"`
	Status    OutcomeStatus `json:"status"`
	Detail    string        `json:"detail,omitempty"`
	At        time.Time     `json:"at"`
}

// Ledger remembers summon outcomes so status polls can report them. Records
// expire; a missing record just means "never summoned or long ago".
type Ledger interface {
	Record(ctx context.Context, rec SummonRecord) error
	Last(ctx context.Context, roomName string) (SummonRecord, bool, error)
	Close() error
}

const defaultLedgerTTL = 6 * time.Hour

// NewLedger uses redis when addr is set, otherwise memory.
func NewLedger(ctx context.Context, addr string, ttl time.Duration) (Ledger, error) {
	addr = strings.TrimPrefix(strings.TrimSpace(addr), "redis://")
	if addr == "" {
		return NewInMemoryLedger(ttl), nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisLedger(client, ttl), nil
}

type InMemoryLedger struct {
	mu      sync.Mutex
	ttl     time.Duration
	records map[string]SummonRecord
	now     func() time.Time
}

func NewInMemoryLedger(ttl time.Duration) *InMemoryLedger {
	if ttl <= 0 {
		ttl = defaultLedgerTTL
	}
	return &InMemoryLedger{
		ttl:     ttl,
		records: make(map[string]SummonRecord),
		now:     time.Now,
	}
}

func (l *InMemoryLedger) Record(_ context.Context, rec SummonRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[rec.RoomName] = rec
	return nil
}

func (l *InMemoryLedger) Last(_ context.Context, roomName string) (SummonRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[roomName]
	if !ok {
		return SummonRecord{}, false, nil
	}
	if l.now().Sub(rec.At) > l.ttl {
		delete(l.records, roomName)
		return SummonRecord{}, false, nil
	}
	return rec, true, nil
}

func (l *InMemoryLedger) Close() error { return nil }

type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = defaultLedgerTTL
	}
	return &RedisLedger{client: client, ttl: ttl}
}

func (l *RedisLedger) key(roomName string) string {
	return fmt.Sprintf("intervue:summon:%s", roomName)
}

func (l *RedisLedger) Record(ctx context.Context, rec SummonRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal summon record: %w", err)
	}
	if err := l.client.Set(ctx, l.key(rec.RoomName), data, l.ttl).Err(); err != nil {
		return fmt.Errorf("record summon: %w", err)
	}
	return nil
}

func (l *RedisLedger) Last(ctx context.Context, roomName string) (SummonRecord, bool, error) {
	data, err := l.client.Get(ctx, l.key(roomName)).Bytes()
	if errors.Is(err, redis.Nil) {
		return SummonRecord{}, false, nil
	}
	if err != nil {
		return SummonRecord{}, false, fmt.Errorf("read summon record: %w", err)
	}
	var rec SummonRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return SummonRecord{}, false, fmt.Errorf("decode summon record: %w", err)
	}
	return rec, true, nil
}

func (l *RedisLedger) Close() error {
	return l.client.Close()
}
