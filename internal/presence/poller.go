package presence

import (
	"context"
	"log"
	"time"

	"github.com/ent0n29/intervue/internal/reliability"
)

type StopReason string

const (
	StopAgentPresent StopReason = "agent_present"
	StopTerminal     StopReason = "terminal"
	StopCancelled    StopReason = "cancelled"
)

// PollHooks connect a poller to the session it watches. Terminal and
// OnSnapshot may be nil. OnAgentPresent returns false when the agent could
// not be confirmed yet; the poller then keeps going.
type PollHooks struct {
	Room           func(ctx context.Context) (string, error)
	Terminal       func(ctx context.Context) bool
	OnSnapshot     func(ctx context.Context, snap Snapshot)
	OnAgentPresent func(ctx context.Context, snap Snapshot) bool
}

// Poller is owned by one client connection and ends with it.
type Poller struct {
	reconciler *Reconciler
	interval   time.Duration
	hooks      PollHooks
}

func NewPoller(reconciler *Reconciler, interval time.Duration, hooks PollHooks) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Poller{reconciler: reconciler, interval: interval, hooks: hooks}
}

// Run polls until an agent is present, the session is terminal or ctx ends.
func (p *Poller) Run(ctx context.Context) StopReason {
	failures := 0
	for {
		if ctx.Err() != nil {
			return StopCancelled
		}
		if p.hooks.Terminal != nil && p.hooks.Terminal(ctx) {
			return StopTerminal
		}

		wait := p.interval
		snap, err := p.poll(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return StopCancelled
			}
			failures++
			wait = reliability.ExponentialBackoff(failures, p.interval, 4*p.interval)
			log.Printf("presence poll failed attempt=%d: %v", failures, err)
		case snap.AgentPresent:
			failures = 0
			if p.hooks.OnAgentPresent == nil || p.hooks.OnAgentPresent(ctx, snap) {
				return StopAgentPresent
			}
		default:
			failures = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return StopCancelled
		case <-timer.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context) (Snapshot, error) {
	room, err := p.hooks.Room(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := p.reconciler.Reconcile(ctx, room)
	if err != nil {
		return Snapshot{}, err
	}
	if p.hooks.OnSnapshot != nil {
		p.hooks.OnSnapshot(ctx, snap)
	}
	return snap, nil
}
