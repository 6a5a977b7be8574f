package interview

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ent0n29/intervue/internal/session"
)

const (
	agentWaitTimeoutReason = "agent_wait_timeout"
	watchdogBatch          = 100
)

// StartWatchdog cancels sessions that have waited for their agent longer
// than AgentWaitTimeout. It is a no-op when the timeout is disabled and
// returns when ctx is done.
func (c *Controller) StartWatchdog(ctx context.Context, interval time.Duration) {
	if c.opts.AgentWaitTimeout <= 0 {
		return
	}
	if interval <= 0 {
		interval = c.opts.AgentWaitTimeout / 4
	}
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.SweepStale(ctx); n > 0 {
					log.Printf("watchdog cancelled %d sessions waiting for an agent", n)
				}
			}
		}
	}()
}

// SweepStale runs one watchdog pass and returns how many sessions it
// cancelled. A session that became active meanwhile loses the race
// harmlessly.
func (c *Controller) SweepStale(ctx context.Context) int {
	if c.opts.AgentWaitTimeout <= 0 {
		return 0
	}
	cutoff := c.now().UTC().Add(-c.opts.AgentWaitTimeout)
	stale, err := c.sessions.ListByStatus(ctx, session.StatusWaitingForAgent, cutoff, watchdogBatch)
	if err != nil {
		log.Printf("watchdog scan failed: %v", err)
		return 0
	}

	cancelled := 0
	for _, s := range stale {
		res, err := c.transition(ctx, s.ID, func(cur session.InterviewSession, now time.Time) (session.StatusUpdate, bool) {
			if cur.Status != session.StatusWaitingForAgent || cur.UpdatedAt.After(cutoff) {
				return session.StatusUpdate{}, false
			}
			return session.StatusUpdate{
				Expected:  session.StatusWaitingForAgent,
				Next:      session.StatusCancelled,
				EndedAt:   &now,
				EndReason: agentWaitTimeoutReason,
			}, true
		})
		if err != nil && !errors.Is(err, ErrConflict) {
			log.Printf("watchdog cancel failed session=%s: %v", s.ID, err)
			continue
		}
		if res.Applied {
			cancelled++
		}
	}
	return cancelled
}
