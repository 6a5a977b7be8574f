package agentbackend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ent0n29/intervue/internal/observability"
	"github.com/ent0n29/intervue/internal/policy"
)

type OutcomeStatus string

const (
	OutcomeDispatched  OutcomeStatus = "dispatched"
	OutcomeRejected    OutcomeStatus = "rejected"
	OutcomeUnreachable OutcomeStatus = "unreachable"
	OutcomeSkipped     OutcomeStatus = "skipped"
)

// Outcome is what a best-effort call reports instead of an error.
type Outcome struct {
	Operation string
	Status    OutcomeStatus
	Warning   string
	Latency   time.Duration
}

func (o Outcome) Degraded() bool {
	return o.Status != OutcomeDispatched
}

// AgentStatus is the client-facing word for a summon outcome.
func (o Outcome) AgentStatus() string {
	return agentStatusFor(o.Status)
}

func agentStatusFor(s OutcomeStatus) string {
	switch s {
	case OutcomeDispatched:
		return "connecting"
	case OutcomeSkipped:
		return "not_requested"
	default:
		return "pending"
	}
}

// BestEffortNotifier is the only way the interview flow talks to the agent
// backend. None of its methods return errors.
type BestEffortNotifier struct {
	backend        Backend
	ledger         Ledger
	metrics        *observability.Metrics
	summonTimeout  time.Duration
	detailsTimeout time.Duration
	now            func() time.Time
}

// NewBestEffortNotifier wraps backend. A nil backend means the agent backend is
// disabled and every call is skipped.
func NewBestEffortNotifier(backend Backend, ledger Ledger, metrics *observability.Metrics, summonTimeout, detailsTimeout time.Duration) *BestEffortNotifier {
	if ledger == nil {
		ledger = NewInMemoryLedger(0)
	}
	if summonTimeout <= 0 {
		summonTimeout = 5 * time.Second
	}
	if detailsTimeout <= 0 {
		detailsTimeout = 15 * time.Second
	}
	return &BestEffortNotifier{
		backend:        backend,
		ledger:         ledger,
		metrics:        metrics,
		summonTimeout:  summonTimeout,
		detailsTimeout: detailsTimeout,
		now:            time.Now,
	}
}

func (n *BestEffortNotifier) SummonTimeout() time.Duration { return n.summonTimeout }

// Summon asks the agent backend to join req.RoomName. A dispatched summon
// does not mean the agent is present; presence comes from the room itself.
func (n *BestEffortNotifier) Summon(ctx context.Context, req JoinRequest) Outcome {
	out := n.call(ctx, "join", n.summonTimeout, func(ctx context.Context) error {
		return n.backend.Join(ctx, req)
	})
	rec := SummonRecord{
		RoomName:  req.RoomName,
		SessionID: req.SessionID,
		Status:    out.Status,
		Detail:    out.Warning,
		At:        n.now().UTC(),
	}
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := n.ledger.Record(recordCtx, rec); err != nil {
		log.Printf("summon ledger write failed room=%s: %v", req.RoomName, err)
	}
	return out
}

func (n *BestEffortNotifier) SendCandidateDetails(ctx context.Context, details CandidateDetails) Outcome {
	return n.call(ctx, "candidate_details", n.detailsTimeout, func(ctx context.Context) error {
		return n.backend.SendCandidateDetails(ctx, details)
	})
}

func (n *BestEffortNotifier) CandidateJoined(ctx context.Context, notice CandidateJoinedNotice) Outcome {
	return n.call(ctx, "candidate_joined", n.summonTimeout, func(ctx context.Context) error {
		return n.backend.NotifyCandidateJoined(ctx, notice)
	})
}

func (n *BestEffortNotifier) Ended(ctx context.Context, notice EndNotice) Outcome {
	return n.call(ctx, "end", n.summonTimeout, func(ctx context.Context) error {
		return n.backend.NotifyEnded(ctx, notice)
	})
}

// LastSummon reports the most recent summon outcome for a room.
func (n *BestEffortNotifier) LastSummon(ctx context.Context, roomName string) (SummonRecord, bool) {
	rec, ok, err := n.ledger.Last(ctx, roomName)
	if err != nil {
		log.Printf("summon ledger read failed room=%s: %v", roomName, err)
		return SummonRecord{}, false
	}
	return rec, ok
}

// AgentStatusFor maps a ledger record to the client-facing agent status.
func AgentStatusFor(rec SummonRecord, ok bool) string {
	if !ok {
		return "not_requested"
	}
	return agentStatusFor(rec.Status)
}

func (n *BestEffortNotifier) Close() error {
	return n.ledger.Close()
}

func (n *BestEffortNotifier) call(ctx context.Context, op string, timeout time.Duration, fn func(context.Context) error) Outcome {
	if n.backend == nil {
		return Outcome{Operation: op, Status: OutcomeSkipped, Warning: "agent backend disabled"}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := n.now()
	err := fn(callCtx)
	out := Outcome{Operation: op, Latency: n.now().Sub(start)}
	out.Status, out.Warning = classify(op, err)
	if err != nil {
		log.Printf("agent backend %s degraded: %s", op, policy.ErrForLog(err))
		n.metrics.ObserveDownstreamError("agent_backend", string(out.Status))
	}
	n.metrics.ObserveNotification(op, string(out.Status), out.Latency)
	return out
}

func classify(op string, err error) (OutcomeStatus, string) {
	if err == nil {
		return OutcomeDispatched, ""
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		detail := statusErr.Detail
		if detail == "" {
			detail = "Backend response not ok"
		}
		return OutcomeRejected, fmt.Sprintf("agent backend rejected %s (status %d): %s", op, statusErr.Status, detail)
	}
	if errors.Is(err, ErrRejected) {
		return OutcomeRejected, fmt.Sprintf("agent backend rejected %s", op)
	}
	return OutcomeUnreachable, fmt.Sprintf("agent backend unreachable for %s", op)
}
