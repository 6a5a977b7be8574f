package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, room_name, candidate_id, candidate_name, candidate_email, job_id, invitation_id,
	agent_id, agent_prompt, status, end_reason, audio_enabled, video_enabled,
	created_at, updated_at, started_at, ended_at`

// PostgresStore persists interview sessions in PostgreSQL. Status changes are
// conditional updates keyed on the current status.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSessionSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSessionSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS interview_sessions (
			id TEXT PRIMARY KEY,
			room_name TEXT NOT NULL DEFAULT '',
			candidate_id TEXT NOT NULL,
			candidate_name TEXT NOT NULL DEFAULT '',
			candidate_email TEXT NOT NULL DEFAULT '',
			job_id TEXT NOT NULL DEFAULT '',
			invitation_id TEXT NOT NULL DEFAULT '',
			agent_id TEXT NOT NULL DEFAULT '',
			agent_prompt JSONB NULL,
			status TEXT NOT NULL,
			end_reason TEXT NOT NULL DEFAULT '',
			audio_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			video_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ NULL,
			ended_at TIMESTAMPTZ NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_interview_sessions_room ON interview_sessions (room_name) WHERE room_name <> '';`,
		`CREATE INDEX IF NOT EXISTS idx_interview_sessions_candidate ON interview_sessions (candidate_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_interview_sessions_status ON interview_sessions (status, updated_at);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init session schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (p *PostgresStore) Create(ctx context.Context, s InterviewSession) (InterviewSession, error) {
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

	row := p.pool.QueryRow(ctx,
		`INSERT INTO interview_sessions (`+sessionColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		 ON CONFLICT (id) DO UPDATE SET id=EXCLUDED.id
		 RETURNING `+sessionColumns,
		s.ID,
		s.RoomName,
		s.CandidateID,
		s.CandidateName,
		s.CandidateEmail,
		s.JobID,
		s.InvitationID,
		s.AgentID,
		nullableJSON(s.AgentPrompt),
		string(s.Status),
		s.EndReason,
		s.AudioEnabled,
		s.VideoEnabled,
		s.CreatedAt,
		s.UpdatedAt,
		s.StartedAt,
		s.EndedAt,
	)
	out, err := scanSession(row)
	if err != nil {
		if isUniqueViolation(err) {
			return InterviewSession{}, ErrRoomAssigned
		}
		return InterviewSession{}, fmt.Errorf("insert session: %w", err)
	}
	return out, nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (InterviewSession, error) {
	return p.queryOne(ctx, "get session", `SELECT `+sessionColumns+` FROM interview_sessions WHERE id=$1`, id)
}

func (p *PostgresStore) GetByRoom(ctx context.Context, roomName string) (InterviewSession, error) {
	return p.queryOne(ctx, "get session by room", `SELECT `+sessionColumns+` FROM interview_sessions WHERE room_name=$1`, roomName)
}

func (p *PostgresStore) LatestByCandidate(ctx context.Context, candidateID string) (InterviewSession, error) {
	return p.queryOne(ctx, "get session by candidate",
		`SELECT `+sessionColumns+` FROM interview_sessions
		  WHERE candidate_id=$1 ORDER BY created_at DESC LIMIT 1`,
		strings.TrimSpace(candidateID),
	)
}

func (p *PostgresStore) ListByStatus(ctx context.Context, status Status, updatedBefore time.Time, limit int) ([]InterviewSession, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM interview_sessions
		  WHERE status=$1 AND updated_at < $2 ORDER BY updated_at ASC LIMIT $3`,
		string(status), updatedBefore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]InterviewSession, 0, 8)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return out, nil
}

func (p *PostgresStore) AssignRoom(ctx context.Context, id, roomName string) (InterviewSession, error) {
	_, err := p.pool.Exec(ctx,
		`UPDATE interview_sessions SET room_name=$2, updated_at=$3 WHERE id=$1 AND room_name=''`,
		id, roomName, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return InterviewSession{}, ErrRoomAssigned
		}
		return InterviewSession{}, fmt.Errorf("assign room: %w", err)
	}
	return p.Get(ctx, id)
}

func (p *PostgresStore) MarkStarted(ctx context.Context, id string, at time.Time) (InterviewSession, error) {
	_, err := p.pool.Exec(ctx,
		`UPDATE interview_sessions SET started_at=$2, updated_at=$3 WHERE id=$1 AND started_at IS NULL`,
		id, at.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return InterviewSession{}, fmt.Errorf("mark started: %w", err)
	}
	return p.Get(ctx, id)
}

func (p *PostgresStore) CompareAndSwapStatus(ctx context.Context, id string, u StatusUpdate) (InterviewSession, error) {
	row := p.pool.QueryRow(ctx,
		`UPDATE interview_sessions SET
			status=$3,
			updated_at=$4,
			started_at=COALESCE(started_at, $5),
			ended_at=COALESCE(ended_at, $6),
			end_reason=CASE WHEN $7::text = '' THEN end_reason ELSE $7::text END
		  WHERE id=$1 AND status=$2
		  RETURNING `+sessionColumns,
		id,
		string(u.Expected),
		string(u.Next),
		time.Now().UTC(),
		u.StartedAt,
		u.EndedAt,
		u.EndReason,
	)
	out, err := scanSession(row)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return InterviewSession{}, fmt.Errorf("update session status: %w", err)
	}
	if _, getErr := p.Get(ctx, id); getErr != nil {
		return InterviewSession{}, getErr
	}
	return InterviewSession{}, ErrStatusConflict
}

func (p *PostgresStore) queryOne(ctx context.Context, op, query string, args ...any) (InterviewSession, error) {
	s, err := scanSession(p.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InterviewSession{}, ErrNotFound
		}
		return InterviewSession{}, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func scanSession(row pgx.Row) (InterviewSession, error) {
	var (
		s       InterviewSession
		status  string
		prompt  []byte
		started *time.Time
		ended   *time.Time
	)
	if err := row.Scan(
		&s.ID,
		&s.RoomName,
		&s.CandidateID,
		&s.CandidateName,
		&s.CandidateEmail,
		&s.JobID,
		&s.InvitationID,
		&s.AgentID,
		&prompt,
		&status,
		&s.EndReason,
		&s.AudioEnabled,
		&s.VideoEnabled,
		&s.CreatedAt,
		&s.UpdatedAt,
		&started,
		&ended,
	); err != nil {
		return InterviewSession{}, err
	}
	s.Status = Status(status)
	if len(prompt) > 0 {
		s.AgentPrompt = prompt
	}
	s.StartedAt = started
	s.EndedAt = ended
	return s, nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}
