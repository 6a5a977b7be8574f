package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCatalog reads the hiring tables maintained by the job-posting and
// invitation services.
type PostgresCatalog struct {
	pool *pgxpool.Pool
}

func NewPostgresCatalog(ctx context.Context, databaseURL string) (*PostgresCatalog, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresCatalog{pool: pool}, nil
}

func (c *PostgresCatalog) GetJob(ctx context.Context, id string) (Job, error) {
	var j Job
	err := c.pool.QueryRow(ctx,
		`SELECT id::text, COALESCE(job_title,''), COALESCE(department,''), COALESCE(job_description,''),
		        COALESCE(employment_type,''), COALESCE(experience_level,''), COALESCE(location,''),
		        salary_min::float8, salary_max::float8, COALESCE(currency,''), COALESCE(is_remote,false),
		        COALESCE(interview_mode,''), COALESCE(interview_language,''), COALESCE(interview_duration,0),
		        COALESCE(questions_count,0), COALESCE(difficulty_level,''), COALESCE(ai_interview_template::text,'')
		   FROM job_postings WHERE id::text=$1`,
		strings.TrimSpace(id),
	).Scan(
		&j.ID,
		&j.Title,
		&j.Department,
		&j.Description,
		&j.EmploymentType,
		&j.ExperienceLevel,
		&j.Location,
		&j.SalaryMin,
		&j.SalaryMax,
		&j.Currency,
		&j.IsRemote,
		&j.InterviewMode,
		&j.InterviewLanguage,
		&j.InterviewDuration,
		&j.QuestionsCount,
		&j.DifficultyLevel,
		&j.TemplateID,
	)
	if err != nil {
		return Job{}, notFoundOr("get job", err)
	}
	return j, nil
}

const invitationColumns = `id::text, COALESCE(job_id::text,''), COALESCE(candidate_name,''), COALESCE(candidate_email,''),
	COALESCE(candidate_skills,''), COALESCE(experience,''), COALESCE(candidate_projects,''),
	COALESCE(interview_mode,''), COALESCE(interview_language,''), COALESCE(interview_duration,0),
	COALESCE(questions_count,0), COALESCE(difficulty_level,''), COALESCE(interview_date::text,''),
	COALESCE(interview_time::text,''), COALESCE(prompt_template_id::text,''), created_at`

func (c *PostgresCatalog) GetInvitation(ctx context.Context, id string) (Invitation, error) {
	inv, err := scanInvitation(c.pool.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM interview_invitations WHERE id::text=$1`,
		strings.TrimSpace(id),
	))
	if err != nil {
		return Invitation{}, notFoundOr("get invitation", err)
	}
	return inv, nil
}

func (c *PostgresCatalog) LatestInvitationForJob(ctx context.Context, jobID string) (Invitation, error) {
	inv, err := scanInvitation(c.pool.QueryRow(ctx,
		`SELECT `+invitationColumns+` FROM interview_invitations
		  WHERE job_id::text=$1 ORDER BY created_at DESC LIMIT 1`,
		strings.TrimSpace(jobID),
	))
	if err != nil {
		return Invitation{}, notFoundOr("get latest invitation", err)
	}
	return inv, nil
}

func (c *PostgresCatalog) GetTemplate(ctx context.Context, id string) (PromptTemplate, error) {
	var (
		t      PromptTemplate
		prompt []byte
	)
	err := c.pool.QueryRow(ctx,
		`SELECT id::text, COALESCE(name,''), COALESCE(description,''), COALESCE(category,''),
		        COALESCE(level,''), COALESCE(duration_minutes,0), prompt_text
		   FROM prompt_templates WHERE id::text=$1`,
		strings.TrimSpace(id),
	).Scan(&t.ID, &t.Name, &t.Description, &t.Category, &t.Level, &t.DurationMinutes, &prompt)
	if err != nil {
		return PromptTemplate{}, notFoundOr("get prompt template", err)
	}
	if len(prompt) > 0 {
		t.PromptText = prompt
	}
	return t, nil
}

func scanInvitation(row pgx.Row) (Invitation, error) {
	var inv Invitation
	err := row.Scan(
		&inv.ID,
		&inv.JobID,
		&inv.CandidateName,
		&inv.CandidateEmail,
		&inv.CandidateSkills,
		&inv.Experience,
		&inv.CandidateProjects,
		&inv.InterviewMode,
		&inv.InterviewLanguage,
		&inv.InterviewDuration,
		&inv.QuestionsCount,
		&inv.DifficultyLevel,
		&inv.InterviewDate,
		&inv.InterviewTime,
		&inv.TemplateID,
		&inv.CreatedAt,
	)
	return inv, err
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *PostgresCatalog) Close() error {
	c.pool.Close()
	return nil
}
