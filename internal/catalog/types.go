// Package catalog reads the job, invitation and prompt-template records that
// interview sessions are created from. The records are owned elsewhere; this
// package never writes them.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("catalog record not found")

type Job struct {
	ID                string   `json:"id"`
	Title             string   `json:"jobTitle"`
	Department        string   `json:"department,omitempty"`
	Description       string   `json:"jobDescription,omitempty"`
	EmploymentType    string   `json:"employmentType,omitempty"`
	ExperienceLevel   string   `json:"experienceLevel,omitempty"`
	Location          string   `json:"location,omitempty"`
	SalaryMin         *float64 `json:"salaryMin,omitempty"`
	SalaryMax         *float64 `json:"salaryMax,omitempty"`
	Currency          string   `json:"currency,omitempty"`
	IsRemote          bool     `json:"isRemote"`
	InterviewMode     string   `json:"interviewMode,omitempty"`
	InterviewLanguage string   `json:"interviewLanguage,omitempty"`
	InterviewDuration int      `json:"interviewDuration,omitempty"`
	QuestionsCount    int      `json:"questionsCount,omitempty"`
	DifficultyLevel   string   `json:"difficultyLevel,omitempty"`
	TemplateID        string   `json:"templateId,omitempty"`
}

type Invitation struct {
	ID                string    `json:"id"`
	JobID             string    `json:"jobId"`
	CandidateName     string    `json:"candidateName"`
	CandidateEmail    string    `json:"candidateEmail"`
	CandidateSkills   string    `json:"candidateSkills,omitempty"`
	Experience        string    `json:"experience,omitempty"`
	CandidateProjects string    `json:"candidateProjects,omitempty"`
	InterviewMode     string    `json:"interviewMode,omitempty"`
	InterviewLanguage string    `json:"interviewLanguage,omitempty"`
	InterviewDuration int       `json:"interviewDuration,omitempty"`
	QuestionsCount    int       `json:"questionsCount,omitempty"`
	DifficultyLevel   string    `json:"difficultyLevel,omitempty"`
	InterviewDate     string    `json:"interviewDate,omitempty"`
	InterviewTime     string    `json:"interviewTime,omitempty"`
	TemplateID        string    `json:"templateId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// PromptTemplate is the interviewer configuration the agent is started with.
// PromptText is an opaque JSON object owned by the agent backend.
type PromptTemplate struct {
	ID              string          `json:"id" yaml:"id"`
	Name            string          `json:"name" yaml:"name"`
	Description     string          `json:"description,omitempty" yaml:"description"`
	Category        string          `json:"category,omitempty" yaml:"category"`
	Level           string          `json:"level,omitempty" yaml:"level"`
	DurationMinutes int             `json:"durationMinutes,omitempty" yaml:"duration_minutes"`
	PromptText      json.RawMessage `json:"promptText,omitempty" yaml:"-"`
}

// Catalog is the read side of the hiring records.
type Catalog interface {
	GetJob(ctx context.Context, id string) (Job, error)
	GetInvitation(ctx context.Context, id string) (Invitation, error)
	LatestInvitationForJob(ctx context.Context, jobID string) (Invitation, error)
	GetTemplate(ctx context.Context, id string) (PromptTemplate, error)
	Close() error
}
