// Package agentbackend delivers interview context to the independently
// deployed agent backend. Nothing here is allowed to fail an interview: the
// Backend returns errors, and BestEffortNotifier turns them into outcomes.
package agentbackend

import (
	"context"
	"encoding/json"
	"time"
)

// JoinRequest is the payload for POST /agent/join.
type JoinRequest struct {
	RoomName  string `json:"roomName"`
	SessionID string `json:"sessionId,omitempty"`

	CandidateID         string `json:"candidateId"`
	CandidateName       string `json:"candidateName"`
	CandidateEmail      string `json:"candidateEmail"`
	CandidateSkills     string `json:"candidateSkills"`
	CandidateExperience string `json:"candidateExperience"`
	CandidateProjects   string `json:"candidateProjects"`

	JobID           string   `json:"jobId"`
	JobTitle        string   `json:"jobTitle"`
	JobDepartment   string   `json:"jobDepartment"`
	JobDescription  string   `json:"jobDescription"`
	EmploymentType  string   `json:"employmentType"`
	ExperienceLevel string   `json:"experienceLevel"`
	Location        string   `json:"location"`
	SalaryMin       *float64 `json:"salaryMin"`
	SalaryMax       *float64 `json:"salaryMax"`
	Currency        string   `json:"currency"`
	IsRemote        bool     `json:"isRemote"`

	InterviewMode     string `json:"interviewMode"`
	InterviewLanguage string `json:"interviewLanguage"`
	InterviewDuration int    `json:"interviewDuration"`
	QuestionsCount    int    `json:"questionsCount"`
	DifficultyLevel   string `json:"difficultyLevel"`
	InterviewDate     string `json:"interviewDate,omitempty"`
	InterviewTime     string `json:"interviewTime,omitempty"`

	AgentID                   string          `json:"agentId"`
	AgentPrompt               json.RawMessage `json:"agentPrompt"`
	PromptTemplateName        string          `json:"promptTemplateName"`
	PromptTemplateDescription string          `json:"promptTemplateDescription"`
	PromptTemplateCategory    string          `json:"promptTemplateCategory"`
	PromptTemplateLevel       string          `json:"promptTemplateLevel"`
	PromptTemplateDuration    int             `json:"promptTemplateDuration"`
	PromptText                json.RawMessage `json:"promptText"`
}

// CandidateDetails is the payload for POST /agent/candidate-details.
type CandidateDetails struct {
	RoomName         string           `json:"roomName"`
	SessionID        string           `json:"sessionId"`
	CandidateID      string           `json:"candidateId"`
	CandidateName    string           `json:"candidateName"`
	CandidateEmail   string           `json:"candidateEmail"`
	CandidateProfile CandidateProfile `json:"candidateProfile"`
	ResumeAnalysis   json.RawMessage  `json:"resumeAnalysis"`
	JobInfo          JobInfo          `json:"jobInfo"`
	AgentConfig      AgentConfig      `json:"agentConfig"`
	Metadata         DetailsMetadata  `json:"metadata"`
}

type CandidateProfile struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Skills     string `json:"skills"`
	Experience string `json:"experience"`
	Projects   string `json:"projects"`
	Summary    string `json:"summary"`
}

type JobInfo struct {
	JobID         string `json:"jobId"`
	JobTitle      string `json:"jobTitle"`
	Department    string `json:"department"`
	InterviewDate string `json:"interviewDate,omitempty"`
	InterviewTime string `json:"interviewTime,omitempty"`
}

type AgentConfig struct {
	AgentID     string          `json:"agentId"`
	AgentPrompt json.RawMessage `json:"agentPrompt"`
}

type DetailsMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

type CandidateJoinedNotice struct {
	RoomName      string    `json:"roomName"`
	SessionID     string    `json:"sessionId"`
	CandidateID   string    `json:"candidateId,omitempty"`
	CandidateName string    `json:"candidateName,omitempty"`
	JoinedAt      time.Time `json:"joinedAt"`
}

type EndNotice struct {
	RoomName    string    `json:"roomName"`
	SessionID   string    `json:"sessionId"`
	CandidateID string    `json:"candidateId,omitempty"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	EndedAt     time.Time `json:"endedAt"`
}

// Backend is the agent backend's HTTP contract. Implementations report
// failures; callers that must not fail go through BestEffortNotifier.
type Backend interface {
	Join(ctx context.Context, req JoinRequest) error
	SendCandidateDetails(ctx context.Context, details CandidateDetails) error
	NotifyCandidateJoined(ctx context.Context, notice CandidateJoinedNotice) error
	NotifyEnded(ctx context.Context, notice EndNotice) error
}
