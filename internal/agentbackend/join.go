package agentbackend

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ent0n29/intervue/internal/catalog"
	"github.com/ent0n29/intervue/internal/session"
)

// JoinInput carries whatever is known about an interview when an agent is
// summoned. Any pointer may be nil.
type JoinInput struct {
	RoomName      string
	Session       *session.InterviewSession
	Invitation    *catalog.Invitation
	Job           *catalog.Job
	Template      *catalog.PromptTemplate
	JobID         string
	CandidateName string
	AgentID       string
	AgentPrompt   json.RawMessage
}

// BuildJoinRequest assembles the agent join payload. Explicit input wins over
// the session record, which wins over the invitation, which wins over the job.
func BuildJoinRequest(in JoinInput) JoinRequest {
	var (
		s    session.InterviewSession
		inv  catalog.Invitation
		job  catalog.Job
		tmpl catalog.PromptTemplate
	)
	if in.Session != nil {
		s = *in.Session
	}
	if in.Invitation != nil {
		inv = *in.Invitation
	}
	if in.Job != nil {
		job = *in.Job
	}
	if in.Template != nil {
		tmpl = *in.Template
	}

	candidateName := firstNonEmpty(in.CandidateName, s.CandidateName, inv.CandidateName, "Candidate")
	req := JoinRequest{
		RoomName:  firstNonEmpty(in.RoomName, s.RoomName),
		SessionID: s.ID,

		CandidateID:         firstNonEmpty(s.CandidateID, s.CandidateEmail, inv.CandidateEmail, "candidate"),
		CandidateName:       candidateName,
		CandidateEmail:      firstNonEmpty(s.CandidateEmail, inv.CandidateEmail),
		CandidateSkills:     inv.CandidateSkills,
		CandidateExperience: inv.Experience,
		CandidateProjects:   inv.CandidateProjects,

		JobID:           firstNonEmpty(in.JobID, s.JobID, job.ID, "default-job"),
		JobTitle:        job.Title,
		JobDepartment:   job.Department,
		JobDescription:  job.Description,
		EmploymentType:  job.EmploymentType,
		ExperienceLevel: job.ExperienceLevel,
		Location:        job.Location,
		SalaryMin:       job.SalaryMin,
		SalaryMax:       job.SalaryMax,
		Currency:        firstNonEmpty(job.Currency, "USD"),
		IsRemote:        job.IsRemote,

		InterviewMode:     firstNonEmpty(inv.InterviewMode, job.InterviewMode, "video"),
		InterviewLanguage: firstNonEmpty(inv.InterviewLanguage, job.InterviewLanguage, "en"),
		InterviewDuration: firstPositive(inv.InterviewDuration, job.InterviewDuration, 30),
		QuestionsCount:    firstPositive(inv.QuestionsCount, job.QuestionsCount, 5),
		DifficultyLevel:   firstNonEmpty(inv.DifficultyLevel, job.DifficultyLevel, "medium"),
		InterviewDate:     inv.InterviewDate,
		InterviewTime:     inv.InterviewTime,

		AgentID:                   firstNonEmpty(in.AgentID, s.AgentID, job.TemplateID, tmpl.ID, "default-agent"),
		PromptTemplateName:        tmpl.Name,
		PromptTemplateDescription: tmpl.Description,
		PromptTemplateCategory:    firstNonEmpty(tmpl.Category, "technical"),
		PromptTemplateLevel:       firstNonEmpty(tmpl.Level, "mid"),
		PromptTemplateDuration:    firstPositive(tmpl.DurationMinutes, 45),
	}

	req.PromptText = firstJSON(tmpl.PromptText)
	if req.PromptText == nil {
		req.PromptText = defaultPromptText(candidateName, job.Title)
	}
	req.AgentPrompt = firstJSON(in.AgentPrompt, s.AgentPrompt, tmpl.PromptText)
	if req.AgentPrompt == nil {
		req.AgentPrompt = json.RawMessage(`{}`)
	}
	return req
}

// DetailsInput is what a caller supplies for a candidate-details push.
type DetailsInput struct {
	RoomName         string          `json:"roomName"`
	SessionID        string          `json:"sessionId"`
	CandidateID      string          `json:"candidateId"`
	CandidateName    string          `json:"candidateName"`
	CandidateEmail   string          `json:"candidateEmail"`
	CandidateSkills  string          `json:"candidateSkills"`
	Experience       string          `json:"experience"`
	Projects         string          `json:"projects"`
	ResumeAnalysis   json.RawMessage `json:"resumeAnalysis"`
	CandidateSummary string          `json:"candidateSummary"`
	JobID            string          `json:"jobId"`
	JobTitle         string          `json:"jobTitle"`
	Department       string          `json:"department"`
	InterviewDate    string          `json:"interviewDate"`
	InterviewTime    string          `json:"interviewTime"`
	AgentID          string          `json:"agentId"`
	AgentPrompt      json.RawMessage `json:"agentPrompt"`
}

// Missing lists the required fields that are empty.
func (in DetailsInput) Missing() []string {
	var missing []string
	if strings.TrimSpace(in.RoomName) == "" {
		missing = append(missing, "roomName")
	}
	if strings.TrimSpace(in.CandidateID) == "" {
		missing = append(missing, "candidateId")
	}
	if strings.TrimSpace(in.CandidateEmail) == "" {
		missing = append(missing, "candidateEmail")
	}
	return missing
}

func BuildCandidateDetails(in DetailsInput, now time.Time) CandidateDetails {
	name := in.CandidateName
	if strings.TrimSpace(name) == "" {
		name, _, _ = strings.Cut(in.CandidateEmail, "@")
	}
	jobTitle := firstNonEmpty(in.JobTitle, "Position")

	agentPrompt := firstJSON(in.AgentPrompt)
	if agentPrompt == nil {
		text := fmt.Sprintf("Conduct a professional interview for %s applying for %s.",
			firstNonEmpty(in.CandidateName, "the candidate"), firstNonEmpty(in.JobTitle, "the position"))
		agentPrompt, _ = json.Marshal(text)
	}

	return CandidateDetails{
		RoomName:       in.RoomName,
		SessionID:      firstNonEmpty(in.SessionID, fmt.Sprintf("session_%d", now.UnixMilli())),
		CandidateID:    in.CandidateID,
		CandidateName:  name,
		CandidateEmail: in.CandidateEmail,
		CandidateProfile: CandidateProfile{
			Name:       in.CandidateName,
			Email:      in.CandidateEmail,
			Skills:     in.CandidateSkills,
			Experience: in.Experience,
			Projects:   in.Projects,
			Summary:    in.CandidateSummary,
		},
		ResumeAnalysis: firstJSON(in.ResumeAnalysis),
		JobInfo: JobInfo{
			JobID:         firstNonEmpty(in.JobID, "default-job"),
			JobTitle:      jobTitle,
			Department:    firstNonEmpty(in.Department, "General"),
			InterviewDate: in.InterviewDate,
			InterviewTime: in.InterviewTime,
		},
		AgentConfig: AgentConfig{
			AgentID:     firstNonEmpty(in.AgentID, "default-agent"),
			AgentPrompt: agentPrompt,
		},
		Metadata: DetailsMetadata{
			Timestamp: now.UTC(),
			Source:    "orchestrator",
			Version:   "1.0",
		},
	}
}

func defaultPromptText(candidateName, jobTitle string) json.RawMessage {
	text := map[string]any{
		"duration":                 45,
		"greeting_message":         fmt.Sprintf("Hello %s, welcome to your interview!", candidateName),
		"interviewer_instructions": fmt.Sprintf("Conduct a professional interview for %s.", firstNonEmpty(jobTitle, "the position")),
		"technical_questions":      []string{},
		"default_questions":        []string{},
		"positive_feedback":        []string{},
		"neutral_feedback":         []string{},
		"error_messages":           map[string]string{},
	}
	raw, _ := json.Marshal(text)
	return raw
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstJSON(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		trimmed := strings.TrimSpace(string(v))
		if trimmed != "" && trimmed != "null" {
			return v
		}
	}
	return nil
}
