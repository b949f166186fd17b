package webapi

import (
	"time"

	"github.com/spboyer/staffeval/internal/models"
)

// SessionSummary is the API response for a single session in the list.
type SessionSummary struct {
	ID             string               `json:"id"`
	Role           string               `json:"role"`
	CandidateModel string               `json:"candidate_model"`
	Status         models.SessionStatus `json:"status"`
	CompletedSteps int                  `json:"completed_steps"`
	TotalSteps     int                  `json:"total_steps"`
	AutoDecision   models.Decision      `json:"auto_decision,omitempty"`
	FinalDecision  *models.Decision     `json:"final_decision,omitempty"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

func summarize(s *models.InterviewSession) SessionSummary {
	out := SessionSummary{
		ID:             s.ID,
		Role:           s.Role,
		CandidateModel: s.CandidateModel,
		Status:         s.Status,
		FinalDecision:  s.FinalDecision,
		UpdatedAt:      s.UpdatedAt,
	}
	if s.TestResults != nil {
		out.CompletedSteps = s.TestResults.CompletedSteps
		out.TotalSteps = s.TestResults.TotalSteps
	}
	if s.Verdict != nil {
		out.AutoDecision = s.Verdict.AutoDecision
	}
	return out
}

// CancelResponse reports whether a cancel token was raised.
type CancelResponse struct {
	SessionID string `json:"session_id"`
	Cancelled bool   `json:"cancelled"`
}

// RolesResponse lists roles with a dedicated task generator.
type RolesResponse struct {
	Roles []string `json:"roles"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
