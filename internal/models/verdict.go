package models

import (
	"fmt"
	"time"
)

// Decision is a hire/reject/retest outcome.
type Decision string

const (
	DecisionHire   Decision = "hire"
	DecisionReject Decision = "reject"
	DecisionRetest Decision = "retest"
)

// ParseDecision validates s as a Decision.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(s); d {
	case DecisionHire, DecisionReject, DecisionRetest:
		return d, nil
	default:
		return "", fmt.Errorf("%q is not a valid decision (hire, reject, retest)", s)
	}
}

// ArbiterResult is the structured scoring produced in the arbiter phase.
type ArbiterResult struct {
	Model              string             `json:"model" mapstructure:"-"`
	Scores             map[string]float64 `json:"scores" mapstructure:"scores"`
	RedFlags           []string           `json:"red_flags" mapstructure:"red_flags"`
	Recommendation     Decision           `json:"recommendation" mapstructure:"recommendation"`
	Confidence         float64            `json:"confidence" mapstructure:"confidence"`
	Comment            string             `json:"comment" mapstructure:"comment"`
	RetestCompetencies []string           `json:"retest_competencies" mapstructure:"retest_competencies"`
	// Synthetic is set when every evaluator failed and the neutral result was
	// fabricated.
	Synthetic bool `json:"synthetic,omitempty" mapstructure:"-"`
}

// HolderSnapshot freezes the current role holder at verdict time.
type HolderSnapshot struct {
	ModelID string  `json:"model_id"`
	Score   float64 `json:"score"`
}

// Thresholds is the audit snapshot of everything the decision ladder
// compared against. It is never recomputed after the verdict is written.
type Thresholds struct {
	CurrentHolder  *HolderSnapshot `json:"current_holder,omitempty"`
	PreviousAvg    *float64        `json:"previous_avg,omitempty"`
	CandidateScore float64         `json:"candidate_score"`
	IsSameModel    bool            `json:"is_same_model"`
	IsColdStart    bool            `json:"is_cold_start"`
}

// Verdict is the write-once result of the verdict engine.
type Verdict struct {
	Arbiter          ArbiterResult `json:"arbiter"`
	ModeratorSummary string        `json:"moderator_summary"`
	AutoDecision     Decision      `json:"auto_decision"`
	DecisionReason   string        `json:"decision_reason"`
	// OverrideNote records a confident arbiter recommendation that disagreed
	// with the computed decision. It is informational only.
	OverrideNote string     `json:"override_note,omitempty"`
	Thresholds   Thresholds `json:"thresholds"`
	CreatedAt    time.Time  `json:"created_at"`
}

// AssignmentRecord is one entry of a role's assignment history.
type AssignmentRecord struct {
	Role              string     `json:"role"`
	ModelID           string     `json:"model_id"`
	AssignedAt        time.Time  `json:"assigned_at"`
	RemovedAt         *time.Time `json:"removed_at,omitempty"`
	InterviewAvgScore float64    `json:"interview_avg_score"`
}
