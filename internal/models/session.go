package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrStateConflict is returned when a pipeline phase is invoked against a
// session (or step) that is not in the status the phase requires.
var ErrStateConflict = errors.New("state conflict")

// ErrInvalidTransition is returned when a status change would move a
// session or step backwards, or skip a state it is not allowed to skip.
var ErrInvalidTransition = errors.New("invalid status transition")

// SessionStatus is the lifecycle position of an InterviewSession.
type SessionStatus string

const (
	SessionBriefing SessionStatus = "briefing"
	SessionTested   SessionStatus = "tested"
	SessionVerdict  SessionStatus = "verdict"
	SessionDecided  SessionStatus = "decided"
)

var sessionOrder = map[SessionStatus]int{
	SessionBriefing: 0,
	SessionTested:   1,
	SessionVerdict:  2,
	SessionDecided:  3,
}

// Valid reports whether s is one of the known session statuses.
func (s SessionStatus) Valid() bool {
	_, ok := sessionOrder[s]
	return ok
}

// Rank returns the position of s in the forward-only lifecycle, or -1 for
// an unknown status.
func (s SessionStatus) Rank() int {
	if r, ok := sessionOrder[s]; ok {
		return r
	}
	return -1
}

// InterviewSession is the durable record of one candidate evaluation.
type InterviewSession struct {
	ID                 string        `json:"id"`
	Role               string        `json:"role"`
	CandidateModel     string        `json:"candidate_model"`
	Status             SessionStatus `json:"status"`
	BriefingData       BriefingData  `json:"briefing_data"`
	BriefingTokenCount int           `json:"briefing_token_count"`
	TestResults        *TestResults  `json:"test_results,omitempty"`
	Verdict            *Verdict      `json:"verdict,omitempty"`
	FinalDecision      *Decision     `json:"final_decision"`
	DecidedBy          *string       `json:"decided_by"`
	DecidedAt          *time.Time    `json:"decided_at"`
	Config             SessionConfig `json:"config"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// SessionConfig holds append-only per-session records.
type SessionConfig struct {
	DeepAnalysis []DeepAnalysisRun `json:"deep_analysis,omitempty"`
}

// BriefingData is the context bundle assembled before testing. The pipeline
// only reads it.
type BriefingData struct {
	Duties    []string           `json:"duties,omitempty" yaml:"duties,omitempty"`
	Knowledge []KnowledgeSnippet `json:"knowledge,omitempty" yaml:"knowledge,omitempty"`
	Prompts   []ExistingPrompt   `json:"prompts,omitempty" yaml:"prompts,omitempty"`
	Language  string             `json:"language,omitempty" yaml:"language,omitempty"`
	// SystemPrompt is sent as the system text for every test task.
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
}

// KnowledgeSnippet is one piece of role knowledge, usually markdown.
type KnowledgeSnippet struct {
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
}

// ExistingPrompt is a prompt the role already uses in production.
type ExistingPrompt struct {
	Name    string `json:"name" yaml:"name"`
	Content string `json:"content" yaml:"content"`
}

// AdvanceTo moves the session forward to next. Moving backwards, staying in
// place or jumping to an unknown status is rejected.
func (s *InterviewSession) AdvanceTo(next SessionStatus, now time.Time) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}
	if next.Rank() <= s.Status.Rank() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, next)
	}
	s.Status = next
	s.UpdatedAt = now
	return nil
}

// RequireStatus returns ErrStateConflict unless the session is in want.
func (s *InterviewSession) RequireStatus(want SessionStatus) error {
	if s.Status != want {
		return fmt.Errorf("%w: session %s is %s, expected %s", ErrStateConflict, s.ID, s.Status, want)
	}
	return nil
}

// StepAt returns the step with the given index, or nil.
func (s *InterviewSession) StepAt(index int) *Step {
	if s.TestResults == nil {
		return nil
	}
	for i := range s.TestResults.Steps {
		if s.TestResults.Steps[i].StepIndex == index {
			return &s.TestResults.Steps[i]
		}
	}
	return nil
}
