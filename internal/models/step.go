package models

import (
	"fmt"
	"time"
)

// StepStatus is the outcome state of a single test step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// BaselineSource describes where a task's reference value came from.
type BaselineSource string

const (
	BaselineNone         BaselineSource = "none"
	BaselineKnowledge    BaselineSource = "knowledge"
	BaselineCurrentValue BaselineSource = "current_value"
)

// Step is one unit of evaluation work inside TestResults.
type Step struct {
	StepIndex       int            `json:"step_index"`
	TaskType        string         `json:"task_type"`
	Competency      string         `json:"competency"`
	TaskPrompt      string         `json:"task_prompt"`
	BaselineSource  BaselineSource `json:"baseline_source,omitempty"`
	Baseline        string         `json:"baseline,omitempty"`
	CandidateOutput *string        `json:"candidate_output"`
	Status          StepStatus     `json:"status"`
	// OutputStatus is the adaptive engine classification of the output
	// (completed or truncated).
	OutputStatus string  `json:"output_status,omitempty"`
	ElapsedMs    int64   `json:"elapsed_ms"`
	TokenCount   int     `json:"token_count"`
	Attempts     int     `json:"attempts,omitempty"`
	Error        *string `json:"error,omitempty"`
}

// TestResults is written once at the end of a test run.
type TestResults struct {
	Steps          []Step     `json:"steps"`
	TotalSteps     int        `json:"total_steps"`
	CompletedSteps int        `json:"completed_steps"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Start moves a pending step to running.
func (s *Step) Start() error {
	if s.Status != StepPending {
		return fmt.Errorf("%w: step %d %s -> %s", ErrInvalidTransition, s.StepIndex, s.Status, StepRunning)
	}
	s.Status = StepRunning
	return nil
}

// Complete records the candidate output of a running step.
func (s *Step) Complete(output, outputStatus string, elapsed time.Duration, tokens, attempts int) error {
	if s.Status != StepRunning {
		return fmt.Errorf("%w: step %d %s -> %s", ErrInvalidTransition, s.StepIndex, s.Status, StepCompleted)
	}
	if s.CandidateOutput != nil {
		return fmt.Errorf("%w: step %d already has output", ErrInvalidTransition, s.StepIndex)
	}
	s.CandidateOutput = &output
	s.OutputStatus = outputStatus
	s.Status = StepCompleted
	s.ElapsedMs = elapsed.Milliseconds()
	s.TokenCount = tokens
	s.Attempts = attempts
	return nil
}

// Fail marks a running step as failed with the given reason.
func (s *Step) Fail(reason string, elapsed time.Duration, tokens, attempts int) error {
	if s.Status != StepRunning {
		return fmt.Errorf("%w: step %d %s -> %s", ErrInvalidTransition, s.StepIndex, s.Status, StepFailed)
	}
	s.Status = StepFailed
	s.Error = &reason
	s.ElapsedMs = elapsed.Milliseconds()
	s.TokenCount = tokens
	s.Attempts = attempts
	return nil
}

// Skip marks a step that never started.
func (s *Step) Skip() error {
	if s.Status != StepPending {
		return fmt.Errorf("%w: step %d %s -> %s", ErrInvalidTransition, s.StepIndex, s.Status, StepSkipped)
	}
	s.Status = StepSkipped
	return nil
}

// CountCompleted returns the number of completed steps.
func (r *TestResults) CountCompleted() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == StepCompleted {
			n++
		}
	}
	return n
}
