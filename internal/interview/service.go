// Package interview wires the evaluation phases behind one service used by
// the HTTP API and the CLI.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spboyer/staffeval/internal/adaptive"
	"github.com/spboyer/staffeval/internal/audit"
	"github.com/spboyer/staffeval/internal/events"
	"github.com/spboyer/staffeval/internal/execution"
	"github.com/spboyer/staffeval/internal/memory"
	"github.com/spboyer/staffeval/internal/models"
	"github.com/spboyer/staffeval/internal/orchestration"
	"github.com/spboyer/staffeval/internal/store"
	"github.com/spboyer/staffeval/internal/synthesis"
	"github.com/spboyer/staffeval/internal/taskgen"
	"github.com/spboyer/staffeval/internal/verdict"
)

// Config holds everything New needs. Zero values select defaults.
type Config struct {
	Store    store.Store
	Client   execution.StreamClient
	Registry *taskgen.Registry

	Generation models.GenerationConfig
	RetryDelay time.Duration

	ArbiterModels  []string
	ModeratorModel string

	Memory   memory.Writer
	Archiver audit.Archiver

	// EventLogDir receives one NDJSON event log per session when set.
	EventLogDir string

	Now   func() time.Time
	NewID func() string
}

// Service runs every phase of an interview.
type Service struct {
	store     store.Store
	registry  *taskgen.Registry
	runner    *orchestration.TestRunner
	synthesis *synthesis.Engine
	verdict   *verdict.Engine
	logDir    string
	now       func() time.Time
	newID     func() string
}

// New wires a Service.
func New(cfg Config) *Service {
	if cfg.Registry == nil {
		cfg.Registry = taskgen.DefaultRegistry()
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation = orchestration.DefaultGeneration
	}
	if cfg.Memory == nil {
		cfg.Memory = memory.Nop{}
	}
	if cfg.Archiver == nil {
		cfg.Archiver = audit.Nop{}
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	var engineOpts []adaptive.Option
	if cfg.RetryDelay > 0 {
		engineOpts = append(engineOpts, adaptive.WithRetryDelay(cfg.RetryDelay))
	}
	engine := adaptive.New(cfg.Client, engineOpts...)

	moderator := cfg.ModeratorModel
	if moderator == "" && len(cfg.ArbiterModels) > 0 {
		moderator = cfg.ArbiterModels[0]
	}

	return &Service{
		store:    cfg.Store,
		registry: cfg.Registry,
		runner: orchestration.NewTestRunner(cfg.Store, engine,
			orchestration.WithRegistry(cfg.Registry),
			orchestration.WithGenerationConfig(cfg.Generation),
			orchestration.WithClock(cfg.Now),
		),
		synthesis: synthesis.New(cfg.Store, engine,
			synthesis.WithVariantBase(cfg.Generation),
			synthesis.WithClock(cfg.Now),
			synthesis.WithIDs(cfg.NewID),
		),
		verdict: verdict.New(cfg.Store, cfg.Store,
			verdict.NewArbiter(engine, cfg.ArbiterModels),
			verdict.NewModerator(engine, moderator),
			verdict.WithRegistry(cfg.Registry),
			verdict.WithMemory(cfg.Memory),
			verdict.WithArchiver(cfg.Archiver),
			verdict.WithClock(cfg.Now),
		),
		logDir: cfg.EventLogDir,
		now:    cfg.Now,
		newID:  cfg.NewID,
	}
}

// CreateRequest is the input of CreateSession.
type CreateRequest struct {
	ID                 string              `json:"id,omitempty"`
	Role               string              `json:"role"`
	CandidateModel     string              `json:"candidate_model"`
	BriefingData       models.BriefingData `json:"briefing_data"`
	BriefingTokenCount int                 `json:"briefing_token_count"`
}

// Validate checks the required fields.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.Role) == "" {
		return invalid("role", "is required")
	}
	if strings.TrimSpace(r.CandidateModel) == "" {
		return invalid("candidate_model", "is required")
	}
	if r.BriefingTokenCount < 0 {
		return invalid("briefing_token_count", "must not be negative")
	}
	return nil
}

// CreateSession stores a new session in status briefing.
func (s *Service) CreateSession(ctx context.Context, req CreateRequest) (*models.InterviewSession, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	id := req.ID
	if id == "" {
		id = s.newID()
	}
	now := s.now()
	sess := &models.InterviewSession{
		ID:                 id,
		Role:               strings.TrimSpace(req.Role),
		CandidateModel:     strings.TrimSpace(req.CandidateModel),
		Status:             models.SessionBriefing,
		BriefingData:       req.BriefingData,
		BriefingTokenCount: req.BriefingTokenCount,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if sess.BriefingData.Language != "" {
		sess.BriefingData.Language = taskgen.ResolveLanguage(sess.BriefingData.Language)
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, err
	}
	slog.Info("session created", "session", id, "role", sess.Role, "candidate", sess.CandidateModel)
	return sess, nil
}

// GetSession returns one session.
func (s *Service) GetSession(ctx context.Context, id string) (*models.InterviewSession, error) {
	return s.store.Get(ctx, id)
}

// ListSessions returns every session, newest first.
func (s *Service) ListSessions(ctx context.Context) ([]*models.InterviewSession, error) {
	return s.store.List(ctx)
}

// Roles lists roles with a dedicated task generator.
func (s *Service) Roles() []string {
	return s.registry.Roles()
}

// RunTest runs the test phase.
func (s *Service) RunTest(ctx context.Context, id string, listener events.Listener) (*models.TestResults, error) {
	listener, done := s.withEventLog(id, listener)
	defer done()
	return s.runner.Run(ctx, id, listener)
}

// CancelTest raises the cancel token of the active test run of id.
func (s *Service) CancelTest(id string) bool {
	return s.runner.Cancel(id)
}

// DeepAnalysisRequest is the input of DeepAnalysis.
type DeepAnalysisRequest struct {
	StepIndex *int                   `json:"step_index"`
	Configs   []models.VariantConfig `json:"configs,omitempty"`
}

// Validate checks the required fields.
func (r *DeepAnalysisRequest) Validate() error {
	if r.StepIndex == nil {
		return invalid("step_index", "is required")
	}
	if *r.StepIndex < 0 {
		return invalid("step_index", "must not be negative")
	}
	seen := map[string]bool{}
	for i, c := range r.Configs {
		if strings.TrimSpace(c.Label) == "" {
			return invalid(fmt.Sprintf("configs[%d].label", i), "is required")
		}
		if seen[c.Label] {
			return invalid(fmt.Sprintf("configs[%d].label", i), "duplicate label %q", c.Label)
		}
		seen[c.Label] = true
		if c.Generation.MaxTokens <= 0 {
			return invalid(fmt.Sprintf("configs[%d].generation.max_tokens", i), "must be positive")
		}
		if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
			return invalid(fmt.Sprintf("configs[%d].generation.temperature", i), "must be between 0 and 2")
		}
	}
	return nil
}

// DeepAnalysis runs multi-variant synthesis on one step.
func (s *Service) DeepAnalysis(ctx context.Context, id string, req DeepAnalysisRequest, listener events.Listener) (*models.DeepAnalysisRun, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	listener, done := s.withEventLog(id, listener)
	defer done()
	return s.synthesis.Run(ctx, id, *req.StepIndex, req.Configs, listener)
}

// Verdict runs the verdict phase.
func (s *Service) Verdict(ctx context.Context, id string, listener events.Listener) (*models.Verdict, error) {
	listener, done := s.withEventLog(id, listener)
	defer done()
	return s.verdict.Run(ctx, id, listener)
}

// DecisionRequest is the input of Decide.
type DecisionRequest struct {
	Decision  string `json:"decision"`
	DecidedBy string `json:"decided_by"`
}

// Decide records the human confirmation of a verdict.
func (s *Service) Decide(ctx context.Context, id string, req DecisionRequest) (*models.InterviewSession, error) {
	decision, err := models.ParseDecision(req.Decision)
	if err != nil {
		return nil, invalid("decision", "%v", err)
	}
	if strings.TrimSpace(req.DecidedBy) == "" {
		return nil, invalid("decided_by", "is required")
	}
	return s.verdict.Confirm(ctx, id, decision, strings.TrimSpace(req.DecidedBy))
}

// RecordAssignment appends to a role's assignment history.
func (s *Service) RecordAssignment(ctx context.Context, rec models.AssignmentRecord) error {
	if strings.TrimSpace(rec.Role) == "" {
		return invalid("role", "is required")
	}
	if strings.TrimSpace(rec.ModelID) == "" {
		return invalid("model_id", "is required")
	}
	if rec.AssignedAt.IsZero() {
		rec.AssignedAt = s.now()
	}
	return s.store.Record(ctx, rec)
}

// History returns the most recent assignments of role.
func (s *Service) History(ctx context.Context, role string, limit int) ([]models.AssignmentRecord, error) {
	if strings.TrimSpace(role) == "" {
		return nil, invalid("role", "is required")
	}
	return s.store.RecentAssignments(ctx, role, limit)
}

// Close releases the store.
func (s *Service) Close() error {
	return s.store.Close()
}

// withEventLog tees listener into the session's NDJSON log when a log
// directory is configured.
func (s *Service) withEventLog(id string, listener events.Listener) (events.Listener, func()) {
	if s.logDir == "" {
		return listener, func() {}
	}
	logger, err := events.NewJSONLogger(events.SessionLogPath(s.logDir, id))
	if err != nil {
		slog.Warn("event log unavailable", "session", id, "error", err)
		return listener, func() {}
	}
	return events.Tee(listener, events.AsListener(logger)), func() {
		if err := logger.Close(); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("closing event log", "session", id, "error", err)
		}
	}
}
