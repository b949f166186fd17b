package verdict

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spboyer/staffeval/internal/audit"
	"github.com/spboyer/staffeval/internal/events"
	"github.com/spboyer/staffeval/internal/memory"
	"github.com/spboyer/staffeval/internal/metrics"
	"github.com/spboyer/staffeval/internal/models"
	"github.com/spboyer/staffeval/internal/store"
	"github.com/spboyer/staffeval/internal/taskgen"
)

// Phase names, in execution order.
const (
	PhaseArbiter   = "arbiter"
	PhaseModerator = "moderator"
	PhaseDecision  = "decision"
)

// Phases lists every verdict phase.
var Phases = []string{PhaseArbiter, PhaseModerator, PhaseDecision}

const (
	phaseRunning = "running"
	phaseDone    = "done"
)

// Engine runs the verdict phases and the human confirmation.
type Engine struct {
	sessions  store.SessionStore
	history   store.HistoryStore
	arbiter   *Arbiter
	moderator *Moderator
	registry  *taskgen.Registry
	memory    memory.Writer
	archiver  audit.Archiver
	now       func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMemory sets the memory collaborator verdict summaries go to.
func WithMemory(w memory.Writer) EngineOption {
	return func(e *Engine) { e.memory = w }
}

// WithArchiver sets the audit archive.
func WithArchiver(a audit.Archiver) EngineOption {
	return func(e *Engine) { e.archiver = a }
}

// WithRegistry sets the registry evaluation hints are read from.
func WithRegistry(reg *taskgen.Registry) EngineOption {
	return func(e *Engine) { e.registry = reg }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine.
func New(sessions store.SessionStore, history store.HistoryStore, arbiter *Arbiter, moderator *Moderator, opts ...EngineOption) *Engine {
	e := &Engine{
		sessions:  sessions,
		history:   history,
		arbiter:   arbiter,
		moderator: moderator,
		registry:  taskgen.DefaultRegistry(),
		memory:    memory.Nop{},
		archiver:  audit.Nop{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run produces the verdict of a tested session. The session must be in
// status tested with at least one completed step.
func (e *Engine) Run(ctx context.Context, sessionID string, listener events.Listener) (*models.Verdict, error) {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.RequireStatus(models.SessionTested); err != nil {
		return nil, err
	}
	if sess.TestResults == nil || sess.TestResults.CountCompleted() == 0 {
		return nil, fmt.Errorf("%w: session %s has no completed steps", models.ErrStateConflict, sessionID)
	}

	history, err := e.history.RecentAssignments(ctx, sess.Role, HistoryDepth)
	if err != nil {
		return nil, fmt.Errorf("reading assignment history of %s: %w", sess.Role, err)
	}

	notify := events.WithSession(sessionID, listener)
	slog.Info("verdict started", "session", sessionID, "role", sess.Role, "candidate", sess.CandidateModel)
	notify(events.New(events.Start, events.VerdictStartData(sessionID, sess.Role, sess.CandidateModel, Phases)))

	// Phase 1
	notify(events.New(events.Phase, events.PhaseData(PhaseArbiter, phaseRunning, nil)))
	criteria := CriteriaFor(sess.Role, e.registry)
	result := e.arbiter.Evaluate(ctx, sess, criteria)
	notify(events.New(events.Phase, events.PhaseData(PhaseArbiter, phaseDone, map[string]any{"result": result})))

	// Phase 2
	notify(events.New(events.Phase, events.PhaseData(PhaseModerator, phaseRunning, nil)))
	summary, generated := e.moderator.Summarize(ctx, sess, result)
	notify(events.New(events.Phase, events.PhaseData(PhaseModerator, phaseDone, map[string]any{
		"summary":  summary,
		"fallback": !generated,
	})))

	// Phase 3
	notify(events.New(events.Phase, events.PhaseData(PhaseDecision, phaseRunning, nil)))
	avg := AverageScore(result.Scores)
	th := BuildThresholds(sess.CandidateModel, avg, history)
	decision, reason := Decide(th)
	v := models.Verdict{
		Arbiter:          result,
		ModeratorSummary: summary,
		AutoDecision:     decision,
		DecisionReason:   reason,
		OverrideNote:     OverrideNote(result, decision),
		Thresholds:       th,
		CreatedAt:        e.now(),
	}
	if v.OverrideNote != "" {
		slog.Info("arbiter disagreed with computed decision", "session", sessionID, "note", v.OverrideNote)
	}

	persistCtx := context.WithoutCancel(ctx)
	sess.Verdict = &v
	if err := sess.AdvanceTo(models.SessionVerdict, v.CreatedAt); err != nil {
		return nil, err
	}
	if err := e.sessions.Save(persistCtx, sess); err != nil {
		return nil, fmt.Errorf("saving verdict: %w", err)
	}
	metrics.VerdictDecisions.WithLabelValues(string(decision)).Inc()
	notify(events.New(events.Phase, events.PhaseData(PhaseDecision, phaseDone, map[string]any{"verdict": v})))

	e.remember(persistCtx, sess, &v)
	e.archive(persistCtx, sess, &v)

	slog.Info("verdict written", "session", sessionID, "decision", decision,
		"avg", avg, "spread", metrics.Round2(metrics.StdDev(metrics.MapValues(result.Scores))))
	notify(events.New(events.Complete, events.VerdictCompleteData(sessionID, string(decision), metrics.Round2(avg))))
	return &v, nil
}

// remember writes the experience summary. Failures are logged only.
func (e *Engine) remember(ctx context.Context, sess *models.InterviewSession, v *models.Verdict) {
	avg := v.Thresholds.CandidateScore
	entry := memory.Entry{
		Role: sess.Role,
		Content: fmt.Sprintf("Interview of %s for role %s: auto decision %s (average score %.2f, arbiter confidence %.2f). %s",
			sess.CandidateModel, sess.Role, v.AutoDecision, avg, v.Arbiter.Confidence, v.ModeratorSummary),
		MemoryType:      memory.TypeExperience,
		ConfidenceScore: v.Arbiter.Confidence,
		Tags:            []string{"interview", "verdict", string(v.AutoDecision)},
		Metadata: map[string]any{
			"session_id":      sess.ID,
			"candidate_model": sess.CandidateModel,
			"avg_score":       metrics.Round2(avg),
			"decision":        string(v.AutoDecision),
		},
	}
	if err := e.memory.Write(ctx, entry); err != nil {
		metrics.CollaboratorFailures.WithLabelValues("memory").Inc()
		slog.Warn("memory write failed", "session", sess.ID, "error", err)
	}
}

// archive stores the audit record. Failures are logged only.
func (e *Engine) archive(ctx context.Context, sess *models.InterviewSession, v *models.Verdict) {
	loc, err := e.archiver.Archive(ctx, audit.Record{
		SessionID:      sess.ID,
		Role:           sess.Role,
		CandidateModel: sess.CandidateModel,
		TestResults:    sess.TestResults,
		Verdict:        *v,
		ArchivedAt:     e.now(),
	})
	if err != nil {
		metrics.CollaboratorFailures.WithLabelValues("audit").Inc()
		slog.Warn("audit archive failed", "session", sess.ID, "error", err)
		return
	}
	if loc != "" {
		slog.Debug("verdict archived", "session", sess.ID, "location", loc)
	}
}

// Confirm records the human decision and moves the session to decided. A
// confirmed hire closes the current holder's assignment and records the
// candidate as the new holder.
func (e *Engine) Confirm(ctx context.Context, sessionID string, decision models.Decision, decidedBy string) (*models.InterviewSession, error) {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.RequireStatus(models.SessionVerdict); err != nil {
		return nil, err
	}

	now := e.now()
	if decision == models.DecisionHire {
		score := 0.0
		if sess.Verdict != nil {
			score = sess.Verdict.Thresholds.CandidateScore
		}
		if err := e.history.CloseCurrent(ctx, sess.Role, now); err != nil {
			return nil, fmt.Errorf("closing current assignment of %s: %w", sess.Role, err)
		}
		if err := e.history.Record(ctx, models.AssignmentRecord{
			Role:              sess.Role,
			ModelID:           sess.CandidateModel,
			AssignedAt:        now,
			InterviewAvgScore: score,
		}); err != nil {
			return nil, fmt.Errorf("recording assignment of %s: %w", sess.CandidateModel, err)
		}
	}

	sess.FinalDecision = &decision
	sess.DecidedBy = &decidedBy
	sess.DecidedAt = &now
	if err := sess.AdvanceTo(models.SessionDecided, now); err != nil {
		return nil, err
	}
	if err := e.sessions.Save(context.WithoutCancel(ctx), sess); err != nil {
		return nil, fmt.Errorf("saving decision: %w", err)
	}
	slog.Info("decision confirmed", "session", sessionID, "decision", decision, "by", decidedBy)
	return sess, nil
}
