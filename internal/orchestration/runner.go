package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spboyer/staffeval/internal/adaptive"
	"github.com/spboyer/staffeval/internal/events"
	"github.com/spboyer/staffeval/internal/metrics"
	"github.com/spboyer/staffeval/internal/models"
	"github.com/spboyer/staffeval/internal/store"
	"github.com/spboyer/staffeval/internal/taskgen"
)

// ErrNoTasks is returned when a role's generator produces no tasks.
var ErrNoTasks = errors.New("no tasks generated")

// DefaultGeneration is the base generation config for test steps.
var DefaultGeneration = models.GenerationConfig{
	MaxTokens:     2048,
	Temperature:   0.7,
	IdleTimeoutMs: 60_000,
}

// TestRunner drives the adaptive engine across every task of a session,
// one task at a time.
type TestRunner struct {
	sessions   store.SessionStore
	engine     *adaptive.Engine
	registry   *taskgen.Registry
	generation models.GenerationConfig
	now        func() time.Time

	// Progress tracking
	progressMu sync.Mutex
	listeners  []events.Listener

	// Active runs, one per session
	activeMu sync.Mutex
	active   map[string]*CancelToken
}

// RunnerOption configures a TestRunner.
type RunnerOption func(*TestRunner)

// WithRegistry replaces the default task generator registry.
func WithRegistry(reg *taskgen.Registry) RunnerOption {
	return func(r *TestRunner) {
		r.registry = reg
	}
}

// WithGenerationConfig sets the base generation config for every step.
func WithGenerationConfig(cfg models.GenerationConfig) RunnerOption {
	return func(r *TestRunner) {
		r.generation = cfg
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *TestRunner) {
		r.now = now
	}
}

// NewTestRunner creates a new test runner
func NewTestRunner(sessions store.SessionStore, engine *adaptive.Engine, opts ...RunnerOption) *TestRunner {
	r := &TestRunner{
		sessions:   sessions,
		engine:     engine,
		registry:   taskgen.DefaultRegistry(),
		generation: DefaultGeneration,
		now:        func() time.Time { return time.Now().UTC() },
		active:     map[string]*CancelToken{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnProgress registers a listener for every run.
func (r *TestRunner) OnProgress(listener events.Listener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

func (r *TestRunner) notifier(sessionID string, extra events.Listener) events.Listener {
	r.progressMu.Lock()
	listeners := make([]events.Listener, len(r.listeners), len(r.listeners)+1)
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	return events.WithSession(sessionID, events.Tee(append(listeners, extra)...))
}

// Cancel raises the cancel token of the active run for sessionID. It
// reports whether a run was active.
func (r *TestRunner) Cancel(sessionID string) bool {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	tok, ok := r.active[sessionID]
	if ok {
		tok.Cancel()
	}
	return ok
}

// IsRunning reports whether sessionID has an active run.
func (r *TestRunner) IsRunning(sessionID string) bool {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	_, ok := r.active[sessionID]
	return ok
}

func (r *TestRunner) register(sessionID string) (*CancelToken, error) {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	if _, ok := r.active[sessionID]; ok {
		return nil, fmt.Errorf("%w: a test run is already in progress for session %s", models.ErrStateConflict, sessionID)
	}
	tok := NewCancelToken()
	r.active[sessionID] = tok
	return tok, nil
}

func (r *TestRunner) unregister(sessionID string) {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	delete(r.active, sessionID)
}

// Run tests the candidate of sessionID. Errors are only returned before the
// first event is emitted (not found, wrong status, run in progress, task
// generation) or when the final save fails. Cancelling ctx behaves like the
// cancel token and also closes the stream in flight.
func (r *TestRunner) Run(ctx context.Context, sessionID string, listener events.Listener) (*models.TestResults, error) {
	// registered before the status read so a finished concurrent run is
	// always observed as tested
	token, err := r.register(sessionID)
	if err != nil {
		return nil, err
	}
	defer r.unregister(sessionID)

	sess, err := r.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.RequireStatus(models.SessionBriefing); err != nil {
		return nil, err
	}

	tasks, err := r.registry.Generate(taskgen.NewContext(sess))
	if err != nil {
		return nil, fmt.Errorf("generating tasks for role %s: %w", sess.Role, err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w for role %s", ErrNoTasks, sess.Role)
	}

	metrics.RunsActive.Inc()
	defer metrics.RunsActive.Dec()

	notify := r.notifier(sessionID, listener)
	results := &models.TestResults{
		Steps:      taskgen.ToSteps(tasks, sess.BriefingData.Language),
		TotalSteps: len(tasks),
		StartedAt:  r.now(),
	}

	slog.Info("test run started", "session", sessionID, "role", sess.Role, "candidate", sess.CandidateModel, "steps", results.TotalSteps)
	notify(events.New(events.Start, events.RunStartData(results.TotalSteps)))

	cancelled := r.runSequential(ctx, sess, results, token, notify)

	results.CompletedSteps = results.CountCompleted()
	completedAt := r.now()
	results.CompletedAt = &completedAt

	if err := r.persist(ctx, sess, results); err != nil {
		return results, err
	}

	slog.Info("test run finished", "session", sessionID, "completed", results.CompletedSteps, "total", results.TotalSteps, "cancelled", cancelled)
	notify(events.New(events.Complete, events.RunCompleteData(results.TotalSteps, results.CompletedSteps, cancelled)))
	return results, nil
}

func (r *TestRunner) runSequential(ctx context.Context, sess *models.InterviewSession, results *models.TestResults, token *CancelToken, notify events.Listener) bool {
	for i := range results.Steps {
		if token.Cancelled() || ctx.Err() != nil {
			r.skipFrom(results, i, notify)
			return true
		}
		r.runStep(ctx, sess, &results.Steps[i], notify)
	}
	return false
}

func (r *TestRunner) skipFrom(results *models.TestResults, from int, notify events.Listener) {
	for i := from; i < len(results.Steps); i++ {
		step := &results.Steps[i]
		if err := step.Skip(); err != nil {
			slog.Warn("skipping step", "step", step.StepIndex, "error", err)
			continue
		}
		notify(events.New(events.StepSkipped, events.StepSkippedData(step.StepIndex)))
	}
}

func (r *TestRunner) runStep(ctx context.Context, sess *models.InterviewSession, step *models.Step, notify events.Listener) {
	if err := step.Start(); err != nil {
		slog.Warn("starting step", "session", sess.ID, "step", step.StepIndex, "error", err)
		return
	}
	notify(events.New(events.StepStart, events.StepStartData(step.StepIndex, step.Competency)))

	label := fmt.Sprintf("step_%d", step.StepIndex)
	res := r.engine.Generate(ctx, &adaptive.Request{
		Prompt:       step.TaskPrompt,
		SystemPrompt: sess.BriefingData.SystemPrompt,
		ModelID:      sess.CandidateModel,
		Config:       r.generation,
	}, adaptive.Hooks{
		OnRetry: func(attempt int, cfg models.GenerationConfig, reason string) {
			notify(events.New(events.Retry, events.RetryData(label, attempt, cfg.MaxTokens, cfg.Temperature, reason)))
		},
		OnProgress: func(attempt, tokens int) {
			notify(events.New(events.StepProgress, events.StepProgressData(step.StepIndex, attempt, tokens)))
		},
	})

	var err error
	if res.Status.Successful() {
		err = step.Complete(res.Text, string(res.Status), res.Elapsed, res.TokenCount, res.Attempts)
	} else {
		slog.Warn("step failed", "session", sess.ID, "step", step.StepIndex, "attempts", res.Attempts, "error", res.Error)
		err = step.Fail(res.Error, res.Elapsed, res.TokenCount, res.Attempts)
	}
	if err != nil {
		slog.Warn("recording step outcome", "session", sess.ID, "step", step.StepIndex, "error", err)
	}

	metrics.StepDuration.WithLabelValues(string(step.Status)).Observe(res.Elapsed.Seconds())

	errMsg := ""
	if step.Error != nil {
		errMsg = *step.Error
	}
	notify(events.New(events.StepComplete, events.StepCompleteData(step.StepIndex, string(step.Status), step.ElapsedMs, step.TokenCount, errMsg)))
}

// persist writes test_results in one save. The session only advances to
// tested when at least one step completed, so a run that produced nothing
// can be repeated.
func (r *TestRunner) persist(ctx context.Context, sess *models.InterviewSession, results *models.TestResults) error {
	// the request context may already be gone when the client disconnected
	ctx = context.WithoutCancel(ctx)

	sess.TestResults = results
	sess.UpdatedAt = r.now()
	if results.CompletedSteps > 0 {
		if err := sess.AdvanceTo(models.SessionTested, sess.UpdatedAt); err != nil {
			return err
		}
	}
	if err := r.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("saving test results: %w", err)
	}
	return nil
}
