// Package synthesis re-runs one test step under several generation
// configurations and merges the successful variants into one answer.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/spboyer/staffeval/internal/adaptive"
	"github.com/spboyer/staffeval/internal/events"
	"github.com/spboyer/staffeval/internal/metrics"
	"github.com/spboyer/staffeval/internal/models"
	"github.com/spboyer/staffeval/internal/store"
)

var (
	// ErrStepNotFound is returned when the session has no step with the
	// requested index.
	ErrStepNotFound = errors.New("step not found")
	// ErrNoTestResults is returned for sessions that were never tested.
	ErrNoTestResults = errors.New("session has no test results")
)

// DefaultSynthesisConfig is the generation config of the merge pass.
var DefaultSynthesisConfig = models.GenerationConfig{
	MaxTokens:     4096,
	Temperature:   0.3,
	IdleTimeoutMs: 60_000,
}

// DefaultVariantBase is the config DefaultConfigs derives from.
var DefaultVariantBase = models.GenerationConfig{
	MaxTokens:     2048,
	Temperature:   0.7,
	IdleTimeoutMs: 60_000,
}

// Engine runs deep analysis for single steps.
type Engine struct {
	sessions    store.SessionStore
	adaptive    *adaptive.Engine
	synthesis   models.GenerationConfig
	variantBase models.GenerationConfig
	now         func() time.Time
	newID       func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithSynthesisConfig sets the generation config of the merge pass.
func WithSynthesisConfig(cfg models.GenerationConfig) Option {
	return func(e *Engine) { e.synthesis = cfg }
}

// WithVariantBase sets the config DefaultConfigs derives from when a run
// names no configurations.
func WithVariantBase(cfg models.GenerationConfig) Option {
	return func(e *Engine) { e.variantBase = cfg }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDs overrides run id generation.
func WithIDs(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// New creates an Engine.
func New(sessions store.SessionStore, engine *adaptive.Engine, opts ...Option) *Engine {
	e := &Engine{
		sessions:    sessions,
		adaptive:    engine,
		synthesis:   DefaultSynthesisConfig,
		variantBase: DefaultVariantBase,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run generates one variant per config, sequentially, and merges them.
// The run is appended to the session's deep analysis records. An empty
// configs list means DefaultConfigs of the variant base config.
func (e *Engine) Run(ctx context.Context, sessionID string, stepIndex int, configs []models.VariantConfig, listener events.Listener) (*models.DeepAnalysisRun, error) {
	sess, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.TestResults == nil {
		return nil, fmt.Errorf("%w: session %s", ErrNoTestResults, sessionID)
	}
	step := sess.StepAt(stepIndex)
	if step == nil {
		return nil, fmt.Errorf("%w: session %s has no step %d", ErrStepNotFound, sessionID, stepIndex)
	}
	if len(configs) == 0 {
		configs = DefaultConfigs(e.variantBase)
	}

	notify := events.WithSession(sessionID, listener)
	start := time.Now()
	run := &models.DeepAnalysisRun{
		ID:        e.newID(),
		StepIndex: stepIndex,
		Configs:   configs,
		StartedAt: e.now(),
		Source:    models.SourceNone,
	}

	labels := make([]string, len(configs))
	for i, c := range configs {
		labels[i] = c.Label
	}
	slog.Info("deep analysis started", "session", sessionID, "step", stepIndex, "configs", len(configs))
	notify(events.New(events.Start, events.SynthesisStartRunData(stepIndex, labels)))

	for i, cfg := range configs {
		if ctx.Err() != nil {
			break
		}
		run.Variants = append(run.Variants, e.variant(ctx, sess, step, i, cfg, notify))
	}

	successful := successfulVariants(run.Variants)
	run.Successful = len(successful)

	switch len(successful) {
	case 0:
		slog.Warn("deep analysis produced no usable variant", "session", sessionID, "step", stepIndex)
	case 1:
		run.FinalText = successful[0].Text
		run.Source = models.SourceSingleVariant
	default:
		e.merge(ctx, sess, step, successful, run, notify)
	}

	run.TotalElapsedMs = time.Since(start).Milliseconds()
	metrics.SynthesisOutcomes.WithLabelValues(string(run.Source)).Inc()

	sess.Config.DeepAnalysis = append(sess.Config.DeepAnalysis, *run)
	sess.UpdatedAt = e.now()
	if err := e.sessions.Save(context.WithoutCancel(ctx), sess); err != nil {
		return run, fmt.Errorf("saving deep analysis: %w", err)
	}

	notify(events.New(events.Complete, events.SynthesisRunCompleteData(len(run.Variants), run.Successful, run.Synthesis != nil, run.TotalElapsedMs)))
	return run, nil
}

func (e *Engine) variant(ctx context.Context, sess *models.InterviewSession, step *models.Step, index int, cfg models.VariantConfig, notify events.Listener) models.Variant {
	notify(events.New(events.ConfigStart, events.ConfigStartData(index, cfg.Label)))

	system := cfg.SystemPrompt
	if system == "" {
		system = sess.BriefingData.SystemPrompt
	}
	res := e.adaptive.Generate(ctx, &adaptive.Request{
		Prompt:       step.TaskPrompt,
		SystemPrompt: system,
		ModelID:      sess.CandidateModel,
		Config:       cfg.Generation,
	}, adaptive.Hooks{
		OnRetry: func(attempt int, adjusted models.GenerationConfig, reason string) {
			notify(events.New(events.Retry, events.RetryData(cfg.Label, attempt, adjusted.MaxTokens, adjusted.Temperature, reason)))
		},
		OnProgress: func(attempt, tokens int) {
			notify(events.New(events.VariantProgress, events.VariantProgressData(cfg.Label, attempt, tokens)))
		},
	})

	v := models.Variant{
		ConfigIndex: index,
		Label:       cfg.Label,
		Adversarial: cfg.Adversarial,
		Status:      res.Status,
		Text:        res.Text,
		TokenCount:  res.TokenCount,
		ElapsedMs:   res.Elapsed.Milliseconds(),
		Attempts:    res.Attempts,
		Error:       res.Error,
	}
	if !v.Status.Successful() {
		slog.Warn("variant failed", "session", sess.ID, "step", step.StepIndex, "label", cfg.Label, "error", v.Error)
	}
	notify(events.New(events.ConfigComplete, events.ConfigCompleteData(index, v.Label, string(v.Status), v.TokenCount, v.ElapsedMs, v.Attempts, utf8.RuneCountInString(v.Text))))
	return v
}

// merge issues exactly one synthesis call. When it fails the longest
// successful variant is used instead.
func (e *Engine) merge(ctx context.Context, sess *models.InterviewSession, step *models.Step, successful []models.Variant, run *models.DeepAnalysisRun, notify events.Listener) {
	notify(events.New(events.SynthesisStart, events.SynthesisStartData(len(successful))))

	res := e.adaptive.Once(ctx, &adaptive.Request{
		Prompt:       BuildPrompt(step.TaskPrompt, successful),
		SystemPrompt: synthesizerPrompt,
		ModelID:      sess.CandidateModel,
		Config:       e.synthesis,
	}, adaptive.Hooks{
		OnProgress: func(attempt, tokens int) {
			notify(events.New(events.VariantProgress, events.VariantProgressData("synthesis", attempt, tokens)))
		},
	})

	run.Synthesis = &models.SynthesisResult{
		Text:       res.Text,
		TokenCount: res.TokenCount,
		ElapsedMs:  res.Elapsed.Milliseconds(),
		Error:      res.Error,
	}
	if res.Status.Successful() {
		run.FinalText = res.Text
		run.Source = models.SourceSynthesis
	} else {
		slog.Warn("synthesis failed, using longest variant", "session", sess.ID, "step", step.StepIndex, "error", res.Error)
		run.FinalText = Longest(successful).Text
		run.Source = models.SourceLongestFallback
	}
	notify(events.New(events.SynthesisComplete, events.SynthesisCompleteData(res.TokenCount, run.Synthesis.ElapsedMs, utf8.RuneCountInString(res.Text), res.Error)))
}

func successfulVariants(vs []models.Variant) []models.Variant {
	var out []models.Variant
	for _, v := range vs {
		if v.Status.Successful() {
			out = append(out, v)
		}
	}
	return out
}

// Longest returns the variant with the most characters. The first one wins
// a tie.
func Longest(vs []models.Variant) models.Variant {
	var best models.Variant
	for i, v := range vs {
		if i == 0 || utf8.RuneCountInString(v.Text) > utf8.RuneCountInString(best.Text) {
			best = v
		}
	}
	return best
}
