// Package adaptive wraps a streaming generation backend with idle timeout
// detection, bounded retries with parameter relaxation and completion
// classification. Generate never returns an error; every outcome is
// reported through Result.
package adaptive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sethvargo/go-retry"
	"github.com/spboyer/staffeval/internal/execution"
	"github.com/spboyer/staffeval/internal/metrics"
	"github.com/spboyer/staffeval/internal/models"
)

const (
	// MaxRetries is the number of attempts, including the first.
	MaxRetries = 3

	DefaultRetryDelay  = 2 * time.Second
	DefaultIdleTimeout = 60 * time.Second

	// ProgressEvery is the chunk interval between progress callbacks.
	ProgressEvery = 25

	// timeouts with more text than this are returned as truncated instead of
	// retried
	keepOnTimeoutChars = 200
	// minimum length of a best-effort result once retries are exhausted
	minUsefulChars = 100
)

var (
	ErrIdleTimeout   = errors.New("idle timeout waiting for next chunk")
	ErrEmptyResponse = errors.New("empty response")
)

// Request is one adaptive generation.
type Request struct {
	Prompt       string
	SystemPrompt string
	ModelID      string
	Config       models.GenerationConfig
}

// Hooks receive informational callbacks while a generation runs. Nil
// fields are ignored.
type Hooks struct {
	// OnRetry fires before attempt (1-based count of retries so far) with
	// the adjusted config and the reason the previous attempt was rejected.
	OnRetry func(attempt int, cfg models.GenerationConfig, reason string)
	// OnProgress fires every ProgressEvery chunks.
	OnProgress func(attempt, tokens int)
}

// Result is the outcome of an adaptive generation.
type Result struct {
	Text       string
	Status     models.GenerationStatus
	TokenCount int
	Attempts   int
	Elapsed    time.Duration
	Error      string
}

// Engine runs adaptive generations against one StreamClient.
type Engine struct {
	client     execution.StreamClient
	retryDelay time.Duration
	maxRetries int
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetryDelay sets the pause before every retry.
func WithRetryDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.retryDelay = d
		}
	}
}

// New creates an Engine.
func New(client execution.StreamClient, opts ...Option) *Engine {
	e := &Engine{
		client:     client,
		retryDelay: DefaultRetryDelay,
		maxRetries: MaxRetries,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Adjust applies the fixed per-attempt adjustment table to base.
//   - attempt 0: base config
//   - attempt 1: 75% of max tokens, temperature cooled by 0.2 (floor 0.1)
//   - attempt 2: 150% of max tokens, base temperature
func Adjust(base models.GenerationConfig, attempt int) models.GenerationConfig {
	cfg := base
	switch attempt {
	case 1:
		cfg.MaxTokens = base.MaxTokens * 3 / 4
		cfg.Temperature = max(base.Temperature-0.2, 0.1)
	case 2:
		cfg.MaxTokens = base.MaxTokens * 3 / 2
	}
	return cfg
}

// closers end a sentence or a quoted/bracketed block in the languages the
// prompts are written in.
const closers = ".!?\"')]}»…。！？`"

// LooksComplete is the completion heuristic: text is complete when it is
// shorter than 100 characters or its last non-whitespace character closes a
// sentence or block.
func LooksComplete(text string) bool {
	trimmed := strings.TrimRight(text, " \t\r\n")
	if utf8.RuneCountInString(trimmed) < minUsefulChars {
		return true
	}
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	return strings.ContainsRune(closers, last)
}

func classify(text string) models.GenerationStatus {
	if LooksComplete(text) {
		return models.GenerationCompleted
	}
	return models.GenerationTruncated
}

type attemptOutcome struct {
	text     string
	tokens   int
	timedOut bool
	err      error
}

func (o attemptOutcome) chars() int {
	return utf8.RuneCountInString(o.text)
}

// judge decides whether an attempt is final. It returns the status when it
// is, or the reason to retry when it is not.
func judge(o attemptOutcome) (models.GenerationStatus, error) {
	switch {
	case o.timedOut && o.chars() > keepOnTimeoutChars:
		return models.GenerationTruncated, nil
	case o.text == "" && o.err != nil:
		return "", o.err
	case o.text == "":
		return "", ErrEmptyResponse
	case o.err != nil:
		return "", o.err
	}
	return classify(o.text), nil
}

func outcomeLabel(o attemptOutcome) string {
	switch {
	case o.timedOut:
		return "timeout"
	case o.err != nil:
		return "error"
	case o.text == "":
		return "empty"
	}
	return string(classify(o.text))
}

// Generate runs up to MaxRetries attempts and returns the best result.
func (e *Engine) Generate(ctx context.Context, req *Request, hooks Hooks) *Result {
	start := time.Now()

	var (
		attempts int
		best     attemptOutcome
		lastErr  error
		final    *Result
	)

	backoff := retry.WithMaxRetries(uint64(e.maxRetries-1), retry.NewConstant(e.retryDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		k := attempts
		attempts++

		cfg := Adjust(req.Config, k)
		if k > 0 {
			slog.Warn("retrying generation", "model", req.ModelID, "attempt", k, "reason", lastErr)
			if hooks.OnRetry != nil {
				hooks.OnRetry(k, cfg, lastErr.Error())
			}
		}

		out := e.attempt(ctx, req, cfg, k, hooks)
		metrics.GenerationAttempts.WithLabelValues(outcomeLabel(out)).Inc()
		if out.chars() > best.chars() {
			best = out
		}

		status, reject := judge(out)
		if reject != nil {
			lastErr = reject
			return retry.RetryableError(reject)
		}

		final = &Result{
			Text:       out.text,
			Status:     status,
			TokenCount: out.tokens,
		}
		return nil
	})

	if final == nil {
		if lastErr == nil {
			lastErr = err
		}
		final = exhausted(best, lastErr)
	}

	final.Attempts = attempts
	final.Elapsed = time.Since(start)
	metrics.GenerationResults.WithLabelValues(string(final.Status)).Inc()
	return final
}

func exhausted(best attemptOutcome, lastErr error) *Result {
	if best.chars() > minUsefulChars {
		return &Result{
			Text:       best.text,
			Status:     models.GenerationTruncated,
			TokenCount: best.tokens,
		}
	}
	msg := "generation failed"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	return &Result{
		Status:     models.GenerationFailed,
		TokenCount: best.tokens,
		Error:      msg,
	}
}

// Once runs a single attempt with the base config and no retries. Outcomes
// that Generate would retry are reported as failed.
func (e *Engine) Once(ctx context.Context, req *Request, hooks Hooks) *Result {
	start := time.Now()
	out := e.attempt(ctx, req, req.Config, 0, hooks)
	metrics.GenerationAttempts.WithLabelValues(outcomeLabel(out)).Inc()

	res := &Result{Attempts: 1, TokenCount: out.tokens}
	status, reject := judge(out)
	if reject != nil {
		res.Status = models.GenerationFailed
		res.Error = reject.Error()
	} else {
		res.Status = status
		res.Text = out.text
	}
	res.Elapsed = time.Since(start)
	metrics.GenerationResults.WithLabelValues(string(res.Status)).Inc()
	return res
}

// attempt consumes one stream until it ends, errors or goes idle.
func (e *Engine) attempt(ctx context.Context, req *Request, cfg models.GenerationConfig, k int, hooks Hooks) attemptOutcome {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := e.client.OpenStream(ctx, &execution.StreamRequest{
		Prompt:       req.Prompt,
		SystemPrompt: req.SystemPrompt,
		ModelID:      req.ModelID,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	})
	if err != nil {
		return attemptOutcome{err: fmt.Errorf("opening stream: %w", err)}
	}
	defer stream.Close()

	idle := cfg.IdleTimeout()
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	timer := time.NewTimer(idle)
	defer timer.Stop()

	var (
		sb     strings.Builder
		tokens int
	)
	for {
		select {
		case chunk, ok := <-stream.Chunks():
			if !ok {
				return attemptOutcome{text: sb.String(), tokens: tokens, err: stream.Err()}
			}
			sb.WriteString(chunk)
			tokens++
			if tokens%ProgressEvery == 0 && hooks.OnProgress != nil {
				hooks.OnProgress(k, tokens)
			}
			timer.Reset(idle)
		case <-timer.C:
			return attemptOutcome{text: sb.String(), tokens: tokens, timedOut: true, err: ErrIdleTimeout}
		case <-ctx.Done():
			return attemptOutcome{text: sb.String(), tokens: tokens, err: ctx.Err()}
		}
	}
}
