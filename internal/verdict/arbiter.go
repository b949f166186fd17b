package verdict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spboyer/staffeval/internal/adaptive"
	"github.com/spboyer/staffeval/internal/metrics"
	"github.com/spboyer/staffeval/internal/models"
)

// ErrNoEvaluators is reported when the arbiter has no models configured.
var ErrNoEvaluators = errors.New("no evaluator models configured")

// ErrMalformedResult is returned when an evaluator reply does not hold a
// valid arbiter result.
var ErrMalformedResult = errors.New("malformed arbiter result")

// DefaultArbiterConfig is the generation config of every arbiter call.
var DefaultArbiterConfig = models.GenerationConfig{
	MaxTokens:     1500,
	Temperature:   0.1,
	IdleTimeoutMs: 60_000,
}

const (
	// synthetic result when every evaluator fails
	neutralScore      = 5.0
	neutralConfidence = 0.1

	// candidate output longer than this is cut in the arbiter prompt
	maxOutputChars = 4000
)

const arbiterSystemPrompt = `You are a strict hiring arbiter for AI staff roles.
You score the candidate's test answers and reply with one JSON object only,
no prose before or after it.`

// Arbiter runs the structured scoring phase against an ordered list of
// evaluator models.
type Arbiter struct {
	engine *adaptive.Engine
	models []string
	config models.GenerationConfig
}

// NewArbiter creates an Arbiter. Evaluators are tried in order.
func NewArbiter(engine *adaptive.Engine, evaluators []string) *Arbiter {
	return &Arbiter{engine: engine, models: evaluators, config: DefaultArbiterConfig}
}

// Models returns the evaluator models in fallback order.
func (a *Arbiter) Models() []string { return a.models }

// Evaluate returns the first valid result of the evaluator chain. When
// every evaluator fails it returns a synthetic neutral result; it never
// returns an error.
func (a *Arbiter) Evaluate(ctx context.Context, sess *models.InterviewSession, criteria []Criterion) models.ArbiterResult {
	prompt := BuildArbiterPrompt(sess, criteria)
	names := criterionNames(criteria)

	var failures []string
	for i, model := range a.models {
		res, err := a.try(ctx, model, prompt, names)
		if err == nil {
			return res
		}
		failures = append(failures, fmt.Sprintf("%s: %v", model, err))
		if i < len(a.models)-1 {
			metrics.ArbiterFallbacks.Inc()
			slog.Warn("arbiter failed, trying next evaluator", "session", sess.ID, "model", model, "error", err)
		}
		if ctx.Err() != nil {
			break
		}
	}

	reason := ErrNoEvaluators.Error()
	if len(failures) > 0 {
		reason = strings.Join(failures, "; ")
	}
	slog.Warn("all evaluators failed, using neutral result", "session", sess.ID, "reason", reason)
	metrics.CollaboratorFailures.WithLabelValues("arbiter").Inc()
	return Neutral(names, reason)
}

func (a *Arbiter) try(ctx context.Context, model, prompt string, criteria []string) (models.ArbiterResult, error) {
	res := a.engine.Once(ctx, &adaptive.Request{
		Prompt:       prompt,
		SystemPrompt: arbiterSystemPrompt,
		ModelID:      model,
		Config:       a.config,
	}, adaptive.Hooks{})
	if !res.Status.Successful() {
		return models.ArbiterResult{}, errors.New(res.Error)
	}
	out, err := ParseArbiterResult(res.Text, criteria)
	if err != nil {
		return models.ArbiterResult{}, err
	}
	out.Model = model
	return out, nil
}

// Neutral fabricates the low-confidence retest result used when no
// evaluator produced a valid answer.
func Neutral(criteria []string, reason string) models.ArbiterResult {
	scores := make(map[string]float64, len(criteria))
	for _, c := range criteria {
		scores[c] = neutralScore
	}
	return models.ArbiterResult{
		Scores:         scores,
		RedFlags:       []string{"arbiter unavailable: " + reason},
		Recommendation: models.DecisionRetest,
		Confidence:     neutralConfidence,
		Comment:        "Automatic evaluation failed; the session needs a manual review.",
		Synthetic:      true,
	}
}

// Schema returns the JSON schema arbiter replies must satisfy for the given
// criteria.
func Schema(criteria []string) map[string]any {
	scoreProps := make(map[string]any, len(criteria))
	for _, c := range criteria {
		scoreProps[c] = map[string]any{"type": "number", "minimum": 1, "maximum": 10}
	}
	stringList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return map[string]any{
		"type":     "object",
		"required": []string{"scores", "red_flags", "recommendation", "confidence", "comment"},
		"properties": map[string]any{
			"scores": map[string]any{
				"type":                 "object",
				"required":             criteria,
				"properties":           scoreProps,
				"additionalProperties": map[string]any{"type": "number"},
			},
			"red_flags":           stringList,
			"recommendation":      map[string]any{"enum": []string{"hire", "reject", "retest"}},
			"confidence":          map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"comment":             map[string]any{"type": "string"},
			"retest_competencies": stringList,
		},
	}
}

func compileSchema(criteria []string) (*jsonschema.Schema, error) {
	// the compiler wants plain decoded JSON values
	raw, err := json.Marshal(Schema(criteria))
	if err != nil {
		return nil, fmt.Errorf("failed to serialize schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("arbiter.json", doc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	return compiler.Compile("arbiter.json")
}

// ParseArbiterResult extracts, validates and decodes an arbiter reply.
// Scores for criteria outside the requested set are dropped.
func ParseArbiterResult(text string, criteria []string) (models.ArbiterResult, error) {
	raw := ExtractJSON(text)
	if raw == "" {
		return models.ArbiterResult{}, fmt.Errorf("%w: no JSON object in reply", ErrMalformedResult)
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return models.ArbiterResult{}, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}

	schema, err := compileSchema(criteria)
	if err != nil {
		return models.ArbiterResult{}, err
	}
	if err := schema.Validate(doc); err != nil {
		return models.ArbiterResult{}, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}

	var out models.ArbiterResult
	if err := mapstructure.Decode(doc, &out); err != nil {
		return models.ArbiterResult{}, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}

	keep := make(map[string]float64, len(criteria))
	for _, c := range criteria {
		keep[c] = out.Scores[c]
	}
	out.Scores = keep
	if out.RedFlags == nil {
		out.RedFlags = []string{}
	}
	return out, nil
}

// BuildArbiterPrompt lists the criteria and every step of the session.
func BuildArbiterPrompt(sess *models.InterviewSession, criteria []Criterion) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Candidate evaluation\n\nRole: %s\nCandidate model: %s\n\n", sess.Role, sess.CandidateModel)

	sb.WriteString("## Criteria (equal weight)\n\n")
	for _, c := range criteria {
		fmt.Fprintf(&sb, "- %s (weight %.2f)", c.Name, c.Weight)
		if c.Hint != "" {
			fmt.Fprintf(&sb, ": %s", c.Hint)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Test steps\n\n")
	if sess.TestResults != nil {
		for _, step := range sess.TestResults.Steps {
			fmt.Fprintf(&sb, "### Step %d: %s (%s)\n\n", step.StepIndex, step.TaskType, step.Competency)
			fmt.Fprintf(&sb, "Task:\n%s\n\n", step.TaskPrompt)
			if step.Baseline != "" {
				fmt.Fprintf(&sb, "Reference (%s):\n%s\n\n", step.BaselineSource, clip(step.Baseline))
			}
			switch {
			case step.Status == models.StepCompleted && step.CandidateOutput != nil:
				label := "Answer"
				if step.OutputStatus == string(models.GenerationTruncated) {
					label = "Answer (truncated)"
				}
				fmt.Fprintf(&sb, "%s:\n%s\n\n", label, clip(*step.CandidateOutput))
			default:
				fmt.Fprintf(&sb, "No answer (step %s).\n\n", step.Status)
			}
		}
	}

	sb.WriteString(`## Reply format

Reply with a JSON object:
{"scores": {"<criterion>": <1-10>, ...}, "red_flags": ["..."], "recommendation": "hire|reject|retest", "confidence": <0-1>, "comment": "...", "retest_competencies": ["..."]}
Score every criterion listed above. Steps without an answer count against the candidate.`)
	return sb.String()
}

func clip(s string) string {
	if utf8.RuneCountInString(s) <= maxOutputChars {
		return s
	}
	r := []rune(s)
	return string(r[:maxOutputChars]) + "\n[...]"
}
