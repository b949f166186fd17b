package verdict

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spboyer/staffeval/internal/adaptive"
	"github.com/spboyer/staffeval/internal/metrics"
	"github.com/spboyer/staffeval/internal/models"
)

// DefaultModeratorConfig is the generation config of the summary call.
var DefaultModeratorConfig = models.GenerationConfig{
	MaxTokens:     600,
	Temperature:   0.4,
	IdleTimeoutMs: 60_000,
}

const moderatorSystemPrompt = `You are the moderator of a hiring panel. Write a short summary
(at most five sentences) of the evaluation for a human reviewer. Mention the
strongest and weakest criteria and every red flag. Plain text, no markdown.`

// Moderator writes the human readable digest of an arbiter result.
type Moderator struct {
	engine *adaptive.Engine
	model  string
	config models.GenerationConfig
}

// NewModerator creates a Moderator using model.
func NewModerator(engine *adaptive.Engine, model string) *Moderator {
	return &Moderator{engine: engine, model: model, config: DefaultModeratorConfig}
}

// Summarize issues one streamed generation and returns the summary, or the
// arbiter comment when that call fails. The second result reports whether
// the model produced it.
func (m *Moderator) Summarize(ctx context.Context, sess *models.InterviewSession, arbiter models.ArbiterResult) (string, bool) {
	if m.model == "" {
		return arbiter.Comment, false
	}

	structured, err := json.MarshalIndent(arbiter, "", "  ")
	if err != nil {
		return arbiter.Comment, false
	}
	prompt := fmt.Sprintf("Role: %s\nCandidate model: %s\n\nArbiter result:\n%s\n\nWrite the summary.",
		sess.Role, sess.CandidateModel, structured)

	res := m.engine.Once(ctx, &adaptive.Request{
		Prompt:       prompt,
		SystemPrompt: moderatorSystemPrompt,
		ModelID:      m.model,
		Config:       m.config,
	}, adaptive.Hooks{})

	text := strings.TrimSpace(res.Text)
	if !res.Status.Successful() || text == "" {
		slog.Warn("moderator failed, using arbiter comment", "session", sess.ID, "model", m.model, "error", res.Error)
		metrics.CollaboratorFailures.WithLabelValues("moderator").Inc()
		return arbiter.Comment, false
	}
	return text, true
}
