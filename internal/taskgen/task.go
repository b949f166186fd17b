// Package taskgen turns role context into ordered lists of test tasks.
package taskgen

import (
	"hash/fnv"
	"math/rand/v2"
	"strings"

	"github.com/spboyer/staffeval/internal/models"
	"golang.org/x/text/language"
)

// Text is prompt text in every supported language.
type Text struct {
	EN string `json:"en"`
	RU string `json:"ru"`
}

// In returns the text for lang, falling back to English.
func (t Text) In(lang string) string {
	if ResolveLanguage(lang) == "ru" && t.RU != "" {
		return t.RU
	}
	return t.EN
}

// Task is one generated test task.
type Task struct {
	TaskType       string                `json:"task_type"`
	Competency     string                `json:"competency"`
	Prompt         Text                  `json:"prompt"`
	BaselineSource models.BaselineSource `json:"baseline_source"`
	Baseline       string                `json:"baseline,omitempty"`
}

// Context is everything a generator may read.
type Context struct {
	SessionID string
	Role      string
	Duties    []string
	Knowledge []models.KnowledgeSnippet
	Prompts   []models.ExistingPrompt
	Language  string
}

// NewContext builds a generator context from a session.
func NewContext(s *models.InterviewSession) Context {
	return Context{
		SessionID: s.ID,
		Role:      s.Role,
		Duties:    s.BriefingData.Duties,
		Knowledge: s.BriefingData.Knowledge,
		Prompts:   s.BriefingData.Prompts,
		Language:  s.BriefingData.Language,
	}
}

// Rand returns the generator's random source, seeded by session id so
// repeated evaluations of the same session pick the same snippets.
func (c Context) Rand() *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(c.SessionID))
	h.Write([]byte{0})
	h.Write([]byte(c.Role))
	return rand.New(rand.NewPCG(h.Sum64(), 0))
}

// Duty returns the i-th duty, cycling, or def when there are none.
func (c Context) Duty(i int, def string) string {
	if len(c.Duties) == 0 {
		return def
	}
	return c.Duties[i%len(c.Duties)]
}

var supportedLanguages = []language.Tag{language.English, language.Russian}

var languageMatcher = language.NewMatcher(supportedLanguages)

// ResolveLanguage maps a requested language to "en" or "ru".
func ResolveLanguage(requested string) string {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return "en"
	}
	tag, err := language.Parse(requested)
	if err != nil {
		return "en"
	}
	_, idx, conf := languageMatcher.Match(tag)
	if conf == language.No {
		return "en"
	}
	if supportedLanguages[idx] == language.Russian {
		return "ru"
	}
	return "en"
}

// ToSteps converts tasks into pending steps, resolving prompt language.
func ToSteps(tasks []Task, lang string) []models.Step {
	steps := make([]models.Step, len(tasks))
	for i, t := range tasks {
		source := t.BaselineSource
		if source == "" {
			source = models.BaselineNone
		}
		steps[i] = models.Step{
			StepIndex:      i,
			TaskType:       t.TaskType,
			Competency:     t.Competency,
			TaskPrompt:     t.Prompt.In(lang),
			BaselineSource: source,
			Baseline:       t.Baseline,
			Status:         models.StepPending,
		}
	}
	return steps
}
