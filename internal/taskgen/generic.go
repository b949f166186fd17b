package taskgen

import (
	"fmt"

	"github.com/spboyer/staffeval/internal/models"
)

// Competencies of the generic generator, also the fallback criteria set.
const (
	CompetencyQuality      = "quality"
	CompetencyAccuracy     = "accuracy"
	CompetencyCompleteness = "completeness"
)

var genericHints = map[string]string{
	CompetencyQuality:      "Clear structure, appropriate tone, no filler.",
	CompetencyAccuracy:     "Every claim is supported by the supplied context; nothing is invented.",
	CompetencyCompleteness: "All parts of the request are addressed; nothing important is left out.",
}

// Generic covers roles without a dedicated generator with one task per
// generic criterion.
type Generic struct{}

// GenerateTasks implements Generator
func (Generic) GenerateTasks(ctx Context) ([]Task, error) {
	duty := ctx.Duty(0, "your main responsibility")
	excerpt, hasExcerpt := PickExcerpt(ctx.Rand(), ctx.Knowledge)

	accuracy := Task{
		TaskType:       "explain",
		Competency:     CompetencyAccuracy,
		BaselineSource: models.BaselineNone,
		Prompt: Text{
			EN: fmt.Sprintf("Explain how you would carry out this duty: %s. Be precise about what you would do first.", duty),
			RU: fmt.Sprintf("Объясните, как вы будете выполнять эту обязанность: %s. Точно опишите, с чего начнёте.", duty),
		},
	}
	if hasExcerpt {
		accuracy.TaskType = "explain_source"
		accuracy.BaselineSource = models.BaselineKnowledge
		accuracy.Baseline = excerpt.Text
		accuracy.Prompt = Text{
			EN: fmt.Sprintf("Using only the passage below from %q, explain what it requires of you.\n\n%s", excerpt.Title, excerpt.Text),
			RU: fmt.Sprintf("Опираясь только на фрагмент из %q, объясните, что он от вас требует.\n\n%s", excerpt.Title, excerpt.Text),
		}
	}

	return []Task{
		{
			TaskType:       "deliverable",
			Competency:     CompetencyQuality,
			BaselineSource: models.BaselineNone,
			Prompt: Text{
				EN: fmt.Sprintf("Produce a short, ready-to-use deliverable for this duty: %s.", duty),
				RU: fmt.Sprintf("Подготовьте короткий готовый к использованию результат для обязанности: %s.", duty),
			},
		},
		accuracy,
		{
			TaskType:       "plan",
			Competency:     CompetencyCompleteness,
			BaselineSource: models.BaselineNone,
			Prompt: Text{
				EN: "List every step you would take in your first week in this role, including what you would ask for.",
				RU: "Перечислите все шаги на первой неделе в этой роли, включая то, что вы запросите.",
			},
		},
	}, nil
}

// EvaluationHint implements Generator
func (Generic) EvaluationHint(competency string) string {
	return genericHints[competency]
}
