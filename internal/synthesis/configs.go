package synthesis

import "github.com/spboyer/staffeval/internal/models"

// Labels of the built-in configurations.
const (
	LabelPrecise        = "precise"
	LabelBalanced       = "balanced"
	LabelCreative       = "creative"
	LabelDevilsAdvocate = "devils_advocate"
)

const devilsAdvocatePrompt = `You are a skeptical reviewer acting as devil's advocate.
Answer the task, but concentrate on what could go wrong: missing information,
wrong assumptions, risks, weak reasoning and reasons a careful reviewer would
reject a typical answer. List concrete objections, one per line, and keep each
objection specific to the task.`

const synthesizerPrompt = `You merge several candidate answers to the same task into one final answer.
Keep what the answers agree on, resolve contradictions in favour of the best
supported claim and drop filler. Objections from the reviewer must be honored
when they are valid: correct or qualify the affected parts instead of
defaulting to an optimistic merge. Reply with the final answer only.`

// DefaultConfigs returns three voice configurations and one adversarial
// configuration derived from base.
func DefaultConfigs(base models.GenerationConfig) []models.VariantConfig {
	with := func(temp float64) models.GenerationConfig {
		cfg := base
		cfg.Temperature = temp
		return cfg
	}
	return []models.VariantConfig{
		{Label: LabelPrecise, Generation: with(0.2)},
		{Label: LabelBalanced, Generation: with(0.7)},
		{Label: LabelCreative, Generation: with(1.0)},
		{Label: LabelDevilsAdvocate, SystemPrompt: devilsAdvocatePrompt, Adversarial: true, Generation: with(0.7)},
	}
}
