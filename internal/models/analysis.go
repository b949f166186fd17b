package models

import "time"

// GenerationConfig is the base sampling and timeout configuration for one
// adaptive generation.
type GenerationConfig struct {
	MaxTokens     int     `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature   float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
	IdleTimeoutMs int     `json:"idle_timeout_ms" yaml:"idle_timeout_ms" mapstructure:"idle_timeout_ms"`
}

// IdleTimeout returns IdleTimeoutMs as a duration.
func (c GenerationConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}

// GenerationStatus classifies the text an adaptive generation returned.
type GenerationStatus string

const (
	GenerationCompleted GenerationStatus = "completed"
	GenerationTruncated GenerationStatus = "truncated"
	GenerationFailed    GenerationStatus = "failed"
)

// Successful reports whether the generation produced usable text.
func (s GenerationStatus) Successful() bool {
	return s == GenerationCompleted || s == GenerationTruncated
}

// VariantConfig is one configuration of a multi-variant synthesis run.
type VariantConfig struct {
	Label string `json:"label" mapstructure:"label"`
	// SystemPrompt replaces the session system text for this variant when set.
	SystemPrompt string           `json:"system_prompt,omitempty" mapstructure:"system_prompt"`
	Adversarial  bool             `json:"adversarial,omitempty" mapstructure:"adversarial"`
	Generation   GenerationConfig `json:"generation" mapstructure:"generation"`
}

// Variant is the recorded output of one configuration.
type Variant struct {
	ConfigIndex int              `json:"config_index"`
	Label       string           `json:"label"`
	Adversarial bool             `json:"adversarial,omitempty"`
	Status      GenerationStatus `json:"status"`
	Text        string           `json:"text"`
	TokenCount  int              `json:"token_count"`
	ElapsedMs   int64            `json:"elapsed_ms"`
	Attempts    int              `json:"attempts"`
	Error       string           `json:"error,omitempty"`
}

// SynthesisSource says how the final text of a deep analysis was produced.
type SynthesisSource string

const (
	SourceNone            SynthesisSource = "none"
	SourceSingleVariant   SynthesisSource = "single_variant"
	SourceSynthesis       SynthesisSource = "synthesis"
	SourceLongestFallback SynthesisSource = "longest_variant_fallback"
)

// SynthesisResult is the output of the merge pass.
type SynthesisResult struct {
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	Error      string `json:"error,omitempty"`
}

// DeepAnalysisRun is an immutable record of one synthesis engine run.
type DeepAnalysisRun struct {
	ID             string           `json:"id"`
	StepIndex      int              `json:"step_index"`
	Configs        []VariantConfig  `json:"configs"`
	Variants       []Variant        `json:"variants"`
	Synthesis      *SynthesisResult `json:"synthesis,omitempty"`
	FinalText      string           `json:"final_text"`
	Source         SynthesisSource  `json:"source"`
	Successful     int              `json:"successful"`
	StartedAt      time.Time        `json:"started_at"`
	TotalElapsedMs int64            `json:"total_elapsed_ms"`
}
