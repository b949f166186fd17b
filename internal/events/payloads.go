package events

// RunStartData is the payload of a test run's start event.
func RunStartData(totalSteps int) map[string]any {
	return map[string]any{"total_steps": totalSteps}
}

// StepStartData returns event data for a step start.
func StepStartData(stepIndex int, competency string) map[string]any {
	return map[string]any{
		"step_index": stepIndex,
		"competency": competency,
	}
}

// StepProgressData returns event data for periodic step progress.
func StepProgressData(stepIndex, attempt, tokens int) map[string]any {
	return map[string]any{
		"step_index": stepIndex,
		"attempt":    attempt,
		"tokens":     tokens,
	}
}

// StepCompleteData returns event data for a finished step. errMsg is only
// included when non-empty.
func StepCompleteData(stepIndex int, status string, elapsedMs int64, tokenCount int, errMsg string) map[string]any {
	d := map[string]any{
		"step_index":  stepIndex,
		"status":      status,
		"elapsed_ms":  elapsedMs,
		"token_count": tokenCount,
	}
	if errMsg != "" {
		d["error"] = errMsg
	}
	return d
}

// StepSkippedData returns event data for a step skipped after cancellation.
func StepSkippedData(stepIndex int) map[string]any {
	return map[string]any{"step_index": stepIndex}
}

// RunCompleteData is the terminal payload of a test run.
func RunCompleteData(totalSteps, completedSteps int, cancelled bool) map[string]any {
	return map[string]any{
		"total_steps":     totalSteps,
		"completed_steps": completedSteps,
		"cancelled":       cancelled,
	}
}

// RetryData returns event data for an adaptive retry.
func RetryData(label string, attempt, maxTokens int, temperature float64, reason string) map[string]any {
	return map[string]any{
		"config_label":         label,
		"attempt":              attempt,
		"adjusted_max_tokens":  maxTokens,
		"adjusted_temperature": temperature,
		"reason":               reason,
	}
}

// VariantProgressData returns event data for streaming progress inside one
// adaptive generation.
func VariantProgressData(label string, attempt, tokens int) map[string]any {
	return map[string]any{
		"config_label": label,
		"attempt":      attempt,
		"tokens":       tokens,
	}
}

// SynthesisStartRunData is the start payload of a deep analysis run.
func SynthesisStartRunData(stepIndex int, labels []string) map[string]any {
	return map[string]any{
		"step_index":    stepIndex,
		"total_configs": len(labels),
		"configs":       labels,
	}
}

// ConfigStartData returns event data for a variant configuration start.
func ConfigStartData(index int, label string) map[string]any {
	return map[string]any{
		"config_index": index,
		"label":        label,
	}
}

// ConfigCompleteData returns event data for a finished variant.
func ConfigCompleteData(index int, label, status string, tokenCount int, elapsedMs int64, attempts, textLength int) map[string]any {
	return map[string]any{
		"config_index": index,
		"label":        label,
		"status":       status,
		"token_count":  tokenCount,
		"elapsed_ms":   elapsedMs,
		"attempts":     attempts,
		"text_length":  textLength,
	}
}

// SynthesisStartData returns event data for the merge pass start.
func SynthesisStartData(variantCount int) map[string]any {
	return map[string]any{"variant_count": variantCount}
}

// SynthesisCompleteData returns event data for the merge pass end.
func SynthesisCompleteData(tokenCount int, elapsedMs int64, textLength int, errMsg string) map[string]any {
	d := map[string]any{
		"token_count": tokenCount,
		"elapsed_ms":  elapsedMs,
		"text_length": textLength,
	}
	if errMsg != "" {
		d["error"] = errMsg
	}
	return d
}

// SynthesisRunCompleteData is the terminal payload of a deep analysis run.
func SynthesisRunCompleteData(totalVariants, successful int, hasSynthesis bool, totalElapsedMs int64) map[string]any {
	return map[string]any{
		"total_variants":   totalVariants,
		"successful":       successful,
		"has_synthesis":    hasSynthesis,
		"total_elapsed_ms": totalElapsedMs,
	}
}

// VerdictStartData is the start payload of a verdict run.
func VerdictStartData(sessionID, role, candidateModel string, phases []string) map[string]any {
	return map[string]any{
		"session_id":      sessionID,
		"role":            role,
		"candidate_model": candidateModel,
		"phases":          phases,
	}
}

// PhaseData returns event data for a verdict phase transition. Extra keys
// (result, verdict) are merged in.
func PhaseData(phase, status string, extra map[string]any) map[string]any {
	d := map[string]any{
		"phase":  phase,
		"status": status,
	}
	for k, v := range extra {
		d[k] = v
	}
	return d
}

// VerdictCompleteData is the terminal payload of a verdict run.
func VerdictCompleteData(sessionID, autoDecision string, avgScore float64) map[string]any {
	return map[string]any{
		"session_id":    sessionID,
		"auto_decision": autoDecision,
		"avg_score":     avgScore,
	}
}

// ErrorData returns event data for a terminal error event.
func ErrorData(message string) map[string]any {
	return map[string]any{"message": message}
}
