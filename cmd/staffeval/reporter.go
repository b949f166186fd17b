package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spboyer/staffeval/internal/events"
)

// progressPrinter renders pipeline events as one line each. Progress
// events are dropped unless verbose is set.
func progressPrinter(w io.Writer, verbose bool) events.Listener {
	var mu sync.Mutex
	return func(e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		if line := describe(e, verbose); line != "" {
			fmt.Fprintln(w, line) //nolint:errcheck
		}
	}
}

func describe(e events.Event, verbose bool) string {
	d := e.Data
	switch e.Type {
	case events.Start:
		switch {
		case d["total_steps"] != nil:
			return fmt.Sprintf("Running %v test steps", d["total_steps"])
		case d["total_configs"] != nil:
			return fmt.Sprintf("Deep analysis of step %v with %v configurations", d["step_index"], d["total_configs"])
		default:
			return fmt.Sprintf("Verdict for %v (%v)", d["candidate_model"], d["role"])
		}
	case events.StepStart:
		return fmt.Sprintf("  step %v [%v] ...", d["step_index"], d["competency"])
	case events.StepComplete:
		line := fmt.Sprintf("  step %v %v in %s, %v chunks", d["step_index"], d["status"], millis(d["elapsed_ms"]), d["token_count"])
		if msg, ok := d["error"]; ok {
			line += fmt.Sprintf(" (%v)", msg)
		}
		return line
	case events.StepSkipped:
		return fmt.Sprintf("  step %v skipped", d["step_index"])
	case events.Retry:
		return fmt.Sprintf("    retry %v for %v: %v (max_tokens=%v temperature=%v)",
			d["attempt"], d["config_label"], d["reason"], d["adjusted_max_tokens"], d["adjusted_temperature"])
	case events.StepProgress, events.VariantProgress:
		if !verbose {
			return ""
		}
		return fmt.Sprintf("    ... %v chunks", d["tokens"])
	case events.ConfigStart:
		return fmt.Sprintf("  variant %v ...", d["label"])
	case events.ConfigComplete:
		return fmt.Sprintf("  variant %v %v, %v chars after %v attempt(s)", d["label"], d["status"], d["text_length"], d["attempts"])
	case events.SynthesisStart:
		return fmt.Sprintf("  merging %v variants", d["variant_count"])
	case events.SynthesisComplete:
		if msg, ok := d["error"]; ok {
			return fmt.Sprintf("  merge failed (%v), using the longest variant", msg)
		}
		return fmt.Sprintf("  merged answer: %v chars", d["text_length"])
	case events.Phase:
		return fmt.Sprintf("  %v: %v", d["phase"], d["status"])
	case events.Complete:
		switch {
		case d["completed_steps"] != nil:
			return fmt.Sprintf("Completed %v/%v steps", d["completed_steps"], d["total_steps"])
		case d["total_variants"] != nil:
			return fmt.Sprintf("%v/%v variants succeeded, synthesis: %v", d["successful"], d["total_variants"], d["has_synthesis"])
		default:
			return fmt.Sprintf("Decision: %v (average %.2f)", d["auto_decision"], d["avg_score"])
		}
	case events.Error:
		return fmt.Sprintf("Error: %v", d["message"])
	}
	return ""
}

func millis(v any) string {
	switch n := v.(type) {
	case int64:
		return formatDuration(time.Duration(n) * time.Millisecond)
	case int:
		return formatDuration(time.Duration(n) * time.Millisecond)
	case float64:
		return formatDuration(time.Duration(n) * time.Millisecond)
	}
	return fmt.Sprint(v)
}
