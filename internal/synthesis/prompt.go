package synthesis

import (
	"fmt"
	"strings"

	"github.com/spboyer/staffeval/internal/models"
)

// BuildPrompt assembles the synthesis prompt from the successful variants.
// Adversarial variants are quoted as objections, never as answers.
func BuildPrompt(task string, variants []models.Variant) string {
	var sb strings.Builder
	sb.WriteString("## Task\n\n")
	sb.WriteString(strings.TrimSpace(task))
	sb.WriteString("\n\n")

	n := 0
	for _, v := range variants {
		if v.Adversarial {
			continue
		}
		n++
		fmt.Fprintf(&sb, "## Answer %d (%s)\n\n%s\n\n", n, v.Label, strings.TrimSpace(v.Text))
	}

	var objections []models.Variant
	for _, v := range variants {
		if v.Adversarial {
			objections = append(objections, v)
		}
	}
	if len(objections) > 0 {
		sb.WriteString("## Reviewer objections\n\n")
		for _, v := range objections {
			sb.WriteString(strings.TrimSpace(v.Text))
			sb.WriteString("\n\n")
		}
		sb.WriteString("Address every valid objection above in the final answer. ")
		sb.WriteString("Do not ignore an objection because the answers above disagree with it.\n\n")
	}

	sb.WriteString("## Instructions\n\nWrite the single best final answer to the task.")
	return sb.String()
}
