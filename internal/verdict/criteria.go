// Package verdict scores a tested session and decides hire, reject or
// retest against the role's assignment history.
package verdict

import "github.com/spboyer/staffeval/internal/taskgen"

// DefaultCriteria is used for roles without an entry in the table.
var DefaultCriteria = []string{taskgen.CompetencyQuality, taskgen.CompetencyAccuracy, taskgen.CompetencyCompleteness}

var roleCriteria = map[string][]string{
	taskgen.RoleSecretary:      {"summarization", "communication", "organization", "attention_to_detail", "prioritization"},
	taskgen.RoleCritic:         {"critical_thinking", "rigor", "objectivity", "calibration"},
	taskgen.RoleAnalyst:        {"analysis", "insight", "risk_assessment", "actionability"},
	taskgen.RolePromptEngineer: {"prompt_quality", "instruction_design", "diagnosis"},
}

// Criterion is one equally weighted scoring dimension.
type Criterion struct {
	Name   string
	Weight float64
	Hint   string
}

// CriteriaFor returns the equally weighted criteria of role.
func CriteriaFor(role string, reg *taskgen.Registry) []Criterion {
	names, ok := roleCriteria[role]
	if !ok {
		names = DefaultCriteria
	}
	out := make([]Criterion, len(names))
	for i, n := range names {
		out[i] = Criterion{Name: n, Weight: 1 / float64(len(names))}
		if reg != nil {
			out[i].Hint = reg.For(role).EvaluationHint(n)
		}
	}
	return out
}

func criterionNames(cs []Criterion) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}
