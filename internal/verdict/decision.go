package verdict

import (
	"fmt"

	"github.com/spboyer/staffeval/internal/metrics"
	"github.com/spboyer/staffeval/internal/models"
)

const (
	// HistoryDepth is the number of assignment records the ladder reads.
	HistoryDepth = 3
	// previous holders averaged for the reject threshold
	previousHolders = 2
	// arbiter confidence above which a disagreement is noted
	overrideConfidence = 0.8
)

// AverageScore is the arithmetic mean of the per-criterion scores.
func AverageScore(scores map[string]float64) float64 {
	return metrics.Mean(metrics.MapValues(scores))
}

// BuildThresholds freezes the comparison values of the decision ladder.
// history must be ordered most recent first; only the first HistoryDepth
// records are read.
func BuildThresholds(candidateModel string, avg float64, history []models.AssignmentRecord) models.Thresholds {
	if len(history) > HistoryDepth {
		history = history[:HistoryDepth]
	}

	th := models.Thresholds{CandidateScore: avg}
	var prev []float64
	for _, rec := range history {
		switch {
		case rec.RemovedAt == nil && th.CurrentHolder == nil:
			th.CurrentHolder = &models.HolderSnapshot{ModelID: rec.ModelID, Score: rec.InterviewAvgScore}
		case rec.RemovedAt != nil && len(prev) < previousHolders:
			prev = append(prev, rec.InterviewAvgScore)
		}
	}
	if len(prev) > 0 {
		p := metrics.Mean(prev)
		th.PreviousAvg = &p
	}
	th.IsColdStart = th.CurrentHolder == nil
	th.IsSameModel = th.CurrentHolder != nil && th.CurrentHolder.ModelID == candidateModel
	return th
}

// Decide applies the decision ladder; the first matching rule wins.
//  1. no current holder: hire (cold start)
//  2. candidate beats the current holder: hire
//  3. candidate is below the previous holders' average: reject
//  4. otherwise: retest
func Decide(th models.Thresholds) (models.Decision, string) {
	avg := th.CandidateScore
	switch {
	case th.CurrentHolder == nil:
		return models.DecisionHire, fmt.Sprintf("cold start: no current holder, candidate scored %.2f", avg)
	case avg > th.CurrentHolder.Score:
		return models.DecisionHire, fmt.Sprintf("candidate scored %.2f, above current holder %s at %.2f", avg, th.CurrentHolder.ModelID, th.CurrentHolder.Score)
	case th.PreviousAvg != nil && avg < *th.PreviousAvg:
		return models.DecisionReject, fmt.Sprintf("candidate scored %.2f, below previous holders' average %.2f", avg, *th.PreviousAvg)
	default:
		return models.DecisionRetest, fmt.Sprintf("candidate scored %.2f, not above current holder %s at %.2f", avg, th.CurrentHolder.ModelID, th.CurrentHolder.Score)
	}
}

// OverrideNote returns a note when a confident arbiter disagreed with the
// computed decision, and "" otherwise. The note never changes the decision.
func OverrideNote(arbiter models.ArbiterResult, decision models.Decision) string {
	if arbiter.Confidence <= overrideConfidence || arbiter.Recommendation == "" || arbiter.Recommendation == decision {
		return ""
	}
	return fmt.Sprintf("arbiter recommended %s with confidence %.2f; computed decision %s kept",
		arbiter.Recommendation, arbiter.Confidence, decision)
}
