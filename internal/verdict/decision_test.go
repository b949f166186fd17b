package verdict

import (
	"testing"
	"time"

	"github.com/spboyer/staffeval/internal/models"
	"github.com/spboyer/staffeval/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func holder(score float64) *models.HolderSnapshot {
	return &models.HolderSnapshot{ModelID: "incumbent", Score: score}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		th   models.Thresholds
		want models.Decision
	}{
		{"cold start low score", models.Thresholds{CandidateScore: 1}, models.DecisionHire},
		{"cold start high score", models.Thresholds{CandidateScore: 9.5}, models.DecisionHire},
		{"cold start ignores previous average", models.Thresholds{CandidateScore: 2, PreviousAvg: utils.Ptr(8.0)}, models.DecisionHire},
		{"beats holder", models.Thresholds{CandidateScore: 7.8, CurrentHolder: holder(7.0)}, models.DecisionHire},
		{"below previous average", models.Thresholds{CandidateScore: 5.0, CurrentHolder: holder(6.0), PreviousAvg: utils.Ptr(6.5)}, models.DecisionReject},
		{"tie with holder is retest", models.Thresholds{CandidateScore: 6.0, CurrentHolder: holder(6.0), PreviousAvg: utils.Ptr(5.0)}, models.DecisionRetest},
		{"below holder without previous", models.Thresholds{CandidateScore: 4.0, CurrentHolder: holder(6.0)}, models.DecisionRetest},
		{"equal to previous average", models.Thresholds{CandidateScore: 5.0, CurrentHolder: holder(6.0), PreviousAvg: utils.Ptr(5.0)}, models.DecisionRetest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := Decide(tt.th)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, reason)
		})
	}
}

func TestDecide_ColdStartAnyScore(t *testing.T) {
	for score := 0.0; score <= 10; score += 0.25 {
		got, _ := Decide(models.Thresholds{CandidateScore: score})
		require.Equal(t, models.DecisionHire, got, "score %.2f", score)
	}
}

func TestBuildThresholds(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	removed := func(d int) *time.Time { r := base.AddDate(0, 0, d); return &r }

	t.Run("empty history is a cold start", func(t *testing.T) {
		th := BuildThresholds("cand", 6.5, nil)
		assert.True(t, th.IsColdStart)
		assert.Nil(t, th.CurrentHolder)
		assert.Nil(t, th.PreviousAvg)
		assert.InDelta(t, 6.5, th.CandidateScore, 1e-9)
	})

	t.Run("holder and previous average", func(t *testing.T) {
		th := BuildThresholds("cand", 6, []models.AssignmentRecord{
			{ModelID: "m3", InterviewAvgScore: 7},
			{ModelID: "m2", InterviewAvgScore: 6, RemovedAt: removed(30)},
			{ModelID: "m1", InterviewAvgScore: 5, RemovedAt: removed(10)},
		})
		require.NotNil(t, th.CurrentHolder)
		assert.Equal(t, "m3", th.CurrentHolder.ModelID)
		assert.InDelta(t, 7, th.CurrentHolder.Score, 1e-9)
		require.NotNil(t, th.PreviousAvg)
		assert.InDelta(t, 5.5, *th.PreviousAvg, 1e-9)
		assert.False(t, th.IsColdStart)
		assert.False(t, th.IsSameModel)
	})

	t.Run("only three records are read", func(t *testing.T) {
		th := BuildThresholds("m4", 6, []models.AssignmentRecord{
			{ModelID: "m4", InterviewAvgScore: 7, RemovedAt: removed(40)},
			{ModelID: "m3", InterviewAvgScore: 6, RemovedAt: removed(30)},
			{ModelID: "m2", InterviewAvgScore: 5, RemovedAt: removed(20)},
			{ModelID: "m1", InterviewAvgScore: 1},
		})
		assert.Nil(t, th.CurrentHolder, "the open record is outside the window")
		require.NotNil(t, th.PreviousAvg)
		assert.InDelta(t, 6.5, *th.PreviousAvg, 1e-9, "at most two previous holders")
	})

	t.Run("same model", func(t *testing.T) {
		th := BuildThresholds("m1", 6, []models.AssignmentRecord{{ModelID: "m1", InterviewAvgScore: 6}})
		assert.True(t, th.IsSameModel)
	})
}

func TestAverageScore(t *testing.T) {
	assert.InDelta(t, 7.0, AverageScore(map[string]float64{"a": 6, "b": 8}), 1e-9)
	assert.Zero(t, AverageScore(nil))
}

func TestOverrideNote(t *testing.T) {
	confident := models.ArbiterResult{Recommendation: models.DecisionReject, Confidence: 0.9}
	assert.Contains(t, OverrideNote(confident, models.DecisionHire), "arbiter recommended reject")
	assert.Empty(t, OverrideNote(confident, models.DecisionReject), "agreement")

	unsure := models.ArbiterResult{Recommendation: models.DecisionReject, Confidence: 0.8}
	assert.Empty(t, OverrideNote(unsure, models.DecisionHire), "threshold is exclusive")
}
