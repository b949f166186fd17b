package verdict

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spboyer/staffeval/internal/audit"
	"github.com/spboyer/staffeval/internal/events"
	"github.com/spboyer/staffeval/internal/memory"
	"github.com/spboyer/staffeval/internal/models"
	"github.com/spboyer/staffeval/internal/store"
	"github.com/spboyer/staffeval/internal/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var clock = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

type recordingMemory struct {
	entries []memory.Entry
	err     error
}

func (m *recordingMemory) Write(_ context.Context, e memory.Entry) error {
	m.entries = append(m.entries, e)
	return m.err
}

type failingArchiver struct{ calls int }

func (a *failingArchiver) Archive(context.Context, audit.Record) (string, error) {
	a.calls++
	return "", errors.New("archive offline")
}

func seed(t *testing.T, sessions store.SessionStore, s *models.InterviewSession) {
	t.Helper()
	s.CreatedAt, s.UpdatedAt = clock, clock
	require.NoError(t, sessions.Create(context.Background(), s))
}

func newVerdictEngine(sessions store.SessionStore, history store.HistoryStore, replies map[string]string, opts ...EngineOption) *Engine {
	eng := fastEngine(byModel(replies))
	opts = append([]EngineOption{WithClock(func() time.Time { return clock })}, opts...)
	return New(sessions, history, NewArbiter(eng, []string{"judge-a", "judge-b"}), NewModerator(eng, "mod"), opts...)
}

func TestRun_HireAboveHolder(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := mocks.NewMockHistoryStore(ctrl)
	history.EXPECT().
		RecentAssignments(gomock.Any(), "tester", HistoryDepth).
		Return([]models.AssignmentRecord{{Role: "tester", ModelID: "incumbent", InterviewAvgScore: 6.5}}, nil)

	sessions := store.NewMemoryStore()
	seed(t, sessions, testSession())
	mem := &recordingMemory{}
	e := newVerdictEngine(sessions, history, map[string]string{"judge-a": validReply, "mod": "Strong candidate overall."}, WithMemory(mem))
	rec := &events.Recorder{}

	v, err := e.Run(context.Background(), "s1", rec.Listen)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionHire, v.AutoDecision)
	assert.InDelta(t, 7.0, v.Thresholds.CandidateScore, 1e-9)
	require.NotNil(t, v.Thresholds.CurrentHolder)
	assert.Equal(t, "incumbent", v.Thresholds.CurrentHolder.ModelID)
	assert.Equal(t, "Strong candidate overall.", v.ModeratorSummary)
	assert.Empty(t, v.OverrideNote, "arbiter agreed")
	assert.Equal(t, "judge-a", v.Arbiter.Model)

	assert.Equal(t, []events.Type{
		events.Start,
		events.Phase, events.Phase,
		events.Phase, events.Phase,
		events.Phase, events.Phase,
		events.Complete,
	}, rec.Types())
	phases := rec.OfType(events.Phase)
	assert.Equal(t, PhaseArbiter, phases[0].Data["phase"])
	assert.Equal(t, "running", phases[0].Data["status"])
	assert.Contains(t, phases[1].Data, "result")
	assert.Equal(t, PhaseDecision, phases[5].Data["phase"])
	assert.Contains(t, phases[5].Data, "verdict")
	final := rec.OfType(events.Complete)[0]
	assert.Equal(t, "hire", final.Data["auto_decision"])
	assert.InDelta(t, 7.0, final.Data["avg_score"], 1e-9)

	stored, err := sessions.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionVerdict, stored.Status)
	require.NotNil(t, stored.Verdict)
	assert.Equal(t, models.DecisionHire, stored.Verdict.AutoDecision)
	assert.Nil(t, stored.FinalDecision)

	require.Len(t, mem.entries, 1)
	assert.Equal(t, "tester", mem.entries[0].Role)
	assert.Equal(t, memory.TypeExperience, mem.entries[0].MemoryType)
	assert.Equal(t, "s1", mem.entries[0].Metadata["session_id"])
	assert.InDelta(t, 0.85, mem.entries[0].ConfidenceScore, 1e-9)
}

func TestRun_RejectWithOverrideNote(t *testing.T) {
	removed := clock.Add(-24 * time.Hour)
	sessions := store.NewMemoryStore()
	seed(t, sessions, testSession())
	require.NoError(t, sessions.Record(context.Background(), models.AssignmentRecord{Role: "tester", ModelID: "old", AssignedAt: clock.Add(-72 * time.Hour), RemovedAt: &removed, InterviewAvgScore: 8}))
	require.NoError(t, sessions.Record(context.Background(), models.AssignmentRecord{Role: "tester", ModelID: "incumbent", AssignedAt: removed, InterviewAvgScore: 7.5}))

	e := newVerdictEngine(sessions, sessions, map[string]string{"judge-a": validReply, "mod": "Good."})
	v, err := e.Run(context.Background(), "s1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionReject, v.AutoDecision)
	require.NotNil(t, v.Thresholds.PreviousAvg)
	assert.InDelta(t, 8, *v.Thresholds.PreviousAvg, 1e-9)
	assert.Contains(t, v.OverrideNote, "arbiter recommended hire")
}

func TestRun_DegradedCollaborators(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := mocks.NewMockHistoryStore(ctrl)
	history.EXPECT().RecentAssignments(gomock.Any(), "tester", HistoryDepth).Return(nil, nil)

	sessions := store.NewMemoryStore()
	seed(t, sessions, testSession())
	mem := &recordingMemory{err: errors.New("nats down")}
	arch := &failingArchiver{}
	// no evaluator or moderator answers
	e := newVerdictEngine(sessions, history, nil, WithMemory(mem), WithArchiver(arch))

	v, err := e.Run(context.Background(), "s1", nil)
	require.NoError(t, err, "collaborator failures never fail the verdict")
	assert.True(t, v.Arbiter.Synthetic)
	assert.Equal(t, v.Arbiter.Comment, v.ModeratorSummary)
	assert.Equal(t, models.DecisionHire, v.AutoDecision, "cold start")
	assert.True(t, v.Thresholds.IsColdStart)
	assert.Len(t, mem.entries, 1)
	assert.Equal(t, 1, arch.calls)
}

func TestRun_Preconditions(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := mocks.NewMockHistoryStore(ctrl)
	sessions := store.NewMemoryStore()

	briefing := testSession()
	briefing.ID = "briefing"
	briefing.Status = models.SessionBriefing
	seed(t, sessions, briefing)

	nothing := testSession()
	nothing.ID = "nothing"
	nothing.TestResults.Steps[0].Status = models.StepFailed
	seed(t, sessions, nothing)

	e := newVerdictEngine(sessions, history, nil)
	for _, id := range []string{"briefing", "nothing"} {
		_, err := e.Run(context.Background(), id, nil)
		require.ErrorIs(t, err, models.ErrStateConflict, id)
	}
	_, err := e.Run(context.Background(), "missing", nil)
	require.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestRun_HistoryError(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := mocks.NewMockHistoryStore(ctrl)
	history.EXPECT().RecentAssignments(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("db locked"))

	sessions := store.NewMemoryStore()
	seed(t, sessions, testSession())
	e := newVerdictEngine(sessions, history, nil)

	_, err := e.Run(context.Background(), "s1", nil)
	require.ErrorContains(t, err, "db locked")
	stored, err := sessions.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionTested, stored.Status)
}

func verdictSession(t *testing.T, sessions store.SessionStore) {
	t.Helper()
	s := testSession()
	s.Status = models.SessionVerdict
	s.Verdict = &models.Verdict{AutoDecision: models.DecisionHire, Thresholds: models.Thresholds{CandidateScore: 7.25}}
	seed(t, sessions, s)
}

func TestConfirm_HireRecordsAssignment(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := mocks.NewMockHistoryStore(ctrl)
	gomock.InOrder(
		history.EXPECT().CloseCurrent(gomock.Any(), "tester", clock).Return(nil),
		history.EXPECT().Record(gomock.Any(), models.AssignmentRecord{
			Role: "tester", ModelID: "cand", AssignedAt: clock, InterviewAvgScore: 7.25,
		}).Return(nil),
	)

	sessions := store.NewMemoryStore()
	verdictSession(t, sessions)
	e := newVerdictEngine(sessions, history, nil)

	sess, err := e.Confirm(context.Background(), "s1", models.DecisionHire, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.SessionDecided, sess.Status)
	require.NotNil(t, sess.FinalDecision)
	assert.Equal(t, models.DecisionHire, *sess.FinalDecision)
	assert.Equal(t, "alice", *sess.DecidedBy)
	assert.True(t, sess.DecidedAt.Equal(clock))

	_, err = e.Confirm(context.Background(), "s1", models.DecisionHire, "alice")
	require.ErrorIs(t, err, models.ErrStateConflict, "already decided")
}

func TestConfirm_RejectLeavesHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := mocks.NewMockHistoryStore(ctrl)

	sessions := store.NewMemoryStore()
	verdictSession(t, sessions)
	e := newVerdictEngine(sessions, history, nil)

	sess, err := e.Confirm(context.Background(), "s1", models.DecisionReject, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.DecisionReject, *sess.FinalDecision)
}

func TestConfirm_HistoryFailureKeepsVerdictStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	history := mocks.NewMockHistoryStore(ctrl)
	history.EXPECT().CloseCurrent(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	sessions := store.NewMemoryStore()
	verdictSession(t, sessions)
	e := newVerdictEngine(sessions, history, nil)

	_, err := e.Confirm(context.Background(), "s1", models.DecisionHire, "carol")
	require.ErrorContains(t, err, "disk full")
	stored, err := sessions.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionVerdict, stored.Status)
}
