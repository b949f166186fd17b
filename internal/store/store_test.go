package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spboyer/staffeval/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func implementations(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "db", "staffeval.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func newSession(id string, created time.Time) *models.InterviewSession {
	return &models.InterviewSession{
		ID:             id,
		Role:           "secretary",
		CandidateModel: "gpt-4o",
		Status:         models.SessionBriefing,
		BriefingData:   models.BriefingData{Duties: []string{"calendar"}, Language: "en"},
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for name, st := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			s := newSession("s1", base)
			require.NoError(t, st.Create(ctx, s))
			require.ErrorIs(t, st.Create(ctx, s), ErrSessionExists)

			got, err := st.Get(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "gpt-4o", got.CandidateModel)
			assert.Equal(t, []string{"calendar"}, got.BriefingData.Duties)

			// returned copies are detached from the store
			got.Role = "mutated"
			again, err := st.Get(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "secretary", again.Role)

			_, err = st.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrSessionNotFound)
			require.ErrorIs(t, st.Save(ctx, newSession("missing", base)), ErrSessionNotFound)
		})
	}
}

func TestSessionStore_SaveIsForwardOnly(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for name, st := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			s := newSession("s1", base)
			require.NoError(t, st.Create(ctx, s))

			s.TestResults = &models.TestResults{TotalSteps: 1, CompletedSteps: 1, StartedAt: base}
			require.NoError(t, s.AdvanceTo(models.SessionTested, base.Add(time.Minute)))
			require.NoError(t, st.Save(ctx, s))

			// same status saves are allowed (deep analysis appends)
			s.Config.DeepAnalysis = append(s.Config.DeepAnalysis, models.DeepAnalysisRun{ID: "run-1"})
			require.NoError(t, st.Save(ctx, s))

			stale := newSession("s1", base)
			require.ErrorIs(t, st.Save(ctx, stale), models.ErrInvalidTransition)

			got, err := st.Get(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, models.SessionTested, got.Status)
			require.Len(t, got.Config.DeepAnalysis, 1)
			require.NotNil(t, got.TestResults)
			assert.Equal(t, 1, got.TestResults.CompletedSteps)
		})
	}
}

func TestSessionStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for name, st := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.Create(ctx, newSession("old", base)))
			require.NoError(t, st.Create(ctx, newSession("new", base.Add(time.Hour))))

			list, err := st.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "new", list[0].ID)
			assert.Equal(t, "old", list[1].ID)
		})
	}
}

func TestHistoryStore(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for name, st := range implementations(t) {
		t.Run(name, func(t *testing.T) {
			removed := base.Add(48 * time.Hour)
			for i, rec := range []models.AssignmentRecord{
				{Role: "critic", ModelID: "m1", AssignedAt: base, RemovedAt: &removed, InterviewAvgScore: 6},
				{Role: "critic", ModelID: "m2", AssignedAt: base.Add(72 * time.Hour), InterviewAvgScore: 7},
				{Role: "analyst", ModelID: "m3", AssignedAt: base.Add(96 * time.Hour), InterviewAvgScore: 8},
			} {
				require.NoError(t, st.Record(ctx, rec), i)
			}

			recent, err := st.RecentAssignments(ctx, "critic", 3)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "m2", recent[0].ModelID)
			assert.Nil(t, recent[0].RemovedAt)
			require.NotNil(t, recent[1].RemovedAt)
			assert.True(t, recent[1].RemovedAt.Equal(removed))

			limited, err := st.RecentAssignments(ctx, "critic", 1)
			require.NoError(t, err)
			require.Len(t, limited, 1)

			closedAt := base.Add(100 * time.Hour)
			require.NoError(t, st.CloseCurrent(ctx, "critic", closedAt))
			recent, err = st.RecentAssignments(ctx, "critic", 3)
			require.NoError(t, err)
			require.NotNil(t, recent[0].RemovedAt)
			assert.True(t, recent[0].RemovedAt.Equal(closedAt))
			assert.True(t, recent[1].RemovedAt.Equal(removed), "already closed records keep their date")

			other, err := st.RecentAssignments(ctx, "analyst", 3)
			require.NoError(t, err)
			require.Len(t, other, 1)
			assert.Nil(t, other[0].RemovedAt)

			none, err := st.RecentAssignments(ctx, "nobody", 3)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestSQLiteStore_WriteAheadLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staffeval.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), newSession("s1", time.Now())))
	require.NoError(t, s.Close())

	// journal mode is persistent, so a reopened file still reports it
	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	var mode string
	require.NoError(t, reopened.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	got, err := reopened.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "secretary", got.Role)
}
