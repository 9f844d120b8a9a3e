package history

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prettymuchbryce/kpicheck/internal/scan"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func intp(v int) *int { return &v }

func TestRecordRun_RoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	started := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	results := []scan.CheckResult{
		{FilePath: "/docs/a.docx", Status: scan.StatusCompliant, HasKPI: true, Score: intp(90)},
		{FilePath: "/docs/b.docx", Status: scan.StatusNonCompliant},
		{FilePath: "/docs/c.docx", Status: scan.StatusCompliant, HasKPI: true, Score: intp(85)},
		{FilePath: "/docs/d.docx", Status: scan.StatusUnreadable, Err: errors.New("corrupt")},
	}
	id, err := s.RecordRun(ctx, started, "/docs", results, 1)
	require.NoError(t, err)

	runs, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	run := runs[0]
	assert.Equal(t, id, run.ID)
	assert.True(t, started.Equal(run.StartedAt))
	assert.Equal(t, "/docs", run.Root)
	assert.Equal(t, 4, run.Total)
	assert.Equal(t, 2, run.Compliant)
	assert.Equal(t, 1, run.NonCompliant)
	assert.Equal(t, 1, run.Unreadable)
	assert.Equal(t, 1, run.Fixed)
	require.NotNil(t, run.AverageScore)
	assert.InDelta(t, 87.5, *run.AverageScore, 0.001)

	files, err := s.Files(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []File{
		{Path: "/docs/a.docx", Status: scan.StatusCompliant, Score: intp(90)},
		{Path: "/docs/b.docx", Status: scan.StatusNonCompliant},
		{Path: "/docs/c.docx", Status: scan.StatusCompliant, Score: intp(85)},
		{Path: "/docs/d.docx", Status: scan.StatusUnreadable},
	}, files)
}

func TestRecentRuns_NewestFirstAndLimit(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	for i := range 3 {
		_, err := s.RecordRun(ctx, base.AddDate(0, 0, i), "/docs", nil, 0)
		require.NoError(t, err)
	}

	runs, err := s.RecentRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, base.AddDate(0, 0, 2).Equal(runs[0].StartedAt))
	assert.True(t, base.AddDate(0, 0, 1).Equal(runs[1].StartedAt))
	assert.Nil(t, runs[0].AverageScore, "a run without scores has no average")
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.RecordRun(context.Background(), time.Now(), "/docs", nil, 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.RecentRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestOpen_DriverError(t *testing.T) {
	orig := openDB
	t.Cleanup(func() { openDB = orig })
	openDB = func(string, string) (*sql.DB, error) {
		return nil, errors.New("boom")
	}

	_, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history: open database")
}
