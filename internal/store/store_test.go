package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/ticketfill/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSubmissionLifecycle(t *testing.T) {
	s := newTestStore(t)
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	id, err := s.BeginSubmission("alice", start)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	_, ok, err := s.LastOutcome("alice")
	require.NoError(t, err)
	assert.False(t, ok, "a running submission has no outcome yet")

	require.NoError(t, s.CompleteSubmission(id, types.Result{
		Target:    types.Target{Identifier: "alice"},
		Outcome:   types.Confirmed,
		Filled:    []string{"email", "username"},
		Missing:   []string{"phone"},
		Submitted: true,
	}))

	outcome, ok, err := s.LastOutcome("alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.Confirmed, outcome)

	subs, err := s.RecentSubmissions(10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "alice", subs[0].Target)
	assert.True(t, subs[0].StartedAt.Equal(start))
	assert.NotNil(t, subs[0].CompletedAt)
	assert.Equal(t, AttemptLog{Filled: []string{"email", "username"}, Missing: []string{"phone"}, Submitted: true}, subs[0].Log)
}

func TestRecentSubmissionsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, target := range []string{"alice", "bob", "alice"} {
		id, err := s.BeginSubmission(target, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		outcome := types.TimedOut
		if i == 2 {
			outcome = types.Confirmed
		}
		require.NoError(t, s.CompleteSubmission(id, types.Result{Outcome: outcome, Error: "x"}))
	}

	subs, err := s.RecentSubmissions(2)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, []string{"alice", "bob"}, []string{subs[0].Target, subs[1].Target})
	assert.Equal(t, string(types.Confirmed), subs[0].Status)
	assert.Equal(t, "x", subs[1].ErrorMessage)

	outcome, ok, err := s.LastOutcome("alice")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.Confirmed, outcome)

	_, ok, err = s.LastOutcome("carol")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompleteUnknownSubmission(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.CompleteSubmission("missing", types.Result{Outcome: types.Failed}))
}

func TestSavePageDump(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dumps")

	path, err := SavePageDump(dir, 2, "bob/../x y", "<html></html>")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "page_dump_2_bob_.._x_y.html"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))

	latest, err := LatestDump(dir)
	require.NoError(t, err)
	assert.Equal(t, path, latest)
}

func TestLatestDumpEmpty(t *testing.T) {
	_, err := LatestDump(t.TempDir())
	assert.Error(t, err)
}

func TestRecentSubmissionsRejectsCorruptLog(t *testing.T) {
	s := newTestStore(t)
	id, err := s.BeginSubmission("alice", time.Now())
	require.NoError(t, err)
	_, err = s.db.Exec(`UPDATE submissions SET status = ?, log_entries = ? WHERE id = ?`, "confirmed", "{not json", id)
	require.NoError(t, err)

	_, err = s.RecentSubmissions(10)
	assert.ErrorContains(t, err, "corrupt attempt log")
	assert.ErrorContains(t, err, id)
}

func TestChallengeIsRecorded(t *testing.T) {
	s := newTestStore(t)
	id, err := s.BeginSubmission("alice", time.Now())
	require.NoError(t, err)
	require.NoError(t, s.CompleteSubmission(id, types.Result{
		Outcome:    types.TimedOut,
		Challenged: true,
		Error:      "verification challenge not cleared",
	}))

	subs, err := s.RecentSubmissions(1)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Log.Challenged)
	assert.Equal(t, "verification challenge not cleared", subs[0].ErrorMessage)

	outcome, ok := subs[0].Outcome()
	require.True(t, ok)
	assert.Equal(t, types.TimedOut, outcome)
}

func TestOutcomeOfRunningSubmission(t *testing.T) {
	_, ok := Submission{Status: StatusRunning}.Outcome()
	assert.False(t, ok)
}
