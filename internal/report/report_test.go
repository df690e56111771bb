package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/ticketfill/internal/types"
)

func TestBuildListsAttentionFirst(t *testing.T) {
	b, err := New()
	require.NoError(t, err)
	b.now = func() time.Time { return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC) }

	r, err := b.Build([]types.Result{
		{Target: types.Target{Identifier: "alice"}, Outcome: types.Confirmed, Filled: []string{"a", "b"}, Duration: 3 * time.Second},
		{Target: types.Target{Identifier: "bob"}, Outcome: types.TimedOut, Missing: []string{"phone"}, Duration: 2 * time.Minute},
		{Target: types.Target{Identifier: "<carol>"}, Outcome: types.Failed, Error: "gave up after 3 attempts"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, r.Confirmed)
	assert.Equal(t, 2, r.Attention)
	assert.Equal(t, "ticketfill: 2/3 need attention, Mar 2", r.Subject)

	lines := strings.Split(r.PlainBody, "\n")
	assert.Equal(t, "1 confirmed, 1 timed out, 1 failed (3 total)", lines[3])
	assert.Equal(t, "! 1. bob: timed out (0 filled, 2m0s)", lines[5])
	assert.Equal(t, "     missing: phone", lines[6])
	assert.Equal(t, "! 2. <carol>: failed (0 filled, 0s)", lines[7])
	assert.Equal(t, "  3. alice: confirmed (2 filled, 3s)", lines[9])

	assert.Contains(t, r.HTMLBody, "&lt;carol&gt;")
	assert.Less(t, strings.Index(r.HTMLBody, "bob"), strings.Index(r.HTMLBody, "alice"))
}

func TestBuildAllConfirmedSubject(t *testing.T) {
	b, err := New()
	require.NoError(t, err)
	b.now = func() time.Time { return time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC) }

	r, err := b.Build([]types.Result{{Target: types.Target{Identifier: "alice"}, Outcome: types.Confirmed}})

	require.NoError(t, err)
	assert.Equal(t, "ticketfill: 1/1 confirmed, Mar 2", r.Subject)
	assert.Zero(t, r.Attention)
}

func TestBuildEmpty(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	_, err = b.Build(nil)
	assert.Error(t, err)
}
