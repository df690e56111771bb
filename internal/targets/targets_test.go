package targets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/ticketfill/internal/types"
)

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeList(t, "\uFEFFalice\n\n  bob  \r\n\t\ncarol\n")

	got, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, []types.Target{
		{Identifier: "alice", Line: 1},
		{Identifier: "bob", Line: 3},
		{Identifier: "carol", Line: 5},
	}, got)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.ErrorIs(t, err, ErrTargetsMissing)
}

func TestSelectAllKeepsFileOrder(t *testing.T) {
	all, err := Load(writeList(t, "alice\nbob\n"))
	require.NoError(t, err)

	got, unknown := Select(all, "ALL")

	assert.Empty(t, unknown)
	assert.Equal(t, []string{"alice", "bob"}, Identifiers(got))
}

func TestSelectList(t *testing.T) {
	all := []types.Target{{Identifier: "Alice", Line: 1}, {Identifier: "bob", Line: 2}, {Identifier: "carol", Line: 3}}

	got, unknown := Select(all, " carol, ALICE ,dave,, alice")

	assert.Equal(t, []string{"carol", "Alice"}, Identifiers(got))
	assert.Equal(t, []string{"dave"}, unknown)
}

type scriptedPrompter struct {
	answers []string
	asked   int
}

func (p *scriptedPrompter) Input(context.Context, string, string, string) (string, error) {
	a := p.answers[p.asked]
	p.asked++
	return a, nil
}

func (p *scriptedPrompter) Confirm(context.Context, string, bool) (bool, error) {
	return true, nil
}

func TestPromptRepeatsUntilKnownTarget(t *testing.T) {
	all := []types.Target{{Identifier: "alice", Line: 1}, {Identifier: "bob", Line: 2}}
	p := &scriptedPrompter{answers: []string{"zed", "bob"}}

	got, err := Prompt(context.Background(), p, all)

	require.NoError(t, err)
	assert.Equal(t, 2, p.asked)
	assert.Equal(t, []string{"bob"}, Identifiers(got))
}
