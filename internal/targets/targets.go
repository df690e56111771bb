// Package targets reads the list of target identifiers and lets the operator
// pick which ones a run should cover.
package targets

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ibeckermayer/ticketfill/internal/types"
)

// ErrTargetsMissing means the target list file does not exist
var ErrTargetsMissing = errors.New("target list not found")

// Load reads one identifier per line. Blank lines are ignored.
func Load(path string) ([]types.Target, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrTargetsMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open target list: %w", err)
	}
	defer f.Close()

	var out []types.Target
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		id := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\uFEFF"))
		if id == "" {
			continue
		}
		out = append(out, types.Target{Identifier: id, Line: line})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read target list: %w", err)
	}
	return out, nil
}

// Select resolves an operator answer against the list. "all" (any case)
// selects everything in file order; otherwise the answer is a comma
// separated list matched case-insensitively. Names not in the list are
// returned as unknown.
func Select(all []types.Target, answer string) (selected []types.Target, unknown []string) {
	answer = strings.TrimSpace(answer)
	if strings.EqualFold(answer, "all") {
		return append([]types.Target(nil), all...), nil
	}

	byKey := make(map[string]types.Target, len(all))
	for _, t := range all {
		key := strings.ToLower(t.Identifier)
		if _, dup := byKey[key]; !dup {
			byKey[key] = t
		}
	}

	seen := make(map[string]bool)
	for _, name := range strings.Split(answer, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true

		t, ok := byKey[key]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		selected = append(selected, t)
	}
	return selected, unknown
}

// Identifiers returns the identifiers of ts
func Identifiers(ts []types.Target) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Identifier
	}
	return out
}
