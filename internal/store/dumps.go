package store

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// DumpName returns the file name of the page dump for attempt idx of target
func DumpName(idx int, target string) string {
	safe := strings.Trim(unsafeName.ReplaceAllString(target, "_"), "_")
	if safe == "" {
		safe = "target"
	}
	return fmt.Sprintf("page_dump_%d_%s.html", idx, safe)
}

// SavePageDump writes the page markup for one attempt to dir.
// Returns the path to the saved file.
func SavePageDump(dir string, idx int, target, html string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create dump dir: %w", err)
	}

	path := filepath.Join(dir, DumpName(idx, target))
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return "", fmt.Errorf("failed to write page dump: %w", err)
	}
	return path, nil
}

// LatestDump returns the most recently written page dump in dir
func LatestDump(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no page dumps in %s", dir)
		}
		return "", err
	}

	type dump struct {
		name string
		mod  int64
	}
	var dumps []dump
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "page_dump_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dumps = append(dumps, dump{entry.Name(), info.ModTime().UnixNano()})
	}

	if len(dumps) == 0 {
		return "", fmt.Errorf("no page dumps in %s", dir)
	}

	sort.Slice(dumps, func(i, j int) bool {
		if dumps[i].mod != dumps[j].mod {
			return dumps[i].mod < dumps[j].mod
		}
		return dumps[i].name < dumps[j].name
	})
	return filepath.Join(dir, dumps[len(dumps)-1].name), nil
}
