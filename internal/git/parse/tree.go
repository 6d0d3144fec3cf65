package parse

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/thiagokokada/qgit-go/internal/git/oid"
)

// TreeEntry is one line of ls-tree output.
type TreeEntry struct {
	Mode string
	Type string
	ID   oid.ID
	Name string
}

func (e TreeEntry) IsDir() bool { return e.Type == "tree" }

// Tree decodes "<mode> <type> <id>\t<name>" lines, directories first and
// then by name.
func Tree(out string) ([]TreeEntry, error) {
	var entries []TreeEntry
	for line := range strings.Lines(out) {
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		meta, name, ok := strings.Cut(line, "\t")
		fields := strings.Fields(meta)
		if !ok || len(fields) != 3 {
			return nil, fmt.Errorf("unexpected ls-tree output line: %q", line)
		}
		id, err := oid.Parse(fields[2])
		if err != nil {
			return nil, fmt.Errorf("unexpected ls-tree output line: %q: %w", line, err)
		}
		entries = append(entries, TreeEntry{Mode: fields[0], Type: fields[1], ID: id, Name: Unquote(name)})
	}
	slices.SortStableFunc(entries, func(a, b TreeEntry) int {
		if a.IsDir() != b.IsDir() {
			if a.IsDir() {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return entries, nil
}
