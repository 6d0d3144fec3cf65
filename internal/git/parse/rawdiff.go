package parse

import (
	"log/slog"
	"strconv"
	"strings"
)

// FileChange is one line of raw diff output.
type FileChange struct {
	// Status is git's letter: A, M, D, R, C, T, U or X.
	Status     byte
	Similarity int

	Dir, Name         string
	OrigDir, OrigName string

	// MergeParent numbers the parent the change is relative to, from 1.
	MergeParent int
	// Combined marks entries of a combined merge diff; Statuses then holds
	// one letter per parent.
	Combined bool
	Statuses string
}

func (c FileChange) Path() string { return c.Dir + c.Name }

func (c FileChange) OrigPath() string { return c.OrigDir + c.OrigName }

// RawDiff decodes the raw output of diff-tree and diff-index. Commit id
// lines separate the per parent sections of a merge diffed with -m.
func RawDiff(out string) []FileChange {
	var changes []FileChange
	headers := 0
	for line := range strings.Lines(out) {
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		if line[0] != ':' {
			headers++
			continue
		}
		parent := max(headers, 1)
		var (
			c  FileChange
			ok bool
		)
		if strings.HasPrefix(line, "::") {
			c, ok = combinedLine(line)
		} else {
			c, ok = rawLine(line)
		}
		if !ok {
			slog.Debug("skipping raw diff line", slog.String("line", line))
			continue
		}
		c.MergeParent = parent
		changes = append(changes, c)
	}
	return changes
}

// rawLine parses ":100644 100644 <src> <dst> R086\told\tnew".
func rawLine(line string) (FileChange, bool) {
	meta, paths, ok := strings.Cut(line[1:], "\t")
	if !ok {
		return FileChange{}, false
	}
	fields := strings.Fields(meta)
	if len(fields) != 5 || fields[4] == "" {
		return FileChange{}, false
	}
	status := fields[4]
	c := FileChange{Status: status[0]}
	if len(status) > 1 {
		c.Similarity, _ = strconv.Atoi(status[1:])
	}
	names := strings.Split(paths, "\t")
	switch {
	case (c.Status == 'R' || c.Status == 'C') && len(names) == 2:
		c.OrigDir, c.OrigName = SplitPath(Unquote(names[0]))
		c.Dir, c.Name = SplitPath(Unquote(names[1]))
	case len(names) == 1:
		c.Dir, c.Name = SplitPath(Unquote(names[0]))
	default:
		return FileChange{}, false
	}
	return c, true
}

// combinedLine parses "::100644 100644 100644 <a> <b> <c> MM\tpath", with
// one colon, mode and id per parent.
func combinedLine(line string) (FileChange, bool) {
	colons := len(line) - len(strings.TrimLeft(line, ":"))
	meta, path, ok := strings.Cut(line[colons:], "\t")
	if !ok || path == "" {
		return FileChange{}, false
	}
	fields := strings.Fields(meta)
	// parents+1 modes, parents+1 ids, one status
	if len(fields) != 2*(colons+1)+1 {
		return FileChange{}, false
	}
	statuses := fields[len(fields)-1]
	c := FileChange{Combined: true, Statuses: statuses, Status: combinedStatus(statuses)}
	c.Dir, c.Name = SplitPath(Unquote(path))
	return c, true
}

// combinedStatus reduces per parent letters: a file added (or deleted)
// against every parent is added (or deleted), anything else is modified.
func combinedStatus(statuses string) byte {
	if statuses == "" {
		return 'M'
	}
	first := statuses[0]
	if first == 'A' || first == 'D' {
		if strings.Count(statuses, string(first)) == len(statuses) {
			return first
		}
	}
	return 'M'
}
