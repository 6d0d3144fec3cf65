package files

import (
	"fmt"
	"strings"

	"github.com/thiagokokada/qgit-go/internal/git/parse"
)

type Status uint8

const (
	Modified Status = 1 << iota
	Deleted
	New
	Renamed
	Copied
	// Unknown files are untracked ones in the working directory.
	Unknown
	// InIndex marks working directory changes already staged.
	InIndex
)

func (s Status) Has(flag Status) bool { return s&flag != 0 }

// Letter is the one character status shown in file lists.
func (s Status) Letter() string {
	switch {
	case s.Has(Unknown):
		return "?"
	case s.Has(Renamed):
		return "R"
	case s.Has(Copied):
		return "C"
	case s.Has(New):
		return "A"
	case s.Has(Deleted):
		return "D"
	default:
		return "M"
	}
}

func statusOf(letter byte) Status {
	switch letter {
	case 'A':
		return New
	case 'D':
		return Deleted
	case 'R':
		return Renamed
	case 'C':
		return Copied
	case '?':
		return Unknown
	default:
		return Modified
	}
}

type Entry struct {
	Dir, Name         NameID
	OrigDir, OrigName NameID
	Status            Status
	Similarity        int
	// MergeParent is the parent, from 1, a merge entry is relative to.
	MergeParent int
	Combined    bool
}

// ChangeSet lists the files of one revision (or of one diff between two
// revisions) in git's output order.
type ChangeSet struct {
	names   *Names
	Entries []Entry
}

// NewChangeSet interns the paths of changes into names.
func NewChangeSet(names *Names, changes []parse.FileChange) *ChangeSet {
	cs := &ChangeSet{names: names, Entries: make([]Entry, 0, len(changes))}
	for _, c := range changes {
		e := Entry{
			Dir:         names.Intern(c.Dir),
			Name:        names.Intern(c.Name),
			Status:      statusOf(c.Status),
			Similarity:  c.Similarity,
			MergeParent: c.MergeParent,
			Combined:    c.Combined,
		}
		if e.Status.Has(Renamed | Copied) {
			e.OrigDir = names.Intern(c.OrigDir)
			e.OrigName = names.Intern(c.OrigName)
		}
		cs.Entries = append(cs.Entries, e)
	}
	return cs
}

func (cs *ChangeSet) Len() int {
	if cs == nil {
		return 0
	}
	return len(cs.Entries)
}

// FileName returns the full path of entry i, or "" when out of range.
func (cs *ChangeSet) FileName(i int) string {
	if i < 0 || i >= cs.Len() {
		return ""
	}
	e := cs.Entries[i]
	return cs.names.Name(e.Dir) + cs.names.Name(e.Name)
}

func (cs *ChangeSet) OrigName(i int) string {
	if i < 0 || i >= cs.Len() {
		return ""
	}
	e := cs.Entries[i]
	if !e.Status.Has(Renamed | Copied) {
		return ""
	}
	return cs.names.Name(e.OrigDir) + cs.names.Name(e.OrigName)
}

// FindFileIndex finds name among the destination paths, then among the
// rename and copy sources. It returns -1 when absent.
func (cs *ChangeSet) FindFileIndex(name string) int {
	if name == "" || cs.Len() == 0 {
		return -1
	}
	dir, base := parse.SplitPath(name)
	dirID, ok1 := cs.names.Lookup(dir)
	baseID, ok2 := cs.names.Lookup(base)
	if !ok1 || !ok2 {
		return -1
	}
	for i, e := range cs.Entries {
		if e.Dir == dirID && e.Name == baseID {
			return i
		}
	}
	for i, e := range cs.Entries {
		if e.Status.Has(Renamed|Copied) && e.OrigDir == dirID && e.OrigName == baseID {
			return i
		}
	}
	return -1
}

// ExtendedStatus describes a rename or copy as "orig --> dest (86%)". It is
// empty for every other entry.
func (cs *ChangeSet) ExtendedStatus(i int) string {
	orig := cs.OrigName(i)
	if orig == "" {
		return ""
	}
	return fmt.Sprintf("%s --> %s (%d%%)", orig, cs.FileName(i), cs.Entries[i].Similarity)
}

// Files lists the entries whose status has any of the given flags, or
// every entry for a zero mask.
func (cs *ChangeSet) Files(mask Status) []string {
	var out []string
	for i := range cs.Len() {
		if mask == 0 || cs.Entries[i].Status.Has(mask) {
			out = append(out, cs.FileName(i))
		}
	}
	return out
}

func (cs *ChangeSet) count(mask Status) int {
	n := 0
	for _, e := range cs.entries() {
		if e.Status.Has(mask) {
			n++
		}
	}
	return n
}

func (cs *ChangeSet) entries() []Entry {
	if cs == nil {
		return nil
	}
	return cs.Entries
}

// RemoveExtraFileInfo turns a row decorated by ExtendedStatus back into
// the destination path.
func RemoveExtraFileInfo(row string) string {
	_, dest, ok := strings.Cut(row, " --> ")
	if !ok {
		return row
	}
	if i := strings.LastIndex(dest, " ("); i >= 0 {
		dest = dest[:i]
	}
	return dest
}
