// Package revs is the in-memory commit graph: records in load order, lane
// rows, parent/child links and the near tag and branch indices.
package revs

import (
	"fmt"
	"strings"
	"time"

	"github.com/thiagokokada/qgit-go/internal/git/lanes"
	"github.com/thiagokokada/qgit-go/internal/git/oid"
)

// Record is one revision. The store owns it; callers must treat it as
// read-only.
type Record struct {
	ID      oid.ID
	Parents []oid.ID

	Author         string
	AuthorEmail    string
	AuthorDate     time.Time
	Committer      string
	CommitterEmail string
	CommitterDate  time.Time

	ShortLog string
	LongLog  string

	// Lanes is the graph row, assigned on insertion.
	Lanes    []lanes.Type
	OrderIdx int

	Boundary  bool
	WorkDir   bool
	Applied   bool
	Unapplied bool

	children []int
}

func (r *Record) ParentCount() int { return len(r.Parents) }

func (r *Record) IsMerge() bool { return len(r.Parents) > 1 }

func (r *Record) IsRoot() bool { return len(r.Parents) == 0 }

// Parent returns the n-th parent, counting from zero.
func (r *Record) Parent(n int) (oid.ID, bool) {
	if n < 0 || n >= len(r.Parents) {
		return oid.ID{}, false
	}
	return r.Parents[n], true
}

// Message joins the subject and the body the way git prints them.
func (r *Record) Message() string {
	if r.LongLog == "" {
		return r.ShortLog
	}
	return r.ShortLog + "\n\n" + r.LongLog
}

// FormatHeader renders the commit header shown above a diff.
func FormatHeader(r *Record) string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	if r.WorkDir {
		b.WriteString("Working directory\n")
	} else {
		fmt.Fprintf(&b, "commit %s\n", r.ID)
	}
	if r.IsMerge() {
		b.WriteString("Merge:")
		for _, p := range r.Parents {
			b.WriteString(" " + oid.Short(p))
		}
		b.WriteByte('\n')
	}
	appendSignatureLine(&b, "Author", r.Author, r.AuthorEmail, r.AuthorDate)
	if r.Committer != "" && (r.Committer != r.Author || r.CommitterEmail != r.AuthorEmail) {
		appendSignatureLine(&b, "Commit", r.Committer, r.CommitterEmail, r.CommitterDate)
	}
	b.WriteByte('\n')
	for _, line := range strings.Split(strings.TrimRight(r.Message(), "\n"), "\n") {
		b.WriteString("    " + line + "\n")
	}
	return b.String()
}

func appendSignatureLine(b *strings.Builder, label, name, email string, when time.Time) {
	fmt.Fprintf(b, "%s: %s <%s>\n", label, name, email)
	if !when.IsZero() {
		fmt.Fprintf(b, "Date:   %s\n", when.Format(time.RFC1123Z))
	}
}
