// Package refs indexes the repository references by the commit they point
// at: tags, local and remote branches, StGit patches and anything else
// under refs/.
package refs

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/thiagokokada/qgit-go/internal/git/oid"
	"github.com/thiagokokada/qgit-go/internal/git/parse"
	"github.com/thiagokokada/qgit-go/internal/git/runner"
)

type Type uint16

const (
	Tag Type = 1 << iota
	Branch
	RemoteBranch
	// CurrentBranch is set next to Branch on the commit HEAD points at.
	CurrentBranch
	Other
	Applied
	Unapplied

	Any = Tag | Branch | RemoteBranch | Other | Applied | Unapplied
)

// Entry is everything pointing at one commit.
type Entry struct {
	Type           Type
	Tags           []string
	Branches       []string
	RemoteBranches []string
	Others         []string
	// Patch is the StGit patch name, a commit carries at most one.
	Patch string
	// TagObject is the annotated tag object of the first annotated tag.
	TagObject     oid.ID
	CurrentBranch string

	tagMsg       string
	tagMsgLoaded bool
}

func (e *Entry) names(mask Type) []string {
	var out []string
	if mask&Tag != 0 {
		out = append(out, e.Tags...)
	}
	if mask&Branch != 0 {
		out = append(out, e.Branches...)
	}
	if mask&RemoteBranch != 0 {
		out = append(out, e.RemoteBranches...)
	}
	if mask&Other != 0 {
		out = append(out, e.Others...)
	}
	if mask&(Applied|Unapplied) != 0 && e.Type&mask&(Applied|Unapplied) != 0 {
		out = append(out, e.Patch)
	}
	return out
}

type Runner interface {
	Run(ctx context.Context, c runner.Command) ([]byte, error)
}

// Index is rebuilt wholesale; queries between rebuilds see one consistent
// snapshot.
type Index struct {
	run Runner

	mu      sync.RWMutex
	order   []oid.ID
	byID    map[oid.ID]*Entry
	current string
}

func NewIndex(run Runner) *Index {
	return &Index{run: run, byID: make(map[oid.ID]*Entry)}
}

// Rebuild reloads every reference from git.
func (ix *Index) Rebuild(ctx context.Context) error {
	out, err := ix.run.Run(ctx, runner.Command{Args: []string{"show-ref", "--dereference"}, AllowExit1: true})
	if err != nil {
		return fmt.Errorf("list refs: %w", err)
	}
	listed, err := parse.ShowRef(string(out))
	if err != nil {
		return fmt.Errorf("list refs: %w", err)
	}
	current := ix.currentBranch(ctx)
	var series map[string]Type
	if current != "" && slices.ContainsFunc(listed, func(r parse.Ref) bool {
		return strings.HasPrefix(r.Name, patchPrefix(current))
	}) {
		series = ix.stgSeries(ctx)
	}

	order := make([]oid.ID, 0, len(listed))
	byID := make(map[oid.ID]*Entry, len(listed))
	entry := func(id oid.ID) *Entry {
		e, ok := byID[id]
		if !ok {
			e = &Entry{}
			byID[id] = e
			order = append(order, id)
		}
		return e
	}
	for _, r := range listed {
		switch {
		case strings.HasPrefix(r.Name, "refs/tags/"):
			e := entry(r.ID)
			e.Type |= Tag
			e.Tags = append(e.Tags, strings.TrimPrefix(r.Name, "refs/tags/"))
			if r.Annotated() && e.TagObject.IsZero() {
				e.TagObject = r.TagObject
			}
		case strings.HasPrefix(r.Name, "refs/heads/"):
			name := strings.TrimPrefix(r.Name, "refs/heads/")
			e := entry(r.ID)
			e.Type |= Branch
			e.Branches = append(e.Branches, name)
			if name == current {
				e.Type |= CurrentBranch
				e.CurrentBranch = name
			}
		case strings.HasPrefix(r.Name, "refs/remotes/"):
			name := strings.TrimPrefix(r.Name, "refs/remotes/")
			if strings.HasSuffix(name, "/HEAD") {
				continue
			}
			e := entry(r.ID)
			e.Type |= RemoteBranch
			e.RemoteBranches = append(e.RemoteBranches, name)
		case current != "" && strings.HasPrefix(r.Name, patchPrefix(current)):
			name := strings.TrimPrefix(r.Name, patchPrefix(current))
			state, ok := series[name]
			if !ok {
				// StGit bookkeeping such as the patch logs
				continue
			}
			e := entry(r.ID)
			e.Type |= state
			e.Patch = name
		case strings.HasPrefix(r.Name, "refs/patches/"):
			// patches of other branches
			continue
		default:
			e := entry(r.ID)
			e.Type |= Other
			e.Others = append(e.Others, strings.TrimPrefix(r.Name, "refs/"))
		}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.order = order
	ix.byID = byID
	ix.current = current
	slog.Debug("refs rebuilt", slog.Int("commits", len(order)), slog.String("branch", current))
	return nil
}

func patchPrefix(branch string) string {
	return "refs/patches/" + branch + "/"
}

func (ix *Index) currentBranch(ctx context.Context) string {
	out, err := ix.run.Run(ctx, runner.Command{
		Args:       []string{"symbolic-ref", "-q", "--short", "HEAD"},
		Quiet:      true,
		AllowExit1: true,
	})
	if err != nil {
		return ""
	}
	// detached HEAD prints nothing
	return strings.TrimSpace(string(out))
}

// stgSeries maps patch names of the current stack to Applied or Unapplied.
// A missing stg binary leaves the map empty.
func (ix *Index) stgSeries(ctx context.Context) map[string]Type {
	out, err := ix.run.Run(ctx, runner.Command{Program: "stg", Args: []string{"series"}, Quiet: true})
	if err != nil {
		slog.Debug("stg series", slog.Any("error", err))
		return nil
	}
	series := map[string]Type{}
	for _, line := range parse.NameList(string(out)) {
		if len(line) < 3 {
			continue
		}
		name := strings.TrimSpace(line[2:])
		switch line[0] {
		case '+', '>':
			series[name] = Applied
		case '-':
			series[name] = Unapplied
		}
	}
	return series
}
