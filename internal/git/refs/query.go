package refs

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"github.com/thiagokokada/qgit-go/internal/git/oid"
	"github.com/thiagokokada/qgit-go/internal/git/parse"
	"github.com/thiagokokada/qgit-go/internal/git/runner"
)

// RefsFor returns a copy of the entry of id.
func (ix *Index) RefsFor(id oid.ID) (Entry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.byID[id]
	if !ok {
		return Entry{}, false
	}
	cp := *e
	cp.Tags = slices.Clone(e.Tags)
	cp.Branches = slices.Clone(e.Branches)
	cp.RemoteBranches = slices.Clone(e.RemoteBranches)
	cp.Others = slices.Clone(e.Others)
	return cp, true
}

// Check returns the subset of mask id carries, zero when none.
func (ix *Index) Check(id oid.ID, mask Type) Type {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if e, ok := ix.byID[id]; ok {
		return e.Type & mask
	}
	return 0
}

func (ix *Index) IsTag(id oid.ID) bool { return ix.Check(id, Tag) != 0 }

// IsBranch counts remote branches too: they all end up in the descendant
// branch lists.
func (ix *Index) IsBranch(id oid.ID) bool { return ix.Check(id, Branch|RemoteBranch) != 0 }

// Names lists the names of the kinds in mask pointing at id.
func (ix *Index) Names(id oid.ID, mask Type) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.byID[id]
	if !ok {
		return nil
	}
	return e.names(mask)
}

func (ix *Index) CurrentBranch() string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.current
}

// IDs lists the commits carrying any kind in mask, in show-ref order.
func (ix *Index) IDs(mask Type) []oid.ID {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var ids []oid.ID
	for _, id := range ix.order {
		if ix.byID[id].Type&mask != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// ShaFor resolves a short ref name of the kinds in mask. The first commit
// in show-ref order wins. With askGit an unknown name is handed to
// rev-parse, which also understands abbreviations and revision syntax.
// Names starting with a dash are never resolved.
func (ix *Index) ShaFor(ctx context.Context, name string, mask Type, askGit bool) (oid.ID, bool) {
	ix.mu.RLock()
	for _, id := range ix.order {
		if slices.Contains(ix.byID[id].names(mask), name) {
			ix.mu.RUnlock()
			return id, true
		}
	}
	ix.mu.RUnlock()
	// rev-parse would take a leading dash as an option
	if !askGit || name == "" || strings.HasPrefix(name, "-") {
		return oid.ID{}, false
	}
	out, err := ix.run.Run(ctx, runner.Git("rev-parse", "--revs-only", name).Silent())
	if err != nil {
		return oid.ID{}, false
	}
	lines := parse.NameList(string(out))
	if len(lines) == 0 {
		return oid.ID{}, false
	}
	id, err := oid.Parse(lines[0])
	if err != nil {
		return oid.ID{}, false
	}
	return id, true
}

// AllNames lists every name of the kinds in mask. When loaded is given,
// only names on loaded commits are kept, sorted by their order index;
// patch names are then left out.
func (ix *Index) AllNames(mask Type, loaded func(oid.ID) (int, bool)) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	type named struct {
		idx  int
		name string
	}
	var all []named
	for _, id := range ix.order {
		e := ix.byID[id]
		m := mask
		idx := 0
		if loaded != nil {
			var ok bool
			if idx, ok = loaded(id); !ok {
				continue
			}
			m &^= Applied | Unapplied
		}
		for _, n := range e.names(m) {
			all = append(all, named{idx: idx, name: n})
		}
	}
	if loaded != nil {
		slices.SortStableFunc(all, func(a, b named) int { return a.idx - b.idx })
	}
	names := make([]string, len(all))
	for i, n := range all {
		names[i] = n.name
	}
	return names
}

var pgpSignature = regexp.MustCompile(`(?s)-----BEGIN PGP SIGNATURE-----.*?-----END PGP SIGNATURE-----`)

// TagMessage returns the message of the annotated tag on id, loading it
// on first use. Lightweight tags have none.
func (ix *Index) TagMessage(ctx context.Context, id oid.ID) string {
	ix.mu.RLock()
	e, ok := ix.byID[id]
	if !ok || e.Type&Tag == 0 || e.tagMsgLoaded || e.TagObject.IsZero() {
		defer ix.mu.RUnlock()
		if ok {
			return e.tagMsg
		}
		return ""
	}
	obj := e.TagObject
	ix.mu.RUnlock()

	out, err := ix.run.Run(ctx, runner.Git("cat-file", "tag", obj.String()))
	if err != nil {
		return ""
	}
	_, body, _ := strings.Cut(string(out), "\n\n")
	msg := strings.TrimSpace(pgpSignature.ReplaceAllString(body, ""))

	ix.mu.Lock()
	defer ix.mu.Unlock()
	// the index may have been rebuilt meanwhile
	if cur, ok := ix.byID[id]; ok && cur == e {
		e.tagMsg = msg
		e.tagMsgLoaded = true
	}
	return msg
}

// RevInfo is the one line summary of the refs on id.
func (ix *Index) RevInfo(ctx context.Context, id oid.ID) string {
	e, ok := ix.RefsFor(id)
	if !ok || e.Type == 0 {
		return ""
	}
	var parts []string
	if e.Type&Branch != 0 {
		label := "Branch: "
		if e.Type&CurrentBranch != 0 {
			label = "HEAD: "
		}
		parts = append(parts, label+strings.Join(e.Branches, " "))
	}
	if e.Type&RemoteBranch != 0 {
		parts = append(parts, "Remote branch: "+strings.Join(e.RemoteBranches, " "))
	}
	if e.Type&Tag != 0 {
		parts = append(parts, "Tag: "+strings.Join(e.Tags, " "))
	}
	if e.Type&Other != 0 {
		parts = append(parts, "Ref: "+strings.Join(e.Others, " "))
	}
	if e.Type&(Applied|Unapplied) != 0 {
		parts = append(parts, "Patch: "+e.Patch)
	}
	info := strings.Join(parts, "   ")
	if e.Type&Tag != 0 {
		if msg := ix.TagMessage(ctx, id); msg != "" {
			info += "  [" + msg + "]"
		}
	}
	return info
}
