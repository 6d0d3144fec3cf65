package revs

import (
	"slices"

	"github.com/thiagokokada/qgit-go/internal/git/oid"
)

// nearIndex maps every row to a bucket of order indices. Rows that see the
// same set share one bucket, so deep linear histories cost one bucket per
// fork or tag rather than one set per commit.
type nearIndex struct {
	buckets [][]int

	branches  []int32
	following []int32
	preceding []int32
}

// tagDescendants maps a tag row to the tag rows descending from it,
// itself included.
type tagDescendants map[int]map[int]struct{}

func (d tagDescendants) isAncestor(a, b int) bool {
	_, ok := d[a][b]
	return ok
}

func buildIndex(order []*Record, records map[oid.ID]*Record, marks Marks) *nearIndex {
	n := len(order)
	ix := &nearIndex{
		branches:  filled(n),
		following: filled(n),
		preceding: filled(n),
	}
	isTag := make([]bool, n)
	isBranch := make([]bool, n)
	if marks != nil {
		for i, r := range order {
			isTag[i] = marks.IsTag(r.ID)
			isBranch[i] = marks.IsBranch(r.ID)
		}
	}
	parents := func(r *Record) []int {
		var idxs []int
		for _, p := range r.Parents {
			// a parent listed before its child would break the forward walk
			if pr, ok := records[p]; ok && pr.OrderIdx > r.OrderIdx {
				idxs = append(idxs, pr.OrderIdx)
			}
		}
		return idxs
	}
	desc := tagDescendants{}

	// Children come before parents in load order: walk down.
	for i, r := range order {
		if isBranch[i] {
			set := append(slices.Clone(ix.bucket(ix.branches[i])), i)
			slices.Sort(set)
			ix.branches[i] = ix.add(set)
		}
		if isTag[i] {
			own := map[int]struct{}{i: {}}
			for _, t := range ix.bucket(ix.following[i]) {
				for d := range desc[t] {
					own[d] = struct{}{}
				}
			}
			desc[i] = own
			ix.following[i] = ix.add([]int{i})
		}
		for _, p := range parents(r) {
			ix.branches[p] = ix.union(ix.branches[p], ix.branches[i])
			ix.following[p] = ix.nearest(ix.following[p], ix.following[i], Following, desc)
		}
	}
	// And up again for the tags each commit was built on.
	for i := n - 1; i >= 0; i-- {
		if isTag[i] {
			ix.preceding[i] = ix.add([]int{i})
			continue
		}
		for _, p := range parents(order[i]) {
			ix.preceding[i] = ix.nearest(ix.preceding[i], ix.preceding[p], Preceding, desc)
		}
	}
	return ix
}

func filled(n int) []int32 {
	s := make([]int32, n)
	for i := range s {
		s[i] = -1
	}
	return s
}

func (ix *nearIndex) bucket(id int32) []int {
	if id < 0 {
		return nil
	}
	return ix.buckets[id]
}

func (ix *nearIndex) add(set []int) int32 {
	ix.buckets = append(ix.buckets, set)
	return int32(len(ix.buckets) - 1)
}

// union shares src when dst is unset and only allocates when the two sets
// really differ.
func (ix *nearIndex) union(dst, src int32) int32 {
	switch {
	case src < 0 || dst == src:
		return dst
	case dst < 0:
		return src
	}
	set := mergeSorted(ix.buckets[dst], ix.buckets[src])
	if len(set) == len(ix.buckets[dst]) {
		return dst
	}
	return ix.add(set)
}

// nearest is union keeping only the tags closest to the commit: for
// Following a tag is dropped when another member is its ancestor, for
// Preceding when another member descends from it.
func (ix *nearIndex) nearest(dst, src int32, dir Direction, desc tagDescendants) int32 {
	switch {
	case src < 0 || dst == src:
		return dst
	case dst < 0:
		return src
	}
	set := mergeSorted(ix.buckets[dst], ix.buckets[src])
	kept := make([]int, 0, len(set))
	for _, x := range set {
		farther := false
		for _, y := range set {
			if x == y {
				continue
			}
			if (dir == Following && desc.isAncestor(y, x)) || (dir == Preceding && desc.isAncestor(x, y)) {
				farther = true
				break
			}
		}
		if !farther {
			kept = append(kept, x)
		}
	}
	if slices.Equal(kept, ix.buckets[dst]) {
		return dst
	}
	return ix.add(kept)
}

func mergeSorted(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j >= len(b) || (i < len(a) && a[i] < b[j]):
			out = append(out, a[i])
			i++
		case i >= len(a) || b[j] < a[i]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
