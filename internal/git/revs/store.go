package revs

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/thiagokokada/qgit-go/internal/git/lanes"
	"github.com/thiagokokada/qgit-go/internal/git/oid"
)

var (
	ErrDuplicate      = errors.New("revision already loaded")
	ErrWorkDirNotHead = errors.New("working directory revision must be loaded first")
)

// Marks tells the index which commits carry tags and branches.
type Marks interface {
	IsTag(oid.ID) bool
	IsBranch(oid.ID) bool
}

// Store is append-only. Mutation happens on the owning loop; the lock lets
// other goroutines read a consistent state meanwhile.
type Store struct {
	mu      sync.RWMutex
	records map[oid.ID]*Record
	order   []*Record
	// pending holds children loaded before their parent, keyed by parent.
	pending map[oid.ID][]int
	lanes   lanes.State
	marks   Marks
	index   *nearIndex
}

func NewStore() *Store {
	return &Store{
		records: make(map[oid.ID]*Record),
		pending: make(map[oid.ID][]int),
	}
}

// Insert appends r, assigns its order index and lane row and links it to
// its parents and already loaded children.
func (s *Store) Insert(r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; ok {
		return fmt.Errorf("insert %s: %w", oid.Short(r.ID), ErrDuplicate)
	}
	if r.WorkDir && len(s.order) != 0 {
		return ErrWorkDirNotHead
	}
	idx := len(s.order)
	r.OrderIdx = idx
	if r.Unapplied {
		// unapplied patches hang outside the graph
		r.Lanes = []lanes.Type{lanes.Unapplied}
	} else {
		r.Lanes = s.lanes.Next(r.ID, r.Parents, r.Boundary, r.Applied)
	}
	r.children = s.pending[r.ID]
	delete(s.pending, r.ID)
	for _, p := range r.Parents {
		if parent, ok := s.records[p]; ok {
			parent.children = append(parent.children, idx)
			continue
		}
		s.pending[p] = append(s.pending[p], idx)
	}
	s.records[r.ID] = r
	s.order = append(s.order, r)
	s.index = nil
	return nil
}

// SetMarks replaces the tag/branch oracle and drops the derived indices.
func (s *Store) SetMarks(m Marks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks = m
	s.index = nil
}

func (s *Store) Lookup(id oid.ID) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store) At(i int) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.order) {
		return nil, false
	}
	return s.order[i], true
}

// Ordered returns a point-in-time copy of the load order.
func (s *Store) Ordered() []oid.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]oid.ID, len(s.order))
	for i, r := range s.order {
		ids[i] = r.ID
	}
	return ids
}

// Range returns the records with order index in [from, to).
func (s *Store) Range(from, to int) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	from = max(from, 0)
	to = min(to, len(s.order))
	if from >= to {
		return nil
	}
	return slices.Clone(s.order[from:to])
}

func (s *Store) LanesOf(id oid.ID) []lanes.Type {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.records[id]; ok {
		return r.Lanes
	}
	return nil
}

// ChildrenOf returns the loaded children of id in load order.
func (s *Store) ChildrenOf(id oid.ID) []oid.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok || len(r.children) == 0 {
		return nil
	}
	idxs := slices.Clone(r.children)
	slices.Sort(idxs)
	ids := make([]oid.ID, len(idxs))
	for i, idx := range idxs {
		ids[i] = s.order[idx].ID
	}
	return ids
}

func (s *Store) ParentOf(id oid.ID, n int) (oid.ID, bool) {
	r, ok := s.Lookup(id)
	if !ok {
		return oid.ID{}, false
	}
	return r.Parent(n)
}

// LaneParent finds the commit a lane of row id leads to, by walking up to
// the first row where the lane is not just passing through.
func (s *Store) LaneParent(id oid.ID, lane int) (oid.ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return oid.ID{}, false
	}
	for idx := r.OrderIdx - 1; idx >= 0; idx-- {
		row := s.order[idx]
		if lane < 0 || lane >= len(row.Lanes) {
			return oid.ID{}, false
		}
		t := row.Lanes[lane]
		if t.IsFree() {
			continue
		}
		parNum := 0
		for l := lane; !t.IsMerge() && t != lanes.Active; {
			if t.IsHead() {
				parNum++
			}
			l--
			if l < 0 {
				return oid.ID{}, false
			}
			t = row.Lanes[l]
		}
		return row.Parent(parNum)
	}
	return oid.ID{}, false
}

// DescendantBranchesOf lists the branch tips that contain id.
func (s *Store) DescendantBranchesOf(id oid.ID) []oid.ID {
	return s.fromIndex(id, func(ix *nearIndex, idx int) int32 { return ix.branches[idx] })
}

type Direction int

const (
	// Preceding walks ancestors: the nearest tags id was built on.
	Preceding Direction = iota
	// Following walks descendants: the nearest tags that contain id.
	Following
)

func (s *Store) NearTagsOf(id oid.ID, dir Direction) []oid.ID {
	return s.fromIndex(id, func(ix *nearIndex, idx int) int32 {
		if dir == Following {
			return ix.following[idx]
		}
		return ix.preceding[idx]
	})
}

func (s *Store) fromIndex(id oid.ID, pick func(*nearIndex, int) int32) []oid.ID {
	s.mu.RLock()
	r, ok := s.records[id]
	ix := s.index
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	if ix == nil {
		s.mu.Lock()
		if s.index == nil {
			s.index = buildIndex(s.order, s.records, s.marks)
		}
		ix = s.index
		s.mu.Unlock()
	}
	bucket := pick(ix, r.OrderIdx)
	if bucket < 0 {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := ix.buckets[bucket]
	ids := make([]oid.ID, len(members))
	for i, idx := range members {
		ids[i] = s.order[idx].ID
	}
	return ids
}
