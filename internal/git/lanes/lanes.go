// Package lanes assigns graph columns to commits while they stream in.
//
// The state is advanced one row at a time, strictly in load order, and a
// row is never revisited. Each row gets a snapshot of lane codes which is
// all a renderer needs to draw it.
package lanes

import "github.com/thiagokokada/qgit-go/internal/git/oid"

type Type uint8

const (
	Empty Type = iota
	Active
	NotActive
	MergeFork
	MergeForkR
	MergeForkL
	Join
	JoinR
	JoinL
	Head
	HeadR
	HeadL
	Tail
	TailR
	TailL
	Cross
	CrossEmpty
	Initial
	Branch
	Unapplied
	Applied
	Boundary
	BoundaryC
	BoundaryR
	BoundaryL
)

func (t Type) IsHead() bool     { return t == Head || t == HeadR || t == HeadL }
func (t Type) IsTail() bool     { return t == Tail || t == TailR || t == TailL }
func (t Type) IsJoin() bool     { return t == Join || t == JoinR || t == JoinL }
func (t Type) IsBoundary() bool { return t >= Boundary && t <= BoundaryL }

// IsFree reports lanes that do not carry the commit's own line.
func (t Type) IsFree() bool { return t == NotActive || t == Cross || t.IsJoin() }

func (t Type) IsMerge() bool {
	return t == MergeFork || t == MergeForkR || t == MergeForkL || t.IsBoundary()
}

func (t Type) IsActive() bool {
	return t == Active || t == Initial || t == Branch || t.IsMerge()
}

// State is the running lane assignment.
type State struct {
	types []Type
	next  []oid.ID // id each lane waits for; zero when the lane ended
	// activeLane is the column of the row being laid out.
	activeLane int
	boundary   bool

	node, nodeR, nodeL Type
}

func (s *State) Empty() bool { return len(s.types) == 0 }

// Width is the current number of lanes.
func (s *State) Width() int { return len(s.types) }

// Next lays out the row of commit id and returns its lane snapshot.
func (s *State) Next(id oid.ID, parents []oid.ID, boundary, applied bool) []Type {
	if s.Empty() {
		s.init(id)
	}
	fork, discontinuity := s.isFork(id)
	merge := len(parents) > 1
	initial := len(parents) == 0

	if discontinuity {
		s.changeActiveLane(id)
	}
	s.setBoundary(boundary)

	if fork {
		s.setFork(id)
	}
	if merge {
		s.setMerge(parents)
	}
	if applied {
		s.types[s.activeLane] = Applied
	}
	if initial {
		s.setInitial()
	}

	row := append([]Type(nil), s.types...)

	var nextID oid.ID
	if !initial && !s.boundary {
		nextID = parents[0]
	}
	s.next[s.activeLane] = nextID

	if applied {
		s.types[s.activeLane] = Active
	}
	if merge {
		s.afterMerge()
	}
	if fork {
		s.afterFork()
	}
	if s.types[s.activeLane] == Branch {
		s.types[s.activeLane] = Active
	}
	return row
}

func (s *State) init(id oid.ID) {
	s.types = s.types[:0]
	s.next = s.next[:0]
	s.activeLane = 0
	s.setBoundary(false)
	s.add(Branch, id, s.activeLane)
}

func (s *State) setBoundary(b bool) {
	if b {
		s.node, s.nodeR, s.nodeL = BoundaryC, BoundaryR, BoundaryL
	} else {
		s.node, s.nodeR, s.nodeL = MergeFork, MergeForkR, MergeForkL
	}
	s.boundary = b
	if b {
		s.types[s.activeLane] = Boundary
	}
}

func (s *State) isNode(t Type) bool {
	return t == s.node || t == s.nodeR || t == s.nodeL
}

// isFork reports whether more than one lane waits for id, and whether id
// is not on the current active lane.
func (s *State) isFork(id oid.ID) (fork, discontinuity bool) {
	pos := s.findNext(id, 0)
	discontinuity = pos != s.activeLane
	if pos == -1 {
		return false, discontinuity
	}
	return s.findNext(id, pos+1) != -1, discontinuity
}

func (s *State) setFork(id oid.ID) {
	rangeStart := s.findNext(id, 0)
	rangeEnd := rangeStart
	for idx := rangeStart; idx != -1; idx = s.findNext(id, idx+1) {
		rangeEnd = idx
		s.types[idx] = Tail
	}
	s.types[s.activeLane] = s.node

	if s.types[rangeStart] == s.node {
		s.types[rangeStart] = s.nodeL
	}
	if s.types[rangeEnd] == s.node {
		s.types[rangeEnd] = s.nodeR
	}
	if s.types[rangeStart] == Tail {
		s.types[rangeStart] = TailL
	}
	if s.types[rangeEnd] == Tail {
		s.types[rangeEnd] = TailR
	}
	for i := rangeStart + 1; i < rangeEnd; i++ {
		switch s.types[i] {
		case NotActive:
			s.types[i] = Cross
		case Empty:
			s.types[i] = CrossEmpty
		}
	}
}

// setMerge opens lanes for every parent after the first. Parents are taken
// in their listed order; a parent already waited for by a lane joins it,
// otherwise it gets the leftmost empty lane right of the fan-out so far, or
// a new rightmost lane.
func (s *State) setMerge(parents []oid.ID) {
	if s.boundary {
		return
	}
	t := s.types[s.activeLane]
	wasFork := t == s.node
	wasForkL := t == s.nodeL
	wasForkR := t == s.nodeR
	startJoinWasCross, endJoinWasCross := false, false

	s.types[s.activeLane] = s.node

	rangeStart, rangeEnd := s.activeLane, s.activeLane
	for _, p := range parents[1:] {
		idx := s.findNext(p, 0)
		if idx == -1 {
			rangeEnd = s.add(Head, p, rangeEnd+1)
			continue
		}
		if idx > rangeEnd {
			rangeEnd = idx
			endJoinWasCross = s.types[idx] == Cross
		}
		if idx < rangeStart {
			rangeStart = idx
			startJoinWasCross = s.types[idx] == Cross
		}
		s.types[idx] = Join
	}

	if s.types[rangeStart] == s.node && !wasFork && !wasForkR {
		s.types[rangeStart] = s.nodeL
	}
	if s.types[rangeEnd] == s.node && !wasFork && !wasForkL {
		s.types[rangeEnd] = s.nodeR
	}
	if s.types[rangeStart] == Join && !startJoinWasCross {
		s.types[rangeStart] = JoinL
	}
	if s.types[rangeEnd] == Join && !endJoinWasCross {
		s.types[rangeEnd] = JoinR
	}
	if s.types[rangeStart] == Head {
		s.types[rangeStart] = HeadL
	}
	if s.types[rangeEnd] == Head {
		s.types[rangeEnd] = HeadR
	}
	for i := rangeStart + 1; i < rangeEnd; i++ {
		switch s.types[i] {
		case NotActive:
			s.types[i] = Cross
		case Empty:
			s.types[i] = CrossEmpty
		case TailR, TailL:
			s.types[i] = Tail
		}
	}
}

func (s *State) setInitial() {
	t := s.types[s.activeLane]
	if s.isNode(t) || t == Applied {
		return
	}
	if s.boundary {
		s.types[s.activeLane] = Boundary
	} else {
		s.types[s.activeLane] = Initial
	}
}

// changeActiveLane moves the active column to the lane waiting for id, or
// starts a new branch lane when nobody waits for it.
func (s *State) changeActiveLane(id oid.ID) {
	if t := s.types[s.activeLane]; t == Initial || t.IsBoundary() {
		s.types[s.activeLane] = Empty
	} else {
		s.types[s.activeLane] = NotActive
	}
	idx := s.findNext(id, 0)
	if idx != -1 {
		s.types[idx] = Active
	} else {
		idx = s.add(Branch, id, s.activeLane)
	}
	s.activeLane = idx
}

func (s *State) afterMerge() {
	if s.boundary {
		return
	}
	for i, t := range s.types {
		switch {
		case t.IsHead() || t.IsJoin() || t == Cross:
			s.types[i] = NotActive
		case t == CrossEmpty:
			s.types[i] = Empty
		case s.isNode(t):
			s.types[i] = Active
		}
	}
}

func (s *State) afterFork() {
	for i, t := range s.types {
		switch {
		case t == Cross:
			s.types[i] = NotActive
		case t.IsTail() || t == CrossEmpty:
			s.types[i] = Empty
		}
		if !s.boundary && s.isNode(s.types[i]) {
			s.types[i] = Active
		}
	}
	for len(s.types) > 0 && s.types[len(s.types)-1] == Empty {
		s.types = s.types[:len(s.types)-1]
		s.next = s.next[:len(s.next)-1]
	}
}

func (s *State) findNext(id oid.ID, pos int) int {
	for i := pos; i < len(s.next); i++ {
		if s.next[i] == id {
			return i
		}
	}
	return -1
}

// add places a lane in the leftmost Empty column at or after pos, or
// appends a new column.
func (s *State) add(t Type, id oid.ID, pos int) int {
	if pos < len(s.types) {
		for i := pos; i < len(s.types); i++ {
			if s.types[i] == Empty {
				s.types[i] = t
				s.next[i] = id
				return i
			}
		}
	}
	s.types = append(s.types, t)
	s.next = append(s.next, id)
	return len(s.types) - 1
}
