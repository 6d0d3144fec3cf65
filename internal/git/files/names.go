// Package files caches which files each revision touched. Paths are split
// into directory and base name and interned, so a repository with many
// commits keeps one copy of every name.
package files

import "sync"

// NameID is a handle into a Names arena. The zero handle is the empty
// string, i.e. the top level directory.
type NameID int32

// Names interns directory and file names. Handles stay valid for the life
// of the arena; a session drops the whole arena when it switches
// repositories.
type Names struct {
	mu    sync.RWMutex
	ids   map[string]NameID
	names []string
}

func NewNames() *Names {
	return &Names{
		ids:   map[string]NameID{"": 0},
		names: []string{""},
	}
}

func (n *Names) Intern(s string) NameID {
	n.mu.RLock()
	id, ok := n.ids[s]
	n.mu.RUnlock()
	if ok {
		return id
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if id, ok := n.ids[s]; ok {
		return id
	}
	id = NameID(len(n.names))
	n.names = append(n.names, s)
	n.ids[s] = id
	return id
}

// Lookup returns the handle of s without interning it.
func (n *Names) Lookup(s string) (NameID, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	id, ok := n.ids[s]
	return id, ok
}

func (n *Names) Name(id NameID) string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if id < 0 || int(id) >= len(n.names) {
		return ""
	}
	return n.names[id]
}

func (n *Names) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.names)
}
