// Package oid defines the commit identifier used across the revision graph.
package oid

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
)

// ID is a binary commit hash. Comparing two IDs compares 20 raw bytes.
type ID = plumbing.Hash

// HexSize is the length of the textual form of an ID.
const HexSize = 40

// WorkDir is the reserved identifier of the synthetic working directory
// revision. No real object hashes to all zeroes.
var WorkDir = plumbing.ZeroHash

// Parse decodes a 40 characters hex string.
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if len(s) != HexSize {
		return ID{}, fmt.Errorf("invalid object id %q: want %d hex digits", s, HexSize)
	}
	var id ID
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return ID{}, fmt.Errorf("invalid object id %q: %w", s, err)
	}
	return id, nil
}

// MustParse is Parse for constants in tests and tables.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseList decodes a whitespace separated list of ids, as printed by %P.
func ParseList(s string) ([]ID, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, nil
	}
	ids := make([]ID, 0, len(fields))
	for _, f := range fields {
		id, err := Parse(f)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Short returns the abbreviated form used in labels.
func Short(id ID) string {
	return id.String()[:7]
}

// IsWorkDir reports whether id is the working directory sentinel.
func IsWorkDir(id ID) bool {
	return id == WorkDir
}
