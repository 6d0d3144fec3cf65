package revs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// E is a branch on top of D, which merges the tagged C and X. Both sit on
// B, which grew out of the tagged root A.
func forkedHistory(t *testing.T) *Store {
	t.Helper()
	return load(t,
		rec("E", "D"),
		rec("D", "C", "X"),
		rec("X", "B"),
		rec("C", "B"),
		rec("B", "A"),
		rec("A"),
	)
}

func TestNearTagsOf(t *testing.T) {
	t.Parallel()

	s := forkedHistory(t)
	s.SetMarks(newMarks([]string{"X", "C", "A"}, []string{"E"}))

	tests := []struct {
		commit string
		dir    Direction
		want   []string
	}{
		{"B", Following, []string{"X", "C"}},
		{"A", Following, []string{"A"}},
		{"E", Following, nil},
		{"E", Preceding, []string{"X", "C"}},
		{"D", Preceding, []string{"X", "C"}},
		{"B", Preceding, []string{"A"}},
		{"C", Preceding, []string{"C"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.commit, tt.dir), func(t *testing.T) {
			t.Parallel()
			got := s.NearTagsOf(id(tt.commit), tt.dir)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestNearTagsKeepOnlyClosest(t *testing.T) {
	t.Parallel()

	t.Run("preceding", func(t *testing.T) {
		t.Parallel()
		// Q is reachable through P, so only P is near M
		s := load(t,
			rec("M", "P", "Q"),
			rec("P", "Q"),
			rec("Q"),
		)
		s.SetMarks(newMarks([]string{"P", "Q"}, nil))
		assert.Equal(t, []string{"P"}, names(s.NearTagsOf(id("M"), Preceding)))
	})

	t.Run("following", func(t *testing.T) {
		t.Parallel()
		// T2 contains T1, so only T1 is near R
		s := load(t,
			rec("T2", "U", "T1"),
			rec("U", "R"),
			rec("T1", "R"),
			rec("R"),
		)
		s.SetMarks(newMarks([]string{"T2", "T1"}, nil))
		assert.Equal(t, []string{"T1"}, names(s.NearTagsOf(id("R"), Following)))
		assert.Equal(t, []string{"T2"}, names(s.NearTagsOf(id("U"), Following)))
	})
}

func TestDescendantBranchesOf(t *testing.T) {
	t.Parallel()

	s := forkedHistory(t)
	s.SetMarks(newMarks(nil, []string{"E", "C"}))

	assert.Equal(t, []string{"E", "C"}, names(s.DescendantBranchesOf(id("B"))))
	assert.Equal(t, []string{"E", "C"}, names(s.DescendantBranchesOf(id("A"))))
	assert.Equal(t, []string{"E"}, names(s.DescendantBranchesOf(id("X"))))
	assert.Equal(t, []string{"E"}, names(s.DescendantBranchesOf(id("E"))))
}

func TestIndexIsRebuiltAfterChanges(t *testing.T) {
	t.Parallel()

	s := load(t, rec("B", "A"), rec("A"))
	assert.Empty(t, s.NearTagsOf(id("B"), Preceding))

	s.SetMarks(newMarks([]string{"A"}, nil))
	assert.Equal(t, []string{"A"}, names(s.NearTagsOf(id("B"), Preceding)))

	// a new root below the tag: the index must see it
	s = load(t, rec("B", "A"))
	s.SetMarks(newMarks([]string{"A"}, nil))
	assert.Empty(t, s.NearTagsOf(id("B"), Preceding))
	require.NoError(t, s.Insert(rec("A")))
	assert.Equal(t, []string{"A"}, names(s.NearTagsOf(id("B"), Preceding)))
}

func TestLinearHistorySharesBuckets(t *testing.T) {
	t.Parallel()

	s := NewStore()
	const n = 200
	for i := range n {
		var parents []string
		if i+1 < n {
			parents = []string{fmt.Sprintf("c%d", i+1)}
		}
		require.NoError(t, s.Insert(rec(fmt.Sprintf("c%d", i), parents...)))
	}
	s.SetMarks(newMarks([]string{fmt.Sprintf("c%d", n-1)}, []string{"c0"}))

	assert.Equal(t, []string{"c0"}, names(s.DescendantBranchesOf(id("c100"))))
	assert.Equal(t, []string{fmt.Sprintf("c%d", n-1)}, names(s.NearTagsOf(id("c5"), Preceding)))

	s.mu.RLock()
	defer s.mu.RUnlock()
	// one branch set, one following set and one preceding set
	assert.Len(t, s.index.buckets, 3)
}

func TestMergeSorted(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []int{1, 2, 3, 5, 8}, mergeSorted([]int{1, 3, 8}, []int{2, 3, 5}))
	assert.Equal(t, []int{4}, mergeSorted(nil, []int{4}))
	assert.Empty(t, mergeSorted(nil, nil))
}
