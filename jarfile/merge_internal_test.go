package jarfile

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeOrderedInterleavesUniqueItems(t *testing.T) {
	// spec §8 scenario 4: client [A,B,C], server [A,C,D] must merge to
	// [A,B,C,D] — B interleaved back into its original position next
	// to A, not bucketed after the common items.
	merged, onlyA, onlyB := mergeOrdered([]string{"A", "B", "C"}, []string{"A", "C", "D"})
	require.Equal(t, []string{"A", "B", "C", "D"}, merged)
	require.Equal(t, []string{"B"}, onlyA)
	require.Equal(t, []string{"D"}, onlyB)
}

func TestMergeOrderedTreatsScrambledOrderAsNeitherOnlyAOrOnlyB(t *testing.T) {
	// spec §8 scenario 4: client [B,A], server [A,B] disagree on order
	// of two items common to both sides; either order is legal and
	// neither item is "unique" to a side.
	merged, onlyA, onlyB := mergeOrdered([]string{"B", "A"}, []string{"A", "B"})
	require.ElementsMatch(t, []string{"A", "B"}, merged)
	require.Len(t, merged, 2)
	require.Empty(t, onlyA)
	require.Empty(t, onlyB)
}

func TestMergeOrderedDisjointSides(t *testing.T) {
	merged, onlyA, onlyB := mergeOrdered([]string{"A"}, []string{"B"})
	require.Equal(t, []string{"A", "B"}, merged)
	require.Equal(t, []string{"A"}, onlyA)
	require.Equal(t, []string{"B"}, onlyB)
}
