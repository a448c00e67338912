package mappings_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ludoforge/classkit/mappings"
)

var twoNamespaces = []string{"official", "named"}

func oneClassTree(t *testing.T, ns1Name string, withMembers bool) *mappings.Mappings {
	t.Helper()
	m, err := mappings.New(twoNamespaces)
	require.NoError(t, err)
	c, err := m.AddClass(mappings.Names{Values: []string{"foo", ns1Name}})
	require.NoError(t, err)
	if withMembers {
		_, err = c.AddField("I", mappings.Names{Values: []string{"x", "count"}})
		require.NoError(t, err)
		_, err = c.AddMethod("()V", mappings.Names{Values: []string{"bar", "run"}})
		require.NoError(t, err)
	}
	return m
}

func encodeTree(t *testing.T, m *mappings.Mappings) string {
	t.Helper()
	text, err := mappings.Encode(m)
	require.NoError(t, err)
	return text
}

// TestDiffAddedClassCarriesItsMembers pins the fix for a class present
// on only one side: the field and method under it must survive
// Diff+Apply, not just the class's own name (spec §8 invariant 3).
func TestDiffAddedClassCarriesItsMembers(t *testing.T) {
	empty, err := mappings.New(twoNamespaces)
	require.NoError(t, err)
	full := oneClassTree(t, "Foo", true)

	d, err := mappings.Diff(empty, full)
	require.NoError(t, err)

	out, err := mappings.Apply(d, nil, twoNamespaces)
	require.NoError(t, err)
	require.Equal(t, encodeTree(t, full), encodeTree(t, out))
}

// TestDiffRemovedClassDropsItsMembers is the mirror of the above: the
// same Diff, inverted, drops a class and everything under it.
func TestDiffRemovedClassDropsItsMembers(t *testing.T) {
	empty, err := mappings.New(twoNamespaces)
	require.NoError(t, err)
	full := oneClassTree(t, "Foo", true)

	d, err := mappings.Diff(full, empty)
	require.NoError(t, err)

	out, err := mappings.Apply(d, full, twoNamespaces)
	require.NoError(t, err)
	require.Equal(t, encodeTree(t, empty), encodeTree(t, out))
}

// TestApplyInvertRoundTrips pins spec §8 invariant 3:
// apply(invert(diff), apply(diff, tree)) == tree.
func TestApplyInvertRoundTrips(t *testing.T) {
	before := oneClassTree(t, "Foo", true)
	after := oneClassTree(t, "FooBar", true)

	d, err := mappings.Diff(before, after)
	require.NoError(t, err)

	applied, err := mappings.Apply(d, before, twoNamespaces)
	require.NoError(t, err)
	require.Equal(t, encodeTree(t, after), encodeTree(t, applied))

	back, err := mappings.Apply(d.Invert(), applied, twoNamespaces)
	require.NoError(t, err)
	require.Equal(t, encodeTree(t, before), encodeTree(t, back))
}

// TestApplyingSameDiffTwiceErrors pins spec §8 scenario 5: once a diff
// has been applied, applying it again is a before-mismatch error.
func TestApplyingSameDiffTwiceErrors(t *testing.T) {
	before := oneClassTree(t, "Foo", false)
	after := oneClassTree(t, "FooBar", false)

	d, err := mappings.Diff(before, after)
	require.NoError(t, err)

	applied, err := mappings.Apply(d, before, twoNamespaces)
	require.NoError(t, err)

	_, err = mappings.Apply(d, applied, twoNamespaces)
	require.ErrorIs(t, err, mappings.ErrDiffApply)
}

// TestComposeMatchesSequentialApply pins spec §8 invariant 4:
// apply(compose(d1,d2), t) == apply(d2, apply(d1, t)).
func TestComposeMatchesSequentialApply(t *testing.T) {
	gen0 := oneClassTree(t, "Foo", true)
	gen1 := oneClassTree(t, "FooBar", true)
	gen2 := oneClassTree(t, "FooBarBaz", true)

	d1, err := mappings.Diff(gen0, gen1)
	require.NoError(t, err)
	d2, err := mappings.Diff(gen1, gen2)
	require.NoError(t, err)

	sequential, err := mappings.Apply(d1, gen0, twoNamespaces)
	require.NoError(t, err)
	sequential, err = mappings.Apply(d2, sequential, twoNamespaces)
	require.NoError(t, err)

	composed := mappings.Compose(d1, d2)
	direct, err := mappings.Apply(composed, gen0, twoNamespaces)
	require.NoError(t, err)

	require.Equal(t, encodeTree(t, sequential), encodeTree(t, direct))
	require.Equal(t, encodeTree(t, gen2), encodeTree(t, direct))
}

// TestDiffCodecRoundTrip pins spec §8 invariant 2 applied to the diff
// grammar (§6.3): encode then decode then re-encode is a fixed point.
func TestDiffCodecRoundTrip(t *testing.T) {
	before := oneClassTree(t, "Foo", true)
	after := oneClassTree(t, "FooBar", true)
	d, err := mappings.Diff(before, after)
	require.NoError(t, err)

	text := mappings.EncodeDiff(d)
	require.Contains(t, text, "tiny\t2\t0\n")

	decoded, err := mappings.DecodeDiff(strings.NewReader(text))
	require.NoError(t, err)

	reEncoded := mappings.EncodeDiff(decoded)
	require.Equal(t, text, reEncoded)
}
