package mutf8_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ludoforge/classkit/classfile/mutf8"
)

func TestRoundTripASCII(t *testing.T) {
	s := "hello/World;"
	b := mutf8.Encode(s)
	got, err := mutf8.Decode(b)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestRoundTripEmbeddedNUL(t *testing.T) {
	s := "a\x00b"
	b := mutf8.Encode(s)
	require.Equal(t, []byte{'a', 0xC0, 0x80, 'b'}, b)
	got, err := mutf8.Decode(b)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestRoundTripSupplementary(t *testing.T) {
	s := "\U0001F600" // outside the BMP, needs a surrogate pair
	b := mutf8.Encode(s)
	require.Len(t, b, 6)
	got, err := mutf8.Decode(b)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestDecodeTruncated(t *testing.T) {
	_, err := mutf8.Decode([]byte{0xC0})
	require.Error(t, err)
}

func TestDecodeBadLeadingByte(t *testing.T) {
	_, err := mutf8.Decode([]byte{0xFF})
	require.Error(t, err)
}

func TestLenMatchesEncode(t *testing.T) {
	for _, s := range []string{"", "abc", "a\x00b", "\U0001F600", "café"} {
		require.Equal(t, len(mutf8.Encode(s)), mutf8.Len(s), "mismatch for %q", s)
	}
}
