// Package mutf8 encodes and decodes JVM Modified UTF-8 (JVMS §4.4.7): a
// WTF-8 variant where the NUL code point is encoded as the two bytes
// 0xC0 0x80, and supplementary code points are encoded as a 6-byte pair
// of surrogate-half 3-byte sequences rather than the standard 4-byte
// UTF-8 form.
package mutf8

import (
	"unicode/utf16"

	"github.com/pkg/errors"
)

// ErrIllFormed is returned when a byte sequence does not decode as valid
// Modified UTF-8.
var ErrIllFormed = errors.New("mutf8: ill-formed encoding")

// Decode turns a Modified UTF-8 byte sequence into a Go string. The
// three-case byte-length dispatch mirrors the JVM class reader's own
// inner decode loop.
func Decode(b []byte) (string, error) {
	out := make([]rune, 0, len(b))
	i := 0
	for i < len(b) {
		c := b[i]
		switch {
		case c&0x80 == 0:
			out = append(out, rune(c&0x7F))
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) {
				return "", errors.Wrapf(ErrIllFormed, "truncated 2-byte sequence at offset %d", i)
			}
			b1 := b[i+1]
			if b1&0xC0 != 0x80 {
				return "", errors.Wrapf(ErrIllFormed, "bad continuation byte at offset %d", i+1)
			}
			r := rune(c&0x1F)<<6 | rune(b1&0x3F)
			out = append(out, r)
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) {
				return "", errors.Wrapf(ErrIllFormed, "truncated 3-byte sequence at offset %d", i)
			}
			// JVM-specific: a surrogate-half 3-byte sequence starting a
			// 6-byte supplementary-codepoint pair is detected by the
			// leading nibble of the decoded high surrogate.
			if c == 0xED && i+5 < len(b) && b[i+3] == 0xED {
				hi, err := decode3(b[i : i+3])
				if err != nil {
					return "", err
				}
				lo, err := decode3(b[i+3 : i+6])
				if err != nil {
					return "", err
				}
				if utf16.IsSurrogate(hi) && utf16.IsSurrogate(lo) {
					r := utf16.DecodeRune(hi, lo)
					out = append(out, r)
					i += 6
					continue
				}
			}
			r, err := decode3(b[i : i+3])
			if err != nil {
				return "", errors.Wrapf(err, "at offset %d", i)
			}
			out = append(out, r)
			i += 3
		default:
			return "", errors.Wrapf(ErrIllFormed, "bad leading byte 0x%02x at offset %d", c, i)
		}
	}
	return string(out), nil
}

func decode3(b []byte) (rune, error) {
	if b[1]&0xC0 != 0x80 || b[2]&0xC0 != 0x80 {
		return 0, ErrIllFormed
	}
	return rune(b[0]&0x0F)<<12 | rune(b[1]&0x3F)<<6 | rune(b[2]&0x3F), nil
}

// Encode turns a Go string into its Modified UTF-8 byte representation.
// Round-tripping Decode(Encode(s)) == s holds for every string Decode can
// produce (spec §4.1, invariant 8.5 analog for the codec itself).
func Encode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch {
		case r == 0:
			out = append(out, 0xC0, 0x80)
		case r > 0 && r <= 0x7F:
			out = append(out, byte(r))
		case r <= 0x7FF:
			out = append(out, byte(0xC0|(r>>6)), byte(0x80|(r&0x3F)))
		case r <= 0xFFFF:
			out = append(out, encode3(r)...)
		default:
			hi, lo := utf16.EncodeRune(r)
			out = append(out, encode3(hi)...)
			out = append(out, encode3(lo)...)
		}
	}
	return out
}

func encode3(r rune) []byte {
	return []byte{
		byte(0xE0 | (r>>12)&0x0F),
		byte(0x80 | (r>>6)&0x3F),
		byte(0x80 | r&0x3F),
	}
}

// Len returns the number of bytes Encode(s) would produce, without
// allocating, for callers sizing a CONSTANT_Utf8_info length prefix.
func Len(s string) int {
	n := 0
	for _, r := range s {
		switch {
		case r == 0:
			n += 2
		case r > 0 && r <= 0x7F:
			n++
		case r <= 0x7FF:
			n += 2
		case r <= 0xFFFF:
			n += 3
		default:
			n += 6
		}
	}
	return n
}
