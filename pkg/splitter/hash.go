package splitter

import (
	"crypto/sha256"
	"encoding/binary"
)

// HashVersion identifies the hashing scheme. Any change to the hash
// function, the separator, or the bit extraction is a new version: the
// mapping below must stay bit-reproducible across process restarts and
// implementations for the lifetime of a salt.
const HashVersion = 1

// hashSeparator joins salt and parts before hashing. 0x1f is the ASCII unit
// separator, reserved so that ("ab","c") and ("a","bc") hash differently.
const hashSeparator = 0x1f

// HashToUnit deterministically maps a salt and an ordered list of string
// parts to a float64 in [0,1).
//
// The scheme is SHA-256 over the UTF-8 bytes of salt and parts joined with
// the 0x1f separator; the first 8 digest bytes are read big-endian and the
// top 53 bits become the mantissa of the result. The output is uniform over
// [0,1) and identical for identical inputs, with no side effects and no
// failure mode for any finite input.
func HashToUnit(salt string, parts ...string) float64 {
	h := sha256.New()
	h.Write([]byte(salt))
	for _, part := range parts {
		h.Write([]byte{hashSeparator})
		h.Write([]byte(part))
	}
	digest := h.Sum(nil)
	v := binary.BigEndian.Uint64(digest[:8])
	// Top 53 bits: the largest integer range float64 represents exactly.
	return float64(v>>11) / float64(1<<53)
}
