// Package h2utils holds the small byte-twiddling helpers shared by the
// frame codec and the HPACK context: 24/32-bit big-endian conversions,
// padding, and the zero-copy string/byte conversions fasthttp itself
// relies on.
package h2utils

import (
	"crypto/rand"
	"fmt"
	"unsafe"

	"github.com/valyala/fastrand"
)

// Uint24ToBytes writes the 24-bit big-endian encoding of n into b.
func Uint24ToBytes(b []byte, n uint32) {
	_ = b[2]
	b[0] = byte(n >> 16)
	b[1] = byte(n >> 8)
	b[2] = byte(n)
}

// BytesToUint24 reads a 24-bit big-endian integer from b.
func BytesToUint24(b []byte) uint32 {
	_ = b[2]
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

// Uint32ToBytes writes the 32-bit big-endian encoding of n into b.
func Uint32ToBytes(b []byte, n uint32) {
	_ = b[3]
	b[0] = byte(n >> 24)
	b[1] = byte(n >> 16)
	b[2] = byte(n >> 8)
	b[3] = byte(n)
}

// AppendUint32Bytes appends the 32-bit big-endian encoding of n to dst.
func AppendUint32Bytes(dst []byte, n uint32) []byte {
	return append(dst, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
}

// BytesToUint32 reads a 32-bit big-endian integer from b.
func BytesToUint32(b []byte) uint32 {
	_ = b[3]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// Resize grows b, reusing spare capacity, so that len(b) == neededLen.
func Resize(b []byte, neededLen int) []byte {
	b = b[:cap(b)]
	if n := neededLen - len(b); n > 0 {
		b = append(b, make([]byte, n)...)
	}
	return b[:neededLen]
}

// CutPadding strips the pad-length octet and trailing padding from a
// PADDED frame's payload, returning just the real payload.
func CutPadding(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("h2utils: padded frame has empty payload")
	}
	pad := int(payload[0])
	if pad > len(payload)-1 {
		return nil, fmt.Errorf("h2utils: pad length %d exceeds payload", pad)
	}
	return payload[1 : len(payload)-pad], nil
}

// AddPadding prepends a random 1-255 byte pad length plus that many
// random padding octets to b, as FlagPadded requires on the wire.
func AddPadding(b []byte) []byte {
	n := int(fastrand.Uint32n(256-1)) + 1
	out := make([]byte, 0, len(b)+n+1)
	out = append(out, byte(n))
	out = append(out, b...)
	padStart := len(out)
	out = Resize(out, len(out)+n)
	_, _ = rand.Read(out[padStart:])
	return out
}

// B2S converts a byte slice to a string without copying. The caller
// must not mutate b for as long as the returned string is alive.
func B2S(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// S2B converts a string to a byte slice without copying. The returned
// slice must not be mutated.
func S2B(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// EqualFold reports whether a and b are equal ASCII header names
// ignoring case, without allocating.
func EqualFold(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i]|0x20 != b[i]|0x20 {
			return false
		}
	}
	return true
}
