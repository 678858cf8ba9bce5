// Package etag computes content-derived entity tags for HTTP responses.
package etag

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Compute returns a quoted hex entity tag for text. The digest is unseeded
// xxHash64 over the UTF-8 bytes, written big-endian as 16 hex digits.
func Compute(text string) string {
	return quote(xxhash.Sum64String(text))
}

// ComputeBytes is Compute for a byte slice.
func ComputeBytes(b []byte) string {
	return quote(xxhash.Sum64(b))
}

func quote(sum uint64) string {
	buf := make([]byte, 0, 18)
	buf = append(buf, '"')
	hex := strconv.AppendUint(nil, sum, 16)
	for i := len(hex); i < 16; i++ {
		buf = append(buf, '0')
	}
	buf = append(buf, hex...)
	buf = append(buf, '"')
	return string(buf)
}

// Valid reports whether tag has the shape produced by Compute.
func Valid(tag string) bool {
	if len(tag) != 18 || tag[0] != '"' || tag[17] != '"' {
		return false
	}
	for i := 1; i < 17; i++ {
		c := tag[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return false
		}
	}
	return true
}
