// Package jsonutil is the JSON codec shared by the HTTP layer. It wraps
// sonnet, a drop-in encoding/json replacement, so callers never import the
// codec directly.
package jsonutil

import (
	"github.com/sugawarayuuta/sonnet"
)

// Marshal encodes v.
func Marshal(v any) ([]byte, error) {
	return sonnet.Marshal(v)
}

// Serialize encodes v to a string. It panics only if v contains a type the
// codec cannot represent (channels, funcs), which is a programming error.
func Serialize(v any) string {
	b, err := sonnet.Marshal(v)
	if err != nil {
		panic("jsonutil: " + err.Error())
	}
	return string(b)
}

// Unmarshal decodes data into v.
func Unmarshal(data []byte, v any) error {
	return sonnet.Unmarshal(data, v)
}

// Deserialize decodes a JSON string into a new T.
func Deserialize[T any](s string) (T, error) {
	var out T
	err := sonnet.Unmarshal([]byte(s), &out)
	return out, err
}
