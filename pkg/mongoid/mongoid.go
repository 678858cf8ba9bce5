// Package mongoid implements the session identifier used throughout the
// game backend. Identifiers are 24 lowercase hex characters, shaped like a
// MongoDB ObjectId, and are carried in the PHPSESSID cookie.
package mongoid

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
	"sync/atomic"
	"time"
)

// Length is the number of hex characters in an ID.
const Length = 24

// ErrInvalidID is returned by Parse when the input is not 24 hex characters.
var ErrInvalidID = errors.New("mongoid: invalid id")

// ID is an immutable session identifier.
type ID struct {
	b [12]byte
}

// Empty is the sentinel value meaning "no session".
var Empty = ID{}

var (
	processUnique [5]byte
	counter       atomic.Uint32
)

func init() {
	if _, err := rand.Read(processUnique[:]); err != nil {
		panic("mongoid: crypto/rand failed: " + err.Error())
	}
	var seed [4]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic("mongoid: crypto/rand failed: " + err.Error())
	}
	counter.Store(binary.BigEndian.Uint32(seed[:]))
}

// New generates a new ID: 4 bytes of unix seconds, 5 bytes unique to the
// process, then a 3 byte counter.
func New() ID {
	var id ID
	binary.BigEndian.PutUint32(id.b[0:4], uint32(time.Now().Unix()))
	copy(id.b[4:9], processUnique[:])
	c := counter.Add(1)
	id.b[9] = byte(c >> 16)
	id.b[10] = byte(c >> 8)
	id.b[11] = byte(c)
	return id
}

// Parse parses a 24 character hex string. Upper case input is accepted and
// normalized.
func Parse(s string) (ID, error) {
	if len(s) != Length {
		return Empty, ErrInvalidID
	}
	var id ID
	if _, err := hex.Decode(id.b[:], []byte(strings.ToLower(s))); err != nil {
		return Empty, ErrInvalidID
	}
	return id, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// constants.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsValid reports whether s is a well-formed ID.
func IsValid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// IsEmpty reports whether id is the Empty sentinel.
func (id ID) IsEmpty() bool {
	return id == Empty
}

// Timestamp returns the creation time encoded in the first four bytes.
func (id ID) Timestamp() time.Time {
	return time.Unix(int64(binary.BigEndian.Uint32(id.b[0:4])), 0)
}

// String returns the 24 character lowercase hex form.
func (id ID) String() string {
	return hex.EncodeToString(id.b[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
