package session

import (
	"context"
	"errors"
	"time"

	"github.com/sptgo/gameserver/pkg/mongoid"
)

// Store persists the last activity time per session.
// Implementations must be safe for concurrent use.
type Store interface {
	// SetActivity records activity at the given time. A timestamp older than
	// the stored one must not overwrite it.
	SetActivity(ctx context.Context, id mongoid.ID, at time.Time) error

	// GetActivity returns the last recorded activity time.
	// Returns ok=false when nothing is recorded.
	GetActivity(ctx context.Context, id mongoid.ID) (at time.Time, ok bool, err error)

	// ActiveSince lists sessions with activity at or after since.
	ActiveSince(ctx context.Context, since time.Time) ([]mongoid.ID, error)

	// Prune removes entries last active before the cutoff.
	Prune(ctx context.Context, before time.Time) error

	// Close releases any resources held by the store.
	Close() error
}

// ErrStoreClosed is returned when operations are attempted on a closed store.
var ErrStoreClosed = errors.New("session: store closed")
