package server

import (
	"net/http"

	"github.com/sptgo/gameserver/pkg/mongoid"
)

// Listener handles HTTP requests it admits.
type Listener interface {
	// CanHandle reports whether the listener wants the request. It must not
	// read the body or write to the response.
	CanHandle(sessionID mongoid.ID, r *http.Request) bool

	// Handle produces the full response for r.
	Handle(sessionID mongoid.ID, w http.ResponseWriter, r *http.Request) error
}

// Resolver produces the response payload for a request.
//
// An empty string means no route produced output. ErrNoResponse means another
// component owns the connection and nothing must be written.
type Resolver interface {
	Resolve(sessionID mongoid.ID, r *http.Request, body *string) (string, error)
}

// RouteTable is a Resolver that can also tell whether it knows a request.
type RouteTable interface {
	Resolver
	CanDispatch(r *http.Request) bool
}

// WebSocketHandler takes over WebSocket upgrade requests.
type WebSocketHandler interface {
	CanHandle(r *http.Request) bool
	OnConnection(w http.ResponseWriter, r *http.Request) error
}

// ActivityRecorder records that a session was seen. RecordActivity must not
// block.
type ActivityRecorder interface {
	RecordActivity(id mongoid.ID)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(sessionID mongoid.ID, r *http.Request, body *string) (string, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(sessionID mongoid.ID, r *http.Request, body *string) (string, error) {
	return f(sessionID, r, body)
}
