package server

import (
	"errors"
	"fmt"

	"github.com/sptgo/gameserver/pkg/mongoid"
)

// Sentinel errors for request dispatch.
var (
	// ErrBodyDecode is returned when a request body cannot be read or inflated.
	ErrBodyDecode = errors.New("server: cannot decode request body")

	// ErrBodyTooLarge is returned when a request body exceeds the configured
	// limit, before or after decompression.
	ErrBodyTooLarge = errors.New("server: request body too large")

	// ErrNoResponse is returned by a Resolver when another component has taken
	// ownership of the connection. Nothing is written.
	ErrNoResponse = errors.New("server: no response")

	// ErrWriteResponse is returned when the response could not be written to
	// the client.
	ErrWriteResponse = errors.New("server: write response failed")

	// ErrWebSocket wraps failures of the WebSocket handoff. The WebSocket
	// handler answers the client itself.
	ErrWebSocket = errors.New("server: websocket connection failed")

	// ErrCompress is returned when the response body could not be compressed.
	ErrCompress = errors.New("server: compress response failed")
)

// RequestError wraps an error with the session and operation it occurred in.
type RequestError struct {
	SessionID mongoid.ID
	Op        string // Operation that failed
	Err       error  // Underlying error
}

// Error returns the error message with session context.
func (e *RequestError) Error() string {
	if e.SessionID.IsEmpty() {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: session %s: %s: %v", e.SessionID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewRequestError creates a new RequestError.
func NewRequestError(sessionID mongoid.ID, op string, err error) *RequestError {
	return &RequestError{
		SessionID: sessionID,
		Op:        op,
		Err:       err,
	}
}
