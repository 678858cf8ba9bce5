// Package serializer holds the content-specific responders that take over a
// response's wire encoding when the generic JSON path does not apply.
//
// A route signals that it wants one of these by returning a marker string
// ("IMAGE", "BUNDLE", "NOTIFY") instead of a JSON document. The protocol
// listener scans the Chain in registration order and hands the full write to
// the first serializer whose CanHandle accepts that output.
package serializer

import (
	"net/http"

	"github.com/sptgo/gameserver/pkg/mongoid"
)

// Serializer owns the entire outbound write once selected.
type Serializer interface {
	// Name identifies the serializer in logs and metrics.
	Name() string

	// CanHandle reports whether this serializer owns output. It must be cheap
	// and free of side effects.
	CanHandle(output string) bool

	// Serialize writes the complete response. body is the request body
	// re-encoded as JSON.
	Serialize(sessionID mongoid.ID, r *http.Request, w http.ResponseWriter, body string) error
}

// Chain is an ordered, immutable set of serializers.
type Chain struct {
	serializers []Serializer
}

// NewChain builds a chain. Order is significant: the first match wins.
func NewChain(serializers ...Serializer) *Chain {
	s := make([]Serializer, len(serializers))
	copy(s, serializers)
	return &Chain{serializers: s}
}

// Find returns the first serializer that accepts output.
func (c *Chain) Find(output string) (Serializer, bool) {
	if c == nil {
		return nil, false
	}
	for _, s := range c.serializers {
		if s.CanHandle(output) {
			return s, true
		}
	}
	return nil, false
}

// Len returns the number of registered serializers.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.serializers)
}

// Names lists serializer names in order.
func (c *Chain) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.serializers))
	for i, s := range c.serializers {
		names[i] = s.Name()
	}
	return names
}

// Marker is a Serializer predicate matching one exact output string.
type Marker string

// CanHandle reports whether output equals the marker.
func (m Marker) CanHandle(output string) bool {
	return output == string(m)
}

// Markers emitted by routes.
const (
	MarkerImage  Marker = "IMAGE"
	MarkerBundle Marker = "BUNDLE"
	MarkerNotify Marker = "NOTIFY"
)
