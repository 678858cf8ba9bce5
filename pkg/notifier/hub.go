// Package notifier delivers push notifications to game clients, either over
// the notifier WebSocket or through the long-poll route when no socket is
// attached.
package notifier

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/sptgo/gameserver/internal/jsonutil"
	"github.com/sptgo/gameserver/pkg/mongoid"
)

// DefaultMaxQueue bounds queued notifications per session.
const DefaultMaxQueue = 256

// ErrNoSession is returned when sending to the Empty session.
var ErrNoSession = errors.New("notifier: no session")

// Notification is the envelope the client expects for every event.
type Notification struct {
	Type    string `json:"type"`
	EventID string `json:"eventId"`
	Data    any    `json:"data,omitempty"`
}

// NewNotification creates a notification of the given type with a fresh
// event id.
func NewNotification(typ string, data any) Notification {
	return Notification{Type: typ, EventID: uuid.NewString(), Data: data}
}

// Ping is the keepalive notification.
var Ping = Notification{Type: "ping", EventID: "ping"}

// Hub routes notifications to attached sockets or per-session queues.
// It is safe for concurrent use.
type Hub struct {
	mu       sync.Mutex
	queues   map[mongoid.ID][]string
	waiters  map[mongoid.ID][]chan struct{}
	clients  map[mongoid.ID]*client
	maxQueue int
}

// NewHub creates a hub. maxQueue <= 0 uses DefaultMaxQueue.
func NewHub(maxQueue int) *Hub {
	if maxQueue <= 0 {
		maxQueue = DefaultMaxQueue
	}
	return &Hub{
		queues:   make(map[mongoid.ID][]string),
		waiters:  make(map[mongoid.ID][]chan struct{}),
		clients:  make(map[mongoid.ID]*client),
		maxQueue: maxQueue,
	}
}

// Send encodes msg and delivers it to sessionID. When a socket is attached
// the message is written there, otherwise it is queued for the next poll.
// The oldest message is dropped when the queue is full.
func (h *Hub) Send(sessionID mongoid.ID, msg any) error {
	if sessionID.IsEmpty() {
		return ErrNoSession
	}
	data, err := jsonutil.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[sessionID]; ok && c.enqueue(data) {
		return nil
	}

	q := append(h.queues[sessionID], string(data))
	if len(q) > h.maxQueue {
		q = q[len(q)-h.maxQueue:]
	}
	h.queues[sessionID] = q

	for _, w := range h.waiters[sessionID] {
		close(w)
	}
	delete(h.waiters, sessionID)
	return nil
}

// Poll returns queued notifications for sessionID, waiting until one arrives
// or ctx is done.
func (h *Hub) Poll(ctx context.Context, sessionID mongoid.ID) ([]string, error) {
	for {
		h.mu.Lock()
		if q := h.queues[sessionID]; len(q) > 0 {
			delete(h.queues, sessionID)
			h.mu.Unlock()
			return q, nil
		}
		wake := make(chan struct{})
		h.waiters[sessionID] = append(h.waiters[sessionID], wake)
		h.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			h.removeWaiter(sessionID, wake)
			return nil, ctx.Err()
		}
	}
}

// Requeue puts messages back in front of anything queued since they were
// polled. The queue bound still applies, dropping the oldest.
func (h *Hub) Requeue(sessionID mongoid.ID, messages []string) {
	if sessionID.IsEmpty() || len(messages) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	q := make([]string, 0, len(messages)+len(h.queues[sessionID]))
	q = append(q, messages...)
	q = append(q, h.queues[sessionID]...)
	if len(q) > h.maxQueue {
		q = q[len(q)-h.maxQueue:]
	}
	h.queues[sessionID] = q

	for _, w := range h.waiters[sessionID] {
		close(w)
	}
	delete(h.waiters, sessionID)
}

// Pending returns the number of queued notifications for sessionID.
func (h *Hub) Pending(sessionID mongoid.ID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.queues[sessionID])
}

// Connected reports whether a socket is attached for sessionID.
func (h *Hub) Connected(sessionID mongoid.ID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.clients[sessionID]
	return ok
}

func (h *Hub) removeWaiter(sessionID mongoid.ID, wake chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ws := h.waiters[sessionID]
	for i, w := range ws {
		if w == wake {
			ws = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(ws) == 0 {
		delete(h.waiters, sessionID)
	} else {
		h.waiters[sessionID] = ws
	}
}

// attach registers c as the socket for its session, replacing (and returning)
// any previous one. Queued messages are moved onto the socket.
func (h *Hub) attach(c *client) *client {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev := h.clients[c.sessionID]
	h.clients[c.sessionID] = c

	q := h.queues[c.sessionID]
	n := 0
	for _, msg := range q {
		if !c.enqueue([]byte(msg)) {
			break
		}
		n++
	}
	if n == len(q) {
		delete(h.queues, c.sessionID)
	} else {
		h.queues[c.sessionID] = q[n:]
	}
	return prev
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.sessionID] == c {
		delete(h.clients, c.sessionID)
	}
}
