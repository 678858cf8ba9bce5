package serializer

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/sptgo/gameserver/pkg/mongoid"
)

// Poller waits for pending notifications of one session.
type Poller interface {
	// Poll blocks until at least one notification is queued for sessionID or
	// ctx is done. Each returned entry is a JSON document.
	Poll(ctx context.Context, sessionID mongoid.ID) ([]string, error)
}

// Requeuer is implemented by pollers that can take back notifications that
// were polled but never reached the client.
type Requeuer interface {
	Requeue(sessionID mongoid.ID, messages []string)
}

// PingMessage is sent when a long-poll times out with nothing queued.
const PingMessage = `{"type":"ping","eventId":"ping"}`

// NotifySerializer answers the notifier long-poll route.
type NotifySerializer struct {
	Marker
	poller  Poller
	timeout time.Duration
}

// NewNotifySerializer creates a long-poll serializer that waits at most
// timeout for notifications.
func NewNotifySerializer(poller Poller, timeout time.Duration) *NotifySerializer {
	return &NotifySerializer{Marker: MarkerNotify, poller: poller, timeout: timeout}
}

// Name implements Serializer.
func (s *NotifySerializer) Name() string { return "notify" }

// Serialize implements Serializer. The session is taken from the last path
// segment, falling back to the cookie session.
func (s *NotifySerializer) Serialize(sessionID mongoid.ID, r *http.Request, w http.ResponseWriter, _ string) error {
	if id, err := mongoid.Parse(path.Base(r.URL.Path)); err == nil {
		sessionID = id
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	messages, err := s.poller.Poll(ctx, sessionID)
	if err != nil && ctx.Err() == nil {
		return err
	}
	if len(messages) == 0 {
		if r.Context().Err() != nil {
			// Client went away while waiting.
			return r.Context().Err()
		}
		messages = []string{PingMessage}
	} else if err := r.Context().Err(); err != nil {
		s.requeue(sessionID, messages)
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(strings.Join(messages, "\n"))); err != nil {
		s.requeue(sessionID, messages)
		return err
	}
	return nil
}

// requeue hands undelivered notifications back to the poller. Pings are not
// returned.
func (s *NotifySerializer) requeue(sessionID mongoid.ID, messages []string) {
	rq, ok := s.poller.(Requeuer)
	if !ok || (len(messages) == 1 && messages[0] == PingMessage) {
		return
	}
	rq.Requeue(sessionID, messages)
}
