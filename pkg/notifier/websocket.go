package notifier

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/sptgo/gameserver/internal/jsonutil"
	"github.com/sptgo/gameserver/pkg/mongoid"
)

// DefaultPathPrefix is where the game client opens its notifier socket.
const DefaultPathPrefix = "/notifierServer/getwebsocket/"

// Config configures the WebSocketServer.
type Config struct {
	// PathPrefix is the path the socket is served under; the session id is
	// the final path segment.
	// Default: DefaultPathPrefix.
	PathPrefix string

	// KeepAlive is the interval between ping notifications.
	// Default: 90 seconds.
	KeepAlive time.Duration

	// WriteTimeout bounds every socket write.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// MaxMessageSize is the largest inbound frame accepted.
	// Default: 64KB.
	MaxMessageSize int64

	// MessagesPerSecond and Burst rate limit inbound frames per connection.
	// A zero MessagesPerSecond disables limiting.
	MessagesPerSecond rate.Limit
	Burst             int

	// CheckOrigin validates the upgrade Origin. Default: allow all, the game
	// client sends none.
	CheckOrigin func(r *http.Request) bool

	// SendBuffer is the per-connection outbound queue size.
	// Default: 64.
	SendBuffer int
}

// DefaultConfig returns a Config with defaults applied.
func DefaultConfig() Config {
	return Config{
		PathPrefix:        DefaultPathPrefix,
		KeepAlive:         90 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxMessageSize:    64 * 1024,
		MessagesPerSecond: 10,
		Burst:             20,
		CheckOrigin:       func(*http.Request) bool { return true },
		SendBuffer:        64,
	}
}

// WebSocketServer admits and serves notifier sockets.
type WebSocketServer struct {
	hub      *Hub
	config   Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketServer creates a socket server feeding from hub.
func NewWebSocketServer(hub *Hub, config Config, logger *slog.Logger) *WebSocketServer {
	defaults := DefaultConfig()
	if config.PathPrefix == "" {
		config.PathPrefix = defaults.PathPrefix
	}
	if config.KeepAlive == 0 {
		config.KeepAlive = defaults.KeepAlive
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = defaults.MaxMessageSize
	}
	if config.CheckOrigin == nil {
		config.CheckOrigin = defaults.CheckOrigin
	}
	if config.SendBuffer == 0 {
		config.SendBuffer = defaults.SendBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &WebSocketServer{
		hub:    hub,
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     config.CheckOrigin,
		},
		logger: logger.With("component", "notifier"),
	}
}

// Hub returns the hub this server delivers from.
func (s *WebSocketServer) Hub() *Hub {
	return s.hub
}

// CanHandle reports whether r targets the notifier socket path.
func (s *WebSocketServer) CanHandle(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, s.config.PathPrefix)
}

// OnConnection upgrades r and serves the socket until it closes.
func (s *WebSocketServer) OnConnection(w http.ResponseWriter, r *http.Request) error {
	sessionID, err := mongoid.Parse(path.Base(r.URL.Path))
	if err != nil {
		http.Error(w, "invalid session", http.StatusBadRequest)
		return err
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error.
		s.logger.Error("websocket upgrade failed", "error", err)
		return err
	}
	conn.SetReadLimit(s.config.MaxMessageSize)

	c := &client{
		id:        uuid.NewString(),
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, s.config.SendBuffer),
		done:      make(chan struct{}),
	}
	if s.config.MessagesPerSecond > 0 {
		c.limiter = rate.NewLimiter(s.config.MessagesPerSecond, s.config.Burst)
	}

	if prev := s.hub.attach(c); prev != nil {
		s.logger.Debug("replacing notifier socket", "session_id", sessionID, "previous", prev.id)
		prev.close(websocket.CloseNormalClosure, "replaced")
	}
	s.logger.Info("notifier socket connected", "session_id", sessionID, "conn_id", c.id)

	go s.writePump(c)
	err = s.readPump(c)

	s.hub.detach(c)
	c.close(websocket.CloseNormalClosure, "")
	s.logger.Info("notifier socket closed", "session_id", sessionID, "conn_id", c.id)

	if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, errClientClosed) {
		return err
	}
	return nil
}

var errClientClosed = errors.New("notifier: connection closed")

func (s *WebSocketServer) readPump(c *client) error {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return errClientClosed
			default:
				return err
			}
		}
		if c.limiter != nil && !c.limiter.Allow() {
			s.logger.Warn("notifier socket rate limited", "session_id", c.sessionID)
			c.close(websocket.ClosePolicyViolation, "rate limit exceeded")
			return nil
		}
		if s.logger.Enabled(context.Background(), slog.LevelDebug) {
			s.logger.Debug("notifier message", "session_id", c.sessionID, "message", string(msg))
		}
	}
}

func (s *WebSocketServer) writePump(c *client) {
	ticker := time.NewTicker(s.config.KeepAlive)
	defer ticker.Stop()

	ping := []byte(jsonutil.Serialize(Ping))

	for {
		var msg []byte
		select {
		case msg = <-c.send:
		case <-ticker.C:
			msg = ping
		case <-c.done:
			return
		}

		c.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.logger.Debug("notifier write failed", "session_id", c.sessionID, "error", err)
			c.close(websocket.CloseGoingAway, "")
			return
		}
	}
}

type client struct {
	id        string
	sessionID mongoid.ID
	conn      *websocket.Conn
	send      chan []byte
	limiter   *rate.Limiter

	closeOnce sync.Once
	done      chan struct{}
}

// enqueue hands data to the write pump without blocking.
func (c *client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(time.Second)
		c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		c.conn.Close()
	})
}
