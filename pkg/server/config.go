package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ServerConfig holds configuration for the connection router and its HTTP
// server.
type ServerConfig struct {
	// IP is the address the server binds to.
	// Default: "127.0.0.1".
	IP string

	// Port is the TCP port the server binds to.
	// Default: 6969.
	Port int

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	// Timeouts

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 10 seconds.
	ReadHeaderTimeout time.Duration

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120 seconds.
	IdleTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// Collaborators

	// WebSocket receives upgrade requests it admits. Nil disables the handoff.
	WebSocket WebSocketHandler

	// Activity is told about every request carrying a valid session cookie.
	// Nil disables activity tracking.
	Activity ActivityRecorder

	// Fallback handles requests no listener admits when the Server is used
	// directly as an http.Handler.
	// Default: http.NotFoundHandler().
	Fallback http.Handler

	// Observability

	// Logger is the server logger.
	// Default: slog.Default().With("component", "server").
	Logger *slog.Logger

	// Registerer registers dispatch metrics.
	// Default: a private registry.
	Registerer prometheus.Registerer
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		IP:                "127.0.0.1",
		Port:              6969,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		Fallback:          http.NotFoundHandler(),
	}
}

// Clone returns a copy of the ServerConfig.
func (c *ServerConfig) Clone() *ServerConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Address returns the host:port the server listens on.
func (c *ServerConfig) Address() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

// ValidateConfig reports configuration errors that prevent the server from
// starting.
func (c *ServerConfig) ValidateConfig() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("server: port %d out of range", c.Port))
	}
	if c.IP != "" && net.ParseIP(c.IP) == nil {
		errs = append(errs, fmt.Errorf("server: invalid ip %q", c.IP))
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		errs = append(errs, errors.New("server: TLSCertFile and TLSKeyFile must be set together"))
	}
	return errors.Join(errs...)
}

// GetConfigWarnings returns non-fatal configuration issues.
func (c *ServerConfig) GetConfigWarnings() []string {
	var warnings []string
	if c.TLSCertFile == "" {
		warnings = append(warnings, "TLS is disabled; the game client expects https")
	}
	if c.Activity == nil {
		warnings = append(warnings, "session activity tracking is disabled")
	}
	return warnings
}

// ListenerConfig configures a ProtocolListener.
type ListenerConfig struct {
	// Release disables request/response logging on the requests logger.
	Release bool

	// MaxBodySize is the maximum size of a request body on the wire.
	// Default: 32 MiB.
	MaxBodySize int64

	// MaxInflateRatio bounds the decompressed body size to
	// MaxBodySize*MaxInflateRatio.
	// Default: 16.
	MaxInflateRatio int64

	// Logger is the listener logger. Request bodies and debug responses are
	// logged to it at Debug level.
	// Default: slog.Default().With("component", "http").
	Logger *slog.Logger

	// RequestLogger receives REQUEST= and RESPONSE= records at Info level.
	// Default: slog.Default().With("component", "requests").
	RequestLogger *slog.Logger

	// Registerer registers listener metrics.
	// Default: a private registry.
	Registerer prometheus.Registerer

	// TracerName names the OpenTelemetry tracer.
	// Default: "github.com/sptgo/gameserver/pkg/server".
	TracerName string

	// Now returns the current time for Last-Modified.
	// Default: time.Now.
	Now func() time.Time
}

// DefaultListenerConfig returns a ListenerConfig with sensible defaults.
func DefaultListenerConfig() *ListenerConfig {
	return &ListenerConfig{
		MaxBodySize:     32 << 20,
		MaxInflateRatio: 16,
		TracerName:      "github.com/sptgo/gameserver/pkg/server",
		Now:             time.Now,
	}
}

// inflateLimit is the maximum decompressed body size.
func (c *ListenerConfig) inflateLimit() int64 {
	return c.MaxBodySize * c.MaxInflateRatio
}
