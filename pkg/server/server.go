package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/sptgo/gameserver/pkg/mongoid"
)

// Server is the connection router: every inbound connection enters through
// HandleConnection.
type Server struct {
	// Ordered, fixed at construction. The first admitting listener wins.
	listeners []Listener

	websocket WebSocketHandler
	activity  ActivityRecorder
	fallback  http.Handler

	// Configuration
	config *ServerConfig

	metrics *dispatchMetrics

	// HTTP server
	httpServer *http.Server

	// Logger
	logger *slog.Logger
}

// New creates a Server dispatching to listeners in the given order.
func New(config *ServerConfig, listeners ...Listener) *Server {
	if config == nil {
		config = DefaultServerConfig()
	} else {
		// Fill in defaults for any unset fields
		config = config.Clone()
		defaults := DefaultServerConfig()
		if config.IP == "" {
			config.IP = defaults.IP
		}
		if config.Port == 0 {
			config.Port = defaults.Port
		}
		if config.ReadHeaderTimeout == 0 {
			config.ReadHeaderTimeout = defaults.ReadHeaderTimeout
		}
		if config.IdleTimeout == 0 {
			config.IdleTimeout = defaults.IdleTimeout
		}
		if config.ShutdownTimeout == 0 {
			config.ShutdownTimeout = defaults.ShutdownTimeout
		}
		if config.Fallback == nil {
			config.Fallback = defaults.Fallback
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default().With("component", "server")
	}
	for _, warning := range config.GetConfigWarnings() {
		logger.Warn("config warning", "warning", warning)
	}

	return &Server{
		listeners: append([]Listener(nil), listeners...),
		websocket: config.WebSocket,
		activity:  config.Activity,
		fallback:  config.Fallback,
		config:    config,
		metrics:   newDispatchMetrics(config.Registerer),
		logger:    logger,
	}
}

// HandleConnection routes one connection. WebSocket upgrades admitted by the
// WebSocket handler are handed off; otherwise the first listener admitting
// the request handles it. When no listener does, next is called.
func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request, next http.Handler) error {
	if s.websocket != nil && websocket.IsWebSocketUpgrade(r) && s.websocket.CanHandle(r) {
		s.metrics.connections.WithLabelValues("websocket").Inc()
		if err := s.websocket.OnConnection(w, r); err != nil {
			return fmt.Errorf("%w: %w", ErrWebSocket, err)
		}
		return nil
	}

	sessionID := s.sessionID(r)

	for _, l := range s.listeners {
		if l.CanHandle(sessionID, r) {
			s.metrics.connections.WithLabelValues("listener").Inc()
			return l.Handle(sessionID, w, r)
		}
	}

	s.metrics.connections.WithLabelValues("next").Inc()
	if next != nil {
		next.ServeHTTP(w, r)
	}
	return nil
}

// sessionID reads the session cookie. A valid id is recorded as active;
// a missing or malformed cookie yields mongoid.Empty.
func (s *Server) sessionID(r *http.Request) mongoid.ID {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return mongoid.Empty
	}
	id, err := mongoid.Parse(cookie.Value)
	if err != nil {
		if s.logger.Enabled(r.Context(), slog.LevelDebug) {
			s.logger.Debug("ignoring malformed session cookie", "value", cookie.Value, "path", r.URL.Path)
		}
		return mongoid.Empty
	}
	if s.activity != nil {
		s.activity.RecordActivity(id)
	}
	return id
}

// ServeHTTP implements http.Handler. Requests no listener admits go to the
// configured fallback.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, s.fallback)
}

// Middleware mounts the router in front of next, which receives every
// request no listener admits.
func (s *Server) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.serve(w, r, next)
	})
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	tw := &trackingWriter{ResponseWriter: w}
	err := s.HandleConnection(tw, r, next)
	if err == nil {
		return
	}

	if tw.hijacked || errors.Is(err, ErrWebSocket) {
		// The WebSocket handler has already answered or owns the connection.
		s.logger.Warn("websocket connection failed", "path", r.URL.Path, "error", err)
		return
	}
	if !tw.wroteHeader {
		switch {
		case errors.Is(err, ErrBodyTooLarge):
			s.metrics.errors.WithLabelValues("too_large").Inc()
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
		case errors.Is(err, ErrBodyDecode):
			s.metrics.errors.WithLabelValues("bad_request").Inc()
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		default:
			s.metrics.errors.WithLabelValues("internal").Inc()
			s.logger.Error("request failed", "path", r.URL.Path, "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	// Headers are on the wire; a partial body must not look complete.
	s.metrics.errors.WithLabelValues("aborted").Inc()
	s.logger.Error("response failed", "path", r.URL.Path, "error", err)
	panic(http.ErrAbortHandler)
}

// ListeningURL returns the URL clients use to reach the server.
func (s *Server) ListeningURL() string {
	return "https://" + s.config.Address()
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	if err := s.config.ValidateConfig(); err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}
	return s.run(s.httpServer)
}

// RunHandler is Run with a caller-provided root handler, typically a mux
// that mounts Middleware.
func (s *Server) RunHandler(h http.Handler) error {
	if err := s.config.ValidateConfig(); err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           h,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		IdleTimeout:       s.config.IdleTimeout,
	}
	return s.run(s.httpServer)
}

func (s *Server) run(srv *http.Server) error {
	// Set up graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	// Error channel for ListenAndServe
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", "address", srv.Addr, "url", s.ListeningURL())
		if s.config.TLSCertFile != "" {
			errCh <- srv.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	// Wait for shutdown signal or error
	select {
	case err := <-errCh:
		if err != http.ErrServerClosed {
			return err
		}
		return nil

	case <-shutdown:
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Config returns the server configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// trackingWriter records whether the response has been committed.
type trackingWriter struct {
	http.ResponseWriter
	wroteHeader bool
	hijacked    bool
}

func (w *trackingWriter) WriteHeader(code int) {
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *trackingWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

func (w *trackingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		w.wroteHeader = true
		f.Flush()
	}
}

// Hijack lets the WebSocket upgrader take the connection.
func (w *trackingWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	w.hijacked = true
	return h.Hijack()
}

func (w *trackingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
