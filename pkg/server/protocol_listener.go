package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sptgo/gameserver/internal/jsonutil"
	"github.com/sptgo/gameserver/pkg/etag"
	"github.com/sptgo/gameserver/pkg/httpresponse"
	"github.com/sptgo/gameserver/pkg/mongoid"
	"github.com/sptgo/gameserver/pkg/serializer"
)

// SessionCookie is the cookie carrying the session identifier.
const SessionCookie = "PHPSESSID"

// Request headers controlling the wire format.
const (
	HeaderRequestCompressed  = "requestcompressed"
	HeaderResponseCompressed = "responsecompressed"
)

// ProtocolListener is the Listener for the game client's HTTP protocol.
type ProtocolListener struct {
	routes      RouteTable
	serializers *serializer.Chain
	config      *ListenerConfig
	logger      *slog.Logger
	requests    *slog.Logger
	tracer      trace.Tracer
	metrics     *listenerMetrics
}

// NewProtocolListener creates a listener dispatching to routes. Outputs a
// serializer in chain recognizes are written by that serializer.
func NewProtocolListener(routes RouteTable, chain *serializer.Chain, config *ListenerConfig) *ProtocolListener {
	defaults := DefaultListenerConfig()
	if config == nil {
		config = defaults
	} else {
		clone := *config
		config = &clone
		if config.MaxBodySize <= 0 {
			config.MaxBodySize = defaults.MaxBodySize
		}
		if config.MaxInflateRatio <= 0 {
			config.MaxInflateRatio = defaults.MaxInflateRatio
		}
		if config.TracerName == "" {
			config.TracerName = defaults.TracerName
		}
		if config.Now == nil {
			config.Now = defaults.Now
		}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default().With("component", "http")
	}
	requests := config.RequestLogger
	if requests == nil {
		requests = slog.Default().With("component", "requests")
	}
	if chain == nil {
		chain = serializer.NewChain()
	}

	return &ProtocolListener{
		routes:      routes,
		serializers: chain,
		config:      config,
		logger:      logger,
		requests:    requests,
		tracer:      otel.Tracer(config.TracerName),
		metrics:     newListenerMetrics(config.Registerer),
	}
}

// CanHandle admits GET, PUT and POST requests the route table knows.
func (l *ProtocolListener) CanHandle(_ mongoid.ID, r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodPut, http.MethodPost:
		return l.routes.CanDispatch(r)
	default:
		return false
	}
}

// Handle reads the body, resolves the route and writes the response.
func (l *ProtocolListener) Handle(sessionID mongoid.ID, w http.ResponseWriter, r *http.Request) (err error) {
	start := time.Now()
	ctx, span := l.tracer.Start(r.Context(), "spt.http "+r.Method,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("url.path", r.URL.Path),
			attribute.String("spt.session_id", sessionID.String()),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
		l.metrics.duration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	}()
	r = r.WithContext(ctx)

	var body *string
	if r.Method == http.MethodPut || r.Method == http.MethodPost {
		text, err := l.readBody(w, r)
		if err != nil {
			return NewRequestError(sessionID, "decode body", err)
		}
		body = &text
	}

	output, err := l.GetResponse(sessionID, r, body)
	if errors.Is(err, ErrNoResponse) {
		l.metrics.responses.WithLabelValues("none").Inc()
		return nil
	}
	if err != nil {
		return NewRequestError(sessionID, "resolve", err)
	}

	return l.SendResponse(sessionID, r, w, body, output)
}

// readBody reads the request body, inflating it when the legacy compression
// rule says it is compressed.
func (l *ProtocolListener) readBody(w http.ResponseWriter, r *http.Request) (string, error) {
	// Content-Encoding is not consulted: PUT is always compressed and POST is
	// compressed unless requestcompressed is "0".
	requestIsCompressed := isRequestCompressed(r)
	compressed := r.Method == http.MethodPut || requestIsCompressed

	raw := getBuffer()
	defer putBuffer(raw)
	if r.Body != nil {
		if _, err := raw.ReadFrom(http.MaxBytesReader(w, r.Body, l.config.MaxBodySize)); err != nil {
			if isBodyTooLarge(err) {
				return "", ErrBodyTooLarge
			}
			return "", fmt.Errorf("%w: %w", ErrBodyDecode, err)
		}
	}

	var body string
	if compressed && raw.Len() > 0 {
		inflated := getBuffer()
		defer putBuffer(inflated)
		if err := inflateTo(inflated, raw, l.config.inflateLimit()); err != nil {
			return "", err
		}
		body = inflated.String()
	} else {
		body = raw.String()
	}
	l.metrics.requestBytes.Observe(float64(len(body)))

	if !requestIsCompressed && l.logger.Enabled(r.Context(), slog.LevelDebug) {
		l.logger.Debug(body)
	}
	return body, nil
}

// GetResponse resolves the request. A route producing no output yields the
// 404 envelope naming the path.
func (l *ProtocolListener) GetResponse(sessionID mongoid.ID, r *http.Request, body *string) (string, error) {
	output, err := l.routes.Resolve(sessionID, r, body)
	if err != nil {
		return "", err
	}
	if output == "" {
		output = httpresponse.NotFound(r.URL.Path)
	}

	if l.logRecords(r.Context()) {
		record := requestRecord{
			Method: r.Method,
			Output: requestOutput{URL: r.URL.Path, Headers: r.Header},
		}
		l.requests.Info("REQUEST=" + jsonutil.Serialize(record))
	}
	return output, nil
}

// SendResponse writes output in the format the request asks for.
func (l *ProtocolListener) SendResponse(sessionID mongoid.ID, r *http.Request, w http.ResponseWriter, body *string, output string) error {
	l.metrics.responseBytes.Observe(float64(len(output)))

	if isDebugRequest(r) {
		if err := l.SendJSON(w, output, sessionID); err != nil {
			return err
		}
		if l.logger.Enabled(r.Context(), slog.LevelDebug) {
			l.logger.Debug("Response: " + output)
		}
		l.logResponse(r, output)
		return nil
	}

	if s, ok := l.serializers.Find(output); ok {
		bodyJSON := "{}"
		if body != nil {
			bodyJSON = jsonutil.Serialize(*body)
		}
		l.metrics.responses.WithLabelValues(s.Name()).Inc()
		if err := s.Serialize(sessionID, r, w, bodyJSON); err != nil {
			return NewRequestError(sessionID, "serialize "+s.Name(), err)
		}
	} else if err := l.SendZlibJSON(w, output, sessionID); err != nil {
		return err
	}

	l.logResponse(r, output)
	return nil
}

// SendJSON writes output uncompressed. ETag, Last-Modified and Content-Length
// are only set for a non-empty output.
func (l *ProtocolListener) SendJSON(w http.ResponseWriter, output string, sessionID mongoid.ID) error {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: sessionID.String()})
	if output != "" {
		h.Set("ETag", etag.Compute(output))
		h.Set("Last-Modified", l.config.Now().UTC().Format(http.TimeFormat))
		h.Set("Content-Length", strconv.Itoa(len(output)))
	}
	w.WriteHeader(http.StatusOK)
	l.metrics.responses.WithLabelValues("json").Inc()

	if output == "" {
		return nil
	}
	if _, err := io.WriteString(w, output); err != nil {
		return NewRequestError(sessionID, "write response", fmt.Errorf("%w: %w", ErrWriteResponse, err))
	}
	return nil
}

// SendZlibJSON writes output as a zlib stream. The ETag is computed over the
// uncompressed output. Nothing is written if compression fails.
func (l *ProtocolListener) SendZlibJSON(w http.ResponseWriter, output string, sessionID mongoid.ID) error {
	buf := getBuffer()
	defer putBuffer(buf)
	if err := compressTo(buf, output); err != nil {
		return NewRequestError(sessionID, "compress response", fmt.Errorf("%w: %w", ErrCompress, err))
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: sessionID.String()})
	h.Set("ETag", etag.Compute(output))
	h.Set("Last-Modified", l.config.Now().UTC().Format(http.TimeFormat))
	h.Set("Content-Encoding", "deflate")
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	l.metrics.responses.WithLabelValues("zlib").Inc()

	if _, err := w.Write(buf.Bytes()); err != nil {
		return NewRequestError(sessionID, "write response", fmt.Errorf("%w: %w", ErrWriteResponse, err))
	}
	return nil
}

func (l *ProtocolListener) logRecords(ctx context.Context) bool {
	return !l.config.Release && l.requests.Enabled(ctx, slog.LevelInfo)
}

func (l *ProtocolListener) logResponse(r *http.Request, output string) {
	if !l.logRecords(r.Context()) {
		return
	}
	record := responseRecord{Method: r.Method, JSONData: output}
	l.requests.Info("RESPONSE=" + jsonutil.Serialize(record))
}

// isRequestCompressed reports whether the requestcompressed header leaves
// compression on. A missing header means compressed.
func isRequestCompressed(r *http.Request) bool {
	values, ok := r.Header[http.CanonicalHeaderKey(HeaderRequestCompressed)]
	return !ok || len(values) == 0 || values[0] != "0"
}

// isDebugRequest reports whether the client asked for an uncompressed
// response.
func isDebugRequest(r *http.Request) bool {
	values, ok := r.Header[http.CanonicalHeaderKey(HeaderResponseCompressed)]
	return ok && len(values) > 0 && values[0] == "0"
}
