package server

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sptgo/gameserver/pkg/etag"
	"github.com/sptgo/gameserver/pkg/mongoid"
	"github.com/sptgo/gameserver/pkg/serializer"
)

var testSession = mongoid.MustParse("5f1e6a3b9c2d4e0f1a2b3c4d")

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// stubRoutes admits every request and answers with resolve.
type stubRoutes struct {
	resolve func(sessionID mongoid.ID, r *http.Request, body *string) (string, error)
	seen    *string
}

func (s *stubRoutes) CanDispatch(*http.Request) bool { return true }

func (s *stubRoutes) Resolve(sessionID mongoid.ID, r *http.Request, body *string) (string, error) {
	if body != nil && s.seen != nil {
		*s.seen = *body
	}
	return s.resolve(sessionID, r, body)
}

func returning(output string) *stubRoutes {
	return &stubRoutes{resolve: func(mongoid.ID, *http.Request, *string) (string, error) {
		return output, nil
	}}
}

func echoRoutes(seen *string) *stubRoutes {
	return &stubRoutes{
		seen: seen,
		resolve: func(_ mongoid.ID, _ *http.Request, body *string) (string, error) {
			if body == nil {
				return "", nil
			}
			return *body, nil
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestListener(routes RouteTable, chain *serializer.Chain) *ProtocolListener {
	return NewProtocolListener(routes, chain, &ListenerConfig{
		Logger:        discardLogger(),
		RequestLogger: discardLogger(),
		Now:           func() time.Time { return fixedNow },
	})
}

func compressed(t *testing.T, s string) io.Reader {
	t.Helper()
	b, err := Compress(s)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(b)
}

func inflate(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	out, err := Decompress(rec.Body.Bytes(), 0)
	if err != nil {
		t.Fatalf("response is not zlib: %v", err)
	}
	return out
}

func TestPingEcho(t *testing.T) {
	var seen string
	l := newTestListener(echoRoutes(&seen), nil)

	r := httptest.NewRequest(http.MethodPut, "/client/echo", compressed(t, `{"ping":1}`))
	rec := httptest.NewRecorder()
	if err := l.Handle(testSession, rec, r); err != nil {
		t.Fatalf("Handle error: %v", err)
	}

	if seen != `{"ping":1}` {
		t.Errorf("resolver body = %q, want {\"ping\":1}", seen)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	h := rec.Header()
	if got := h.Get("Content-Encoding"); got != "deflate" {
		t.Errorf("Content-Encoding = %q, want deflate", got)
	}
	if got := h.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	if got := h.Get("ETag"); got != etag.Compute(`{"ping":1}`) {
		t.Errorf("ETag = %q, want hash of uncompressed output", got)
	}
	if got := h.Get("Last-Modified"); got != fixedNow.Format(http.TimeFormat) {
		t.Errorf("Last-Modified = %q", got)
	}
	if got := h.Get("Set-Cookie"); got != "PHPSESSID="+testSession.String() {
		t.Errorf("Set-Cookie = %q", got)
	}
	if got := h.Get("Content-Length"); got != strconv.Itoa(rec.Body.Len()) {
		t.Errorf("Content-Length = %q, body is %d bytes", got, rec.Body.Len())
	}
	if got := inflate(t, rec); got != `{"ping":1}` {
		t.Errorf("body = %q, want {\"ping\":1}", got)
	}
}

func TestPutIsAlwaysCompressed(t *testing.T) {
	var seen string
	l := newTestListener(echoRoutes(&seen), nil)

	// requestcompressed: 0 does not apply to PUT.
	r := httptest.NewRequest(http.MethodPut, "/x", compressed(t, `{"a":1}`))
	r.Header.Set(HeaderRequestCompressed, "0")
	if err := l.Handle(testSession, httptest.NewRecorder(), r); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if seen != `{"a":1}` {
		t.Errorf("PUT body = %q, want inflated JSON", seen)
	}
}

func TestPostCompressionHeader(t *testing.T) {
	tests := []struct {
		name       string
		header     *string
		compressed bool
	}{
		{"header absent", nil, true},
		{"header 1", ptr("1"), true},
		{"header empty", ptr(""), true},
		{"header 0", ptr("0"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			l := newTestListener(echoRoutes(&seen), nil)

			var body io.Reader = strings.NewReader(`{"b":2}`)
			if tt.compressed {
				body = compressed(t, `{"b":2}`)
			}
			r := httptest.NewRequest(http.MethodPost, "/x", body)
			if tt.header != nil {
				r.Header[http.CanonicalHeaderKey(HeaderRequestCompressed)] = []string{*tt.header}
			}
			// Content-Encoding is ignored either way.
			r.Header.Set("Content-Encoding", "identity")

			if err := l.Handle(testSession, httptest.NewRecorder(), r); err != nil {
				t.Fatalf("Handle error: %v", err)
			}
			if seen != `{"b":2}` {
				t.Errorf("body = %q, want {\"b\":2}", seen)
			}
		})
	}
}

func ptr(s string) *string { return &s }

func TestPostCompressedBodyWithoutHeaderFailsOnPlainText(t *testing.T) {
	l := newTestListener(echoRoutes(nil), nil)

	r := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"plain":true}`))
	rec := httptest.NewRecorder()
	err := l.Handle(testSession, rec, r)
	if !errors.Is(err, ErrBodyDecode) {
		t.Fatalf("Handle error = %v, want ErrBodyDecode", err)
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Op != "decode body" || reqErr.SessionID != testSession {
		t.Errorf("error = %#v, want RequestError for decode body", err)
	}
	if rec.Body.Len() != 0 || len(rec.Header()) != 0 {
		t.Error("decode failure must not write a response")
	}
}

func TestEmptyCompressedBody(t *testing.T) {
	var seen = "unset"
	l := newTestListener(echoRoutes(&seen), nil)

	r := httptest.NewRequest(http.MethodPut, "/x", http.NoBody)
	if err := l.Handle(testSession, httptest.NewRecorder(), r); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if seen != "" {
		t.Errorf("body = %q, want empty", seen)
	}
}

func TestBodyTooLarge(t *testing.T) {
	l := NewProtocolListener(echoRoutes(nil), nil, &ListenerConfig{
		MaxBodySize:   16,
		Logger:        discardLogger(),
		RequestLogger: discardLogger(),
	})

	r := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(strings.Repeat("x", 64)))
	r.Header.Set(HeaderRequestCompressed, "0")
	err := l.Handle(testSession, httptest.NewRecorder(), r)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Errorf("oversized body error = %v, want ErrBodyTooLarge", err)
	}

	// A small wire body that inflates past MaxBodySize*MaxInflateRatio.
	l = NewProtocolListener(echoRoutes(nil), nil, &ListenerConfig{
		MaxBodySize:     64,
		MaxInflateRatio: 2,
		Logger:          discardLogger(),
		RequestLogger:   discardLogger(),
	})
	r = httptest.NewRequest(http.MethodPut, "/x", compressed(t, strings.Repeat("a", 1000)))
	if err := l.Handle(testSession, httptest.NewRecorder(), r); !errors.Is(err, ErrBodyTooLarge) {
		t.Errorf("zip bomb error = %v, want ErrBodyTooLarge", err)
	}
}

func TestDebugResponseIsVerbatim(t *testing.T) {
	const output = `{"err":0,"errmsg":null,"data":"hello"}`
	l := newTestListener(returning(output), nil)

	r := httptest.NewRequest(http.MethodGet, "/client/debug", nil)
	r.Header.Set(HeaderResponseCompressed, "0")
	rec := httptest.NewRecorder()
	if err := l.Handle(testSession, rec, r); err != nil {
		t.Fatalf("Handle error: %v", err)
	}

	if rec.Body.String() != output {
		t.Errorf("body = %q, want %q", rec.Body.String(), output)
	}
	h := rec.Header()
	if h.Get("Content-Encoding") != "" {
		t.Errorf("debug response must not be compressed, got Content-Encoding %q", h.Get("Content-Encoding"))
	}
	if got := h.Get("ETag"); got != etag.Compute(output) {
		t.Errorf("ETag = %q, want %q", got, etag.Compute(output))
	}
	if got := h.Get("Content-Length"); got != strconv.Itoa(len(output)) {
		t.Errorf("Content-Length = %q, want %d", got, len(output))
	}
	if got := h.Get("Set-Cookie"); got != "PHPSESSID="+testSession.String() {
		t.Errorf("Set-Cookie = %q", got)
	}
}

func TestSendJSONEmptyOutput(t *testing.T) {
	l := newTestListener(returning(""), nil)
	rec := httptest.NewRecorder()
	if err := l.SendJSON(rec, "", testSession); err != nil {
		t.Fatal(err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	h := rec.Header()
	for _, name := range []string{"ETag", "Last-Modified", "Content-Length"} {
		if h.Get(name) != "" {
			t.Errorf("%s = %q, want unset for empty output", name, h.Get(name))
		}
	}
	if h.Get("Content-Type") != "application/json" || h.Get("Set-Cookie") == "" {
		t.Error("empty output still carries content type and session cookie")
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
}

func TestUnhandledRouteEnvelope(t *testing.T) {
	l := newTestListener(returning(""), nil)

	r := httptest.NewRequest(http.MethodGet, "/client/does/not/exist", nil)
	rec := httptest.NewRecorder()
	if err := l.Handle(mongoid.Empty, rec, r); err != nil {
		t.Fatalf("Handle error: %v", err)
	}

	want := `{"err":404,"errmsg":"UNHANDLED RESPONSE: /client/does/not/exist","data":null}`
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got := inflate(t, rec); got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
	if got := rec.Header().Get("ETag"); got != etag.Compute(want) {
		t.Errorf("ETag = %q, want %q", got, etag.Compute(want))
	}
}

func TestNoResponseWritesNothing(t *testing.T) {
	routes := &stubRoutes{resolve: func(mongoid.ID, *http.Request, *string) (string, error) {
		return "", ErrNoResponse
	}}
	l := newTestListener(routes, nil)

	rec := httptest.NewRecorder()
	if err := l.Handle(testSession, rec, httptest.NewRequest(http.MethodGet, "/ws-owned", nil)); err != nil {
		t.Fatalf("Handle error = %v, want nil", err)
	}
	if len(rec.Header()) != 0 || rec.Body.Len() != 0 {
		t.Errorf("ErrNoResponse wrote headers %v body %q", rec.Header(), rec.Body.String())
	}
}

func TestResolverErrorPropagates(t *testing.T) {
	errBoom := errors.New("boom")
	routes := &stubRoutes{resolve: func(mongoid.ID, *http.Request, *string) (string, error) {
		return "", errBoom
	}}
	l := newTestListener(routes, nil)

	rec := httptest.NewRecorder()
	err := l.Handle(testSession, rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if !errors.Is(err, errBoom) {
		t.Errorf("Handle error = %v, want %v", err, errBoom)
	}
	if rec.Body.Len() != 0 {
		t.Error("resolver error must not write a response")
	}
}

type recordingSerializer struct {
	name   string
	marker string
	called int
	body   string
}

func (s *recordingSerializer) Name() string                { return s.name }
func (s *recordingSerializer) CanHandle(output string) bool { return output == s.marker }

func (s *recordingSerializer) Serialize(_ mongoid.ID, _ *http.Request, w http.ResponseWriter, body string) error {
	s.called++
	s.body = body
	w.Header().Set("Content-Type", "image/png")
	_, err := w.Write([]byte("png-bytes"))
	return err
}

func TestSerializerBypassesCompression(t *testing.T) {
	image := &recordingSerializer{name: "image", marker: "IMAGE"}
	l := newTestListener(returning("IMAGE"), serializer.NewChain(image))

	rec := httptest.NewRecorder()
	if err := l.Handle(testSession, rec, httptest.NewRequest(http.MethodGet, "/files/a.png", nil)); err != nil {
		t.Fatalf("Handle error: %v", err)
	}
	if image.called != 1 {
		t.Fatalf("serializer called %d times, want 1", image.called)
	}
	if image.body != "{}" {
		t.Errorf("serializer body = %q, want {} for a GET", image.body)
	}
	if rec.Header().Get("Content-Encoding") != "" || rec.Header().Get("ETag") != "" {
		t.Error("serializer output must not go through the JSON writer")
	}
	if rec.Body.String() != "png-bytes" {
		t.Errorf("body = %q, want png-bytes", rec.Body.String())
	}
}

func TestSerializerReceivesBodyAsJSON(t *testing.T) {
	notify := &recordingSerializer{name: "notify", marker: "NOTIFY"}
	l := newTestListener(returning("NOTIFY"), serializer.NewChain(notify))

	r := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"a":1}`))
	r.Header.Set(HeaderRequestCompressed, "0")
	if err := l.Handle(testSession, httptest.NewRecorder(), r); err != nil {
		t.Fatal(err)
	}
	if want := `"{\"a\":1}"`; notify.body != want {
		t.Errorf("serializer body = %s, want %s", notify.body, want)
	}
}

func TestFirstSerializerWins(t *testing.T) {
	first := &recordingSerializer{name: "first", marker: "IMAGE"}
	second := &recordingSerializer{name: "second", marker: "IMAGE"}
	l := newTestListener(returning("IMAGE"), serializer.NewChain(first, second))

	for i := 0; i < 3; i++ {
		if err := l.Handle(testSession, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil)); err != nil {
			t.Fatal(err)
		}
	}
	if first.called != 3 || second.called != 0 {
		t.Errorf("calls first=%d second=%d, want 3 and 0", first.called, second.called)
	}
}

func TestDebugRequestSkipsSerializers(t *testing.T) {
	image := &recordingSerializer{name: "image", marker: "IMAGE"}
	l := newTestListener(returning("IMAGE"), serializer.NewChain(image))

	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set(HeaderResponseCompressed, "0")
	rec := httptest.NewRecorder()
	if err := l.Handle(testSession, rec, r); err != nil {
		t.Fatal(err)
	}
	if image.called != 0 || rec.Body.String() != "IMAGE" {
		t.Errorf("debug request: serializer calls %d, body %q", image.called, rec.Body.String())
	}
}

type failingSerializer struct{}

func (failingSerializer) Name() string           { return "failing" }
func (failingSerializer) CanHandle(string) bool { return true }
func (failingSerializer) Serialize(mongoid.ID, *http.Request, http.ResponseWriter, string) error {
	return errors.New("disk on fire")
}

func TestSerializerErrorIsWrapped(t *testing.T) {
	l := newTestListener(returning("X"), serializer.NewChain(failingSerializer{}))
	err := l.Handle(testSession, httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.Op != "serialize failing" {
		t.Errorf("error = %v, want RequestError for serialize failing", err)
	}
}

func TestCanHandleMethods(t *testing.T) {
	l := newTestListener(returning("x"), nil)
	tests := []struct {
		method string
		want   bool
	}{
		{http.MethodGet, true},
		{http.MethodPut, true},
		{http.MethodPost, true},
		{http.MethodDelete, false},
		{http.MethodOptions, false},
		{http.MethodHead, false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, "/x", nil)
		if got := l.CanHandle(testSession, r); got != tt.want {
			t.Errorf("CanHandle(%s) = %v, want %v", tt.method, got, tt.want)
		}
	}
}

func TestRequestLogRecords(t *testing.T) {
	var buf bytes.Buffer
	requests := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	l := NewProtocolListener(returning(`{"ok":true}`), nil, &ListenerConfig{
		Logger:        discardLogger(),
		RequestLogger: requests,
	})
	r := httptest.NewRequest(http.MethodGet, "/client/items", nil)
	if err := l.Handle(testSession, httptest.NewRecorder(), r); err != nil {
		t.Fatal(err)
	}

	logged := buf.String()
	for _, want := range []string{"REQUEST=", `\"Url\":\"/client/items\"`, "RESPONSE=", `\"jsonData\":`} {
		if !strings.Contains(logged, want) {
			t.Errorf("request log missing %s:\n%s", want, logged)
		}
	}

	buf.Reset()
	release := NewProtocolListener(returning(`{"ok":true}`), nil, &ListenerConfig{
		Release:       true,
		Logger:        discardLogger(),
		RequestLogger: requests,
	})
	if err := release.Handle(testSession, httptest.NewRecorder(), r); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("release build logged records:\n%s", buf.String())
	}
}

func TestUncompressedBodyIsDebugLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l := NewProtocolListener(echoRoutes(nil), nil, &ListenerConfig{
		Logger:        logger,
		RequestLogger: discardLogger(),
	})

	r := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"visible":1}`))
	r.Header.Set(HeaderRequestCompressed, "0")
	if err := l.Handle(testSession, httptest.NewRecorder(), r); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("uncompressed body not logged:\n%s", buf.String())
	}

	buf.Reset()
	r = httptest.NewRequest(http.MethodPost, "/x", compressed(t, `{"hidden":1}`))
	if err := l.Handle(testSession, httptest.NewRecorder(), r); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "hidden") {
		t.Errorf("compressed body should not be logged:\n%s", buf.String())
	}
}

type failingWriter struct {
	header http.Header
}

func (w *failingWriter) Header() http.Header        { return w.header }
func (w *failingWriter) WriteHeader(int)            {}
func (w *failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriteFailureIsReturned(t *testing.T) {
	l := newTestListener(returning(`{"a":1}`), nil)
	err := l.Handle(testSession, &failingWriter{header: http.Header{}}, httptest.NewRequest(http.MethodGet, "/x", nil))
	if !errors.Is(err, ErrWriteResponse) {
		t.Errorf("Handle error = %v, want ErrWriteResponse", err)
	}
}
