package router

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/sptgo/gameserver/pkg/mongoid"
)

func constant(s string) Action {
	return func(*Request) (string, error) { return s, nil }
}

func TestStaticRoute(t *testing.T) {
	rt := New()
	rt.Static("/client/game/keepalive", constant("alive"))

	r := httptest.NewRequest(http.MethodPost, "/client/game/keepalive", nil)
	if !rt.CanDispatch(r) {
		t.Fatal("CanDispatch = false, want true")
	}
	got, err := rt.Resolve(mongoid.Empty, r, nil)
	if err != nil || got != "alive" {
		t.Errorf("Resolve = %q, %v, want alive", got, err)
	}

	other := httptest.NewRequest(http.MethodGet, "/client/game/keepalive/extra", nil)
	if rt.CanDispatch(other) {
		t.Error("static route should not match a longer path")
	}
}

func TestDynamicRouteParams(t *testing.T) {
	rt := New()
	rt.Dynamic("/client/trading/api/getTraderAssort/{traderID}", func(req *Request) (string, error) {
		return req.Param("traderID"), nil
	})
	rt.Dynamic("/files/*", func(req *Request) (string, error) {
		return "file:" + req.Param("*"), nil
	})

	tests := []struct {
		path string
		want string
	}{
		{"/client/trading/api/getTraderAssort/54cb50c76803fa8b248b4571", "54cb50c76803fa8b248b4571"},
		{"/files/quest/icon/abc.png", "file:quest/icon/abc.png"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.path, nil)
		got, err := rt.Resolve(mongoid.Empty, r, nil)
		if err != nil {
			t.Fatalf("Resolve(%s) error: %v", tt.path, err)
		}
		if got != tt.want {
			t.Errorf("Resolve(%s) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestResolveUnmatched(t *testing.T) {
	rt := New()
	rt.Static("/a", constant("a"))

	r := httptest.NewRequest(http.MethodGet, "/b", nil)
	if rt.CanDispatch(r) {
		t.Error("CanDispatch(/b) = true, want false")
	}
	got, err := rt.Resolve(mongoid.Empty, r, nil)
	if err != nil || got != "" {
		t.Errorf("Resolve(/b) = %q, %v, want empty", got, err)
	}
}

func TestResolvePassesSessionAndBody(t *testing.T) {
	id := mongoid.New()
	rt := New()
	rt.Static("/echo", func(req *Request) (string, error) {
		if req.SessionID != id {
			t.Errorf("SessionID = %s, want %s", req.SessionID, id)
		}
		var in struct {
			Ping int `json:"ping"`
		}
		if err := req.Decode(&in); err != nil {
			return "", err
		}
		if in.Ping != 1 {
			t.Errorf("decoded ping = %d, want 1", in.Ping)
		}
		return *req.Body, nil
	})

	body := `{"ping":1}`
	r := httptest.NewRequest(http.MethodPut, "/echo", nil)
	got, err := rt.Resolve(id, r, &body)
	if err != nil || got != body {
		t.Errorf("Resolve = %q, %v", got, err)
	}
}

func TestDecodeErrors(t *testing.T) {
	body := "{not json"
	req := &Request{Body: &body, Pattern: "/x"}
	var v map[string]any
	if err := req.Decode(&v); err == nil {
		t.Error("Decode of malformed body should fail")
	}

	empty := &Request{}
	if err := empty.Decode(&v); err != nil {
		t.Errorf("Decode with nil body = %v, want nil", err)
	}
}

func TestActionErrorPropagates(t *testing.T) {
	errBoom := errors.New("boom")
	rt := New()
	rt.Static("/fail", func(*Request) (string, error) { return "", errBoom })

	_, err := rt.Resolve(mongoid.Empty, httptest.NewRequest(http.MethodGet, "/fail", nil), nil)
	if !errors.Is(err, errBoom) {
		t.Errorf("Resolve error = %v, want %v", err, errBoom)
	}
}

func TestMiddlewareOrder(t *testing.T) {
	var calls []string
	mw := func(name string) Middleware {
		return func(next Action) Action {
			return func(req *Request) (string, error) {
				calls = append(calls, name)
				return next(req)
			}
		}
	}

	rt := New()
	rt.Use(mw("first"), mw("second"))
	rt.Static("/x", func(*Request) (string, error) {
		calls = append(calls, "action")
		return "ok", nil
	})

	if _, err := rt.Resolve(mongoid.Empty, httptest.NewRequest(http.MethodGet, "/x", nil), nil); err != nil {
		t.Fatal(err)
	}
	want := []string{"first", "second", "action"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestRoutesListing(t *testing.T) {
	rt := New()
	rt.Static("/b", constant(""))
	rt.Dynamic("/a/{id}", constant(""))
	rt.Named("keepalive", "/client/game/keepalive", constant(""))

	got := rt.Routes()
	want := []RouteInfo{
		{Pattern: "/b", Kind: KindStatic},
		{Pattern: "/a/{id}", Kind: KindDynamic},
		{Pattern: "/client/game/keepalive", Kind: KindStatic, Name: "keepalive"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Routes() = %+v, want %+v", got, want)
	}
	if rt.Len() != 3 {
		t.Errorf("Len() = %d, want 3", rt.Len())
	}
}

func TestRegistrationPanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func(rt *Router)
		want string
	}{
		{"duplicate", func(rt *Router) { rt.Static("/a", constant("")); rt.Static("/a", constant("")) }, "duplicate"},
		{"relative", func(rt *Router) { rt.Static("a", constant("")) }, "must begin"},
		{"pattern in static", func(rt *Router) { rt.Static("/a/{id}", constant("")) }, "contains a pattern"},
		{"nil action", func(rt *Router) { rt.Dynamic("/a/{id}", nil) }, "nil action"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if r == nil {
					t.Fatal("expected panic")
				}
				if msg, _ := r.(string); !strings.Contains(msg, tt.want) {
					t.Errorf("panic = %v, want it to mention %q", r, tt.want)
				}
			}()
			tt.fn(New())
		})
	}
}
