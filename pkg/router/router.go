package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/sptgo/gameserver/internal/jsonutil"
	"github.com/sptgo/gameserver/pkg/mongoid"
)

// Kind distinguishes exact routes from pattern routes.
type Kind int

const (
	// KindStatic matches the path exactly.
	KindStatic Kind = iota
	// KindDynamic matches a chi pattern.
	KindDynamic
)

// String returns the kind name.
func (k Kind) String() string {
	if k == KindStatic {
		return "static"
	}
	return "dynamic"
}

// Request is what an Action sees.
type Request struct {
	SessionID mongoid.ID
	HTTP      *http.Request
	// Body is the decoded request body, nil for GET.
	Body *string
	// Pattern is the route pattern that matched.
	Pattern string
}

// Context returns the request context.
func (r *Request) Context() context.Context {
	return r.HTTP.Context()
}

// Path returns the request path.
func (r *Request) Path() string {
	return r.HTTP.URL.Path
}

// Param returns the named URL parameter, or "" if absent.
func (r *Request) Param(name string) string {
	return chi.URLParam(r.HTTP, name)
}

// Decode unmarshals the request body into v. A missing or empty body leaves
// v untouched.
func (r *Request) Decode(v any) error {
	if r.Body == nil || *r.Body == "" {
		return nil
	}
	if err := jsonutil.Unmarshal([]byte(*r.Body), v); err != nil {
		return fmt.Errorf("router: decode body for %s: %w", r.Pattern, err)
	}
	return nil
}

// Action produces the response payload for a route.
type Action func(req *Request) (string, error)

// Middleware wraps an Action.
type Middleware func(next Action) Action

// RouteInfo describes a registered route.
type RouteInfo struct {
	Pattern string
	Kind    Kind
	Name    string
}

type route struct {
	info   RouteInfo
	action Action
}

// Router is a route table. Register routes before serving; lookups are safe
// for concurrent use.
type Router struct {
	mu         sync.RWMutex
	mux        *chi.Mux
	routes     map[string]*route
	order      []string
	middleware []Middleware
}

// New creates an empty Router.
func New() *Router {
	return &Router{
		mux:    chi.NewRouter(),
		routes: make(map[string]*route),
	}
}

// Use appends middleware applied to every action, in registration order.
func (rt *Router) Use(mw ...Middleware) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.middleware = append(rt.middleware, mw...)
}

// Static registers action for the exact path.
func (rt *Router) Static(path string, action Action) {
	if strings.ContainsAny(path, "{*") {
		panic(fmt.Sprintf("router: static route %q contains a pattern", path))
	}
	rt.add(path, KindStatic, "", action)
}

// Dynamic registers action for a chi pattern such as "/files/{key}" or
// "/files/*".
func (rt *Router) Dynamic(pattern string, action Action) {
	rt.add(pattern, KindDynamic, "", action)
}

// Named registers action like Static or Dynamic, with a name shown in route
// listings.
func (rt *Router) Named(name, pattern string, action Action) {
	kind := KindStatic
	if strings.ContainsAny(pattern, "{*") {
		kind = KindDynamic
	}
	rt.add(pattern, kind, name, action)
}

func (rt *Router) add(pattern string, kind Kind, name string, action Action) {
	if !strings.HasPrefix(pattern, "/") {
		panic(fmt.Sprintf("router: pattern %q must begin with /", pattern))
	}
	if action == nil {
		panic(fmt.Sprintf("router: nil action for %q", pattern))
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	if _, exists := rt.routes[pattern]; exists {
		panic(fmt.Sprintf("router: duplicate route %q", pattern))
	}
	// The handler is never served; the mux is only used for matching.
	rt.mux.Handle(pattern, http.NotFoundHandler())
	rt.routes[pattern] = &route{
		info:   RouteInfo{Pattern: pattern, Kind: kind, Name: name},
		action: action,
	}
	rt.order = append(rt.order, pattern)
}

// Routes lists registered routes in registration order.
func (rt *Router) Routes() []RouteInfo {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	infos := make([]RouteInfo, len(rt.order))
	for i, p := range rt.order {
		infos[i] = rt.routes[p].info
	}
	return infos
}

// Len returns the number of registered routes.
func (rt *Router) Len() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.order)
}

// match finds the route for r and the chi context holding its parameters.
func (rt *Router) match(r *http.Request) (*route, *chi.Context) {
	rctx := chi.NewRouteContext()
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	if !rt.mux.Match(rctx, r.Method, r.URL.Path) {
		return nil, nil
	}
	found, ok := rt.routes[rctx.RoutePattern()]
	if !ok {
		return nil, nil
	}
	return found, rctx
}

// CanDispatch reports whether a route matches r.
func (rt *Router) CanDispatch(r *http.Request) bool {
	found, _ := rt.match(r)
	return found != nil
}

// Resolve runs the action matching r. It returns "" when no route matches.
func (rt *Router) Resolve(sessionID mongoid.ID, r *http.Request, body *string) (string, error) {
	found, rctx := rt.match(r)
	if found == nil {
		return "", nil
	}

	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	action := found.action
	rt.mu.RLock()
	for i := len(rt.middleware) - 1; i >= 0; i-- {
		action = rt.middleware[i](action)
	}
	rt.mu.RUnlock()

	return action(&Request{
		SessionID: sessionID,
		HTTP:      r,
		Body:      body,
		Pattern:   found.info.Pattern,
	})
}
