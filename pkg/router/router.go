// Package router wraps chi with named routes and prefix groups that carry
// their own middleware. Names only label routes in `foodie route:list`.
//
//	r := router.New()
//	api := r.Group("/api")
//	user := api.Group("", middleware.AuthMiddleware)
//	user.Get("/cart", "cart.index", handler)
package router

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

type Middleware func(http.Handler) http.Handler

// Route is one registered endpoint.
type Route struct {
	Method string
	Path   string
	Name   string
}

type table struct {
	mu     sync.Mutex
	routes []Route
	names  map[string]bool
}

func (t *table) add(rt Route) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rt.Name != "" {
		if t.names[rt.Name] {
			panic(fmt.Sprintf("router: route name %q registered twice", rt.Name))
		}
		t.names[rt.Name] = true
	}
	t.routes = append(t.routes, rt)
}

// Group registers routes below a path prefix, wrapped in its middleware
// after the router-wide stack.
type Group struct {
	mux    chi.Router
	table  *table
	prefix string
	mws    []Middleware
}

type Router struct {
	*Group
}

func New() *Router {
	return &Router{Group: &Group{
		mux:   chi.NewRouter(),
		table: &table{names: map[string]bool{}},
	}}
}

func (r *Router) Handler() http.Handler { return r.mux }

// Use appends router-wide middleware. chi requires this before any route
// is added.
func (r *Router) Use(mws ...Middleware) {
	for _, mw := range mws {
		r.mux.Use(mw)
	}
}

func (r *Router) NotFound(h http.HandlerFunc)         { r.mux.NotFound(h) }
func (r *Router) MethodNotAllowed(h http.HandlerFunc) { r.mux.MethodNotAllowed(h) }

// Routes lists the table ordered by path, then method.
func (r *Router) Routes() []Route {
	r.table.mu.Lock()
	out := slices.Clone(r.table.routes)
	r.table.mu.Unlock()

	slices.SortStableFunc(out, func(a, b Route) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return strings.Compare(a.Method, b.Method)
	})
	return out
}

// Group nests a prefix and extra middleware under g.
func (g *Group) Group(prefix string, mws ...Middleware) *Group {
	return &Group{
		mux:    g.mux,
		table:  g.table,
		prefix: join(g.prefix, prefix),
		mws:    append(slices.Clone(g.mws), mws...),
	}
}

func (g *Group) Get(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.Method(http.MethodGet, path, name, h, mws...)
}

func (g *Group) Post(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.Method(http.MethodPost, path, name, h, mws...)
}

func (g *Group) Put(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.Method(http.MethodPut, path, name, h, mws...)
}

func (g *Group) Patch(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.Method(http.MethodPatch, path, name, h, mws...)
}

func (g *Group) Delete(path, name string, h http.HandlerFunc, mws ...Middleware) {
	g.Method(http.MethodDelete, path, name, h, mws...)
}

func (g *Group) Method(method, path, name string, h http.Handler, mws ...Middleware) {
	full := join(g.prefix, path)
	g.mux.Method(method, full, g.wrap(h, mws))
	g.table.add(Route{Method: method, Path: full, Name: name})
}

// Handle mounts h for every method, as /metrics and /graphql need.
func (g *Group) Handle(path, name string, h http.Handler, mws ...Middleware) {
	full := join(g.prefix, path)
	g.mux.Handle(full, g.wrap(h, mws))
	g.table.add(Route{Method: "ANY", Path: full, Name: name})
}

// wrap applies group middleware, then the route's own, outermost first.
func (g *Group) wrap(h http.Handler, extra []Middleware) http.Handler {
	all := append(slices.Clone(g.mws), extra...)
	for i := len(all) - 1; i >= 0; i-- {
		h = all[i](h)
	}
	return h
}

// join builds "/a/b" from any mix of slashes; "" and "/" give "/".
func join(parts ...string) string {
	var segs []string
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			segs = append(segs, p)
		}
	}
	return "/" + strings.Join(segs, "/")
}
