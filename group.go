package oas

import (
	"slices"
	"strings"
)

// Group is a collection of routes under a shared prefix with shared
// middleware, tags, and security requirements.
type Group struct {
	router     *Router
	prefix     string
	middleware []Middleware
	tags       []string
	security   []string
}

// GroupOption configures a Group.
type GroupOption func(*Group)

// WithGroupTags adds default tags to all routes registered on the group.
func WithGroupTags(tags ...string) GroupOption {
	return func(g *Group) {
		g.tags = append(g.tags, tags...)
	}
}

// WithGroupMiddleware adds middleware to the group.
func WithGroupMiddleware(mw ...Middleware) GroupOption {
	return func(g *Group) {
		g.middleware = append(g.middleware, mw...)
	}
}

// WithGroupSecurity requires the named security schemes on every route in
// the group. A route can still opt out with WithNoSecurity.
func WithGroupSecurity(schemes ...string) GroupOption {
	return func(g *Group) {
		g.security = append(g.security, schemes...)
	}
}

// Group creates a new route group with the given prefix and options.
func (r *Router) Group(prefix string, opts ...GroupOption) *Group {
	g := &Group{
		router: r,
		prefix: prefix,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// addRoute implements Registrar for Group.
// Group security is a default: routes that declare their own security or
// opt out with WithNoSecurity are left alone.
func (g *Group) addRoute(ri routeInfo) {
	ri.pattern = joinPath(g.prefix, ri.pattern)
	ri.tags = append(slices.Clone(g.tags), ri.tags...)
	if !ri.noSecurity && len(ri.security) == 0 {
		ri.security = slices.Clone(g.security)
	}
	g.router.addRoute(ri)
}

func (g *Group) routeMiddleware() []Middleware { return g.middleware }

// joinPath joins a group prefix and a route pattern with exactly one slash.
func joinPath(prefix, pattern string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return pattern
	}
	if pattern == "/" {
		return prefix
	}
	return prefix + pattern
}
