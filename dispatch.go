package oas

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
)

// segment is one piece of a parsed path template: either literal text or
// a named parameter.
type segment struct {
	literal  string
	name     string // parameter name; empty for literals
	wildcard bool   // {name...} captures the remaining path
}

// pathTemplate is a parsed route pattern.
type pathTemplate struct {
	raw      string
	segments []segment
	names    []string // parameter names in declaration order
	literals int
	wildcard bool
}

// parsePathTemplate parses a route pattern like "/users/{id}/files/{path...}".
// A parameter must span a whole segment, names must be unique within the
// pattern, and a wildcard parameter can only appear last.
func parsePathTemplate(pattern string) (*pathTemplate, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("%w: %q must begin with a slash", ErrInvalidTemplate, pattern)
	}

	t := &pathTemplate{raw: pattern}
	if pattern == "/" {
		return t, nil
	}

	parts := strings.Split(pattern[1:], "/")
	for i, part := range parts {
		switch {
		case part == "":
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidTemplate, pattern)

		case strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}"):
			name := part[1 : len(part)-1]
			wildcard := strings.HasSuffix(name, "...")
			name = strings.TrimSuffix(name, "...")
			if name == "" {
				return nil, fmt.Errorf("%w: %q has an unnamed parameter", ErrInvalidTemplate, pattern)
			}
			if strings.ContainsAny(name, "{}/") {
				return nil, fmt.Errorf("%w: %q has a malformed parameter name", ErrInvalidTemplate, pattern)
			}
			if wildcard && i != len(parts)-1 {
				return nil, fmt.Errorf("%w: %q has a wildcard before the final segment", ErrInvalidTemplate, pattern)
			}
			if slices.Contains(t.names, name) {
				return nil, fmt.Errorf("%w: path parameter %q", ErrDuplicateParameter, name)
			}
			t.segments = append(t.segments, segment{name: name, wildcard: wildcard})
			t.names = append(t.names, name)
			t.wildcard = t.wildcard || wildcard

		case strings.ContainsAny(part, "{}"):
			return nil, fmt.Errorf("%w: %q mixes text and a parameter in one segment", ErrInvalidTemplate, pattern)

		default:
			t.segments = append(t.segments, segment{literal: part})
			t.literals++
		}
	}
	return t, nil
}

// paramNames returns the template's parameter names in declaration order.
func (t *pathTemplate) paramNames() []string {
	return t.names
}

// shapeKey identifies templates that match the same requests regardless of
// parameter names: "/users/{id}" and "/users/{uid}" share a key.
func (t *pathTemplate) shapeKey() string {
	var b strings.Builder
	for _, s := range t.segments {
		b.WriteByte('/')
		switch {
		case s.wildcard:
			b.WriteString("{...}")
		case s.name != "":
			b.WriteString("{}")
		default:
			b.WriteString(s.literal)
		}
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// match tests request path segments against the template, returning the
// captured values in declaration order.
func (t *pathTemplate) match(segs []string) ([]string, bool) {
	n := len(t.segments)
	if t.wildcard {
		if len(segs) < n-1 {
			return nil, false
		}
	} else if len(segs) != n {
		return nil, false
	}

	var vals []string
	for i, s := range t.segments {
		if s.wildcard {
			vals = append(vals, strings.Join(segs[i:], "/"))
			return vals, true
		}
		if s.name != "" {
			if segs[i] == "" {
				return nil, false
			}
			vals = append(vals, segs[i])
			continue
		}
		if segs[i] != s.literal {
			return nil, false
		}
	}
	return vals, true
}

// RoutePattern is the view of a registered pattern a RoutePolicy compares.
type RoutePattern struct {
	Path     string
	Wildcard bool
	Literals int
	// SegmentLiterals flags, per segment, whether it is literal text.
	SegmentLiterals []bool
}

// RoutePolicy orders two patterns for matching: return true when a should
// be tried before b. Patterns are sorted once at build time.
type RoutePolicy func(a, b RoutePattern) bool

// defaultRoutePolicy orders patterns most-specific first: non-wildcard
// before wildcard, more literal segments first, then literal before
// parameter at the first differing position, then lexical order. Under it
// "/users/me" always beats "/users/{id}".
func defaultRoutePolicy(a, b RoutePattern) bool {
	if a.Wildcard != b.Wildcard {
		return !a.Wildcard
	}
	if a.Literals != b.Literals {
		return a.Literals > b.Literals
	}
	for i := 0; i < len(a.SegmentLiterals) && i < len(b.SegmentLiterals); i++ {
		if a.SegmentLiterals[i] != b.SegmentLiterals[i] {
			return a.SegmentLiterals[i]
		}
	}
	return a.Path < b.Path
}

func (t *pathTemplate) routePattern() RoutePattern {
	rp := RoutePattern{Path: t.raw, Wildcard: t.wildcard, Literals: t.literals}
	for _, s := range t.segments {
		rp.SegmentLiterals = append(rp.SegmentLiterals, s.name == "")
	}
	return rp
}

// MatchedRoute describes the route serving the current request. Middleware
// and handlers read it with GetValue[MatchedRoute].
type MatchedRoute struct {
	Method      string
	Pattern     string
	OperationID string
}

// endpoint is one built route ready to serve.
type endpoint struct {
	method   string
	pattern  string
	opID     string
	template *pathTemplate
	handler  http.Handler
}

// pathRoutes groups the endpoints sharing a path shape.
type pathRoutes struct {
	template *pathTemplate
	methods  map[string]*endpoint
}

// dispatcher routes requests to built endpoints. Exact paths sit in a map;
// parameterized ones are scanned in policy order.
type dispatcher struct {
	static  map[string]*pathRoutes
	dynamic []*pathRoutes
}

// newDispatcher indexes the endpoints and orders the parameterized
// patterns by the route policy.
func newDispatcher(eps []*endpoint, policy RoutePolicy) (*dispatcher, error) {
	d := &dispatcher{static: make(map[string]*pathRoutes)}

	byShape := make(map[string]*pathRoutes)
	for _, ep := range eps {
		key := ep.template.shapeKey()
		pr := byShape[key]
		if pr == nil {
			pr = &pathRoutes{template: ep.template, methods: make(map[string]*endpoint)}
			byShape[key] = pr
			if len(ep.template.names) == 0 {
				d.static[ep.template.raw] = pr
			} else {
				d.dynamic = append(d.dynamic, pr)
			}
		}
		if _, dup := pr.methods[ep.method]; dup {
			return nil, fmt.Errorf("%w: %s %s", ErrDuplicateRoute, ep.method, ep.pattern)
		}
		pr.methods[ep.method] = ep
	}

	if policy == nil {
		policy = defaultRoutePolicy
	}
	slices.SortStableFunc(d.dynamic, func(a, b *pathRoutes) int {
		pa, pb := a.template.routePattern(), b.template.routePattern()
		switch {
		case policy(pa, pb):
			return -1
		case policy(pb, pa):
			return 1
		default:
			return 0
		}
	})

	return d, nil
}

// resolve finds the endpoint for a method and path. When no route matches
// it returns a nil endpoint; a non-nil allow list means paths matched but
// the method did not (405), otherwise nothing matched (404).
func (d *dispatcher) resolve(method, path string) (ep *endpoint, params []string, allow []string) {
	var allowed map[string]bool

	try := func(pr *pathRoutes) *endpoint {
		ep := pr.methods[method]
		if ep == nil && method == http.MethodHead {
			ep = pr.methods[http.MethodGet]
		}
		if ep != nil {
			return ep
		}
		if allowed == nil {
			allowed = make(map[string]bool)
		}
		for m := range pr.methods {
			allowed[m] = true
		}
		return nil
	}

	if pr := d.static[path]; pr != nil {
		if ep := try(pr); ep != nil {
			return ep, nil, nil
		}
	}

	segs := splitPath(path)
	for _, pr := range d.dynamic {
		vals, ok := pr.template.match(segs)
		if !ok {
			continue
		}
		if ep := try(pr); ep != nil {
			return ep, vals, nil
		}
	}

	if allowed != nil {
		return nil, nil, slices.Sorted(maps.Keys(allowed))
	}
	return nil, nil, nil
}

// serve dispatches one request, answering 404 and 405 for misses.
func (d *dispatcher) serve(w http.ResponseWriter, r *http.Request) {
	ep, params, allow := d.resolve(r.Method, r.URL.Path)
	if ep == nil {
		if allow != nil {
			w.Header().Set("Allow", strings.Join(allow, ", "))
			writeErrorResponse(w, Error(http.StatusMethodNotAllowed, "method not allowed"))
			return
		}
		writeErrorResponse(w, Error(http.StatusNotFound, "not found"))
		return
	}

	// Parameter values align with the endpoint's own template, which has
	// the same shape as the matched one but may name parameters differently.
	for i, name := range ep.template.names {
		r.SetPathValue(name, params[i])
	}

	matched := MatchedRoute{
		Method:      ep.method,
		Pattern:     ep.pattern,
		OperationID: ep.opID,
	}
	// Fill the holder installed by middleware running above dispatch, then
	// expose the value to the layers below.
	if holder, ok := GetValue[*MatchedRoute](r.Context()); ok {
		*holder = matched
	}
	r = SetValue(r, matched)

	ep.handler.ServeHTTP(w, r)
}

// splitPath splits a request path into segments, dropping the leading slash.
func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
