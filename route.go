package oas

import (
	"net/http"
	"reflect"
)

// routeInfo holds everything recorded about a route at registration time.
// Build compiles it into a dispatchable endpoint and an OpenAPI operation.
type routeInfo struct {
	method  string
	pattern string
	summary string
	desc    string
	tags    []string

	status     int
	deprecated bool
	errors     []int

	operationID string
	security    []string
	scopes      map[string][]string
	noSecurity  bool

	extensions map[string]any
	links      map[string]Link
	callbacks  map[string]map[string]PathItem

	bodyLimit           int64
	requestContentTypes []string
	responseHeaders     map[int][]ResponseHeader

	webhook bool // documentation-only, never dispatched

	reqType  reflect.Type
	respType reflect.Type

	// makeHandler builds the typed handler once the request plan is
	// compiled. Raw routes set handler directly instead.
	makeHandler func(ri *routeInfo, env *buildEnv) http.Handler
	middleware  []Middleware
	handler     http.Handler

	// filled in by Build
	compiled *compiledRequest
	template *pathTemplate
}

// RouteOption configures a route at registration time.
type RouteOption func(*routeInfo)

// WithStatus sets the default HTTP status code for the response.
func WithStatus(code int) RouteOption {
	return func(ri *routeInfo) {
		ri.status = code
	}
}

// WithSummary sets the OpenAPI summary for the route.
func WithSummary(s string) RouteOption {
	return func(ri *routeInfo) {
		ri.summary = s
	}
}

// WithDescription sets the OpenAPI description for the route.
func WithDescription(d string) RouteOption {
	return func(ri *routeInfo) {
		ri.desc = d
	}
}

// WithTags adds OpenAPI tags to the route.
func WithTags(tags ...string) RouteOption {
	return func(ri *routeInfo) {
		ri.tags = append(ri.tags, tags...)
	}
}

// WithDeprecated marks the route as deprecated in the OpenAPI spec.
func WithDeprecated() RouteOption {
	return func(ri *routeInfo) {
		ri.deprecated = true
	}
}

// WithErrors declares additional HTTP error status codes for the OpenAPI spec.
func WithErrors(codes ...int) RouteOption {
	return func(ri *routeInfo) {
		ri.errors = append(ri.errors, codes...)
	}
}

// WithOperationID sets a custom OpenAPI operationId. Without it, Build
// derives one from the method and path.
func WithOperationID(id string) RouteOption {
	return func(ri *routeInfo) {
		ri.operationID = id
	}
}

// WithSecurity requires the named security schemes for this route. The
// schemes must be declared on the router; Build fails otherwise.
func WithSecurity(schemes ...string) RouteOption {
	return func(ri *routeInfo) {
		ri.security = append(ri.security, schemes...)
	}
}

// WithScopes attaches OAuth2 scopes to one of the route's security schemes.
func WithScopes(scheme string, scopes ...string) RouteOption {
	return func(ri *routeInfo) {
		if ri.scopes == nil {
			ri.scopes = make(map[string][]string)
		}
		ri.scopes[scheme] = append(ri.scopes[scheme], scopes...)
	}
}

// WithNoSecurity disables security for this route (overrides global security).
func WithNoSecurity() RouteOption {
	return func(ri *routeInfo) {
		ri.noSecurity = true
	}
}

// WithExtension adds an OpenAPI extension to the operation.
// The key must start with "x-".
func WithExtension(key string, value any) RouteOption {
	return func(ri *routeInfo) {
		if ri.extensions == nil {
			ri.extensions = make(map[string]any)
		}
		ri.extensions[key] = value
	}
}

// WithLink adds an OpenAPI link to the operation's response.
func WithLink(name string, link Link) RouteOption {
	return func(ri *routeInfo) {
		if ri.links == nil {
			ri.links = make(map[string]Link)
		}
		ri.links[name] = link
	}
}

// WithBodyLimit caps the request body size in bytes for this route.
// Requests over the cap fail with 413.
func WithBodyLimit(maxBytes int64) RouteOption {
	return func(ri *routeInfo) {
		ri.bodyLimit = maxBytes
	}
}

// WithRequestContentTypes restricts the media types this route accepts in
// request bodies. Anything else is rejected with 415 and the OpenAPI
// request body lists only the given types.
func WithRequestContentTypes(cts ...string) RouteOption {
	return func(ri *routeInfo) {
		ri.requestContentTypes = append(ri.requestContentTypes, cts...)
	}
}

// WithResponseHeader documents a header the route sends with the given
// response status.
func WithResponseHeader(status int, h ResponseHeader) RouteOption {
	return func(ri *routeInfo) {
		if ri.responseHeaders == nil {
			ri.responseHeaders = make(map[int][]ResponseHeader)
		}
		ri.responseHeaders[status] = append(ri.responseHeaders[status], h)
	}
}

// WithCallback adds an OpenAPI callback to the operation.
func WithCallback(name string, cb map[string]PathItem) RouteOption {
	return func(ri *routeInfo) {
		if ri.callbacks == nil {
			ri.callbacks = make(map[string]map[string]PathItem)
		}
		ri.callbacks[name] = cb
	}
}

// WithMiddleware wraps this route's handler. Group middleware runs outside
// route middleware.
func WithMiddleware(mw ...Middleware) RouteOption {
	return func(ri *routeInfo) {
		ri.middleware = append(ri.middleware, mw...)
	}
}
