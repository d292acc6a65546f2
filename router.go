package oas

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Router collects routes, schemas, and document metadata. It is the
// mutable build context: register everything, then call Build to compile
// an immutable Service. A Router does not serve requests itself.
type Router struct {
	routes     []routeInfo
	middleware []Middleware

	title          string
	version        string
	summary        string
	description    string
	termsOfService string
	contact        *Contact
	license        *License
	externalDocs   *ExternalDocs

	servers         []Server
	securitySchemes map[string]SecurityScheme
	security        []string
	tags            []Tag
	tagDescs        map[string]string

	webhooks map[string]PathItem

	validator    Validator
	errorHandler ErrorHandler

	encoders []Encoder
	decoders []Decoder

	tracer SpanStarter

	routePolicy     RoutePolicy
	specJSONPattern string
	specYAMLPattern string

	built bool
	mu    sync.Mutex
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithTitle sets the API title (used in the OpenAPI document).
func WithTitle(title string) RouterOption {
	return func(r *Router) {
		r.title = title
	}
}

// WithVersion sets the API version (used in the OpenAPI document).
func WithVersion(version string) RouterOption {
	return func(r *Router) {
		r.version = version
	}
}

// WithAPISummary sets the short summary in the document's info object.
func WithAPISummary(s string) RouterOption {
	return func(r *Router) {
		r.summary = s
	}
}

// WithAPIDescription sets the long description in the document's info object.
func WithAPIDescription(d string) RouterOption {
	return func(r *Router) {
		r.description = d
	}
}

// WithTermsOfService sets the terms of service URL.
func WithTermsOfService(url string) RouterOption {
	return func(r *Router) {
		r.termsOfService = url
	}
}

// WithContact sets the API contact.
func WithContact(c Contact) RouterOption {
	return func(r *Router) {
		r.contact = &c
	}
}

// WithLicense sets the API license.
func WithLicense(l License) RouterOption {
	return func(r *Router) {
		r.license = &l
	}
}

// WithExternalDocs points the document at externally hosted documentation.
func WithExternalDocs(d ExternalDocs) RouterOption {
	return func(r *Router) {
		r.externalDocs = &d
	}
}

// WithValidator sets a global request validator.
func WithValidator(v Validator) RouterOption {
	return func(r *Router) {
		r.validator = v
	}
}

// WithServers sets the OpenAPI servers array.
func WithServers(servers ...Server) RouterOption {
	return func(r *Router) {
		r.servers = servers
	}
}

// WithSecurityScheme registers a named security scheme. Routes reference
// schemes by these names.
func WithSecurityScheme(name string, scheme SecurityScheme) RouterOption {
	return func(r *Router) {
		if r.securitySchemes == nil {
			r.securitySchemes = make(map[string]SecurityScheme)
		}
		r.securitySchemes[name] = scheme
	}
}

// WithGlobalSecurity sets document-wide security requirements by scheme
// name. Routes inherit them unless they override with WithSecurity or
// WithNoSecurity.
func WithGlobalSecurity(schemes ...string) RouterOption {
	return func(r *Router) {
		r.security = append(r.security, schemes...)
	}
}

// WithTag declares a documented tag.
func WithTag(t Tag) RouterOption {
	return func(r *Router) {
		r.tags = append(r.tags, t)
	}
}

// WithTagDescriptions declares tags from a name-to-description map.
func WithTagDescriptions(descs map[string]string) RouterOption {
	return func(r *Router) {
		r.tagDescs = descs
	}
}

// ErrorHandler is a custom error response writer.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// WithErrorHandler sets a custom error handler for the built service.
func WithErrorHandler(h ErrorHandler) RouterOption {
	return func(r *Router) {
		r.errorHandler = h
	}
}

// WithEncoder registers an additional response encoder.
func WithEncoder(enc Encoder) RouterOption {
	return func(r *Router) {
		r.encoders = append(r.encoders, enc)
	}
}

// WithDecoder registers an additional request body decoder.
func WithDecoder(dec Decoder) RouterOption {
	return func(r *Router) {
		r.decoders = append(r.decoders, dec)
	}
}

// WithWebhook registers a hand-written webhook path item. Webhook and this
// option populate the same document section.
func WithWebhook(name string, item PathItem) RouterOption {
	return func(r *Router) {
		if r.webhooks == nil {
			r.webhooks = make(map[string]PathItem)
		}
		r.webhooks[name] = item
	}
}

// WithRoutePolicy overrides how Build orders overlapping parameterized
// patterns for dispatch.
func WithRoutePolicy(p RoutePolicy) RouterOption {
	return func(r *Router) {
		r.routePolicy = p
	}
}

// SpanStarter is a tracing hook interface for creating spans per request.
// Implement this with your preferred tracing backend (e.g., OpenTelemetry).
type SpanStarter interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func())
}

// WithTracer sets a tracing hook. Built endpoints start one span per
// request, named after the method and route pattern.
func WithTracer(s SpanStarter) RouterOption {
	return func(r *Router) {
		r.tracer = s
	}
}

// New creates a new Router with the given options.
func New(opts ...RouterOption) *Router {
	r := &Router{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Use adds middleware around the built service. Middleware is applied in
// the order added and runs before dispatch.
func (r *Router) Use(mw ...Middleware) {
	r.middleware = append(r.middleware, mw...)
}

// ServeSpec makes the built service serve the OpenAPI document as JSON at
// the given path. The route does not appear in the document.
func (r *Router) ServeSpec(pattern string) {
	r.specJSONPattern = pattern
}

// ServeSpecYAML makes the built service serve the OpenAPI document as YAML
// at the given path. The route does not appear in the document.
func (r *Router) ServeSpecYAML(pattern string) {
	r.specYAMLPattern = pattern
}

// addRoute stores a registration. Routes cannot be added once Build ran.
func (r *Router) addRoute(ri routeInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.built {
		panic("oas: route registered after Build")
	}
	r.routes = append(r.routes, ri)
}

func (r *Router) routeMiddleware() []Middleware { return nil }

// buildEnv carries the shared state route compilation needs.
type buildEnv struct {
	codecs       *codecRegistry
	registry     *schemaRegistry
	validator    Validator
	errorHandler ErrorHandler
	security     map[string]SecurityScheme
}

// Build compiles every registered route into an immutable Service. All
// problems are collected and returned together as a BuildErrors value; on
// failure no Service is produced. Build can run once per Router.
func (r *Router) Build() (*Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.built {
		return nil, ErrAlreadyBuilt
	}
	r.built = true

	env := &buildEnv{
		codecs:       newCodecRegistry(r.encoders, r.decoders),
		registry:     newSchemaRegistry(),
		validator:    r.validator,
		errorHandler: r.errorHandler,
		security:     r.securitySchemes,
	}

	var fails []*BuildError
	fail := func(ri *routeInfo, err error) {
		fails = append(fails, &BuildError{Method: ri.method, Path: ri.pattern, Err: err})
	}

	// Compile templates and request plans.
	vcache := make(map[reflect.Type]*typeValidator)
	for i := range r.routes {
		ri := &r.routes[i]

		if !ri.webhook {
			tpl, err := parsePathTemplate(ri.pattern)
			if err != nil {
				fail(ri, err)
			}
			ri.template = tpl
		}

		if ri.reqType != nil {
			compiled, err := compileRequest(ri.reqType, ri.method, env.codecs, ri.bodyLimit, ri.requestContentTypes, vcache)
			if err != nil {
				fail(ri, err)
			}
			ri.compiled = compiled
		}

		if ri.template != nil && ri.compiled != nil {
			if err := checkPathParams(ri.template, ri.compiled.params); err != nil {
				fail(ri, err)
			}
		}
	}

	// Assemble the document.
	spec := OpenAPISpec{
		OpenAPI: "3.1.0",
		Info: OpenAPIInfo{
			Title:          r.title,
			Summary:        r.summary,
			Description:    r.description,
			TermsOfService: r.termsOfService,
			Contact:        r.contact,
			License:        r.license,
			Version:        r.version,
		},
		Servers:      r.servers,
		Paths:        make(map[string]PathItem),
		ExternalDocs: r.externalDocs,
	}
	if spec.Info.Title == "" {
		spec.Info.Title = "API"
	}
	if spec.Info.Version == "" {
		spec.Info.Version = "0.0.1"
	}
	for name, item := range r.webhooks {
		if spec.Webhooks == nil {
			spec.Webhooks = make(map[string]PathItem)
		}
		spec.Webhooks[name] = item
	}

	seenOps := make(map[string]string)
	seenShapes := make(map[string]bool)
	seenHooks := make(map[string]bool)

	for i := range r.routes {
		ri := &r.routes[i]

		op, err := buildOperation(ri, env)
		if err != nil {
			fail(ri, err)
		}

		if op.OperationID != "" {
			if prior, dup := seenOps[op.OperationID]; dup {
				fail(ri, fmt.Errorf("%w: %q also used by %s", ErrDuplicateOperationID, op.OperationID, prior))
			}
			seenOps[op.OperationID] = ri.method + " " + ri.pattern
		}

		method := strings.ToLower(ri.method)

		if ri.webhook {
			hook := ri.method + " " + ri.pattern
			if seenHooks[hook] {
				fail(ri, ErrDuplicateRoute)
				continue
			}
			seenHooks[hook] = true

			if spec.Webhooks == nil {
				spec.Webhooks = make(map[string]PathItem)
			}
			if spec.Webhooks[ri.pattern] == nil {
				spec.Webhooks[ri.pattern] = make(PathItem)
			}
			spec.Webhooks[ri.pattern][method] = op
			continue
		}

		if ri.template != nil {
			shape := ri.method + " " + ri.template.shapeKey()
			if seenShapes[shape] {
				fail(ri, ErrDuplicateRoute)
			}
			seenShapes[shape] = true
		}

		path := toOpenAPIPath(ri.pattern)
		if spec.Paths[path] == nil {
			spec.Paths[path] = make(PathItem)
		}
		spec.Paths[path][method] = op
	}

	// Document-wide security requirements.
	if len(r.security) > 0 {
		req := make(SecurityRequirement, len(r.security))
		for _, name := range r.security {
			if _, ok := r.securitySchemes[name]; !ok {
				fails = append(fails, &BuildError{Name: name, Err: ErrUndeclaredSecurityScheme})
				continue
			}
			req[name] = []string{}
		}
		spec.Security = []SecurityRequirement{req}
	}

	spec.Tags = r.collectTags()

	fails = append(fails, env.registry.errs...)

	if len(env.registry.defs) > 0 || len(r.securitySchemes) > 0 {
		spec.Components = &Components{
			Schemas:         env.registry.defs,
			SecuritySchemes: r.securitySchemes,
		}
	}

	if err := buildFail(fails); err != nil {
		return nil, err
	}

	// Compile handlers and the dispatcher. From here on nothing fails
	// except a malformed spec-serving pattern.
	specJSON, specYAML, err := marshalSpec(&spec)
	if err != nil {
		return nil, buildFail([]*BuildError{{Name: "openapi", Err: err}})
	}

	var eps []*endpoint
	for i := range r.routes {
		ri := &r.routes[i]
		if ri.webhook {
			continue
		}

		h := ri.handler
		if ri.makeHandler != nil {
			h = ri.makeHandler(ri, env)
		}
		for j := len(ri.middleware) - 1; j >= 0; j-- {
			h = ri.middleware[j](h)
		}
		if r.tracer != nil {
			h = traceHandler(r.tracer, ri.method, ri.pattern, h)
		}

		eps = append(eps, &endpoint{
			method:   ri.method,
			pattern:  ri.pattern,
			opID:     specOperationID(spec, ri),
			template: ri.template,
			handler:  h,
		})
	}

	if r.specJSONPattern != "" {
		ep, err := specEndpoint(r.specJSONPattern, "application/json", specJSON)
		if err != nil {
			return nil, buildFail([]*BuildError{{Method: http.MethodGet, Path: r.specJSONPattern, Err: err}})
		}
		eps = append(eps, ep)
	}
	if r.specYAMLPattern != "" {
		ep, err := specEndpoint(r.specYAMLPattern, "application/yaml", specYAML)
		if err != nil {
			return nil, buildFail([]*BuildError{{Method: http.MethodGet, Path: r.specYAMLPattern, Err: err}})
		}
		eps = append(eps, ep)
	}

	disp, err := newDispatcher(eps, r.routePolicy)
	if err != nil {
		return nil, buildFail([]*BuildError{{Err: err}})
	}

	env.registry.freeze()

	handler := http.Handler(http.HandlerFunc(disp.serve))
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}

	return &Service{
		spec:       spec,
		dispatcher: disp,
		handler:    handler,
		specJSON:   specJSON,
		specYAML:   specYAML,
	}, nil
}

// collectTags merges the declared tags and tag descriptions, sorted by name.
func (r *Router) collectTags() []Tag {
	tags := slices.Clone(r.tags)
	declared := make(map[string]bool, len(tags))
	for _, t := range tags {
		declared[t.Name] = true
	}
	for _, name := range slices.Sorted(maps.Keys(r.tagDescs)) {
		if !declared[name] {
			tags = append(tags, Tag{Name: name, Description: r.tagDescs[name]})
		}
	}
	slices.SortFunc(tags, func(a, b Tag) int {
		return strings.Compare(a.Name, b.Name)
	})
	return tags
}

// checkPathParams verifies the template and the bound fields declare the
// same path parameters.
func checkPathParams(tpl *pathTemplate, bindings []paramBinding) error {
	var errs []error

	bound := make(map[string]bool)
	for i := range bindings {
		if bindings[i].location == inPath {
			bound[bindings[i].name] = true
		}
	}

	for _, name := range tpl.names {
		if !bound[name] {
			errs = append(errs, fmt.Errorf("%w: path parameter %q has no binding", ErrPathParameterMismatch, name))
		}
	}
	for _, name := range slices.Sorted(maps.Keys(bound)) {
		if !slices.Contains(tpl.names, name) {
			errs = append(errs, fmt.Errorf("%w: bound parameter %q is not in the path", ErrPathParameterMismatch, name))
		}
	}

	return errors.Join(errs...)
}

// specOperationID returns the operation id Build stored in the document
// for this route.
func specOperationID(spec OpenAPISpec, ri *routeInfo) string {
	item := spec.Paths[toOpenAPIPath(ri.pattern)]
	if item == nil {
		return ""
	}
	return item[strings.ToLower(ri.method)].OperationID
}

// traceHandler starts one span per request around an endpoint.
func traceHandler(tracer SpanStarter, method, pattern string, next http.Handler) http.Handler {
	name := method + " " + pattern
	attrs := map[string]string{
		"http.method": method,
		"http.route":  pattern,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, end := tracer.StartSpan(r.Context(), name, attrs)
		defer end()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
