package oas

import (
	"errors"
	"net/http"
	"reflect"
)

// Registrar is the interface accepted by the registration functions.
// Both *Router and *Group implement it.
type Registrar interface {
	addRoute(ri routeInfo)
	routeMiddleware() []Middleware
}

// register records a typed route. The handler is not built here: Build
// compiles the request plan first and then calls makeHandler, which still
// knows the type parameters through the closure.
func register[Req, Resp any](reg Registrar, method, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	ri := routeInfo{
		method:   method,
		pattern:  pattern,
		reqType:  reflect.TypeFor[Req](),
		respType: reflect.TypeFor[Resp](),
	}

	for _, opt := range opts {
		opt(&ri)
	}

	// Determine default status: Void response → 204, otherwise 200.
	if ri.status == 0 {
		if ri.respType == reflect.TypeFor[Void]() {
			ri.status = http.StatusNoContent
		} else {
			ri.status = http.StatusOK
		}
	}

	// Group middleware sits outside any middleware added by route options.
	ri.middleware = append(reg.routeMiddleware(), ri.middleware...)
	ri.makeHandler = func(ri *routeInfo, env *buildEnv) http.Handler {
		return buildHandler(h, ri, env)
	}

	reg.addRoute(ri)
}

// buildHandler wraps a typed Handler into an http.Handler around the
// compiled request plan.
func buildHandler[Req, Resp any](h Handler[Req, Resp], ri *routeInfo, env *buildEnv) http.Handler {
	compiled := ri.compiled
	defaultStatus := ri.status
	codecs := env.codecs
	validator := env.validator
	errHandler := env.errorHandler

	writeErr := func(w http.ResponseWriter, r *http.Request, err error) {
		if errHandler != nil {
			errHandler(w, r, err)
			return
		}
		writeErrorResponse(w, err)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := new(Req)
		if err := compiled.decode(w, r, req); err != nil {
			writeErr(w, r, err)
			return
		}

		// Constraint checks compiled from struct tags.
		if err := compiled.validator.check(reflect.ValueOf(req).Elem()); err != nil {
			writeErr(w, r, paramViolation(compiled, err))
			return
		}

		// Run SelfValidator if implemented.
		if sv, ok := any(req).(SelfValidator); ok {
			if err := sv.Validate(); err != nil {
				writeErr(w, r, err)
				return
			}
		}

		// Run global validator if set.
		if validator != nil {
			if err := validator.Validate(req); err != nil {
				writeErr(w, r, err)
				return
			}
		}

		resp, err := h(r.Context(), req)
		if err != nil {
			writeErr(w, r, err)
			return
		}

		// Void response.
		if _, ok := any(resp).(*Void); ok || resp == nil {
			w.WriteHeader(defaultStatus)
			return
		}

		encodeResponse(w, r, resp, defaultStatus, codecs)
	})
}

// paramViolation reports constraint failures through the extraction
// taxonomy when every violation sits on a single bound parameter. The
// problem detail stays attached as the cause, so the response body keeps
// the collected rule list. Failures touching the body or several slots
// have no single-slot classification and pass through unchanged.
func paramViolation(compiled *compiledRequest, err error) error {
	var pd *ProblemDetail
	if !errors.As(err, &pd) || len(pd.Errors) == 0 {
		return err
	}

	field := pd.Errors[0].Field
	for _, v := range pd.Errors[1:] {
		if v.Field != field {
			return err
		}
	}

	for i := range compiled.params {
		b := &compiled.params[i]
		if b.name == field {
			return &ExtractionError{
				Location: string(b.location),
				Name:     b.name,
				Kind:     ExtractValidationFailed,
				Err:      pd,
			}
		}
	}
	return err
}

// Get registers a GET handler.
func Get[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodGet, pattern, h, opts...)
}

// Post registers a POST handler.
func Post[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodPost, pattern, h, opts...)
}

// Put registers a PUT handler.
func Put[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodPut, pattern, h, opts...)
}

// Patch registers a PATCH handler.
func Patch[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodPatch, pattern, h, opts...)
}

// Delete registers a DELETE handler.
func Delete[Req, Resp any](reg Registrar, pattern string, h Handler[Req, Resp], opts ...RouteOption) {
	register(reg, http.MethodDelete, pattern, h, opts...)
}

// Raw registers a plain http.Handler with manual OperationInfo for the
// OpenAPI document. No decoding or validation runs for raw routes.
func Raw(reg Registrar, method, pattern string, h RawHandler, info OperationInfo) {
	ri := routeInfo{
		method:  method,
		pattern: pattern,
		summary: info.Summary,
		desc:    info.Description,
		tags:    info.Tags,
		status:  info.Status,
		handler: http.HandlerFunc(h),
	}
	if ri.status == 0 {
		ri.status = http.StatusOK
	}

	ri.middleware = append(reg.routeMiddleware(), ri.middleware...)

	reg.addRoute(ri)
}
