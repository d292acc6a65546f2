package oas

import (
	"net/http"
	"reflect"
)

// Webhook documents an out-of-band request the API sends to subscribers.
// name keys the document's webhooks section; Req and Resp describe the
// payload the API delivers and the response it expects back. Webhooks are
// documentation only: they are never dispatched and need no handler.
func Webhook[Req, Resp any](r *Router, name, method string, opts ...RouteOption) {
	ri := routeInfo{
		method:   method,
		pattern:  name,
		webhook:  true,
		reqType:  reflect.TypeFor[Req](),
		respType: reflect.TypeFor[Resp](),
	}

	for _, opt := range opts {
		opt(&ri)
	}

	if ri.status == 0 {
		if ri.respType == reflect.TypeFor[Void]() {
			ri.status = http.StatusNoContent
		} else {
			ri.status = http.StatusOK
		}
	}

	r.addRoute(ri)
}
