// Package oas is a generics-first OpenAPI framework for Go. Handler types
// are the source of truth: request parameters, bodies, and responses are
// all expressed as Go types, and the package derives parameter binding,
// validation, dispatch, and an OpenAPI 3.1 document from them.
//
// The core handler signature removes http.ResponseWriter and *http.Request:
//
//	type Handler[Req, Resp any] func(ctx context.Context, req *Req) (*Resp, error)
//
// Routes are registered on a Router, which is only a build context. Build
// compiles every route, assembles the document, and returns an immutable
// Service that implements http.Handler:
//
//	r := oas.New(oas.WithTitle("My API"), oas.WithVersion("1.0.0"))
//	oas.Get[ListReq, ListResp](r, "/items", listItems)
//	oas.Post[CreateReq, Item](r, "/items", createItem, oas.WithStatus(http.StatusCreated))
//
//	svc, err := r.Build()
//	if err != nil {
//	    log.Fatal(err) // every problem, aggregated, never a partial service
//	}
//	http.ListenAndServe(":8080", svc)
//
// Request types use struct tags for parameter binding and a Body field for
// request bodies; the same tags drive the document and runtime checks:
//
//	type CreateReq struct {
//	    OrgID string `path:"org_id"`
//	    Body  struct {
//	        Name string `json:"name" required:"true" minLength:"1"`
//	    }
//	}
//
// Named struct types referenced by routes are registered once under
// components/schemas and referenced by $ref everywhere they appear.
// Registering two different types with the same name fails the build.
//
// Middleware uses the standard func(http.Handler) http.Handler signature,
// so the entire Go middleware ecosystem works natively.
//
// The document is available from the built service:
//
//	r.ServeSpec("/openapi.json") // served by the built service
//	svc.WriteSpec(os.Stdout)     // or written directly
package oas
