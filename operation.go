package oas

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"slices"
)

// buildOperation assembles the OpenAPI operation for one route. Schema
// problems land in the registry; everything reported here is joined and
// attributed to the route by the caller.
func buildOperation(ri *routeInfo, env *buildEnv) (Operation, error) {
	op := Operation{
		Summary:     ri.summary,
		Description: ri.desc,
		Tags:        ri.tags,
		OperationID: ri.operationID,
		Deprecated:  ri.deprecated,
		Callbacks:   ri.callbacks,
		Extensions:  ri.extensions,
	}
	if op.OperationID == "" && !ri.webhook {
		op.OperationID = generateOperationID(ri.method, toOpenAPIPath(ri.pattern))
	}

	var errs []error

	switch {
	case ri.compiled != nil && ri.compiled.category != catVoid:
		params, err := buildParameters(ri.compiled.params, env.registry)
		if err != nil {
			errs = append(errs, err)
		}
		op.Parameters = params
		op.RequestBody = buildRequestBody(ri, env)
	case ri.compiled == nil && ri.template != nil:
		// Raw routes carry no type information; document the path
		// parameters the template names as plain strings.
		op.Parameters = templateParameters(ri.template)
	}

	op.Responses = buildResponses(ri, env)

	sec, err := buildSecurity(ri, env.security)
	if err != nil {
		errs = append(errs, err)
	}
	op.Security = sec

	return op, errors.Join(errs...)
}

// buildParameters documents the compiled parameter bindings. Style and
// explode appear only when they differ from the location's defaults.
func buildParameters(bindings []paramBinding, sr *schemaRegistry) ([]Parameter, error) {
	var (
		params []Parameter
		errs   []error
	)
	for i := range bindings {
		b := &bindings[i]

		schema := sr.typeToSchema(b.field.Type)
		cs, err := parseConstraintTags(b.field.Tag)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s parameter %q: %w", b.location, b.name, err))
		}
		if schema.Ref == "" {
			if err := cs.applyToSchema(&schema); err != nil {
				errs = append(errs, fmt.Errorf("%s parameter %q: %w", b.location, b.name, err))
			}
		}

		p := Parameter{
			Name:        b.name,
			In:          string(b.location),
			Description: cs.doc,
			Required:    b.required,
			Deprecated:  cs.deprecated,
			Schema:      schema,
		}
		if b.style != defaultParamStyle(b.location) {
			p.Style = string(b.style)
		}
		if b.explode != (b.style == styleForm) {
			explode := b.explode
			p.Explode = &explode
		}

		params = append(params, p)
	}
	return params, errors.Join(errs...)
}

// templateParameters synthesizes string path parameters for routes that
// have no request type.
func templateParameters(tpl *pathTemplate) []Parameter {
	var params []Parameter
	for _, name := range tpl.paramNames() {
		params = append(params, Parameter{
			Name:     name,
			In:       string(inPath),
			Required: true,
			Schema:   JSONSchema{Type: "string"},
		})
	}
	return params
}

// buildRequestBody documents the route's request body, if it has one.
func buildRequestBody(ri *routeInfo, env *buildEnv) *RequestBody {
	cr := ri.compiled

	switch cr.category {
	case catForm:
		schema := formSchema(cr.forms, env.registry)
		ct := "application/x-www-form-urlencoded"
		for i := range cr.forms {
			if cr.forms[i].file || cr.forms[i].files {
				ct = "multipart/form-data"
				break
			}
		}
		if len(ri.requestContentTypes) > 0 {
			ct = ri.requestContentTypes[0]
		}
		return &RequestBody{
			Required: true,
			Content:  map[string]MediaObj{ct: {Schema: &schema}},
		}

	case catBodyOnly:
		if !bodyMethod(ri.method) || cr.typ.NumField() == 0 {
			return nil
		}
	case catMixed:
	default:
		return nil
	}

	schema := env.registry.typeToSchema(cr.bodyType)
	cts := ri.requestContentTypes
	if len(cts) == 0 {
		cts = env.codecs.decoderContentTypes()
	}
	content := make(map[string]MediaObj, len(cts))
	for _, ct := range cts {
		s := schema
		content[ct] = MediaObj{Schema: &s}
	}
	return &RequestBody{
		Required: cr.bodyRequired,
		Content:  content,
	}
}

// formSchema builds the object schema describing a form request.
func formSchema(forms []formBinding, sr *schemaRegistry) JSONSchema {
	s := JSONSchema{
		Type:       "object",
		Properties: make(map[string]JSONSchema, len(forms)),
	}
	for i := range forms {
		fb := &forms[i]

		var prop JSONSchema
		switch {
		case fb.file:
			prop = JSONSchema{Type: "string", Format: "binary"}
		case fb.files:
			prop = JSONSchema{
				Type:  "array",
				Items: &JSONSchema{Type: "string", Format: "binary"},
			}
		default:
			prop = sr.typeToSchema(fb.field.Type)
			if prop.Ref == "" {
				//nolint:errcheck // malformed tags were reported when the bindings compiled
				applyConstraintTags(fb.field.Tag, &prop)
			}
		}
		s.Properties[fb.name] = prop

		if fb.required {
			s.Required = append(s.Required, fb.name)
		}
	}
	return s
}

// buildResponses enumerates the route's documented responses: the success
// shape derived from the response type (or the type's own variant
// enumeration), plus a problem response per declared error status.
func buildResponses(ri *routeInfo, env *buildEnv) OperationResp {
	responses := make(OperationResp)
	sr := env.registry

	status := ri.status
	if status == 0 {
		status = http.StatusOK
	}

	switch {
	case ri.respType == nil:
		// Raw route: document the declared status with no body.
		responses[statusToString(status)] = ResponseObj{
			Description: http.StatusText(status),
		}

	case responseVariants(ri.respType) != nil:
		for _, v := range responseVariants(ri.respType) {
			vs := v.Status
			if vs == 0 {
				vs = status
			}
			obj := ResponseObj{Description: v.Description}
			if obj.Description == "" {
				obj.Description = http.StatusText(vs)
			}
			if v.Value != nil {
				cts := []string{v.ContentType}
				if v.ContentType == "" {
					cts = env.codecs.contentTypes()
				}
				schema := sr.typeToSchema(reflect.TypeOf(v.Value))
				obj.Content = make(map[string]MediaObj, len(cts))
				for _, ct := range cts {
					s := schema
					obj.Content[ct] = MediaObj{Schema: &s}
				}
			}
			for _, h := range v.Headers {
				if obj.Headers == nil {
					obj.Headers = make(map[string]HeaderObj)
				}
				hs := h.Schema
				obj.Headers[h.Name] = HeaderObj{Description: h.Description, Schema: &hs}
			}
			responses[statusToString(vs)] = obj
		}

	case ri.respType == reflect.TypeFor[Void]():
		responses[statusToString(status)] = ResponseObj{
			Description: "No content",
		}

	case ri.respType == reflect.TypeFor[Redirect]():
		if status < 300 || status > 399 {
			status = http.StatusFound
		}
		responses[statusToString(status)] = ResponseObj{
			Description: "Redirect",
			Headers: map[string]HeaderObj{
				"Location": {Schema: &JSONSchema{Type: "string", Format: "uri"}},
			},
		}

	case ri.respType == reflect.TypeFor[Stream]():
		responses[statusToString(status)] = ResponseObj{
			Description: "Successful response",
			Content: map[string]MediaObj{
				"application/octet-stream": {},
			},
		}

	case ri.respType == reflect.TypeFor[SSEStream]():
		responses[statusToString(status)] = ResponseObj{
			Description: "Successful response",
			Content: map[string]MediaObj{
				"text/event-stream": {Schema: &JSONSchema{Type: "string"}},
			},
		}

	default:
		schema := sr.typeToSchema(ri.respType)
		cts := env.codecs.contentTypes()
		content := make(map[string]MediaObj, len(cts))
		for _, ct := range cts {
			s := schema
			content[ct] = MediaObj{Schema: &s}
		}
		responses[statusToString(status)] = ResponseObj{
			Description: "Successful response",
			Content:     content,
		}
	}

	// Documented error statuses share the problem details schema.
	if len(ri.errors) > 0 {
		sr.registerErrorSchema()
		for _, code := range ri.errors {
			responses[statusToString(code)] = ResponseObj{
				Description: http.StatusText(code),
				Content: map[string]MediaObj{
					"application/problem+json": {Schema: &JSONSchema{Ref: schemaRefPrefix + errorSchemaName}},
				},
			}
		}
	}

	// Extra documented headers attach to their status.
	for code, headers := range ri.responseHeaders {
		key := statusToString(code)
		obj := responses[key]
		if obj.Description == "" {
			obj.Description = http.StatusText(code)
		}
		for _, h := range headers {
			if obj.Headers == nil {
				obj.Headers = make(map[string]HeaderObj)
			}
			hs := h.Schema
			obj.Headers[h.Name] = HeaderObj{Description: h.Description, Schema: &hs}
		}
		responses[key] = obj
	}

	// Links attach to the success response.
	if len(ri.links) > 0 {
		key := statusToString(status)
		obj := responses[key]
		obj.Links = ri.links
		responses[key] = obj
	}

	return responses
}

// responseVariants returns the type's variant enumeration, or nil when it
// does not implement ResponseVarianter.
func responseVariants(t reflect.Type) []ResponseVariant {
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() == reflect.Interface {
		return nil
	}
	if v, ok := reflect.New(t).Interface().(ResponseVarianter); ok {
		return v.ResponseVariants()
	}
	return nil
}

// buildSecurity resolves the route's security requirements against the
// declared schemes. Referencing an undeclared scheme is a build error.
func buildSecurity(ri *routeInfo, declared map[string]SecurityScheme) (*[]SecurityRequirement, error) {
	if ri.noSecurity {
		// An explicit empty list disables the document default.
		return &[]SecurityRequirement{}, nil
	}

	names := slices.Clone(ri.security)
	for name := range ri.scopes {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	slices.Sort(names)

	var errs []error
	req := make(SecurityRequirement, len(names))
	for _, name := range names {
		if _, ok := declared[name]; !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUndeclaredSecurityScheme, name))
			continue
		}
		scopes := ri.scopes[name]
		if scopes == nil {
			scopes = []string{}
		}
		req[name] = scopes
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &[]SecurityRequirement{req}, nil
}
