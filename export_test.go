package oas

import "reflect"

// Test-only exports for internal functions.
var (
	HasParamTags  = hasParamTags
	HasFormTags   = hasFormTags
	HasBodyField  = hasBodyField
	HasRawRequest = hasRawRequest
	TagOptions    = tagOptions
	TagContains   = tagContains

	TypeToSchema        = typeToSchema
	JSONFieldName       = jsonFieldName
	SchemaName          = schemaName
	ApplyConstraintTags = applyConstraintTags

	ErrorResponseSchema = errorResponseSchema
	ErrorSchemaName     = errorSchemaName

	ValidateConstraints = validateConstraints
	GenerateOperationID = generateOperationID
)

// TestSchemaRegistry wraps schemaRegistry for external tests.
type TestSchemaRegistry struct {
	reg  *schemaRegistry
	Defs map[string]JSONSchema
}

// NewSchemaRegistry creates a TestSchemaRegistry for testing.
func NewSchemaRegistry() *TestSchemaRegistry {
	r := newSchemaRegistry()
	return &TestSchemaRegistry{reg: r, Defs: r.defs}
}

// TypeToSchema delegates to the internal registry.
func (t *TestSchemaRegistry) TypeToSchema(typ reflect.Type) JSONSchema {
	return t.reg.typeToSchema(typ)
}

// StructSchema builds the inline object schema for a struct type.
func (t *TestSchemaRegistry) StructSchema(typ reflect.Type) JSONSchema {
	return t.reg.structSchema(typ)
}

// Errs returns accumulated registration errors.
func (t *TestSchemaRegistry) Errs() []error {
	errs := make([]error, len(t.reg.errs))
	for i, e := range t.reg.errs {
		errs[i] = e
	}
	return errs
}

// TestTemplate wraps pathTemplate for dispatch tests.
type TestTemplate struct {
	tpl *pathTemplate
}

// ParsePathTemplate exposes template parsing for tests.
func ParsePathTemplate(pattern string) (*TestTemplate, error) {
	tpl, err := parsePathTemplate(pattern)
	if err != nil {
		return nil, err
	}
	return &TestTemplate{tpl: tpl}, nil
}

// ParamNames lists the template's parameter names in order.
func (t *TestTemplate) ParamNames() []string { return t.tpl.paramNames() }

// ShapeKey returns the shape-normalized form of the template.
func (t *TestTemplate) ShapeKey() string { return t.tpl.shapeKey() }

// Match attempts to match the template against a request path.
func (t *TestTemplate) Match(path string) ([]string, bool) {
	return t.tpl.match(splitPath(path))
}

// Pattern returns the template's RoutePattern for policy tests.
func (t *TestTemplate) Pattern() RoutePattern { return t.tpl.routePattern() }

// Negotiate exposes content negotiation over the default codecs.
func Negotiate(accept string) (string, bool) {
	enc, ok := newCodecRegistry(nil, nil).negotiate(accept)
	if !ok {
		return "", false
	}
	return enc.ContentType(), true
}
