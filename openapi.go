package oas

import (
	"encoding/json"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// OpenAPISpec is the top-level OpenAPI 3.1 document.
type OpenAPISpec struct {
	OpenAPI      string                `json:"openapi" yaml:"openapi"`
	Info         OpenAPIInfo           `json:"info" yaml:"info"`
	Servers      []Server              `json:"servers,omitempty" yaml:"servers,omitempty"`
	Paths        map[string]PathItem   `json:"paths" yaml:"paths"`
	Webhooks     map[string]PathItem   `json:"webhooks,omitempty" yaml:"webhooks,omitempty"`
	Components   *Components           `json:"components,omitempty" yaml:"components,omitempty"`
	Security     []SecurityRequirement `json:"security,omitempty" yaml:"security,omitempty"`
	Tags         []Tag                 `json:"tags,omitempty" yaml:"tags,omitempty"`
	ExternalDocs *ExternalDocs         `json:"externalDocs,omitempty" yaml:"externalDocs,omitempty"`
}

// OpenAPIInfo holds API metadata.
type OpenAPIInfo struct {
	Title          string   `json:"title" yaml:"title"`
	Summary        string   `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	TermsOfService string   `json:"termsOfService,omitempty" yaml:"termsOfService,omitempty"`
	Contact        *Contact `json:"contact,omitempty" yaml:"contact,omitempty"`
	License        *License `json:"license,omitempty" yaml:"license,omitempty"`
	Version        string   `json:"version" yaml:"version"`
}

// Contact is the API's point of contact.
type Contact struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// License names the API's license.
type License struct {
	Name       string `json:"name" yaml:"name"`
	Identifier string `json:"identifier,omitempty" yaml:"identifier,omitempty"`
	URL        string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Server describes a server the API is reachable on.
type Server struct {
	URL         string                    `json:"url" yaml:"url"`
	Description string                    `json:"description,omitempty" yaml:"description,omitempty"`
	Variables   map[string]ServerVariable `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// ServerVariable is a substitutable part of a server URL template.
type ServerVariable struct {
	Enum        []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	Default     string   `json:"default" yaml:"default"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Tag documents a group of operations.
type Tag struct {
	Name         string        `json:"name" yaml:"name"`
	Description  string        `json:"description,omitempty" yaml:"description,omitempty"`
	ExternalDocs *ExternalDocs `json:"externalDocs,omitempty" yaml:"externalDocs,omitempty"`
}

// ExternalDocs points at documentation hosted elsewhere.
type ExternalDocs struct {
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	URL         string `json:"url" yaml:"url"`
}

// Components holds the reusable objects referenced from the rest of the
// document.
type Components struct {
	Schemas         map[string]JSONSchema     `json:"schemas,omitempty" yaml:"schemas,omitempty"`
	SecuritySchemes map[string]SecurityScheme `json:"securitySchemes,omitempty" yaml:"securitySchemes,omitempty"`
}

// PathItem maps HTTP methods to operations.
type PathItem map[string]Operation

// Operation describes a single API operation on a path.
type Operation struct {
	Summary     string                         `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string                         `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string                       `json:"tags,omitempty" yaml:"tags,omitempty"`
	OperationID string                         `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	Parameters  []Parameter                    `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody *RequestBody                   `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   OperationResp                  `json:"responses" yaml:"responses"`
	Deprecated  bool                           `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	Callbacks   map[string]map[string]PathItem `json:"callbacks,omitempty" yaml:"callbacks,omitempty"`

	// Security distinguishes three states: nil inherits the document
	// default, a pointer to an empty slice renders "security": [] and
	// disables authentication, anything else lists requirements.
	Security *[]SecurityRequirement `json:"security,omitempty" yaml:"security,omitempty"`

	// Extensions holds x- keys spliced into the operation object.
	Extensions map[string]any `json:"-" yaml:"-"`
}

// MarshalJSON splices the x- extension keys into the operation object.
func (op Operation) MarshalJSON() ([]byte, error) {
	type plain Operation
	base, err := json.Marshal(plain(op))
	if err != nil {
		return nil, err
	}
	if len(op.Extensions) == 0 {
		return base, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	for k, v := range op.Extensions {
		if !strings.HasPrefix(k, "x-") {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		m[k] = raw
	}
	return json.Marshal(m)
}

// MarshalYAML splices the x- extension keys into the operation object.
func (op Operation) MarshalYAML() (any, error) {
	type plain Operation
	if len(op.Extensions) == 0 {
		return plain(op), nil
	}
	b, err := yaml.Marshal(plain(op))
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range op.Extensions {
		if !strings.HasPrefix(k, "x-") {
			continue
		}
		m[k] = v
	}
	return m, nil
}

// Parameter describes a single operation parameter. Style and Explode are
// only written when they differ from the location's defaults.
type Parameter struct {
	Name        string     `json:"name" yaml:"name"`
	In          string     `json:"in" yaml:"in"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool       `json:"required,omitempty" yaml:"required,omitempty"`
	Deprecated  bool       `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	Style       string     `json:"style,omitempty" yaml:"style,omitempty"`
	Explode     *bool      `json:"explode,omitempty" yaml:"explode,omitempty"`
	Schema      JSONSchema `json:"schema" yaml:"schema"`
	Example     any        `json:"example,omitempty" yaml:"example,omitempty"`
}

// RequestBody describes the request body.
type RequestBody struct {
	Description string              `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool                `json:"required" yaml:"required"`
	Content     map[string]MediaObj `json:"content" yaml:"content"`
}

// MediaObj is a media type object with an optional schema.
type MediaObj struct {
	Schema  *JSONSchema `json:"schema,omitempty" yaml:"schema,omitempty"`
	Example any         `json:"example,omitempty" yaml:"example,omitempty"`
}

// OperationResp maps HTTP status codes to response objects.
type OperationResp map[string]ResponseObj

// ResponseObj describes a single response.
type ResponseObj struct {
	Description string               `json:"description" yaml:"description"`
	Headers     map[string]HeaderObj `json:"headers,omitempty" yaml:"headers,omitempty"`
	Content     map[string]MediaObj  `json:"content,omitempty" yaml:"content,omitempty"`
	Links       map[string]Link      `json:"links,omitempty" yaml:"links,omitempty"`
}

// HeaderObj documents a response header.
type HeaderObj struct {
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool        `json:"required,omitempty" yaml:"required,omitempty"`
	Schema      *JSONSchema `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// Link describes a design-time relation from a response to another operation.
type Link struct {
	OperationID string         `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody any            `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
}

// errorSchemaName is the component name reserved for error responses.
const errorSchemaName = "ProblemDetail"

// errorResponseSchema is the schema for RFC 9457 problem responses,
// registered under errorSchemaName when any route documents an error.
func errorResponseSchema() JSONSchema {
	return JSONSchema{
		Type: "object",
		Properties: map[string]JSONSchema{
			"type":     {Type: "string"},
			"title":    {Type: "string"},
			"status":   {Type: "integer"},
			"detail":   {Type: "string"},
			"instance": {Type: "string"},
			"errors": {
				Type: "array",
				Items: &JSONSchema{
					Type: "object",
					Properties: map[string]JSONSchema{
						"field":   {Type: "string"},
						"rule":    {Type: "string"},
						"message": {Type: "string"},
						"value":   {},
					},
				},
			},
		},
		Required: []string{"status"},
	}
}

// toOpenAPIPath converts a route pattern like "/files/{path...}" to an
// OpenAPI path. OpenAPI has no wildcard marker, so the ellipsis is dropped.
func toOpenAPIPath(pattern string) string {
	return strings.ReplaceAll(pattern, "...", "")
}

// statusToString converts an HTTP status code to its string representation.
func statusToString(code int) string {
	return strconv.Itoa(code)
}
