package oas

import (
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JSONSchema represents a JSON Schema object (subset for OpenAPI 3.1).
type JSONSchema struct {
	Type        string                `json:"type,omitempty" yaml:"type,omitempty"`
	Format      string                `json:"format,omitempty" yaml:"format,omitempty"`
	Properties  map[string]JSONSchema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Items       *JSONSchema           `json:"items,omitempty" yaml:"items,omitempty"`
	Required    []string              `json:"required,omitempty" yaml:"required,omitempty"`
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Enum        []any                 `json:"enum,omitempty" yaml:"enum,omitempty"`
	Ref         string                `json:"$ref,omitempty" yaml:"$ref,omitempty"`

	// AdditionalProperties can be true (any) or a schema.
	AdditionalProperties *JSONSchema `json:"additionalProperties,omitempty" yaml:"additionalProperties,omitempty"`

	// OneOf holds the variant schemas of a closed union.
	OneOf         []JSONSchema   `json:"oneOf,omitempty" yaml:"oneOf,omitempty"`
	Discriminator *Discriminator `json:"discriminator,omitempty" yaml:"discriminator,omitempty"`

	Default any `json:"default,omitempty" yaml:"default,omitempty"`
	Example any `json:"example,omitempty" yaml:"example,omitempty"`

	// Numeric constraints.
	Minimum          *float64 `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum          *float64 `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	ExclusiveMinimum *float64 `json:"exclusiveMinimum,omitempty" yaml:"exclusiveMinimum,omitempty"`
	ExclusiveMaximum *float64 `json:"exclusiveMaximum,omitempty" yaml:"exclusiveMaximum,omitempty"`
	MultipleOf       *float64 `json:"multipleOf,omitempty" yaml:"multipleOf,omitempty"`

	// String constraints.
	MinLength *int   `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	// Array constraints.
	MinItems    *int `json:"minItems,omitempty" yaml:"minItems,omitempty"`
	MaxItems    *int `json:"maxItems,omitempty" yaml:"maxItems,omitempty"`
	UniqueItems bool `json:"uniqueItems,omitempty" yaml:"uniqueItems,omitempty"`

	ContentEncoding string `json:"contentEncoding,omitempty" yaml:"contentEncoding,omitempty"`
	Deprecated      bool   `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	ReadOnly        bool   `json:"readOnly,omitempty" yaml:"readOnly,omitempty"`
	WriteOnly       bool   `json:"writeOnly,omitempty" yaml:"writeOnly,omitempty"`
}

// Discriminator names the property used to distinguish union variants.
type Discriminator struct {
	PropertyName string            `json:"propertyName" yaml:"propertyName"`
	Mapping      map[string]string `json:"mapping,omitempty" yaml:"mapping,omitempty"`
}

// Schemer is implemented by types that provide their own schema instead of
// the reflected one. The returned schema is used inline wherever the type
// appears; it is not registered as a named component.
type Schemer interface {
	Schema() JSONSchema
}

// Enumer is implemented by string-like types with a closed value set.
// Named types implementing it register as a string schema with an enum.
type Enumer interface {
	EnumValues() []string
}

// Unioner is implemented by types that document as a oneOf over a closed
// set of variant types. Return one (possibly zero) value per variant.
type Unioner interface {
	UnionVariants() []any
}

// DiscriminatorNamer optionally names the discriminator property of a Unioner.
type DiscriminatorNamer interface {
	DiscriminatorName() string
}

// SchemaNamer overrides the component name a type registers under.
type SchemaNamer interface {
	SchemaName() string
}

// typeToSchema converts a reflect.Type to an inline JSONSchema. Named struct
// types are not expanded here; parameter and form fields never carry object
// schemas. Body and response types go through the schema registry instead.
func typeToSchema(t reflect.Type) JSONSchema {
	// Unwrap pointer.
	if t.Kind() == reflect.Pointer {
		return typeToSchema(t.Elem())
	}

	if s, ok := wellKnownSchema(t); ok {
		return s
	}

	if s, ok := implementsAs[Schemer](t); ok {
		return s.Schema()
	}

	if e, ok := implementsAs[Enumer](t); ok {
		values := e.EnumValues()
		enum := make([]any, len(values))
		for i, v := range values {
			enum[i] = v
		}
		return JSONSchema{Type: "string", Enum: enum}
	}

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.String:
		return JSONSchema{Type: "string"}
	case reflect.Bool:
		return JSONSchema{Type: "boolean"}
	case reflect.Int, reflect.Uint, reflect.Uint32:
		return JSONSchema{Type: "integer"}
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return JSONSchema{Type: "integer", Format: "int32"}
	case reflect.Int64, reflect.Uint64:
		return JSONSchema{Type: "integer", Format: "int64"}
	case reflect.Float32:
		return JSONSchema{Type: "number", Format: "float"}
	case reflect.Float64:
		return JSONSchema{Type: "number", Format: "double"}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return JSONSchema{Type: "string", ContentEncoding: "base64"}
		}
		items := typeToSchema(t.Elem())
		return JSONSchema{Type: "array", Items: &items}
	case reflect.Array:
		items := typeToSchema(t.Elem())
		return JSONSchema{Type: "array", Items: &items}
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return JSONSchema{Type: "object"}
		}
		valSchema := typeToSchema(t.Elem())
		return JSONSchema{Type: "object", AdditionalProperties: &valSchema}
	case reflect.Struct:
		return JSONSchema{Type: "object"}
	case reflect.Interface:
		return JSONSchema{}
	default:
		return JSONSchema{}
	}
}

// wellKnownSchema maps types with fixed wire representations.
func wellKnownSchema(t reflect.Type) (JSONSchema, bool) {
	switch t {
	case reflect.TypeFor[time.Time]():
		return JSONSchema{Type: "string", Format: "date-time"}, true
	case reflect.TypeFor[time.Duration]():
		return JSONSchema{Type: "string", Format: "duration"}, true
	case reflect.TypeFor[uuid.UUID]():
		return JSONSchema{Type: "string", Format: "uuid"}, true
	case reflect.TypeFor[Void]():
		return JSONSchema{}, true
	case reflect.TypeFor[Stream]():
		return JSONSchema{Type: "string", Format: "binary"}, true
	case reflect.TypeFor[SSEStream]():
		return JSONSchema{Type: "string", Format: "event-stream"}, true
	case reflect.TypeFor[FileUpload]():
		return JSONSchema{Type: "string", Format: "binary"}, true
	}
	return JSONSchema{}, false
}

// refSchema returns a $ref to a named component schema.
func refSchema(name string) JSONSchema {
	return JSONSchema{Ref: schemaRefPrefix + name}
}

// implementsAs reports whether t (or *t) implements T and returns a zero
// value usable for calling interface methods.
func implementsAs[T any](t reflect.Type) (T, bool) {
	var zero T
	iface := reflect.TypeFor[T]()
	if t.Implements(iface) {
		v, ok := reflect.New(t).Elem().Interface().(T)
		return v, ok
	}
	if reflect.PointerTo(t).Implements(iface) {
		v, ok := reflect.New(t).Interface().(T)
		return v, ok
	}
	return zero, false
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

// isParamField reports whether a struct field has parameter binding tags.
func isParamField(f reflect.StructField) bool {
	for _, tag := range paramTags {
		if f.Tag.Get(tag) != "" {
			return true
		}
	}
	return false
}
