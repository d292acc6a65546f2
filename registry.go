package oas

import (
	"fmt"
	"reflect"
)

// schemaRefPrefix is where component schemas live in the document.
const schemaRefPrefix = "#/components/schemas/"

// schemaRegistry accumulates named component schemas during Build. It is
// owned by a single Router, never shared, and is frozen once
// the Service is built, after which it is read concurrently without locking.
type schemaRegistry struct {
	defs       map[string]JSONSchema
	nameByType map[reflect.Type]string
	typeByName map[string]reflect.Type
	inProgress map[reflect.Type]bool
	errs       []*BuildError
	frozen     bool
}

// newSchemaRegistry creates an empty registry.
func newSchemaRegistry() *schemaRegistry {
	return &schemaRegistry{
		defs:       make(map[string]JSONSchema),
		nameByType: make(map[reflect.Type]string),
		typeByName: make(map[string]reflect.Type),
		inProgress: make(map[reflect.Type]bool),
	}
}

// typeToSchema converts a type to a schema, registering named struct, enum,
// and union types as components and returning $refs to them. Everything
// else is inlined.
func (sr *schemaRegistry) typeToSchema(t reflect.Type) JSONSchema {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if s, ok := wellKnownSchema(t); ok {
		return s
	}

	if s, ok := implementsAs[Schemer](t); ok {
		return s.Schema()
	}

	if t.Name() != "" {
		if _, ok := implementsAs[Enumer](t); ok {
			return sr.register(t)
		}
		if _, ok := implementsAs[Unioner](t); ok {
			return sr.register(t)
		}
	}

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return JSONSchema{Type: "string", ContentEncoding: "base64"}
		}
		items := sr.typeToSchema(t.Elem())
		return JSONSchema{Type: "array", Items: &items}
	case reflect.Array:
		items := sr.typeToSchema(t.Elem())
		return JSONSchema{Type: "array", Items: &items}
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return JSONSchema{Type: "object"}
		}
		val := sr.typeToSchema(t.Elem())
		return JSONSchema{Type: "object", AdditionalProperties: &val}
	case reflect.Struct:
		if t.Name() == "" {
			return sr.structSchema(t)
		}
		return sr.register(t)
	default:
		return typeToSchema(t)
	}
}

// register ensures t has a component definition and returns a $ref to it.
// Registering the same type again is a no-op. A reservation is placed
// before descending into the definition, so self-referential types resolve
// to the $ref instead of recursing forever.
func (sr *schemaRegistry) register(t reflect.Type) JSONSchema {
	if sr.frozen {
		panic("oas: schema registry is frozen")
	}

	if name, ok := sr.nameByType[t]; ok {
		return refSchema(name)
	}

	name := schemaName(t)

	if prior, taken := sr.typeByName[name]; taken && prior != t {
		// Another type already owns this name. Structurally equal shapes
		// share the entry; anything else is a NameConflict. While the
		// prior type's descent is still in progress its definition is a
		// reservation, so no structural comparison can succeed.
		if sr.inProgress[prior] {
			sr.errs = append(sr.errs, &BuildError{
				Name: name,
				Err:  fmt.Errorf("%w: %s and %s", ErrNameConflict, prior.String(), t.String()),
			})
			return refSchema(name)
		}

		sr.nameByType[t] = name
		sr.inProgress[t] = true
		def := sr.buildDefinition(t)
		delete(sr.inProgress, t)

		if existing, built := sr.defs[name]; built && reflect.DeepEqual(existing, def) {
			return refSchema(name)
		}

		delete(sr.nameByType, t)
		sr.errs = append(sr.errs, &BuildError{
			Name: name,
			Err:  fmt.Errorf("%w: %s and %s", ErrNameConflict, prior.String(), t.String()),
		})
		return refSchema(name)
	}

	sr.nameByType[t] = name
	sr.typeByName[name] = t
	sr.inProgress[t] = true
	def := sr.buildDefinition(t)
	delete(sr.inProgress, t)
	sr.defs[name] = def

	return refSchema(name)
}

// buildDefinition produces the component definition for a named type.
func (sr *schemaRegistry) buildDefinition(t reflect.Type) JSONSchema {
	if e, ok := implementsAs[Enumer](t); ok {
		values := e.EnumValues()
		enum := make([]any, len(values))
		for i, v := range values {
			enum[i] = v
		}
		return JSONSchema{Type: "string", Enum: enum}
	}
	if u, ok := implementsAs[Unioner](t); ok {
		return sr.unionSchema(t, u)
	}
	return sr.structSchema(t)
}

// unionSchema renders a Unioner as a oneOf over its variant schemas.
func (sr *schemaRegistry) unionSchema(t reflect.Type, u Unioner) JSONSchema {
	variants := u.UnionVariants()
	s := JSONSchema{OneOf: make([]JSONSchema, 0, len(variants))}

	var mapping map[string]string
	for _, v := range variants {
		vt := reflect.TypeOf(v)
		ref := sr.typeToSchema(vt)
		s.OneOf = append(s.OneOf, ref)

		if ref.Ref != "" {
			for vt.Kind() == reflect.Pointer {
				vt = vt.Elem()
			}
			if mapping == nil {
				mapping = make(map[string]string)
			}
			mapping[schemaName(vt)] = ref.Ref
		}
	}

	if d, ok := implementsAs[DiscriminatorNamer](t); ok {
		s.Discriminator = &Discriminator{PropertyName: d.DiscriminatorName(), Mapping: mapping}
	}

	return s
}

// structSchema reflects a struct's non-parameter fields into an object schema.
func (sr *schemaRegistry) structSchema(t reflect.Type) JSONSchema {
	schema := JSONSchema{
		Type:       "object",
		Properties: make(map[string]JSONSchema),
	}
	sr.addStructFields(t, &schema)
	if len(schema.Properties) == 0 {
		schema.Properties = nil
	}
	return schema
}

func (sr *schemaRegistry) addStructFields(t reflect.Type, schema *JSONSchema) {
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		// Param and form fields are bound from the request line, headers,
		// or form encoding; they are not part of the body schema.
		if isParamField(f) || f.Tag.Get("form") != "" {
			continue
		}

		if f.Type == reflect.TypeFor[RawRequest]() {
			continue
		}

		// Embedded structs inline their fields, like encoding/json.
		if f.Anonymous && f.Tag.Get("json") == "" {
			et := f.Type
			if et.Kind() == reflect.Pointer {
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct {
				sr.addStructFields(et, schema)
				continue
			}
		}

		name := jsonFieldName(f)
		if name == "-" {
			continue
		}

		prop := sr.typeToSchema(f.Type)

		cs, err := parseConstraintTags(f.Tag)
		if err != nil {
			sr.errs = append(sr.errs, &BuildError{
				Name: t.Name() + "." + f.Name,
				Err:  fmt.Errorf("%w: %v", ErrInvalidConstraint, err),
			})
		}
		if prop.Ref == "" {
			if aerr := cs.applyToSchema(&prop); aerr != nil {
				sr.errs = append(sr.errs, &BuildError{
					Name: t.Name() + "." + f.Name,
					Err:  fmt.Errorf("%w: %v", ErrInvalidConstraint, aerr),
				})
			}
		}

		schema.Properties[name] = prop

		if f.Tag.Get("required") == "true" {
			schema.Required = append(schema.Required, name)
		}
	}
}

// lookup returns the definition registered under name.
func (sr *schemaRegistry) lookup(name string) (JSONSchema, bool) {
	s, ok := sr.defs[name]
	return s, ok
}

// registerErrorSchema adds the shared problem details schema under its
// reserved name. Safe to call repeatedly.
func (sr *schemaRegistry) registerErrorSchema() {
	if sr.frozen {
		panic("oas: schema registry is frozen")
	}
	if _, ok := sr.defs[errorSchemaName]; !ok {
		sr.defs[errorSchemaName] = errorResponseSchema()
	}
}

// freeze makes the registry read-only. Later register calls panic: they
// indicate registration after Build, which the Router already rejects.
func (sr *schemaRegistry) freeze() {
	sr.frozen = true
}
