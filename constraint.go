package oas

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// constraintSet is the parsed form of the constraint struct tags. One
// grammar feeds both the generated schema and the runtime checks.
type constraintSet struct {
	minimum          *float64
	maximum          *float64
	exclusiveMinimum *float64
	exclusiveMaximum *float64
	multipleOf       *float64

	minLength *int
	maxLength *int
	pattern   string
	re        *regexp.Regexp

	minItems    *int
	maxItems    *int
	uniqueItems bool

	enum []string

	format       string
	doc          string
	example      string
	defaultValue string
	hasDefault   bool
	readOnly     bool
	writeOnly    bool
	deprecated   bool
}

// parseConstraintTags reads the constraint struct tags. Malformed values
// (unparsable numbers, invalid regexps, non-positive multipleOf) are
// reported rather than ignored; they become fatal at build time.
func parseConstraintTags(tag reflect.StructTag) (constraintSet, error) {
	var cs constraintSet
	var errs []error

	num := func(name string, dst **float64) {
		v, ok := tag.Lookup(name)
		if !ok {
			return
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", name, v, err))
			return
		}
		*dst = &n
	}
	count := func(name string, dst **int) {
		v, ok := tag.Lookup(name)
		if !ok {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", name, v, err))
			return
		}
		*dst = &n
	}

	num("minimum", &cs.minimum)
	num("maximum", &cs.maximum)
	num("exclusiveMinimum", &cs.exclusiveMinimum)
	num("exclusiveMaximum", &cs.exclusiveMaximum)
	num("multipleOf", &cs.multipleOf)
	if cs.multipleOf != nil && *cs.multipleOf <= 0 {
		errs = append(errs, fmt.Errorf("multipleOf=%v: must be positive", *cs.multipleOf))
		cs.multipleOf = nil
	}

	count("minLength", &cs.minLength)
	count("maxLength", &cs.maxLength)
	count("minItems", &cs.minItems)
	count("maxItems", &cs.maxItems)

	if v, ok := tag.Lookup("uniqueItems"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("uniqueItems=%q: %w", v, err))
		}
		cs.uniqueItems = b
	}

	if v, ok := tag.Lookup("pattern"); ok {
		re, err := regexp.Compile(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("pattern=%q: %w", v, err))
		} else {
			cs.pattern = v
			cs.re = re
		}
	}

	if v, ok := tag.Lookup("enum"); ok {
		cs.enum = strings.Split(v, ",")
	}

	cs.format = tag.Get("format")
	cs.doc = tag.Get("doc")
	cs.example = tag.Get("example")
	if v, ok := tag.Lookup("default"); ok && v != "" {
		cs.defaultValue = v
		cs.hasDefault = true
	}
	cs.readOnly = tag.Get("readOnly") == "true"
	cs.writeOnly = tag.Get("writeOnly") == "true"
	cs.deprecated = tag.Get("deprecated") == "true"

	return cs, errors.Join(errs...)
}

// empty reports whether the set produces no runtime checks.
func (cs *constraintSet) empty() bool {
	return cs.minimum == nil && cs.maximum == nil &&
		cs.exclusiveMinimum == nil && cs.exclusiveMaximum == nil &&
		cs.multipleOf == nil && cs.minLength == nil && cs.maxLength == nil &&
		cs.re == nil && cs.minItems == nil && cs.maxItems == nil &&
		!cs.uniqueItems && len(cs.enum) == 0
}

// applyToSchema copies the constraints onto a generated schema. Enum,
// default, and example literals are coerced to the schema's type.
func (cs *constraintSet) applyToSchema(s *JSONSchema) error {
	s.Minimum = cs.minimum
	s.Maximum = cs.maximum
	s.ExclusiveMinimum = cs.exclusiveMinimum
	s.ExclusiveMaximum = cs.exclusiveMaximum
	s.MultipleOf = cs.multipleOf
	s.MinLength = cs.minLength
	s.MaxLength = cs.maxLength
	if cs.pattern != "" {
		s.Pattern = cs.pattern
	}
	s.MinItems = cs.minItems
	s.MaxItems = cs.maxItems
	if cs.uniqueItems {
		s.UniqueItems = true
	}
	if cs.format != "" {
		s.Format = cs.format
	}
	if cs.doc != "" {
		s.Description = cs.doc
	}
	if cs.readOnly {
		s.ReadOnly = true
	}
	if cs.writeOnly {
		s.WriteOnly = true
	}
	if cs.deprecated {
		s.Deprecated = true
	}

	// Literal coercion does not apply to array schemas; item constraints
	// belong on the items schema.
	if s.Type == "array" {
		return nil
	}

	var errs []error
	if len(cs.enum) > 0 {
		vals := make([]any, 0, len(cs.enum))
		for _, raw := range cs.enum {
			v, err := coerceScalar(s.Type, raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("enum value %q: %w", raw, err))
				continue
			}
			vals = append(vals, v)
		}
		s.Enum = vals
	}
	if cs.hasDefault {
		v, err := coerceScalar(s.Type, cs.defaultValue)
		if err != nil {
			errs = append(errs, fmt.Errorf("default %q: %w", cs.defaultValue, err))
		} else {
			s.Default = v
		}
	}
	if cs.example != "" {
		v, err := coerceScalar(s.Type, cs.example)
		if err != nil {
			errs = append(errs, fmt.Errorf("example %q: %w", cs.example, err))
		} else {
			s.Example = v
		}
	}
	return errors.Join(errs...)
}

// applyConstraintTags parses the constraint struct tags and applies them
// to the schema in one step.
func applyConstraintTags(tag reflect.StructTag, s *JSONSchema) error {
	cs, err := parseConstraintTags(tag)
	if err != nil {
		return err
	}
	return cs.applyToSchema(s)
}

// coerceScalar converts a tag literal to the Go value matching a schema type.
func coerceScalar(schemaType, raw string) (any, error) {
	switch schemaType {
	case "integer":
		return strconv.ParseInt(raw, 10, 64)
	case "number":
		return strconv.ParseFloat(raw, 64)
	case "boolean":
		return strconv.ParseBool(raw)
	default:
		return raw, nil
	}
}

// typeValidator is the compiled constraint program for one struct type.
// Compilation happens once at build time; requests only walk values.
type typeValidator struct {
	checks []fieldCheck
}

// fieldCheck carries one field's compiled constraints and descent plan.
type fieldCheck struct {
	index    []int
	name     string
	cs       constraintSet
	enumNums []float64       // enum coerced for numeric fields
	sub      *typeValidator  // set for struct fields
	elem     *typeValidator  // set for fields holding struct elements
}

// compileValidator builds the constraint program for a struct type. The
// cache doubles as the reservation set: a type is inserted before its
// fields are compiled, so self-referential types link back to their own
// program instead of recursing.
func compileValidator(t reflect.Type, cache map[reflect.Type]*typeValidator) (*typeValidator, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, nil
	}
	if tv, ok := cache[t]; ok {
		return tv, nil
	}

	tv := &typeValidator{}
	cache[t] = tv

	var errs []error
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		switch f.Type {
		case reflect.TypeFor[RawRequest](), reflect.TypeFor[FileUpload](), reflect.TypeFor[[]FileUpload]():
			continue
		}

		name := fieldPathName(f)
		if name == "-" {
			continue
		}

		cs, err := parseConstraintTags(f.Tag)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
			continue
		}

		check := fieldCheck{index: f.Index, name: name, cs: cs}

		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}

		if len(cs.enum) > 0 && isNumericKind(ft.Kind()) {
			check.enumNums = make([]float64, 0, len(cs.enum))
			for _, raw := range cs.enum {
				n, perr := strconv.ParseFloat(raw, 64)
				if perr != nil {
					errs = append(errs, fmt.Errorf("%s: enum value %q: %w", f.Name, raw, perr))
					continue
				}
				check.enumNums = append(check.enumNums, n)
			}
		}

		//exhaustive:ignore
		switch ft.Kind() {
		case reflect.Struct:
			if _, known := wellKnownSchema(ft); !known {
				sub, serr := compileValidator(ft, cache)
				if serr != nil {
					errs = append(errs, fmt.Errorf("%s: %w", f.Name, serr))
				}
				check.sub = sub
			}
		case reflect.Slice, reflect.Array:
			et := ft.Elem()
			for et.Kind() == reflect.Pointer {
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct {
				if _, known := wellKnownSchema(et); !known {
					ev, serr := compileValidator(et, cache)
					if serr != nil {
						errs = append(errs, fmt.Errorf("%s: %w", f.Name, serr))
					}
					check.elem = ev
				}
			}
		}

		if check.cs.empty() && check.sub == nil && check.elem == nil {
			continue
		}
		tv.checks = append(tv.checks, check)
	}

	return tv, errors.Join(errs...)
}

// fieldPathName returns the name a field is reported under in violation
// paths: the parameter or form name for bound fields, "body" for the body
// field, and the JSON name otherwise.
func fieldPathName(f reflect.StructField) string {
	for _, tag := range paramTags {
		if v := f.Tag.Get(tag); v != "" {
			name, _ := tagOptions(v)
			return name
		}
	}
	if v := f.Tag.Get("form"); v != "" {
		name, _ := tagOptions(v)
		return name
	}
	if f.Name == "Body" {
		return "body"
	}
	return jsonFieldName(f)
}

// check returns a ProblemDetail listing every violation in rv, or nil.
func (tv *typeValidator) check(rv reflect.Value) error {
	if tv == nil {
		return nil
	}
	var errs []ValidationError
	tv.validate(rv, "", &errs)
	if len(errs) > 0 {
		return &ProblemDetail{
			Type:   "about:blank",
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: fmt.Sprintf("%d constraint violation(s)", len(errs)),
			Errors: errs,
		}
	}
	return nil
}

// validate walks a struct value, appending every violation. Violations in
// nested structures carry dot paths; array elements carry bracket indexes
// (body.items[2].name).
func (tv *typeValidator) validate(v reflect.Value, prefix string, errs *[]ValidationError) {
	if tv == nil {
		return
	}
	for i := range tv.checks {
		c := &tv.checks[i]

		fv := v.FieldByIndex(c.index)
		for fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				fv = reflect.Value{}
				break
			}
			fv = fv.Elem()
		}
		if !fv.IsValid() {
			continue
		}

		path := c.name
		if prefix != "" {
			path = prefix + "." + c.name
		}

		c.apply(fv, path, errs)

		if c.sub != nil && fv.Kind() == reflect.Struct {
			c.sub.validate(fv, path, errs)
		}
		if c.elem != nil && (fv.Kind() == reflect.Slice || fv.Kind() == reflect.Array) {
			for j := range fv.Len() {
				ev := fv.Index(j)
				for ev.Kind() == reflect.Pointer {
					if ev.IsNil() {
						ev = reflect.Value{}
						break
					}
					ev = ev.Elem()
				}
				if ev.IsValid() && ev.Kind() == reflect.Struct {
					c.elem.validate(ev, fmt.Sprintf("%s[%d]", path, j), errs)
				}
			}
		}
	}
}

// apply runs the compiled rules relevant to the value's kind.
func (c *fieldCheck) apply(fv reflect.Value, path string, errs *[]ValidationError) {
	cs := &c.cs

	//exhaustive:ignore
	switch {
	case fv.Kind() == reflect.String:
		val := fv.String()
		n := utf8.RuneCountInString(val)
		if cs.minLength != nil && n < *cs.minLength {
			*errs = append(*errs, ValidationError{
				Field:   path,
				Rule:    "minLength",
				Message: fmt.Sprintf("must be at least %d characters", *cs.minLength),
				Value:   val,
			})
		}
		if cs.maxLength != nil && n > *cs.maxLength {
			*errs = append(*errs, ValidationError{
				Field:   path,
				Rule:    "maxLength",
				Message: fmt.Sprintf("must be at most %d characters", *cs.maxLength),
				Value:   val,
			})
		}
		if cs.re != nil && !cs.re.MatchString(val) {
			*errs = append(*errs, ValidationError{
				Field:   path,
				Rule:    "pattern",
				Message: fmt.Sprintf("must match pattern %s", cs.pattern),
				Value:   val,
			})
		}
		if len(cs.enum) > 0 && !slices.Contains(cs.enum, val) {
			*errs = append(*errs, ValidationError{
				Field:   path,
				Rule:    "enum",
				Message: fmt.Sprintf("must be one of [%s]", strings.Join(cs.enum, ",")),
				Value:   val,
			})
		}

	case isNumericKind(fv.Kind()):
		val := toFloat64(fv)
		if cs.minimum != nil && val < *cs.minimum {
			*errs = append(*errs, ValidationError{
				Field:   path,
				Rule:    "minimum",
				Message: fmt.Sprintf("must be at least %s", formatNum(*cs.minimum)),
				Value:   val,
			})
		}
		if cs.maximum != nil && val > *cs.maximum {
			*errs = append(*errs, ValidationError{
				Field:   path,
				Rule:    "maximum",
				Message: fmt.Sprintf("must be at most %s", formatNum(*cs.maximum)),
				Value:   val,
			})
		}
		if cs.exclusiveMinimum != nil && val <= *cs.exclusiveMinimum {
			*errs = append(*errs, ValidationError{
				Field:   path,
				Rule:    "exclusiveMinimum",
				Message: fmt.Sprintf("must be greater than %s", formatNum(*cs.exclusiveMinimum)),
				Value:   val,
			})
		}
		if cs.exclusiveMaximum != nil && val >= *cs.exclusiveMaximum {
			*errs = append(*errs, ValidationError{
				Field:   path,
				Rule:    "exclusiveMaximum",
				Message: fmt.Sprintf("must be less than %s", formatNum(*cs.exclusiveMaximum)),
				Value:   val,
			})
		}
		if cs.multipleOf != nil && math.Mod(val, *cs.multipleOf) != 0 {
			*errs = append(*errs, ValidationError{
				Field:   path,
				Rule:    "multipleOf",
				Message: fmt.Sprintf("must be a multiple of %s", formatNum(*cs.multipleOf)),
				Value:   val,
			})
		}
		if len(c.enumNums) > 0 && !slices.Contains(c.enumNums, val) {
			*errs = append(*errs, ValidationError{
				Field:   path,
				Rule:    "enum",
				Message: fmt.Sprintf("must be one of [%s]", strings.Join(cs.enum, ",")),
				Value:   val,
			})
		}

	case fv.Kind() == reflect.Slice || fv.Kind() == reflect.Array:
		length := fv.Len()
		if cs.minItems != nil && length < *cs.minItems {
			*errs = append(*errs, ValidationError{
				Field:   path,
				Rule:    "minItems",
				Message: fmt.Sprintf("must have at least %d items", *cs.minItems),
				Value:   length,
			})
		}
		if cs.maxItems != nil && length > *cs.maxItems {
			*errs = append(*errs, ValidationError{
				Field:   path,
				Rule:    "maxItems",
				Message: fmt.Sprintf("must have at most %d items", *cs.maxItems),
				Value:   length,
			})
		}
		if cs.uniqueItems && length > 1 {
			seen := make(map[any]bool, length)
			for j := range length {
				item := fv.Index(j)
				if !item.Comparable() {
					break
				}
				k := item.Interface()
				if seen[k] {
					*errs = append(*errs, ValidationError{
						Field:   fmt.Sprintf("%s[%d]", path, j),
						Rule:    "uniqueItems",
						Message: "must not contain duplicate items",
						Value:   k,
					})
					break
				}
				seen[k] = true
			}
		}
	}
}

// validateConstraints compiles and runs the constraint checks for v's type.
// Routes use programs compiled once at build time; this helper serves
// ad-hoc callers and tests.
func validateConstraints(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	tv, err := compileValidator(rv.Type(), make(map[reflect.Type]*typeValidator))
	if err != nil {
		return err
	}
	return tv.check(rv)
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func isNumericKind(k reflect.Kind) bool {
	//exhaustive:ignore
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func toFloat64(v reflect.Value) float64 {
	//exhaustive:ignore
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	default: // float32, float64
		return v.Float()
	}
}
