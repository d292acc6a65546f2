package oas

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// paramLocation is where a request parameter travels.
type paramLocation string

const (
	inPath   paramLocation = "path"
	inQuery  paramLocation = "query"
	inHeader paramLocation = "header"
	inCookie paramLocation = "cookie"
)

// paramStyle is the serialization style for a parameter, following the
// OpenAPI style keywords.
type paramStyle string

const (
	styleSimple         paramStyle = "simple"
	styleForm           paramStyle = "form"
	styleSpaceDelimited paramStyle = "spaceDelimited"
	stylePipeDelimited  paramStyle = "pipeDelimited"
)

// defaultParamStyle returns the style a location uses when the field does
// not override it: simple for path and header, form for query and cookie.
func defaultParamStyle(loc paramLocation) paramStyle {
	switch loc {
	case inPath, inHeader:
		return styleSimple
	default:
		return styleForm
	}
}

// validParamStyle reports whether a style is allowed for a location.
// spaceDelimited and pipeDelimited only make sense in query strings.
func validParamStyle(loc paramLocation, style paramStyle) bool {
	switch loc {
	case inPath, inHeader:
		return style == styleSimple
	case inQuery:
		return style == styleForm || style == styleSpaceDelimited || style == stylePipeDelimited
	case inCookie:
		return style == styleForm
	}
	return false
}

// paramBinding is the compiled plan for one bound parameter field.
type paramBinding struct {
	field      reflect.StructField
	name       string
	location   paramLocation
	style      paramStyle
	explode    bool
	required   bool
	slice      bool
	hasDefault bool
	defaultVal string
}

// paramField returns the location and tag value of a parameter field, or
// empty values when the field is not a parameter.
func paramField(f reflect.StructField) (paramLocation, string) {
	for _, tag := range paramTags {
		if v := f.Tag.Get(tag); v != "" {
			return paramLocation(tag), v
		}
	}
	return "", ""
}

// compileParams builds the parameter bindings for a request struct.
// Invalid style/location pairs and duplicate parameters are reported and
// become fatal at build time. Optionality follows the field shape: pointer
// fields and fields tagged omitempty are optional, fields with a default
// fall back to it, everything else is required. Path parameters are always
// required.
func compileParams(t reflect.Type) ([]paramBinding, error) {
	type key struct {
		loc  paramLocation
		name string
	}
	var (
		bindings []paramBinding
		errs     []error
		seen     = make(map[key]bool)
	)

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		loc, raw := paramField(f)
		if raw == "" {
			continue
		}
		name, opts := tagOptions(raw)
		if name == "" || name == "-" {
			continue
		}

		ft := f.Type
		optional := ft.Kind() == reflect.Pointer || tagContains(opts, "omitempty")
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}

		b := paramBinding{
			field:    f,
			name:     name,
			location: loc,
			slice:    ft.Kind() == reflect.Slice && ft != reflect.TypeFor[[]byte](),
		}

		b.style = defaultParamStyle(loc)
		if s := f.Tag.Get("style"); s != "" {
			b.style = paramStyle(s)
		}
		if !validParamStyle(loc, b.style) {
			errs = append(errs, fmt.Errorf("%s: %w: style %q on %s parameter", f.Name, ErrInvalidStyle, b.style, loc))
		}

		b.explode = b.style == styleForm
		if e, ok := f.Tag.Lookup("explode"); ok {
			b.explode = e == "true"
		}

		if v, ok := f.Tag.Lookup("default"); ok && v != "" {
			b.defaultVal = v
			b.hasDefault = true
		}
		b.required = loc == inPath || (!optional && !b.hasDefault)

		k := key{loc, name}
		if seen[k] {
			errs = append(errs, fmt.Errorf("%s: %w: %s parameter %q", f.Name, ErrDuplicateParameter, loc, name))
		}
		seen[k] = true

		bindings = append(bindings, b)
	}

	return bindings, errors.Join(errs...)
}

// bindCompiledParams fills the bound parameter fields of a request struct
// from an incoming request. A missing required parameter or an unparsable
// value stops the walk with an ExtractionError naming the parameter.
func bindCompiledParams(r *http.Request, rv reflect.Value, bindings []paramBinding) error {
	for i := range bindings {
		b := &bindings[i]

		vals, found := paramValues(r, b)
		if !found {
			if b.hasDefault {
				vals = splitStyled(b.defaultVal, b)
			} else if b.required {
				return &ExtractionError{
					Location: string(b.location),
					Name:     b.name,
					Kind:     ExtractMissing,
					Err:      errors.New("required parameter is missing"),
				}
			} else {
				continue
			}
		}

		fv := rv.FieldByIndex(b.field.Index)
		if err := setParamValue(fv, vals, b.slice); err != nil {
			return &ExtractionError{
				Location: string(b.location),
				Name:     b.name,
				Kind:     ExtractMalformed,
				Err:      err,
			}
		}
	}
	return nil
}

// paramValues pulls the raw text values for a binding out of the request,
// applying the binding's style. Exploded parameters arrive as repeated
// values; unexploded ones arrive as a single delimited value.
func paramValues(r *http.Request, b *paramBinding) ([]string, bool) {
	switch b.location {
	case inPath:
		v := r.PathValue(b.name)
		if v == "" {
			return nil, false
		}
		return splitStyled(v, b), true

	case inQuery:
		vals, ok := r.URL.Query()[b.name]
		if !ok || len(vals) == 0 {
			return nil, false
		}
		if b.explode {
			return vals, true
		}
		return splitStyled(vals[0], b), true

	case inHeader:
		vals := r.Header.Values(b.name)
		if len(vals) == 0 {
			return nil, false
		}
		// Repeated header lines are equivalent to one comma-joined line.
		return splitStyled(strings.Join(vals, ","), b), true

	case inCookie:
		var vals []string
		for _, c := range r.Cookies() {
			if c.Name == b.name {
				vals = append(vals, c.Value)
			}
		}
		if len(vals) == 0 {
			return nil, false
		}
		if b.explode {
			return vals, true
		}
		return splitStyled(vals[0], b), true
	}
	return nil, false
}

// splitStyled splits a single serialized value into items according to the
// binding's style. Scalar bindings pass through untouched.
func splitStyled(v string, b *paramBinding) []string {
	if !b.slice {
		return []string{v}
	}
	switch b.style {
	case styleSpaceDelimited:
		return strings.Split(v, " ")
	case stylePipeDelimited:
		return strings.Split(v, "|")
	default:
		// simple and form both delimit items with commas
		return strings.Split(v, ",")
	}
}

// setParamValue assigns parsed text values to a parameter field,
// allocating through pointers and building slices element by element.
func setParamValue(fv reflect.Value, vals []string, slice bool) error {
	if fv.Kind() == reflect.Pointer {
		fv.Set(reflect.New(fv.Type().Elem()))
		fv = fv.Elem()
	}
	if slice && fv.Kind() == reflect.Slice {
		out := reflect.MakeSlice(fv.Type(), len(vals), len(vals))
		for i, v := range vals {
			if err := setFieldValue(out.Index(i), v); err != nil {
				return err
			}
		}
		fv.Set(out)
		return nil
	}
	if len(vals) == 0 {
		return nil
	}
	return setFieldValue(fv, vals[0])
}

// setFieldValue coerces a single text value into a struct field.
func setFieldValue(field reflect.Value, value string) error {
	if field.Kind() == reflect.Pointer {
		field.Set(reflect.New(field.Type().Elem()))
		field = field.Elem()
	}

	switch field.Type() {
	case reflect.TypeFor[time.Time]():
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", value, err)
		}
		field.Set(reflect.ValueOf(t))
		return nil
	case reflect.TypeFor[time.Duration]():
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	case reflect.TypeFor[uuid.UUID]():
		id, err := uuid.Parse(value)
		if err != nil {
			return fmt.Errorf("invalid uuid %q: %w", value, err)
		}
		field.Set(reflect.ValueOf(id))
		return nil
	}

	//exhaustive:ignore
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", value, err)
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer %q: %w", value, err)
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", value, err)
		}
		field.SetFloat(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q: %w", value, err)
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported parameter type %s", field.Type())
	}
	return nil
}
