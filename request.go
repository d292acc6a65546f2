package oas

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"reflect"
	"slices"
	"strings"
)

// maxMultipartMemory is the maximum memory used for multipart form parsing (32 MB).
const maxMultipartMemory = 32 << 20

// requestCategory describes how a request type should be decoded.
type requestCategory int

const (
	catVoid     requestCategory = iota // Void: no params, no body
	catBodyOnly                        // entire struct is the body (no param tags, no Body field)
	catParams                          // has param tags but no Body field
	catMixed                           // has Body field (params from tagged fields, body from Body)
	catForm                            // has form tags (urlencoded or multipart binding)
)

// classifyRequest determines how a request type should be decoded.
func classifyRequest(t reflect.Type) requestCategory {
	if t == reflect.TypeFor[Void]() {
		return catVoid
	}
	if hasFormTags(t) {
		return catForm
	}
	if hasBodyField(t) {
		return catMixed
	}
	if hasParamTags(t) || hasRawRequest(t) {
		return catParams
	}
	return catBodyOnly
}

// formBinding is the compiled plan for one form-bound field.
type formBinding struct {
	field      reflect.StructField
	name       string
	file       bool // FileUpload field
	files      bool // []FileUpload field
	slice      bool
	required   bool
	hasDefault bool
	defaultVal string
}

// compiledRequest is the build-time decoding plan for a request type. All
// reflection over the type happens at build; serving only walks values.
type compiledRequest struct {
	typ          reflect.Type
	category     requestCategory
	params       []paramBinding
	rawIndex     []int // RawRequest field, when present
	bodyIndex    []int // Body field, for catMixed
	bodyType     reflect.Type
	bodyRequired bool
	forms        []formBinding
	validator    *typeValidator
	codecs       *codecRegistry
	maxBytes     int64    // request body cap, 0 means unlimited
	contentTypes []string // accepted request media types, nil means any decodable
}

// compileRequest builds the decoding plan for a request type. The validator
// cache is shared across routes so nested types compile once.
func compileRequest(t reflect.Type, method string, codecs *codecRegistry, maxBytes int64, contentTypes []string, vcache map[reflect.Type]*typeValidator) (*compiledRequest, error) {
	cr := &compiledRequest{
		typ:      t,
		category: classifyRequest(t),
		codecs:   codecs,
		maxBytes: maxBytes,
	}
	for _, ct := range contentTypes {
		cr.contentTypes = append(cr.contentTypes, strings.ToLower(ct))
	}
	if cr.category == catVoid {
		return cr, nil
	}

	var errs []error

	params, err := compileParams(t)
	if err != nil {
		errs = append(errs, err)
	}
	cr.params = params

	for i := range t.NumField() {
		if t.Field(i).Type == reflect.TypeFor[RawRequest]() {
			cr.rawIndex = t.Field(i).Index
		}
	}

	switch cr.category {
	case catBodyOnly:
		cr.bodyType = t
		// An empty struct has nothing to decode, so an empty body is fine.
		cr.bodyRequired = bodyMethod(method) && t.NumField() > 0
	case catMixed:
		f, _ := t.FieldByName("Body")
		cr.bodyIndex = f.Index
		cr.bodyType = f.Type
		cr.bodyRequired = f.Type.Kind() != reflect.Pointer
	case catForm:
		forms, ferr := compileForms(t)
		if ferr != nil {
			errs = append(errs, ferr)
		}
		cr.forms = forms
	}

	v, verr := compileValidator(t, vcache)
	if verr != nil {
		errs = append(errs, verr)
	}
	cr.validator = v

	return cr, errors.Join(errs...)
}

// bodyMethod reports whether a method conventionally carries a request body.
func bodyMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// compileForms builds the bindings for form-tagged fields. File fields are
// optional unless tagged with the required option; scalar fields follow the
// parameter convention (pointer or omitempty or default means optional).
func compileForms(t reflect.Type) ([]formBinding, error) {
	var (
		bindings []formBinding
		errs     []error
	)
	seen := make(map[string]bool)

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		raw := f.Tag.Get("form")
		if raw == "" {
			continue
		}
		name, opts := tagOptions(raw)
		if name == "" || name == "-" {
			continue
		}

		fb := formBinding{
			field: f,
			name:  name,
			file:  f.Type == reflect.TypeFor[FileUpload](),
			files: f.Type == reflect.TypeFor[[]FileUpload](),
		}

		if v, ok := f.Tag.Lookup("default"); ok && v != "" {
			fb.defaultVal = v
			fb.hasDefault = true
		}

		ft := f.Type
		optional := ft.Kind() == reflect.Pointer || tagContains(opts, "omitempty")
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		fb.slice = !fb.files && ft.Kind() == reflect.Slice && ft != reflect.TypeFor[[]byte]()

		if fb.file || fb.files {
			fb.required = tagContains(opts, "required")
		} else {
			fb.required = !optional && !fb.hasDefault
		}

		if seen[name] {
			errs = append(errs, &BuildError{Name: f.Name, Err: ErrDuplicateParameter})
		}
		seen[name] = true

		bindings = append(bindings, fb)
	}

	return bindings, errors.Join(errs...)
}

// decode populates a new request value from the incoming HTTP request.
func (cr *compiledRequest) decode(w http.ResponseWriter, r *http.Request, target any) error {
	if cr.category == catVoid {
		return nil
	}

	if cr.maxBytes > 0 && r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, cr.maxBytes)
	}

	rv := reflect.ValueOf(target).Elem()

	if err := bindCompiledParams(r, rv, cr.params); err != nil {
		return err
	}
	if cr.rawIndex != nil {
		rv.FieldByIndex(cr.rawIndex).Set(reflect.ValueOf(RawRequest{Request: r}))
	}

	switch cr.category {
	case catBodyOnly:
		return cr.decodeBody(r, target)
	case catMixed:
		return cr.decodeBodyField(r, rv)
	case catForm:
		return cr.bindForm(r, rv)
	}
	return nil
}

// decodeBody decodes the request body into target using the codec matching
// the Content-Type header. A body with no Content-Type is treated as the
// default media type.
func (cr *compiledRequest) decodeBody(r *http.Request, target any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		if cr.bodyRequired {
			return &ExtractionError{
				Location: "body",
				Kind:     ExtractMissing,
				Err:      errors.New("request body is required"),
			}
		}
		return nil
	}

	ct := r.Header.Get("Content-Type")
	mt := mediaType(ct)
	if cr.contentTypes != nil && !slices.Contains(cr.contentTypes, mt) {
		return &UnsupportedMediaTypeError{ContentType: ct}
	}
	dec, ok := cr.codecs.decoderFor(ct)
	if !ok {
		return &UnsupportedMediaTypeError{ContentType: ct}
	}

	err := dec.Decode(r.Body, target)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		if cr.bodyRequired {
			return &ExtractionError{
				Location: "body",
				Kind:     ExtractMissing,
				Err:      errors.New("request body is required"),
			}
		}
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return Error(http.StatusRequestEntityTooLarge, "request body too large")
	}
	return &ExtractionError{
		Location: "body",
		Kind:     ExtractMalformed,
		Err:      err,
	}
}

// decodeBodyField decodes the request body into the Body field. A pointer
// Body is allocated only when a body actually arrived, so handlers can
// distinguish an absent optional body from a zero one.
func (cr *compiledRequest) decodeBodyField(r *http.Request, rv reflect.Value) error {
	field := rv.FieldByIndex(cr.bodyIndex)

	if cr.bodyType.Kind() == reflect.Pointer {
		if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
			return nil
		}
		tmp := reflect.New(cr.bodyType.Elem())
		if err := cr.decodeBody(r, tmp.Interface()); err != nil {
			return err
		}
		field.Set(tmp)
		return nil
	}

	return cr.decodeBody(r, field.Addr().Interface())
}

// bindForm binds urlencoded or multipart form fields to form-tagged struct
// fields. Any other request media type is rejected.
func (cr *compiledRequest) bindForm(r *http.Request, rv reflect.Value) error {
	mt := mediaType(r.Header.Get("Content-Type"))
	if cr.contentTypes != nil && !slices.Contains(cr.contentTypes, mt) {
		return &UnsupportedMediaTypeError{ContentType: r.Header.Get("Content-Type")}
	}

	multipart := false
	switch mt {
	case "multipart/form-data":
		multipart = true
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return Error(http.StatusRequestEntityTooLarge, "request body too large")
			}
			return &ExtractionError{Location: "form", Kind: ExtractMalformed, Err: err}
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return Error(http.StatusRequestEntityTooLarge, "request body too large")
			}
			return &ExtractionError{Location: "form", Kind: ExtractMalformed, Err: err}
		}
	default:
		return &UnsupportedMediaTypeError{ContentType: r.Header.Get("Content-Type")}
	}

	for i := range cr.forms {
		fb := &cr.forms[i]
		field := rv.FieldByIndex(fb.field.Index)

		switch {
		case fb.file:
			if !multipart {
				continue
			}
			file, header, err := r.FormFile(fb.name)
			if errors.Is(err, http.ErrMissingFile) {
				if fb.required {
					return &ExtractionError{
						Location: "form",
						Name:     fb.name,
						Kind:     ExtractMissing,
						Err:      errors.New("required file is missing"),
					}
				}
				continue // optional file, leave zero value
			}
			if err != nil {
				return &ExtractionError{Location: "form", Name: fb.name, Kind: ExtractMalformed, Err: err}
			}
			field.Set(reflect.ValueOf(FileUpload{
				Filename: header.Filename,
				Size:     header.Size,
				Header:   header,
				file:     file,
			}))

		case fb.files:
			if !multipart || r.MultipartForm == nil || len(r.MultipartForm.File[fb.name]) == 0 {
				if fb.required {
					return &ExtractionError{
						Location: "form",
						Name:     fb.name,
						Kind:     ExtractMissing,
						Err:      errors.New("required files are missing"),
					}
				}
				continue // no files, leave nil slice
			}
			headers := r.MultipartForm.File[fb.name]
			uploads := make([]FileUpload, 0, len(headers))
			for _, header := range headers {
				file, err := header.Open()
				if err != nil {
					return &ExtractionError{Location: "form", Name: fb.name, Kind: ExtractMalformed, Err: err}
				}
				uploads = append(uploads, FileUpload{
					Filename: header.Filename,
					Size:     header.Size,
					Header:   header,
					file:     file,
				})
			}
			field.Set(reflect.ValueOf(uploads))

		default:
			vals := r.PostForm[fb.name]
			if len(vals) == 0 {
				if fb.hasDefault {
					vals = []string{fb.defaultVal}
				} else if fb.required {
					return &ExtractionError{
						Location: "form",
						Name:     fb.name,
						Kind:     ExtractMissing,
						Err:      errors.New("required field is missing"),
					}
				} else {
					continue
				}
			}
			if err := setParamValue(field, vals, fb.slice); err != nil {
				return &ExtractionError{Location: "form", Name: fb.name, Kind: ExtractMalformed, Err: err}
			}
		}
	}

	return nil
}

// mediaType normalizes a Content-Type header to its bare media type.
func mediaType(ct string) string {
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(ct))
	}
	return mt
}
