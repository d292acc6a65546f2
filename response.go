package oas

import (
	"encoding/json"
	"errors"
	"net/http"
)

// CookieSetter is optionally implemented by response types to set cookies.
type CookieSetter interface {
	Cookies() []*http.Cookie
}

// HeaderSetter is optionally implemented by response types to set response headers.
type HeaderSetter interface {
	SetHeaders(h http.Header)
}

// Redirect is returned from a handler to issue an HTTP redirect.
type Redirect struct {
	URL    string
	Status int
}

// ResponseHeader documents a header an endpoint sends with a response.
type ResponseHeader struct {
	Name        string
	Description string
	Schema      JSONSchema
}

// ResponseVariant is one documented (status, payload) shape of an endpoint.
// A nil Value means the variant has no body. ContentType narrows the
// variant to a single media type instead of the negotiated set.
type ResponseVariant struct {
	Status      int
	Description string
	Value       any
	ContentType string
	Headers     []ResponseHeader
}

// ResponseVarianter is implemented by response types that enumerate every
// (status, payload) pair they can produce. The document builder records
// the full enumeration; at runtime a handler still returns one value and
// the usual status rules apply.
type ResponseVarianter interface {
	ResponseVariants() []ResponseVariant
}

// encodeResponse writes the response to the http.ResponseWriter.
// It handles Redirect, Stream, SSEStream, CookieSetter, HeaderSetter,
// StatusCoder, and negotiated encoding. An Accept header no encoder can
// satisfy yields 406.
func encodeResponse(w http.ResponseWriter, r *http.Request, resp any, defaultStatus int, codecs *codecRegistry) {
	// Redirect response.
	if rd, ok := resp.(*Redirect); ok {
		status := rd.Status
		if status == 0 {
			status = http.StatusFound
		}
		http.Redirect(w, r, rd.URL, status)
		return
	}

	// Stream responses pick their own content type and body.
	if s, ok := resp.(*Stream); ok {
		writeStream(w, s)
		return
	}

	if s, ok := resp.(*SSEStream); ok {
		writeSSEStream(r.Context(), w, s)
		return
	}

	// Negotiate the encoder before touching the response so a 406 does not
	// leak cookies or headers from the abandoned response.
	enc, ok := codecs.negotiate(r.Header.Get("Accept"))
	if !ok {
		writeErrorResponse(w, Error(http.StatusNotAcceptable, "no supported media type in Accept header"))
		return
	}

	// Apply cookies and headers before writing status.
	if cs, ok := resp.(CookieSetter); ok {
		for _, c := range cs.Cookies() {
			http.SetCookie(w, c)
		}
	}
	if hs, ok := resp.(HeaderSetter); ok {
		hs.SetHeaders(w.Header())
	}

	status := defaultStatus

	// Let the response override the status dynamically.
	if sc, ok := resp.(StatusCoder); ok {
		status = sc.StatusCode()
	}

	w.Header().Set("Content-Type", enc.ContentType())
	w.WriteHeader(status)
	//nolint:errcheck,gosec // best-effort after WriteHeader
	enc.Encode(w, resp)
}

// writeErrorResponse writes an error as an RFC 9457 problem details response.
func writeErrorResponse(w http.ResponseWriter, err error) {
	status := ErrorStatus(err)

	// If the error is already a ProblemDetail, use it directly.
	var pd *ProblemDetail
	if ok := isProblemDetail(err, &pd); ok {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(pd.Status)
		//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
		json.NewEncoder(w).Encode(pd)
		return
	}

	// Convert any error into a ProblemDetail.
	problem := &ProblemDetail{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: err.Error(),
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
	json.NewEncoder(w).Encode(problem)
}

func isProblemDetail(err error, target **ProblemDetail) bool {
	return errors.As(err, target)
}
