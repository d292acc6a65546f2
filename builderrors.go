package oas

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors reported by Router.Build. Match with errors.Is against
// the returned BuildErrors value.
var (
	ErrNameConflict             = errors.New("schema name conflict")
	ErrPathParameterMismatch    = errors.New("path parameter mismatch")
	ErrDuplicateParameter       = errors.New("duplicate parameter")
	ErrUndeclaredSecurityScheme = errors.New("undeclared security scheme")
	ErrDuplicateRoute           = errors.New("duplicate path and method")
	ErrDuplicateOperationID     = errors.New("duplicate operation id")
	ErrInvalidTemplate          = errors.New("invalid path template")
	ErrInvalidConstraint        = errors.New("invalid constraint tag")
	ErrInvalidStyle             = errors.New("invalid parameter style")
	ErrAlreadyBuilt             = errors.New("router already built")
)

// BuildError describes one problem found while building a Service.
// Method and Path identify the route involved; Name carries the parameter,
// scheme, or schema name when one applies.
type BuildError struct {
	Method string
	Path   string
	Name   string
	Err    error
}

// Error formats the route context followed by the underlying error.
func (e *BuildError) Error() string {
	var b strings.Builder
	if e.Method != "" || e.Path != "" {
		fmt.Fprintf(&b, "%s %s: ", e.Method, e.Path)
	}
	if e.Name != "" {
		b.WriteString(e.Name)
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

// Unwrap returns the underlying error for errors.Is / errors.As.
func (e *BuildError) Unwrap() error { return e.Err }

// BuildErrors aggregates every problem found during Build. Build never
// returns a partial Service: either all routes compile or none do.
type BuildErrors struct {
	Errors []*BuildError
}

// Error returns a one-line summary followed by each problem on its own line.
func (e *BuildErrors) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "build failed with %d error(s)", len(e.Errors))
	for _, be := range e.Errors {
		b.WriteString("\n\t")
		b.WriteString(be.Error())
	}
	return b.String()
}

// Unwrap exposes the individual build errors to errors.Is and errors.As.
func (e *BuildErrors) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, be := range e.Errors {
		errs[i] = be
	}
	return errs
}

// buildFail wraps a list of build errors, returning nil when the list is empty.
func buildFail(errs []*BuildError) error {
	if len(errs) == 0 {
		return nil
	}
	return &BuildErrors{Errors: errs}
}
