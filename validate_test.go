package oas_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/oas"
)

type validatedReq struct {
	Body struct {
		Name string `json:"name"`
	}
}

func (r *validatedReq) Validate() error {
	if r.Body.Name == "" {
		return oas.Error(http.StatusBadRequest, "name required")
	}
	return nil
}

func TestSelfValidator(t *testing.T) {
	t.Parallel()

	type Resp struct {
		Name string `json:"name"`
	}

	r := oas.New()
	oas.Post(r, "/users", func(_ context.Context, req *validatedReq) (*Resp, error) {
		return &Resp{Name: req.Body.Name}, nil
	})

	srv := httptest.NewServer(mustBuild(t, r))
	t.Cleanup(srv.Close)

	tests := map[string]struct {
		body       string
		wantStatus int
		wantErr    require.ErrorAssertionFunc
	}{
		"valid": {
			body:       `{"name":"Alice"}`,
			wantStatus: http.StatusOK,
			wantErr:    require.NoError,
		},
		"invalid - empty name": {
			body:       `{"name":""}`,
			wantStatus: http.StatusBadRequest,
			wantErr:    require.NoError,
		},
		"invalid - missing name": {
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantErr:    require.NoError,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/users", strings.NewReader(tc.body))
			require.NoError(t, err)
			req.Header.Set("Content-Type", "application/json")

			resp, err := http.DefaultClient.Do(req)
			tc.wantErr(t, err)
			defer func() { require.NoError(t, resp.Body.Close()) }()

			assert.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}
}

type globalValidator struct{}

func (globalValidator) Validate(_ any) error {
	return nil
}

func TestGlobalValidator(t *testing.T) {
	t.Parallel()

	type Req struct {
		Name string `json:"name"`
	}
	type Resp struct {
		Name string `json:"name"`
	}

	r := oas.New(oas.WithValidator(globalValidator{}))
	oas.Post(r, "/users", func(_ context.Context, req *Req) (*Resp, error) {
		return &Resp{Name: req.Name}, nil
	})

	srv := httptest.NewServer(mustBuild(t, r))
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/users", strings.NewReader(`{"name":"Bob"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body Resp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Bob", body.Name)
}

type rejectingValidator struct{}

func (rejectingValidator) Validate(_ any) error {
	return oas.Error(http.StatusUnprocessableEntity, "rejected by policy")
}

func TestGlobalValidator_rejects(t *testing.T) {
	t.Parallel()

	type Req struct {
		Name string `json:"name"`
	}
	type Resp struct {
		Name string `json:"name"`
	}

	r := oas.New(oas.WithValidator(rejectingValidator{}))
	oas.Post(r, "/users", func(_ context.Context, req *Req) (*Resp, error) {
		return &Resp{Name: req.Name}, nil
	})

	srv := httptest.NewServer(mustBuild(t, r))
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/users", strings.NewReader(`{"name":"Bob"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var pd oas.ProblemDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pd))
	assert.Equal(t, "rejected by policy", pd.Detail)
}

func TestConstraint_violation_on_bound_parameter(t *testing.T) {
	t.Parallel()

	type Req struct {
		Page int `query:"page" minimum:"1"`
	}
	type Resp struct {
		Page int `json:"page"`
	}

	var captured error
	r := oas.New(oas.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
		captured = err
		w.WriteHeader(oas.ErrorStatus(err))
	}))
	oas.Get(r, "/list", func(_ context.Context, req *Req) (*Resp, error) {
		return &Resp{Page: req.Page}, nil
	})

	srv := httptest.NewServer(mustBuild(t, r))
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/list?page=0", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var ee *oas.ExtractionError
	require.ErrorAs(t, captured, &ee)
	assert.Equal(t, "query", ee.Location)
	assert.Equal(t, "page", ee.Name)
	assert.Equal(t, oas.ExtractValidationFailed, ee.Kind)
	assert.ErrorIs(t, captured, oas.ErrBindQuery)

	// The collected rule list survives as the cause.
	var pd *oas.ProblemDetail
	require.ErrorAs(t, captured, &pd)
	require.Len(t, pd.Errors, 1)
	assert.Equal(t, "page", pd.Errors[0].Field)
	assert.Equal(t, "minimum", pd.Errors[0].Rule)
}

func TestConstraint_violation_on_bound_parameter_response_body(t *testing.T) {
	t.Parallel()

	type Req struct {
		Limit int `query:"limit" maximum:"100"`
	}
	type Resp struct {
		Limit int `json:"limit"`
	}

	r := oas.New()
	oas.Get(r, "/items", func(_ context.Context, req *Req) (*Resp, error) {
		return &Resp{Limit: req.Limit}, nil
	})

	srv := httptest.NewServer(mustBuild(t, r))
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/items?limit=500", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

	var pd oas.ProblemDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pd))
	require.Len(t, pd.Errors, 1)
	assert.Equal(t, "limit", pd.Errors[0].Field)
	assert.Equal(t, "maximum", pd.Errors[0].Rule)
}

func TestConstraint_violation_on_body_stays_problem(t *testing.T) {
	t.Parallel()

	type Req struct {
		Body struct {
			Name string `json:"name" minLength:"3"`
		}
	}
	type Resp struct {
		Name string `json:"name"`
	}

	var captured error
	r := oas.New(oas.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
		captured = err
		w.WriteHeader(oas.ErrorStatus(err))
	}))
	oas.Post(r, "/users", func(_ context.Context, req *Req) (*Resp, error) {
		return &Resp{Name: req.Body.Name}, nil
	})

	srv := httptest.NewServer(mustBuild(t, r))
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, srv.URL+"/users", strings.NewReader(`{"name":"ab"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Body violations are not a parameter slot, so no extraction wrapping.
	var ee *oas.ExtractionError
	assert.False(t, errors.As(captured, &ee))

	var pd *oas.ProblemDetail
	require.ErrorAs(t, captured, &pd)
	require.Len(t, pd.Errors, 1)
	assert.Equal(t, "body.name", pd.Errors[0].Field)
}
