package oas_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/oas"
)

func TestRouter_ServeHTTP_basic(t *testing.T) {
	t.Parallel()

	type Resp struct {
		Message string `json:"message"`
	}

	r := oas.New()
	oas.Get(r, "/health", func(_ context.Context, _ *oas.Void) (*Resp, error) {
		return &Resp{Message: "ok"}, nil
	})

	srv := httptest.NewServer(mustBuild(t, r))
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"message":"ok"`)
}

func TestRouter_Use_middleware(t *testing.T) {
	t.Parallel()

	type Resp struct {
		Value string `json:"value"`
	}

	r := oas.New()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Custom", "applied")
			next.ServeHTTP(w, req)
		})
	})

	oas.Get(r, "/test", func(_ context.Context, _ *oas.Void) (*Resp, error) {
		return &Resp{Value: "hello"}, nil
	})

	srv := httptest.NewServer(mustBuild(t, r))
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/test", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, "applied", resp.Header.Get("X-Custom"))
}

func TestRouter_options(t *testing.T) {
	t.Parallel()

	r := oas.New(
		oas.WithTitle("Test API"),
		oas.WithVersion("1.0.0"),
	)

	spec := mustBuild(t, r).Spec()
	assert.Equal(t, "Test API", spec.Info.Title)
	assert.Equal(t, "1.0.0", spec.Info.Version)
}

func TestRouter_info_defaults(t *testing.T) {
	t.Parallel()

	spec := mustBuild(t, oas.New()).Spec()
	assert.Equal(t, "API", spec.Info.Title)
	assert.Equal(t, "0.0.1", spec.Info.Version)
	assert.Equal(t, "3.1.0", spec.OpenAPI)
}

func TestRouter_error_response(t *testing.T) {
	t.Parallel()

	r := oas.New()
	oas.Get(r, "/fail", func(_ context.Context, _ *oas.Void) (*oas.Void, error) {
		return nil, oas.Error(http.StatusUnprocessableEntity, "bad data")
	})

	srv := httptest.NewServer(mustBuild(t, r))
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/fail", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))

	var body oas.ProblemDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusUnprocessableEntity, body.Status)
	assert.Equal(t, "bad data", body.Detail)
}

func TestRouter_error_handler_override(t *testing.T) {
	t.Parallel()

	r := oas.New(oas.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(err.Error())) //nolint:errcheck
	}))
	oas.Get(r, "/fail", func(_ context.Context, _ *oas.Void) (*oas.Void, error) {
		return nil, oas.Error(http.StatusBadRequest, "custom path")
	})

	srv := httptest.NewServer(mustBuild(t, r))
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/fail", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "custom path", string(body))
}

func TestRouter_Build_aggregates_errors(t *testing.T) {
	t.Parallel()

	type BadStyle struct {
		ID string `path:"id" style:"spaceDelimited"`
	}
	type Mismatch struct {
		Name string `path:"name"`
	}

	r := oas.New()
	oas.Get(r, "/a/{id}", func(_ context.Context, _ *BadStyle) (*oas.Void, error) {
		return &oas.Void{}, nil
	})
	oas.Get(r, "/b", func(_ context.Context, _ *Mismatch) (*oas.Void, error) {
		return &oas.Void{}, nil
	})
	oas.Get(r, "/c/{", func(_ context.Context, _ *oas.Void) (*oas.Void, error) {
		return &oas.Void{}, nil
	})

	svc, err := r.Build()
	require.Error(t, err)
	assert.Nil(t, svc, "no partial service on failure")

	assert.ErrorIs(t, err, oas.ErrInvalidStyle)
	assert.ErrorIs(t, err, oas.ErrPathParameterMismatch)
	assert.ErrorIs(t, err, oas.ErrInvalidTemplate)

	var agg *oas.BuildErrors
	require.ErrorAs(t, err, &agg)
	assert.GreaterOrEqual(t, len(agg.Errors), 3)
}

func TestRouter_Build_twice_fails(t *testing.T) {
	t.Parallel()

	r := oas.New()
	oas.Get(r, "/x", func(_ context.Context, _ *oas.Void) (*oas.Void, error) {
		return &oas.Void{}, nil
	})

	_, err := r.Build()
	require.NoError(t, err)

	_, err = r.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, oas.ErrAlreadyBuilt)
}

func TestRouter_duplicate_routes_fail_build(t *testing.T) {
	t.Parallel()

	h := func(_ context.Context, _ *oas.Void) (*oas.Void, error) {
		return &oas.Void{}, nil
	}
	type ByID struct {
		ID string `path:"id"`
	}
	hid := func(_ context.Context, _ *ByID) (*oas.Void, error) {
		return &oas.Void{}, nil
	}
	type ByUID struct {
		UID string `path:"uid"`
	}
	huid := func(_ context.Context, _ *ByUID) (*oas.Void, error) {
		return &oas.Void{}, nil
	}

	tests := map[string]struct {
		register func(r *oas.Router)
	}{
		"same path and method": {
			register: func(r *oas.Router) {
				oas.Get(r, "/dup", h)
				oas.Get(r, "/dup", h)
			},
		},
		"same shape different param names": {
			register: func(r *oas.Router) {
				oas.Get(r, "/users/{id}", hid)
				oas.Get(r, "/users/{uid}", huid)
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := oas.New()
			tc.register(r)

			svc, err := r.Build()
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.ErrorIs(t, err, oas.ErrDuplicateRoute)
		})
	}
}

func TestRouter_duplicate_operation_ids_fail_build(t *testing.T) {
	t.Parallel()

	h := func(_ context.Context, _ *oas.Void) (*oas.Void, error) {
		return &oas.Void{}, nil
	}

	r := oas.New()
	oas.Get(r, "/a", h, oas.WithOperationID("sameID"))
	oas.Get(r, "/b", h, oas.WithOperationID("sameID"))

	svc, err := r.Build()
	require.Error(t, err)
	assert.Nil(t, svc)
	assert.ErrorIs(t, err, oas.ErrDuplicateOperationID)
}
