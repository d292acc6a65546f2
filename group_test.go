package oas_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/oas"
)

func TestGroup_prefix(t *testing.T) {
	t.Parallel()

	type Resp struct {
		Version string `json:"version"`
	}

	r := oas.New()
	v1 := r.Group("/v1")

	oas.Get(v1, "/health", func(_ context.Context, _ *oas.Void) (*Resp, error) {
		return &Resp{Version: "v1"}, nil
	})

	srv := httptest.NewServer(mustBuild(t, r))
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/v1/health", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body Resp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "v1", body.Version)
}

func TestGroup_root_pattern_maps_to_prefix(t *testing.T) {
	t.Parallel()

	type Resp struct {
		OK bool `json:"ok"`
	}

	r := oas.New()
	v1 := r.Group("/v1")

	oas.Get(v1, "/", func(_ context.Context, _ *oas.Void) (*Resp, error) {
		return &Resp{OK: true}, nil
	})

	svc := mustBuild(t, r)
	srv := httptest.NewServer(svc)
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/v1", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, ok := svc.Spec().Paths["/v1"]
	assert.True(t, ok, "pattern / should document as the bare prefix")
}

func TestGroup_middleware(t *testing.T) {
	t.Parallel()

	type Resp struct {
		OK bool `json:"ok"`
	}

	r := oas.New()

	authed := r.Group("/admin", oas.WithGroupMiddleware(
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				w.Header().Set("X-Group-MW", "yes")
				next.ServeHTTP(w, req)
			})
		},
	))

	oas.Get(authed, "/dashboard", func(_ context.Context, _ *oas.Void) (*Resp, error) {
		return &Resp{OK: true}, nil
	})

	srv := httptest.NewServer(mustBuild(t, r))
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/admin/dashboard", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "yes", resp.Header.Get("X-Group-MW"))
}

func TestGroup_middleware_outside_route_middleware(t *testing.T) {
	t.Parallel()

	type Resp struct {
		OK bool `json:"ok"`
	}

	var order []string
	record := func(name string) oas.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, req)
			})
		}
	}

	r := oas.New()
	g := r.Group("/g", oas.WithGroupMiddleware(record("group")))

	oas.Get(g, "/x", func(_ context.Context, _ *oas.Void) (*Resp, error) {
		return &Resp{OK: true}, nil
	}, oas.WithMiddleware(record("route")))

	srv := httptest.NewServer(mustBuild(t, r))
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/g/x", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, []string{"group", "route"}, order)
}

func TestGroup_tags_in_spec(t *testing.T) {
	t.Parallel()

	r := oas.New(oas.WithTitle("Test"))
	v1 := r.Group("/v1", oas.WithGroupTags("v1"))

	oas.Get(v1, "/items", func(_ context.Context, _ *oas.Void) (*oas.Void, error) {
		return &oas.Void{}, nil
	})

	spec := mustBuild(t, r).Spec()
	ops, ok := spec.Paths["/v1/items"]
	require.True(t, ok, "path /v1/items should exist")
	assert.Contains(t, ops["get"].Tags, "v1")
}

func TestGroup_tags_do_not_leak_across_routes(t *testing.T) {
	t.Parallel()

	r := oas.New()
	g := r.Group("/v1", oas.WithGroupTags("shared"))

	oas.Get(g, "/a", func(_ context.Context, _ *oas.Void) (*oas.Void, error) {
		return &oas.Void{}, nil
	}, oas.WithTags("only-a"))
	oas.Get(g, "/b", func(_ context.Context, _ *oas.Void) (*oas.Void, error) {
		return &oas.Void{}, nil
	}, oas.WithTags("only-b"))

	spec := mustBuild(t, r).Spec()
	assert.Equal(t, []string{"shared", "only-a"}, spec.Paths["/v1/a"]["get"].Tags)
	assert.Equal(t, []string{"shared", "only-b"}, spec.Paths["/v1/b"]["get"].Tags)
}
