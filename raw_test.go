package oas_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/oas"
)

func TestRaw_handler(t *testing.T) {
	t.Parallel()

	r := oas.New()
	oas.Raw(r, http.MethodGet, "/custom", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte("custom response"))
		require.NoError(t, err)
	}, oas.OperationInfo{
		Summary:     "Custom endpoint",
		Description: "A fully custom endpoint",
		Tags:        []string{"custom"},
	})

	svc := mustBuild(t, r)
	srv := httptest.NewServer(svc)
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/custom", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))

	// Verify it shows in the document.
	spec := svc.Spec()
	op, ok := spec.Paths["/custom"]["get"]
	require.True(t, ok)
	assert.Equal(t, "Custom endpoint", op.Summary)
	assert.Contains(t, op.Tags, "custom")
}

func TestRaw_path_params_documented(t *testing.T) {
	t.Parallel()

	r := oas.New()
	oas.Raw(r, http.MethodGet, "/files/{name}", func(w http.ResponseWriter, req *http.Request) {
		_, err := w.Write([]byte(req.PathValue("name")))
		require.NoError(t, err)
	}, oas.OperationInfo{Summary: "Fetch file"})

	svc := mustBuild(t, r)
	srv := httptest.NewServer(svc)
	defer srv.Close()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/files/report.txt", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { require.NoError(t, resp.Body.Close()) }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	op, ok := svc.Spec().Paths["/files/{name}"]["get"]
	require.True(t, ok)
	require.Len(t, op.Parameters, 1)
	assert.Equal(t, "name", op.Parameters[0].Name)
	assert.Equal(t, "path", op.Parameters[0].In)
	assert.True(t, op.Parameters[0].Required)
}

func TestRawRequest_embedding(t *testing.T) {
	t.Parallel()

	// RawRequest should be embeddable and have a Request field.
	var rr oas.RawRequest
	assert.Nil(t, rr.Request)
}

func TestOperationInfo_fields(t *testing.T) {
	t.Parallel()

	info := oas.OperationInfo{
		Summary:     "summary",
		Description: "desc",
		Tags:        []string{"a", "b"},
	}

	assert.Equal(t, "summary", info.Summary)
	assert.Equal(t, "desc", info.Description)
	assert.Equal(t, []string{"a", "b"}, info.Tags)
}
