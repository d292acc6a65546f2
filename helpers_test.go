package oas_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bjaus/oas"
)

// mustBuild builds the router and fails the test on any build error.
func mustBuild(t *testing.T, r *oas.Router) *oas.Service {
	t.Helper()
	svc, err := r.Build()
	require.NoError(t, err)
	return svc
}
