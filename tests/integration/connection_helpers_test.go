//go:build integration
// +build integration

package integration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func requireCollectionNodes(t *testing.T, data map[string]interface{}, field string) []interface{} {
	t.Helper()

	raw, ok := data[field]
	require.True(t, ok, "expected field %q in response data", field)

	rows, ok := raw.([]interface{})
	require.Truef(t, ok, "field %q had unexpected type %T, expected a list", field, raw)
	return rows
}
