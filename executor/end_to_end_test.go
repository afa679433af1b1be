package executor

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schwarztim/akamai-mcp-server-sub001/catalog"
)

const thingsDoc = `{
  "openapi": "3.0.0",
  "info": {"title": "Things", "version": "1.0"},
  "paths": {
    "/things/{id}": {
      "get": {
        "operationId": "getThing",
        "summary": "Get one thing",
        "parameters": [
          {"name": "id", "in": "path", "required": true, "schema": {"type": "string"}}
        ]
      }
    }
  }
}`

// Loads a real document through the registry and drives the resulting entry
// through the executor against an echoing stub.
func TestRegistryToExecutorRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "things.json"), []byte(thingsDoc), 0o644))

	registry := catalog.NewRegistry(nil, zap.NewNop())
	require.NoError(t, registry.Load(dir))

	entries := registry.Search(catalog.Filter{Method: http.MethodGet})
	require.Len(t, entries, 1)
	op := entries[0]
	assert.Equal(t, "/things/{id}", op.PathTemplate)
	assert.False(t, op.Paginatable)

	stub := &stubAdapter{respond: okResponse(map[string]any{"id": "42"})}
	e := newTestExecutor(t, stub, Options{})

	_, err := e.Execute(context.Background(), op, &Request{})
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, 0, stub.calls)

	result, err := e.Execute(context.Background(), op, &Request{
		PathParams: map[string]string{"id": "42"},
	})
	require.NoError(t, err)
	assert.Equal(t, 200, result.Status)
	assert.Equal(t, map[string]any{"id": "42"}, result.Body)
}
