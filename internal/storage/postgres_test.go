package storage

import (
	"testing"

	"cdr-service/internal/calls"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Query behavior against a live Postgres belongs in integration tests; these check the
// generated SQL only.

func TestCountQuery_FiltersByStatus(t *testing.T) {
	q, args, err := countQuery(calls.StatusNew)
	require.NoError(t, err)
	assert.Contains(t, q, `COUNT(*)`)
	assert.Contains(t, q, `FROM "cdrs"`)
	assert.Contains(t, q, `"consumed_status" = $1`)
	assert.Equal(t, "NEW", args[0])
}

func TestFetchQuery_OrdersByIDWithLimit(t *testing.T) {
	q, args, err := fetchQuery(calls.StatusNew, 10)
	require.NoError(t, err)
	assert.Contains(t, q, `ORDER BY "id" ASC`)
	assert.Contains(t, q, `LIMIT`)
	assert.Contains(t, args, "NEW")
}

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements()
	require.Len(t, stmts, 5)
	assert.Contains(t, stmts[1], "CREATE TABLE IF NOT EXISTS cdrs")
	assert.Contains(t, stmts[3], "CREATE TABLE IF NOT EXISTS audit_events")
}
