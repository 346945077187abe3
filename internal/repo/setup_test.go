package repo_test

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seekwell/seekwell/internal/config"
	"github.com/seekwell/seekwell/internal/db"
	"github.com/seekwell/seekwell/internal/tenant"
)

// openTestDB connects to the Postgres instance named by TEST_DB_HOST and
// applies migrations. Tests are skipped when the variable is unset so the
// unit suite stays runnable without infrastructure.
func openTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping db integration test")
	}
	port := 5432
	if v := os.Getenv("TEST_DB_PORT"); v != "" {
		parsed, err := strconv.Atoi(v)
		require.NoError(t, err)
		port = parsed
	}
	cfg := config.DatabaseConfig{
		Host:     host,
		Port:     port,
		User:     envOr("TEST_DB_USER", "postgres"),
		Password: os.Getenv("TEST_DB_PASSWORD"),
		DBName:   envOr("TEST_DB_NAME", "seekwell_test"),
	}
	conn, err := db.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations(conn))

	truncate := func() {
		for _, table := range []string{"chunk_embeddings", "chunks", "documents", "embedding_cache"} {
			_, err := conn.Exec("DELETE FROM " + table)
			require.NoError(t, err)
		}
	}
	truncate()
	return conn, func() {
		truncate()
		conn.Close()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func scopeFor(t *testing.T, tenantID string) tenant.Scope {
	t.Helper()
	scope, err := tenant.FromContext(tenant.WithTenant(context.Background(), tenantID))
	require.NoError(t, err)
	return scope
}
