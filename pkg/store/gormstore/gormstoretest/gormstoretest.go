// Package gormstoretest provides throwaway migrated stores for tests.
//
// [New] returns a store on a private in-memory SQLite database, so tests
// can run in parallel without seeing each other's rows. Setting
// NODULAR_TEST_POSTGRES_DSN makes [NewPostgres] return a store on that
// database instead of skipping.
package gormstoretest

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/hasgeek/nodular/pkg/store/gormstore"
	"github.com/stretchr/testify/require"
)

// EnvPostgresDSN names the environment variable that enables Postgres tests.
const EnvPostgresDSN = "NODULAR_TEST_POSTGRES_DSN"

// New returns a migrated store on a fresh in-memory SQLite database. The
// store is closed when the test ends.
func New(t testing.TB) *gormstore.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	s, err := gormstore.OpenSQLite(dsn)
	require.NoError(t, err)
	return prepare(t, s)
}

// NewPostgres returns a migrated Postgres store, or skips the test when
// no DSN is configured.
func NewPostgres(t testing.TB) *gormstore.Store {
	t.Helper()
	dsn := os.Getenv(EnvPostgresDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvPostgresDSN)
	}
	s, err := gormstore.OpenPostgres(dsn)
	require.NoError(t, err)
	return prepare(t, s)
}

func prepare(t testing.TB, s *gormstore.Store) *gormstore.Store {
	t.Helper()
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}
