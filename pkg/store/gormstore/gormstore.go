// Package gormstore implements [github.com/hasgeek/nodular/pkg/store.Store]
// on top of GORM.
//
// # Backends
//
// [OpenPostgres] is the production backend. [OpenSQLite] uses the pure Go
// SQLite driver and is what the test suites run against; an in-memory
// DSN such as "file:tree?mode=memory&cache=shared" gives every test its
// own throwaway database. Both share one schema, created by [Store.Migrate]
// through AutoMigrate.
//
// # Transactions
//
// Reads on a [Store] run against the connection pool. Writes are only
// offered by the [store.Tx] passed to [Store.Transaction], which wraps
// gorm's Transaction so that a returned error rolls everything back.
// There is no implicit per-call transaction for writes.
//
// SQLite is opened with a single connection, so code running inside a
// transaction must not use the outer Store for reads: it would wait for
// the connection the transaction is holding.
//
// # Constraint violations
//
// Duplicate key failures from either driver are reported as
// [store.ErrUniqueConflict]:
//
//	err := s.Transaction(ctx, func(tx store.Tx) error { return tx.CreateNode(ctx, n) })
//	if errors.Is(err, store.ErrUniqueConflict) {
//		// a sibling already has this name
//	}
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/store"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store implements store.Store with GORM.
type Store struct {
	queries
}

var _ store.Store = (*Store)(nil)

type options struct {
	log zerolog.Logger
}

// Option configures a Store.
type Option func(*options)

// WithLogger routes GORM's own logging to log.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// Open opens a Store for the named driver.
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	switch driver {
	case DriverPostgres:
		return OpenPostgres(dsn, opts...)
	case DriverSQLite:
		return OpenSQLite(dsn, opts...)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}

// OpenPostgres opens a PostgreSQL backed Store.
func OpenPostgres(dsn string, opts ...Option) (*Store, error) {
	o := buildOptions(opts)
	db, err := gorm.Open(postgres.Open(dsn), gormConfig(o))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return New(db), nil
}

// OpenSQLite opens a SQLite backed Store.
func OpenSQLite(dsn string, opts ...Option) (*Store, error) {
	o := buildOptions(opts)
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(o))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; one connection keeps transactions
	// from failing with SQLITE_BUSY instead of waiting.
	sqlDB.SetMaxOpenConns(1)
	return New(db), nil
}

// New wraps an already opened gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{queries{db: db}}
}

func buildOptions(opts []Option) *options {
	o := &options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func gormConfig(o *options) *gorm.Config {
	return &gorm.Config{
		Logger:         newGormLogger(o.log),
		TranslateError: true,
	}
}

// DB returns the underlying gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate creates or updates the schema with AutoMigrate.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&models.Node{},
		&models.NodeAlias{},
		&models.Property{},
		&models.Revision{},
		&models.ChangeRecord{},
	)
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Transaction(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&txQueries{queries{db: tx}})
	})
}

// translateError maps driver specific constraint failures onto the store
// error taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", store.ErrUniqueConflict, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}
