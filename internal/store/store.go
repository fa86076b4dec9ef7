package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	_ "github.com/glebarez/go-sqlite" // Pure Go SQLite driver
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gmsas95/medtrack/internal/config"
	apperrors "github.com/gmsas95/medtrack/internal/errors"
)

// Store provides unified access to SQLite and BadgerDB
type Store struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	badger *badger.DB
}

// New opens the on-disk databases described by cfg
func New(cfg *config.Config) (*Store, error) {
	sqlitePath := cfg.Storage.SQLitePath
	if sqlitePath == "" {
		sqlitePath = filepath.Join(cfg.Storage.DataDir, "medtrack.db")
	}

	sqliteDB, err := sql.Open("sqlite", sqlitePath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqliteDB.SetMaxOpenConns(10)
	sqliteDB.SetMaxIdleConns(5)
	sqliteDB.SetConnMaxLifetime(time.Hour)

	badgerPath := cfg.Storage.BadgerPath
	if badgerPath == "" {
		badgerPath = filepath.Join(cfg.Storage.DataDir, "badger")
	}

	badgerOpts := badger.DefaultOptions(badgerPath).
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true).
		WithValueLogFileSize(16 << 20).
		WithMemTableSize(16 << 20)

	return open(sqliteDB, badgerOpts)
}

// NewInMemory opens a private in-memory SQLite database and an in-memory
// badger instance. Used by tests and the one-shot CLI report.
func NewInMemory() (*Store, error) {
	sqliteDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// Every connection to ":memory:" is its own database.
	sqliteDB.SetMaxOpenConns(1)

	return open(sqliteDB, badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func open(sqliteDB *sql.DB, badgerOpts badger.Options) (*Store, error) {
	db, err := gorm.Open(sqlite.Dialector{Conn: sqliteDB}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		sqliteDB.Close()
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if err := Migrate(db); err != nil {
		sqliteDB.Close()
		return nil, err
	}

	badgerDB, err := badger.Open(badgerOpts)
	if err != nil {
		sqliteDB.Close()
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &Store{db: db, sqlDB: sqliteDB, badger: badgerDB}, nil
}

// NewWithDB wraps an existing gorm handle. kv may be nil when the caller
// does not need the cache.
func NewWithDB(db *gorm.DB, kv *badger.DB) (*Store, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &Store{db: db, badger: kv}, nil
}

// Migrate creates or updates the three tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Medication{}, &Schedule{}, &DoseRecord{}); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Close closes all database connections
func (s *Store) Close() error {
	var errs []error
	if s.badger != nil {
		errs = append(errs, s.badger.Close())
	}
	if s.sqlDB != nil {
		errs = append(errs, s.sqlDB.Close())
	}
	return errors.Join(errs...)
}

// DB returns the GORM database instance
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Badger returns the BadgerDB instance
func (s *Store) Badger() *badger.DB {
	return s.badger
}

// Ping checks that SQLite answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return unavailable(err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

// Transaction runs fn against a Store bound to one transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, badger: s.badger})
	})
}

// unavailable maps driver failures onto the retryable error kind.
func unavailable(err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.ErrStoreUnavailable.WithCause(err)
}
