// Package sqlstore provides a SQL implementation of the storage.Store interface.
// It runs on SQLite (modernc.org/sqlite, pure Go) or PostgreSQL (pgx).
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver, registered as "pgx"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mpa-academy/schooladmin/internal/models"
	"github.com/mpa-academy/schooladmin/internal/storage"
)

// Supported driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store implements storage.Store on top of database/sql.
type Store struct {
	records
	db *sqlx.DB
}

// Open connects to the database, verifies it is reachable and runs migrations.
// For SQLite the dsn is a file path (or ":memory:") and parent directories are created.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = withBusyTimeout(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite allows a single writer; one connection keeps transactions from
		// failing with SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{records: records{ext: db}, db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn inside a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&records{ext: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// records implements storage.Records against either the database or a transaction.
type records struct {
	ext sqlx.ExtContext
}

func (r *records) Learners() storage.Collection[models.Learner] {
	return collection[models.Learner, *models.Learner]{ext: r.ext, table: learnersTable}
}

func (r *records) Fees() storage.Collection[models.Fee] {
	return collection[models.Fee, *models.Fee]{ext: r.ext, table: feesTable}
}

func (r *records) Books() storage.Collection[models.Book] {
	return collection[models.Book, *models.Book]{ext: r.ext, table: booksTable}
}

func (r *records) ClassBooks() storage.Collection[models.ClassBook] {
	return collection[models.ClassBook, *models.ClassBook]{ext: r.ext, table: classBooksTable}
}

// LearnerByAdmissionNo retrieves a learner by admission number.
func (r *records) LearnerByAdmissionNo(ctx context.Context, admissionNo string) (*models.Learner, error) {
	var learner models.Learner
	query := r.ext.Rebind("SELECT " + learnersTable.selectList() + " FROM learners WHERE admission_no = ?")
	err := sqlx.GetContext(ctx, r.ext, &learner, query, admissionNo)
	if isNoRows(err) {
		return nil, fmt.Errorf("learner %s: %w", admissionNo, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get learner by admission number: %w", err)
	}
	return &learner, nil
}

// withBusyTimeout adds a busy_timeout pragma to a SQLite DSN. The driver
// applies DSN pragmas to every connection it opens.
func withBusyTimeout(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)"
}

// isUniqueViolation reports whether err is a unique or primary key violation
// on either supported driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
