package sqlstore

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// migrations contains the SQL statements to set up the database schema.
// They run on startup to ensure tables exist, and are valid on both SQLite and PostgreSQL.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS learners (
		id TEXT PRIMARY KEY,
		created_at BIGINT NOT NULL,
		admission_no TEXT NOT NULL,
		full_name TEXT NOT NULL,
		gender TEXT NOT NULL,
		dob TEXT NOT NULL,
		grade TEXT NOT NULL,
		assessment_number TEXT NOT NULL DEFAULT '',
		parent_name TEXT NOT NULL,
		parent_phone TEXT NOT NULL,
		parent_email TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_learners_admission_no ON learners(admission_no)`,

	`CREATE TABLE IF NOT EXISTS fees (
		id TEXT PRIMARY KEY,
		created_at BIGINT NOT NULL,
		admission_no TEXT NOT NULL,
		term TEXT NOT NULL,
		amount_paid NUMERIC NOT NULL,
		balance NUMERIC NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fees_admission_no ON fees(admission_no)`,

	`CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		created_at BIGINT NOT NULL,
		admission_no TEXT NOT NULL,
		subject TEXT NOT NULL,
		book_title TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_books_admission_no ON books(admission_no)`,

	`CREATE TABLE IF NOT EXISTS class_books (
		id TEXT PRIMARY KEY,
		created_at BIGINT NOT NULL,
		book_number TEXT NOT NULL,
		subject TEXT NOT NULL,
		description TEXT NOT NULL,
		total_books INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_class_books_book_number ON class_books(book_number)`,

	// Singleton documents (fee structure, term settings) keyed by name.
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS learner_archives (
		year INTEGER PRIMARY KEY,
		learners TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
}

// runMigrations executes the schema setup.
func runMigrations(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
