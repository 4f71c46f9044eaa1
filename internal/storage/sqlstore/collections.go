package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mpa-academy/schooladmin/internal/models"
	"github.com/mpa-academy/schooladmin/internal/storage"
)

// table describes a collection table. Every table also has id and created_at columns.
type table struct {
	name    string
	noun    string
	columns []string
}

var (
	learnersTable = table{
		name: "learners",
		noun: "learner",
		columns: []string{
			"admission_no", "full_name", "gender", "dob", "grade",
			"assessment_number", "parent_name", "parent_phone", "parent_email",
		},
	}
	feesTable = table{
		name:    "fees",
		noun:    "fee",
		columns: []string{"admission_no", "term", "amount_paid", "balance"},
	}
	booksTable = table{
		name:    "books",
		noun:    "book",
		columns: []string{"admission_no", "subject", "book_title"},
	}
	classBooksTable = table{
		name:    "class_books",
		noun:    "class book",
		columns: []string{"book_number", "subject", "description", "total_books"},
	}
)

func (t table) selectList() string {
	return "id, created_at, " + strings.Join(t.columns, ", ")
}

func (t table) insertQuery() string {
	cols := append([]string{"id", "created_at"}, t.columns...)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (:%s)",
		t.name, strings.Join(cols, ", "), strings.Join(cols, ", :"))
}

func (t table) updateQuery() string {
	sets := make([]string, len(t.columns))
	for i, col := range t.columns {
		sets[i] = col + " = :" + col
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = :id", t.name, strings.Join(sets, ", "))
}

// collection implements storage.Collection for one table.
// P lets the generic code reach the embedded models.Meta through a pointer.
type collection[T any, P interface {
	*T
	models.Record
}] struct {
	ext   sqlx.ExtContext
	table table
}

// List returns all documents ordered by insertion time.
func (c collection[T, P]) List(ctx context.Context) ([]T, error) {
	docs := []T{}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at, id", c.table.selectList(), c.table.name)
	if err := sqlx.SelectContext(ctx, c.ext, &docs, query); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.table.name, err)
	}
	return docs, nil
}

// Get retrieves a document by ID.
func (c collection[T, P]) Get(ctx context.Context, id string) (*T, error) {
	var doc T
	query := c.ext.Rebind(fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", c.table.selectList(), c.table.name))
	err := sqlx.GetContext(ctx, c.ext, &doc, query, id)
	if isNoRows(err) {
		return nil, fmt.Errorf("%s %s: %w", c.table.noun, id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", c.table.noun, err)
	}
	return &doc, nil
}

// Create inserts a document, generating its ID and creation time if unset.
func (c collection[T, P]) Create(ctx context.Context, doc *T) error {
	meta := P(doc).Metadata()
	if meta.ID == "" {
		meta.ID = uuid.New().String()
	}
	if meta.CreatedAt == 0 {
		meta.CreatedAt = time.Now().UnixNano()
	}

	if _, err := sqlx.NamedExecContext(ctx, c.ext, c.table.insertQuery(), doc); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s already exists: %w", c.table.noun, storage.ErrConflict)
		}
		return fmt.Errorf("failed to insert %s: %w", c.table.noun, err)
	}
	return nil
}

// Update overwrites every column of an existing document.
func (c collection[T, P]) Update(ctx context.Context, doc *T) error {
	id := P(doc).Metadata().ID
	res, err := sqlx.NamedExecContext(ctx, c.ext, c.table.updateQuery(), doc)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s already exists: %w", c.table.noun, storage.ErrConflict)
		}
		return fmt.Errorf("failed to update %s: %w", c.table.noun, err)
	}
	return expectOneRow(res, c.table.noun, id)
}

// Delete removes a document by ID.
func (c collection[T, P]) Delete(ctx context.Context, id string) error {
	query := c.ext.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.table.name))
	res, err := c.ext.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", c.table.noun, err)
	}
	return expectOneRow(res, c.table.noun, id)
}

func expectOneRow(res sql.Result, noun, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", noun, id, storage.ErrNotFound)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
