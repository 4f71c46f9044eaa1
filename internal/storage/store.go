// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mpa-academy/schooladmin/internal/models"
)

var (
	// ErrNotFound is returned when a document, singleton or archive does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a uniqueness rule,
	// such as a second archive for the same year.
	ErrConflict = errors.New("conflict")
)

// Collection is the CRUD surface shared by every document collection.
type Collection[T any] interface {
	// List returns every document in insertion order.
	List(ctx context.Context) ([]T, error)

	// Get returns the document with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*T, error)

	// Create persists a new document. The ID is generated when empty.
	Create(ctx context.Context, doc *T) error

	// Update replaces the stored document with the same ID, or returns ErrNotFound.
	Update(ctx context.Context, doc *T) error

	// Delete removes the document with the given ID, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// Records groups the operations available both on the store and inside a transaction.
type Records interface {
	Learners() Collection[models.Learner]
	Fees() Collection[models.Fee]
	Books() Collection[models.Book]
	ClassBooks() Collection[models.ClassBook]

	// LearnerByAdmissionNo returns the learner with the given admission number, or ErrNotFound.
	LearnerByAdmissionNo(ctx context.Context, admissionNo string) (*models.Learner, error)

	// FeeStructure returns the singleton fee structure, or ErrNotFound when none was saved.
	FeeStructure(ctx context.Context) (*models.FeeStructure, error)
	SaveFeeStructure(ctx context.Context, fs *models.FeeStructure) error

	// TermSettings returns the singleton term settings, or ErrNotFound when none were saved.
	TermSettings(ctx context.Context) (*models.TermSettings, error)
	SaveTermSettings(ctx context.Context, ts *models.TermSettings) error

	// ArchiveYears returns the years that have an archive, ascending.
	ArchiveYears(ctx context.Context) ([]int, error)

	// Archive returns the archive for year, or ErrNotFound.
	Archive(ctx context.Context, year int) (*models.LearnerArchive, error)

	// CreateArchive persists a new archive. Returns ErrConflict if the year is taken.
	CreateArchive(ctx context.Context, archive *models.LearnerArchive) error
}

// Tx is a unit of work. Its operations become visible only after the enclosing
// WithTx call commits.
type Tx interface {
	Records
}

// Store defines the interface for record storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the handlers.
type Store interface {
	Records

	// WithTx runs fn in a transaction. The transaction commits when fn returns nil
	// and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
