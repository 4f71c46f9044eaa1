// Package models defines the school records managed by the service.
//
// # Collections
//
// Every collection document embeds Meta, which carries the store-assigned ID:
//   - Learner: an enrolled learner, keyed by admission number by convention
//   - Fee: a fee payment recorded against a learner's admission number
//   - Book: a book issued to a learner
//   - ClassBook: class book inventory, not tied to a learner
//
// # Singletons
//
// FeeStructure and TermSettings exist at most once. A missing singleton is not an
// error: callers fall back to the zero FeeStructure and DefaultTermSettings.
//
// # Archives
//
// LearnerArchive is the immutable roster snapshot written by the academic-year
// rollover, one per year. Learners in an archive are value copies.
package models

// Meta holds the fields shared by all collection documents.
type Meta struct {
	// ID is the unique identifier for the document (UUID format).
	// Serialized as "_id" for compatibility with the browser front end.
	ID string `json:"_id" db:"id"`

	// CreatedAt is the Unix nanosecond timestamp of insertion. Lists are ordered by it.
	CreatedAt int64 `json:"-" db:"created_at"`
}

// Metadata returns the embedded Meta so generic store code can assign IDs.
func (m *Meta) Metadata() *Meta {
	return m
}

// Record is implemented by every collection document.
type Record interface {
	Metadata() *Meta
}
