package models

import "time"

// Term labels, in order.
const (
	Term1 = "Term 1"
	Term2 = "Term 2"
	Term3 = "Term 3"
)

// Terms lists every term label. The rollover resets the current term to the first.
var Terms = []string{Term1, Term2, Term3}

// ValidTerm reports whether label is one of Terms.
func ValidTerm(label string) bool {
	for _, t := range Terms {
		if t == label {
			return true
		}
	}
	return false
}

// TermSettings holds the current term and year. At most one exists.
type TermSettings struct {
	CurrentTerm string `json:"currentTerm" validate:"required,term"`
	CurrentYear int    `json:"currentYear" validate:"required,gt=0"`
}

// DefaultTermSettings is served when no settings have been saved.
func DefaultTermSettings(now time.Time) TermSettings {
	return TermSettings{
		CurrentTerm: Term1,
		CurrentYear: now.Year(),
	}
}

// LearnerArchive is the roster snapshot taken by the rollover for one academic year.
type LearnerArchive struct {
	// Year is the academic year the snapshot was taken for. Unique.
	Year int `json:"year"`

	// Learners are value copies of every learner at rollover time.
	Learners []Learner `json:"learners"`

	// CreatedAt is the Unix timestamp when the archive was written.
	CreatedAt int64 `json:"createdAt"`
}
