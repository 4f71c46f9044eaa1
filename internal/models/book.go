package models

// Book is a book issued to a learner.
type Book struct {
	Meta

	// AdmissionNo must name an existing learner when the book is written.
	AdmissionNo string `json:"admissionNo" db:"admission_no" validate:"required"`
	Subject     string `json:"subject" db:"subject" validate:"required"`
	BookTitle   string `json:"bookTitle" db:"book_title" validate:"required"`
}

// ClassBook is a line of class book inventory.
type ClassBook struct {
	Meta

	BookNumber  string `json:"bookNumber" db:"book_number" validate:"required"`
	Subject     string `json:"subject" db:"subject" validate:"required"`
	Description string `json:"description" db:"description" validate:"required"`

	// TotalBooks is required; zero is a valid count.
	TotalBooks *int `json:"totalBooks" db:"total_books" validate:"required,gte=0"`
}
