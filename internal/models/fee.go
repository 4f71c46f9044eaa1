package models

import "github.com/shopspring/decimal"

func init() {
	// The front end sends and expects plain JSON numbers for money.
	decimal.MarshalJSONWithoutQuotes = true
}

// Fee records a payment made for a learner in a term.
type Fee struct {
	Meta

	// AdmissionNo must name an existing learner when the fee is written.
	AdmissionNo string `json:"admissionNo" db:"admission_no" validate:"required"`

	// Term is the term label the payment applies to (e.g. "Term 2").
	Term string `json:"term" db:"term" validate:"required"`

	// AmountPaid and Balance are pointers so a missing amount can be told
	// apart from zero.
	AmountPaid *decimal.Decimal `json:"amountPaid" db:"amount_paid" validate:"required"`
	Balance    *decimal.Decimal `json:"balance" db:"balance" validate:"required"`
}

// FeeStructure maps each grade to its fee amount. At most one exists.
type FeeStructure struct {
	Playgroup decimal.Decimal `json:"playgroup"`
	PP1       decimal.Decimal `json:"pp1"`
	PP2       decimal.Decimal `json:"pp2"`
	Grade1    decimal.Decimal `json:"grade1"`
	Grade2    decimal.Decimal `json:"grade2"`
	Grade3    decimal.Decimal `json:"grade3"`
	Grade4    decimal.Decimal `json:"grade4"`
	Grade5    decimal.Decimal `json:"grade5"`
	Grade6    decimal.Decimal `json:"grade6"`
	Grade7    decimal.Decimal `json:"grade7"`
	Grade8    decimal.Decimal `json:"grade8"`
	Grade9    decimal.Decimal `json:"grade9"`
}
