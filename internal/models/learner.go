package models

import (
	"fmt"
	"strconv"
	"strings"
)

// AdmissionPrefix prefixes generated admission numbers, e.g. "MPA-007".
const AdmissionPrefix = "MPA"

// Learner represents an enrolled learner.
type Learner struct {
	Meta

	// AdmissionNo is the human-readable identifier, unique across learners.
	// Fees and books reference learners by this value.
	AdmissionNo string `json:"admissionNo" db:"admission_no" validate:"required"`

	FullName string `json:"fullName" db:"full_name" validate:"required"`
	Gender   string `json:"gender" db:"gender" validate:"required"`

	// DOB is the date of birth as entered by the front end (YYYY-MM-DD).
	DOB string `json:"dob" db:"dob" validate:"required"`

	// Grade is advanced by the academic-year rollover.
	Grade Grade `json:"grade" db:"grade" validate:"required,grade"`

	// AssessmentNumber is the optional national assessment number.
	AssessmentNumber string `json:"assessmentNumber,omitempty" db:"assessment_number"`

	ParentName  string `json:"parentName" db:"parent_name" validate:"required"`
	ParentPhone string `json:"parentPhone" db:"parent_phone" validate:"required"`
	ParentEmail string `json:"parentEmail" db:"parent_email" validate:"required,email"`
}

// NextAdmissionNo returns the admission number following the highest
// "MPA-NNN" number in existing. Numbers that do not follow the pattern are ignored.
func NextAdmissionNo(existing []string) string {
	highest := 0
	for _, no := range existing {
		prefix, num, found := strings.Cut(no, "-")
		if !found || prefix != AdmissionPrefix {
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s-%03d", AdmissionPrefix, highest+1)
}
