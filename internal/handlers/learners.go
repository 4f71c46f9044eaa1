package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/mpa-academy/schooladmin/internal/models"
	"github.com/mpa-academy/schooladmin/internal/storage"
	"github.com/mpa-academy/schooladmin/internal/validation"
)

// prepareLearner assigns the next admission number to new learners that have none.
func prepareLearner(ctx context.Context, store storage.Store, learner *models.Learner, creating bool) error {
	if !creating || learner.AdmissionNo != "" {
		return nil
	}

	learners, err := store.Learners().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list learners: %w", err)
	}
	existing := make([]string, len(learners))
	for i, l := range learners {
		existing[i] = l.AdmissionNo
	}
	learner.AdmissionNo = models.NextAdmissionNo(existing)
	return nil
}

// checkLearnerExists rejects references to admission numbers with no learner.
// An empty value is left for the required rule to report.
func checkLearnerExists(ctx context.Context, store storage.Store, admissionNo string) error {
	if admissionNo == "" {
		return nil
	}
	_, err := store.LearnerByAdmissionNo(ctx, admissionNo)
	if errors.Is(err, storage.ErrNotFound) {
		return validation.NewError("admissionNo", fmt.Sprintf("no learner with admission number %s", admissionNo))
	}
	if err != nil {
		return fmt.Errorf("failed to look up learner: %w", err)
	}
	return nil
}
