// Package rollover implements the academic year transition.
//
// A rollover archives the current learner roster under the current year, advances
// every learner one grade (removing learners who finish the terminal grade), and
// moves term settings to the first term of the next year. All of it happens in a
// single store transaction: either every step is committed or none is.
package rollover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mpa-academy/schooladmin/internal/metrics"
	"github.com/mpa-academy/schooladmin/internal/models"
	"github.com/mpa-academy/schooladmin/internal/storage"
)

var (
	// ErrNoTermSettings is returned when no term settings have been saved.
	ErrNoTermSettings = errors.New("term settings not found")

	// ErrAlreadyArchived is returned when the current year already has an archive.
	ErrAlreadyArchived = errors.New("academic year already archived")

	// ErrInProgress is returned when another rollover is running in this process.
	ErrInProgress = errors.New("academic year rollover already in progress")
)

// Result summarizes a committed rollover.
type Result struct {
	ArchivedYear int    `json:"archivedYear"`
	Archived     int    `json:"archived"`
	Advanced     int    `json:"advanced"`
	Graduated    int    `json:"graduated"`
	Skipped      int    `json:"skipped"`
	NewYear      int    `json:"newYear"`
	NewTerm      string `json:"newTerm"`
}

// Service runs rollovers. One rollover at a time is allowed per Service.
type Service struct {
	mu  sync.Mutex
	now func() time.Time
}

// NewService creates a rollover service.
func NewService() *Service {
	return &Service{now: time.Now}
}

// Run performs the rollover against store.
func (s *Service) Run(ctx context.Context, store storage.Store) (*Result, error) {
	if !s.mu.TryLock() {
		metrics.RolloverRuns.WithLabelValues("in_progress").Inc()
		return nil, ErrInProgress
	}
	defer s.mu.Unlock()

	start := s.now()
	var result *Result
	err := store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		result, err = s.run(ctx, tx)
		return err
	})
	if err != nil {
		metrics.RolloverRuns.WithLabelValues(outcome(err)).Inc()
		slog.Error("Academic year rollover failed", "error", err)
		return nil, err
	}

	metrics.RolloverRuns.WithLabelValues("success").Inc()
	metrics.RolloverLearners.WithLabelValues("advanced").Add(float64(result.Advanced))
	metrics.RolloverLearners.WithLabelValues("graduated").Add(float64(result.Graduated))
	metrics.RolloverLearners.WithLabelValues("skipped").Add(float64(result.Skipped))
	slog.Info("Academic year rollover completed",
		"archived_year", result.ArchivedYear,
		"archived", result.Archived,
		"advanced", result.Advanced,
		"graduated", result.Graduated,
		"skipped", result.Skipped,
		"new_year", result.NewYear,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (s *Service) run(ctx context.Context, tx storage.Tx) (*Result, error) {
	settings, err := tx.TermSettings(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoTermSettings
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read term settings: %w", err)
	}
	year := settings.CurrentYear

	if _, err := tx.Archive(ctx, year); err == nil {
		return nil, fmt.Errorf("year %d: %w", year, ErrAlreadyArchived)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to check archive: %w", err)
	}

	learners, err := tx.Learners().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read learners: %w", err)
	}

	// The archive must be written before any learner changes.
	archive := &models.LearnerArchive{
		Year:      year,
		Learners:  slices.Clone(learners),
		CreatedAt: s.now().Unix(),
	}
	if err := tx.CreateArchive(ctx, archive); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, fmt.Errorf("year %d: %w", year, ErrAlreadyArchived)
		}
		return nil, fmt.Errorf("failed to archive learners: %w", err)
	}

	result := &Result{ArchivedYear: year, Archived: len(learners)}
	for i := range learners {
		learner := &learners[i]
		switch next, ok := learner.Grade.Next(); {
		case ok:
			learner.Grade = next
			if err := tx.Learners().Update(ctx, learner); err != nil {
				return nil, fmt.Errorf("failed to advance learner %s: %w", learner.AdmissionNo, err)
			}
			result.Advanced++
		case learner.Grade.Terminal():
			if err := tx.Learners().Delete(ctx, learner.ID); err != nil {
				return nil, fmt.Errorf("failed to remove learner %s: %w", learner.AdmissionNo, err)
			}
			result.Graduated++
		default:
			slog.Warn("Skipping learner with unknown grade",
				"admission_no", learner.AdmissionNo,
				"grade", learner.Grade,
			)
			result.Skipped++
		}
	}

	next := &models.TermSettings{CurrentTerm: models.Terms[0], CurrentYear: year + 1}
	if err := tx.SaveTermSettings(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to update term settings: %w", err)
	}
	result.NewYear = next.CurrentYear
	result.NewTerm = next.CurrentTerm
	return result, nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrNoTermSettings):
		return "no_term_settings"
	case errors.Is(err, ErrAlreadyArchived):
		return "already_archived"
	default:
		return "error"
	}
}
