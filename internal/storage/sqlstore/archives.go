package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mpa-academy/schooladmin/internal/models"
	"github.com/mpa-academy/schooladmin/internal/storage"
)

type archiveRow struct {
	Year      int    `db:"year"`
	Learners  string `db:"learners"`
	CreatedAt int64  `db:"created_at"`
}

// ArchiveYears lists archived years in ascending order.
func (r *records) ArchiveYears(ctx context.Context) ([]int, error) {
	years := []int{}
	if err := sqlx.SelectContext(ctx, r.ext, &years, "SELECT year FROM learner_archives ORDER BY year"); err != nil {
		return nil, fmt.Errorf("failed to list archive years: %w", err)
	}
	return years, nil
}

// Archive retrieves the archive for a year, including its learner snapshot.
func (r *records) Archive(ctx context.Context, year int) (*models.LearnerArchive, error) {
	var row archiveRow
	query := r.ext.Rebind("SELECT year, learners, created_at FROM learner_archives WHERE year = ?")
	err := sqlx.GetContext(ctx, r.ext, &row, query, year)
	if isNoRows(err) {
		return nil, fmt.Errorf("archive %d: %w", year, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get archive: %w", err)
	}

	archive := &models.LearnerArchive{Year: row.Year, CreatedAt: row.CreatedAt}
	if err := json.Unmarshal([]byte(row.Learners), &archive.Learners); err != nil {
		return nil, fmt.Errorf("failed to decode archived learners: %w", err)
	}
	return archive, nil
}

// CreateArchive inserts a new archive. Existing archives are never overwritten.
func (r *records) CreateArchive(ctx context.Context, archive *models.LearnerArchive) error {
	if archive.CreatedAt == 0 {
		archive.CreatedAt = time.Now().Unix()
	}
	learners := archive.Learners
	if learners == nil {
		learners = []models.Learner{}
	}
	data, err := json.Marshal(learners)
	if err != nil {
		return fmt.Errorf("failed to encode archived learners: %w", err)
	}

	query := r.ext.Rebind("INSERT INTO learner_archives (year, learners, created_at) VALUES (?, ?, ?)")
	if _, err := r.ext.ExecContext(ctx, query, archive.Year, string(data), archive.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("archive %d already exists: %w", archive.Year, storage.ErrConflict)
		}
		return fmt.Errorf("failed to insert archive: %w", err)
	}
	return nil
}
