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

// Singleton documents are stored as JSON under a fixed key in the settings table.
const (
	feeStructureKey = "fee_structure"
	termSettingsKey = "term_settings"
)

// FeeStructure retrieves the saved fee structure.
func (r *records) FeeStructure(ctx context.Context) (*models.FeeStructure, error) {
	var fs models.FeeStructure
	if err := r.getSetting(ctx, feeStructureKey, &fs); err != nil {
		return nil, err
	}
	return &fs, nil
}

// SaveFeeStructure creates or replaces the fee structure.
func (r *records) SaveFeeStructure(ctx context.Context, fs *models.FeeStructure) error {
	return r.putSetting(ctx, feeStructureKey, fs)
}

// TermSettings retrieves the saved term settings.
func (r *records) TermSettings(ctx context.Context) (*models.TermSettings, error) {
	var ts models.TermSettings
	if err := r.getSetting(ctx, termSettingsKey, &ts); err != nil {
		return nil, err
	}
	return &ts, nil
}

// SaveTermSettings creates or replaces the term settings.
func (r *records) SaveTermSettings(ctx context.Context, ts *models.TermSettings) error {
	return r.putSetting(ctx, termSettingsKey, ts)
}

func (r *records) getSetting(ctx context.Context, key string, dest any) error {
	var value string
	err := sqlx.GetContext(ctx, r.ext, &value, r.ext.Rebind("SELECT value FROM settings WHERE key = ?"), key)
	if isNoRows(err) {
		return fmt.Errorf("setting %s: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(value), dest); err != nil {
		return fmt.Errorf("failed to decode setting %s: %w", key, err)
	}
	return nil
}

func (r *records) putSetting(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode setting %s: %w", key, err)
	}

	query := r.ext.Rebind(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if _, err := r.ext.ExecContext(ctx, query, key, string(data), time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}
