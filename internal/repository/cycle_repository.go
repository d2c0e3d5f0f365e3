package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-enroll-api/internal/models"
)

// CycleRepository handles persistence of the singleton cycle settings record.
type CycleRepository struct {
	db *sqlx.DB
}

// NewCycleRepository constructs the repository.
func NewCycleRepository(db *sqlx.DB) *CycleRepository {
	return &CycleRepository{db: db}
}

// Get returns the cycle settings record. sql.ErrNoRows is returned unchanged
// when the record has never been created.
func (r *CycleRepository) Get(ctx context.Context) (*models.CycleSettings, error) {
	const query = `SELECT id, semester, academic_year, is_open, opened_at, closes_at, open_duration_seconds,
        semester1_started_at, semester1_ends_at, semester1_planned_months, semester1_planned_seconds,
        semester2_started_at, semester2_ends_at, semester2_planned_months, semester2_planned_seconds,
        version, updated_at
        FROM cycle_settings WHERE id = $1`
	var settings models.CycleSettings
	if err := r.db.GetContext(ctx, &settings, query, models.CycleSettingsID); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Upsert replaces the full record, bumping the version counter. The new
// version is written back into the passed settings.
func (r *CycleRepository) Upsert(ctx context.Context, settings *models.CycleSettings) error {
	if settings.ID == "" {
		settings.ID = models.CycleSettingsID
	}
	settings.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO cycle_settings (id, semester, academic_year, is_open, opened_at, closes_at, open_duration_seconds,
        semester1_started_at, semester1_ends_at, semester1_planned_months, semester1_planned_seconds,
        semester2_started_at, semester2_ends_at, semester2_planned_months, semester2_planned_seconds,
        version, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 1, $16)
        ON CONFLICT (id) DO UPDATE SET
        semester = EXCLUDED.semester, academic_year = EXCLUDED.academic_year, is_open = EXCLUDED.is_open,
        opened_at = EXCLUDED.opened_at, closes_at = EXCLUDED.closes_at, open_duration_seconds = EXCLUDED.open_duration_seconds,
        semester1_started_at = EXCLUDED.semester1_started_at, semester1_ends_at = EXCLUDED.semester1_ends_at,
        semester1_planned_months = EXCLUDED.semester1_planned_months, semester1_planned_seconds = EXCLUDED.semester1_planned_seconds,
        semester2_started_at = EXCLUDED.semester2_started_at, semester2_ends_at = EXCLUDED.semester2_ends_at,
        semester2_planned_months = EXCLUDED.semester2_planned_months, semester2_planned_seconds = EXCLUDED.semester2_planned_seconds,
        version = cycle_settings.version + 1, updated_at = EXCLUDED.updated_at
        RETURNING version`
	row := r.db.QueryRowxContext(ctx, query,
		settings.ID, settings.Semester, settings.AcademicYear, settings.IsOpen,
		settings.OpenedAt, settings.ClosesAt, settings.OpenDurationSeconds,
		settings.Semester1StartedAt, settings.Semester1EndsAt, settings.Semester1PlannedMonths, settings.Semester1PlannedSeconds,
		settings.Semester2StartedAt, settings.Semester2EndsAt, settings.Semester2PlannedMonths, settings.Semester2PlannedSeconds,
		settings.UpdatedAt,
	)
	if err := row.Scan(&settings.Version); err != nil {
		return fmt.Errorf("upsert cycle settings: %w", err)
	}
	return nil
}
