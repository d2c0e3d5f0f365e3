package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-enroll-api/internal/models"
)

// SectionRepository handles persistence of sections. Methods on the
// assignment path accept an sqlx.ExtContext so they run inside the
// coordinator's transaction.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs the repository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// List returns sections filtered by program and year with pagination.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.Section, int, error) {
	base := "FROM sections"
	var conditions []string
	var args []interface{}
	if filter.Program != "" {
		conditions = append(conditions, fmt.Sprintf("program = $%d", len(args)+1))
		args = append(args, filter.Program)
	}
	if filter.AcademicYear != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	clause := ""
	for i, cond := range conditions {
		if i == 0 {
			clause = " WHERE " + cond
		} else {
			clause += " AND " + cond
		}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, program, academic_year, name, capacity, current_count, created_at
        %s ORDER BY name ASC LIMIT %d OFFSET %d`, base+clause, size, offset)
	var sections []models.Section
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sections: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sections: %w", err)
	}
	return sections, total, nil
}

// FindByID returns a section by its ID.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, program, academic_year, name, capacity, current_count, created_at FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// ListOpen returns sections of a program and year that still have spare
// capacity, ordered by name so block numbering stays stable.
func (r *SectionRepository) ListOpen(ctx context.Context, exec sqlx.ExtContext, program, academicYear string) ([]models.Section, error) {
	const query = `SELECT id, program, academic_year, name, capacity, current_count, created_at
        FROM sections WHERE program = $1 AND academic_year = $2 AND current_count < capacity
        ORDER BY name ASC`
	var sections []models.Section
	if err := sqlx.SelectContext(ctx, exec, &sections, query, program, academicYear); err != nil {
		return nil, fmt.Errorf("list open sections: %w", err)
	}
	return sections, nil
}

// CountSiblings counts existing same-program/year sections carrying the tag
// of the given semester. Used to number a newly created section.
func (r *SectionRepository) CountSiblings(ctx context.Context, exec sqlx.ExtContext, program, academicYear string, sem models.Semester) (int, error) {
	query := `SELECT COUNT(*) FROM sections WHERE program = $1 AND academic_year = $2 AND name NOT LIKE $3`
	if sem == models.SemesterSecond {
		query = `SELECT COUNT(*) FROM sections WHERE program = $1 AND academic_year = $2 AND name LIKE $3`
	}
	var count int
	if err := sqlx.GetContext(ctx, exec, &count, query, program, academicYear, "%"+models.SecondSemesterTag); err != nil {
		return 0, fmt.Errorf("count sibling sections: %w", err)
	}
	return count, nil
}

// Create persists a new section record.
func (r *SectionRepository) Create(ctx context.Context, exec sqlx.ExtContext, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	if section.CreatedAt.IsZero() {
		section.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO sections (id, program, academic_year, name, capacity, current_count, created_at)
        VALUES (:id, :program, :academic_year, :name, :capacity, :current_count, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}

// IncrementCount bumps current_count guarded by the capacity check embedded
// in the predicate. It returns false when the guard rejected the update,
// meaning another request claimed the last seat.
func (r *SectionRepository) IncrementCount(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	const query = `UPDATE sections SET current_count = current_count + 1 WHERE id = $1 AND current_count < capacity`
	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("increment section count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("increment section count: %w", err)
	}
	return affected == 1, nil
}

// DecrementCount lowers current_count guarded against going negative.
func (r *SectionRepository) DecrementCount(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error) {
	const query = `UPDATE sections SET current_count = current_count - 1 WHERE id = $1 AND current_count > 0`
	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("decrement section count: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decrement section count: %w", err)
	}
	return affected == 1, nil
}
