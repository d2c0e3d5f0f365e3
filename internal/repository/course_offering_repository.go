package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-enroll-api/internal/models"
)

// CourseOfferingRepository reads the ordered course catalog consumed by
// schedule generation.
type CourseOfferingRepository struct {
	db *sqlx.DB
}

// NewCourseOfferingRepository constructs the repository.
func NewCourseOfferingRepository(db *sqlx.DB) *CourseOfferingRepository {
	return &CourseOfferingRepository{db: db}
}

// ListCodes returns the ordered course codes for a program, year and semester.
func (r *CourseOfferingRepository) ListCodes(ctx context.Context, exec sqlx.ExtContext, program, academicYear string, sem models.Semester) ([]string, error) {
	const query = `SELECT course_code FROM course_offerings
        WHERE program = $1 AND academic_year = $2 AND semester = $3
        ORDER BY position ASC`
	var codes []string
	if err := sqlx.SelectContext(ctx, exec, &codes, query, program, academicYear, sem); err != nil {
		return nil, fmt.Errorf("list course codes: %w", err)
	}
	return codes, nil
}
