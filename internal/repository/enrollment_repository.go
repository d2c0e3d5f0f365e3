package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-enroll-api/internal/models"
)

// SectionEnrollmentID derives the stable record key for a student's section
// enrollment. The key is fixed at creation; transfers re-point the record
// without renaming it.
func SectionEnrollmentID(studentUsername, sectionID string) string {
	return studentUsername + "@" + sectionID
}

// EnrollmentRepository handles persistence of student section enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByStudent returns the student's enrollment record. sql.ErrNoRows is
// returned unchanged when the student has no section yet.
func (r *EnrollmentRepository) FindByStudent(ctx context.Context, exec sqlx.ExtContext, studentUsername string) (*models.SectionEnrollment, error) {
	const query = `SELECT id, student_username, section_id, enrolled_at FROM section_enrollments WHERE student_username = $1`
	var enrollment models.SectionEnrollment
	if err := sqlx.GetContext(ctx, exec, &enrollment, query, studentUsername); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.SectionEnrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = SectionEnrollmentID(enrollment.StudentUsername, enrollment.SectionID)
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO section_enrollments (id, student_username, section_id, enrolled_at)
        VALUES (:id, :student_username, :section_id, :enrolled_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, enrollment); err != nil {
		return fmt.Errorf("create section enrollment: %w", err)
	}
	return nil
}

// Repoint moves an enrollment to a new section, refreshing its timestamp.
func (r *EnrollmentRepository) Repoint(ctx context.Context, exec sqlx.ExtContext, id, sectionID string, enrolledAt time.Time) error {
	const query = `UPDATE section_enrollments SET section_id = $2, enrolled_at = $3 WHERE id = $1`
	if _, err := exec.ExecContext(ctx, query, id, sectionID, enrolledAt); err != nil {
		return fmt.Errorf("repoint section enrollment: %w", err)
	}
	return nil
}

// Touch refreshes the enrollment timestamp without moving the record.
func (r *EnrollmentRepository) Touch(ctx context.Context, exec sqlx.ExtContext, id string, enrolledAt time.Time) error {
	const query = `UPDATE section_enrollments SET enrolled_at = $2 WHERE id = $1`
	if _, err := exec.ExecContext(ctx, query, id, enrolledAt); err != nil {
		return fmt.Errorf("touch section enrollment: %w", err)
	}
	return nil
}
