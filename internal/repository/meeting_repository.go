package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-enroll-api/internal/models"
)

// ErrMeetingConflict signals that the (room, day, slot) or (section, day,
// slot) unique constraint rejected an insert. The schedule generator treats
// it as "slot taken, try the next candidate".
var ErrMeetingConflict = errors.New("meeting slot already booked")

const pqUniqueViolation = "23505"

// MeetingRepository handles persistence of weekly meetings.
type MeetingRepository struct {
	db *sqlx.DB
}

// NewMeetingRepository constructs the repository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// Insert persists a meeting, mapping unique-constraint violations to
// ErrMeetingConflict so concurrent generator runs stay idempotent.
func (r *MeetingRepository) Insert(ctx context.Context, exec sqlx.ExtContext, meeting *models.Meeting) error {
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO meetings (id, section_id, course_code, room_id, day_of_week, slot, display_time, created_at)
        VALUES (:id, :section_id, :course_code, :room_id, :day_of_week, :slot, :display_time, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, meeting); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return ErrMeetingConflict
		}
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

// ListBookedRoomIDs returns the IDs of rooms already holding a meeting at the
// given (day, slot) across all sections.
func (r *MeetingRepository) ListBookedRoomIDs(ctx context.Context, exec sqlx.ExtContext, day, slot int) ([]string, error) {
	const query = `SELECT room_id FROM meetings WHERE day_of_week = $1 AND slot = $2`
	var roomIDs []string
	if err := sqlx.SelectContext(ctx, exec, &roomIDs, query, day, slot); err != nil {
		return nil, fmt.Errorf("list booked rooms: %w", err)
	}
	return roomIDs, nil
}

// CountBySection returns the number of meetings generated for a section.
func (r *MeetingRepository) CountBySection(ctx context.Context, exec sqlx.ExtContext, sectionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM meetings WHERE section_id = $1`
	var count int
	if err := sqlx.GetContext(ctx, exec, &count, query, sectionID); err != nil {
		return 0, fmt.Errorf("count section meetings: %w", err)
	}
	return count, nil
}

// ListBySection returns a section's timetable joined with room names.
func (r *MeetingRepository) ListBySection(ctx context.Context, sectionID string) ([]models.MeetingDetail, error) {
	const query = `SELECT m.id, m.section_id, m.course_code, m.room_id, m.day_of_week, m.slot, m.display_time, m.created_at,
        r.name AS room_name
        FROM meetings m
        LEFT JOIN rooms r ON r.id = m.room_id
        WHERE m.section_id = $1
        ORDER BY m.day_of_week ASC, m.slot ASC`
	var meetings []models.MeetingDetail
	if err := r.db.SelectContext(ctx, &meetings, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section meetings: %w", err)
	}
	return meetings, nil
}
