package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enroll-api/internal/dto"
	"github.com/noah-isme/sma-enroll-api/internal/models"
	"github.com/noah-isme/sma-enroll-api/internal/repository"
	appErrors "github.com/noah-isme/sma-enroll-api/pkg/errors"
)

// Metric outcome labels for assignment attempts.
const (
	assignmentOutcomeEnrolled    = "enrolled"
	assignmentOutcomeTransferred = "transferred"
	assignmentOutcomeUnchanged   = "unchanged"
	assignmentOutcomeRejected    = "rejected"
)

type assignmentSectionRepository interface {
	ListOpen(ctx context.Context, exec sqlx.ExtContext, program, academicYear string) ([]models.Section, error)
	CountSiblings(ctx context.Context, exec sqlx.ExtContext, program, academicYear string, sem models.Semester) (int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, section *models.Section) error
	IncrementCount(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error)
	DecrementCount(ctx context.Context, exec sqlx.ExtContext, id string) (bool, error)
}

type assignmentEnrollmentRepository interface {
	FindByStudent(ctx context.Context, exec sqlx.ExtContext, studentUsername string) (*models.SectionEnrollment, error)
	Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.SectionEnrollment) error
	Repoint(ctx context.Context, exec sqlx.ExtContext, id, sectionID string, enrolledAt time.Time) error
	Touch(ctx context.Context, exec sqlx.ExtContext, id string, enrolledAt time.Time) error
}

type assignmentRoomRepository interface {
	Count(ctx context.Context, exec sqlx.ExtContext) (int, error)
	Create(ctx context.Context, exec sqlx.ExtContext, room *models.Room) error
}

type courseCatalog interface {
	ListCodes(ctx context.Context, exec sqlx.ExtContext, program, academicYear string, sem models.Semester) ([]string, error)
}

// AssignmentService places students into capacity-bounded sections. Every
// assignment runs in one database transaction; capacity is enforced by the
// guarded increment, never by a prior read.
type AssignmentService struct {
	db          *sqlx.DB
	sections    assignmentSectionRepository
	enrollments assignmentEnrollmentRepository
	rooms       assignmentRoomRepository
	catalog     courseCatalog
	scheduler   *ScheduleService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger

	defaultRoomCount       int
	defaultRoomCapacity    int
	defaultSectionCapacity int
	now                    func() time.Time
}

// AssignmentDefaults carries the seed values used when infrastructure has to
// be created lazily.
type AssignmentDefaults struct {
	RoomCount       int
	RoomCapacity    int
	SectionCapacity int
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(
	db *sqlx.DB,
	sections assignmentSectionRepository,
	enrollments assignmentEnrollmentRepository,
	rooms assignmentRoomRepository,
	catalog courseCatalog,
	scheduler *ScheduleService,
	metrics *MetricsService,
	defaults AssignmentDefaults,
	validate *validator.Validate,
	logger *zap.Logger,
) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.RoomCount <= 0 {
		defaults.RoomCount = 6
	}
	if defaults.RoomCapacity <= 0 {
		defaults.RoomCapacity = 40
	}
	if defaults.SectionCapacity <= 0 {
		defaults.SectionCapacity = 40
	}
	return &AssignmentService{
		db:                     db,
		sections:               sections,
		enrollments:            enrollments,
		rooms:                  rooms,
		catalog:                catalog,
		scheduler:              scheduler,
		metrics:                metrics,
		validator:              validate,
		logger:                 logger,
		defaultRoomCount:       defaults.RoomCount,
		defaultRoomCapacity:    defaults.RoomCapacity,
		defaultSectionCapacity: defaults.SectionCapacity,
		now:                    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the wall clock, used by tests.
func (s *AssignmentService) WithClock(now func() time.Time) *AssignmentService {
	if now != nil {
		s.now = now
	}
	return s
}

// AssignStudentToSection places the student into a viable section for the
// requested program, academic year and semester, creating a section and its
// schedule when none has room. The whole operation is atomic; a capacity
// conflict aborts it with ErrCapacityExceeded and the caller may retry.
func (s *AssignmentService) AssignStudentToSection(ctx context.Context, req dto.AssignSectionRequest) (*models.Section, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if !req.Semester.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester must be 1st or 2nd")
	}
	if req.Capacity <= 0 {
		req.Capacity = s.defaultSectionCapacity
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin assignment tx: %w", err)
	}
	section, err := s.assign(ctx, tx, req)
	if err != nil {
		_ = tx.Rollback()
		s.metrics.RecordAssignment(assignmentOutcomeRejected)
		if appErrors.HasCode(err, appErrors.ErrCapacityExceeded) {
			s.metrics.RecordCapacityConflict()
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit assignment tx: %w", err)
	}
	return section, nil
}

func (s *AssignmentService) assign(ctx context.Context, tx *sqlx.Tx, req dto.AssignSectionRequest) (*models.Section, error) {
	if err := s.ensureRooms(ctx, tx); err != nil {
		return nil, err
	}

	section, err := s.pickSection(ctx, tx, req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSchedule(ctx, tx, section, req); err != nil {
		return nil, err
	}

	outcome, err := s.enroll(ctx, tx, req.StudentUsername, section)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAssignment(outcome)
	s.logger.Info("student assigned",
		zap.String("student", req.StudentUsername),
		zap.String("section_id", section.ID),
		zap.String("section_name", section.Name),
		zap.String("outcome", outcome))
	return section, nil
}

// ensureRooms seeds the room pool on first use. Idempotent: rooms are only
// created when none exist at all.
func (s *AssignmentService) ensureRooms(ctx context.Context, tx *sqlx.Tx) error {
	count, err := s.rooms.Count(ctx, tx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for i := 1; i <= s.defaultRoomCount; i++ {
		room := &models.Room{
			Name:     fmt.Sprintf("ROOM %d", i),
			Capacity: s.defaultRoomCapacity,
		}
		if err := s.rooms.Create(ctx, tx, room); err != nil {
			return err
		}
	}
	s.logger.Info("seeded room pool", zap.Int("rooms", s.defaultRoomCount))
	return nil
}

// pickSection returns the first open section matching the requested semester,
// creating a new numbered sibling when none has room. Untagged section names
// are accepted for the first semester only.
func (s *AssignmentService) pickSection(ctx context.Context, tx *sqlx.Tx, req dto.AssignSectionRequest) (*models.Section, error) {
	open, err := s.sections.ListOpen(ctx, tx, req.Program, req.AcademicYear)
	if err != nil {
		return nil, err
	}
	for i := range open {
		if open[i].MatchesSemester(req.Semester) {
			return &open[i], nil
		}
	}

	siblings, err := s.sections.CountSiblings(ctx, tx, req.Program, req.AcademicYear, req.Semester)
	if err != nil {
		return nil, err
	}
	section := &models.Section{
		Program:      req.Program,
		AcademicYear: req.AcademicYear,
		Name:         models.SectionName(siblings+1, req.Semester),
		Capacity:     req.Capacity,
	}
	if err := s.sections.Create(ctx, tx, section); err != nil {
		return nil, err
	}
	s.logger.Info("created section",
		zap.String("section_id", section.ID),
		zap.String("name", section.Name),
		zap.String("program", req.Program),
		zap.String("academic_year", req.AcademicYear))

	if err := s.generateSchedule(ctx, tx, section, req); err != nil {
		return nil, err
	}
	return section, nil
}

// ensureSchedule backfills meetings for a pre-existing section that has none.
// A section that still has zero meetings afterwards cannot host enrollment.
func (s *AssignmentService) ensureSchedule(ctx context.Context, tx *sqlx.Tx, section *models.Section, req dto.AssignSectionRequest) error {
	scheduled, err := s.scheduler.HasSchedule(ctx, tx, section.ID)
	if err != nil {
		return err
	}
	if scheduled {
		return nil
	}
	if err := s.generateSchedule(ctx, tx, section, req); err != nil {
		return err
	}
	scheduled, err = s.scheduler.HasSchedule(ctx, tx, section.ID)
	if err != nil {
		return err
	}
	if !scheduled {
		return appErrors.Clone(appErrors.ErrNoSchedule, fmt.Sprintf("section %s has no schedule", section.Name))
	}
	return nil
}

func (s *AssignmentService) generateSchedule(ctx context.Context, tx *sqlx.Tx, section *models.Section, req dto.AssignSectionRequest) error {
	courseCodes, err := s.catalog.ListCodes(ctx, tx, req.Program, req.AcademicYear, req.Semester)
	if err != nil {
		return err
	}
	placed, err := s.scheduler.GenerateSchedule(ctx, tx, section.ID, courseCodes)
	if err != nil {
		return err
	}
	if placed < len(courseCodes) {
		s.logger.Warn("schedule generated incomplete",
			zap.String("section_id", section.ID),
			zap.Int("placed", placed),
			zap.Int("courses", len(courseCodes)))
	}
	return nil
}

// enroll applies the three enrollment branches: fresh enrollment, transfer,
// and repeated assignment to the same section. On a transfer the target is
// incremented before the old section is decremented so the capacity guard is
// exercised first.
func (s *AssignmentService) enroll(ctx context.Context, tx *sqlx.Tx, studentUsername string, section *models.Section) (string, error) {
	now := s.now()
	existing, err := s.enrollments.FindByStudent(ctx, tx, studentUsername)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	switch {
	case existing == nil:
		enrollment := &models.SectionEnrollment{
			ID:              repository.SectionEnrollmentID(studentUsername, section.ID),
			StudentUsername: studentUsername,
			SectionID:       section.ID,
			EnrolledAt:      now,
		}
		if err := s.enrollments.Create(ctx, tx, enrollment); err != nil {
			return "", err
		}
		if err := s.incrementGuarded(ctx, tx, section); err != nil {
			return "", err
		}
		return assignmentOutcomeEnrolled, nil

	case existing.SectionID != section.ID:
		if err := s.incrementGuarded(ctx, tx, section); err != nil {
			return "", err
		}
		if _, err := s.sections.DecrementCount(ctx, tx, existing.SectionID); err != nil {
			return "", err
		}
		if err := s.enrollments.Repoint(ctx, tx, existing.ID, section.ID, now); err != nil {
			return "", err
		}
		return assignmentOutcomeTransferred, nil

	default:
		if err := s.enrollments.Touch(ctx, tx, existing.ID, now); err != nil {
			return "", err
		}
		return assignmentOutcomeUnchanged, nil
	}
}

func (s *AssignmentService) incrementGuarded(ctx context.Context, tx *sqlx.Tx, section *models.Section) error {
	updated, err := s.sections.IncrementCount(ctx, tx, section.ID)
	if err != nil {
		return err
	}
	if !updated {
		return appErrors.Clone(appErrors.ErrCapacityExceeded, fmt.Sprintf("section %s is full", section.Name))
	}
	section.CurrentCount++
	return nil
}
