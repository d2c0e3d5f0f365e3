package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enroll-api/internal/dto"
	"github.com/noah-isme/sma-enroll-api/internal/models"
	appErrors "github.com/noah-isme/sma-enroll-api/pkg/errors"
)

const cycleCacheKey = "cycle:settings"

// Transition kinds recorded on metrics and logs.
const (
	transitionClose        = "close_window"
	transitionSemester     = "semester_rollover"
	transitionAcademicYear = "year_rollover"
)

type cycleRepository interface {
	Get(ctx context.Context) (*models.CycleSettings, error)
	Upsert(ctx context.Context, settings *models.CycleSettings) error
}

type cycleBroadcaster interface {
	Publish(event models.CycleNotification)
}

// CycleService owns the persisted enrollment-cycle state and advances it
// through open/closed/semester/academic-year transitions. It is driven by a
// single periodic caller; concurrent drivers would make the record replace
// last-writer-wins.
type CycleService struct {
	repo        cycleRepository
	broadcaster cycleBroadcaster
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewCycleService constructs a CycleService.
func NewCycleService(repo cycleRepository, broadcaster cycleBroadcaster, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CycleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CycleService{
		repo:        repo,
		broadcaster: broadcaster,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the wall clock, used by tests.
func (s *CycleService) WithClock(now func() time.Time) *CycleService {
	if now != nil {
		s.now = now
	}
	return s
}

// Current returns the settings snapshot, cache-first. The record is created
// with defaults on first use.
func (s *CycleService) Current(ctx context.Context) (*models.CycleSettings, error) {
	var cached models.CycleSettings
	if hit, _ := s.cache.Get(ctx, cycleCacheKey, &cached); hit {
		return &cached, nil
	}
	settings, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, cycleCacheKey, settings, 0)
	return settings, nil
}

// Normalize advances the cycle against wall-clock time. Transitions are
// evaluated in order: close the enrollment window, roll 1st semester into
// 2nd, roll 2nd semester into the next academic year. Any combination that
// changes the record persists once and broadcasts once.
func (s *CycleService) Normalize(ctx context.Context) error {
	settings, err := s.load(ctx)
	if err != nil {
		return err
	}

	transitions := advanceCycle(settings, s.now())
	if len(transitions) == 0 {
		return nil
	}

	if err := s.persistAndBroadcast(ctx, settings); err != nil {
		return err
	}
	for _, transition := range transitions {
		s.metrics.RecordCycleTransition(transition)
	}
	s.logger.Info("cycle normalized",
		zap.Strings("transitions", transitions),
		zap.String("semester", string(settings.Semester)),
		zap.String("academic_year", settings.AcademicYear))
	return nil
}

// OpenEnrollment opens the enrollment window for the active semester.
func (s *CycleService) OpenEnrollment(ctx context.Context, req dto.OpenEnrollmentRequest) (*models.CycleSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid open enrollment payload")
	}
	if !req.Semester.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester must be 1st or 2nd")
	}
	if req.PlannedMonths <= 0 && req.PlannedSeconds <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "planned duration must be positive")
	}

	settings, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if req.Semester != settings.Semester {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("enrollment can only be opened for the active semester (%s)", settings.Semester))
	}
	if settings.SemesterStarted(req.Semester) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("%s semester has already started", req.Semester))
	}

	now := s.now()
	closesAt := now.Add(time.Duration(req.EnrollSeconds) * time.Second)
	settings.IsOpen = true
	settings.OpenedAt = &now
	settings.ClosesAt = &closesAt
	settings.OpenDurationSeconds = &req.EnrollSeconds
	if req.Semester == models.SemesterSecond {
		settings.Semester2PlannedMonths = optionalInt64(req.PlannedMonths)
		settings.Semester2PlannedSeconds = optionalInt64(req.PlannedSeconds)
	} else {
		settings.Semester1PlannedMonths = optionalInt64(req.PlannedMonths)
		settings.Semester1PlannedSeconds = optionalInt64(req.PlannedSeconds)
	}

	if err := s.persistAndBroadcast(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Reset restores the full default state regardless of the current one.
func (s *CycleService) Reset(ctx context.Context) (*models.CycleSettings, error) {
	now := s.now()
	settings := models.DefaultCycleSettings(defaultAcademicYear(now), now)
	if err := s.persistAndBroadcast(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *CycleService) load(ctx context.Context) (*models.CycleSettings, error) {
	settings, err := s.repo.Get(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load cycle settings")
	}

	// First use: the default record is a persisting change like any other,
	// so observers hear about it too.
	now := s.now()
	settings = models.DefaultCycleSettings(defaultAcademicYear(now), now)
	if err := s.persistAndBroadcast(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *CycleService) persistAndBroadcast(ctx context.Context, settings *models.CycleSettings) error {
	if err := s.repo.Upsert(ctx, settings); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist cycle settings")
	}
	_ = s.cache.Set(ctx, cycleCacheKey, settings, 0)
	if s.broadcaster != nil {
		s.broadcaster.Publish(models.CycleNotification{
			Semester:       settings.Semester,
			AcademicYear:   settings.AcademicYear,
			IsOpen:         settings.IsOpen,
			OpenedAt:       settings.OpenedAt,
			ClosesAt:       settings.ClosesAt,
			Semester1Start: settings.Semester1StartedAt,
			Semester1End:   settings.Semester1EndsAt,
			Semester2Start: settings.Semester2StartedAt,
			Semester2End:   settings.Semester2EndsAt,
			Audience:       AdminAudience,
		})
	}
	return nil
}

// advanceCycle applies the timer transitions in order and reports which ones
// fired. It mutates settings in place and performs no I/O.
func advanceCycle(settings *models.CycleSettings, now time.Time) []string {
	var transitions []string

	// Open window elapsed: close it and stamp the semester term, at most once
	// per cycle per semester.
	if settings.IsOpen && settings.ClosesAt != nil && !now.Before(*settings.ClosesAt) {
		closedAt := *settings.ClosesAt
		settings.ClearOpenWindow()
		if settings.Semester == models.SemesterSecond {
			if settings.Semester2StartedAt == nil {
				endsAt := addPlanned(closedAt, settings.Semester2PlannedMonths, settings.Semester2PlannedSeconds)
				settings.Semester2StartedAt = &closedAt
				settings.Semester2EndsAt = &endsAt
			}
		} else if settings.Semester1StartedAt == nil {
			endsAt := addPlanned(closedAt, settings.Semester1PlannedMonths, settings.Semester1PlannedSeconds)
			settings.Semester1StartedAt = &closedAt
			settings.Semester1EndsAt = &endsAt
		}
		transitions = append(transitions, transitionClose)
	}

	// First semester term elapsed: move to the second semester. The window
	// fields are cleared; the new semester must be re-opened explicitly.
	if settings.Semester == models.SemesterFirst && settings.Semester1EndsAt != nil && !now.Before(*settings.Semester1EndsAt) {
		settings.Semester = models.SemesterSecond
		settings.ClearOpenWindow()
		transitions = append(transitions, transitionSemester)
	}

	// Second semester term elapsed: full cycle reset into the next academic
	// year.
	if settings.Semester == models.SemesterSecond && settings.Semester2EndsAt != nil && !now.Before(*settings.Semester2EndsAt) {
		settings.AcademicYear = NextAcademicYear(settings.AcademicYear, now)
		settings.Semester = models.SemesterFirst
		settings.ClearOpenWindow()
		settings.Semester1StartedAt = nil
		settings.Semester1EndsAt = nil
		settings.Semester1PlannedMonths = nil
		settings.Semester1PlannedSeconds = nil
		settings.Semester2StartedAt = nil
		settings.Semester2EndsAt = nil
		settings.Semester2PlannedMonths = nil
		settings.Semester2PlannedSeconds = nil
		transitions = append(transitions, transitionAcademicYear)
	}

	return transitions
}

// NextAcademicYear rolls a "YYYY-YYYY" academic year forward by one year.
// Unparsable input falls back to the year derived from the wall clock.
func NextAcademicYear(academicYear string, now time.Time) string {
	if len(academicYear) >= 4 {
		if year, err := strconv.Atoi(academicYear[:4]); err == nil {
			return fmt.Sprintf("%d-%d", year+1, year+2)
		}
	}
	return defaultAcademicYear(now)
}

func defaultAcademicYear(now time.Time) string {
	return fmt.Sprintf("%d-%d", now.Year(), now.Year()+1)
}

func addPlanned(start time.Time, months, seconds *int64) time.Time {
	result := start
	if months != nil && *months > 0 {
		result = result.AddDate(0, int(*months), 0)
	}
	if seconds != nil && *seconds > 0 {
		result = result.Add(time.Duration(*seconds) * time.Second)
	}
	return result
}

func optionalInt64(value int64) *int64 {
	if value <= 0 {
		return nil
	}
	return &value
}
