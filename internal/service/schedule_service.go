package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enroll-api/internal/models"
	"github.com/noah-isme/sma-enroll-api/internal/repository"
)

// The weekly grid: Monday through Friday, five teaching slots per day.
const (
	SchoolDays    = 5
	SlotsPerDay   = 5
	weeklyWindows = SchoolDays * SlotsPerDay
)

// slotTimes maps slot 1..5 to its human-readable window.
var slotTimes = [SlotsPerDay]string{
	"07:30-08:30",
	"08:30-09:30",
	"10:00-11:00",
	"11:00-12:00",
	"13:00-14:00",
}

type meetingWriter interface {
	Insert(ctx context.Context, exec sqlx.ExtContext, meeting *models.Meeting) error
	CountBySection(ctx context.Context, exec sqlx.ExtContext, sectionID string) (int, error)
}

type roomLister interface {
	List(ctx context.Context, exec sqlx.ExtContext) ([]models.Room, error)
}

// ScheduleService generates a section's weekly timetable, placing each course
// of the catalog into one free (day, slot, room) window.
type ScheduleService struct {
	meetings  meetingWriter
	rooms     roomLister
	allocator *RoomAllocator
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(meetings meetingWriter, rooms roomLister, allocator *RoomAllocator, metrics *MetricsService, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		meetings:  meetings,
		rooms:     rooms,
		allocator: allocator,
		metrics:   metrics,
		logger:    logger,
	}
}

// GenerateSchedule places every course of courseCodes into the section's
// week. Courses are offset-rotated across the grid so sibling sections spread
// over different windows instead of piling onto Monday's first slot. A course
// that cannot be seated anywhere is logged and skipped; the count of placed
// courses is returned.
func (s *ScheduleService) GenerateSchedule(ctx context.Context, exec sqlx.ExtContext, sectionID string, courseCodes []string) (int, error) {
	if len(courseCodes) == 0 {
		return 0, nil
	}
	rooms, err := s.rooms.List(ctx, exec)
	if err != nil {
		return 0, fmt.Errorf("load rooms: %w", err)
	}

	placed := 0
	for _, courseCode := range courseCodes {
		seated, err := s.placeCourse(ctx, exec, sectionID, courseCode, placed, rooms)
		if err != nil {
			return placed, err
		}
		if !seated {
			s.logger.Warn("course could not be seated",
				zap.String("section_id", sectionID),
				zap.String("course_code", courseCode))
			continue
		}
		placed++
		s.metrics.RecordMeetingCreated()
	}
	return placed, nil
}

// placeCourse scans the weekly grid cyclically starting from an offset and
// books the first window with a free room. A conflicting insert means another
// run took the window first; the scan simply moves on.
func (s *ScheduleService) placeCourse(ctx context.Context, exec sqlx.ExtContext, sectionID, courseCode string, offset int, rooms []models.Room) (bool, error) {
	for step := 0; step < weeklyWindows; step++ {
		window := (offset + step) % weeklyWindows
		day := window/SlotsPerDay + 1
		slot := window%SlotsPerDay + 1

		room, err := s.allocator.FindFreeRoom(ctx, exec, day, slot, rooms)
		if err != nil {
			return false, err
		}
		if room == nil {
			continue
		}

		meeting := &models.Meeting{
			SectionID:   sectionID,
			CourseCode:  courseCode,
			RoomID:      room.ID,
			DayOfWeek:   day,
			Slot:        slot,
			DisplayTime: slotTimes[slot-1],
		}
		if err := s.meetings.Insert(ctx, exec, meeting); err != nil {
			if errors.Is(err, repository.ErrMeetingConflict) {
				continue
			}
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// HasSchedule reports whether the section already carries meetings.
func (s *ScheduleService) HasSchedule(ctx context.Context, exec sqlx.ExtContext, sectionID string) (bool, error) {
	count, err := s.meetings.CountBySection(ctx, exec, sectionID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
