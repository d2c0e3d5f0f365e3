package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-enroll-api/internal/models"
	appErrors "github.com/noah-isme/sma-enroll-api/pkg/errors"
	"github.com/noah-isme/sma-enroll-api/pkg/export"
)

var dayNames = [...]string{"", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

type sectionFinder interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

type timetableReader interface {
	ListBySection(ctx context.Context, sectionID string) ([]models.MeetingDetail, error)
}

// Timetable is a section's weekly schedule joined with the section itself.
type Timetable struct {
	Section  *models.Section        `json:"section"`
	Meetings []models.MeetingDetail `json:"meetings"`
}

// TimetableService exposes the per-section timetable read model and its
// CSV/PDF exports.
type TimetableService struct {
	sections sectionFinder
	meetings timetableReader
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewTimetableService constructs a TimetableService.
func NewTimetableService(sections sectionFinder, meetings timetableReader, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableService{
		sections: sections,
		meetings: meetings,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// Get returns the section and its ordered meetings.
func (s *TimetableService) Get(ctx context.Context, sectionID string) (*Timetable, error) {
	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	meetings, err := s.meetings.ListBySection(ctx, sectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	return &Timetable{Section: section, Meetings: meetings}, nil
}

// Export renders the timetable in the requested format ("csv" or "pdf") and
// returns the payload with its content type.
func (s *TimetableService) Export(ctx context.Context, sectionID, format string) ([]byte, string, error) {
	timetable, err := s.Get(ctx, sectionID)
	if err != nil {
		return nil, "", err
	}
	table := timetableTable(timetable)

	switch format {
	case "csv":
		payload, err := s.csv.Render(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(table)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func timetableTable(timetable *Timetable) export.Table {
	rows := make([][]string, 0, len(timetable.Meetings))
	for _, meeting := range timetable.Meetings {
		rows = append(rows, []string{
			dayName(meeting.DayOfWeek),
			strconv.Itoa(meeting.Slot),
			meeting.DisplayTime,
			meeting.CourseCode,
			meeting.RoomName,
		})
	}
	return export.Table{
		Title:   fmt.Sprintf("Timetable %s (%s %s)", timetable.Section.Name, timetable.Section.Program, timetable.Section.AcademicYear),
		Headers: []string{"Day", "Period", "Time", "Course", "Room"},
		Rows:    rows,
	}
}

func dayName(day int) string {
	if day >= 1 && day < len(dayNames) {
		return dayNames[day]
	}
	return strconv.Itoa(day)
}
