package dto

import (
	"time"

	"github.com/noah-isme/sma-enroll-api/internal/models"
)

// OpenEnrollmentRequest opens the enrollment window for the active semester
// and records the planned term duration.
type OpenEnrollmentRequest struct {
	Semester       models.Semester `json:"semester" validate:"required"`
	EnrollSeconds  int64           `json:"enroll_seconds" validate:"required,gt=0"`
	PlannedMonths  int64           `json:"planned_months" validate:"min=0"`
	PlannedSeconds int64           `json:"planned_seconds" validate:"min=0"`
}

// CycleResponse is the cycle settings snapshot returned to clients.
type CycleResponse struct {
	Semester            models.Semester `json:"semester"`
	AcademicYear        string          `json:"academic_year"`
	IsOpen              bool            `json:"is_open"`
	OpenedAt            *time.Time      `json:"opened_at,omitempty"`
	ClosesAt            *time.Time      `json:"closes_at,omitempty"`
	OpenDurationSeconds *int64          `json:"open_duration_seconds,omitempty"`
	Semester1StartedAt  *time.Time      `json:"semester1_started_at,omitempty"`
	Semester1EndsAt     *time.Time      `json:"semester1_ends_at,omitempty"`
	Semester2StartedAt  *time.Time      `json:"semester2_started_at,omitempty"`
	Semester2EndsAt     *time.Time      `json:"semester2_ends_at,omitempty"`
	Version             int64           `json:"version"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// NewCycleResponse maps the persisted record onto its API shape.
func NewCycleResponse(settings *models.CycleSettings) CycleResponse {
	return CycleResponse{
		Semester:            settings.Semester,
		AcademicYear:        settings.AcademicYear,
		IsOpen:              settings.IsOpen,
		OpenedAt:            settings.OpenedAt,
		ClosesAt:            settings.ClosesAt,
		OpenDurationSeconds: settings.OpenDurationSeconds,
		Semester1StartedAt:  settings.Semester1StartedAt,
		Semester1EndsAt:     settings.Semester1EndsAt,
		Semester2StartedAt:  settings.Semester2StartedAt,
		Semester2EndsAt:     settings.Semester2EndsAt,
		Version:             settings.Version,
		UpdatedAt:           settings.UpdatedAt,
	}
}
