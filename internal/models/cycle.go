package models

import "time"

// Semester enumerates the two semesters of an academic year.
type Semester string

const (
	SemesterFirst  Semester = "1st"
	SemesterSecond Semester = "2nd"
)

// Valid reports whether the semester carries one of the two known values.
func (s Semester) Valid() bool {
	return s == SemesterFirst || s == SemesterSecond
}

// CycleSettingsID is the fixed key of the singleton cycle settings record.
const CycleSettingsID = "enrollment-cycle"

// CycleSettings is the single persisted record describing the enrollment cycle.
// It is only mutated by the cycle state machine and the explicit open/reset
// commands; Version is bumped on every persist.
type CycleSettings struct {
	ID                  string     `db:"id" json:"id"`
	Semester            Semester   `db:"semester" json:"semester"`
	AcademicYear        string     `db:"academic_year" json:"academic_year"`
	IsOpen              bool       `db:"is_open" json:"is_open"`
	OpenedAt            *time.Time `db:"opened_at" json:"opened_at,omitempty"`
	ClosesAt            *time.Time `db:"closes_at" json:"closes_at,omitempty"`
	OpenDurationSeconds *int64     `db:"open_duration_seconds" json:"open_duration_seconds,omitempty"`

	Semester1StartedAt      *time.Time `db:"semester1_started_at" json:"semester1_started_at,omitempty"`
	Semester1EndsAt         *time.Time `db:"semester1_ends_at" json:"semester1_ends_at,omitempty"`
	Semester1PlannedMonths  *int64     `db:"semester1_planned_months" json:"semester1_planned_months,omitempty"`
	Semester1PlannedSeconds *int64     `db:"semester1_planned_seconds" json:"semester1_planned_seconds,omitempty"`

	Semester2StartedAt      *time.Time `db:"semester2_started_at" json:"semester2_started_at,omitempty"`
	Semester2EndsAt         *time.Time `db:"semester2_ends_at" json:"semester2_ends_at,omitempty"`
	Semester2PlannedMonths  *int64     `db:"semester2_planned_months" json:"semester2_planned_months,omitempty"`
	Semester2PlannedSeconds *int64     `db:"semester2_planned_seconds" json:"semester2_planned_seconds,omitempty"`

	Version   int64     `db:"version" json:"version"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultCycleSettings returns the record as created on first use or after an
// explicit reset: first semester, closed, no runtime or planned fields.
func DefaultCycleSettings(academicYear string, now time.Time) *CycleSettings {
	return &CycleSettings{
		ID:           CycleSettingsID,
		Semester:     SemesterFirst,
		AcademicYear: academicYear,
		UpdatedAt:    now,
	}
}

// SemesterStarted reports whether the given semester's term has been stamped.
func (c *CycleSettings) SemesterStarted(sem Semester) bool {
	if sem == SemesterSecond {
		return c.Semester2StartedAt != nil
	}
	return c.Semester1StartedAt != nil
}

// ClearOpenWindow drops the enrollment-window fields; the semester must be
// re-opened explicitly afterwards.
func (c *CycleSettings) ClearOpenWindow() {
	c.IsOpen = false
	c.OpenedAt = nil
	c.ClosesAt = nil
	c.OpenDurationSeconds = nil
}

// CycleNotification is the broadcast payload emitted after every persisting
// cycle transition. Delivery is best-effort and never blocks the transition.
type CycleNotification struct {
	Semester       Semester   `json:"semester"`
	AcademicYear   string     `json:"academic_year"`
	IsOpen         bool       `json:"is_open"`
	OpenedAt       *time.Time `json:"opened_at,omitempty"`
	ClosesAt       *time.Time `json:"closes_at,omitempty"`
	Semester1Start *time.Time `json:"semester1_start,omitempty"`
	Semester1End   *time.Time `json:"semester1_end,omitempty"`
	Semester2Start *time.Time `json:"semester2_start,omitempty"`
	Semester2End   *time.Time `json:"semester2_end,omitempty"`
	Audience       string     `json:"audience"`
	EmittedAt      time.Time  `json:"emitted_at"`
}
