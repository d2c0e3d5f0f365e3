package models

import (
	"fmt"
	"strings"
	"time"
)

// SecondSemesterTag marks a section name as belonging to the second semester.
const SecondSemesterTag = "-S2"

// Section is a capacity-bounded group of students sharing one weekly schedule.
// Invariant: 0 <= CurrentCount <= Capacity, enforced by guarded updates.
type Section struct {
	ID           string    `db:"id" json:"id"`
	Program      string    `db:"program" json:"program"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	Name         string    `db:"name" json:"name"`
	Capacity     int       `db:"capacity" json:"capacity"`
	CurrentCount int       `db:"current_count" json:"current_count"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// SectionName encodes the block number and semester tag into a section name.
func SectionName(block int, sem Semester) string {
	name := fmt.Sprintf("BLOCK %d", block)
	if sem == SemesterSecond {
		name += SecondSemesterTag
	}
	return name
}

// MatchesSemester reports whether the section name carries the right tag for
// the given semester. Untagged sections are a legacy fallback accepted for
// the first semester only.
func (s *Section) MatchesSemester(sem Semester) bool {
	tagged := strings.HasSuffix(s.Name, SecondSemesterTag)
	if sem == SemesterSecond {
		return tagged
	}
	return !tagged
}

// SectionFilter provides filters for listing sections.
type SectionFilter struct {
	Program      string
	AcademicYear string
	Page         int
	PageSize     int
}

// SectionEnrollment is the join point between a student identity and a
// section. A student has at most one active record; a transfer re-points the
// record rather than duplicating it.
type SectionEnrollment struct {
	ID              string    `db:"id" json:"id"`
	StudentUsername string    `db:"student_username" json:"student_username"`
	SectionID       string    `db:"section_id" json:"section_id"`
	EnrolledAt      time.Time `db:"enrolled_at" json:"enrolled_at"`
}
