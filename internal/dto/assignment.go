package dto

import "github.com/noah-isme/sma-enroll-api/internal/models"

// AssignSectionRequest asks for a student to be placed into a section of the
// given program and academic year. Capacity is only consulted when a new
// section has to be created; zero falls back to the configured default.
type AssignSectionRequest struct {
	StudentUsername string          `json:"student_username" validate:"required"`
	Program         string          `json:"program" validate:"required"`
	AcademicYear    string          `json:"academic_year" validate:"required"`
	Semester        models.Semester `json:"semester" validate:"required"`
	Capacity        int             `json:"capacity" validate:"min=0"`
}

// AssignSectionResponse reports the section the student ended up in.
type AssignSectionResponse struct {
	SectionID   string `json:"section_id"`
	SectionName string `json:"section_name"`
}
