package models

// CourseOffering is one row of the ordered course catalog for a program,
// academic year and semester. Position fixes the generation order.
type CourseOffering struct {
	ID           string   `db:"id" json:"id"`
	Program      string   `db:"program" json:"program"`
	AcademicYear string   `db:"academic_year" json:"academic_year"`
	Semester     Semester `db:"semester" json:"semester"`
	CourseCode   string   `db:"course_code" json:"course_code"`
	Position     int      `db:"position" json:"position"`
}
