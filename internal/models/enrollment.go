package models

import "time"

// Enrollment links a student to a course and tracks progress.
type Enrollment struct {
	ID                   int64      `db:"id" json:"id"`
	StudentID            int64      `db:"student_id" json:"student_id"`
	CourseID             int64      `db:"course_id" json:"course_id"`
	EnrollmentDate       time.Time  `db:"enrollment_date" json:"enrollment_date"`
	CompletionPercentage float64    `db:"completion_percentage" json:"completion_percentage"`
	IsCompleted          bool       `db:"is_completed" json:"is_completed"`
	CompletionDate       *time.Time `db:"completion_date" json:"completion_date,omitempty"`
}
