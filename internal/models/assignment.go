package models

import "time"

// Assignment is a graded task attached to a course.
type Assignment struct {
	ID        int64      `db:"id" json:"id"`
	CourseID  int64      `db:"course_id" json:"course_id"`
	MaxPoints int        `db:"max_points" json:"max_points"`
	DueDate   *time.Time `db:"due_date" json:"due_date,omitempty"`
}

// Submission is a student's answer to an assignment. A nil Grade means ungraded.
type Submission struct {
	ID           int64     `db:"id" json:"id"`
	AssignmentID int64     `db:"assignment_id" json:"assignment_id"`
	StudentID    int64     `db:"student_id" json:"student_id"`
	Grade        *float64  `db:"grade" json:"grade,omitempty"`
	SubmittedAt  time.Time `db:"submitted_at" json:"submitted_at"`
	IsLate       bool      `db:"is_late" json:"is_late"`
}
