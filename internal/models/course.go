package models

import "time"

// Course is a mentor-owned course offering.
type Course struct {
	ID              int64     `db:"id" json:"id"`
	Title           string    `db:"title" json:"title"`
	MentorID        int64     `db:"mentor_id" json:"mentor_id"`
	Category        string    `db:"category" json:"category"`
	DifficultyLevel string    `db:"difficulty_level" json:"difficulty_level"`
	DurationHours   *int      `db:"duration_hours" json:"duration_hours,omitempty"`
	Price           float64   `db:"price" json:"price"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Module is an ordered unit of course content.
type Module struct {
	ID              int64 `db:"id" json:"id"`
	CourseID        int64 `db:"course_id" json:"course_id"`
	OrderIndex      int   `db:"order_index" json:"order_index"`
	DurationMinutes *int  `db:"duration_minutes" json:"duration_minutes,omitempty"`
}

// CourseReview is a student's rating of a course.
type CourseReview struct {
	ID        int64     `db:"id" json:"id"`
	CourseID  int64     `db:"course_id" json:"course_id"`
	StudentID int64     `db:"student_id" json:"student_id"`
	Rating    int       `db:"rating" json:"rating"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
