package analytics

import (
	"time"

	"github.com/damp-platform/damp-api/internal/models"
)

var fixedNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func ptrFloat(v float64) *float64 { return &v }

func ptrInt64(v int64) *int64 { return &v }

func mentor(id int64, approved, active bool) models.User {
	return models.User{ID: id, Email: "m@example.com", FirstName: "Mentor", LastName: "One", Role: models.RoleMentor, IsApproved: approved, IsActive: active, CreatedAt: fixedNow.AddDate(-1, 0, 0)}
}

func student(id int64) models.User {
	return models.User{ID: id, FirstName: "Student", Role: models.RoleStudent, IsApproved: true, IsActive: true, CreatedAt: fixedNow.AddDate(-1, 0, 0)}
}

func course(id, mentorID int64, active bool) models.Course {
	return models.Course{ID: id, Title: "Course", MentorID: mentorID, Category: "programming", DifficultyLevel: "beginner", IsActive: active, CreatedAt: fixedNow.AddDate(-1, 0, 0)}
}

func enrollments(courseID int64, firstStudent int64, total, completed int, at time.Time) []models.Enrollment {
	out := make([]models.Enrollment, 0, total)
	for i := 0; i < total; i++ {
		e := models.Enrollment{
			ID:             courseID*1000 + int64(i),
			StudentID:      firstStudent + int64(i),
			CourseID:       courseID,
			EnrollmentDate: at,
		}
		if i < completed {
			e.IsCompleted = true
			e.CompletionPercentage = 100
		}
		out = append(out, e)
	}
	return out
}

// baseSnapshot has one approved mentor (1) owning an active course (10) with ten
// enrollments, six completed, plus an inactive course (11) that must never count.
func baseSnapshot() *Snapshot {
	users := []models.User{mentor(1, true, true), mentor(2, true, true)}
	for i := int64(100); i < 110; i++ {
		users = append(users, student(i))
	}
	snap := &Snapshot{
		AsOf:    fixedNow,
		Users:   users,
		Courses: []models.Course{course(10, 1, true), course(11, 1, false)},
	}
	snap.Enrollments = append(snap.Enrollments, enrollments(10, 100, 10, 6, fixedNow.AddDate(0, -1, 0))...)
	snap.Enrollments = append(snap.Enrollments, enrollments(11, 100, 4, 4, fixedNow.AddDate(0, -1, 0))...)
	return snap
}
