package analytics

import (
	"time"

	"github.com/damp-platform/damp-api/internal/models"
)

// Snapshot is a consistent, point-in-time copy of the entity store.
type Snapshot struct {
	AsOf        time.Time
	Users       []models.User
	Courses     []models.Course
	Modules     []models.Module
	Enrollments []models.Enrollment
	Assignments []models.Assignment
	Submissions []models.Submission
	Reviews     []models.CourseReview
	Events      []models.AnalyticsEvent
}

// index holds per-call lookup tables. It is rebuilt for every computation and never shared.
type index struct {
	users       map[int64]models.User
	courses     map[int64]models.Course
	assignments map[int64]models.Assignment
}

func newIndex(snap *Snapshot) *index {
	idx := &index{
		users:       make(map[int64]models.User, len(snap.Users)),
		courses:     make(map[int64]models.Course, len(snap.Courses)),
		assignments: make(map[int64]models.Assignment, len(snap.Assignments)),
	}
	for _, u := range snap.Users {
		idx.users[u.ID] = u
	}
	for _, c := range snap.Courses {
		idx.courses[c.ID] = c
	}
	for _, a := range snap.Assignments {
		idx.assignments[a.ID] = a
	}
	return idx
}

func (idx *index) activeCourse(id int64) (models.Course, bool) {
	c, ok := idx.courses[id]
	if !ok || !c.IsActive {
		return models.Course{}, false
	}
	return c, true
}

func emptySnapshot(snap *Snapshot) *Snapshot {
	if snap == nil {
		return &Snapshot{}
	}
	return snap
}
