package analytics

import (
	"fmt"

	"github.com/damp-platform/damp-api/internal/models"
	appErrors "github.com/damp-platform/damp-api/pkg/errors"
)

// Scope narrows a metric to one course, one mentor, or (zero value) every active course.
type Scope struct {
	CourseID *int64 `json:"courseId,omitempty"`
	MentorID *int64 `json:"mentorId,omitempty"`
}

// PlatformScope covers all active courses.
func PlatformScope() Scope { return Scope{} }

// CourseScope narrows to a single course.
func CourseScope(id int64) Scope { return Scope{CourseID: &id} }

// MentorScope narrows to the active courses owned by one mentor.
func MentorScope(id int64) Scope { return Scope{MentorID: &id} }

// Key renders the scope for cache keys and filenames.
func (s Scope) Key() string {
	switch {
	case s.CourseID != nil:
		return fmt.Sprintf("course-%d", *s.CourseID)
	case s.MentorID != nil:
		return fmt.Sprintf("mentor-%d", *s.MentorID)
	default:
		return "platform"
	}
}

// Validate rejects scopes naming both a course and a mentor.
func (s Scope) Validate() error {
	if s.CourseID != nil && s.MentorID != nil {
		return appErrors.Clone(appErrors.ErrValidation, "scope accepts either a course or a mentor, not both")
	}
	return nil
}

// courses resolves the scope to the set of active course ids it covers.
func (idx *index) scopeCourses(scope Scope) (map[int64]struct{}, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	set := make(map[int64]struct{})
	switch {
	case scope.CourseID != nil:
		if _, ok := idx.activeCourse(*scope.CourseID); !ok {
			return nil, appErrors.Clone(appErrors.ErrInvalidScope, fmt.Sprintf("course %d not found", *scope.CourseID))
		}
		set[*scope.CourseID] = struct{}{}
	case scope.MentorID != nil:
		mentor, ok := idx.users[*scope.MentorID]
		if !ok || mentor.Role != models.RoleMentor {
			return nil, appErrors.Clone(appErrors.ErrInvalidScope, fmt.Sprintf("mentor %d not found", *scope.MentorID))
		}
		for id, c := range idx.courses {
			if c.IsActive && c.MentorID == mentor.ID {
				set[id] = struct{}{}
			}
		}
	default:
		for id, c := range idx.courses {
			if c.IsActive {
				set[id] = struct{}{}
			}
		}
	}
	return set, nil
}
