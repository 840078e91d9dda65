package analytics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damp-platform/damp-api/internal/models"
	appErrors "github.com/damp-platform/damp-api/pkg/errors"
)

func popularitySnapshot() *Snapshot {
	snap := baseSnapshot()
	snap.Courses = append(snap.Courses, course(7, 2, true), course(8, 2, true), course(9, 2, true))
	snap.Enrollments = append(snap.Enrollments, enrollments(9, 100, 3, 1, fixedNow)...)
	snap.Enrollments = append(snap.Enrollments, enrollments(8, 100, 3, 3, fixedNow)...)
	snap.Reviews = []models.CourseReview{
		{ID: 1, CourseID: 8, StudentID: 100, Rating: 3},
		{ID: 2, CourseID: 8, StudentID: 101, Rating: 4},
	}
	return snap
}

func TestCoursePopularityOrdering(t *testing.T) {
	ranked, err := ComputeCoursePopularity(popularitySnapshot(), 10)
	require.NoError(t, err)

	ids := make([]int64, len(ranked))
	for i, r := range ranked {
		ids[i] = r.CourseID
	}
	// Course 11 is inactive; 8 and 9 tie on enrollments and break on id.
	assert.Equal(t, []int64{10, 8, 9, 7}, ids)

	assert.Equal(t, 3, ranked[1].Completions)
	require.NotNil(t, ranked[1].AverageRating)
	assert.Equal(t, 3.5, *ranked[1].AverageRating)
	assert.Nil(t, ranked[2].AverageRating)
	assert.Zero(t, ranked[3].Enrollments)
}

func TestCoursePopularityLimitAndIdempotency(t *testing.T) {
	snap := popularitySnapshot()

	first, err := ComputeCoursePopularity(snap, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	for i := 0; i < 5; i++ {
		again, err := ComputeCoursePopularity(snap, 2)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCoursePopularityRejectsNonPositiveLimit(t *testing.T) {
	_, err := ComputeCoursePopularity(popularitySnapshot(), 0)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidLimit))
}
