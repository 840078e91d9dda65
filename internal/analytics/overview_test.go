package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damp-platform/damp-api/internal/models"
	appErrors "github.com/damp-platform/damp-api/pkg/errors"
)

func TestPlatformOverview(t *testing.T) {
	snap := baseSnapshot()
	newcomer := student(500)
	newcomer.CreatedAt = fixedNow.AddDate(0, 0, -2)
	snap.Users = append(snap.Users, newcomer, mentor(501, false, true))
	snap.Enrollments = append(snap.Enrollments, enrollments(10, 500, 1, 0, fixedNow.AddDate(0, 0, -1))...)

	overview, err := ComputePlatformOverview(snap, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, UserTotals{Total: 14, Active: 14, Students: 11, Mentors: 2, PendingMentors: 1}, overview.Users)
	assert.Equal(t, CourseTotals{Total: 2, Active: 1}, overview.Courses)
	assert.Equal(t, CompletionRate{Total: 11, Completed: 6, Percentage: 54.55}, overview.Enrollments)
	assert.Equal(t, RecentActivity{Registrations: 1, Enrollments: 1}, overview.Recent)
}

func TestUserGrowth(t *testing.T) {
	snap := &Snapshot{Users: []models.User{
		{ID: 1, Role: models.RoleStudent, CreatedAt: time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Role: models.RoleMentor, CreatedAt: time.Date(2024, time.June, 4, 0, 0, 0, 0, time.UTC)},
		{ID: 3, Role: models.RoleAdmin, CreatedAt: time.Date(2024, time.April, 4, 0, 0, 0, 0, time.UTC)},
		{ID: 4, Role: models.RoleStudent, CreatedAt: time.Date(2022, time.April, 4, 0, 0, 0, 0, time.UTC)},
	}}

	growth, err := ComputeUserGrowth(snap, fixedNow, 12)
	require.NoError(t, err)
	assert.Equal(t, []MonthlyGrowth{
		{Month: "2024-06", Registrations: 2, Students: 1, Mentors: 1},
		{Month: "2024-04", Registrations: 1, Admins: 1},
	}, growth)

	_, err = ComputeUserGrowth(snap, fixedNow, 0)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidWindow))

	leap := &Snapshot{Users: []models.User{
		{ID: 5, Role: models.RoleStudent, CreatedAt: time.Date(2024, time.February, 29, 18, 0, 0, 0, time.UTC)},
		{ID: 6, Role: models.RoleMentor, CreatedAt: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 7, Role: models.RoleStudent, CreatedAt: time.Date(2024, time.February, 28, 23, 0, 0, 0, time.UTC)},
	}}
	growth, err = ComputeUserGrowth(leap, time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC), 1)
	require.NoError(t, err)
	assert.Equal(t, []MonthlyGrowth{
		{Month: "2024-03", Registrations: 1, Mentors: 1},
		{Month: "2024-02", Registrations: 1, Students: 1},
	}, growth)
}
