package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damp-platform/damp-api/internal/models"
)

func newSnapshotRepoMock(t *testing.T) (*SnapshotRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewSnapshotRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func TestSnapshotRepositoryLoad(t *testing.T) {
	repo, mock, cleanup := newSnapshotRepoMock(t)
	defer cleanup()

	now := time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)
	grade := 88.5

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT now()")).
		WillReturnRows(sqlmock.NewRows([]string{"now"}).AddRow(now))
	mock.ExpectQuery(regexp.QuoteMeta(selectUsers)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "first_name", "last_name", "role", "expertise", "is_active", "is_approved", "created_at"}).
			AddRow(1, "mentor@damp.dev", "Ada", "Lovelace", "mentor", "go", true, true, now).
			AddRow(2, "student@damp.dev", "Alan", "Turing", "student", nil, true, true, now))
	mock.ExpectQuery(regexp.QuoteMeta(selectCourses)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "mentor_id", "category", "difficulty_level", "duration_hours", "price", "is_active", "created_at"}).
			AddRow(10, "Go Basics", 1, "programming", "beginner", 12, 0.0, true, now))
	mock.ExpectQuery(regexp.QuoteMeta(selectModules)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "order_index", "duration_minutes"}).
			AddRow(1, 10, 1, 45))
	mock.ExpectQuery(regexp.QuoteMeta(selectEnrollments)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "course_id", "enrollment_date", "completion_percentage", "is_completed", "completion_date"}).
			AddRow(1, 2, 10, now, 100.0, true, now))
	mock.ExpectQuery(regexp.QuoteMeta(selectAssignments)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "max_points", "due_date"}).
			AddRow(1, 10, 100, nil))
	mock.ExpectQuery(regexp.QuoteMeta(selectSubmissions)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "assignment_id", "student_id", "grade", "submitted_at", "is_late"}).
			AddRow(1, 1, 2, grade, now, false).
			AddRow(2, 1, 2, nil, now, true))
	mock.ExpectQuery(regexp.QuoteMeta(selectReviews)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "student_id", "rating", "created_at"}).
			AddRow(1, 10, 2, 5, now))
	mock.ExpectQuery(regexp.QuoteMeta(selectEvents)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "event_type", "created_at"}).
			AddRow(1, 2, "lesson_view", now).
			AddRow(2, nil, "page_view", now))
	mock.ExpectCommit()

	snap, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, now, snap.AsOf)
	require.Len(t, snap.Users, 2)
	assert.Equal(t, models.RoleMentor, snap.Users[0].Role)
	require.NotNil(t, snap.Users[0].Expertise)
	assert.Nil(t, snap.Users[1].Expertise)
	require.Len(t, snap.Courses, 1)
	assert.Equal(t, int64(1), snap.Courses[0].MentorID)
	require.Len(t, snap.Submissions, 2)
	require.NotNil(t, snap.Submissions[0].Grade)
	assert.Equal(t, grade, *snap.Submissions[0].Grade)
	assert.Nil(t, snap.Submissions[1].Grade)
	require.Len(t, snap.Events, 2)
	assert.Nil(t, snap.Events[1].UserID)
	assert.Len(t, snap.Reviews, 1)
	assert.Len(t, snap.Modules, 1)
}

func TestSnapshotRepositoryLoadRollsBackOnError(t *testing.T) {
	repo, mock, cleanup := newSnapshotRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT now()")).
		WillReturnRows(sqlmock.NewRows([]string{"now"}).AddRow(time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta(selectUsers)).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	snap, err := repo.Load(context.Background())
	require.Error(t, err)
	assert.Nil(t, snap)
	assert.Contains(t, err.Error(), "load users")
	require.NoError(t, mock.ExpectationsWereMet())
}
