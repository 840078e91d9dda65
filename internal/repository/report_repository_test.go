package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damp-platform/damp-api/internal/models"
)

var reportJobRowColumns = []string{"id", "type", "params", "status", "progress", "result_url", "created_by", "created_at", "finished_at", "error_message"}

func newReportRepoMock(t *testing.T) (*ReportRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewReportRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func TestReportRepositoryCreateAndGet(t *testing.T) {
	repo, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_jobs")).
		WithArgs(sqlmock.AnyArg(), "mentors", sqlmock.AnyArg(), "QUEUED", 0, nil, int64(7), sqlmock.AnyArg(), nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ReportJob{
		Type:      models.ReportTypeMentors,
		Params:    models.ReportJobParams{Format: models.ReportFormatCSV},
		CreatedBy: 7,
	}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEmpty(t, job.ID)
	assert.Equal(t, models.ReportStatusQueued, job.Status)

	rows := sqlmock.NewRows(reportJobRowColumns).
		AddRow(job.ID, "mentors", `{"format":"csv","courseId":10}`, "QUEUED", 0, nil, 7, time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message FROM report_jobs WHERE id = $1")).
		WithArgs(job.ID).
		WillReturnRows(rows)

	fetched, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, fetched.ID)
	assert.Equal(t, models.ReportFormatCSV, fetched.Params.Format)
	require.NotNil(t, fetched.Params.CourseID)
	assert.Equal(t, int64(10), *fetched.Params.CourseID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdate(t *testing.T) {
	repo, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	now := time.Now()
	status := models.ReportStatusFinished
	progress := 100
	result := "/api/v1/export/token"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_jobs SET status = $1, progress = $2, result_url = $3, finished_at = $4 WHERE id = $5")).
		WithArgs(status, progress, result, now, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateReportJobParams{
		Status:     &status,
		Progress:   &progress,
		ResultURL:  &result,
		FinishedAt: &now,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateReportJobParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListQueued(t *testing.T) {
	repo, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows(reportJobRowColumns).
		AddRow("job-1", "trend", `{"format":"pdf","months":6}`, "QUEUED", 0, nil, 1, time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM report_jobs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1")).
		WithArgs(20).
		WillReturnRows(rows)

	jobs, err := repo.ListQueued(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 6, jobs[0].Params.Months)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListFinishedBeforeAndClear(t *testing.T) {
	repo, mock, cleanup := newReportRepoMock(t)
	defer cleanup()

	cutoff := time.Now().Add(-time.Hour)
	finished := cutoff.Add(-time.Hour)
	url := "/api/v1/export/abc"
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'FINISHED'")).
		WithArgs(cutoff, 50).
		WillReturnRows(sqlmock.NewRows(reportJobRowColumns).
			AddRow("job-2", "summary", `{"format":"json"}`, "FINISHED", 100, url, 1, finished, finished, nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_jobs SET result_url = NULL WHERE id = $1")).
		WithArgs("job-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	jobs, err := repo.ListFinishedBefore(context.Background(), cutoff, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NotNil(t, jobs[0].ResultURL)
	require.NoError(t, repo.ClearResult(context.Background(), "job-2"))
	require.NoError(t, mock.ExpectationsWereMet())
}
