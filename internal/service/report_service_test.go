package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/damp-platform/damp-api/internal/dto"
	"github.com/damp-platform/damp-api/internal/models"
	"github.com/damp-platform/damp-api/internal/repository"
	appErrors "github.com/damp-platform/damp-api/pkg/errors"
	"github.com/damp-platform/damp-api/pkg/jobs"
)

type reportRepoStub struct {
	jobs    map[string]*models.ReportJob
	cleared []string
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{jobs: map[string]*models.ReportJob{}}
}

func (r *reportRepoStub) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.CreatedAt = time.Now().UTC()
	r.jobs[job.ID] = job
	return nil
}

func (r *reportRepoStub) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("get report job %s: %w", id, sql.ErrNoRows)
	}
	return job, nil
}

func (r *reportRepoStub) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return errors.New("not found")
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (r *reportRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	var queued []models.ReportJob
	for _, job := range r.jobs {
		if job.Status == models.ReportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *reportRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	var finished []models.ReportJob
	for _, job := range r.jobs {
		if job.Status == models.ReportStatusFinished && job.ResultURL != nil && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			finished = append(finished, *job)
		}
	}
	return finished, nil
}

func (r *reportRepoStub) ClearResult(ctx context.Context, id string) error {
	r.cleared = append(r.cleared, id)
	if job, ok := r.jobs[id]; ok {
		job.ResultURL = nil
	}
	return nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type courseAccessStub struct {
	owned map[int64]int64
	err   error
}

func (c courseAccessStub) CourseOwner(ctx context.Context, courseID int64) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	owner, ok := c.owned[courseID]
	if !ok {
		return 0, appErrors.Clone(appErrors.ErrInvalidScope, "course not found")
	}
	return owner, nil
}

func newReportServiceForTest(t *testing.T) (*ReportService, *reportRepoStub, *queueStub, *ExportService) {
	t.Helper()
	repo := newReportRepoStub()
	queue := &queueStub{}
	exportSvc, _ := newExportServiceForTest(t)
	access := courseAccessStub{owned: map[int64]int64{10: 1}}
	service := NewReportService(repo, access, queue, exportSvc, zap.NewNop(), ReportServiceConfig{
		ResultTTL:       time.Hour,
		CleanupInterval: time.Hour,
	})
	return service, repo, queue, exportSvc
}

func int64Ptr(v int64) *int64 { return &v }

func TestReportServiceCreateJob(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeMentors,
		Format: models.ReportFormatCSV,
	}, 2, models.RoleAdmin)
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Contains(t, repo.jobs, resp.ID)
	assert.Equal(t, int64(2), repo.jobs[resp.ID].CreatedBy)
}

func TestReportServiceCreateJobValidation(t *testing.T) {
	svc, _, queue, _ := newReportServiceForTest(t)
	cases := []dto.ReportRequest{
		{Type: "attendance", Format: models.ReportFormatCSV},
		{Type: models.ReportTypeGrades, Format: "xlsx"},
		{Type: models.ReportTypeGrades, Format: models.ReportFormatCSV, Bucketing: "curve"},
		{Type: models.ReportTypeGrades, Format: models.ReportFormatCSV, CourseID: int64Ptr(10), MentorID: int64Ptr(1)},
	}
	for _, req := range cases {
		_, err := svc.CreateJob(context.Background(), req, 2, models.RoleAdmin)
		require.Error(t, err)
		assert.ErrorIs(t, err, appErrors.ErrValidation)
	}
	assert.Empty(t, queue.jobs)
}

func TestReportServiceCreateJobMentorScope(t *testing.T) {
	svc, _, queue, _ := newReportServiceForTest(t)
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, dto.ReportRequest{Type: models.ReportTypeGrades, Format: models.ReportFormatCSV, MentorID: int64Ptr(1)}, 1, models.RoleMentor)
	require.NoError(t, err)

	_, err = svc.CreateJob(ctx, dto.ReportRequest{Type: models.ReportTypeCompletion, Format: models.ReportFormatPDF, CourseID: int64Ptr(10)}, 1, models.RoleMentor)
	require.NoError(t, err)

	_, err = svc.CreateJob(ctx, dto.ReportRequest{Type: models.ReportTypeGrades, Format: models.ReportFormatCSV, MentorID: int64Ptr(7)}, 1, models.RoleMentor)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.CreateJob(ctx, dto.ReportRequest{Type: models.ReportTypeCompletion, Format: models.ReportFormatCSV, CourseID: int64Ptr(10)}, 7, models.RoleMentor)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.CreateJob(ctx, dto.ReportRequest{Type: models.ReportTypeCompletion, Format: models.ReportFormatCSV, CourseID: int64Ptr(999)}, 1, models.RoleMentor)
	assert.ErrorIs(t, err, appErrors.ErrInvalidScope)

	_, err = svc.CreateJob(ctx, dto.ReportRequest{Type: models.ReportTypeMentors, Format: models.ReportFormatCSV}, 1, models.RoleMentor)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.CreateJob(ctx, dto.ReportRequest{Type: models.ReportTypeCompletion, Format: models.ReportFormatCSV}, 1, models.RoleMentor)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.CreateJob(ctx, dto.ReportRequest{Type: models.ReportTypeCompletion, Format: models.ReportFormatCSV}, 100, models.RoleStudent)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	assert.Len(t, queue.jobs, 2)
}

func TestReportServiceCreateJobQueueFull(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	queue.err = jobs.ErrQueueFull

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{Type: models.ReportTypeTrend, Format: models.ReportFormatJSON}, 2, models.RoleAdmin)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)
	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
	}
}

func TestReportServiceGetStatus(t *testing.T) {
	svc, repo, _, _ := newReportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-1",
		Type:      models.ReportTypeCompletion,
		Params:    models.ReportJobParams{Format: models.ReportFormatCSV},
		Status:    models.ReportStatusFinished,
		Progress:  100,
		CreatedBy: 1,
	}
	repo.jobs[job.ID] = job

	resp, err := svc.GetStatus(context.Background(), job.ID, 1, models.RoleMentor)
	require.NoError(t, err)
	assert.Equal(t, job.Status, resp.Status)
	assert.Equal(t, job.Progress, resp.Progress)

	_, err = svc.GetStatus(context.Background(), job.ID, 2, models.RoleMentor)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.GetStatus(context.Background(), job.ID, 99, models.RoleAdmin)
	assert.NoError(t, err)

	_, err = svc.GetStatus(context.Background(), "missing", 1, models.RoleAdmin)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func finishedJob(t *testing.T, repo *reportRepoStub, exportSvc *ExportService, id string) (*models.ReportJob, *ExportResult) {
	t.Helper()
	job := &models.ReportJob{
		ID:        id,
		Type:      models.ReportTypeMentors,
		Params:    models.ReportJobParams{Format: models.ReportFormatCSV},
		Status:    models.ReportStatusFinished,
		Progress:  100,
		CreatedBy: 2,
	}
	repo.jobs[job.ID] = job
	result, err := exportSvc.Generate(context.Background(), job)
	require.NoError(t, err)
	job.ResultURL = &result.URL
	now := time.Now()
	job.FinishedAt = &now
	return job, result
}

func TestReportServiceResolveDownload(t *testing.T) {
	svc, repo, _, exportSvc := newReportServiceForTest(t)
	_, result := finishedJob(t, repo, exportSvc, "job-download")

	download, err := svc.ResolveDownload(context.Background(), result.Token)
	require.NoError(t, err)
	defer download.Body.Close()
	assert.Equal(t, result.ObjectName, download.Filename)
	assert.Equal(t, "text/csv", download.ContentType)
	data, err := io.ReadAll(download.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Mentor ID,Mentor")
	assert.Contains(t, string(data), "Reviews,Avg Score,Effectiveness,Tier")
}

func TestReportServiceResolveDownloadRejectsBadTokens(t *testing.T) {
	svc, repo, _, exportSvc := newReportServiceForTest(t)
	job, result := finishedJob(t, repo, exportSvc, "job-tamper")

	_, err := svc.ResolveDownload(context.Background(), result.Token+"x")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	job.Status = models.ReportStatusProcessing
	_, err = svc.ResolveDownload(context.Background(), result.Token)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestReportServiceCleanupExpired(t *testing.T) {
	svc, repo, _, exportSvc := newReportServiceForTest(t)
	job, result := finishedJob(t, repo, exportSvc, "job-old")
	old := time.Now().Add(-2 * time.Hour)
	job.FinishedAt = &old

	svc.CleanupExpired(context.Background())

	assert.Equal(t, []string{"job-old"}, repo.cleared)
	assert.Nil(t, repo.jobs["job-old"].ResultURL)
	_, err := exportSvc.Open(context.Background(), result.ObjectName)
	assert.Error(t, err)
}

func TestReportServiceRecoverPendingJobs(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	repo.jobs["queued"] = &models.ReportJob{ID: "queued", Type: models.ReportTypeTrend, Status: models.ReportStatusQueued}
	repo.jobs["done"] = &models.ReportJob{ID: "done", Type: models.ReportTypeTrend, Status: models.ReportStatusFinished}

	svc.RecoverPendingJobs(context.Background())
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "queued", queue.jobs[0].ID)
}

type exportStub struct {
	result *ExportResult
	err    error
}

func (e exportStub) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

type publisherStub struct {
	keys   []string
	events []models.ReportEvent
}

func (p *publisherStub) Publish(ctx context.Context, suffix string, event interface{}) error {
	p.keys = append(p.keys, suffix)
	p.events = append(p.events, event.(models.ReportEvent))
	return nil
}

func queuedJobRepo() *reportRepoStub {
	return &reportRepoStub{
		jobs: map[string]*models.ReportJob{
			"job-1": {
				ID:        "job-1",
				Type:      models.ReportTypeGrades,
				Params:    models.ReportJobParams{Format: models.ReportFormatCSV},
				Status:    models.ReportStatusQueued,
				CreatedBy: 2,
			},
		},
	}
}

func TestReportWorkerHandleSuccess(t *testing.T) {
	repo := queuedJobRepo()
	publisher := &publisherStub{}
	exporter := exportStub{result: &ExportResult{URL: "/api/v1/export/token"}}
	worker := NewReportWorker(repo, exporter, publisher, NewTelemetryService(), 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, repo.jobs["job-1"].Status)
	assert.Equal(t, 100, repo.jobs["job-1"].Progress)
	require.Equal(t, []string{"finished"}, publisher.keys)
	assert.Equal(t, "/api/v1/export/token", publisher.events[0].ResultURL)
}

func TestReportWorkerHandleFailureRetries(t *testing.T) {
	repo := queuedJobRepo()
	publisher := &publisherStub{}
	worker := NewReportWorker(repo, exportStub{err: errors.New("boom")}, publisher, nil, 2, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusQueued, repo.jobs["job-1"].Status)
	assert.Empty(t, publisher.keys)

	err = worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusFailed, repo.jobs["job-1"].Status)
	assert.Equal(t, []string{"failed"}, publisher.keys)
}

func TestReportWorkerPermanentFailureIsNotRetried(t *testing.T) {
	repo := queuedJobRepo()
	worker := NewReportWorker(repo, exportStub{err: appErrors.Clone(appErrors.ErrInvalidScope, "course 5 not found")}, nil, nil, 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, repo.jobs["job-1"].Status)
	require.NotNil(t, repo.jobs["job-1"].ErrorMessage)
	assert.Contains(t, *repo.jobs["job-1"].ErrorMessage, "course 5 not found")
}
