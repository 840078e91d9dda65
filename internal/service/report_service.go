package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/damp-platform/damp-api/internal/dto"
	"github.com/damp-platform/damp-api/internal/models"
	"github.com/damp-platform/damp-api/internal/repository"
	appErrors "github.com/damp-platform/damp-api/pkg/errors"
	"github.com/damp-platform/damp-api/pkg/jobs"
)

type courseAccessChecker interface {
	CourseOwner(ctx context.Context, courseID int64) (int64, error)
}

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
	ClearResult(ctx context.Context, id string) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
}

type exportFiles interface {
	ParseToken(token string, allowExpired bool) (jobID, name string, expiresAt time.Time, err error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
	Cleanup(ctx context.Context, ttl time.Duration) ([]string, error)
}

// EventPublisher delivers report lifecycle events to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, suffix string, event interface{}) error
}

// ReportService orchestrates report job lifecycle management.
type ReportService struct {
	repo      reportJobStore
	courses   courseAccessChecker
	queue     jobDispatcher
	exporter  exportFiles
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportServiceConfig
}

// ReportServiceConfig governs queue recovery and cleanup.
type ReportServiceConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ReportDownload aggregates resolved download data. Callers must close Body.
type ReportDownload struct {
	Body        io.ReadCloser
	Filename    string
	Format      models.ReportFormat
	ContentType string
	ExpiresAt   time.Time
}

const cleanupBatchSize = 100

// NewReportService constructs the report service.
func NewReportService(repo reportJobStore, courses courseAccessChecker, queue jobDispatcher, exporter exportFiles, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ReportService{
		repo:      repo,
		courses:   courses,
		queue:     queue,
		exporter:  exporter,
		validator: validator.New(),
		logger:    logger,
		cfg:       cfg,
	}
}

// CreateJob validates the request, persists the job and enqueues processing.
func (s *ReportService) CreateJob(ctx context.Context, req dto.ReportRequest, actorID int64, role models.UserRole) (*dto.ReportJobResponse, error) {
	if err := s.validateRequest(ctx, req, actorID, role); err != nil {
		return nil, err
	}
	job := &models.ReportJob{
		Type: req.Type,
		Params: models.ReportJobParams{
			Format:     req.Format,
			CourseID:   req.CourseID,
			MentorID:   req.MentorID,
			Bucketing:  req.Bucketing,
			WindowDays: req.WindowDays,
			Months:     req.Months,
			Limit:      req.Limit,
		},
		Status:    models.ReportStatusQueued,
		Progress:  0,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		status := models.ReportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		progress := 100
		if updateErr := s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); updateErr != nil {
			s.logger.Warn("failed to mark unqueued job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "report queue is full")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	s.logger.Info("report job queued",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("format", string(job.Params.Format)),
		zap.Int64("actor_id", actorID))
	return &dto.ReportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus exposes job metadata to clients, enforcing ownership for mentors.
func (s *ReportService) GetStatus(ctx context.Context, id string, actorID int64, role models.UserRole) (*dto.ReportStatusResponse, error) {
	job, err := s.loadJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && job.CreatedBy != actorID {
		return nil, appErrors.ErrForbidden
	}
	resp := &dto.ReportStatusResponse{
		ID:         job.ID,
		Type:       job.Type,
		Status:     job.Status,
		Progress:   job.Progress,
		CreatedAt:  job.CreatedAt,
		FinishedAt: job.FinishedAt,
		ResultURL:  job.ResultURL,
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates the token and opens the stored export.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, name, expiresAt, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ReportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report not ready")
	}
	body, err := s.exporter.Open(ctx, name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ReportDownload{
		Body:        body,
		Filename:    path.Base(name),
		Format:      job.Params.Format,
		ContentType: ContentType(job.Params.Format),
		ExpiresAt:   expiresAt,
	}, nil
}

// RecoverPendingJobs replays queued jobs after a process restart.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued report jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Warn("failed to requeue pending job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if len(pending) > 0 {
		s.logger.Info("recovered queued report jobs", zap.Int("count", len(pending)))
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupExpired(ctx)
			}
		}
	}()
}

// CleanupExpired deletes exports of jobs finished before the result TTL and
// sweeps orphaned objects from storage.
func (s *ReportService) CleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	removed := 0
	for {
		expired, err := s.repo.ListFinishedBefore(ctx, cutoff, cleanupBatchSize)
		if err != nil {
			s.logger.Warn("cleanup list failed", zap.Error(err))
			return
		}
		for _, job := range expired {
			if job.ResultURL != nil {
				if _, name, _, err := s.exporter.ParseToken(extractToken(*job.ResultURL), true); err == nil {
					if err := s.exporter.Delete(ctx, name); err != nil {
						s.logger.Warn("cleanup delete failed", zap.String("job_id", job.ID), zap.Error(err))
					}
				}
			}
			// Clearing the URL drops the job from the next batch even when the delete failed.
			if err := s.repo.ClearResult(ctx, job.ID); err != nil {
				s.logger.Warn("cleanup clear result failed", zap.String("job_id", job.ID), zap.Error(err))
				return
			}
			removed++
		}
		if len(expired) < cleanupBatchSize {
			break
		}
	}
	swept, err := s.exporter.Cleanup(ctx, s.cfg.ResultTTL)
	if err != nil {
		s.logger.Warn("storage cleanup failed", zap.Error(err))
	}
	if removed > 0 || len(swept) > 0 {
		s.logger.Info("expired exports removed", zap.Int("jobs", removed), zap.Int("objects", len(swept)))
	}
}

func (s *ReportService) loadJob(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	return job, nil
}

// mentorReportTypes are the reports whose content can be narrowed to one mentor.
var mentorReportTypes = map[models.ReportType]struct{}{
	models.ReportTypeCompletion: {},
	models.ReportTypeGrades:     {},
}

func (s *ReportService) validateRequest(ctx context.Context, req dto.ReportRequest, actorID int64, role models.UserRole) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report request")
	}
	if req.CourseID != nil && req.MentorID != nil {
		return appErrors.Clone(appErrors.ErrValidation, "report accepts either courseId or mentorId, not both")
	}
	switch role {
	case models.RoleAdmin:
		return nil
	case models.RoleMentor:
		if _, ok := mentorReportTypes[req.Type]; !ok {
			return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("%s reports are restricted to admins", req.Type))
		}
		if req.MentorID != nil {
			if *req.MentorID != actorID {
				return appErrors.Clone(appErrors.ErrForbidden, "mentors may only export their own reports")
			}
			return nil
		}
		if req.CourseID == nil {
			return appErrors.Clone(appErrors.ErrValidation, "courseId or mentorId is required for mentor reports")
		}
		if s.courses == nil {
			return appErrors.Wrap(fmt.Errorf("course access checker missing"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "report access validation error")
		}
		owner, err := s.courses.CourseOwner(ctx, *req.CourseID)
		if errors.Is(err, appErrors.ErrInvalidScope) {
			return err
		}
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate course access")
		}
		if owner != actorID {
			return appErrors.ErrForbidden
		}
		return nil
	default:
		return appErrors.ErrForbidden
	}
}

func extractToken(url string) string {
	if url == "" {
		return ""
	}
	parts := strings.Split(url, "/")
	return parts[len(parts)-1]
}

// ReportWorker bridges queue jobs to ExportService.
type ReportWorker struct {
	repo       reportJobStore
	exporter   exportGenerator
	publisher  EventPublisher
	telemetry  *TelemetryService
	logger     *zap.Logger
	maxRetries int
}

// NewReportWorker constructs a worker. publisher may be nil.
func NewReportWorker(repo reportJobStore, exporter exportGenerator, publisher EventPublisher, telemetry *TelemetryService, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{
		repo:       repo,
		exporter:   exporter,
		publisher:  publisher,
		telemetry:  telemetry,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.ReportStatusProcessing
	progress := 10
	if err := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:   &processing,
		Progress: &progress,
	}); err != nil {
		return err
	}
	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries || isPermanent(err) {
			failed := models.ReportStatusFailed
			progress = 100
			now := time.Now().UTC()
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
				Status:       &failed,
				Progress:     &progress,
				ErrorMessage: &msg,
				FinishedAt:   &now,
			}); updateErr != nil {
				w.logger.Warn("failed to mark job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
			w.finish(ctx, record, models.ReportStatusFailed, "", msg)
			if isPermanent(err) {
				// The queue must not retry a request the engine rejected.
				return nil
			}
		} else {
			queued := models.ReportStatusQueued
			reset := 0
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
				Status:       &queued,
				Progress:     &reset,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Warn("failed to mark job queued", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
		}
		return err
	}
	finished := models.ReportStatusFinished
	progress = 100
	now := time.Now().UTC()
	url := result.URL
	noError := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:       &finished,
		Progress:     &progress,
		ResultURL:    &url,
		ErrorMessage: &noError,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark job finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	w.finish(ctx, record, models.ReportStatusFinished, url, "")
	return nil
}

func (w *ReportWorker) finish(ctx context.Context, job *models.ReportJob, status models.ReportStatus, url, msg string) {
	w.telemetry.RecordReportJob(job.Type, status)
	if w.publisher == nil {
		return
	}
	event := models.ReportEvent{
		JobID:      job.ID,
		Type:       job.Type,
		Status:     status,
		ResultURL:  url,
		Error:      msg,
		OccurredAt: time.Now().UTC(),
	}
	if err := w.publisher.Publish(ctx, strings.ToLower(string(status)), event); err != nil {
		w.logger.Warn("failed to publish report event", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// isPermanent reports errors caused by the request itself, such as an unknown scope.
func isPermanent(err error) bool {
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Status >= 400 && appErr.Status < 500
}
