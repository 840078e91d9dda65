package dto

import (
	"time"

	"github.com/damp-platform/damp-api/internal/models"
)

// ReportRequest captures the POST /reports payload.
type ReportRequest struct {
	Type       models.ReportType   `json:"type" validate:"required,oneof=completion grades trend mentors popularity engagement summary"`
	Format     models.ReportFormat `json:"format" validate:"required,oneof=csv pdf json"`
	CourseID   *int64              `json:"courseId,omitempty" validate:"omitempty,min=1"`
	MentorID   *int64              `json:"mentorId,omitempty" validate:"omitempty,min=1"`
	Bucketing  string              `json:"bucketing,omitempty" validate:"omitempty,oneof=raw percentage"`
	WindowDays int                 `json:"windowDays,omitempty" validate:"omitempty,min=1,max=3650"`
	Months     int                 `json:"months,omitempty" validate:"omitempty,min=1,max=120"`
	Limit      int                 `json:"limit,omitempty" validate:"omitempty,min=1,max=1000"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID         string              `json:"id"`
	Type       models.ReportType   `json:"type"`
	Status     models.ReportStatus `json:"status"`
	Progress   int                 `json:"progress"`
	CreatedAt  time.Time           `json:"createdAt"`
	FinishedAt *time.Time          `json:"finishedAt,omitempty"`
	ResultURL  *string             `json:"resultUrl,omitempty"`
	Error      *string             `json:"error,omitempty"`
}
