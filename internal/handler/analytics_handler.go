package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/damp-platform/damp-api/internal/analytics"
	"github.com/damp-platform/damp-api/internal/dto"
	"github.com/damp-platform/damp-api/internal/middleware"
	"github.com/damp-platform/damp-api/internal/models"
	appErrors "github.com/damp-platform/damp-api/pkg/errors"
	"github.com/damp-platform/damp-api/pkg/response"
)

type analyticsProvider interface {
	Defaults() analytics.DashboardParams
	CompletionRate(ctx context.Context, scope analytics.Scope) (analytics.CompletionRate, bool, error)
	GradeDistribution(ctx context.Context, scope analytics.Scope, bucketing analytics.Bucketing) ([]analytics.GradeBucket, bool, error)
	EnrollmentTrend(ctx context.Context, months int) ([]analytics.TrendPoint, bool, error)
	MentorEffectiveness(ctx context.Context) ([]analytics.MentorStats, bool, error)
	CoursePopularity(ctx context.Context, limit int) ([]analytics.CoursePopularity, bool, error)
	EngagementByRole(ctx context.Context, days int) ([]analytics.RoleEngagement, bool, error)
	Overview(ctx context.Context) (analytics.PlatformOverview, bool, error)
	CompletionBreakdown(ctx context.Context, dimension analytics.Dimension) ([]analytics.BreakdownEntry, bool, error)
	TimeToCompletion(ctx context.Context) (analytics.CompletionTime, bool, error)
	UserGrowth(ctx context.Context, months int) ([]analytics.MonthlyGrowth, bool, error)
	StudentPerformance(ctx context.Context) (analytics.StudentPerformance, bool, error)
	Dashboard(ctx context.Context, params analytics.DashboardParams) (analytics.Dashboard, bool, error)
	System() models.SystemMetrics
	InvalidateCache(ctx context.Context) error
}

type courseOwnership interface {
	CourseOwner(ctx context.Context, courseID int64) (int64, error)
}

// AnalyticsHandler exposes the metrics engine over HTTP.
type AnalyticsHandler struct {
	analytics analyticsProvider
	courses   courseOwnership
}

// NewAnalyticsHandler constructs the analytics handler. courses is consulted when a
// mentor requests a course-scoped metric.
func NewAnalyticsHandler(analytics analyticsProvider, courses courseOwnership) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, courses: courses}
}

// Completion godoc
// @Summary Enrollment completion rate
// @Tags Analytics
// @Produce json
// @Param courseId query int false "Course ID"
// @Param mentorId query int false "Mentor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /analytics/completion [get]
func (h *AnalyticsHandler) Completion(c *gin.Context) {
	start := time.Now()
	var query dto.ScopeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err))
		return
	}
	scope, err := h.authorizeScope(c, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, cacheHit, err := h.analytics.CompletionRate(c.Request.Context(), scope)
	respond(c, start, result, cacheHit, err)
}

// Grades godoc
// @Summary Grade distribution (A-F)
// @Tags Analytics
// @Produce json
// @Param courseId query int false "Course ID"
// @Param mentorId query int false "Mentor ID"
// @Param bucketing query string false "raw or percentage"
// @Success 200 {object} response.Envelope
// @Router /analytics/grades [get]
func (h *AnalyticsHandler) Grades(c *gin.Context) {
	start := time.Now()
	var query dto.GradeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err))
		return
	}
	bucketing, err := analytics.ParseBucketing(query.Bucketing)
	if err != nil {
		response.Error(c, err)
		return
	}
	scope, err := h.authorizeScope(c, query.ScopeQuery)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, cacheHit, err := h.analytics.GradeDistribution(c.Request.Context(), scope, bucketing)
	respond(c, start, result, cacheHit, err)
}

// EnrollmentTrend godoc
// @Summary Monthly enrollment trend
// @Tags Analytics
// @Produce json
// @Param months query int false "Trailing window in months"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /analytics/enrollments/trend [get]
func (h *AnalyticsHandler) EnrollmentTrend(c *gin.Context) {
	start := time.Now()
	var query dto.MonthsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err))
		return
	}
	months := intOr(query.Months, h.analytics.Defaults().TrendMonths)
	result, cacheHit, err := h.analytics.EnrollmentTrend(c.Request.Context(), months)
	respond(c, start, result, cacheHit, err)
}

// Mentors godoc
// @Summary Mentor effectiveness
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/mentors [get]
func (h *AnalyticsHandler) Mentors(c *gin.Context) {
	start := time.Now()
	result, cacheHit, err := h.analytics.MentorEffectiveness(c.Request.Context())
	respond(c, start, result, cacheHit, err)
}

// PopularCourses godoc
// @Summary Most enrolled courses
// @Tags Analytics
// @Produce json
// @Param limit query int false "Number of courses"
// @Success 200 {object} response.Envelope
// @Router /analytics/courses/popular [get]
func (h *AnalyticsHandler) PopularCourses(c *gin.Context) {
	start := time.Now()
	var query dto.LimitQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err))
		return
	}
	limit := intOr(query.Limit, h.analytics.Defaults().PopularityLimit)
	result, cacheHit, err := h.analytics.CoursePopularity(c.Request.Context(), limit)
	respond(c, start, result, cacheHit, err)
}

// Engagement godoc
// @Summary Activity by role
// @Tags Analytics
// @Produce json
// @Param days query int false "Trailing window in days"
// @Success 200 {object} response.Envelope
// @Router /analytics/engagement [get]
func (h *AnalyticsHandler) Engagement(c *gin.Context) {
	start := time.Now()
	var query dto.DaysQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err))
		return
	}
	days := intOr(query.Days, h.analytics.Defaults().EngagementDays)
	result, cacheHit, err := h.analytics.EngagementByRole(c.Request.Context(), days)
	respond(c, start, result, cacheHit, err)
}

// Overview godoc
// @Summary Platform totals
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/overview [get]
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	start := time.Now()
	result, cacheHit, err := h.analytics.Overview(c.Request.Context())
	respond(c, start, result, cacheHit, err)
}

// CompletionBreakdown godoc
// @Summary Completion rate by category or difficulty
// @Tags Analytics
// @Produce json
// @Param by query string false "category or difficulty"
// @Success 200 {object} response.Envelope
// @Router /analytics/completion/breakdown [get]
func (h *AnalyticsHandler) CompletionBreakdown(c *gin.Context) {
	start := time.Now()
	var query dto.BreakdownQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err))
		return
	}
	dimension, err := analytics.ParseDimension(query.By)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, cacheHit, err := h.analytics.CompletionBreakdown(c.Request.Context(), dimension)
	respond(c, start, result, cacheHit, err)
}

// CompletionTime godoc
// @Summary Days from enrollment to completion
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/completion/time [get]
func (h *AnalyticsHandler) CompletionTime(c *gin.Context) {
	start := time.Now()
	result, cacheHit, err := h.analytics.TimeToCompletion(c.Request.Context())
	respond(c, start, result, cacheHit, err)
}

// UserGrowth godoc
// @Summary Monthly registrations by role
// @Tags Analytics
// @Produce json
// @Param months query int false "Trailing window in months"
// @Success 200 {object} response.Envelope
// @Router /analytics/users/growth [get]
func (h *AnalyticsHandler) UserGrowth(c *gin.Context) {
	start := time.Now()
	var query dto.MonthsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err))
		return
	}
	months := intOr(query.Months, h.analytics.Defaults().GrowthMonths)
	result, cacheHit, err := h.analytics.UserGrowth(c.Request.Context(), months)
	respond(c, start, result, cacheHit, err)
}

// StudentPerformance godoc
// @Summary Submission scores and lateness
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/students/performance [get]
func (h *AnalyticsHandler) StudentPerformance(c *gin.Context) {
	start := time.Now()
	result, cacheHit, err := h.analytics.StudentPerformance(c.Request.Context())
	respond(c, start, result, cacheHit, err)
}

// Dashboard godoc
// @Summary Every metric from one snapshot
// @Tags Analytics
// @Produce json
// @Param courseId query int false "Course ID"
// @Param mentorId query int false "Mentor ID"
// @Param bucketing query string false "raw or percentage"
// @Param months query int false "Trend window in months"
// @Param days query int false "Engagement window in days"
// @Param limit query int false "Popular courses"
// @Param by query string false "Breakdown dimension"
// @Success 200 {object} response.Envelope
// @Router /analytics/dashboard [get]
func (h *AnalyticsHandler) Dashboard(c *gin.Context) {
	start := time.Now()
	var query dto.DashboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err))
		return
	}
	params := h.analytics.Defaults()
	var err error
	if params.Bucketing, err = analytics.ParseBucketing(query.Bucketing); err != nil {
		response.Error(c, err)
		return
	}
	if params.BreakdownBy, err = analytics.ParseDimension(query.By); err != nil {
		response.Error(c, err)
		return
	}
	params.Scope = analytics.Scope{CourseID: query.CourseID, MentorID: query.MentorID}
	params.TrendMonths = intOr(query.Months, params.TrendMonths)
	params.GrowthMonths = intOr(query.Months, params.GrowthMonths)
	params.EngagementDays = intOr(query.Days, params.EngagementDays)
	params.PopularityLimit = intOr(query.Limit, params.PopularityLimit)

	result, cacheHit, err := h.analytics.Dashboard(c.Request.Context(), params)
	respond(c, start, result, cacheHit, err)
}

// System godoc
// @Summary Service instrumentation snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	start := time.Now()
	respond(c, start, h.analytics.System(), false, nil)
}

// InvalidateCache godoc
// @Summary Drop cached metric results
// @Tags Analytics
// @Success 204
// @Router /analytics/cache/invalidate [post]
func (h *AnalyticsHandler) InvalidateCache(c *gin.Context) {
	if err := h.analytics.InvalidateCache(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// authorizeScope turns the query into a scope and confines mentors to their own courses.
func (h *AnalyticsHandler) authorizeScope(c *gin.Context, query dto.ScopeQuery) (analytics.Scope, error) {
	scope := analytics.Scope{CourseID: query.CourseID, MentorID: query.MentorID}
	if err := scope.Validate(); err != nil {
		return analytics.Scope{}, err
	}
	claims := claimsFromContext(c)
	if claims == nil || claims.Role == models.RoleAdmin {
		return scope, nil
	}
	if claims.Role != models.RoleMentor {
		return analytics.Scope{}, appErrors.ErrForbidden
	}
	switch {
	case scope.MentorID != nil:
		if *scope.MentorID != claims.UserID {
			return analytics.Scope{}, appErrors.Clone(appErrors.ErrForbidden, "mentors may only read their own metrics")
		}
	case scope.CourseID != nil:
		if h.courses == nil {
			return analytics.Scope{}, appErrors.ErrForbidden
		}
		owner, err := h.courses.CourseOwner(c.Request.Context(), *scope.CourseID)
		if errors.Is(err, appErrors.ErrInvalidScope) {
			return analytics.Scope{}, err
		}
		if err != nil {
			return analytics.Scope{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate course access")
		}
		if owner != claims.UserID {
			return analytics.Scope{}, appErrors.ErrForbidden
		}
	default:
		// An unscoped mentor request reads the mentor's own courses.
		return analytics.MentorScope(claims.UserID), nil
	}
	return scope, nil
}

func respond(c *gin.Context, start time.Time, data interface{}, cacheHit bool, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, data, middleware.ResponseMeta(c, start))
}

func intOr(value *int, fallback int) int {
	if value == nil {
		return fallback
	}
	return *value
}
