package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/damp-platform/damp-api/internal/analytics"
	"github.com/damp-platform/damp-api/internal/middleware"
	"github.com/damp-platform/damp-api/internal/models"
	"github.com/damp-platform/damp-api/internal/service"
	"github.com/damp-platform/damp-api/pkg/config"
	appErrors "github.com/damp-platform/damp-api/pkg/errors"
)

type responseEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Error map[string]interface{} `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

type listEnvelope struct {
	Data []map[string]interface{} `json:"data"`
	Meta map[string]interface{}   `json:"meta"`
}

type fakeAnalyticsSrv struct {
	hit bool
	err error

	completion analytics.CompletionRate
	grades     []analytics.GradeBucket

	lastScope     analytics.Scope
	lastBucketing analytics.Bucketing
	lastMonths    int
	lastDays      int
	lastLimit     int
	lastDimension analytics.Dimension
	lastParams    analytics.DashboardParams
	invalidated   bool
}

func (f *fakeAnalyticsSrv) Defaults() analytics.DashboardParams {
	return analytics.DefaultDashboardParams()
}

func (f *fakeAnalyticsSrv) CompletionRate(_ context.Context, scope analytics.Scope) (analytics.CompletionRate, bool, error) {
	f.lastScope = scope
	return f.completion, f.hit, f.err
}

func (f *fakeAnalyticsSrv) GradeDistribution(_ context.Context, scope analytics.Scope, bucketing analytics.Bucketing) ([]analytics.GradeBucket, bool, error) {
	f.lastScope = scope
	f.lastBucketing = bucketing
	return f.grades, f.hit, f.err
}

func (f *fakeAnalyticsSrv) EnrollmentTrend(_ context.Context, months int) ([]analytics.TrendPoint, bool, error) {
	f.lastMonths = months
	return []analytics.TrendPoint{}, f.hit, f.err
}

func (f *fakeAnalyticsSrv) MentorEffectiveness(context.Context) ([]analytics.MentorStats, bool, error) {
	return []analytics.MentorStats{{MentorID: 1, MentorName: "Ada Mentor"}}, f.hit, f.err
}

func (f *fakeAnalyticsSrv) CoursePopularity(_ context.Context, limit int) ([]analytics.CoursePopularity, bool, error) {
	f.lastLimit = limit
	return []analytics.CoursePopularity{}, f.hit, f.err
}

func (f *fakeAnalyticsSrv) EngagementByRole(_ context.Context, days int) ([]analytics.RoleEngagement, bool, error) {
	f.lastDays = days
	return []analytics.RoleEngagement{}, f.hit, f.err
}

func (f *fakeAnalyticsSrv) Overview(context.Context) (analytics.PlatformOverview, bool, error) {
	return analytics.PlatformOverview{}, f.hit, f.err
}

func (f *fakeAnalyticsSrv) CompletionBreakdown(_ context.Context, dimension analytics.Dimension) ([]analytics.BreakdownEntry, bool, error) {
	f.lastDimension = dimension
	return []analytics.BreakdownEntry{}, f.hit, f.err
}

func (f *fakeAnalyticsSrv) TimeToCompletion(context.Context) (analytics.CompletionTime, bool, error) {
	return analytics.CompletionTime{}, f.hit, f.err
}

func (f *fakeAnalyticsSrv) UserGrowth(_ context.Context, months int) ([]analytics.MonthlyGrowth, bool, error) {
	f.lastMonths = months
	return []analytics.MonthlyGrowth{}, f.hit, f.err
}

func (f *fakeAnalyticsSrv) StudentPerformance(context.Context) (analytics.StudentPerformance, bool, error) {
	return analytics.StudentPerformance{}, f.hit, f.err
}

func (f *fakeAnalyticsSrv) Dashboard(_ context.Context, params analytics.DashboardParams) (analytics.Dashboard, bool, error) {
	f.lastParams = params
	return analytics.Dashboard{}, f.hit, f.err
}

func (f *fakeAnalyticsSrv) System() models.SystemMetrics {
	return models.SystemMetrics{CacheHits: 3, CacheMisses: 1, CacheHitRatio: 0.75}
}

func (f *fakeAnalyticsSrv) InvalidateCache(context.Context) error {
	f.invalidated = true
	return f.err
}

type fakeCourseOwnership struct {
	owned map[int64]int64
	err   error
}

func (f *fakeCourseOwnership) CourseOwner(_ context.Context, courseID int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	owner, ok := f.owned[courseID]
	if !ok {
		return 0, appErrors.Clone(appErrors.ErrInvalidScope, "course not found")
	}
	return owner, nil
}

func newAnalyticsContext(target string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

var (
	adminClaims  = &models.JWTClaims{UserID: 2, Role: models.RoleAdmin}
	mentorClaims = &models.JWTClaims{UserID: 1, Role: models.RoleMentor}
)

func TestAnalyticsHandlerCompletionSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAnalyticsSrv{completion: analytics.CompletionRate{Total: 4, Completed: 3, Percentage: 75}, hit: true}
	handler := NewAnalyticsHandler(srv, &fakeCourseOwnership{})

	c, rec := newAnalyticsContext("/analytics/completion?courseId=10", adminClaims)
	handler.Completion(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, float64(75), envelope.Data["percentage"])
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
	require.NotNil(t, srv.lastScope.CourseID)
	assert.Equal(t, int64(10), *srv.lastScope.CourseID)
}

func TestAnalyticsHandlerCompletionInvalidScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAnalyticsSrv{err: appErrors.Clone(appErrors.ErrInvalidScope, "course 999 not found")}
	handler := NewAnalyticsHandler(srv, nil)

	c, rec := newAnalyticsContext("/analytics/completion?courseId=999", adminClaims)
	handler.Completion(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "INVALID_SCOPE", envelope.Error["code"])
}

func TestAnalyticsHandlerRejectsCourseAndMentor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAnalyticsSrv{}
	handler := NewAnalyticsHandler(srv, nil)

	c, rec := newAnalyticsContext("/analytics/completion?courseId=10&mentorId=1", adminClaims)
	handler.Completion(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsHandlerMentorScopedToSelf(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAnalyticsSrv{}
	handler := NewAnalyticsHandler(srv, &fakeCourseOwnership{})

	c, rec := newAnalyticsContext("/analytics/completion", mentorClaims)
	handler.Completion(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, srv.lastScope.MentorID)
	assert.Equal(t, int64(1), *srv.lastScope.MentorID)
	assert.Nil(t, srv.lastScope.CourseID)
}

func TestAnalyticsHandlerMentorCannotReadOtherMentor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAnalyticsHandler(&fakeAnalyticsSrv{}, &fakeCourseOwnership{})

	c, rec := newAnalyticsContext("/analytics/grades?mentorId=7", mentorClaims)
	handler.Grades(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAnalyticsHandlerMentorCourseOwnership(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAnalyticsSrv{grades: []analytics.GradeBucket{{Label: "A", Range: "90-100", Count: 1, Percentage: 100}}}
	handler := NewAnalyticsHandler(srv, &fakeCourseOwnership{owned: map[int64]int64{10: 1, 11: 9}})

	c, rec := newAnalyticsContext("/analytics/grades?courseId=10&bucketing=percentage", mentorClaims)
	handler.Grades(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, analytics.BucketPercentage, srv.lastBucketing)

	var envelope listEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "A", envelope.Data[0]["label"])

	c, rec = newAnalyticsContext("/analytics/grades?courseId=11", mentorClaims)
	handler.Grades(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAnalyticsHandlerMentorUnknownCourse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAnalyticsSrv{}
	handler := NewAnalyticsHandler(srv, &fakeCourseOwnership{owned: map[int64]int64{10: 1}})

	c, rec := newAnalyticsContext("/analytics/completion?courseId=999", mentorClaims)
	handler.Completion(c)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "INVALID_SCOPE", envelope.Error["code"])
	assert.Nil(t, srv.lastScope.CourseID)
}

func TestAnalyticsHandlerOwnershipLookupFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAnalyticsHandler(&fakeAnalyticsSrv{}, &fakeCourseOwnership{err: assert.AnError})

	c, rec := newAnalyticsContext("/analytics/completion?courseId=10", mentorClaims)
	handler.Completion(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAnalyticsHandlerGradesRejectsUnknownBucketing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAnalyticsHandler(&fakeAnalyticsSrv{}, nil)

	c, rec := newAnalyticsContext("/analytics/grades?bucketing=curve", adminClaims)
	handler.Grades(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsHandlerWindowDefaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAnalyticsSrv{}
	handler := NewAnalyticsHandler(srv, nil)
	defaults := analytics.DefaultDashboardParams()

	c, rec := newAnalyticsContext("/analytics/enrollments/trend", adminClaims)
	handler.EnrollmentTrend(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaults.TrendMonths, srv.lastMonths)

	c, rec = newAnalyticsContext("/analytics/engagement?days=7", adminClaims)
	handler.Engagement(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, srv.lastDays)

	c, rec = newAnalyticsContext("/analytics/courses/popular?limit=3", adminClaims)
	handler.PopularCourses(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, srv.lastLimit)

	c, rec = newAnalyticsContext("/analytics/users/growth?months=6", adminClaims)
	handler.UserGrowth(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6, srv.lastMonths)
}

func TestAnalyticsHandlerInvalidWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAnalyticsSrv{err: appErrors.Clone(appErrors.ErrInvalidWindow, "months must be between 1 and 36")}
	handler := NewAnalyticsHandler(srv, nil)

	c, rec := newAnalyticsContext("/analytics/enrollments/trend?months=0", adminClaims)
	handler.EnrollmentTrend(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, srv.lastMonths)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "INVALID_WINDOW", envelope.Error["code"])
}

func TestAnalyticsHandlerNonNumericWindow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAnalyticsHandler(&fakeAnalyticsSrv{}, nil)

	c, rec := newAnalyticsContext("/analytics/engagement?days=week", adminClaims)
	handler.Engagement(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsHandlerBreakdownDimension(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAnalyticsSrv{}
	handler := NewAnalyticsHandler(srv, nil)

	c, rec := newAnalyticsContext("/analytics/completion/breakdown?by=difficulty", adminClaims)
	handler.CompletionBreakdown(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, analytics.Dimension("difficulty"), srv.lastDimension)
}

func TestAnalyticsHandlerDashboardParams(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAnalyticsSrv{hit: false}
	handler := NewAnalyticsHandler(srv, nil)

	c, rec := newAnalyticsContext("/analytics/dashboard?courseId=10&months=6&days=14&limit=5&bucketing=percentage", adminClaims)
	handler.Dashboard(c)

	require.Equal(t, http.StatusOK, rec.Code)
	params := srv.lastParams
	require.NotNil(t, params.Scope.CourseID)
	assert.Equal(t, int64(10), *params.Scope.CourseID)
	assert.Equal(t, 6, params.TrendMonths)
	assert.Equal(t, 6, params.GrowthMonths)
	assert.Equal(t, 14, params.EngagementDays)
	assert.Equal(t, 5, params.PopularityLimit)
	assert.Equal(t, analytics.BucketPercentage, params.Bucketing)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, false, envelope.Meta["cache_hit"])
}

type countingLoader struct {
	calls int
}

func (l *countingLoader) Load(context.Context) (*analytics.Snapshot, error) {
	l.calls++
	return &analytics.Snapshot{}, nil
}

func TestAnalyticsHandlerDashboardRejectsZeroWindows(t *testing.T) {
	gin.SetMode(gin.TestMode)
	loader := &countingLoader{}
	telemetry := service.NewTelemetryService()
	cacheSvc := service.NewCacheService(nil, telemetry, time.Minute, zap.NewNop(), false)
	cfg := config.AnalyticsConfig{MaxTrendMonths: 36, MaxWindowDays: 365}
	handler := NewAnalyticsHandler(service.NewAnalyticsService(loader, cacheSvc, telemetry, cfg, zap.NewNop()), nil)

	cases := map[string]string{
		"/analytics/dashboard?months=0": "INVALID_WINDOW",
		"/analytics/dashboard?days=0":   "INVALID_WINDOW",
		"/analytics/dashboard?limit=0":  "INVALID_LIMIT",
		"/analytics/dashboard?limit=-2": "INVALID_LIMIT",
	}
	for target, code := range cases {
		c, rec := newAnalyticsContext(target, adminClaims)
		handler.Dashboard(c)

		require.Equal(t, http.StatusBadRequest, rec.Code, target)
		var envelope responseEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
		assert.Equal(t, code, envelope.Error["code"], target)
	}
	assert.Zero(t, loader.calls)

	c, rec := newAnalyticsContext("/analytics/dashboard", adminClaims)
	handler.Dashboard(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, loader.calls)
}

func TestAnalyticsHandlerMentorsAndSystem(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAnalyticsHandler(&fakeAnalyticsSrv{hit: true}, nil)

	c, rec := newAnalyticsContext("/analytics/mentors", adminClaims)
	handler.Mentors(c)
	require.Equal(t, http.StatusOK, rec.Code)
	var mentors listEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mentors))
	require.Len(t, mentors.Data, 1)
	assert.Equal(t, true, mentors.Meta["cache_hit"])

	c, rec = newAnalyticsContext("/analytics/system", adminClaims)
	handler.System(c)
	require.Equal(t, http.StatusOK, rec.Code)
	var system responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &system))
	assert.Equal(t, 0.75, system.Data["cache_hit_ratio"])
	assert.Equal(t, false, system.Meta["cache_hit"])
}

func TestAnalyticsHandlerInvalidateCache(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeAnalyticsSrv{}
	handler := NewAnalyticsHandler(srv, nil)

	c, rec := newAnalyticsContext("/analytics/cache/invalidate", adminClaims)
	handler.InvalidateCache(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, srv.invalidated)
}
