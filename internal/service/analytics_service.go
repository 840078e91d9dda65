package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/damp-platform/damp-api/internal/analytics"
	"github.com/damp-platform/damp-api/internal/models"
	"github.com/damp-platform/damp-api/pkg/config"
	appErrors "github.com/damp-platform/damp-api/pkg/errors"
	"github.com/damp-platform/damp-api/pkg/tracing"
)

const analyticsCachePattern = "analytics:*"

// SnapshotLoader reads a consistent copy of the entity store.
type SnapshotLoader interface {
	Load(ctx context.Context) (*analytics.Snapshot, error)
}

// AnalyticsService serves engine metrics over fresh snapshots with cache integration.
type AnalyticsService struct {
	loader    SnapshotLoader
	cache     *CacheService
	telemetry *TelemetryService
	cfg       config.AnalyticsConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(loader SnapshotLoader, cache *CacheService, telemetry *TelemetryService, cfg config.AnalyticsConfig, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTrendMonths <= 0 {
		cfg.DefaultTrendMonths = 12
	}
	if cfg.DefaultWindowDays <= 0 {
		cfg.DefaultWindowDays = 30
	}
	if cfg.DefaultPopularLimit <= 0 {
		cfg.DefaultPopularLimit = 10
	}
	return &AnalyticsService{
		loader:    loader,
		cache:     cache,
		telemetry: telemetry,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Defaults exposes the windows applied when a caller omits them.
func (s *AnalyticsService) Defaults() analytics.DashboardParams {
	params := analytics.DefaultDashboardParams()
	params.TrendMonths = s.cfg.DefaultTrendMonths
	params.GrowthMonths = s.cfg.DefaultTrendMonths
	params.EngagementDays = s.cfg.DefaultWindowDays
	params.PopularityLimit = s.cfg.DefaultPopularLimit
	return params
}

// withDefaults fills the categorical dashboard options. Numeric windows are the
// caller's responsibility; zero is rejected rather than read as unset.
func (s *AnalyticsService) withDefaults(params analytics.DashboardParams) analytics.DashboardParams {
	d := s.Defaults()
	if params.Bucketing == "" {
		params.Bucketing = d.Bucketing
	}
	if params.BreakdownBy == "" {
		params.BreakdownBy = d.BreakdownBy
	}
	return params
}

func (s *AnalyticsService) checkDashboard(params analytics.DashboardParams) error {
	if err := params.Scope.Validate(); err != nil {
		return err
	}
	if err := checkWindow(params.TrendMonths, s.cfg.MaxTrendMonths, "months"); err != nil {
		return err
	}
	if err := checkWindow(params.GrowthMonths, s.cfg.MaxTrendMonths, "months"); err != nil {
		return err
	}
	if err := checkWindow(params.EngagementDays, s.cfg.MaxWindowDays, "days"); err != nil {
		return err
	}
	if params.PopularityLimit < 1 {
		return appErrors.Clone(appErrors.ErrInvalidLimit, fmt.Sprintf("limit must be at least 1, got %d", params.PopularityLimit))
	}
	return nil
}

// CompletionRate returns completed versus total enrollments for the scope.
func (s *AnalyticsService) CompletionRate(ctx context.Context, scope analytics.Scope) (analytics.CompletionRate, bool, error) {
	if err := scope.Validate(); err != nil {
		return analytics.CompletionRate{}, false, err
	}
	key := makeAnalyticsCacheKey("completion", scope.Key())
	return computeCached(ctx, s, key, "completion", func(snap *analytics.Snapshot, _ time.Time) (analytics.CompletionRate, error) {
		return analytics.ComputeCompletionRate(snap, scope)
	})
}

// GradeDistribution returns the A-F histogram of graded submissions in scope.
func (s *AnalyticsService) GradeDistribution(ctx context.Context, scope analytics.Scope, bucketing analytics.Bucketing) ([]analytics.GradeBucket, bool, error) {
	if err := scope.Validate(); err != nil {
		return nil, false, err
	}
	key := makeAnalyticsCacheKey("grades", scope.Key(), string(bucketing))
	return computeCached(ctx, s, key, "grades", func(snap *analytics.Snapshot, _ time.Time) ([]analytics.GradeBucket, error) {
		return analytics.ComputeGradeDistribution(snap, scope, bucketing)
	})
}

// EnrollmentTrend returns monthly enrollment counts over the trailing window.
func (s *AnalyticsService) EnrollmentTrend(ctx context.Context, months int) ([]analytics.TrendPoint, bool, error) {
	if err := checkWindow(months, s.cfg.MaxTrendMonths, "months"); err != nil {
		return nil, false, err
	}
	key := makeAnalyticsCacheKey("trend", strconv.Itoa(months))
	return computeCached(ctx, s, key, "trend", func(snap *analytics.Snapshot, now time.Time) ([]analytics.TrendPoint, error) {
		return analytics.ComputeEnrollmentTrend(snap, now, months)
	})
}

// MentorEffectiveness returns one row per approved mentor with an active course.
func (s *AnalyticsService) MentorEffectiveness(ctx context.Context) ([]analytics.MentorStats, bool, error) {
	key := makeAnalyticsCacheKey("mentors")
	return computeCached(ctx, s, key, "mentors", func(snap *analytics.Snapshot, _ time.Time) ([]analytics.MentorStats, error) {
		return analytics.ComputeMentorEffectiveness(snap), nil
	})
}

// CoursePopularity returns the top courses by enrollment count.
func (s *AnalyticsService) CoursePopularity(ctx context.Context, limit int) ([]analytics.CoursePopularity, bool, error) {
	if limit < 1 {
		return nil, false, appErrors.Clone(appErrors.ErrInvalidLimit, fmt.Sprintf("limit must be at least 1, got %d", limit))
	}
	key := makeAnalyticsCacheKey("popularity", strconv.Itoa(limit))
	return computeCached(ctx, s, key, "popularity", func(snap *analytics.Snapshot, _ time.Time) ([]analytics.CoursePopularity, error) {
		return analytics.ComputeCoursePopularity(snap, limit)
	})
}

// EngagementByRole returns activity per role over the trailing window of days.
func (s *AnalyticsService) EngagementByRole(ctx context.Context, days int) ([]analytics.RoleEngagement, bool, error) {
	if err := checkWindow(days, s.cfg.MaxWindowDays, "days"); err != nil {
		return nil, false, err
	}
	key := makeAnalyticsCacheKey("engagement", strconv.Itoa(days))
	return computeCached(ctx, s, key, "engagement", func(snap *analytics.Snapshot, now time.Time) ([]analytics.RoleEngagement, error) {
		return analytics.ComputeEngagementByRole(snap, now, days)
	})
}

// Overview returns platform totals and 30-day activity.
func (s *AnalyticsService) Overview(ctx context.Context) (analytics.PlatformOverview, bool, error) {
	key := makeAnalyticsCacheKey("overview")
	return computeCached(ctx, s, key, "overview", func(snap *analytics.Snapshot, now time.Time) (analytics.PlatformOverview, error) {
		return analytics.ComputePlatformOverview(snap, now)
	})
}

// CompletionBreakdown groups completion rates by a course dimension.
func (s *AnalyticsService) CompletionBreakdown(ctx context.Context, dimension analytics.Dimension) ([]analytics.BreakdownEntry, bool, error) {
	key := makeAnalyticsCacheKey("breakdown", string(dimension))
	return computeCached(ctx, s, key, "breakdown", func(snap *analytics.Snapshot, _ time.Time) ([]analytics.BreakdownEntry, error) {
		return analytics.ComputeCompletionBreakdown(snap, dimension)
	})
}

// TimeToCompletion summarises days from enrollment to completion.
func (s *AnalyticsService) TimeToCompletion(ctx context.Context) (analytics.CompletionTime, bool, error) {
	key := makeAnalyticsCacheKey("completion-time")
	return computeCached(ctx, s, key, "completion_time", func(snap *analytics.Snapshot, _ time.Time) (analytics.CompletionTime, error) {
		return analytics.ComputeTimeToCompletion(snap), nil
	})
}

// UserGrowth returns monthly registrations per role.
func (s *AnalyticsService) UserGrowth(ctx context.Context, months int) ([]analytics.MonthlyGrowth, bool, error) {
	if err := checkWindow(months, s.cfg.MaxTrendMonths, "months"); err != nil {
		return nil, false, err
	}
	key := makeAnalyticsCacheKey("growth", strconv.Itoa(months))
	return computeCached(ctx, s, key, "growth", func(snap *analytics.Snapshot, now time.Time) ([]analytics.MonthlyGrowth, error) {
		return analytics.ComputeUserGrowth(snap, now, months)
	})
}

// StudentPerformance summarises submission scores and lateness.
func (s *AnalyticsService) StudentPerformance(ctx context.Context) (analytics.StudentPerformance, bool, error) {
	key := makeAnalyticsCacheKey("performance")
	return computeCached(ctx, s, key, "performance", func(snap *analytics.Snapshot, _ time.Time) (analytics.StudentPerformance, error) {
		return analytics.ComputeStudentPerformance(snap), nil
	})
}

// Dashboard computes every metric from one snapshot in parallel.
func (s *AnalyticsService) Dashboard(ctx context.Context, params analytics.DashboardParams) (analytics.Dashboard, bool, error) {
	params = s.withDefaults(params)
	if err := s.checkDashboard(params); err != nil {
		return analytics.Dashboard{}, false, err
	}
	key := makeAnalyticsCacheKey("dashboard", params.Scope.Key(), string(params.Bucketing),
		strconv.Itoa(params.TrendMonths), strconv.Itoa(params.PopularityLimit),
		strconv.Itoa(params.EngagementDays), string(params.BreakdownBy), strconv.Itoa(params.GrowthMonths))
	return computeCached(ctx, s, key, "dashboard", func(snap *analytics.Snapshot, now time.Time) (analytics.Dashboard, error) {
		return analytics.BuildDashboard(ctx, snap, now, params)
	})
}

// Snapshot loads a fresh snapshot bypassing the cache.
func (s *AnalyticsService) Snapshot(ctx context.Context) (*analytics.Snapshot, error) {
	return s.loadSnapshot(ctx)
}

// System returns service instrumentation counters.
func (s *AnalyticsService) System() models.SystemMetrics {
	return s.telemetry.Snapshot()
}

// InvalidateCache drops every cached metric result.
func (s *AnalyticsService) InvalidateCache(ctx context.Context) error {
	if err := s.cache.Invalidate(ctx, analyticsCachePattern); err != nil {
		return fmt.Errorf("invalidate analytics cache: %w", err)
	}
	return nil
}

func (s *AnalyticsService) loadSnapshot(ctx context.Context) (*analytics.Snapshot, error) {
	if s.cfg.SnapshotTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SnapshotTimeout)
		defer cancel()
	}
	ctx, span := tracing.Tracer().Start(ctx, "analytics.snapshot.load")
	defer span.End()

	start := time.Now()
	snap, err := s.loader.Load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot load failed")
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	s.telemetry.ObserveSnapshotLoad(time.Since(start))
	span.SetAttributes(
		attribute.Int("snapshot.courses", len(snap.Courses)),
		attribute.Int("snapshot.enrollments", len(snap.Enrollments)),
	)
	return snap, nil
}

// computeCached is the read path shared by every metric: cache lookup, snapshot load,
// engine call, cache fill. Cache failures degrade to a fresh computation.
func computeCached[T any](ctx context.Context, s *AnalyticsService, key, metric string, compute func(*analytics.Snapshot, time.Time) (T, error)) (T, bool, error) {
	var cached T
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}

	var zero T
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return zero, false, err
	}
	now := snap.AsOf
	if now.IsZero() {
		now = s.now()
	}

	_, span := tracing.Tracer().Start(ctx, "analytics.compute")
	span.SetAttributes(attribute.String("metric", metric))
	start := time.Now()
	result, err := compute(snap, now)
	s.telemetry.ObserveCompute(metric, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.End()
		return zero, false, err
	}
	span.End()

	if err := s.cache.Set(ctx, key, result, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("cache analytics result", zap.String("metric", metric), zap.Error(err))
	}
	return result, false, nil
}

func checkWindow(value, max int, name string) error {
	if value < 1 {
		return appErrors.Clone(appErrors.ErrInvalidWindow, fmt.Sprintf("%s must be at least 1, got %d", name, value))
	}
	if max > 0 && value > max {
		return appErrors.Clone(appErrors.ErrInvalidWindow, fmt.Sprintf("%s must not exceed %d, got %d", name, max, value))
	}
	return nil
}

func makeAnalyticsCacheKey(parts ...string) string {
	var builder strings.Builder
	builder.Grow(len(parts) * 16)
	builder.WriteString("analytics")
	for _, part := range parts {
		if part == "" {
			continue
		}
		builder.WriteByte(':')
		builder.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return builder.String()
}
