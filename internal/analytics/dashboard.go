package analytics

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// DashboardParams tunes the windowed members of a dashboard.
type DashboardParams struct {
	Scope           Scope
	Bucketing       Bucketing
	TrendMonths     int
	PopularityLimit int
	EngagementDays  int
	BreakdownBy     Dimension
	GrowthMonths    int
}

// DefaultDashboardParams returns the parameters used when a caller supplies none.
func DefaultDashboardParams() DashboardParams {
	return DashboardParams{
		Bucketing:       BucketRaw,
		TrendMonths:     12,
		PopularityLimit: 10,
		EngagementDays:  30,
		BreakdownBy:     DimensionCategory,
		GrowthMonths:    12,
	}
}

func (p DashboardParams) withDefaults() DashboardParams {
	d := DefaultDashboardParams()
	if p.Bucketing == "" {
		p.Bucketing = d.Bucketing
	}
	if p.TrendMonths == 0 {
		p.TrendMonths = d.TrendMonths
	}
	if p.PopularityLimit == 0 {
		p.PopularityLimit = d.PopularityLimit
	}
	if p.EngagementDays == 0 {
		p.EngagementDays = d.EngagementDays
	}
	if p.BreakdownBy == "" {
		p.BreakdownBy = d.BreakdownBy
	}
	if p.GrowthMonths == 0 {
		p.GrowthMonths = d.GrowthMonths
	}
	return p
}

// Dashboard bundles every metric computed from a single snapshot.
type Dashboard struct {
	GeneratedAt         time.Time          `json:"generatedAt"`
	Overview            PlatformOverview   `json:"overview"`
	Completion          CompletionRate     `json:"completion"`
	Grades              []GradeBucket      `json:"grades"`
	EnrollmentTrend     []TrendPoint       `json:"enrollmentTrend"`
	Mentors             []MentorStats      `json:"mentors"`
	PopularCourses      []CoursePopularity `json:"popularCourses"`
	Engagement          []RoleEngagement   `json:"engagement"`
	CompletionBreakdown []BreakdownEntry   `json:"completionBreakdown"`
	TimeToCompletion    CompletionTime     `json:"timeToCompletion"`
	UserGrowth          []MonthlyGrowth    `json:"userGrowth"`
	StudentPerformance  StudentPerformance `json:"studentPerformance"`
}

// BuildDashboard computes every member concurrently. Each goroutine writes only its own
// field, and the first failure cancels the rest so no partial dashboard is returned.
func BuildDashboard(ctx context.Context, snap *Snapshot, now time.Time, params DashboardParams) (Dashboard, error) {
	snap = emptySnapshot(snap)
	params = params.withDefaults()
	dash := Dashboard{GeneratedAt: now.UTC()}

	g, ctx := errgroup.WithContext(ctx)
	run := func(fn func() error) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn()
		})
	}

	run(func() (err error) {
		dash.Overview, err = ComputePlatformOverview(snap, now)
		return err
	})
	run(func() (err error) {
		dash.Completion, err = ComputeCompletionRate(snap, params.Scope)
		return err
	})
	run(func() (err error) {
		dash.Grades, err = ComputeGradeDistribution(snap, params.Scope, params.Bucketing)
		return err
	})
	run(func() (err error) {
		dash.EnrollmentTrend, err = ComputeEnrollmentTrend(snap, now, params.TrendMonths)
		return err
	})
	run(func() error {
		dash.Mentors = ComputeMentorEffectiveness(snap)
		return nil
	})
	run(func() (err error) {
		dash.PopularCourses, err = ComputeCoursePopularity(snap, params.PopularityLimit)
		return err
	})
	run(func() (err error) {
		dash.Engagement, err = ComputeEngagementByRole(snap, now, params.EngagementDays)
		return err
	})
	run(func() (err error) {
		dash.CompletionBreakdown, err = ComputeCompletionBreakdown(snap, params.BreakdownBy)
		return err
	})
	run(func() error {
		dash.TimeToCompletion = ComputeTimeToCompletion(snap)
		return nil
	})
	run(func() (err error) {
		dash.UserGrowth, err = ComputeUserGrowth(snap, now, params.GrowthMonths)
		return err
	})
	run(func() error {
		dash.StudentPerformance = ComputeStudentPerformance(snap)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return dash, nil
}
