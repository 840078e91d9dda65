package dto

// ScopeQuery narrows a metric to a course or a mentor.
type ScopeQuery struct {
	CourseID *int64 `form:"courseId" binding:"omitempty,min=1"`
	MentorID *int64 `form:"mentorId" binding:"omitempty,min=1"`
}

// GradeQuery binds GET /analytics/grades.
type GradeQuery struct {
	ScopeQuery
	Bucketing string `form:"bucketing" binding:"omitempty,oneof=raw percentage"`
}

// MonthsQuery binds endpoints windowed by calendar months. Range checks are left to
// the service so out-of-range values surface as INVALID_WINDOW.
type MonthsQuery struct {
	Months *int `form:"months"`
}

// DaysQuery binds endpoints windowed by days.
type DaysQuery struct {
	Days *int `form:"days"`
}

// LimitQuery binds top-N endpoints.
type LimitQuery struct {
	Limit *int `form:"limit"`
}

// BreakdownQuery binds GET /analytics/completion/breakdown.
type BreakdownQuery struct {
	By string `form:"by" binding:"omitempty,oneof=category difficulty"`
}

// DashboardQuery binds GET /analytics/dashboard.
type DashboardQuery struct {
	ScopeQuery
	Bucketing string `form:"bucketing" binding:"omitempty,oneof=raw percentage"`
	Months    *int   `form:"months"`
	Days      *int   `form:"days"`
	Limit     *int   `form:"limit"`
	By        string `form:"by" binding:"omitempty,oneof=category difficulty"`
}
