package analytics

import (
	"time"

	"github.com/damp-platform/damp-api/internal/models"
)

const recentActivityDays = 30

// PlatformOverview is the headline block of the admin dashboard.
type PlatformOverview struct {
	Users       UserTotals     `json:"users"`
	Courses     CourseTotals   `json:"courses"`
	Enrollments CompletionRate `json:"enrollments"`
	Recent      RecentActivity `json:"recent"`
}

// UserTotals counts accounts by state.
type UserTotals struct {
	Total          int `json:"total"`
	Active         int `json:"active"`
	Students       int `json:"students"`
	Mentors        int `json:"mentors"`
	PendingMentors int `json:"pendingMentors"`
}

// CourseTotals counts catalogue entries.
type CourseTotals struct {
	Total  int `json:"total"`
	Active int `json:"active"`
}

// RecentActivity covers the last 30 days.
type RecentActivity struct {
	Registrations int `json:"registrations"`
	Enrollments   int `json:"enrollments"`
}

// ComputePlatformOverview totals users, courses and enrollments as of now.
func ComputePlatformOverview(snap *Snapshot, now time.Time) (PlatformOverview, error) {
	snap = emptySnapshot(snap)
	var overview PlatformOverview
	since := now.Add(-recentActivityDays * 24 * time.Hour)

	for _, u := range snap.Users {
		overview.Users.Total++
		if inWindow(u.CreatedAt, since, now) {
			overview.Recent.Registrations++
		}
		if !u.IsActive {
			if u.Role == models.RoleMentor && !u.IsApproved {
				overview.Users.PendingMentors++
			}
			continue
		}
		overview.Users.Active++
		switch u.Role {
		case models.RoleStudent:
			overview.Users.Students++
		case models.RoleMentor:
			if u.IsApproved {
				overview.Users.Mentors++
			} else {
				overview.Users.PendingMentors++
			}
		case models.RoleAdmin:
		}
	}

	idx := newIndex(snap)
	for _, c := range snap.Courses {
		overview.Courses.Total++
		if c.IsActive {
			overview.Courses.Active++
		}
	}
	for _, e := range snap.Enrollments {
		if _, ok := idx.activeCourse(e.CourseID); ok && inWindow(e.EnrollmentDate, since, now) {
			overview.Recent.Enrollments++
		}
	}

	completion, err := ComputeCompletionRate(snap, PlatformScope())
	if err != nil {
		return PlatformOverview{}, err
	}
	overview.Enrollments = completion
	return overview, nil
}

// MonthlyGrowth counts registrations for one calendar month.
type MonthlyGrowth struct {
	Month         string `json:"month"`
	Registrations int    `json:"registrations"`
	Students      int    `json:"students"`
	Mentors       int    `json:"mentors"`
	Admins        int    `json:"admins"`
}

// ComputeUserGrowth groups registrations of the trailing windowMonths months by UTC
// month, most recent first.
func ComputeUserGrowth(snap *Snapshot, now time.Time, windowMonths int) ([]MonthlyGrowth, error) {
	snap = emptySnapshot(snap)
	if windowMonths < 1 {
		return nil, invalidMonths(windowMonths)
	}
	now = now.UTC()
	since := monthsBefore(now, windowMonths)

	byMonth := make(map[string]*MonthlyGrowth)
	var order []string
	for _, u := range snap.Users {
		if !inWindow(u.CreatedAt, since, now) {
			continue
		}
		key := u.CreatedAt.UTC().Format(monthLayout)
		g, ok := byMonth[key]
		if !ok {
			g = &MonthlyGrowth{Month: key}
			byMonth[key] = g
			order = append(order, key)
		}
		g.Registrations++
		switch u.Role {
		case models.RoleStudent:
			g.Students++
		case models.RoleMentor:
			g.Mentors++
		case models.RoleAdmin:
			g.Admins++
		}
	}

	sortMonthsDesc(order)
	growth := make([]MonthlyGrowth, len(order))
	for i, key := range order {
		growth[i] = *byMonth[key]
	}
	return growth, nil
}
