package analytics

import (
	"fmt"
	"sort"
	"time"

	appErrors "github.com/damp-platform/damp-api/pkg/errors"
)

const monthLayout = "2006-01"

// TrendPoint aggregates enrollments for one calendar month.
type TrendPoint struct {
	Month          string `json:"month"`
	Enrollments    int    `json:"enrollments"`
	UniqueCourses  int    `json:"uniqueCourses"`
	UniqueStudents int    `json:"uniqueStudents"`
}

type monthBucket struct {
	enrollments int
	courses     map[int64]struct{}
	students    map[int64]struct{}
}

// ComputeEnrollmentTrend groups enrollments of active courses made in the trailing
// windowMonths months by UTC calendar month, most recent first.
func ComputeEnrollmentTrend(snap *Snapshot, now time.Time, windowMonths int) ([]TrendPoint, error) {
	snap = emptySnapshot(snap)
	if windowMonths < 1 {
		return nil, invalidMonths(windowMonths)
	}
	idx := newIndex(snap)
	now = now.UTC()
	since := monthsBefore(now, windowMonths)

	months := make(map[string]*monthBucket)
	for _, e := range snap.Enrollments {
		if _, ok := idx.activeCourse(e.CourseID); !ok {
			continue
		}
		if !inWindow(e.EnrollmentDate, since, now) {
			continue
		}
		key := e.EnrollmentDate.UTC().Format(monthLayout)
		bucket, ok := months[key]
		if !ok {
			bucket = &monthBucket{courses: map[int64]struct{}{}, students: map[int64]struct{}{}}
			months[key] = bucket
		}
		bucket.enrollments++
		bucket.courses[e.CourseID] = struct{}{}
		bucket.students[e.StudentID] = struct{}{}
	}

	points := make([]TrendPoint, 0, len(months))
	for key, bucket := range months {
		points = append(points, TrendPoint{
			Month:          key,
			Enrollments:    bucket.enrollments,
			UniqueCourses:  len(bucket.courses),
			UniqueStudents: len(bucket.students),
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Month > points[j].Month })
	return points, nil
}

func sortMonthsDesc(months []string) {
	sort.Sort(sort.Reverse(sort.StringSlice(months)))
}

func invalidMonths(months int) error {
	return appErrors.Clone(appErrors.ErrInvalidWindow, fmt.Sprintf("window of %d months must be positive", months))
}

// monthsBefore steps back n calendar months, clamping the day to the end of the
// target month as interval arithmetic does: 2024-03-31 minus one month is 2024-02-29.
func monthsBefore(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month-time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first); day > last {
		day = last
	}
	return first.AddDate(0, 0, day-1)
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}

// inWindow reports whether t falls in the closed interval [since, until].
func inWindow(t, since, until time.Time) bool {
	return !t.Before(since) && !t.After(until)
}
