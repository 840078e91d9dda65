package analytics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/damp-platform/damp-api/internal/models"
	appErrors "github.com/damp-platform/damp-api/pkg/errors"
)

// Dimension is the course attribute a completion breakdown groups by.
type Dimension string

const (
	DimensionCategory   Dimension = "category"
	DimensionDifficulty Dimension = "difficulty"
)

// ParseDimension defaults to DimensionCategory.
func ParseDimension(raw string) (Dimension, error) {
	switch Dimension(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DimensionCategory:
		return DimensionCategory, nil
	case DimensionDifficulty:
		return DimensionDifficulty, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown breakdown dimension %q", raw))
	}
}

// BreakdownEntry is the completion rate of one group of courses.
type BreakdownEntry struct {
	Key         string  `json:"key"`
	Courses     int     `json:"courses"`
	Enrollments int     `json:"enrollments"`
	Completed   int     `json:"completed"`
	Percentage  float64 `json:"percentage"`
}

// ComputeCompletionBreakdown groups completion of active courses by category or
// difficulty, ordered by percentage descending then key ascending.
func ComputeCompletionBreakdown(snap *Snapshot, dimension Dimension) ([]BreakdownEntry, error) {
	snap = emptySnapshot(snap)
	if dimension == "" {
		dimension = DimensionCategory
	}
	if dimension != DimensionCategory && dimension != DimensionDifficulty {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown breakdown dimension %q", dimension))
	}
	idx := newIndex(snap)

	groups := make(map[string]*BreakdownEntry)
	for _, c := range snap.Courses {
		if !c.IsActive {
			continue
		}
		key := groupKey(c, dimension)
		g, ok := groups[key]
		if !ok {
			g = &BreakdownEntry{Key: key}
			groups[key] = g
		}
		g.Courses++
	}
	for _, e := range snap.Enrollments {
		course, ok := idx.activeCourse(e.CourseID)
		if !ok {
			continue
		}
		g := groups[groupKey(course, dimension)]
		g.Enrollments++
		if e.IsCompleted {
			g.Completed++
		}
	}

	entries := make([]BreakdownEntry, 0, len(groups))
	for _, g := range groups {
		g.Percentage = percentage(g.Completed, g.Enrollments)
		entries = append(entries, *g)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Percentage != entries[j].Percentage {
			return entries[i].Percentage > entries[j].Percentage
		}
		return entries[i].Key < entries[j].Key
	})
	return entries, nil
}

func groupKey(c models.Course, dimension Dimension) string {
	if dimension == DimensionDifficulty {
		return c.DifficultyLevel
	}
	return c.Category
}

const maxCompletionDays = 365

// CompletionTime describes how long completed enrollments took, in days.
type CompletionTime struct {
	Samples    int     `json:"samples"`
	MeanDays   float64 `json:"meanDays"`
	MedianDays float64 `json:"medianDays"`
	MinDays    float64 `json:"minDays"`
	MaxDays    float64 `json:"maxDays"`
	// ByCategory is ordered fastest first, ties by category name.
	ByCategory []CategoryCompletionTime `json:"byCategory"`
}

// CategoryCompletionTime is the completion time of one course category.
type CategoryCompletionTime struct {
	Category   string  `json:"category"`
	Samples    int     `json:"samples"`
	MeanDays   float64 `json:"meanDays"`
	MedianDays float64 `json:"medianDays"`
}

// ComputeTimeToCompletion measures whole days from enrollment to completion for completed
// enrollments of active courses. Durations outside [0, 365] days are discarded.
func ComputeTimeToCompletion(snap *Snapshot) CompletionTime {
	snap = emptySnapshot(snap)
	idx := newIndex(snap)

	var days []float64
	byCategory := make(map[string][]float64)
	for _, e := range snap.Enrollments {
		if !e.IsCompleted || e.CompletionDate == nil {
			continue
		}
		c, ok := idx.activeCourse(e.CourseID)
		if !ok {
			continue
		}
		d := e.CompletionDate.Sub(e.EnrollmentDate)
		if d < 0 {
			continue
		}
		whole := float64(int64(d.Hours()) / 24)
		if whole > maxCompletionDays {
			continue
		}
		days = append(days, whole)
		byCategory[c.Category] = append(byCategory[c.Category], whole)
	}
	if len(days) == 0 {
		return CompletionTime{}
	}

	result := CompletionTime{Samples: len(days), MinDays: days[0], MaxDays: days[0]}
	sum := 0.0
	for _, d := range days {
		sum += d
		if d < result.MinDays {
			result.MinDays = d
		}
		if d > result.MaxDays {
			result.MaxDays = d
		}
	}
	result.MeanDays = round1(sum / float64(len(days)))
	result.MedianDays = round1(median(days))

	result.ByCategory = make([]CategoryCompletionTime, 0, len(byCategory))
	for category, samples := range byCategory {
		total := 0.0
		for _, d := range samples {
			total += d
		}
		result.ByCategory = append(result.ByCategory, CategoryCompletionTime{
			Category:   category,
			Samples:    len(samples),
			MeanDays:   round1(total / float64(len(samples))),
			MedianDays: round1(median(samples)),
		})
	}
	sort.Slice(result.ByCategory, func(i, j int) bool {
		a, b := result.ByCategory[i], result.ByCategory[j]
		if a.MeanDays != b.MeanDays {
			return a.MeanDays < b.MeanDays
		}
		return a.Category < b.Category
	})
	return result
}

// StudentPerformance summarises graded submissions across active courses.
type StudentPerformance struct {
	Submissions            int      `json:"submissions"`
	GradedSubmissions      int      `json:"gradedSubmissions"`
	LateSubmissions        int      `json:"lateSubmissions"`
	LatePercentage         float64  `json:"latePercentage"`
	AverageScorePercentage *float64 `json:"averageScorePercentage"`
	// GradedStudents counts students with at least one graded submission. Tiers and
	// AtRiskStudents classify each of them by their own mean score percentage.
	GradedStudents int        `json:"gradedStudents"`
	Tiers          TierCounts `json:"tiers"`
	AtRiskStudents int        `json:"atRiskStudents"`
}

// TierCounts tallies members per Tier.
type TierCounts struct {
	High             int `json:"high"`
	Average          int `json:"average"`
	NeedsImprovement int `json:"needsImprovement"`
}

func (t *TierCounts) add(tier Tier) {
	switch tier {
	case TierHigh:
		t.High++
	case TierAverage:
		t.Average++
	default:
		t.NeedsImprovement++
	}
}

const atRiskBelow = 70

type studentScore struct {
	sum    float64
	graded int
}

// ComputeStudentPerformance reports submission timeliness and the mean normalised score.
func ComputeStudentPerformance(snap *Snapshot) StudentPerformance {
	snap = emptySnapshot(snap)
	idx := newIndex(snap)

	var perf StudentPerformance
	scoreSum := 0.0
	students := make(map[int64]*studentScore)
	for _, sub := range snap.Submissions {
		assignment, ok := idx.assignments[sub.AssignmentID]
		if !ok {
			continue
		}
		if _, ok := idx.activeCourse(assignment.CourseID); !ok {
			continue
		}
		perf.Submissions++
		if sub.IsLate {
			perf.LateSubmissions++
		}
		if sub.Grade != nil {
			score := scorePercentage(*sub.Grade, assignment)
			perf.GradedSubmissions++
			scoreSum += score
			st, ok := students[sub.StudentID]
			if !ok {
				st = &studentScore{}
				students[sub.StudentID] = st
			}
			st.sum += score
			st.graded++
		}
	}
	perf.LatePercentage = percentage(perf.LateSubmissions, perf.Submissions)
	perf.AverageScorePercentage = average(scoreSum, perf.GradedSubmissions)

	perf.GradedStudents = len(students)
	for _, st := range students {
		mean := *average(st.sum, st.graded)
		perf.Tiers.add(TierFor(mean))
		if mean < atRiskBelow {
			perf.AtRiskStudents++
		}
	}
	return perf
}
