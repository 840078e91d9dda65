package analytics

import (
	"fmt"
	"strings"

	"github.com/damp-platform/damp-api/internal/models"
	appErrors "github.com/damp-platform/damp-api/pkg/errors"
)

// Bucketing selects how a submission grade is mapped onto the letter bands.
type Bucketing string

const (
	// BucketRaw uses the grade exactly as recorded.
	BucketRaw Bucketing = "raw"
	// BucketPercentage normalises the grade against the assignment's max points.
	BucketPercentage Bucketing = "percentage"
)

// ParseBucketing accepts an empty value as BucketRaw.
func ParseBucketing(raw string) (Bucketing, error) {
	switch Bucketing(strings.ToLower(strings.TrimSpace(raw))) {
	case "", BucketRaw:
		return BucketRaw, nil
	case BucketPercentage:
		return BucketPercentage, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown bucketing %q", raw))
	}
}

// GradeBucket is one letter band of the distribution.
type GradeBucket struct {
	Label      string  `json:"label"`
	Range      string  `json:"range"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type gradeBand struct {
	label string
	rng   string
	min   float64
}

var gradeBands = [...]gradeBand{
	{label: "A", rng: "90-100", min: 90},
	{label: "B", rng: "80-89", min: 80},
	{label: "C", rng: "70-79", min: 70},
	{label: "D", rng: "60-69", min: 60},
	{label: "F", rng: "0-59", min: 0},
}

func bandIndex(score float64) int {
	for i, band := range gradeBands[:len(gradeBands)-1] {
		if score >= band.min {
			return i
		}
	}
	return len(gradeBands) - 1
}

// ComputeGradeDistribution buckets graded submissions of the scoped courses into A..F.
// All five buckets are always returned, in band order.
func ComputeGradeDistribution(snap *Snapshot, scope Scope, bucketing Bucketing) ([]GradeBucket, error) {
	snap = emptySnapshot(snap)
	if bucketing == "" {
		bucketing = BucketRaw
	}
	if bucketing != BucketRaw && bucketing != BucketPercentage {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown bucketing %q", bucketing))
	}
	idx := newIndex(snap)
	courses, err := idx.scopeCourses(scope)
	if err != nil {
		return nil, err
	}

	var counts [len(gradeBands)]int
	graded := 0
	for _, sub := range snap.Submissions {
		if sub.Grade == nil {
			continue
		}
		assignment, ok := idx.assignments[sub.AssignmentID]
		if !ok {
			continue
		}
		if _, ok := courses[assignment.CourseID]; !ok {
			continue
		}
		counts[bandIndex(score(*sub.Grade, assignment, bucketing))]++
		graded++
	}

	buckets := make([]GradeBucket, len(gradeBands))
	for i, band := range gradeBands {
		buckets[i] = GradeBucket{
			Label:      band.label,
			Range:      band.rng,
			Count:      counts[i],
			Percentage: percentage(counts[i], graded),
		}
	}
	return buckets, nil
}

func score(grade float64, assignment models.Assignment, bucketing Bucketing) float64 {
	if bucketing == BucketRaw {
		return grade
	}
	return scorePercentage(grade, assignment)
}

func scorePercentage(grade float64, assignment models.Assignment) float64 {
	maxPoints := float64(assignment.MaxPoints)
	if maxPoints <= 0 {
		maxPoints = 100
	}
	return grade / maxPoints * 100
}
