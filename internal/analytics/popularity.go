package analytics

import (
	"fmt"
	"sort"

	appErrors "github.com/damp-platform/damp-api/pkg/errors"
)

// CoursePopularity ranks a course by its enrollment volume.
type CoursePopularity struct {
	CourseID        int64    `json:"courseId"`
	Title           string   `json:"title"`
	Category        string   `json:"category"`
	DifficultyLevel string   `json:"difficultyLevel"`
	Enrollments     int      `json:"enrollments"`
	Completions     int      `json:"completions"`
	AverageRating   *float64 `json:"averageRating"`
	ReviewCount     int      `json:"reviewCount"`
}

type courseCounter struct {
	enrollments int
	completions int
	ratingSum   float64
	reviews     int
}

// ComputeCoursePopularity returns the top limit active courses by enrollment count,
// ties broken by course id ascending.
func ComputeCoursePopularity(snap *Snapshot, limit int) ([]CoursePopularity, error) {
	snap = emptySnapshot(snap)
	if limit < 1 {
		return nil, appErrors.Clone(appErrors.ErrInvalidLimit, fmt.Sprintf("limit %d must be positive", limit))
	}
	idx := newIndex(snap)

	counters := make(map[int64]*courseCounter)
	for _, c := range snap.Courses {
		if c.IsActive {
			counters[c.ID] = &courseCounter{}
		}
	}
	for _, e := range snap.Enrollments {
		if cc, ok := counters[e.CourseID]; ok {
			cc.enrollments++
			if e.IsCompleted {
				cc.completions++
			}
		}
	}
	for _, r := range snap.Reviews {
		if cc, ok := counters[r.CourseID]; ok {
			cc.ratingSum += float64(r.Rating)
			cc.reviews++
		}
	}

	ranked := make([]CoursePopularity, 0, len(counters))
	for id, cc := range counters {
		course := idx.courses[id]
		ranked = append(ranked, CoursePopularity{
			CourseID:        course.ID,
			Title:           course.Title,
			Category:        course.Category,
			DifficultyLevel: course.DifficultyLevel,
			Enrollments:     cc.enrollments,
			Completions:     cc.completions,
			AverageRating:   average(cc.ratingSum, cc.reviews),
			ReviewCount:     cc.reviews,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Enrollments != ranked[j].Enrollments {
			return ranked[i].Enrollments > ranked[j].Enrollments
		}
		return ranked[i].CourseID < ranked[j].CourseID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
