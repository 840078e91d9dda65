package analytics

import (
	"sort"

	"github.com/damp-platform/damp-api/internal/models"
)

// MentorStats describes the reach and outcomes of one mentor's active courses.
type MentorStats struct {
	MentorID         int64    `json:"mentorId"`
	MentorName       string   `json:"mentorName"`
	Expertise        *string  `json:"expertise"`
	CoursesCreated   int      `json:"coursesCreated"`
	StudentsTaught   int      `json:"studentsTaught"`
	TotalEnrollments int      `json:"totalEnrollments"`
	CompletionRate   float64  `json:"completionRate"`
	AverageRating    *float64 `json:"averageRating"`
	ReviewCount      int      `json:"reviewCount"`
	// AverageAssignmentScore is the mean grade of graded submissions to the
	// mentor's active course assignments.
	AverageAssignmentScore *float64 `json:"averageAssignmentScore"`
	// EffectivenessScore weighs completion 40%, rating (scaled to 100) 30% and
	// assignment score 30%. It is null while the mentor has no reviews or no graded work.
	EffectivenessScore *float64 `json:"effectivenessScore"`
	Tier               *Tier    `json:"tier"`
}

// Tier buckets a mentor's effectiveness score.
type Tier string

const (
	TierHigh             Tier = "high"
	TierAverage          Tier = "average"
	TierNeedsImprovement Tier = "needs_improvement"
)

// TierFor places a 0-100 score: high from 80, average from 60, below that needs improvement.
func TierFor(score float64) Tier {
	switch {
	case score >= 80:
		return TierHigh
	case score >= 60:
		return TierAverage
	default:
		return TierNeedsImprovement
	}
}

type mentorAccumulator struct {
	mentor      models.User
	courses     int
	students    map[int64]struct{}
	enrollments int
	completed   int
	ratingSum   float64
	reviews     int
	gradeSum    float64
	graded      int
}

// ComputeMentorEffectiveness reports every approved, active mentor owning at least one
// active course, ordered by mentor id. Mentors without courses are left out.
func ComputeMentorEffectiveness(snap *Snapshot) []MentorStats {
	snap = emptySnapshot(snap)
	idx := newIndex(snap)

	acc := make(map[int64]*mentorAccumulator)
	for _, c := range snap.Courses {
		if !c.IsActive {
			continue
		}
		mentor, ok := idx.users[c.MentorID]
		if !ok || mentor.Role != models.RoleMentor || !mentor.IsApproved || !mentor.IsActive {
			continue
		}
		a, ok := acc[mentor.ID]
		if !ok {
			a = &mentorAccumulator{mentor: mentor, students: map[int64]struct{}{}}
			acc[mentor.ID] = a
		}
		a.courses++
	}

	for _, e := range snap.Enrollments {
		a := mentorFor(idx, acc, e.CourseID)
		if a == nil {
			continue
		}
		a.enrollments++
		a.students[e.StudentID] = struct{}{}
		if e.IsCompleted {
			a.completed++
		}
	}
	for _, r := range snap.Reviews {
		a := mentorFor(idx, acc, r.CourseID)
		if a == nil {
			continue
		}
		a.ratingSum += float64(r.Rating)
		a.reviews++
	}
	for _, sub := range snap.Submissions {
		if sub.Grade == nil {
			continue
		}
		assignment, ok := idx.assignments[sub.AssignmentID]
		if !ok {
			continue
		}
		a := mentorFor(idx, acc, assignment.CourseID)
		if a == nil {
			continue
		}
		a.gradeSum += *sub.Grade
		a.graded++
	}

	stats := make([]MentorStats, 0, len(acc))
	for _, a := range acc {
		row := MentorStats{
			MentorID:               a.mentor.ID,
			MentorName:             a.mentor.FullName(),
			Expertise:              a.mentor.Expertise,
			CoursesCreated:         a.courses,
			StudentsTaught:         len(a.students),
			TotalEnrollments:       a.enrollments,
			CompletionRate:         percentage(a.completed, a.enrollments),
			AverageRating:          average(a.ratingSum, a.reviews),
			ReviewCount:            a.reviews,
			AverageAssignmentScore: average(a.gradeSum, a.graded),
		}
		if row.AverageRating != nil && row.AverageAssignmentScore != nil {
			score := effectiveness(row.CompletionRate, *row.AverageRating, *row.AverageAssignmentScore)
			tier := TierFor(score)
			row.EffectivenessScore = &score
			row.Tier = &tier
		}
		stats = append(stats, row)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].MentorID < stats[j].MentorID })
	return stats
}

func effectiveness(completionRate, rating, assignmentScore float64) float64 {
	return round2(completionRate*0.4 + rating*10*0.3 + assignmentScore*0.3)
}

func mentorFor(idx *index, acc map[int64]*mentorAccumulator, courseID int64) *mentorAccumulator {
	course, ok := idx.activeCourse(courseID)
	if !ok {
		return nil
	}
	return acc[course.MentorID]
}
