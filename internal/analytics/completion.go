package analytics

// CompletionRate summarises enrollment completion within a scope.
type CompletionRate struct {
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Percentage float64 `json:"percentage"`
}

// ComputeCompletionRate counts enrollments in the scoped courses and the share marked completed.
func ComputeCompletionRate(snap *Snapshot, scope Scope) (CompletionRate, error) {
	snap = emptySnapshot(snap)
	idx := newIndex(snap)
	courses, err := idx.scopeCourses(scope)
	if err != nil {
		return CompletionRate{}, err
	}

	var result CompletionRate
	for _, e := range snap.Enrollments {
		if _, ok := courses[e.CourseID]; !ok {
			continue
		}
		result.Total++
		if e.IsCompleted {
			result.Completed++
		}
	}
	result.Percentage = percentage(result.Completed, result.Total)
	return result, nil
}
