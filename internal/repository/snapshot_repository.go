package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/damp-platform/damp-api/internal/analytics"
)

const (
	selectUsers       = `SELECT id, email, first_name, last_name, role, expertise, is_active, is_approved, created_at FROM users ORDER BY id`
	selectCourses     = `SELECT id, title, mentor_id, category, difficulty_level, duration_hours, price, is_active, created_at FROM courses ORDER BY id`
	selectModules     = `SELECT id, course_id, order_index, duration_minutes FROM modules ORDER BY id`
	selectEnrollments = `SELECT id, student_id, course_id, enrollment_date, completion_percentage, is_completed, completion_date FROM enrollments ORDER BY id`
	selectAssignments = `SELECT id, course_id, max_points, due_date FROM assignments ORDER BY id`
	selectSubmissions = `SELECT id, assignment_id, student_id, grade, submitted_at, is_late FROM submissions ORDER BY id`
	selectReviews     = `SELECT id, course_id, student_id, rating, created_at FROM course_reviews ORDER BY id`
	selectEvents      = `SELECT id, user_id, event_type, created_at FROM analytics_events ORDER BY id`
)

// SnapshotRepository reads the entity store into an in-memory analytics snapshot.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository constructs the repository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Load reads every table inside one read-only repeatable-read transaction so all rows
// belong to the same view. AsOf is the database clock at the start of that view.
func (r *SnapshotRepository) Load(ctx context.Context) (*analytics.Snapshot, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var asOf time.Time
	if err := tx.GetContext(ctx, &asOf, `SELECT now()`); err != nil {
		return nil, fmt.Errorf("read snapshot clock: %w", err)
	}

	snap := &analytics.Snapshot{AsOf: asOf.UTC()}
	loads := []struct {
		table string
		query string
		dest  interface{}
	}{
		{"users", selectUsers, &snap.Users},
		{"courses", selectCourses, &snap.Courses},
		{"modules", selectModules, &snap.Modules},
		{"enrollments", selectEnrollments, &snap.Enrollments},
		{"assignments", selectAssignments, &snap.Assignments},
		{"submissions", selectSubmissions, &snap.Submissions},
		{"course_reviews", selectReviews, &snap.Reviews},
		{"analytics_events", selectEvents, &snap.Events},
	}
	for _, load := range loads {
		if err := tx.SelectContext(ctx, load.dest, load.query); err != nil {
			return nil, fmt.Errorf("load %s: %w", load.table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot transaction: %w", err)
	}
	return snap, nil
}
