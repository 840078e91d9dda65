package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	appErrors "github.com/damp-platform/damp-api/pkg/errors"
)

// CourseRepository answers ownership questions used for mentor access checks.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// CourseOwner returns the mentor owning an active course. Unknown and inactive
// courses yield ErrInvalidScope, matching what the metrics engine reports.
func (r *CourseRepository) CourseOwner(ctx context.Context, courseID int64) (int64, error) {
	const query = `SELECT mentor_id FROM courses WHERE id = $1 AND is_active = true`
	var mentorID int64
	if err := r.db.GetContext(ctx, &mentorID, query, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrInvalidScope, fmt.Sprintf("course %d not found", courseID))
		}
		return 0, fmt.Errorf("lookup course owner: %w", err)
	}
	return mentorID, nil
}
