package analytics

import (
	"fmt"
	"time"

	"github.com/damp-platform/damp-api/internal/models"
	appErrors "github.com/damp-platform/damp-api/pkg/errors"
)

// RoleEngagement summarises analytics events emitted by active users of one role.
type RoleEngagement struct {
	Role             models.UserRole `json:"role"`
	ActiveUsers      int             `json:"activeUsers"`
	TotalEvents      int             `json:"totalEvents"`
	ActiveDays       int             `json:"activeDays"`
	AvgEventsPerUser float64         `json:"avgEventsPerUser"`
}

type roleCounter struct {
	users  map[int64]struct{}
	days   map[string]struct{}
	events int
}

// roleSlot maps a role onto its position in AllRoles.
func roleSlot(role models.UserRole) (int, bool) {
	switch role {
	case models.RoleStudent:
		return 0, true
	case models.RoleMentor:
		return 1, true
	case models.RoleAdmin:
		return 2, true
	default:
		return 0, false
	}
}

// ComputeEngagementByRole aggregates events from the trailing windowDays days.
// Every role is present in the result, zero-filled when it had no activity.
func ComputeEngagementByRole(snap *Snapshot, now time.Time, windowDays int) ([]RoleEngagement, error) {
	snap = emptySnapshot(snap)
	if windowDays < 1 {
		return nil, appErrors.Clone(appErrors.ErrInvalidWindow, fmt.Sprintf("window of %d days must be positive", windowDays))
	}
	idx := newIndex(snap)
	since := now.Add(-time.Duration(windowDays) * 24 * time.Hour)

	roles := models.AllRoles()
	counters := make([]roleCounter, len(roles))
	for i := range counters {
		counters[i] = roleCounter{users: map[int64]struct{}{}, days: map[string]struct{}{}}
	}

	for _, ev := range snap.Events {
		if ev.UserID == nil || !inWindow(ev.CreatedAt, since, now) {
			continue
		}
		user, ok := idx.users[*ev.UserID]
		if !ok || !user.IsActive {
			continue
		}
		slot, ok := roleSlot(user.Role)
		if !ok {
			continue
		}
		c := &counters[slot]
		c.events++
		c.users[user.ID] = struct{}{}
		c.days[ev.CreatedAt.UTC().Format("2006-01-02")] = struct{}{}
	}

	result := make([]RoleEngagement, len(roles))
	for i, role := range roles {
		c := counters[i]
		avg := 0.0
		if len(c.users) > 0 {
			avg = round2(float64(c.events) / float64(len(c.users)))
		}
		result[i] = RoleEngagement{
			Role:             role,
			ActiveUsers:      len(c.users),
			TotalEvents:      c.events,
			ActiveDays:       len(c.days),
			AvgEventsPerUser: avg,
		}
	}
	return result, nil
}
