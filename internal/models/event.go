package models

import "time"

// AnalyticsEvent is one entry of the append-only activity log.
type AnalyticsEvent struct {
	ID        int64     `db:"id" json:"id"`
	UserID    *int64    `db:"user_id" json:"user_id,omitempty"`
	EventType string    `db:"event_type" json:"event_type"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
