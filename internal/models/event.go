package models

import "time"

type EventKind string

const (
	EventUpline        EventKind = "upline"
	EventApproveFailed EventKind = "approve_failed"
	EventUpdate        EventKind = "update"
	EventUpdateFailed  EventKind = "update_failed"
)

// EventLog is one append-only audit entry.
type EventLog struct {
	ID           int64     `json:"id"`
	Kind         EventKind `json:"kind"`
	Name         string    `json:"name"`
	AssetID      *int64    `json:"asset_id,omitempty"`
	QuarantineID *int64    `json:"quarantine_id,omitempty"`
	ActorID      *int64    `json:"actor_id,omitempty"`
	Detail       string    `json:"detail"`
	CreatedAt    time.Time `json:"created_at"`
}

// EventFilter narrows an event listing; zero fields match everything.
type EventFilter struct {
	AssetID      int64
	QuarantineID int64
	Limit        int
	Offset       int
}
