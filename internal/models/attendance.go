package models

import (
	"time"

	"github.com/google/uuid"
)

// Action is a clock direction. Events for one user alternate in, out, in, …
// starting with in.
type Action string

const (
	ActionIn  Action = "in"
	ActionOut Action = "out"
)

// Valid reports whether a is one of the two known directions.
func (a Action) Valid() bool {
	return a == ActionIn || a == ActionOut
}

// Slot is a coarse time-of-day bucket used for reporting only. It never
// affects accept/reject decisions.
type Slot string

const (
	SlotMorning   Slot = "morning"
	SlotNoon      Slot = "noon"
	SlotAfternoon Slot = "afternoon"
	SlotEvening   Slot = "evening"
)

// AttendanceEvent is a successful, recorded clock action. Rows are
// append-only; the most recent event per user determines the next legal
// action. Score is nil for manual events.
type AttendanceEvent struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	TS        time.Time `json:"ts" db:"ts"`
	Action    Action    `json:"action" db:"action"`
	Score     *float64  `json:"score,omitempty" db:"score"`
	Lat       float64   `json:"lat" db:"lat"`
	Lng       float64   `json:"lng" db:"lng"`
	DistanceM float64   `json:"distance_m" db:"distance_m"`
	Slot      Slot      `json:"slot" db:"slot"`
}

// AttendanceAttempt is the audit record written for every verification call,
// successful or not. Exactly one per call; never mutated. Nullable fields are
// pointers so absence is stored explicitly, not as zero values.
type AttendanceAttempt struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	TS           time.Time  `json:"ts" db:"ts"`
	UserID       *uuid.UUID `json:"user_id,omitempty" db:"user_id"`
	Email        *string    `json:"email,omitempty" db:"email"`
	Action       Action     `json:"action" db:"action"`
	Success      bool       `json:"success" db:"success"`
	Reason       *string    `json:"reason,omitempty" db:"reason"`
	Detail       *string    `json:"detail,omitempty" db:"detail"`
	Score        *float64   `json:"score,omitempty" db:"score"`
	Lat          float64    `json:"lat" db:"lat"`
	Lng          float64    `json:"lng" db:"lng"`
	Accuracy     *float64   `json:"accuracy,omitempty" db:"accuracy"`
	DistanceM    *float64   `json:"distance_m,omitempty" db:"distance_m"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty" db:"department_id"`
	ClientIP     *string    `json:"client_ip,omitempty" db:"client_ip"`
	UserAgent    *string    `json:"user_agent,omitempty" db:"user_agent"`
	SnapshotKey  *string    `json:"snapshot_key,omitempty" db:"snapshot_key"`
	Slot         Slot       `json:"slot" db:"slot"`
}
