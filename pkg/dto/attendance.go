package dto

import (
	"encoding/json"

	"github.com/google/uuid"
)

// UserInfo is the identity summary embedded in successful clock responses.
type UserInfo struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
}

// ClockResponse is returned for every accepted attendance event.
type ClockResponse struct {
	OK           bool      `json:"ok"`
	Action       string    `json:"action"`
	Slot         string    `json:"slot"`
	Score        *float64  `json:"score,omitempty"`
	DistanceM    int       `json:"distance_m"`
	AttendanceID uuid.UUID `json:"attendance_id"`
	User         UserInfo  `json:"user"`
}

// RejectionResponse is returned for every refused verification call. Reason
// is the stable machine-checkable code; Error carries the human detail.
type RejectionResponse struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
	Reason    string `json:"reason"`
	Retryable bool   `json:"retryable,omitempty"`
}

// WSEvent wraps an attempt record for WebSocket fan-out.
type WSEvent struct {
	Type    string          `json:"type"`
	Outcome string          `json:"outcome"`
	Data    json.RawMessage `json:"data"`
}
