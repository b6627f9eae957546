package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent is an append-only record of a privileged operation.
// PrevHash/Hash chain consecutive events so edits and drops are detectable.
type AuditEvent struct {
	ID         uuid.UUID      `json:"id"`
	ActorID    *string        `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Success    bool           `json:"success"`
	IPAddress  string         `json:"ip_address,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	PrevHash   string         `json:"prev_hash"`
	Hash       string         `json:"hash"`
}

// RiskScore is the heuristic suspicion aggregate for one actor.
type RiskScore struct {
	ActorID           string `json:"actor_id"`
	FailedAttempts    int    `json:"failed_attempts"`
	OffHoursCount     int    `json:"off_hours_count"`
	RapidRequestCount int    `json:"rapid_request_count"`
	DistinctIPs       int    `json:"distinct_ips"`
	Total             int    `json:"total"`
}
