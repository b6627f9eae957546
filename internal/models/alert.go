package models

import (
	"time"

	"github.com/google/uuid"
)

type AlertType string

const (
	AlertQualityDegraded AlertType = "QUALITY_DEGRADED"
	AlertLimitReduced    AlertType = "LIMIT_REDUCED"
	AlertDisconnected    AlertType = "DISCONNECTED"
	AlertRestricted      AlertType = "RESTRICTED"
)

type AlertPriority string

const (
	PriorityLow      AlertPriority = "LOW"
	PriorityMedium   AlertPriority = "MEDIUM"
	PriorityHigh     AlertPriority = "HIGH"
	PriorityCritical AlertPriority = "CRITICAL"
)

type Alert struct {
	ID            uuid.UUID     `json:"id"`
	ResourceID    uuid.UUID     `json:"resource_id"`
	SnapshotID    uuid.UUID     `json:"snapshot_id"`
	Type          AlertType     `json:"type"`
	Priority      AlertPriority `json:"priority"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	PreviousValue string        `json:"previous_value"`
	CurrentValue  string        `json:"current_value"`
	Resolved      bool          `json:"resolved"`
	ResolvedAt    *time.Time    `json:"resolved_at,omitempty"`
	ResolvedBy    *string       `json:"resolved_by,omitempty"`
	Resolution    *string       `json:"resolution,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}
