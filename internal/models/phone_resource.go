package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type QualityRating string

const (
	QualityGreen   QualityRating = "GREEN"
	QualityYellow  QualityRating = "YELLOW"
	QualityRed     QualityRating = "RED"
	QualityUnknown QualityRating = "UNKNOWN"
)

type ThroughputTier string

const (
	TierLow       ThroughputTier = "TIER_LOW"
	TierMed       ThroughputTier = "TIER_MED"
	TierHigh      ThroughputTier = "TIER_HIGH"
	TierUnlimited ThroughputTier = "TIER_UNLIMITED"
)

// Order places tiers on LOW < MED < HIGH < UNLIMITED. Unrecognized values sort lowest.
func (t ThroughputTier) Order() int {
	switch t {
	case TierMed:
		return 1
	case TierHigh:
		return 2
	case TierUnlimited:
		return 3
	default:
		return 0
	}
}

type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "CONNECTED"
	StatusDisconnected ConnectionStatus = "DISCONNECTED"
	StatusFlagged      ConnectionStatus = "FLAGGED"
	StatusRestricted   ConnectionStatus = "RESTRICTED"
)

// PhoneResource is one tracked phone number. ExternalID is the natural key.
type PhoneResource struct {
	ID                uuid.UUID        `json:"id"`
	AccountID         uuid.UUID        `json:"account_id"`
	ExternalID        string           `json:"external_id"`
	DisplayID         string           `json:"display_id"`
	VerifiedName      string           `json:"verified_name"`
	QualityRating     QualityRating    `json:"quality_rating"`
	ThroughputTier    ThroughputTier   `json:"throughput_tier"`
	ConnectionStatus  ConnectionStatus `json:"connection_status"`
	LastVerifiedAt    time.Time        `json:"last_verified_at"`
	RawDetail         json.RawMessage  `json:"raw_detail,omitempty"`
	MonitoringEnabled bool             `json:"monitoring_enabled"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}
