package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// HistorySnapshot records one detected transition. Immutable once written.
type HistorySnapshot struct {
	ID         uuid.UUID `json:"id"`
	ResourceID uuid.UUID `json:"resource_id"`

	QualityRating    QualityRating    `json:"quality_rating"`
	ThroughputTier   ThroughputTier   `json:"throughput_tier"`
	ConnectionStatus ConnectionStatus `json:"connection_status"`

	PreviousQualityRating    QualityRating    `json:"previous_quality_rating"`
	PreviousThroughputTier   ThroughputTier   `json:"previous_throughput_tier"`
	PreviousConnectionStatus ConnectionStatus `json:"previous_connection_status"`

	QualityChanged bool `json:"quality_changed"`
	TierChanged    bool `json:"tier_changed"`
	StatusChanged  bool `json:"status_changed"`

	CapturedAt time.Time       `json:"captured_at"`
	RawDetail  json.RawMessage `json:"raw_detail,omitempty"`
}

func (s *HistorySnapshot) HasChange() bool {
	return s.QualityChanged || s.TierChanged || s.StatusChanged
}
