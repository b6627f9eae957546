package detector

import (
	"strings"

	"github.com/prudhvinik1/numberwatch/internal/models"
	"github.com/prudhvinik1/numberwatch/internal/partner"
)

// Observed is the canonical view of a fetched resource.
type Observed struct {
	Quality models.QualityRating
	Tier    models.ThroughputTier
	Status  models.ConnectionStatus
}

// Observe maps a vendor payload to canonical enums. Missing or unrecognized
// values fall back to UNKNOWN quality, the lowest tier and DISCONNECTED.
func Observe(detail *partner.ResourceDetail) Observed {
	return Observed{
		Quality: NormalizeQuality(detail.QualityRating),
		Tier:    NormalizeTier(detail.ThroughputTier),
		Status:  NormalizeStatus(detail.Status),
	}
}

func NormalizeQuality(raw string) models.QualityRating {
	switch canonical(raw) {
	case "GREEN", "HIGH":
		return models.QualityGreen
	case "YELLOW", "MEDIUM":
		return models.QualityYellow
	case "RED", "LOW":
		return models.QualityRed
	default:
		return models.QualityUnknown
	}
}

func NormalizeTier(raw string) models.ThroughputTier {
	switch canonical(raw) {
	case "TIER_MED", "TIER_1K", "TIER_2K":
		return models.TierMed
	case "TIER_HIGH", "TIER_10K", "TIER_100K":
		return models.TierHigh
	case "TIER_UNLIMITED", "UNLIMITED":
		return models.TierUnlimited
	default:
		return models.TierLow
	}
}

func NormalizeStatus(raw string) models.ConnectionStatus {
	switch canonical(raw) {
	case "CONNECTED":
		return models.StatusConnected
	case "FLAGGED":
		return models.StatusFlagged
	case "RESTRICTED", "RATE_LIMITED":
		return models.StatusRestricted
	default:
		return models.StatusDisconnected
	}
}

func canonical(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
