// Package detector compares stored phone number state with a fresh partner
// payload. It performs no I/O.
package detector

import (
	"fmt"

	"github.com/prudhvinik1/numberwatch/internal/models"
	"github.com/prudhvinik1/numberwatch/internal/partner"
)

type ChangeSet struct {
	QualityChanged bool
	TierChanged    bool
	StatusChanged  bool
	NameChanged    bool

	Previous Observed
	Current  Observed

	Diffs []string
}

// HasTrackedChanges is true when any monitored enum moved. Name changes are
// refreshed on the resource but do not produce history.
func (c ChangeSet) HasTrackedChanges() bool {
	return c.QualityChanged || c.TierChanged || c.StatusChanged
}

// Snapshot builds the history record for this change set.
func (c ChangeSet) Snapshot(resource *models.PhoneResource, detail *partner.ResourceDetail) *models.HistorySnapshot {
	return &models.HistorySnapshot{
		ResourceID:               resource.ID,
		QualityRating:            c.Current.Quality,
		ThroughputTier:           c.Current.Tier,
		ConnectionStatus:         c.Current.Status,
		PreviousQualityRating:    c.Previous.Quality,
		PreviousThroughputTier:   c.Previous.Tier,
		PreviousConnectionStatus: c.Previous.Status,
		QualityChanged:           c.QualityChanged,
		TierChanged:              c.TierChanged,
		StatusChanged:            c.StatusChanged,
		RawDetail:                detail.Raw,
	}
}

func Detect(previous *models.PhoneResource, fetched *partner.ResourceDetail) ChangeSet {
	cs := ChangeSet{
		Previous: Observed{
			Quality: previous.QualityRating,
			Tier:    previous.ThroughputTier,
			Status:  previous.ConnectionStatus,
		},
		Current: Observe(fetched),
	}

	if cs.Previous.Quality != cs.Current.Quality {
		cs.QualityChanged = true
		cs.Diffs = append(cs.Diffs, fmt.Sprintf("quality rating: %s -> %s", cs.Previous.Quality, cs.Current.Quality))
	}
	if cs.Previous.Tier != cs.Current.Tier {
		cs.TierChanged = true
		cs.Diffs = append(cs.Diffs, fmt.Sprintf("throughput tier: %s -> %s", cs.Previous.Tier, cs.Current.Tier))
	}
	if cs.Previous.Status != cs.Current.Status {
		cs.StatusChanged = true
		cs.Diffs = append(cs.Diffs, fmt.Sprintf("connection status: %s -> %s", cs.Previous.Status, cs.Current.Status))
	}
	if fetched.VerifiedName != "" && fetched.VerifiedName != previous.VerifiedName {
		cs.NameChanged = true
		cs.Diffs = append(cs.Diffs, fmt.Sprintf("verified name: %q -> %q", previous.VerifiedName, fetched.VerifiedName))
	}

	return cs
}
