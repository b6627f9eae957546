package alerting

import (
	"fmt"
	"time"

	"github.com/prudhvinik1/numberwatch/internal/models"
)

type rule func(s *models.HistorySnapshot) (models.AlertType, models.AlertPriority, bool)

// One rule per family (quality, tier, status); each yields at most one alert per snapshot.
var rules = []rule{qualityDegraded, limitReduced, connectionLost}

// Engine turns history snapshots into alerts. It holds no state.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate returns zero to three alerts for the snapshot, never two of the same type.
func (e *Engine) Evaluate(resource *models.PhoneResource, snapshot *models.HistorySnapshot) []*models.Alert {
	if snapshot == nil || !snapshot.HasChange() {
		return nil
	}

	var alerts []*models.Alert
	seen := make(map[models.AlertType]bool, len(rules))
	for _, r := range rules {
		alertType, priority, ok := r(snapshot)
		if !ok || seen[alertType] {
			continue
		}
		seen[alertType] = true
		alerts = append(alerts, buildAlert(resource, snapshot, alertType, priority))
	}
	return alerts
}

func qualityDegraded(s *models.HistorySnapshot) (models.AlertType, models.AlertPriority, bool) {
	if !s.QualityChanged || s.PreviousQualityRating != models.QualityGreen {
		return "", "", false
	}
	switch s.QualityRating {
	case models.QualityRed:
		return models.AlertQualityDegraded, models.PriorityHigh, true
	case models.QualityYellow:
		return models.AlertQualityDegraded, models.PriorityMedium, true
	}
	return "", "", false
}

func limitReduced(s *models.HistorySnapshot) (models.AlertType, models.AlertPriority, bool) {
	if !s.TierChanged || s.ThroughputTier.Order() >= s.PreviousThroughputTier.Order() {
		return "", "", false
	}
	return models.AlertLimitReduced, models.PriorityHigh, true
}

func connectionLost(s *models.HistorySnapshot) (models.AlertType, models.AlertPriority, bool) {
	if !s.StatusChanged {
		return "", "", false
	}
	switch s.ConnectionStatus {
	case models.StatusDisconnected:
		return models.AlertDisconnected, models.PriorityCritical, true
	case models.StatusRestricted:
		return models.AlertRestricted, models.PriorityCritical, true
	}
	return "", "", false
}

func buildAlert(resource *models.PhoneResource, s *models.HistorySnapshot, alertType models.AlertType, priority models.AlertPriority) *models.Alert {
	alert := &models.Alert{
		ResourceID: resource.ID,
		SnapshotID: s.ID,
		Type:       alertType,
		Priority:   priority,
	}
	label := resourceLabel(resource)

	switch alertType {
	case models.AlertQualityDegraded:
		alert.PreviousValue = string(s.PreviousQualityRating)
		alert.CurrentValue = string(s.QualityRating)
		alert.Title = fmt.Sprintf("Quality rating degraded on %s", label)
		alert.Description = fmt.Sprintf("Quality rating dropped from %s to %s. Review recent message templates and customer feedback.",
			s.PreviousQualityRating, s.QualityRating)
	case models.AlertLimitReduced:
		alert.PreviousValue = string(s.PreviousThroughputTier)
		alert.CurrentValue = string(s.ThroughputTier)
		alert.Title = fmt.Sprintf("Messaging limit reduced on %s", label)
		alert.Description = fmt.Sprintf("Throughput tier reduced from %s to %s. Outbound volume above the new limit will be rejected.",
			s.PreviousThroughputTier, s.ThroughputTier)
	case models.AlertDisconnected:
		alert.PreviousValue = string(s.PreviousConnectionStatus)
		alert.CurrentValue = string(s.ConnectionStatus)
		alert.Title = fmt.Sprintf("%s is disconnected", label)
		alert.Description = fmt.Sprintf("Connection status changed from %s to %s. The number cannot send or receive messages.",
			s.PreviousConnectionStatus, s.ConnectionStatus)
	case models.AlertRestricted:
		alert.PreviousValue = string(s.PreviousConnectionStatus)
		alert.CurrentValue = string(s.ConnectionStatus)
		alert.Title = fmt.Sprintf("%s is restricted", label)
		alert.Description = fmt.Sprintf("Connection status changed from %s to %s. The partner has restricted this number.",
			s.PreviousConnectionStatus, s.ConnectionStatus)
	}
	return alert
}

// StillApplies reports whether the condition that raised the alert holds for the current state.
func StillApplies(alert *models.Alert, current *models.PhoneResource) bool {
	switch alert.Type {
	case models.AlertQualityDegraded:
		return current.QualityRating != models.QualityGreen
	case models.AlertLimitReduced:
		return current.ThroughputTier.Order() < models.ThroughputTier(alert.PreviousValue).Order()
	case models.AlertDisconnected:
		return current.ConnectionStatus == models.StatusDisconnected
	case models.AlertRestricted:
		return current.ConnectionStatus == models.StatusRestricted
	}
	return true
}

// Resolve marks the open alerts that no longer apply. Resolved alerts are
// returned for persistence; nothing is deleted.
func (e *Engine) Resolve(open []*models.Alert, current *models.PhoneResource, now time.Time) []*models.Alert {
	var resolved []*models.Alert
	for _, alert := range open {
		if alert.Resolved || StillApplies(alert, current) {
			continue
		}
		at := now
		note := fmt.Sprintf("auto-resolved: %s condition cleared (now %s)", alert.Type, currentValue(alert.Type, current))
		alert.Resolved = true
		alert.ResolvedAt = &at
		alert.ResolvedBy = nil
		alert.Resolution = &note
		resolved = append(resolved, alert)
	}
	return resolved
}

func currentValue(alertType models.AlertType, r *models.PhoneResource) string {
	switch alertType {
	case models.AlertQualityDegraded:
		return string(r.QualityRating)
	case models.AlertLimitReduced:
		return string(r.ThroughputTier)
	default:
		return string(r.ConnectionStatus)
	}
}

func resourceLabel(r *models.PhoneResource) string {
	switch {
	case r.DisplayID != "" && r.VerifiedName != "":
		return fmt.Sprintf("%s (%s)", r.DisplayID, r.VerifiedName)
	case r.DisplayID != "":
		return r.DisplayID
	default:
		return r.ExternalID
	}
}
