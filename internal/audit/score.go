package audit

import (
	"sort"
	"time"

	"github.com/prudhvinik1/numberwatch/internal/models"
)

const (
	failedAttemptsThreshold = 5
	offHoursThreshold       = 10
	rapidRequestThreshold   = 50
	distinctIPThreshold     = 3

	failedAttemptsWeight = 30
	offHoursWeight       = 20
	rapidRequestWeight   = 25
	distinctIPWeight     = 25

	// Requests closer together than this count as rapid.
	rapidGap = 2 * time.Second

	offHoursStart = 22
	offHoursEnd   = 6
)

// ScoreEvents applies the fixed-weight heuristics. Total is capped at 100.
func ScoreEvents(actor string, events []models.AuditEvent, loc *time.Location) models.RiskScore {
	if loc == nil {
		loc = time.UTC
	}
	score := models.RiskScore{ActorID: actor}

	sorted := make([]models.AuditEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OccurredAt.Before(sorted[j].OccurredAt) })

	ips := make(map[string]struct{})
	for i, e := range sorted {
		if !e.Success {
			score.FailedAttempts++
		}
		if hour := e.OccurredAt.In(loc).Hour(); hour >= offHoursStart || hour < offHoursEnd {
			score.OffHoursCount++
		}
		if i > 0 && e.OccurredAt.Sub(sorted[i-1].OccurredAt) < rapidGap {
			score.RapidRequestCount++
		}
		if e.IPAddress != "" {
			ips[e.IPAddress] = struct{}{}
		}
	}
	score.DistinctIPs = len(ips)

	if score.FailedAttempts > failedAttemptsThreshold {
		score.Total += failedAttemptsWeight
	}
	if score.OffHoursCount > offHoursThreshold {
		score.Total += offHoursWeight
	}
	if score.RapidRequestCount > rapidRequestThreshold {
		score.Total += rapidRequestWeight
	}
	if score.DistinctIPs > distinctIPThreshold {
		score.Total += distinctIPWeight
	}
	if score.Total > 100 {
		score.Total = 100
	}
	return score
}
