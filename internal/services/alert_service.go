package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prudhvinik1/numberwatch/internal/repositories"
)

var ErrResolutionNoteRequired = errors.New("resolution note is required")

// AlertService is the manual resolution path. Automatic resolution happens during sync.
type AlertService struct {
	alerts repositories.AlertRepository

	Now func() time.Time
}

func NewAlertService(alerts repositories.AlertRepository) *AlertService {
	return &AlertService{alerts: alerts, Now: time.Now}
}

func (s *AlertService) Resolve(ctx context.Context, alertID uuid.UUID, actor *string, note string) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return ErrResolutionNoteRequired
	}
	return s.alerts.Resolve(ctx, alertID, actor, note, s.Now().UTC())
}
