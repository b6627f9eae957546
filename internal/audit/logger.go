// Package audit keeps a hash-chained trail of privileged operations and
// scores actors for suspicious behaviour over a rolling window.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prudhvinik1/numberwatch/internal/models"
)

const (
	DefaultRiskThreshold = 50
	riskNotifyCooldown   = time.Hour
)

// Repository is the durable append-only sink. Optional.
//
// AppendLinked sets PrevHash from the stored tail, calls seal for the event
// hash and inserts the event, all under one chain-wide lock. The tail only
// moves when the insert commits, so several processes share one chain.
type Repository interface {
	AppendLinked(ctx context.Context, event *models.AuditEvent, seal func(*models.AuditEvent) (string, error)) error
}

// Notifier receives actors whose risk total crossed the threshold.
type Notifier interface {
	NotifyRisk(ctx context.Context, score models.RiskScore)
}

type Logger struct {
	window    Window
	repo      Repository
	notifier  Notifier
	logger    *zap.Logger
	threshold int

	// mu and lastHash chain events in memory when there is no repository.
	mu       sync.Mutex
	lastHash string

	Now func() time.Time
	// Location decides what counts as off hours.
	Location *time.Location
}

func NewLogger(window Window, repo Repository, notifier Notifier, threshold int, logger *zap.Logger) *Logger {
	if threshold <= 0 {
		threshold = DefaultRiskThreshold
	}
	named := logger.Named("audit")
	if notifier == nil {
		notifier = LogNotifier{logger: named}
	}
	return &Logger{
		window:    window,
		repo:      repo,
		notifier:  notifier,
		logger:    named,
		threshold: threshold,
		Now:       time.Now,
		Location:  time.UTC,
	}
}

// Record appends one event. Storage failures are logged, never returned.
func (l *Logger) Record(ctx context.Context, actor *string, action, resource string, success bool, ip string, detail map[string]any) {
	event := &models.AuditEvent{
		ID:         uuid.New(),
		ActorID:    actor,
		Action:     action,
		Resource:   resource,
		Success:    success,
		IPAddress:  ip,
		Detail:     detail,
		// Postgres keeps microseconds; the hash must survive a round trip.
		OccurredAt: l.Now().UTC().Truncate(time.Microsecond),
	}

	if l.repo != nil {
		if err := l.repo.AppendLinked(ctx, event, HashEvent); err != nil {
			l.logger.Error("audit sink write failed", zap.String("event_id", event.ID.String()), zap.Error(err))
		}
	} else if err := l.chainInMemory(event); err != nil {
		l.logger.Error("audit event could not be hashed", zap.String("action", action), zap.Error(err))
		return
	}

	l.logger.Info("audit",
		zap.String("event_id", event.ID.String()),
		zap.String("actor_id", actorLabel(actor)),
		zap.String("action", action),
		zap.String("resource", resource),
		zap.Bool("success", success),
		zap.String("ip_address", ip),
		zap.Any("detail", detail),
		zap.String("prev_hash", event.PrevHash),
		zap.String("hash", event.Hash),
	)

	if err := l.window.Append(ctx, event); err != nil {
		l.logger.Error("audit window write failed", zap.String("event_id", event.ID.String()), zap.Error(err))
	}

	if actor != nil && *actor != "" {
		l.checkRisk(ctx, *actor)
	}
}

func (l *Logger) chainInMemory(event *models.AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	event.PrevHash = l.lastHash
	hash, err := HashEvent(event)
	if err != nil {
		return err
	}
	event.Hash = hash
	l.lastHash = hash
	return nil
}

func (l *Logger) checkRisk(ctx context.Context, actor string) {
	score, err := l.Score(ctx, actor)
	if err != nil {
		l.logger.Error("risk scoring failed", zap.String("actor_id", actor), zap.Error(err))
		return
	}
	if score.Total <= l.threshold {
		return
	}
	first, err := l.window.MarkNotified(ctx, actor, riskNotifyCooldown)
	if err != nil {
		l.logger.Error("risk notification bookkeeping failed", zap.String("actor_id", actor), zap.Error(err))
		return
	}
	if first {
		l.notifier.NotifyRisk(ctx, score)
	}
}

// Score aggregates the actor's events over the retention window.
func (l *Logger) Score(ctx context.Context, actor string) (models.RiskScore, error) {
	now := l.Now()
	events, err := l.window.Events(ctx, actor, now.Add(-RetentionWindow))
	if err != nil {
		return models.RiskScore{ActorID: actor}, err
	}
	return ScoreEvents(actor, events, l.Location), nil
}

// LogNotifier surfaces risky actors as warnings on the audit log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) LogNotifier {
	return LogNotifier{logger: logger}
}

func (n LogNotifier) NotifyRisk(_ context.Context, score models.RiskScore) {
	n.logger.Warn("suspicious actor activity",
		zap.String("actor_id", score.ActorID),
		zap.Int("risk_total", score.Total),
		zap.Int("failed_attempts", score.FailedAttempts),
		zap.Int("off_hours_count", score.OffHoursCount),
		zap.Int("rapid_request_count", score.RapidRequestCount),
		zap.Int("distinct_ips", score.DistinctIPs),
	)
}
