package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/prudhvinik1/numberwatch/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	ListActive(ctx context.Context) ([]*models.Account, error)
	// UpdateCredential stores the canonical (encrypted) form of the current token.
	UpdateCredential(ctx context.Context, id uuid.UUID, token string) error
	// ReplaceCredential stores a newly registered token and clears the re-registration flag.
	ReplaceCredential(ctx context.Context, id uuid.UUID, token string) error
	RecordSyncSuccess(ctx context.Context, id uuid.UUID, at time.Time) error
	// RecordSyncFailure sets the blocking flags in failure; it never clears them.
	RecordSyncFailure(ctx context.Context, id uuid.UUID, failure SyncFailure) error
	ClearConfigurationBlocks(ctx context.Context) (int, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// SyncFailure is the account bookkeeping for a failed run.
type SyncFailure struct {
	Message            string
	NeedsReauth        bool
	NeedsConfiguration bool
}

// ResourceChange is everything written for one detected transition. It lands atomically.
type ResourceChange struct {
	Resource *models.PhoneResource
	Snapshot *models.HistorySnapshot
	Alerts   []*models.Alert
	Resolved []*models.Alert
}

type ResourceRepository interface {
	GetByExternalID(ctx context.Context, externalID string) (*models.PhoneResource, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.PhoneResource, error)
	// Upsert inserts on first sight keyed by external id. created is false when
	// the row already existed; r is refreshed with the stored tracked values.
	Upsert(ctx context.Context, r *models.PhoneResource) (bool, error)
	// Touch refreshes verification time, raw payload and names only.
	Touch(ctx context.Context, r *models.PhoneResource) error
	// ApplyChange writes resource, snapshot, alerts and resolutions in one transaction
	// and returns the number of alerts actually inserted.
	ApplyChange(ctx context.Context, change *ResourceChange) (int, error)
	SetMonitoring(ctx context.Context, id uuid.UUID, enabled bool) error
}

type AlertRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Alert, error)
	ListOpenByResource(ctx context.Context, resourceID uuid.UUID) ([]*models.Alert, error)
	ListOpenByAccount(ctx context.Context, accountID uuid.UUID) ([]*models.Alert, error)
	Resolve(ctx context.Context, id uuid.UUID, resolvedBy *string, note string, at time.Time) error
}

type AuditRepository interface {
	AppendLinked(ctx context.Context, event *models.AuditEvent, seal func(*models.AuditEvent) (string, error)) error
	ListChain(ctx context.Context, since time.Time) ([]models.AuditEvent, error)
}
