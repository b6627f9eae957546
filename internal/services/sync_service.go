package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prudhvinik1/numberwatch/internal/alerting"
	"github.com/prudhvinik1/numberwatch/internal/audit"
	"github.com/prudhvinik1/numberwatch/internal/detector"
	"github.com/prudhvinik1/numberwatch/internal/models"
	"github.com/prudhvinik1/numberwatch/internal/partner"
	"github.com/prudhvinik1/numberwatch/internal/repositories"
)

const (
	DefaultCooldown = 15 * time.Minute

	ActionSyncAccount = "account.sync"

	reasonNeedsReauth        = "credential must be re-registered"
	reasonNeedsConfiguration = "credential or encryption key must be configured"
)

type SyncStatus string

const (
	SyncCompleted SyncStatus = "completed"
	SyncSkipped   SyncStatus = "skipped"
	SyncFailed    SyncStatus = "failed"
)

// SyncState is the position of one run in its state machine.
type SyncState string

const (
	StateIdle       SyncState = "idle"
	StateGuarded    SyncState = "guarded"
	StateFetching   SyncState = "fetching"
	StateDetecting  SyncState = "detecting"
	StatePersisting SyncState = "persisting"
	StateDone       SyncState = "done"

	StateTokenError     SyncState = "token_error"
	StateRateLimited    SyncState = "rate_limited"
	StateFetchError     SyncState = "fetch_error"
	StatePartialFailure SyncState = "partial_failure"
)

type ItemStatus string

const (
	ItemCreated   ItemStatus = "created"
	ItemUpdated   ItemStatus = "updated"
	ItemUnchanged ItemStatus = "unchanged"
	ItemSkipped   ItemStatus = "skipped"
	ItemFailed    ItemStatus = "failed"
)

// ItemResult is the outcome for one phone number within a run.
type ItemResult struct {
	ExternalID    string     `json:"external_id"`
	Status        ItemStatus `json:"status"`
	Changes       []string   `json:"changes,omitempty"`
	AlertsCreated int        `json:"alerts_created,omitempty"`
	Error         string     `json:"error,omitempty"`
	ErrorKind     ErrorKind  `json:"error_kind,omitempty"`
}

// SyncResult is returned for every run; failures are described here rather
// than as Go errors.
type SyncResult struct {
	AccountID      uuid.UUID    `json:"account_id"`
	Status         SyncStatus   `json:"status"`
	State          SyncState    `json:"state"`
	Processed      int          `json:"processed"`
	Created        int          `json:"created"`
	Updated        int          `json:"updated"`
	AlertsCreated  int          `json:"alerts_created"`
	AlertsResolved int          `json:"alerts_resolved"`
	PartialFailure bool         `json:"partial_failure"`
	Error          string       `json:"error,omitempty"`
	ErrorKind      ErrorKind    `json:"error_kind,omitempty"`
	NeedsReauth    bool         `json:"needs_reauth"`
	WillRetry      bool         `json:"will_retry"`
	Items          []ItemResult `json:"items,omitempty"`

	NeedsConfiguration bool `json:"needs_configuration"`
}

// blockedResult is the skip result for an account that must not be synced
// automatically. ok is false when the account is not blocked.
func blockedResult(account *models.Account) (SyncResult, bool) {
	res := SyncResult{AccountID: account.ID, Status: SyncSkipped, State: StateDone}
	switch {
	case account.NeedsReauth:
		res.ErrorKind = KindCredential
		res.NeedsReauth = true
		res.Error = reasonNeedsReauth
	case account.NeedsConfiguration:
		res.ErrorKind = KindConfiguration
		res.NeedsConfiguration = true
		res.Error = reasonNeedsConfiguration
	default:
		return SyncResult{}, false
	}
	return res, true
}

type PartnerClient interface {
	ListResources(ctx context.Context, accountID, businessAccountID, token string) ([]partner.ResourceSummary, error)
	FetchResourceDetail(ctx context.Context, accountID, resourceID, token string) (*partner.ResourceDetail, error)
}

type CredentialVault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
	MigrateIfNeeded(token string) (string, bool, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, actor *string, action, resource string, success bool, ip string, detail map[string]any)
}

type SyncService struct {
	accounts  repositories.AccountRepository
	resources repositories.ResourceRepository
	alerts    repositories.AlertRepository
	client    PartnerClient
	vault     CredentialVault
	engine    *alerting.Engine
	audit     AuditRecorder
	cooldown  time.Duration
	logger    *zap.Logger

	running sync.Map // account id -> struct{}

	Now func() time.Time
}

func NewSyncService(
	accounts repositories.AccountRepository,
	resources repositories.ResourceRepository,
	alerts repositories.AlertRepository,
	client PartnerClient,
	vault CredentialVault,
	engine *alerting.Engine,
	audit AuditRecorder,
	cooldown time.Duration,
	logger *zap.Logger,
) *SyncService {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &SyncService{
		accounts:  accounts,
		resources: resources,
		alerts:    alerts,
		client:    client,
		vault:     vault,
		engine:    engine,
		audit:     audit,
		cooldown:  cooldown,
		logger:    logger.Named("sync"),
		Now:       time.Now,
	}
}

// run carries the mutable state of one Sync call.
type run struct {
	account  *models.Account
	token    string
	migrated bool
	now      time.Time
	result   SyncResult
	logger   *zap.Logger
}

func (r *run) enter(state SyncState) {
	r.logger.Debug("sync state", zap.String("from", string(r.result.State)), zap.String("to", string(state)))
	r.result.State = state
}

func (r *run) fail(state SyncState, kind ErrorKind, err error) {
	r.enter(state)
	r.result.Status = SyncFailed
	r.result.ErrorKind = kind
	r.result.Error = err.Error()
	r.result.NeedsReauth = kind.NeedsReauth()
	r.result.NeedsConfiguration = kind.NeedsConfiguration()
	r.result.WillRetry = kind.Transient()
}

// Sync runs one full synchronization for the account. Runs for the same
// account never overlap within a process.
func (s *SyncService) Sync(ctx context.Context, accountID uuid.UUID, force bool) SyncResult {
	if _, busy := s.running.LoadOrStore(accountID, struct{}{}); busy {
		res := SyncResult{
			AccountID: accountID,
			Status:    SyncSkipped,
			State:     StateIdle,
			Error:     "sync already in progress",
		}
		s.recordSkip(ctx, &res)
		return res
	}
	defer s.running.Delete(accountID)

	r := &run{
		now:    s.Now().UTC(),
		result: SyncResult{AccountID: accountID, State: StateIdle},
		logger: s.logger.With(zap.String("account_id", accountID.String())),
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			r.fail(StateFetchError, KindNotFound, fmt.Errorf("account %s not found", accountID))
		} else {
			r.fail(StateFetchError, KindPersistence, err)
		}
		s.finish(ctx, r)
		return r.result
	}
	r.account = account

	if skipped := s.guard(r, force); skipped {
		s.recordSkip(ctx, &r.result)
		return r.result
	}

	if !s.obtainToken(ctx, r) {
		s.finish(ctx, r)
		return r.result
	}

	s.fetchAndPersist(ctx, r)
	s.finish(ctx, r)
	return r.result
}

// guard short-circuits runs that must not touch the partner. Skips never write
// to the account.
func (s *SyncService) guard(r *run, force bool) bool {
	r.enter(StateGuarded)
	acct := r.account

	skip := func(reason string) bool {
		r.enter(StateDone)
		r.result.Status = SyncSkipped
		r.result.Error = reason
		r.logger.Debug("sync skipped", zap.String("reason", reason))
		return true
	}

	if !acct.Active {
		return skip("account is inactive")
	}
	if force {
		return false
	}
	if blocked, ok := blockedResult(acct); ok {
		r.result.ErrorKind = blocked.ErrorKind
		r.result.NeedsReauth = blocked.NeedsReauth
		r.result.NeedsConfiguration = blocked.NeedsConfiguration
		return skip(blocked.Error)
	}
	if acct.LastSyncAt != nil && r.now.Sub(*acct.LastSyncAt) < s.cooldown {
		return skip(fmt.Sprintf("last sync at %s is within cooldown", acct.LastSyncAt.UTC().Format(time.RFC3339)))
	}
	return false
}

// obtainToken resolves a bearer token through the vault, migrating legacy
// plaintext on the way. The migrated form is stored once the partner accepts it.
func (s *SyncService) obtainToken(ctx context.Context, r *run) bool {
	if r.account.AccessToken == "" {
		r.fail(StateTokenError, KindConfiguration, ErrMissingCredential)
		return false
	}

	stored, migrated, err := s.vault.MigrateIfNeeded(r.account.AccessToken)
	if err != nil {
		r.fail(StateTokenError, classifyVault(err), err)
		return false
	}
	token, err := s.vault.Decrypt(stored)
	if err != nil {
		r.fail(StateTokenError, classifyVault(err), err)
		return false
	}
	r.token = token

	if migrated {
		r.account.AccessToken = stored
		r.migrated = true
		r.logger.Info("credential migrated to encrypted form")
	}
	return true
}

func (s *SyncService) fetchAndPersist(ctx context.Context, r *run) {
	r.enter(StateFetching)
	acct := r.account
	accountKey := acct.ID.String()

	summaries, err := s.client.ListResources(ctx, accountKey, acct.BusinessAccountID, r.token)
	if err != nil {
		kind := classifyPartner(err)
		state := StateFetchError
		if kind == KindRateLimited {
			state = StateRateLimited
			err = partner.ErrRateLimited
		}
		r.fail(state, kind, err)
		return
	}

	// The partner accepted the token, so the encrypted form becomes canonical.
	if r.migrated {
		if err := s.accounts.UpdateCredential(ctx, acct.ID, acct.AccessToken); err != nil {
			r.logger.Error("failed to persist migrated credential", zap.Error(err))
		}
	}

	for i, summary := range summaries {
		if err := ctx.Err(); err != nil {
			r.fail(StateFetchError, KindUnknown, err)
			return
		}

		item, abort := s.processResource(ctx, r, summary)
		r.result.Items = append(r.result.Items, item)
		if abort != nil {
			r.logger.Warn("sync aborted",
				zap.Int("remaining", len(summaries)-i-1),
				zap.String("error_kind", string(abort.kind)))
			r.fail(abort.state, abort.kind, abort.err)
			return
		}
	}

	r.enter(StateDone)
	r.result.Status = SyncCompleted
	for _, item := range r.result.Items {
		if item.Status == ItemFailed {
			r.result.PartialFailure = true
			r.result.State = StatePartialFailure
			break
		}
	}
}

type abortRun struct {
	state SyncState
	kind  ErrorKind
	err   error
}

// processResource handles one phone number. Only failures that invalidate the
// rest of the run (rate limit, rejected credential) are returned as an abort.
func (s *SyncService) processResource(ctx context.Context, r *run, summary partner.ResourceSummary) (ItemResult, *abortRun) {
	item := ItemResult{ExternalID: summary.ID}
	failItem := func(kind ErrorKind, err error) ItemResult {
		item.Status = ItemFailed
		item.ErrorKind = kind
		item.Error = err.Error()
		r.logger.Warn("resource sync failed",
			zap.String("external_id", summary.ID),
			zap.String("error_kind", string(kind)),
			zap.Error(err))
		return item
	}

	existing, err := s.resources.GetByExternalID(ctx, summary.ID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return failItem(KindPersistence, err), nil
	}
	if existing != nil && !existing.MonitoringEnabled {
		item.Status = ItemSkipped
		return item, nil
	}

	detail, err := s.client.FetchResourceDetail(ctx, r.account.ID.String(), summary.ID, r.token)
	if err != nil {
		kind := classifyPartner(err)
		switch kind {
		case KindRateLimited:
			return failItem(kind, partner.ErrRateLimited), &abortRun{StateRateLimited, kind, partner.ErrRateLimited}
		case KindAuthInvalid:
			return failItem(kind, err), &abortRun{StateFetchError, kind, err}
		}
		return failItem(kind, err), nil
	}
	r.result.Processed++

	r.enter(StateDetecting)
	if existing == nil {
		resource := newResource(r.account.ID, summary, detail, r.now)
		created, err := s.resources.Upsert(ctx, resource)
		if err != nil {
			return failItem(KindPersistence, err), nil
		}
		if created {
			r.result.Created++
			item.Status = ItemCreated
			return item, nil
		}
		// Another run inserted it first; compare against what it stored.
		existing = resource
	}

	changes := detector.Detect(existing, detail)
	item.Changes = changes.Diffs

	r.enter(StatePersisting)
	existing.LastVerifiedAt = r.now
	existing.RawDetail = detail.Raw
	if detail.DisplayID != "" {
		existing.DisplayID = detail.DisplayID
	}
	if detail.VerifiedName != "" {
		existing.VerifiedName = detail.VerifiedName
	}

	if !changes.HasTrackedChanges() {
		if err := s.resources.Touch(ctx, existing); err != nil {
			return failItem(KindPersistence, err), nil
		}
		item.Status = ItemUnchanged
		if changes.NameChanged {
			r.result.Updated++
			item.Status = ItemUpdated
		}
		return item, nil
	}

	snapshot := changes.Snapshot(existing, detail)
	snapshot.ID = uuid.New()
	snapshot.CapturedAt = r.now

	existing.QualityRating = changes.Current.Quality
	existing.ThroughputTier = changes.Current.Tier
	existing.ConnectionStatus = changes.Current.Status

	raised := s.engine.Evaluate(existing, snapshot)
	open, err := s.alerts.ListOpenByResource(ctx, existing.ID)
	if err != nil {
		return failItem(KindPersistence, err), nil
	}
	resolved := s.engine.Resolve(open, existing, r.now)

	inserted, err := s.resources.ApplyChange(ctx, &repositories.ResourceChange{
		Resource: existing,
		Snapshot: snapshot,
		Alerts:   raised,
		Resolved: resolved,
	})
	if err != nil {
		return failItem(KindPersistence, err), nil
	}

	r.result.Updated++
	r.result.AlertsCreated += inserted
	r.result.AlertsResolved += len(resolved)
	item.Status = ItemUpdated
	item.AlertsCreated = inserted

	r.logger.Info("resource changed",
		zap.String("external_id", existing.ExternalID),
		zap.Strings("changes", changes.Diffs),
		zap.Int("alerts_created", inserted),
		zap.Int("alerts_resolved", len(resolved)))
	return item, nil
}

// finish persists the run outcome on the account and records it in the audit trail.
func (s *SyncService) finish(ctx context.Context, r *run) {
	res := &r.result

	if r.account != nil {
		if res.Status == SyncCompleted {
			if err := s.accounts.RecordSyncSuccess(ctx, r.account.ID, r.now); err != nil {
				r.logger.Error("failed to record sync success", zap.Error(err))
			}
		} else {
			failure := repositories.SyncFailure{
				Message:            res.Error,
				NeedsReauth:        res.NeedsReauth,
				NeedsConfiguration: res.NeedsConfiguration,
			}
			if err := s.accounts.RecordSyncFailure(ctx, r.account.ID, failure); err != nil {
				r.logger.Error("failed to record sync failure", zap.Error(err))
			}
		}
	}

	fields := []zap.Field{
		zap.String("status", string(res.Status)),
		zap.String("state", string(res.State)),
		zap.Int("processed", res.Processed),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("alerts_created", res.AlertsCreated),
		zap.Int("alerts_resolved", res.AlertsResolved),
	}
	if res.Status == SyncFailed {
		fields = append(fields, zap.String("error_kind", string(res.ErrorKind)), zap.String("error", res.Error))
		r.logger.Warn("sync finished", fields...)
	} else {
		r.logger.Info("sync finished", fields...)
	}

	s.record(ctx, res)
}

// recordSkip audits skips requested by an operator. Scheduled skips leave no trace.
func (s *SyncService) recordSkip(ctx context.Context, res *SyncResult) {
	if audit.ActorFromContext(ctx) == nil {
		return
	}
	s.record(ctx, res)
}

// record writes one audit event per run. success describes the operator's
// request; the partner outcome lives in detail so that partner outages do not
// count as failed attempts against the operator.
func (s *SyncService) record(ctx context.Context, res *SyncResult) {
	detail := map[string]any{
		"status":          string(res.Status),
		"state":           string(res.State),
		"processed":       res.Processed,
		"created":         res.Created,
		"updated":         res.Updated,
		"alerts_created":  res.AlertsCreated,
		"alerts_resolved": res.AlertsResolved,
	}
	if res.ErrorKind != "" {
		detail["error_kind"] = string(res.ErrorKind)
	}
	if res.Error != "" {
		detail["error"] = res.Error
	}
	s.audit.Record(ctx, audit.ActorFromContext(ctx), ActionSyncAccount,
		"/accounts/"+res.AccountID.String()+"/sync", res.ErrorKind != KindNotFound,
		audit.ClientIPFromContext(ctx), detail)
}

func newResource(accountID uuid.UUID, summary partner.ResourceSummary, detail *partner.ResourceDetail, now time.Time) *models.PhoneResource {
	observed := detector.Observe(detail)
	display := detail.DisplayID
	if display == "" {
		display = summary.DisplayID
	}
	return &models.PhoneResource{
		AccountID:        accountID,
		ExternalID:       summary.ID,
		DisplayID:        display,
		VerifiedName:     detail.VerifiedName,
		QualityRating:    observed.Quality,
		ThroughputTier:   observed.Tier,
		ConnectionStatus: observed.Status,
		LastVerifiedAt:   now,
		RawDetail:        detail.Raw,
	}
}
