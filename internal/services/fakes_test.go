package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prudhvinik1/numberwatch/internal/models"
	"github.com/prudhvinik1/numberwatch/internal/repositories"
)

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*models.Account
	writes   int
}

func newFakeAccountRepo(accounts ...*models.Account) *fakeAccountRepo {
	repo := &fakeAccountRepo{accounts: make(map[uuid.UUID]*models.Account)}
	for _, a := range accounts {
		repo.accounts[a.ID] = a
	}
	return repo
}

func (r *fakeAccountRepo) Create(_ context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account.ID = uuid.New()
	account.Active = true
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	r.accounts[account.ID] = account
	r.writes++
	return nil
}

func (r *fakeAccountRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeAccountRepo) ListActive(_ context.Context) ([]*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Account
	for _, a := range r.accounts {
		if a.Active {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeAccountRepo) update(id uuid.UUID, fn func(a *models.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(a)
	r.writes++
	return nil
}

func (r *fakeAccountRepo) UpdateCredential(_ context.Context, id uuid.UUID, token string) error {
	return r.update(id, func(a *models.Account) { a.AccessToken = token })
}

func (r *fakeAccountRepo) ReplaceCredential(_ context.Context, id uuid.UUID, token string) error {
	return r.update(id, func(a *models.Account) {
		a.AccessToken = token
		a.NeedsReauth = false
		a.NeedsConfiguration = false
		a.LastSyncError = nil
	})
}

func (r *fakeAccountRepo) RecordSyncSuccess(_ context.Context, id uuid.UUID, at time.Time) error {
	return r.update(id, func(a *models.Account) {
		a.LastSyncAt = &at
		a.LastSyncError = nil
		a.NeedsReauth = false
		a.NeedsConfiguration = false
	})
}

func (r *fakeAccountRepo) RecordSyncFailure(_ context.Context, id uuid.UUID, failure repositories.SyncFailure) error {
	return r.update(id, func(a *models.Account) {
		message := failure.Message
		a.LastSyncError = &message
		a.NeedsReauth = a.NeedsReauth || failure.NeedsReauth
		a.NeedsConfiguration = a.NeedsConfiguration || failure.NeedsConfiguration
	})
}

func (r *fakeAccountRepo) ClearConfigurationBlocks(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cleared := 0
	for _, a := range r.accounts {
		if a.NeedsConfiguration && a.AccessToken != "" {
			a.NeedsConfiguration = false
			cleared++
		}
	}
	r.writes += cleared
	return cleared, nil
}

func (r *fakeAccountRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(a *models.Account) { a.Active = false })
}

func (r *fakeAccountRepo) get(id uuid.UUID) models.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.accounts[id]
}

func (r *fakeAccountRepo) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// memoryStore backs both the resource and alert repositories so that
// ApplyChange and alert reads see the same data.
type memoryStore struct {
	mu        sync.Mutex
	resources map[string]*models.PhoneResource
	snapshots []*models.HistorySnapshot
	alerts    []*models.Alert
	touches   int

	// failApply makes ApplyChange fail for these external ids.
	failApply map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		resources: make(map[string]*models.PhoneResource),
		failApply: make(map[string]error),
	}
}

func (m *memoryStore) seed(r *models.PhoneResource) *models.PhoneResource {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	m.resources[r.ExternalID] = r
	return r
}

func (m *memoryStore) GetByExternalID(_ context.Context, externalID string) (*models.PhoneResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resources[externalID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memoryStore) ListByAccount(_ context.Context, accountID uuid.UUID) ([]*models.PhoneResource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PhoneResource
	for _, r := range m.resources {
		if r.AccountID == accountID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryStore) Upsert(_ context.Context, r *models.PhoneResource) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.resources[r.ExternalID]; ok {
		*r = *existing
		return false, nil
	}
	r.ID = uuid.New()
	r.MonitoringEnabled = true
	cp := *r
	m.resources[r.ExternalID] = &cp
	return true, nil
}

func (m *memoryStore) Touch(_ context.Context, r *models.PhoneResource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.resources[r.ExternalID]
	if !ok {
		return repositories.ErrNotFound
	}
	existing.LastVerifiedAt = r.LastVerifiedAt
	existing.RawDetail = r.RawDetail
	existing.DisplayID = r.DisplayID
	existing.VerifiedName = r.VerifiedName
	m.touches++
	return nil
}

func (m *memoryStore) ApplyChange(_ context.Context, change *repositories.ResourceChange) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failApply[change.Resource.ExternalID]; err != nil {
		return 0, err
	}

	cp := *change.Resource
	m.resources[cp.ExternalID] = &cp
	m.snapshots = append(m.snapshots, change.Snapshot)

	inserted := 0
	for _, a := range change.Alerts {
		duplicate := false
		for _, stored := range m.alerts {
			if stored.SnapshotID == a.SnapshotID && stored.Type == a.Type {
				duplicate = true
			}
		}
		if !duplicate {
			m.alerts = append(m.alerts, a)
			inserted++
		}
	}
	for _, resolved := range change.Resolved {
		for _, stored := range m.alerts {
			if stored.ID == resolved.ID {
				*stored = *resolved
			}
		}
	}
	return inserted, nil
}

func (m *memoryStore) SetMonitoring(_ context.Context, id uuid.UUID, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.resources {
		if r.ID == id {
			r.MonitoringEnabled = enabled
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (m *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memoryStore) ListOpenByResource(_ context.Context, resourceID uuid.UUID) ([]*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Alert
	for _, a := range m.alerts {
		if a.ResourceID == resourceID && !a.Resolved {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryStore) ListOpenByAccount(_ context.Context, accountID uuid.UUID) ([]*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owned := make(map[uuid.UUID]bool)
	for _, r := range m.resources {
		if r.AccountID == accountID {
			owned[r.ID] = true
		}
	}
	var out []*models.Alert
	for _, a := range m.alerts {
		if owned[a.ResourceID] && !a.Resolved {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryStore) Resolve(_ context.Context, id uuid.UUID, resolvedBy *string, note string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.ID != id {
			continue
		}
		if a.Resolved {
			return repositories.ErrAlreadyResolved
		}
		a.Resolved = true
		a.ResolvedAt = &at
		a.ResolvedBy = resolvedBy
		a.Resolution = &note
		return nil
	}
	return repositories.ErrNotFound
}

func (m *memoryStore) resource(externalID string) *models.PhoneResource {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resources[externalID]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

func (m *memoryStore) counts() (resources, snapshots, alerts int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resources), len(m.snapshots), len(m.alerts)
}

type auditRecord struct {
	actor    *string
	action   string
	resource string
	success  bool
	ip       string
	detail   map[string]any
}

type fakeAuditRecorder struct {
	mu      sync.Mutex
	records []auditRecord
}

func (f *fakeAuditRecorder) Record(_ context.Context, actor *string, action, resource string, success bool, ip string, detail map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, auditRecord{actor, action, resource, success, ip, detail})
}

func (f *fakeAuditRecorder) all() []auditRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]auditRecord(nil), f.records...)
}
