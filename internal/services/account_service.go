package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prudhvinik1/numberwatch/internal/models"
	"github.com/prudhvinik1/numberwatch/internal/repositories"
)

type AccountService struct {
	accounts  repositories.AccountRepository
	resources repositories.ResourceRepository
	alerts    repositories.AlertRepository
	vault     CredentialVault
}

// AccountStatus is the operator view of an account's sync health.
type AccountStatus struct {
	ID                 uuid.UUID               `json:"id"`
	Name               string                  `json:"name"`
	Active             bool                    `json:"active"`
	LastSyncAt         *time.Time              `json:"last_sync_at,omitempty"`
	LastSyncError      *string                 `json:"last_sync_error,omitempty"`
	NeedsReauth        bool                    `json:"needs_reauth"`
	NeedsConfiguration bool                    `json:"needs_configuration"`
	WillRetry          bool                    `json:"will_retry"`
	Resources          []*models.PhoneResource `json:"resources"`
	OpenAlerts         []*models.Alert         `json:"open_alerts"`
}

func NewAccountService(
	accounts repositories.AccountRepository,
	resources repositories.ResourceRepository,
	alerts repositories.AlertRepository,
	vault CredentialVault,
) *AccountService {
	return &AccountService{
		accounts:  accounts,
		resources: resources,
		alerts:    alerts,
		vault:     vault,
	}
}

// Create registers a new partner account with its credential stored encrypted.
func (s *AccountService) Create(ctx context.Context, name, businessAccountID, token string) (*models.Account, error) {
	encrypted, err := s.encrypt(token)
	if err != nil {
		return nil, err
	}
	account := &models.Account{
		Name:              name,
		BusinessAccountID: businessAccountID,
		AccessToken:       encrypted,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// RegisterCredential replaces the account token and clears both blocking flags.
func (s *AccountService) RegisterCredential(ctx context.Context, accountID uuid.UUID, token string) error {
	encrypted, err := s.encrypt(token)
	if err != nil {
		return err
	}
	return s.accounts.ReplaceCredential(ctx, accountID, encrypted)
}

func (s *AccountService) Status(ctx context.Context, accountID uuid.UUID) (*AccountStatus, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	resources, err := s.resources.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if resources == nil {
		resources = []*models.PhoneResource{}
	}
	open, err := s.alerts.ListOpenByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		open = []*models.Alert{}
	}
	blocked := account.NeedsReauth || account.NeedsConfiguration
	return &AccountStatus{
		ID:                 account.ID,
		Name:               account.Name,
		Active:             account.Active,
		LastSyncAt:         account.LastSyncAt,
		LastSyncError:      account.LastSyncError,
		NeedsReauth:        account.NeedsReauth,
		NeedsConfiguration: account.NeedsConfiguration,
		WillRetry:          account.Active && account.LastSyncError != nil && !blocked,
		Resources:          resources,
		OpenAlerts:         open,
	}, nil
}

func (s *AccountService) Deactivate(ctx context.Context, accountID uuid.UUID) error {
	return s.accounts.Deactivate(ctx, accountID)
}

func (s *AccountService) encrypt(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrEmptyCredential
	}
	encrypted, err := s.vault.Encrypt(token)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt credential: %w", err)
	}
	return encrypted, nil
}
