package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is a partner business account whose phone numbers are monitored.
type Account struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	BusinessAccountID string     `json:"business_account_id"`
	AccessToken       string     `json:"-"`
	LastSyncAt        *time.Time `json:"last_sync_at,omitempty"`
	LastSyncError     *string    `json:"last_sync_error,omitempty"`
	NeedsReauth       bool       `json:"needs_reauth"`
	Active            bool       `json:"active"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// NeedsConfiguration blocks automatic syncs until the stored credential
	// or the vault key is fixed.
	NeedsConfiguration bool `json:"needs_configuration"`
}
