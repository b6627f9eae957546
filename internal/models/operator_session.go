package models

import "time"

// OperatorSession backs one issued operator token. Deleting it revokes the token.
type OperatorSession struct {
	ID         string    `json:"id"`
	OperatorID string    `json:"operator_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}
