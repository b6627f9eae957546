package services

import (
	"errors"

	"github.com/prudhvinik1/numberwatch/internal/partner"
	"github.com/prudhvinik1/numberwatch/internal/vault"
)

// ErrorKind is the closed set of failure classes a sync can report.
type ErrorKind string

const (
	KindConfiguration     ErrorKind = "configuration"
	KindCredential        ErrorKind = "credential"
	KindRateLimited       ErrorKind = "rate_limited"
	KindTimeout           ErrorKind = "timeout"
	KindTransport         ErrorKind = "transport"
	KindAuthInvalid       ErrorKind = "auth_invalid"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindNotFound          ErrorKind = "not_found"
	KindPersistence       ErrorKind = "persistence"
	KindUnknown           ErrorKind = "unknown"
)

var (
	ErrMissingCredential = errors.New("no credential configured for account")
	ErrEmptyCredential   = errors.New("credential must not be empty")
)

// Transient kinds are retried by the next scheduled run.
func (k ErrorKind) Transient() bool {
	switch k {
	case KindRateLimited, KindTimeout, KindTransport, KindMalformedResponse, KindPersistence, KindUnknown:
		return true
	}
	return false
}

// NeedsReauth is true for failures only an operator re-registration can fix.
func (k ErrorKind) NeedsReauth() bool {
	return k == KindCredential || k == KindAuthInvalid
}

// NeedsConfiguration is true for failures an operator must fix in the deployment
// or the stored credential. The account is not synced automatically until then.
func (k ErrorKind) NeedsConfiguration() bool {
	return k == KindConfiguration
}

func classifyPartner(err error) ErrorKind {
	switch partner.KindOf(err) {
	case partner.KindRateLimited:
		return KindRateLimited
	case partner.KindTimeout:
		return KindTimeout
	case partner.KindTransport:
		return KindTransport
	case partner.KindAuthInvalid:
		return KindAuthInvalid
	case partner.KindMalformedResponse:
		return KindMalformedResponse
	}
	return KindUnknown
}

func classifyVault(err error) ErrorKind {
	switch {
	case errors.Is(err, vault.ErrEncryptionUnavailable), errors.Is(err, ErrMissingCredential):
		return KindConfiguration
	case errors.Is(err, vault.ErrCorruptedCredential), errors.Is(err, vault.ErrDecryptionFailed):
		return KindCredential
	}
	return KindUnknown
}
