package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/prudhvinik1/numberwatch/internal/models"
	"github.com/prudhvinik1/numberwatch/internal/repositories"
)

const DefaultTokenTTL = 12 * time.Hour

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrMissingJWTSecret = errors.New("JWT secret is not configured")
)

// OperatorAuth issues and verifies the bearer tokens used by operators on the
// HTTP API. Every token is backed by a session so it can be revoked early.
type OperatorAuth struct {
	sessions  repositories.SessionRepository
	jwtSecret string
	tokenTTL  time.Duration

	Now func() time.Time
}

type IssuedToken struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
}

type OperatorClaims struct {
	OperatorID string
	SessionID  string
	ExpiresAt  time.Time
}

func NewOperatorAuth(sessions repositories.SessionRepository, jwtSecret string, tokenTTL time.Duration) *OperatorAuth {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &OperatorAuth{
		sessions:  sessions,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
		Now:       time.Now,
	}
}

func (a *OperatorAuth) Issue(ctx context.Context, operatorID string) (*IssuedToken, error) {
	if a.jwtSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	operatorID = strings.TrimSpace(operatorID)
	if operatorID == "" {
		return nil, errors.New("operator id is required")
	}

	now := a.Now()
	session := &models.OperatorSession{
		ID:         uuid.New().String(),
		OperatorID: operatorID,
		ExpiresAt:  now.Add(a.tokenTTL),
		CreatedAt:  now,
	}
	if err := a.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	claims := jwt.MapClaims{
		"sub": operatorID,
		"jti": session.ID,
		"exp": session.ExpiresAt.Unix(),
		"iat": now.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &IssuedToken{Token: token, SessionID: session.ID, ExpiresAt: session.ExpiresAt}, nil
}

// VerifyToken checks the signature only.
func (a *OperatorAuth) VerifyToken(tokenString string) (*OperatorClaims, error) {
	if a.jwtSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.jwtSecret), nil
	}, jwt.WithTimeFunc(a.Now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	operatorID, ok := claims["sub"].(string)
	if !ok || operatorID == "" {
		return nil, ErrInvalidToken
	}
	sessionID, ok := claims["jti"].(string)
	if !ok || sessionID == "" {
		return nil, ErrInvalidToken
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	return &OperatorClaims{OperatorID: operatorID, SessionID: sessionID, ExpiresAt: exp.Time}, nil
}

// Authenticate verifies the token and that its session has not been revoked.
func (a *OperatorAuth) Authenticate(ctx context.Context, tokenString string) (*OperatorClaims, error) {
	claims, err := a.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}
	session, err := a.sessions.GetByID(ctx, claims.SessionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.OperatorID != claims.OperatorID {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (a *OperatorAuth) Revoke(ctx context.Context, sessionID string) error {
	if err := a.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (a *OperatorAuth) RevokeAll(ctx context.Context, operatorID string) (int, error) {
	n, err := a.sessions.DeleteAllForOperator(ctx, operatorID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return n, nil
}
