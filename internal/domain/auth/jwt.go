// Package auth provides JWT token issuance and validation for warehouse
// operators. The ledger does no role-based authorization; tokens exist to
// establish who performed each movement.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	appctx "vintrack/internal/core/context"
)

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

// DefaultJWTConfig returns default JWT configuration.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:         secret,
		Issuer:         "vintrack",
		AccessTokenTTL: 12 * time.Hour,
	}
}

// Claims represents JWT claims for a warehouse operator.
type Claims struct {
	jwt.RegisteredClaims
	OperatorID string `json:"uid"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
}

// JWTService handles JWT operations.
type JWTService struct {
	config JWTConfig
}

// NewJWTService creates a new JWT service.
func NewJWTService(config JWTConfig) *JWTService {
	return &JWTService{config: config}
}

// GenerateToken generates an access token for the operator.
func (s *JWTService) GenerateToken(operatorID, name, email string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.config.AccessTokenTTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   operatorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		OperatorID: operatorID,
		Name:       name,
		Email:      email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// ValidateToken validates a token and returns the operator it identifies.
func (s *JWTService) ValidateToken(tokenString string) (*appctx.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return &appctx.Actor{
		ID:    claims.OperatorID,
		Name:  claims.Name,
		Email: claims.Email,
	}, nil
}
