package common

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TriggerScope is the only scope accepted by the sync endpoints
const TriggerScope = "sync:trigger"

var (
	ErrTokenSecretMissing = errors.New("trigger token secret is not configured")
	ErrInvalidToken       = errors.New("invalid trigger token")
)

// TriggerClaims identifies who may start sync runs
type TriggerClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// TriggerTokenService issues and validates HS256 bearer tokens for the sync endpoints
type TriggerTokenService struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewTriggerTokenService creates a token service; ttl <= 0 issues tokens without expiry
func NewTriggerTokenService(secretKey string, ttl time.Duration) *TriggerTokenService {
	return &TriggerTokenService{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Issue signs a token for subject (an operator or a calling service)
func (s *TriggerTokenService) Issue(subject string) (string, error) {
	if len(s.secretKey) == 0 {
		return "", ErrTokenSecretMissing
	}
	if subject == "" {
		return "", fmt.Errorf("token subject is required")
	}

	now := s.now()
	claims := TriggerClaims{
		Scope: TriggerScope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses a bearer token and checks signature, expiry and scope
func (s *TriggerTokenService) Validate(tokenString string) (*TriggerClaims, error) {
	if len(s.secretKey) == 0 {
		return nil, ErrTokenSecretMissing
	}

	claims := &TriggerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Scope != TriggerScope {
		return nil, fmt.Errorf("%w: scope %q", ErrInvalidToken, claims.Scope)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing sub or jti", ErrInvalidToken)
	}

	return claims, nil
}
