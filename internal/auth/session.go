// Package auth implements the agent's two request-plane guards: session
// tokens (authentication) and per-request HMAC verification with replay
// protection (authorization). See spec.md §4.4.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenIPMismatch means a session token was presented from a client IP
// other than the one it was minted for.
var ErrTokenIPMismatch = errors.New("token assigned to a different IP")

// SessionClaims is the payload carried by a session token: which
// orchestrator it authenticates, the IP it is bound to, and its expiration.
type SessionClaims struct {
	OrchestratorName string `json:"orchestrator_name"`
	OrchestratorIP   string `json:"orchestrator_ip"`
	jwt.RegisteredClaims
}

// SessionSigner mints and verifies session tokens with a single shared
// HS256 key, the Go analogue of the original's module-level token_key plus
// jose.jwt.encode/decode.
type SessionSigner struct {
	key      []byte
	validity time.Duration
}

// NewSessionSigner returns a SessionSigner using key to sign tokens that
// are valid for validity.
func NewSessionSigner(key string, validity time.Duration) *SessionSigner {
	return &SessionSigner{key: []byte(key), validity: validity}
}

// Mint returns a signed session token carrying orchestratorName and
// orchestratorIP, expiring after the signer's configured validity.
func (s *SessionSigner) Mint(orchestratorName, orchestratorIP string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		OrchestratorName: orchestratorName,
		OrchestratorIP:   orchestratorIP,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.validity)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("auth: minting session token: %w", err)
	}
	return signed, nil
}

// Verify parses tokenString, checks its signature and expiry, and confirms
// it was minted for clientIP. Returns the claims on success.
func (s *SessionSigner) Verify(tokenString, clientIP string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("auth: invalid session token: %w", err)
	}
	if claims.OrchestratorIP != clientIP {
		return nil, ErrTokenIPMismatch
	}
	return claims, nil
}
