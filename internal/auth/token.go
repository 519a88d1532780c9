package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Action tags for signed, time-boxed tokens. A token signed for one action
// never validates for another.
const (
	ActionConfirm = "confirm"
	ActionReset   = "reset"
	ActionTicket  = "ticket"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenManager signs session tokens and single-purpose action tokens with
// the application secret.
type TokenManager struct {
	secret     []byte
	sessionTTL time.Duration
	actionTTL  time.Duration
}

func NewTokenManager(secret string, sessionTTL, actionTTL time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), sessionTTL: sessionTTL, actionTTL: actionTTL}
}

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type actionClaims struct {
	Action  string `json:"action"`
	Payload string `json:"payload,omitempty"`
	jwt.RegisteredClaims
}

// GenerateSessionToken issues the bearer token returned on login.
func (m *TokenManager) GenerateSessionToken(userID, email string) (string, error) {
	claims := sessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ParseSessionToken verifies a bearer token and returns the user id and
// email it carries.
func (m *TokenManager) ParseSessionToken(tokenString string) (userID, email string, err error) {
	claims := new(sessionClaims)
	token, err := jwt.ParseWithClaims(tokenString, claims, m.keyFunc, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.Email, nil
}

// GenerateActionToken signs a {action, target id} pair valid for the
// configured action TTL.
func (m *TokenManager) GenerateActionToken(action, targetID string) (string, error) {
	return m.GenerateActionTokenWithPayload(action, targetID, "")
}

// GenerateActionTokenWithPayload additionally embeds an opaque payload,
// e.g. the new address for an email change.
func (m *TokenManager) GenerateActionTokenWithPayload(action, targetID, payload string) (string, error) {
	claims := actionClaims{
		Action:  action,
		Payload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   targetID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.actionTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ParseActionToken verifies signature, expiry and action tag, returning the
// target id and payload.
func (m *TokenManager) ParseActionToken(action, tokenString string) (targetID, payload string, err error) {
	claims := new(actionClaims)
	token, err := jwt.ParseWithClaims(tokenString, claims, m.keyFunc, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", "", ErrInvalidToken
	}
	if claims.Action != action || claims.Subject == "" {
		return "", "", fmt.Errorf("token action mismatch: %w", ErrInvalidToken)
	}
	return claims.Subject, claims.Payload, nil
}

func (m *TokenManager) keyFunc(_ *jwt.Token) (interface{}, error) {
	return m.secret, nil
}
