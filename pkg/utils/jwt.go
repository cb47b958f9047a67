package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionTokenType = "session"

var (
	jwtSecret          = []byte("change-me-in-production")
	jwtExpirationHours = 24 * 365
)

// SessionClaims binds a session credential to one account. The registered
// ID claim carries the session row id so the credential can be revoked.
type SessionClaims struct {
	AccountID uuid.UUID `json:"accountID"`
	TokenType string    `json:"tokenType"`
	jwt.RegisteredClaims
}

func ConfigureJWT(secret string, expirationHours int) {
	if secret != "" {
		jwtSecret = []byte(secret)
	}
	if expirationHours > 0 {
		jwtExpirationHours = expirationHours
	}
}

// SessionLifetime is the validity window applied to new session credentials.
func SessionLifetime() time.Duration {
	return time.Duration(jwtExpirationHours) * time.Hour
}

func GenerateSessionToken(accountID, sessionID uuid.UUID, expiresAt time.Time) (string, error) {
	claims := SessionClaims{
		AccountID: accountID,
		TokenType: sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   accountID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateSessionToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.TokenType != sessionTokenType {
		return nil, fmt.Errorf("invalid token type")
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		return nil, fmt.Errorf("missing session id")
	}

	return claims, nil
}

// SessionID returns the session row id carried by the claims.
func (c *SessionClaims) SessionID() uuid.UUID {
	id, _ := uuid.Parse(c.ID)
	return id
}
