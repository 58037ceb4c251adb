package sharelink

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Signer issues and verifies read-only chat share tokens. Tokens are HS256
// JWTs carrying the chat and owner IDs so a shared chat can be rendered
// without a session.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

// Claims are the share token payload.
type Claims struct {
	UserID string `json:"uid"`
	ChatID string `json:"cid"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("sharelink: invalid token")

func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// Sign issues a share token for one chat.
func (s *Signer) Sign(userID, chatID string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		ChatID: chatID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign share token: %w", err)
	}
	return signed, nil
}

// Verify parses a share token and returns its claims.
func (s *Signer) Verify(tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.UserID == "" || claims.ChatID == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
