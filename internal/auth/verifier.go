// Package auth verifies and issues the HS256 tokens that identify accounts.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quiz-duel-service/internal/domain"
)

// ErrMissingSecret is returned when no signing secret is configured.
var ErrMissingSecret = errors.New("jwt secret is not configured")

// DefaultTTL matches the lifetime of tokens issued to players.
const DefaultTTL = 30 * 24 * time.Hour

type claims struct {
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	jwt.RegisteredClaims
}

// Verifier checks bearer tokens. Invalid tokens resolve to an anonymous caller
// rather than an error.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	return &Verifier{secret: []byte(secret), now: time.Now}, nil
}

// Verify returns the account carried by token, or nil if the token is absent,
// malformed, expired or signed with another key.
func (v *Verifier) Verify(token string) *domain.Account {
	token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
	if token == "" {
		return nil
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !parsed.Valid || c.Subject == "" {
		return nil
	}
	return &domain.Account{ID: c.Subject, Username: c.Username, Nickname: c.Nickname}
}

// Issue signs a token for account valid for ttl.
func (v *Verifier) Issue(account domain.Account, ttl time.Duration) (string, error) {
	if account.ID == "" {
		return "", fmt.Errorf("issue token: account id is empty")
	}
	now := v.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Username: account.Username,
		Nickname: account.Nickname,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
