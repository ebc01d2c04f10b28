// Package auth checks operator credentials and issues signed session tokens.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrMissingSecret      = errors.New("missing token secret")
)

const issuer = "kuberx"

type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator holds the username to password map and signs HS256 tokens.
type Authenticator struct {
	users  map[string]string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func New(users map[string]string, secret string, ttl time.Duration) (*Authenticator, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	copied := make(map[string]string, len(users))
	for u, p := range users {
		copied[strings.TrimSpace(u)] = p
	}
	return &Authenticator{users: copied, secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Check verifies a username and password. Unknown users still pay for a
// comparison.
func (a *Authenticator) Check(username, password string) error {
	want, ok := a.users[strings.TrimSpace(username)]
	if !ok {
		want = "\x00"
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(password)) != 1 || !ok {
		return ErrInvalidCredentials
	}
	return nil
}

// Login checks the credentials and returns a signed token for the user.
func (a *Authenticator) Login(username, password string) (string, time.Time, error) {
	if err := a.Check(username, password); err != nil {
		return "", time.Time{}, err
	}
	return a.Issue(strings.TrimSpace(username))
}

func (a *Authenticator) Issue(username string) (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.ttl)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   username,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, exp, nil
}

// Verify returns the username a token was issued to.
func (a *Authenticator) Verify(token string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if _, ok := a.users[claims.Subject]; !ok {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
