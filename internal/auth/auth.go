// Package auth guards the teacher panel with a single fixed credential
// pair checked by exact string match, exchanged for a short-lived JWT.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrBadCredentials is returned on any username/password mismatch.
var ErrBadCredentials = errors.New("invalid username or password")

type Auth struct {
	username string
	password string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func New(username, password, secret string, ttl time.Duration) *Auth {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Auth{
		username: username,
		password: password,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Login checks the fixed credential pair and returns a signed token.
func (a *Auth) Login(username, password string) (string, error) {
	if username != a.username || password != a.password {
		return "", ErrBadCredentials
	}
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"iat": now.Unix(),
		"exp": now.Add(a.ttl).Unix(),
	})
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a bearer token.
func (a *Auth) Verify(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}

// Middleware rejects requests without a valid Authorization bearer token.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || a.Verify(token) != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
