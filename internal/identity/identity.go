// Package identity supplies the current user's stable id and display name.
package identity

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Provider yields the identity attached to a client session.
type Provider interface {
	UserID() int
	DisplayName() string
}

// Static is a fixed identity, used in tests and for service-local actors.
type Static struct {
	ID   int
	Name string
}

func (s Static) UserID() int         { return s.ID }
func (s Static) DisplayName() string { return s.Name }

// Claims are the JWT claims this system issues and accepts.
type Claims struct {
	UserID int    `json:"user_id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

// ParseToken validates an HS256 token and returns its claims.
func ParseToken(secret, token string) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid || claims.UserID == 0 {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// FromToken builds a Provider from a validated token.
func FromToken(secret, token string) (Static, error) {
	claims, err := ParseToken(secret, token)
	if err != nil {
		return Static{}, err
	}
	return Static{ID: claims.UserID, Name: claims.Name}, nil
}

// NewToken signs a token for the given identity. Exposed for tests and local
// tooling; production tokens come from the marketplace's auth service.
func NewToken(secret string, id int, name string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: id, Name: name})
	return token.SignedString([]byte(secret))
}
