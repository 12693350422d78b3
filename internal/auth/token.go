package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the signed-in identity
type User struct {
	UID     string `json:"uid"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// DisplayName returns a name suitable for the header
func (u *User) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	}
	return "User"
}

// Error wraps a failed sign-in or sign-out step
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// TokenService signs and verifies session tokens
type TokenService struct {
	Secret   []byte
	Issuer   string
	Duration time.Duration
}

// Claims is the session token payload
type Claims struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// User rebuilds the identity carried by the claims
func (c *Claims) User() *User {
	return &User{UID: c.Subject, Name: c.Name, Email: c.Email, Picture: c.Picture}
}

// Sign issues a token for u
func (ts TokenService) Sign(u *User) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ts.Duration)

	claims := Claims{
		Name:    u.Name,
		Email:   u.Email,
		Picture: u.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.Issuer,
			Subject:   u.UID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(ts.Secret)
	if err != nil {
		return "", time.Time{}, &Error{Op: "sign", Err: err}
	}
	return s, exp, nil
}

// Parse verifies a token and returns its claims
func (ts TokenService) Parse(tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.Secret, nil
	}, jwt.WithIssuer(ts.Issuer))
	if err != nil {
		return nil, &Error{Op: "parse", Err: err}
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || claims.Subject == "" {
		return nil, &Error{Op: "parse", Err: fmt.Errorf("invalid token claims")}
	}
	return claims, nil
}
