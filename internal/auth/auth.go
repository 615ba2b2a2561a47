// Package auth provides reviewer credential verification and the signed,
// time-bounded session tokens gating the review surface.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ubuntu/decorate"
	"golang.org/x/crypto/bcrypt"

	"github.com/assetsentry/assetsentry/internal/common/constants"
)

var (
	// ErrNotConfigured is returned when the signing secret is missing.
	// This is a server misconfiguration, never a credentials failure.
	ErrNotConfigured = errors.New("session signing secret is not configured")

	// ErrInvalidCredentials is returned for any credentials failure. Wrong
	// password and unknown account are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Capability names an action a session may be allowed to perform.
type Capability string

const (
	// CapReviewSubmissions allows browsing stored submissions.
	CapReviewSubmissions Capability = "review:submissions"
	// CapSubmitAssets allows posting new submissions when intake is gated.
	CapSubmitAssets Capability = "submit:assets"
)

// Identity is the subject carried by a session token. The zero value is
// the anonymous identity.
type Identity struct {
	ID    string
	Email string
	Role  string
	Name  string
}

// Can is the single capability gate consulted by protected routes.
// Role is an opaque claim: any authenticated identity may review.
func (id Identity) Can(c Capability) bool {
	return id.ID != ""
}

// Config holds the session manager configuration.
type Config struct {
	// Secret signs session tokens. Empty means the issuer is not usable.
	Secret string
	// Lifetime bounds issued tokens. Zero means the default of one hour.
	Lifetime time.Duration
	// SecureCookies marks issued cookies Secure, for production deployments.
	SecureCookies bool
}

// Manager issues and validates session tokens.
type Manager struct {
	secret        []byte
	lifetime      time.Duration
	secureCookies bool

	now func() time.Time
}

type options struct {
	now func() time.Time
}

// Options represents an optional function to override Manager default values.
type Options func(*options)

// New creates a session manager from the given configuration.
//
// A missing secret does not fail construction: issuing and validating then
// return ErrNotConfigured, so the misconfiguration surfaces as a distinct
// server error instead of an unsigned token.
func New(cfg Config, args ...Options) *Manager {
	opts := options{
		now: time.Now,
	}
	for _, opt := range args {
		opt(&opts)
	}

	lifetime := cfg.Lifetime
	if lifetime == 0 {
		lifetime = constants.DefaultSessionLifetime * time.Second
	}

	return &Manager{
		secret:        []byte(cfg.Secret),
		lifetime:      lifetime,
		secureCookies: cfg.SecureCookies,
		now:           opts.now,
	}
}

// VerifyPassword compares a stored bcrypt hash against a supplied password.
// The comparison is constant time with respect to the password.
func (m *Manager) VerifyPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// dummyHash is a bcrypt hash of an unguessable throwaway value, compared
// against when no account matches so that unknown emails cost the same as
// wrong passwords.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// DummyCompare burns one bcrypt comparison.
func (m *Manager) DummyCompare(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
}

type sessionClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Issue mints a signed session token for the given identity.
func (m *Manager) Issue(id Identity) (token string, err error) {
	defer decorate.OnError(&err, "failed to issue session token")

	if len(m.secret) == 0 {
		return "", ErrNotConfigured
	}

	now := m.now()
	claims := sessionClaims{
		Email: id.Email,
		Role:  id.Role,
		Name:  id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.lifetime)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Validate verifies a session token's signature and expiry and returns the
// embedded identity. Invalid, expired and tampered tokens all fail the same
// way.
func (m *Manager) Validate(token string) (id Identity, err error) {
	defer decorate.OnError(&err, "failed to validate session token")

	if len(m.secret) == 0 {
		return Identity{}, ErrNotConfigured
	}

	var claims sessionClaims
	_, err = jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid session token: %w", err)
	}

	return Identity{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  claims.Role,
		Name:  claims.Name,
	}, nil
}

// SessionCookie builds the cookie carrying a freshly issued session token.
func (m *Manager) SessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.lifetime.Seconds()),
		HttpOnly: true,
		Secure:   m.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearSessionCookie builds the cookie overwriting the session with an
// immediately expiring empty value.
func (m *Manager) ClearSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}
