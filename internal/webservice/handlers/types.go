package handlers

import (
	"context"
	"net/http"

	"github.com/assetsentry/assetsentry/internal/auth"
	"github.com/assetsentry/assetsentry/internal/intake"
	"github.com/assetsentry/assetsentry/internal/intake/checks"
	"github.com/assetsentry/assetsentry/internal/storage/database"
)

// SubmissionPipeline processes a raw payload into a persistable record.
type SubmissionPipeline interface {
	Process(ctx context.Context, payload intake.Payload) (intake.Record, error)
}

// SubmissionStore persists and serves asset submission records.
type SubmissionStore interface {
	InsertSubmission(ctx context.Context, rec *intake.Record) error
	ListSubmissions(ctx context.Context) ([]intake.Record, error)
}

// UserStore looks up reviewer accounts.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (database.User, error)
}

// SessionManager issues and validates session tokens and their cookies.
type SessionManager interface {
	SessionValidator

	VerifyPassword(hash, password string) error
	DummyCompare(password string)
	Issue(id auth.Identity) (string, error)
	SessionCookie(token string) *http.Cookie
	ClearSessionCookie() *http.Cookie
}

// SessionValidator validates session tokens.
type SessionValidator interface {
	Validate(token string) (auth.Identity, error)
}

// ChecksProvider serves the shared compliance check definitions.
type ChecksProvider interface {
	Definitions() []checks.Definition
}

// ChecksLabeler resolves a check base name to its human label.
type ChecksLabeler interface {
	Label(key string) string
}
