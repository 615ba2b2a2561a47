// Package constants defines the constants shared across the intake service.
package constants

var (
	// Version is the version of the application.
	Version = "Dev"
)

const (
	// CmdName is the name of the intake service command.
	CmdName = "asset-intake-service"

	// SessionCookieName is the name of the session cookie issued on login.
	SessionCookieName = "token"

	// DefaultSessionLifetime is the default session token lifetime, in seconds.
	DefaultSessionLifetime = 3600

	// PhotoBucket is the object store bucket holding submission photos.
	PhotoBucket = "asset-photos"
)
