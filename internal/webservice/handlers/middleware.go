package handlers

import (
	"errors"
	"net/http"

	"github.com/assetsentry/assetsentry/internal/auth"
	"github.com/assetsentry/assetsentry/internal/common/constants"
)

// RequireSession gates a handler behind a valid session with the given
// capability. It is the only place protected routes consult the session.
func RequireSession(sessions SessionValidator, capability auth.Capability, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(constants.SessionCookieName)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, sessionCheckResponse{})
			return
		}

		id, err := sessions.Validate(cookie.Value)
		if errors.Is(err, auth.ErrNotConfigured) {
			writeError(w, http.StatusInternalServerError, errCodeServerMisconfigured)
			return
		}
		if err != nil || !id.Can(capability) {
			writeJSON(w, http.StatusUnauthorized, sessionCheckResponse{})
			return
		}

		next.ServeHTTP(w, r)
	})
}
