package handlers

import (
	"net/http"

	"github.com/assetsentry/assetsentry/internal/intake/checks"
)

// Checks serves the shared compliance check definition table, so the intake
// form and the review dashboard render from the same source.
type Checks struct {
	provider ChecksProvider
}

// NewChecks creates a new Checks handler.
func NewChecks(provider ChecksProvider) *Checks {
	return &Checks{provider: provider}
}

// ServeHTTP returns the current check definitions.
func (h *Checks) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defs := h.provider.Definitions()
	if defs == nil {
		defs = []checks.Definition{}
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool                `json:"success"`
		Checks  []checks.Definition `json:"checks"`
	}{
		Success: true,
		Checks:  defs,
	})
}
