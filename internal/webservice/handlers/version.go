package handlers

import (
	"net/http"

	"github.com/assetsentry/assetsentry/internal/common/constants"
)

// VersionHandler returns the running service version.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Version string `json:"version"`
	}{Version: constants.Version})
}
