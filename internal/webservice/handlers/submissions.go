package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/assetsentry/assetsentry/internal/intake"
)

// Submissions serves the stored submission list for the review surface.
type Submissions struct {
	store  SubmissionStore
	labels ChecksLabeler
}

// NewSubmissions creates a new Submissions handler.
func NewSubmissions(store SubmissionStore, labels ChecksLabeler) *Submissions {
	return &Submissions{store: store, labels: labels}
}

// ServeHTTP returns every stored submission, newest first, together with the
// human labels for the check keys they reference.
func (h *Submissions) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()

	records, err := h.store.ListSubmissions(r.Context())
	if err != nil {
		slog.Error("Failed to list submissions", "req_id", reqID, "err", err)
		writeError(w, http.StatusInternalServerError, errCodeInternalError)
		return
	}
	if records == nil {
		records = []intake.Record{}
	}

	labels := make(map[string]string)
	for _, rec := range records {
		for key := range rec.SecurityChecks {
			if _, ok := labels[key]; ok {
				continue
			}
			labels[key] = h.labels.Label(key)
		}
	}

	writeJSON(w, http.StatusOK, struct {
		Success     bool              `json:"success"`
		Submissions []intake.Record   `json:"submissions"`
		Labels      map[string]string `json:"labels"`
	}{
		Success:     true,
		Submissions: records,
		Labels:      labels,
	})
}
