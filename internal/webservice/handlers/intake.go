package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/assetsentry/assetsentry/internal/intake"
)

// Intake is the handler accepting asset compliance submissions.
type Intake struct {
	pipeline SubmissionPipeline
	store    SubmissionStore

	maxUploadSize int64
}

// NewIntake creates a new Intake handler.
func NewIntake(pipeline SubmissionPipeline, store SubmissionStore, maxUploadSize int64) *Intake {
	return &Intake{
		pipeline:      pipeline,
		store:         store,
		maxUploadSize: maxUploadSize,
	}
}

// ServeHTTP handles incoming submission payloads.
//
// Photo failures are absorbed inside the pipeline; only a failed terminal
// insert or an unreadable request aborts with an error response.
func (h *Intake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	var payload intake.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Error("Failed to decode submission payload", "req_id", reqID, "err", err)
		writeError(w, http.StatusInternalServerError, errCodeInternalError)
		return
	}

	slog.Info("Submission recv'd", "req_id", reqID, "fields", len(payload), "photos", len(payload.PhotoKeys()))

	rec, err := h.pipeline.Process(r.Context(), payload)
	if err != nil {
		slog.Error("Failed to process submission", "req_id", reqID, "err", err)
		writeError(w, http.StatusInternalServerError, errCodeInternalError)
		return
	}

	if err := h.store.InsertSubmission(r.Context(), &rec); err != nil {
		slog.Error("Failed to insert submission", "req_id", reqID, "err", err)
		writeError(w, http.StatusInternalServerError, errCodeDBInsertFailed)
		return
	}

	slog.Info("Submission persisted", "req_id", reqID)
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{Success: true})
}
