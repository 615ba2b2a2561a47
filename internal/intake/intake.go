package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Photo processing results reported in metrics.
const (
	resultStored  = "stored"
	resultInvalid = "invalid"
	resultFailed  = "failed"
)

// Pipeline processes raw submission payloads into persistable records.
type Pipeline struct {
	store objectStore

	maxConcurrent int
	uploadTimeout time.Duration
	now           func() time.Time

	photosProcessed *prometheus.CounterVec
}

type options struct {
	maxConcurrent int
	uploadTimeout time.Duration
	now           func() time.Time
}

// Options represents an optional function to override Pipeline default values.
type Options func(*options)

// New creates a submission pipeline backed by the given object store.
func New(store objectStore, reg prometheus.Registerer, args ...Options) (*Pipeline, error) {
	opts := options{
		maxConcurrent: 4,
		uploadTimeout: 30 * time.Second,
		now:           time.Now,
	}
	for _, opt := range args {
		opt(&opts)
	}

	photosProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_photos_processed_total",
		Help: "Number of submission photo fields processed, by result.",
	}, []string{"result"})
	if err := reg.Register(photosProcessed); err != nil {
		return nil, fmt.Errorf("failed to register photos processed counter: %v", err)
	}

	return &Pipeline{
		store: store,

		maxConcurrent: opts.maxConcurrent,
		uploadTimeout: opts.uploadTimeout,
		now:           opts.now,

		photosProcessed: photosProcessed,
	}, nil
}

// Process runs the full intake pipeline on one submission payload: embedded
// photos are moved to the object store and the normalized record is derived
// from the substituted payload.
//
// Per-field photo failures are absorbed as nulls; Process only errors when
// the record itself cannot be assembled.
func (p *Pipeline) Process(ctx context.Context, payload Payload) (Record, error) {
	p.ingest(ctx, payload)
	return p.normalize(payload)
}
