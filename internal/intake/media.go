package intake

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

// dataURIRe matches embedded photo values of the form data:<media-type>;base64,<data>.
// A value that has already been substituted with a retrieval URL no longer
// matches, which keeps re-ingestion a no-op.
var dataURIRe = regexp.MustCompile(`^data:(image/[a-zA-Z+]+);base64,(.+)$`)

type objectStore interface {
	// Put stores data under name with the given content type, overwriting any
	// existing object of the same name, and returns its public retrieval URL.
	Put(ctx context.Context, name, contentType string, data []byte) (url string, err error)
}

// ingestResult is the outcome of one photo field upload.
type ingestResult struct {
	url string
	ok  bool
}

// ingest extracts every embedded photo from the payload, stores the decoded
// bytes in the object store and substitutes the stored object's retrieval URL
// into the payload in place of the raw data.
//
// Failures are local to one field: a malformed data-URI or a failed upload
// nulls that field and processing continues. The payload mutation is applied
// after all uploads completed, in lexical key order.
func (p *Pipeline) ingest(ctx context.Context, payload Payload) {
	keys := payload.PhotoKeys()
	if len(keys) == 0 {
		return
	}

	results := make(map[string]ingestResult, len(keys))
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, p.maxConcurrent)
	)

	for _, key := range keys {
		value := payload[key]
		if value.Kind != KindText {
			// Nothing embedded under this key; leave URLs and flags alone.
			if value.IsNull() || value.Kind == KindImage {
				continue
			}
			// Uploads spawned for earlier keys may still be writing results.
			mu.Lock()
			results[key] = ingestResult{}
			mu.Unlock()
			p.photosProcessed.WithLabelValues(resultInvalid).Inc()
			continue
		}

		if isStoredReference(value.Text) {
			// Already substituted on a previous run; ingestion is idempotent.
			payload[key] = Image(value.Text)
			continue
		}

		mime, data, err := parseDataURI(value.Text)
		if err != nil {
			slog.Info("Skipping malformed photo field", "key", key, "err", err)
			mu.Lock()
			results[key] = ingestResult{}
			mu.Unlock()
			p.photosProcessed.WithLabelValues(resultInvalid).Inc()
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(key, mime string, data []byte) {
			defer wg.Done()
			defer func() { <-sem }()

			url, err := p.upload(ctx, key, mime, data)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Error("Photo upload failed", "key", key, "err", err)
				results[key] = ingestResult{}
				p.photosProcessed.WithLabelValues(resultFailed).Inc()
				return
			}
			results[key] = ingestResult{url: url, ok: true}
			p.photosProcessed.WithLabelValues(resultStored).Inc()
		}(key, mime, data)
	}
	wg.Wait()

	// Merge deterministically by field key.
	for _, key := range keys {
		res, found := results[key]
		if !found {
			continue
		}
		if res.ok {
			payload[key] = Image(res.url)
		} else {
			payload[key] = Null()
		}
	}
}

// upload stores one decoded photo in the object store, bounded by the
// configured per-upload timeout.
func (p *Pipeline) upload(ctx context.Context, key, mime string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.uploadTimeout)
	defer cancel()

	name := objectName(p.now(), key, mime)
	url, err := p.store.Put(ctx, name, mime, data)
	if err != nil {
		return "", fmt.Errorf("failed to store object %q: %w", name, err)
	}
	return url, nil
}

// isStoredReference reports whether a photo value is already a retrieval URL
// from a previous ingestion run.
func isStoredReference(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
}

// parseDataURI decodes an embedded photo value into its declared media type
// and raw bytes.
func parseDataURI(value string) (mime string, data []byte, err error) {
	m := dataURIRe.FindStringSubmatch(value)
	if m == nil {
		return "", nil, fmt.Errorf("value is not an embedded image data-URI")
	}

	data, err = base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 image data: %w", err)
	}
	return m[1], data, nil
}

// objectName derives a unique object name from the submission time and the
// field name. The extension comes from the declared media subtype, falling
// back to png for unusual subtypes.
func objectName(t time.Time, key, mime string) string {
	ext := "png"
	if _, subtype, found := strings.Cut(mime, "/"); found && subtype != "" {
		ext = subtype
	}
	return fmt.Sprintf("%d_%s.%s", t.UnixMilli(), key, ext)
}
