package intake_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetsentry/assetsentry/internal/intake"
)

func TestParseDataURI(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		value string

		wantMime string
		wantData string
		wantErr  bool
	}{
		"PNG data URI": {
			value:    "data:image/png;base64,aGVsbG8=",
			wantMime: "image/png",
			wantData: "hello",
		},
		"JPEG data URI": {
			value:    "data:image/jpeg;base64,aGVsbG8=",
			wantMime: "image/jpeg",
			wantData: "hello",
		},
		"SVG with plus in subtype": {
			value:    "data:image/svg+xml;base64,aGVsbG8=",
			wantMime: "image/svg+xml",
			wantData: "hello",
		},

		// Error cases
		"Plain text": {
			value:   "just a note",
			wantErr: true,
		},
		"Non-image media type": {
			value:   "data:application/pdf;base64,aGVsbG8=",
			wantErr: true,
		},
		"Missing base64 marker": {
			value:   "data:image/png,aGVsbG8=",
			wantErr: true,
		},
		"Empty data": {
			value:   "data:image/png;base64,",
			wantErr: true,
		},
		"Invalid base64": {
			value:   "data:image/png;base64,!!!not-base64!!!",
			wantErr: true,
		},
		"Retrieval URL": {
			value:   "https://store.example/asset-photos/123_firewall_photo.png",
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			mime, data, err := intake.ParseDataURI(tc.value)
			if tc.wantErr {
				require.Error(t, err, "ParseDataURI should fail")
				return
			}
			require.NoError(t, err, "ParseDataURI should not fail")
			assert.Equal(t, tc.wantMime, mime, "unexpected media type")
			assert.Equal(t, tc.wantData, string(data), "unexpected decoded data")
		})
	}
}

func TestObjectName(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)

	tests := map[string]struct {
		key  string
		mime string

		want string
	}{
		"PNG": {
			key:  "firewall_photo",
			mime: "image/png",
			want: "1741964966000_firewall_photo.png",
		},
		"JPEG": {
			key:  "firewall_cameraPhoto",
			mime: "image/jpeg",
			want: "1741964966000_firewall_cameraPhoto.jpeg",
		},
		"Missing subtype falls back to png": {
			key:  "antivirus_photo",
			mime: "image",
			want: "1741964966000_antivirus_photo.png",
		},
		"Empty subtype falls back to png": {
			key:  "antivirus_photo",
			mime: "image/",
			want: "1741964966000_antivirus_photo.png",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, intake.ObjectName(at, tc.key, tc.mime), "unexpected object name")
		})
	}
}
