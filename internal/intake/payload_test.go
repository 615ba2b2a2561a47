package intake_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetsentry/assetsentry/internal/intake"
)

func TestValueUnmarshal(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		raw string

		wantKind  intake.Kind
		wantPlain any
	}{
		"String":  {raw: `"Lenovo"`, wantKind: intake.KindText, wantPlain: "Lenovo"},
		"Boolean": {raw: `true`, wantKind: intake.KindFlag, wantPlain: true},
		"Null":    {raw: `null`, wantKind: intake.KindNull, wantPlain: nil},
		"Number":  {raw: `42`, wantKind: intake.KindOther, wantPlain: float64(42)},
		"Object":  {raw: `{"nested": "value"}`, wantKind: intake.KindOther, wantPlain: map[string]any{"nested": "value"}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var v intake.Value
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &v), "Unmarshal should not fail")
			assert.Equal(t, tc.wantKind, v.Kind, "unexpected kind")
			assert.Equal(t, tc.wantPlain, v.Interface(), "unexpected plain value")

			// Uninterpreted values must survive a round trip unchanged.
			out, err := json.Marshal(v)
			require.NoError(t, err, "Marshal should not fail")
			assert.JSONEq(t, tc.raw, string(out), "unexpected round-tripped JSON")
		})
	}
}

func TestPhotoKey(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		key string

		wantBase   string
		wantSource intake.PhotoSource
		wantOK     bool
	}{
		"Upload photo": {
			key:        "firewall_photo",
			wantBase:   "firewall",
			wantSource: intake.SourceUpload,
			wantOK:     true,
		},
		"Camera photo": {
			key:        "firewall_cameraPhoto",
			wantBase:   "firewall",
			wantSource: intake.SourceCamera,
			wantOK:     true,
		},
		"Plain field": {
			key: "manufacturer",
		},
		"Suffix only as prefix": {
			key: "_photo_comment",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			base, source, ok := intake.PhotoKey(tc.key)
			assert.Equal(t, tc.wantOK, ok, "unexpected photo detection")
			assert.Equal(t, tc.wantBase, base, "unexpected base name")
			assert.Equal(t, tc.wantSource, source, "unexpected source")
		})
	}
}

func TestPhotoKeysOrdered(t *testing.T) {
	t.Parallel()

	payload := intake.Payload{
		"firewall_photo":       intake.Text("a"),
		"antivirus_photo":      intake.Text("b"),
		"firewall_cameraPhoto": intake.Text("c"),
		"manufacturer":         intake.Text("Lenovo"),
	}

	assert.Equal(t, []string{"antivirus_photo", "firewall_cameraPhoto", "firewall_photo"}, payload.PhotoKeys(),
		"photo keys should be lexically ordered and exclude plain fields")
}
