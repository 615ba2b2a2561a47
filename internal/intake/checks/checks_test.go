package checks_test

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetsentry/assetsentry/internal/common/testutils"
	"github.com/assetsentry/assetsentry/internal/intake/checks"
)

func createTempChecksFile(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "checks.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0600), "failed to write temp checks file")
	return tmpFile
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		content     string
		missingFile bool

		wantDefinitions []checks.Definition
		wantErr         bool
	}{
		"Valid definitions load": {
			content: `{"checks": [{"key": "firewallEnabled", "label": "Firewall enabled?"}, {"key": "antivirus", "label": "Antivirus installed?"}]}`,
			wantDefinitions: []checks.Definition{
				{Key: "firewallEnabled", Label: "Firewall enabled?"},
				{Key: "antivirus", Label: "Antivirus installed?"},
			},
		},
		"Empty JSON loads": {
			content: "{}",
		},

		// Error cases
		"Invalid JSON fails": {
			content: `{"checks": [{"key": "firewallEnabled"}]`, // Missing closing brace
			wantErr: true,
		},
		"Missing file fails": {
			content:     "{}",
			missingFile: true,
			wantErr:     true,
		},
		"Empty file fails": {
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			checksPath := "nonexistent.json"
			if !tc.missingFile {
				checksPath = createTempChecksFile(t, tc.content)
			}

			cm := checks.New(checksPath)
			err := cm.Load()

			if tc.wantErr {
				require.Error(t, err, "expected error loading definitions")
				assert.Empty(t, cm.Definitions(), "expected empty definitions on error")
				return
			}
			require.NoError(t, err, "expected no error loading definitions")
			assert.Equal(t, tc.wantDefinitions, cm.Definitions(), "expected definitions to match")
		})
	}
}

func TestLabel(t *testing.T) {
	t.Parallel()

	checksPath := createTempChecksFile(t, `{"checks": [{"key": "firewallEnabled", "label": "Firewall enabled?"}]}`)
	cm := checks.New(checksPath)
	require.NoError(t, cm.Load(), "Setup: failed to load definitions")

	assert.Equal(t, "Firewall enabled?", cm.Label("firewallEnabled"), "known check should resolve to its label")
	assert.Equal(t, "diskEncryption", cm.Label("diskEncryption"), "unknown check should fall back to its key")
}

func TestWatchMissingDir(t *testing.T) {
	t.Parallel()
	cm := checks.New("somewhere/nonexistent.json")
	watchEvent, watchErr, err := cm.Watch(t.Context())
	require.Error(t, err, "Expected error starting watch on missing checks file")

	select {
	case <-watchErr:
		require.Fail(t, "expected no error in watchErr channel")
	case <-watchEvent:
		require.Fail(t, "expected no event for missing checks file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	t.Parallel()
	initial := `{"checks": [{"key": "alpha", "label": "Alpha?"}]}`
	updated := `{"checks": [{"key": "beta", "label": "Beta?"}]}`
	tmpFile := createTempChecksFile(t, initial)

	cm := checks.New(tmpFile)
	require.NoError(t, cm.Load(), "Setup: initial load failed")

	watchEvent, watchErr, err := cm.Watch(t.Context())
	require.NoError(t, err, "Setup: failed to start watch")
	require.Equal(t, "Alpha?", cm.Label("alpha"), "Setup: expected 'alpha' definition")

	require.NoError(t, os.WriteFile(tmpFile, []byte(updated), 0600), "Setup: failed to write updated definitions")

	time.Sleep(time.Second) // let watcher reload

	require.Equal(t, []checks.Definition{{Key: "beta", Label: "Beta?"}}, cm.Definitions(), "expected definitions to match")
	require.Equal(t, "alpha", cm.Label("alpha"), "expected 'alpha' to fall back to its key")

	select {
	case err := <-watchErr:
		require.NoError(t, err, "expected no error watching checks file")
	case <-watchEvent:
	case <-time.After(200 * time.Millisecond):
		require.Fail(t, "expected change event")
	}
}

func TestWatchIgnoresIrrelevantFiles(t *testing.T) {
	t.Parallel()
	logs := map[slog.Level]uint{
		slog.LevelInfo: 2,
	}

	initial := `{"checks": [{"key": "alpha", "label": "Alpha?"}]}`
	tmpFile := createTempChecksFile(t, initial)
	irrelevantFile := filepath.Join(filepath.Dir(tmpFile), "irrelevant.txt")

	l := testutils.NewMockHandler(slog.LevelDebug)
	cm := checks.New(tmpFile, checks.WithLogger(slog.New(&l)))
	watchEvent, watchErr, err := cm.Watch(t.Context())
	require.NoError(t, err, "Setup: failed to start watch")

	if !l.AssertLevels(t, logs) {
		l.OutputLogs(t)
	}

	require.NoError(t, os.WriteFile(irrelevantFile, []byte("irrelevant content"), 0600), "Setup: failed to write irrelevant file")
	time.Sleep(200 * time.Millisecond) // let watcher reload

	if !l.AssertLevels(t, logs) {
		l.OutputLogs(t)
	}

	select {
	case err := <-watchErr:
		require.NoError(t, err, "expected no error watching checks file")
	case <-watchEvent:
		require.Fail(t, "expected no change event")
	case <-time.After(200 * time.Millisecond):
	}

	require.Equal(t, "Alpha?", cm.Label("alpha"), "expected 'alpha' to still be defined")
}

func TestWatchWarnsIfLoadFails(t *testing.T) {
	t.Parallel()

	initial := `{"checks": [{"key": "alpha", "label": "Alpha?"}]}`
	tmpFile := createTempChecksFile(t, initial)

	l := testutils.NewMockHandler(slog.LevelInfo)
	cm := checks.New(tmpFile, checks.WithLogger(slog.New(&l)))
	watchEvent, watchErr, err := cm.Watch(t.Context())
	require.NoError(t, err, "Setup: failed to start watch")

	require.NoError(t, os.WriteFile(tmpFile, []byte("invalid json"), 0600), "Setup: failed to write invalid definitions")
	time.Sleep(time.Second) // let watcher reload

	// There are sometimes two warning entries due to how different OSes handle events related to os.WriteFile.
	levels := l.GetLevels()
	assert.GreaterOrEqual(t, levels[slog.LevelWarn], uint(1), "expected at least one warning log")
	assert.LessOrEqual(t, levels[slog.LevelWarn], uint(2), "expected at most two warning logs")

	select {
	case err := <-watchErr:
		require.NoError(t, err, "expected no error watching checks file")
	case <-watchEvent:
		require.Fail(t, "expected no change event")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestManagerReadWhileWrite(t *testing.T) {
	tmpFile := createTempChecksFile(t, `{}`)

	cm := checks.New(tmpFile)
	err := os.WriteFile(tmpFile, []byte(`{"checks":[{"key":"foo","label":"Foo?"}]}`), 0600)
	require.NoError(t, err, "Setup: Failed to write initial definitions")
	require.NoError(t, cm.Load(), "Setup: Failed to load initial definitions")

	var wg sync.WaitGroup
	writeCount := 100
	readCount := 100

	// Writer goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range writeCount {
			_ = os.WriteFile(tmpFile, fmt.Appendf(nil, `{"checks":[{"key":"foo","label":"Foo?"},{"key":"foo%d","label":"Foo %d?"}]}`, i, i), 0600)
			_ = cm.Load()
		}
	}()

	// Reader goroutines
	for range readCount {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cm.Definitions()
		}()
	}

	wg.Wait()
	require.Equal(t, []checks.Definition{
		{Key: "foo", Label: "Foo?"},
		{Key: "foo99", Label: "Foo 99?"},
	}, cm.Definitions(), "Expected last written definitions")
}
