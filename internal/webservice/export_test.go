package webservice

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/assetsentry/assetsentry/internal/intake/checks"
)

type DChecksManager = dChecksManager

// HTTPServer returns the HTTP server for testing purposes.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// MetricsAddr returns the true address of the metrics server.
func (s *Server) MetricsAddr() string {
	return s.metricsServer.Addr()
}

// GenerateTestChecksConfig writes a temporary check definitions file for testing.
func GenerateTestChecksConfig(t *testing.T, conf *checks.Conf) string {
	t.Helper()

	d, err := json.Marshal(conf)
	require.NoError(t, err, "Setup: failed to marshal check definitions for tests")
	confPath := filepath.Join(t.TempDir(), "checks-testconfig.json")
	require.NoError(t, os.WriteFile(confPath, d, 0600), "Setup: failed to write check definitions for tests")

	return confPath
}
