package cmd

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/civic/internal/daemon"
)

func TestPidFile_Path(t *testing.T) {
	dir := testEnv(t)

	pf := pidFile()
	expected := filepath.Join(dir, "civic-serve.pid")
	assert.Equal(t, expected, pf.Path)
}

func TestServeLogPath(t *testing.T) {
	dir := testEnv(t)

	logPath := serveLogPath()
	expected := filepath.Join(dir, "civic-serve.log")
	assert.Equal(t, expected, logPath)
}

func TestServeStatusRun_NotRunning(t *testing.T) {
	testEnv(t)

	// No PID file exists, so status should show "not running" without error.
	require.NoError(t, serveStatusRun())
	assert.Contains(t, uiOutput(), "not running")
}

func TestServeStatusRun_Running(t *testing.T) {
	testEnv(t)

	pf := pidFile()
	require.NoError(t, pf.Write(daemon.Record{Addr: ":9999"}))
	t.Cleanup(func() { _ = pf.Remove() })

	require.NoError(t, serveStatusRun())
	assert.Contains(t, uiOutput(), ":9999")
}

func TestServeStopRun_NotRunning(t *testing.T) {
	testEnv(t)

	// No PID file exists, so stop should return an error.
	err := serveStopRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestServeStartRun_AlreadyRunning(t *testing.T) {
	testEnv(t)

	// Write a PID file for the current process (which is alive).
	pf := pidFile()
	require.NoError(t, pf.Write(daemon.Record{Addr: ":8080"}))
	t.Cleanup(func() { _ = pf.Remove() })

	err := serveStartRun()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestNewHTTPServer_Routes(t *testing.T) {
	testEnv(t)
	viper.Set("metrics.enabled", true)

	a, err := newApp()
	require.NoError(t, err)
	srv := newHTTPServer(a, ":0")

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/issues", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
