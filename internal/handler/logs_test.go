package handler

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionbridge/internal/logger"
)

func TestLogHandlers(t *testing.T) {
	dir := t.TempDir()
	logs, err := logger.NewLogger(dir)
	require.NoError(t, err)
	t.Cleanup(func() { logs.Close() })

	logs.Warning("camera %s unplugged", "usb0")

	show := ShowLogsHandler(dir)
	rec := httptest.NewRecorder()
	show(rec, mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/logs/warning", nil), map[string]string{"level": "warning"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "camera usb0 unplugged")

	rec = httptest.NewRecorder()
	show(rec, mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/logs/debug", nil), map[string]string{"level": "debug"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	ClearLogsHandler(logs)(rec, mux.SetURLVars(httptest.NewRequest(http.MethodPost, "/logs/warning/clear", nil), map[string]string{"level": "warning"}))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	data, err := os.ReadFile(filepath.Join(dir, logger.WarningFile))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestServeLogFile_Missing(t *testing.T) {
	rec := httptest.NewRecorder()
	serveLogFile(rec, httptest.NewRequest(http.MethodGet, "/logs/info", nil), t.TempDir(), logger.InfoFile)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), logger.InfoFile)
}
