package route

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionbridge/internal/config"
	"visionbridge/internal/logger"
	"visionbridge/internal/middleware"
	"visionbridge/internal/model"
	"visionbridge/internal/service/metrics"
	ws "visionbridge/internal/service/websocket"
)

type stubController struct{ manual int }

func (s *stubController) StartCamera(context.Context) error     { return nil }
func (s *stubController) StopCamera()                           {}
func (s *stubController) SetAutoMode(bool, time.Duration) error { return nil }
func (s *stubController) ToggleAutoMode() error                 { return nil }
func (s *stubController) RequestManualAnalysis() bool           { s.manual++; return true }
func (s *stubController) CheckConnection(context.Context) bool  { return true }
func (s *stubController) RefreshStatus(context.Context) bool    { return true }
func (s *stubController) TestConnection(context.Context) bool   { return true }
func (s *stubController) Snapshot() model.Snapshot              { return model.Snapshot{} }

func newRouter(t *testing.T, password string) (http.Handler, *stubController) {
	t.Helper()
	sessions, err := middleware.NewSessionStore(password, "")
	require.NoError(t, err)

	ctrl := &stubController{}
	m := metrics.New()
	cfg := config.Default()
	cfg.APIRateLimit = 0

	return SetupRoutes(Dependencies{
		Controller: ctrl,
		Hub:        ws.NewHubService(logger.NewDiscard(), m),
		Config:     cfg,
		Logger:     logger.NewDiscard(),
		Metrics:    m,
		Sessions:   sessions,
	}), ctrl
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRoutes(t *testing.T) {
	h, ctrl := newRouter(t, "")

	rec := serve(h, http.MethodGet, "/api/snapshot")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"camera_active":false`)

	rec = serve(h, http.MethodPost, "/api/analyze")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ctrl.manual)

	rec = serve(h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "visionbridge_"))

	rec = serve(h, http.MethodGet, "/api/captures")
	assert.Equal(t, http.StatusNotFound, rec.Code, "archive routes need repositories")

	rec = serve(h, http.MethodGet, "/no-such-page")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_RequireLogin(t *testing.T) {
	h, ctrl := newRouter(t, "pw")

	rec := serve(h, http.MethodPost, "/api/analyze")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, ctrl.manual)

	rec = serve(h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
