package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionbridge/internal/dto"
	"visionbridge/internal/logger"
	"visionbridge/internal/model"
	"visionbridge/internal/service"
	"visionbridge/internal/service/camera"
)

type fakeController struct {
	mu       sync.Mutex
	calls    []string
	startErr error
	autoErr  error
	admit    bool
	probeOK  bool
	statusOK bool
	autoOn   bool
	interval time.Duration
	cameraOn bool
}

func newFakeController() *fakeController {
	return &fakeController{admit: true, probeOK: true, statusOK: true}
}

func (f *fakeController) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeController) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeController) StartCamera(ctx context.Context) error {
	f.record("start")
	if f.startErr == nil {
		f.cameraOn = true
	}
	return f.startErr
}

func (f *fakeController) StopCamera() {
	f.record("stop")
	f.cameraOn = false
	f.autoOn = false
}

func (f *fakeController) SetAutoMode(enabled bool, interval time.Duration) error {
	f.record("auto")
	if f.autoErr != nil {
		return f.autoErr
	}
	f.autoOn = enabled
	f.interval = interval
	return nil
}

func (f *fakeController) ToggleAutoMode() error {
	f.record("toggle")
	if f.autoErr != nil {
		return f.autoErr
	}
	f.autoOn = !f.autoOn
	return nil
}

func (f *fakeController) RequestManualAnalysis() bool {
	f.record("analyze")
	return f.admit
}

func (f *fakeController) CheckConnection(ctx context.Context) bool {
	f.record("check")
	return f.probeOK
}

func (f *fakeController) RefreshStatus(ctx context.Context) bool {
	f.record("status")
	return f.statusOK
}

func (f *fakeController) TestConnection(ctx context.Context) bool {
	f.record("test")
	return f.probeOK
}

func (f *fakeController) Snapshot() model.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.Snapshot{
		CameraActive:    f.cameraOn,
		AutoModeEnabled: f.autoOn,
		AutoInterval:    2500 * time.Millisecond,
		LastMessage:     "ok",
		History:         []model.HistoryEntry{},
	}
}

func TestExecute(t *testing.T) {
	enabled := true
	tests := []struct {
		name     string
		cmd      dto.Command
		setup    func(*fakeController)
		wantErr  error
		wantCall []string
	}{
		{name: "start camera", cmd: dto.Command{Command: dto.CommandStartCamera}, wantCall: []string{"start"}},
		{name: "stop camera", cmd: dto.Command{Command: dto.CommandStopCamera}, wantCall: []string{"stop"}},
		{name: "analyze admitted", cmd: dto.Command{Command: dto.CommandAnalyze}, wantCall: []string{"analyze"}},
		{
			name:     "analyze dropped",
			cmd:      dto.Command{Command: dto.CommandAnalyze},
			setup:    func(f *fakeController) { f.admit = false },
			wantErr:  ErrNotAdmitted,
			wantCall: []string{"analyze"},
		},
		{name: "auto explicit", cmd: dto.Command{Command: dto.CommandAuto, Enabled: &enabled, IntervalMS: 1000}, wantCall: []string{"auto"}},
		{name: "auto without flag toggles", cmd: dto.Command{Command: dto.CommandAuto}, wantCall: []string{"toggle"}},
		{name: "toggle", cmd: dto.Command{Command: dto.CommandToggleAuto}, wantCall: []string{"toggle"}},
		{
			name:     "auto needs camera",
			cmd:      dto.Command{Command: dto.CommandAuto, Enabled: &enabled},
			setup:    func(f *fakeController) { f.autoErr = service.ErrCameraInactive },
			wantErr:  service.ErrCameraInactive,
			wantCall: []string{"auto"},
		},
		{name: "check runs both probes", cmd: dto.Command{Command: dto.CommandCheckConnection}, wantCall: []string{"check", "status"}},
		{
			name:     "check offline still refreshes status",
			cmd:      dto.Command{Command: dto.CommandCheckConnection},
			setup:    func(f *fakeController) { f.probeOK = false },
			wantErr:  ErrProbeFailed,
			wantCall: []string{"check", "status"},
		},
		{name: "test", cmd: dto.Command{Command: dto.CommandTestConnection}, wantCall: []string{"test"}},
		{name: "unknown", cmd: dto.Command{Command: "reboot"}, wantErr: ErrUnknownCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newFakeController()
			if tt.setup != nil {
				tt.setup(ctrl)
			}

			result, err := Execute(context.Background(), ctrl, tt.cmd)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.False(t, result.Accepted)
				assert.NotEmpty(t, result.Error)
			} else {
				require.NoError(t, err)
				assert.True(t, result.Accepted)
				assert.Empty(t, result.Error)
			}
			assert.Equal(t, tt.cmd.Command, result.Command)
			assert.Equal(t, tt.wantCall, ctrl.called())
		})
	}
}

func TestExecute_AutoInterval(t *testing.T) {
	ctrl := newFakeController()
	enabled := true
	_, err := Execute(context.Background(), ctrl, dto.Command{Command: dto.CommandAuto, Enabled: &enabled, IntervalMS: 1500})
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, ctrl.interval)
	assert.True(t, ctrl.autoOn)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrUnknownCommand, http.StatusBadRequest},
		{ErrNotAdmitted, http.StatusConflict},
		{service.ErrCameraInactive, http.StatusConflict},
		{ErrProbeFailed, http.StatusBadGateway},
		{&camera.DeviceError{Reason: camera.ReasonNoDevice}, http.StatusServiceUnavailable},
		{service.ErrClosed, http.StatusServiceUnavailable},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}

func TestSnapshotHandler(t *testing.T) {
	ctrl := newFakeController()
	ctrl.cameraOn = true

	rec := httptest.NewRecorder()
	SnapshotHandler(ctrl, logger.NewDiscard())(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var view dto.SnapshotView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.CameraActive)
	assert.Equal(t, int64(2500), view.AutoIntervalMS)
	assert.Equal(t, []string{}, view.Objects)
}

func TestCommandHandler(t *testing.T) {
	ctrl := newFakeController()
	ctrl.admit = false

	rec := httptest.NewRecorder()
	CommandHandler(ctrl, dto.CommandAnalyze, logger.NewDiscard())(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	var result dto.CommandResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Accepted)
	assert.Equal(t, dto.CommandAnalyze, result.Command)
}

func TestCommandHandler_CameraError(t *testing.T) {
	ctrl := newFakeController()
	ctrl.startErr = &camera.DeviceError{Reason: camera.ReasonPermissionDenied}

	rec := httptest.NewRecorder()
	CommandHandler(ctrl, dto.CommandStartCamera, logger.NewDiscard())(rec, httptest.NewRequest(http.MethodPost, "/api/camera/start", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), camera.ReasonPermissionDenied)
}

func TestAutoModeHandler(t *testing.T) {
	ctrl := newFakeController()
	ctrl.cameraOn = true

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"enabled":true,"interval_ms":3000}`)
	AutoModeHandler(ctrl, logger.NewDiscard())(rec, httptest.NewRequest(http.MethodPost, "/api/auto", body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3*time.Second, ctrl.interval)

	var result dto.CommandResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Snapshot.AutoModeEnabled)
}

func TestAutoModeHandler_BadBody(t *testing.T) {
	ctrl := newFakeController()
	rec := httptest.NewRecorder()
	AutoModeHandler(ctrl, logger.NewDiscard())(rec, httptest.NewRequest(http.MethodPost, "/api/auto", strings.NewReader("{")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ctrl.called())
}
