package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"visionbridge/internal/dto"
	"visionbridge/internal/logger"
	"visionbridge/internal/model"
	"visionbridge/internal/service"
	"visionbridge/internal/service/camera"
)

var (
	// ErrUnknownCommand is returned for command names no handler knows.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNotAdmitted means an analysis request was dropped because the
	// camera is off or a cycle is already running.
	ErrNotAdmitted = errors.New("analysis not admitted")
	// ErrProbeFailed means the analysis service did not answer a probe.
	ErrProbeFailed = errors.New("analysis service probe failed")
)

// Controller is the part of the pipeline presentation clients drive.
type Controller interface {
	StartCamera(ctx context.Context) error
	StopCamera()
	SetAutoMode(enabled bool, interval time.Duration) error
	ToggleAutoMode() error
	RequestManualAnalysis() bool
	CheckConnection(ctx context.Context) bool
	RefreshStatus(ctx context.Context) bool
	TestConnection(ctx context.Context) bool
	Snapshot() model.Snapshot
}

// Execute runs one command against ctrl and reports the resulting state.
func Execute(ctx context.Context, ctrl Controller, cmd dto.Command) (dto.CommandResult, error) {
	var err error

	switch cmd.Command {
	case dto.CommandStartCamera:
		err = ctrl.StartCamera(ctx)
	case dto.CommandStopCamera:
		ctrl.StopCamera()
	case dto.CommandAnalyze:
		if !ctrl.RequestManualAnalysis() {
			err = ErrNotAdmitted
		}
	case dto.CommandAuto:
		if cmd.Enabled == nil {
			err = ctrl.ToggleAutoMode()
		} else {
			err = ctrl.SetAutoMode(*cmd.Enabled, time.Duration(cmd.IntervalMS)*time.Millisecond)
		}
	case dto.CommandToggleAuto:
		err = ctrl.ToggleAutoMode()
	case dto.CommandCheckConnection:
		connected := ctrl.CheckConnection(ctx)
		if !ctrl.RefreshStatus(ctx) || !connected {
			err = ErrProbeFailed
		}
	case dto.CommandTestConnection:
		if !ctrl.TestConnection(ctx) {
			err = ErrProbeFailed
		}
	default:
		err = fmt.Errorf("%w %q", ErrUnknownCommand, cmd.Command)
	}

	result := dto.CommandResult{
		Command:  cmd.Command,
		Accepted: err == nil,
		Snapshot: dto.NewSnapshotView(ctrl.Snapshot()),
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result, err
}

// statusFor maps a command error to an HTTP status.
func statusFor(err error) int {
	var devErr *camera.DeviceError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnknownCommand):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotAdmitted), errors.Is(err, service.ErrCameraInactive):
		return http.StatusConflict
	case errors.Is(err, ErrProbeFailed):
		return http.StatusBadGateway
	case errors.As(err, &devErr), errors.Is(err, service.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// SnapshotHandler serves the current pipeline state.
func SnapshotHandler(ctrl Controller, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, dto.NewSnapshotView(ctrl.Snapshot()), logger)
	}
}

// CommandHandler runs a fixed command, e.g. POST /api/camera/start.
func CommandHandler(ctrl Controller, command string, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := Execute(r.Context(), ctrl, dto.Command{Command: command})
		if err != nil {
			logger.Warning("Command %s: %v", command, err)
		}
		writeJSON(w, statusFor(err), result, logger)
	}
}

// AutoModeHandler handles POST /api/auto with a dto.AutoModeRequest body.
func AutoModeHandler(ctrl Controller, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.AutoModeRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		enabled := req.Enabled
		result, err := Execute(r.Context(), ctrl, dto.Command{
			Command:    dto.CommandAuto,
			Enabled:    &enabled,
			IntervalMS: req.IntervalMS,
		})
		if err != nil {
			logger.Warning("Auto mode change: %v", err)
		}
		writeJSON(w, statusFor(err), result, logger)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
