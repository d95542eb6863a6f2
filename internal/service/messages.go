package service

import (
	"errors"
	"fmt"

	"visionbridge/internal/model"
	"visionbridge/internal/service/ai"
	"visionbridge/internal/service/camera"
)

// Status lines shown to viewers.
const (
	MsgInitial           = "Analysis interface online"
	MsgCameraActive      = "Visual sensors active"
	MsgCameraOffline     = "Visual sensors offline"
	MsgAutoOn            = "Autonomous monitoring activated"
	MsgAutoOff           = "Autonomous monitoring deactivated"
	MsgTestSucceeded     = "Connection test successful"
	MsgTestFailed        = "Connection test failed - check backend"
	MethodInitializing   = "Initializing"
	MethodYOLO           = "YOLO v8 Neural Network"
	MethodBasic          = "Basic Vision Processing"
	MethodFailed         = "Connection Failed"
	ConnDetailPending    = "Establishing neural link"
	ConnDetailOffline    = "Neural link offline - backend disconnected"
	connDetailActiveFmt  = "Neural link active - %s"
	connDetailActiveNone = "Connected"
)

func analysisMessage(result model.DetectionResult) string {
	return "Analysis: " + result.Summary()
}

func historyEntry(result model.DetectionResult) model.HistoryEntry {
	return model.HistoryEntry{
		Time:    result.Timestamp,
		Summary: result.Timestamp.Format("15:04:05") + ": " + result.Summary(),
	}
}

// failureMessage renders a cycle error for viewers.
func failureMessage(err error) string {
	var aiErr *ai.Error
	if errors.As(err, &aiErr) {
		switch aiErr.Kind {
		case ai.KindTimeout:
			return "Analysis failed - analysis service timed out"
		case ai.KindServer:
			if aiErr.Message != "" {
				return fmt.Sprintf("Analysis failed - service error %d: %s", aiErr.StatusCode, aiErr.Message)
			}
			return fmt.Sprintf("Analysis failed - service error %d", aiErr.StatusCode)
		default:
			return "Analysis failed - neural link disrupted"
		}
	}
	return "Analysis failed - " + err.Error()
}

func cameraFailureMessage(err error) string {
	var devErr *camera.DeviceError
	if errors.As(err, &devErr) {
		return "Camera access denied: " + devErr.Reason
	}
	return "Camera access denied: " + err.Error()
}

func connectedDetail(mode string) string {
	if mode == "" {
		mode = connDetailActiveNone
	}
	return fmt.Sprintf(connDetailActiveFmt, mode)
}
