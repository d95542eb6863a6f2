package model

import (
	"fmt"
	"time"
)

// ConnectionState describes reachability of the analysis service.
type ConnectionState int

const (
	ConnectionUnknown ConnectionState = iota
	ConnectionConnected
	ConnectionDisconnected
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionConnected:
		return "connected"
	case ConnectionDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// MarshalText lets the state travel as a readable string in JSON.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *ConnectionState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "connected":
		*s = ConnectionConnected
	case "disconnected":
		*s = ConnectionDisconnected
	case "unknown", "":
		*s = ConnectionUnknown
	default:
		return fmt.Errorf("unknown connection state %q", text)
	}
	return nil
}

// ConnectionStatus is the connection state plus a human-readable detail.
type ConnectionStatus struct {
	State  ConnectionState `json:"state"`
	Detail string          `json:"detail"`
}

// Capabilities are the descriptive fields reported by the service status endpoint.
type Capabilities struct {
	PyTorch          string `json:"pytorch,omitempty"`
	OpenCV           string `json:"opencv,omitempty"`
	Transformers     string `json:"transformers,omitempty"`
	CUDA             bool   `json:"cuda"`
	YOLOAvailable    bool   `json:"yolo_available"`
	DetectionClasses int    `json:"detection_classes"`
	Message          string `json:"message,omitempty"`
}

// Snapshot is the complete externally visible state of the pipeline.
// Only the pipeline mutates it; everyone else receives copies.
type Snapshot struct {
	Connection       ConnectionStatus `json:"connection"`
	DetectionMethod  string           `json:"detection_method"`
	Capabilities     Capabilities     `json:"capabilities"`
	CameraActive     bool             `json:"camera_active"`
	AutoModeEnabled  bool             `json:"auto_mode_enabled"`
	AutoInterval     time.Duration    `json:"-"`
	AnalysisInFlight bool             `json:"analysis_in_flight"`
	LastMessage      string           `json:"last_message"`
	Latest           *DetectionResult `json:"latest,omitempty"`
	History          []HistoryEntry   `json:"history"`
	Version          uint64           `json:"version"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	if s.Latest != nil {
		latest := s.Latest.Clone()
		s.Latest = &latest
	}
	history := make([]HistoryEntry, len(s.History))
	copy(history, s.History)
	s.History = history
	return s
}
