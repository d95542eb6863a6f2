package dto

// Command names accepted from presentation clients.
const (
	CommandStartCamera     = "start_camera"
	CommandStopCamera      = "stop_camera"
	CommandAnalyze         = "analyze"
	CommandAuto            = "auto"
	CommandToggleAuto      = "toggle_auto"
	CommandCheckConnection = "check_connection"
	CommandTestConnection  = "test_connection"
)

// Command is a user-triggered request sent over the viewer socket.
type Command struct {
	Command    string `json:"command"`
	Enabled    *bool  `json:"enabled,omitempty"`
	IntervalMS int    `json:"interval_ms,omitempty"`
}

// AutoModeRequest is the body of POST /api/auto.
type AutoModeRequest struct {
	Enabled    bool `json:"enabled"`
	IntervalMS int  `json:"interval_ms,omitempty"`
}

// MessageTypeResult tags command replies on the viewer socket.
const MessageTypeResult = "result"

// CommandResult is the reply to a command. Accepted is false when the
// command was dropped or failed; Error then explains a failure.
type CommandResult struct {
	Type     string       `json:"type,omitempty"`
	Command  string       `json:"command"`
	Accepted bool         `json:"accepted"`
	Error    string       `json:"error,omitempty"`
	Snapshot SnapshotView `json:"snapshot"`
}
