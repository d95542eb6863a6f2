package model

import "time"

// Capture is an archived analyzed frame.
type Capture struct {
	ID          int64     `json:"id"`
	Filename    string    `json:"filename"`
	SessionID   string    `json:"session_id"`
	Method      string    `json:"method"`
	ObjectCount int       `json:"object_count"`
	Timestamp   time.Time `json:"timestamp"`
	FilePath    string    `json:"filepath"`
	FileSize    int64     `json:"filesize"`
}

// CaptureDetection is one object reported for an archived capture.
type CaptureDetection struct {
	ID         int64  `json:"id"`
	CaptureID  int64  `json:"capture_id"`
	Position   int    `json:"position"`
	ObjectName string `json:"object_name"`
}

// CaptureStats summarizes the archive.
type CaptureStats struct {
	TotalCaptures  int            `json:"total_captures"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	PerSession     map[string]int `json:"per_session"`
	ObjectCounts   map[string]int `json:"object_counts"`
}
