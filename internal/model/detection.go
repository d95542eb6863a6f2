package model

import (
	"encoding/base64"
	"strings"
	"time"
)

// NoDetections is the summary used when an analysis found nothing.
const NoDetections = "No entities detected"

// EncodedImage is a still frame encoded into a portable format.
type EncodedImage struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// DataURL returns the image as a base64 data URL.
func (i EncodedImage) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Extension returns the file extension matching the MIME type.
func (i EncodedImage) Extension() string {
	switch i.MIMEType {
	case "image/webp":
		return ".webp"
	case "image/png":
		return ".png"
	default:
		return ".jpg"
	}
}

// DetectionResult is the output of one analysis round trip.
type DetectionResult struct {
	Objects         []string  `json:"objects"`
	ObjectCount     int       `json:"object_count"`
	DetectionMethod string    `json:"detection_method"`
	Timestamp       time.Time `json:"timestamp"`
}

// Clone returns a copy that shares no memory with r.
func (r DetectionResult) Clone() DetectionResult {
	objects := make([]string, len(r.Objects))
	copy(objects, r.Objects)
	r.Objects = objects
	return r
}

// Summary joins the detected objects, or returns NoDetections.
func (r DetectionResult) Summary() string {
	if len(r.Objects) == 0 {
		return NoDetections
	}
	return strings.Join(r.Objects, ", ")
}

// HistoryEntry is one line of the recent detection log.
type HistoryEntry struct {
	Time    time.Time `json:"time"`
	Summary string    `json:"summary"`
}
