package dto

import (
	"encoding/json"
	"time"
)

// CaptureInfo describes one archived capture for the API.
type CaptureInfo struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	TimeOfDay time.Time `json:"timeOfDay"`
	SessionID string    `json:"session"`
	Method    string    `json:"method"`
	Objects   []string  `json:"objects"`
}

// MarshalJSON formats the date and time of day for display.
func (c CaptureInfo) MarshalJSON() ([]byte, error) {
	type Alias CaptureInfo
	return json.Marshal(&struct {
		Date      string `json:"date"`
		TimeOfDay string `json:"timeOfDay"`
		Alias
	}{
		Date:      c.Date.Format("02-01-2006"),
		TimeOfDay: c.TimeOfDay.Format("15:04:05"),
		Alias:     (Alias)(c),
	})
}

// CapturesData is a paginated list of captures.
type CapturesData struct {
	Captures    []CaptureInfo `json:"captures"`
	Length      int           `json:"length"`
	TotalPages  int           `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	Limit       int           `json:"pageSize"`
}
