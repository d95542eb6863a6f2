package dto

import "time"

// CaptureFilters narrow the archived capture list.
type CaptureFilters struct {
	SessionID  string
	Object     string
	DateAfter  time.Time
	DateBefore time.Time
	Limit      int
	Offset     int
}
