package storage

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"visionbridge/internal/dto"
)

const (
	timestampLayout = "2006-01-02_15-04-05.000"
	maxNameObjects  = 5
)

var unsafeName = regexp.MustCompile(`[^a-z0-9-]+`)

// captureFilename builds <timestamp>_<session>_<object>_<object>...<ext>.
// Object names are lowercased and reduced to [a-z0-9-].
func captureFilename(c dto.BufferedCapture) string {
	names := make([]string, 0, maxNameObjects)
	seen := make(map[string]bool)
	for _, obj := range c.Objects {
		clean := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(obj), "-"), "-")
		if clean == "" || seen[clean] {
			continue
		}
		seen[clean] = true
		names = append(names, clean)
		if len(names) == maxNameObjects {
			break
		}
	}
	return fmt.Sprintf("%s_%s_%s%s", c.Timestamp, shortID(c.SessionID), strings.Join(names, "_"), c.Extension)
}

// ParsedCapture is what a capture filename records.
type ParsedCapture struct {
	Timestamp time.Time
	Session   string
	Objects   []string
}

// ParseCaptureFilename reverses captureFilename. The session is the
// shortened id and object names are in their sanitized form.
func ParseCaptureFilename(filename string) (ParsedCapture, error) {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return ParsedCapture{}, fmt.Errorf("invalid capture filename: %s", filename)
	}

	ts, err := time.ParseInLocation(timestampLayout, parts[0]+"_"+parts[1], time.Local)
	if err != nil {
		return ParsedCapture{}, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	parsed := ParsedCapture{Timestamp: ts, Session: parts[2], Objects: []string{}}
	for _, obj := range parts[3:] {
		if obj != "" {
			parsed.Objects = append(parsed.Objects, obj)
		}
	}
	return parsed, nil
}
