package dto

// BufferedCapture holds an analyzed frame before it is flushed to disk.
type BufferedCapture struct {
	Timestamp string
	SessionID string
	Method    string
	Objects   []string
	Extension string
	Data      []byte
}
