package dto

// Wire formats of the remote analysis service. Every field is optional;
// pointers distinguish "absent" from the zero value where it matters.

// AnalyzeFrameRequest is the body of POST /ai/analyze-frame.
type AnalyzeFrameRequest struct {
	Image string `json:"image"`
}

// AnalyzeFrameResponse is the body returned by POST /ai/analyze-frame.
type AnalyzeFrameResponse struct {
	Status          string   `json:"status,omitempty"`
	Objects         []string `json:"objects,omitempty"`
	ObjectCount     *int     `json:"object_count,omitempty"`
	DetectionMethod string   `json:"detection_method,omitempty"`
	Message         string   `json:"message,omitempty"`
	ImageSize       string   `json:"image_size,omitempty"`
}

// RootResponse is the body of GET /.
type RootResponse struct {
	DetectionMode string `json:"detection_mode,omitempty"`
	Message       string `json:"message,omitempty"`
	Status        string `json:"status,omitempty"`
}

// StatusResponse is the body of GET /ai/status.
type StatusResponse struct {
	PyTorch          string `json:"pytorch,omitempty"`
	OpenCV           string `json:"opencv,omitempty"`
	Transformers     string `json:"transformers,omitempty"`
	CUDA             *bool  `json:"cuda,omitempty"`
	YOLOAvailable    *bool  `json:"yolo_available,omitempty"`
	DetectionClasses *int   `json:"detection_classes,omitempty"`
	Message          string `json:"message,omitempty"`
}

// TestResponse is the body of GET /ai/test.
type TestResponse struct {
	Response string `json:"response,omitempty"`
	Status   string `json:"status,omitempty"`
}
