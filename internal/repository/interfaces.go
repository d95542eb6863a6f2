package repository

import (
	"visionbridge/internal/dto"
	"visionbridge/internal/model"
)

// CaptureRepository defines the interface for archived capture operations.
type CaptureRepository interface {
	// Create operations
	Insert(c *model.Capture) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Capture, error)
	GetByFilename(filename string) (*model.Capture, error)
	GetAll(filter *dto.CaptureFilters) ([]model.Capture, error)
	GetTotalCount(filter *dto.CaptureFilters) (int, error)
	GetStats() (*model.CaptureStats, error)

	// Delete operations
	Delete(id int64) error
	DeleteAll() error
}

// DetectionRepository defines the interface for per-capture object rows.
type DetectionRepository interface {
	// Create operations
	InsertBatch(detections []model.CaptureDetection) error

	// Read operations
	GetByCaptureID(captureID int64) ([]model.CaptureDetection, error)
	GetObjectNamesByCaptureID(captureID int64) ([]string, error)
	GetAllObjectNames() ([]string, error)
}
