package sqlite

import (
	"fmt"

	"visionbridge/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
// Rows keep the order in which the service reported the objects.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// InsertBatch adds multiple object rows in a single transaction.
func (r *DetectionRepository) InsertBatch(detections []model.CaptureDetection) error {
	if len(detections) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO capture_objects (capture_id, position, object_name)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, det := range detections {
		if _, err := stmt.Exec(det.CaptureID, det.Position, det.ObjectName); err != nil {
			return fmt.Errorf("failed to insert capture object: %w", err)
		}
	}

	return tx.Commit()
}

// GetByCaptureID retrieves the object rows of a capture in report order.
func (r *DetectionRepository) GetByCaptureID(captureID int64) ([]model.CaptureDetection, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, capture_id, position, object_name
		FROM capture_objects WHERE capture_id = ?
		ORDER BY position
	`, captureID)
	if err != nil {
		return nil, fmt.Errorf("failed to query capture objects: %w", err)
	}
	defer rows.Close()

	var detections []model.CaptureDetection
	for rows.Next() {
		var det model.CaptureDetection
		if err := rows.Scan(&det.ID, &det.CaptureID, &det.Position, &det.ObjectName); err != nil {
			return nil, fmt.Errorf("failed to scan capture object: %w", err)
		}
		detections = append(detections, det)
	}
	return detections, rows.Err()
}

// GetObjectNamesByCaptureID returns the object names of a capture,
// duplicates included.
func (r *DetectionRepository) GetObjectNamesByCaptureID(captureID int64) ([]string, error) {
	detections, err := r.GetByCaptureID(captureID)
	if err != nil {
		return nil, err
	}

	objects := make([]string, 0, len(detections))
	for _, det := range detections {
		objects = append(objects, det.ObjectName)
	}
	return objects, nil
}

// GetAllObjectNames returns a list of all unique detected object names.
func (r *DetectionRepository) GetAllObjectNames() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT DISTINCT object_name FROM capture_objects ORDER BY object_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query objects: %w", err)
	}
	defer rows.Close()

	var objects []string
	for rows.Next() {
		var obj string
		if err := rows.Scan(&obj); err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}
