package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"visionbridge/internal/dto"
	"visionbridge/internal/model"
)

// CaptureRepository implements repository.CaptureRepository for SQLite.
type CaptureRepository struct {
	db *DB
}

// NewCaptureRepository creates a new SQLite capture repository.
func NewCaptureRepository(db *DB) *CaptureRepository {
	return &CaptureRepository{db: db}
}

const captureColumns = `c.id, c.filename, c.session_id, c.method, c.object_count, c.timestamp, c.filepath, c.filesize`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCapture(row scanner) (model.Capture, error) {
	var c model.Capture
	err := row.Scan(&c.ID, &c.Filename, &c.SessionID, &c.Method, &c.ObjectCount, &c.Timestamp, &c.FilePath, &c.FileSize)
	return c, err
}

// Insert adds a new capture record to the database.
func (r *CaptureRepository) Insert(c *model.Capture) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO captures (filename, session_id, method, object_count, timestamp, filepath, filesize)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.Filename, c.SessionID, c.Method, c.ObjectCount, c.Timestamp.UTC(), c.FilePath, c.FileSize)
	if err != nil {
		return 0, fmt.Errorf("failed to insert capture: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves a capture by its ID. A missing capture is (nil, nil).
func (r *CaptureRepository) GetByID(id int64) (*model.Capture, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	c, err := scanCapture(r.db.Conn().QueryRow(`SELECT `+captureColumns+` FROM captures c WHERE c.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capture: %w", err)
	}
	return &c, nil
}

// GetByFilename retrieves a capture by its filename.
func (r *CaptureRepository) GetByFilename(filename string) (*model.Capture, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	c, err := scanCapture(r.db.Conn().QueryRow(`SELECT `+captureColumns+` FROM captures c WHERE c.filename = ?`, filename))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capture: %w", err)
	}
	return &c, nil
}

// whereClause renders the filter conditions shared by list and count.
func whereClause(filter *dto.CaptureFilters) (string, []interface{}) {
	query := ` FROM captures c LEFT JOIN capture_objects o ON c.id = o.capture_id WHERE 1=1`
	args := []interface{}{}
	if filter == nil {
		return query, args
	}

	if filter.SessionID != "" {
		query += " AND c.session_id = ?"
		args = append(args, filter.SessionID)
	}
	if filter.Object != "" {
		query += " AND o.object_name = ?"
		args = append(args, filter.Object)
	}
	if !filter.DateAfter.IsZero() {
		query += " AND c.timestamp >= ?"
		args = append(args, filter.DateAfter.UTC())
	}
	if !filter.DateBefore.IsZero() {
		query += " AND c.timestamp <= ?"
		args = append(args, filter.DateBefore.UTC())
	}
	return query, args
}

// GetAll retrieves captures matching the filter, newest first.
func (r *CaptureRepository) GetAll(filter *dto.CaptureFilters) ([]model.Capture, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `SELECT DISTINCT ` + captureColumns + where + ` ORDER BY c.timestamp DESC, c.id DESC`

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	defer rows.Close()

	var captures []model.Capture
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		captures = append(captures, c)
	}
	return captures, rows.Err()
}

// GetTotalCount returns the number of captures matching the filter.
func (r *CaptureRepository) GetTotalCount(filter *dto.CaptureFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(DISTINCT c.id)`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count captures: %w", err)
	}
	return count, nil
}

// GetStats returns statistics about the archive.
func (r *CaptureRepository) GetStats() (*model.CaptureStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.CaptureStats{
		PerSession:   make(map[string]int),
		ObjectCounts: make(map[string]int),
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*), COALESCE(SUM(filesize), 0) FROM captures`).Scan(&stats.TotalCaptures, &stats.TotalSizeBytes); err != nil {
		return nil, fmt.Errorf("failed to count captures: %w", err)
	}

	rows, err := r.db.Conn().Query(`SELECT session_id, COUNT(*) FROM captures GROUP BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to group captures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var session string
		var count int
		if err := rows.Scan(&session, &count); err != nil {
			return nil, err
		}
		stats.PerSession[session] = count
	}

	// Most detected objects
	objectRows, err := r.db.Conn().Query(`
		SELECT object_name, COUNT(*) AS cnt
		FROM capture_objects
		GROUP BY object_name
		ORDER BY cnt DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to group objects: %w", err)
	}
	defer objectRows.Close()

	for objectRows.Next() {
		var name string
		var count int
		if err := objectRows.Scan(&name, &count); err != nil {
			return nil, err
		}
		stats.ObjectCounts[name] = count
	}

	return stats, nil
}

// Delete removes a capture and its objects.
func (r *CaptureRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM capture_objects WHERE capture_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete capture objects: %w", err)
	}
	if _, err := r.db.Conn().Exec(`DELETE FROM captures WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete capture: %w", err)
	}
	return nil
}

// DeleteAll removes every capture and object row.
func (r *CaptureRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM capture_objects`); err != nil {
		return fmt.Errorf("failed to delete capture objects: %w", err)
	}
	if _, err := r.db.Conn().Exec(`DELETE FROM captures`); err != nil {
		return fmt.Errorf("failed to delete captures: %w", err)
	}
	return nil
}
