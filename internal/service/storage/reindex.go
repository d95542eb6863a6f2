package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"visionbridge/internal/model"
	"visionbridge/internal/repository"
)

var captureExtensions = map[string]bool{".jpg": true, ".webp": true, ".png": true}

// ReindexResult counts what Reindex did.
type ReindexResult struct {
	Indexed int
	Known   int
	Skipped int
}

// Reindex adds capture files in dir that the index does not know yet,
// recovering their metadata from the filename.
func Reindex(dir string, captureRepo repository.CaptureRepository, detectionRepo repository.DetectionRepository) (ReindexResult, error) {
	var res ReindexResult

	entries, err := os.ReadDir(dir)
	if err != nil {
		return res, fmt.Errorf("failed to read capture directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !captureExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		existing, err := captureRepo.GetByFilename(entry.Name())
		if err != nil {
			return res, err
		}
		if existing != nil {
			res.Known++
			continue
		}

		parsed, err := ParseCaptureFilename(entry.Name())
		if err != nil {
			res.Skipped++
			continue
		}
		info, err := entry.Info()
		if err != nil {
			res.Skipped++
			continue
		}

		id, err := captureRepo.Insert(&model.Capture{
			Filename:    entry.Name(),
			SessionID:   parsed.Session,
			ObjectCount: len(parsed.Objects),
			Timestamp:   parsed.Timestamp,
			FilePath:    filepath.Join(dir, entry.Name()),
			FileSize:    info.Size(),
		})
		if err != nil {
			return res, err
		}

		rows := make([]model.CaptureDetection, 0, len(parsed.Objects))
		for i, name := range parsed.Objects {
			rows = append(rows, model.CaptureDetection{CaptureID: id, Position: i, ObjectName: name})
		}
		if err := detectionRepo.InsertBatch(rows); err != nil {
			return res, err
		}
		res.Indexed++
	}
	return res, nil
}
