package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"visionbridge/internal/config"
	"visionbridge/internal/dto"
	"visionbridge/internal/logger"
	"visionbridge/internal/repository"
)

const defaultPageSize = 24

// GetCapturesHandler returns a filtered, paginated list of archived captures.
func GetCapturesHandler(logger *logger.Logger, captureRepo repository.CaptureRepository,
	detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), defaultPageSize)

		filter := &dto.CaptureFilters{
			SessionID:  q.Get("session"),
			Object:     q.Get("object"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: endOfDay(parseDate(q.Get("dateBefore"))),
			Limit:      limit,
			Offset:     (page - 1) * limit,
		}

		captures, err := captureRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying captures from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := captureRepo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting captures: %v", err)
			totalCount = len(captures)
		}

		infos := make([]dto.CaptureInfo, 0, len(captures))
		for _, c := range captures {
			objects := []string{}
			if detectionRepo != nil {
				names, err := detectionRepo.GetObjectNamesByCaptureID(c.ID)
				if err != nil {
					logger.Error("Error getting objects for capture %d: %v", c.ID, err)
				} else if names != nil {
					objects = names
				}
			}

			infos = append(infos, dto.CaptureInfo{
				ID:        c.ID,
				Name:      c.Filename,
				Date:      c.Timestamp.Local(),
				TimeOfDay: c.Timestamp.Local(),
				SessionID: c.SessionID,
				Method:    c.Method,
				Objects:   objects,
			})
		}

		writeJSON(w, http.StatusOK, dto.CapturesData{
			Captures:    infos,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}, logger)
	}
}

// CaptureStatsHandler summarizes the archive.
func CaptureStatsHandler(logger *logger.Logger, captureRepo repository.CaptureRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := captureRepo.GetStats()
		if err != nil {
			logger.Error("Error reading capture stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, stats, logger)
	}
}

// CaptureObjectsHandler lists every object name seen in the archive.
func CaptureObjectsHandler(logger *logger.Logger, detectionRepo repository.DetectionRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := detectionRepo.GetAllObjectNames()
		if err != nil {
			logger.Error("Error listing object names: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if names == nil {
			names = []string{}
		}
		writeJSON(w, http.StatusOK, names, logger)
	}
}

// ViewCaptureHandler serves the image file of the capture named by {id}.
func ViewCaptureHandler(logger *logger.Logger, captureRepo repository.CaptureRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			http.Error(w, "Invalid capture id", http.StatusBadRequest)
			return
		}

		capture, err := captureRepo.GetByID(id)
		if err != nil {
			logger.Error("Error loading capture %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if capture == nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "max-age=86400")
		http.ServeFile(w, r, capture.FilePath)
	}
}

// DeleteCaptureHandler removes one capture from disk and the index.
func DeleteCaptureHandler(logger *logger.Logger, captureRepo repository.CaptureRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			http.Error(w, "Invalid capture id", http.StatusBadRequest)
			return
		}

		capture, err := captureRepo.GetByID(id)
		if err != nil {
			logger.Error("Error loading capture %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if capture == nil {
			http.NotFound(w, r)
			return
		}

		if err := os.Remove(capture.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Error("Failed to delete file %s: %v", capture.FilePath, err)
		}
		if err := captureRepo.Delete(id); err != nil {
			logger.Error("Failed to delete capture %d: %v", id, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("Deleted capture: %s", capture.Filename)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ClearCapturesHandler deletes every file in the image directory and
// empties the index.
func ClearCapturesHandler(cfg *config.Config, logger *logger.Logger, captureRepo repository.CaptureRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files, err := os.ReadDir(cfg.ImageDirectory)
		if err != nil && !os.IsNotExist(err) {
			logger.Error("Error reading capture directory: %v", err)
			http.Error(w, "Unable to read capture directory", http.StatusInternalServerError)
			return
		}

		for _, file := range files {
			if file.IsDir() {
				continue
			}
			if err := os.Remove(filepath.Join(cfg.ImageDirectory, file.Name())); err != nil {
				logger.Error("Error deleting file %s: %v", file.Name(), err)
			}
		}

		if err := captureRepo.DeleteAll(); err != nil {
			logger.Error("Error clearing database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.Info("All captures cleared from directory: %s", cfg.ImageDirectory)
		w.WriteHeader(http.StatusNoContent)
	}
}

// atoiDefault converts s to a positive int or returns def.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses an HTML date input ("2006-01-02") in local time.
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// endOfDay makes a date bound include the whole day.
func endOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Add(24*time.Hour - time.Nanosecond)
}
