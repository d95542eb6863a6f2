package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"visionbridge/internal/config"
	"visionbridge/internal/dto"
	"visionbridge/internal/logger"
	"visionbridge/internal/model"
	"visionbridge/internal/repository"
)

const (
	// DefaultBufferLimit limits how many captures per session are buffered between flushes.
	DefaultBufferLimit = 10
	// DefaultFlushInterval is how often buffered captures are written out.
	DefaultFlushInterval = 30 * time.Second
)

// BufferService keeps analyzed frames that found something in memory and
// periodically flushes them to disk and the capture index.
type BufferService struct {
	imagesDir     string
	limit         int
	flushInterval time.Duration

	captures    []dto.BufferedCapture
	bufferCount map[string]int
	mu          sync.Mutex

	logger        *logger.Logger
	captureRepo   repository.CaptureRepository
	detectionRepo repository.DetectionRepository
}

// NewBufferService creates a BufferService. Either repository may be nil,
// in which case captures are only written to disk.
func NewBufferService(cfg *config.Config, logger *logger.Logger, captureRepo repository.CaptureRepository, detectionRepo repository.DetectionRepository) *BufferService {
	limit := cfg.ImageBufferLimit
	if limit <= 0 {
		limit = DefaultBufferLimit
	}
	interval := time.Duration(cfg.FlushInterval) * time.Second
	if interval <= 0 {
		interval = DefaultFlushInterval
	}

	return &BufferService{
		imagesDir:     cfg.ImageDirectory,
		limit:         limit,
		flushInterval: interval,
		bufferCount:   make(map[string]int),
		logger:        logger,
		captureRepo:   captureRepo,
		detectionRepo: detectionRepo,
	}
}

// Run flushes on every tick until ctx is done, then flushes once more.
func (s *BufferService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.FlushCaptures()
			return nil
		case <-ticker.C:
			s.FlushCaptures()
		}
	}
}

// Record buffers a frame whose analysis found at least one object.
// Frames beyond the per-session limit are dropped until the next flush.
func (s *BufferService) Record(sessionID string, img model.EncodedImage, result model.DetectionResult) {
	if len(result.Objects) == 0 || len(img.Data) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bufferCount[sessionID] >= s.limit {
		return
	}

	ts := result.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	objects := make([]string, len(result.Objects))
	copy(objects, result.Objects)

	s.captures = append(s.captures, dto.BufferedCapture{
		Timestamp: ts.Local().Format(timestampLayout),
		SessionID: sessionID,
		Method:    result.DetectionMethod,
		Objects:   objects,
		Extension: img.Extension(),
		Data:      img.Data,
	})
	s.bufferCount[sessionID]++
	s.logger.Info("Buffer size for session %s: %d/%d", shortID(sessionID), s.bufferCount[sessionID], s.limit)
}

// Pending returns the number of buffered captures.
func (s *BufferService) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.captures)
}

// FlushCaptures writes buffered captures to disk and the index, then
// resets the buffer and per-session counters.
func (s *BufferService) FlushCaptures() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.captures) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return 0
	}

	savedCount := 0
	for _, capture := range s.captures {
		filename := captureFilename(capture)
		fullpath := filepath.Join(s.imagesDir, filename)

		if err := os.WriteFile(fullpath, capture.Data, 0644); err != nil {
			s.logger.Error("Error saving capture %s: %v", filename, err)
			continue
		}

		if err := s.index(capture, filename, fullpath); err != nil {
			s.logger.Error("Error indexing capture %s: %v", filename, err)
			continue
		}
		savedCount++
	}

	s.logger.Info("Flushed %d captures to disk", savedCount)
	s.captures = nil
	s.bufferCount = make(map[string]int)
	return savedCount
}

func (s *BufferService) index(capture dto.BufferedCapture, filename, fullpath string) error {
	if s.captureRepo == nil {
		return nil
	}

	ts, err := time.ParseInLocation(timestampLayout, capture.Timestamp, time.Local)
	if err != nil {
		ts = time.Now()
	}

	id, err := s.captureRepo.Insert(&model.Capture{
		Filename:    filename,
		SessionID:   capture.SessionID,
		Method:      capture.Method,
		ObjectCount: len(capture.Objects),
		Timestamp:   ts,
		FilePath:    fullpath,
		FileSize:    int64(len(capture.Data)),
	})
	if err != nil {
		return err
	}

	if s.detectionRepo == nil {
		return nil
	}
	rows := make([]model.CaptureDetection, 0, len(capture.Objects))
	for i, name := range capture.Objects {
		rows = append(rows, model.CaptureDetection{CaptureID: id, Position: i, ObjectName: name})
	}
	if err := s.detectionRepo.InsertBatch(rows); err != nil {
		return fmt.Errorf("failed to save objects: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
