package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"visionbridge/internal/config"
	"visionbridge/internal/logger"
	"visionbridge/internal/middleware"
	"visionbridge/internal/repository/sqlite"
	"visionbridge/internal/route"
	"visionbridge/internal/service"
	"visionbridge/internal/service/ai"
	"visionbridge/internal/service/camera"
	"visionbridge/internal/service/camera/gocvdevice"
	"visionbridge/internal/service/metrics"
	"visionbridge/internal/service/storage"
	"visionbridge/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config   *config.Config
	logger   *logger.Logger
	metrics  *metrics.Metrics
	pipeline *service.Pipeline
	hub      *websocket.HubService
	buffer   *storage.BufferService // nil when the archive is disabled
	db       *sqlite.DB
	server   *http.Server
}

// NewAnalyzer builds the analysis client selected by cfg.AnalysisBackend.
func NewAnalyzer(cfg *config.Config) (service.Analyzer, error) {
	switch cfg.AnalysisBackend {
	case "ollama":
		return ai.NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel, cfg.AnalysisTimeout)
	case "http", "":
		return ai.NewClient(cfg.AnalysisURL, cfg.AnalysisTimeout), nil
	default:
		return nil, fmt.Errorf("unknown analysis backend %q", cfg.AnalysisBackend)
	}
}

// NewOpener builds the frame source selected by cfg.CameraSource.
func NewOpener(cfg *config.Config, log *logger.Logger) camera.Opener {
	if cfg.CameraSource == "directory" {
		return camera.DirectoryOpener{Dir: cfg.CameraDirectory}
	}
	return gocvdevice.Opener{Logger: log}
}

// NewApp wires every service from cfg. The caller owns log.
func NewApp(cfg *config.Config, log *logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	m := metrics.New()

	encoder, err := camera.NewEncoder(camera.Format(cfg.FrameFormat), cfg.FrameQuality)
	if err != nil {
		return nil, err
	}
	capturer := camera.NewCapturer(NewOpener(cfg, log), encoder, log)

	analyzer, err := NewAnalyzer(cfg)
	if err != nil {
		return nil, err
	}

	a := &App{
		config:  cfg,
		logger:  log,
		metrics: m,
		hub:     websocket.NewHubService(log, m),
	}

	opts := []service.Option{service.WithLogger(log), service.WithMetrics(m)}
	if cfg.ArchiveEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		a.db, err = sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		a.buffer = storage.NewBufferService(cfg, log,
			sqlite.NewCaptureRepository(a.db), sqlite.NewDetectionRepository(a.db))
		opts = append(opts, service.WithRecorder(a.buffer))
	}

	a.pipeline = service.NewPipeline(capturer, analyzer, service.PipelineConfig{
		Constraints: camera.Constraints{
			Device:     cfg.CameraDevice,
			Width:      cfg.CameraWidth,
			Height:     cfg.CameraHeight,
			FacingMode: cfg.CameraFacingMode,
		},
		AutoInterval:    cfg.AutoInterval,
		FoldLateResults: cfg.FoldLateResults,
		CloseGrace:      shutdownTimeout,
	}, opts...)

	sessions, err := middleware.NewSessionStore(cfg.Password, cfg.PasswordHash)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("invalid password hash: %w", err)
	}

	deps := route.Dependencies{
		Controller: a.pipeline,
		Hub:        a.hub,
		Config:     cfg,
		Logger:     log,
		Metrics:    m,
		Sessions:   sessions,
	}
	if a.db != nil {
		deps.CaptureRepo = sqlite.NewCaptureRepository(a.db)
		deps.DetectionRepo = sqlite.NewDetectionRepository(a.db)
	}

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           route.SetupRoutes(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// Run serves until ctx is cancelled or a component fails, then shuts
// everything down.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	updates, unsubscribe := a.pipeline.Subscribe()
	defer unsubscribe()

	g.Go(func() error { return a.hub.Run(ctx, updates) })
	if a.buffer != nil {
		g.Go(func() error { return a.buffer.Run(ctx) })
	}
	g.Go(func() error {
		a.healthLoop(ctx)
		return nil
	})
	g.Go(func() error {
		a.logger.Info("Vision bridge listening on http://localhost:%d", a.config.Port)
		a.logger.Info("Analysis backend: %s, camera source: %s", a.config.AnalysisBackend, a.config.CameraSource)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.close()
	return err
}

// healthLoop probes the analysis service at startup and then every
// HealthInterval.
func (a *App) healthLoop(ctx context.Context) {
	a.probe(ctx)
	if a.config.HealthInterval <= 0 {
		return
	}

	ticker := time.NewTicker(a.config.HealthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.probe(ctx)
		}
	}
}

func (a *App) probe(ctx context.Context) {
	a.pipeline.CheckConnection(ctx)
	a.pipeline.RefreshStatus(ctx)
}

// close stops the pipeline, writes out what the archive still holds and
// releases the database.
func (a *App) close() {
	a.pipeline.Close()
	if a.buffer != nil {
		a.buffer.FlushCaptures()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Error closing database: %v", err)
		}
	}
}
