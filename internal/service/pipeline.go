// Package service holds the capture pipeline: it owns the camera session,
// admits analysis cycles one at a time, and publishes the resulting
// snapshot to subscribers.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"visionbridge/internal/dto"
	"visionbridge/internal/logger"
	"visionbridge/internal/model"
	"visionbridge/internal/service/camera"
	"visionbridge/internal/service/metrics"
	"visionbridge/internal/service/scheduler"
)

// HistoryLimit is the number of history entries kept, newest first.
const HistoryLimit = 5

// DefaultCloseGrace bounds how long Close lets in-flight analysis run
// before cancelling it.
const DefaultCloseGrace = 5 * time.Second

var (
	// ErrCameraInactive is returned when auto mode is enabled without a camera.
	ErrCameraInactive = errors.New("camera is not active")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("pipeline closed")
)

// Analyzer is the remote analysis service.
type Analyzer interface {
	Analyze(ctx context.Context, img model.EncodedImage) (model.DetectionResult, error)
	Ping(ctx context.Context) (dto.RootResponse, error)
	Status(ctx context.Context) (dto.StatusResponse, error)
	Test(ctx context.Context) (dto.TestResponse, error)
}

// FrameSource grabs stills from the camera.
type FrameSource interface {
	Acquire(ctx context.Context, c camera.Constraints) (*camera.Session, error)
	Release(s *camera.Session)
	CaptureStill(s *camera.Session) (model.EncodedImage, error)
}

// Recorder receives every folded result together with its frame.
type Recorder interface {
	Record(sessionID string, img model.EncodedImage, result model.DetectionResult)
}

// PipelineConfig holds the tunables of a Pipeline.
type PipelineConfig struct {
	Constraints     camera.Constraints
	AutoInterval    time.Duration
	FoldLateResults bool
	CloseGrace      time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

func WithLogger(l *logger.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithTickerFactory replaces the auto-mode clock.
func WithTickerFactory(f scheduler.TickerFactory) Option {
	return func(p *Pipeline) { p.tickers = f }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// cycle is one admitted capture → analyze → fold round trip.
type cycle struct {
	id      uint64
	trigger scheduler.Kind
	session *camera.Session
}

// Pipeline is the single writer of the snapshot.
type Pipeline struct {
	source   FrameSource
	analyzer Analyzer
	recorder Recorder
	sched    *scheduler.Scheduler
	tickers  scheduler.TickerFactory
	logger   *logger.Logger
	metrics  *metrics.Metrics
	cfg      PipelineConfig
	now      func() time.Time

	// lifecycle serializes camera and auto-mode changes. It is never held
	// while waiting on mu's holders in the reverse order.
	lifecycle sync.Mutex

	mu          sync.Mutex
	snap        model.Snapshot
	session     *camera.Session
	requestSeq  uint64
	subscribers map[chan model.Snapshot]struct{}
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	cycles sync.WaitGroup
}

// NewPipeline creates an idle pipeline: camera inactive, auto mode off,
// connection unknown.
func NewPipeline(source FrameSource, analyzer Analyzer, cfg PipelineConfig, opts ...Option) *Pipeline {
	if cfg.AutoInterval <= 0 {
		cfg.AutoInterval = scheduler.DefaultInterval
	}
	if cfg.CloseGrace <= 0 {
		cfg.CloseGrace = DefaultCloseGrace
	}

	p := &Pipeline{
		source:      source,
		analyzer:    analyzer,
		tickers:     scheduler.NewRealTicker,
		logger:      logger.NewDiscard(),
		cfg:         cfg,
		now:         time.Now,
		subscribers: make(map[chan model.Snapshot]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.sched = scheduler.New(p.trigger,
		scheduler.WithTickerFactory(p.tickers),
		scheduler.WithLogger(p.logger),
		scheduler.WithMetrics(p.metrics),
	)

	p.snap = model.Snapshot{
		Connection:      model.ConnectionStatus{State: model.ConnectionUnknown, Detail: ConnDetailPending},
		DetectionMethod: MethodInitializing,
		AutoInterval:    cfg.AutoInterval,
		LastMessage:     MsgInitial,
		History:         []model.HistoryEntry{},
		UpdatedAt:       p.now(),
	}
	return p
}

// Snapshot returns a deep copy of the current state.
func (p *Pipeline) Snapshot() model.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap.Clone()
}

// Subscribe returns a mailbox that always holds the newest snapshot not
// yet received. Older undelivered snapshots are replaced, never queued.
// The current snapshot is delivered immediately.
func (p *Pipeline) Subscribe() (<-chan model.Snapshot, func()) {
	ch := make(chan model.Snapshot, 1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	p.subscribers[ch] = struct{}{}
	ch <- p.snap.Clone()
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if _, ok := p.subscribers[ch]; ok {
				delete(p.subscribers, ch)
				close(ch)
			}
		})
	}
}

// publishLocked stamps a new version and hands a copy to every mailbox.
func (p *Pipeline) publishLocked() {
	p.snap.Version++
	p.snap.UpdatedAt = p.now()

	for ch := range p.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- p.snap.Clone()
	}
}

// StartCamera acquires the camera. Starting an active camera is a no-op.
func (p *Pipeline) StartCamera(ctx context.Context) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	active := p.snap.CameraActive
	p.mu.Unlock()
	if active {
		return nil
	}

	session, err := p.source.Acquire(ctx, p.cfg.Constraints)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.snap.CameraActive = false
		p.snap.LastMessage = cameraFailureMessage(err)
		p.publishLocked()
		p.logger.Warning("Camera start failed: %v", err)
		return err
	}

	p.session = session
	p.snap.CameraActive = true
	p.snap.LastMessage = MsgCameraActive
	p.publishLocked()
	p.metrics.SetCameraActive(true)
	p.logger.Info("Camera session %s started", session.ID)
	return nil
}

// StopCamera cancels auto mode and releases the camera. An in-flight
// cycle is left to settle. Calling it on an inactive camera is a no-op.
func (p *Pipeline) StopCamera() {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	p.stopCameraLocked()
}

func (p *Pipeline) stopCameraLocked() {
	// Cancel ticks first so none can be admitted against a dying session.
	if on, _ := p.sched.AutoMode(); on {
		_ = p.sched.SetAutoMode(false, 0)
	}

	p.mu.Lock()
	session := p.session
	wasActive := p.snap.CameraActive || p.snap.AutoModeEnabled
	p.session = nil
	p.snap.CameraActive = false
	p.snap.AutoModeEnabled = false
	if wasActive {
		p.snap.LastMessage = MsgCameraOffline
		p.publishLocked()
	}
	p.mu.Unlock()

	p.source.Release(session)
	p.metrics.SetCameraActive(false)
	if session != nil {
		p.logger.Info("Camera session %s stopped", session.ID)
	}
}

// SetAutoMode enables or disables periodic analysis. A non-positive
// interval keeps the current one. Enabling requires an active camera.
func (p *Pipeline) SetAutoMode(enabled bool, interval time.Duration) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	return p.setAutoModeLocked(enabled, interval)
}

// ToggleAutoMode flips auto mode, keeping the current interval.
func (p *Pipeline) ToggleAutoMode() error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.mu.Lock()
	enabled := p.snap.AutoModeEnabled
	p.mu.Unlock()
	return p.setAutoModeLocked(!enabled, 0)
}

func (p *Pipeline) setAutoModeLocked(enabled bool, interval time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if interval <= 0 {
		interval = p.snap.AutoInterval
	}
	if enabled && !p.snap.CameraActive {
		p.mu.Unlock()
		return ErrCameraInactive
	}
	if !enabled && !p.snap.AutoModeEnabled {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.sched.SetAutoMode(enabled, interval); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.AutoModeEnabled = enabled
	p.snap.AutoInterval = interval
	if enabled {
		p.snap.LastMessage = MsgAutoOn
	} else {
		p.snap.LastMessage = MsgAutoOff
	}
	p.publishLocked()
	return nil
}

// RequestManualAnalysis asks for one cycle now. It returns false when the
// request was dropped because the camera is inactive or a cycle is in
// flight.
func (p *Pipeline) RequestManualAnalysis() bool {
	return p.sched.RequestManual()
}

// trigger is the admission gate shared by manual and timer requests.
func (p *Pipeline) trigger(kind scheduler.Kind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.closed || !p.snap.CameraActive || p.session == nil:
		p.metrics.TriggerDropped(string(kind), metrics.ReasonNoCamera)
		return false
	case p.snap.AnalysisInFlight:
		p.metrics.TriggerDropped(string(kind), metrics.ReasonInFlight)
		return false
	}

	p.requestSeq++
	c := cycle{id: p.requestSeq, trigger: kind, session: p.session}

	p.snap.AnalysisInFlight = true
	p.publishLocked()
	p.metrics.SetInFlight(true)

	p.cycles.Add(1)
	go p.run(c)
	return true
}

func (p *Pipeline) run(c cycle) {
	defer p.cycles.Done()

	img, err := p.source.CaptureStill(c.session)
	if err != nil {
		if errors.Is(err, camera.ErrNotReady) || errors.Is(err, camera.ErrSessionClosed) {
			p.settle(c, metrics.OutcomeSkipped, "")
			return
		}
		p.logger.Error("Frame capture failed: %v", err)
		p.settle(c, metrics.OutcomeError, failureMessage(err))
		return
	}

	start := time.Now()
	result, err := p.analyzer.Analyze(p.ctx, img)
	elapsed := time.Since(start)

	if err != nil {
		p.metrics.ObserveAnalysis(metrics.OutcomeError, elapsed)
		p.logger.Warning("Analysis cycle %d failed: %v", c.id, err)
		p.settle(c, metrics.OutcomeError, failureMessage(err))
		return
	}
	p.metrics.ObserveAnalysis(metrics.OutcomeSuccess, elapsed)

	if p.fold(c, result) && p.recorder != nil {
		p.recorder.Record(c.session.ID, img, result)
	}
}

// stale reports whether c may no longer write results.
func (p *Pipeline) staleLocked(c cycle) bool {
	if c.id != p.requestSeq {
		return true
	}
	return !p.cfg.FoldLateResults && p.session != c.session
}

// settle ends a cycle that produced no result. message is empty for
// silent skips.
func (p *Pipeline) settle(c cycle, outcome, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c.id == p.requestSeq {
		p.snap.AnalysisInFlight = false
	}
	if message != "" && !p.staleLocked(c) {
		p.snap.LastMessage = message
	}
	p.publishLocked()

	p.metrics.SetInFlight(false)
	p.metrics.CycleFinished(string(c.trigger), outcome)
}

// fold applies a successful result. It returns false when the result
// was discarded.
func (p *Pipeline) fold(c cycle, result model.DetectionResult) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c.id == p.requestSeq {
		p.snap.AnalysisInFlight = false
	}
	p.metrics.SetInFlight(false)

	if p.staleLocked(c) {
		p.publishLocked()
		p.metrics.CycleFinished(string(c.trigger), metrics.OutcomeDiscard)
		p.logger.Info("Discarded result of cycle %d from ended session", c.id)
		return false
	}

	latest := result.Clone()
	p.snap.Latest = &latest
	p.snap.DetectionMethod = result.DetectionMethod

	history := make([]model.HistoryEntry, 0, HistoryLimit)
	history = append(history, historyEntry(result))
	history = append(history, p.snap.History...)
	if len(history) > HistoryLimit {
		history = history[:HistoryLimit]
	}
	p.snap.History = history
	p.snap.LastMessage = analysisMessage(result)
	p.publishLocked()

	p.metrics.CycleFinished(string(c.trigger), metrics.OutcomeSuccess)
	return true
}

// CheckConnection probes the service root and updates the connection
// label only.
func (p *Pipeline) CheckConnection(ctx context.Context) bool {
	resp, err := p.analyzer.Ping(ctx)
	p.metrics.Probe(metrics.ProbeConnection, err == nil)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.logger.Warning("Connection check failed: %v", err)
		p.snap.Connection = model.ConnectionStatus{State: model.ConnectionDisconnected, Detail: ConnDetailOffline}
	} else {
		p.snap.Connection = model.ConnectionStatus{State: model.ConnectionConnected, Detail: connectedDetail(resp.DetectionMode)}
	}
	p.publishLocked()
	return err == nil
}

// RefreshStatus fetches service capabilities and the detection method
// label.
func (p *Pipeline) RefreshStatus(ctx context.Context) bool {
	resp, err := p.analyzer.Status(ctx)
	p.metrics.Probe(metrics.ProbeStatus, err == nil)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.logger.Warning("Status check failed: %v", err)
		p.snap.DetectionMethod = MethodFailed
		p.publishLocked()
		return false
	}

	caps := model.Capabilities{
		PyTorch:      resp.PyTorch,
		OpenCV:       resp.OpenCV,
		Transformers: resp.Transformers,
		Message:      resp.Message,
	}
	if resp.CUDA != nil {
		caps.CUDA = *resp.CUDA
	}
	if resp.YOLOAvailable != nil {
		caps.YOLOAvailable = *resp.YOLOAvailable
	}
	if resp.DetectionClasses != nil {
		caps.DetectionClasses = *resp.DetectionClasses
	}

	p.snap.Capabilities = caps
	if caps.YOLOAvailable {
		p.snap.DetectionMethod = MethodYOLO
	} else {
		p.snap.DetectionMethod = MethodBasic
	}
	p.publishLocked()
	return true
}

// TestConnection runs the diagnostic probe and reports it in the status
// line. It does not affect the analysis gate.
func (p *Pipeline) TestConnection(ctx context.Context) bool {
	resp, err := p.analyzer.Test(ctx)
	p.metrics.Probe(metrics.ProbeTest, err == nil)

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case err != nil:
		p.logger.Warning("Connection test failed: %v", err)
		p.snap.LastMessage = MsgTestFailed
	case resp.Response != "":
		p.snap.LastMessage = resp.Response
	default:
		p.snap.LastMessage = MsgTestSucceeded
	}
	p.publishLocked()
	return err == nil
}

// Close stops the camera and the scheduler and closes every
// subscription. In-flight cycles get CloseGrace to settle before their
// analysis calls are cancelled.
func (p *Pipeline) Close() {
	p.lifecycle.Lock()
	p.stopCameraLocked()
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.lifecycle.Unlock()

	p.sched.Close()

	settled := make(chan struct{})
	go func() {
		p.cycles.Wait()
		close(settled)
	}()

	timer := time.NewTimer(p.cfg.CloseGrace)
	select {
	case <-settled:
		timer.Stop()
		p.cancel()
	case <-timer.C:
		p.logger.Warning("Cancelling analysis still running after %v", p.cfg.CloseGrace)
		p.cancel()
		<-settled
	}

	p.mu.Lock()
	for ch := range p.subscribers {
		delete(p.subscribers, ch)
		close(ch)
	}
	p.mu.Unlock()
}
