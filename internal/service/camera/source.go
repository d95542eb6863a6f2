// Package camera owns the capture device and turns its current frame into
// an encoded still on demand. It has no polling logic of its own.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"visionbridge/internal/logger"
	"visionbridge/internal/model"
)

var (
	// ErrNotReady means the stream has not produced a frame yet.
	ErrNotReady = errors.New("camera: stream has no frame yet")
	// ErrSessionClosed means the session was released.
	ErrSessionClosed = errors.New("camera: session closed")
	// ErrSessionActive means another session is still live.
	ErrSessionActive = errors.New("camera: a session is already active")
)

// Device failure reasons.
const (
	ReasonPermissionDenied = "permission denied"
	ReasonNoDevice         = "no device"
	ReasonOpenFailed       = "open failed"
)

// DeviceError reports a failed device acquisition.
type DeviceError struct {
	Reason string
	Err    error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera unavailable (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("camera unavailable (%s)", e.Reason)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// Constraints are best-effort hints for the device.
type Constraints struct {
	Device     string
	Width      int
	Height     int
	FacingMode string
}

// Stream is an open frame producer.
type Stream interface {
	// Frame returns the most recent frame, or nil if none was produced yet.
	Frame() (image.Image, error)
	Close() error
}

// Opener opens a Stream.
type Opener interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Session is ownership of a live stream.
type Session struct {
	ID          string
	StartedAt   time.Time
	Constraints Constraints

	stream Stream
	closed atomic.Bool
	once   sync.Once
}

// NewSession wraps an open stream.
func NewSession(stream Stream, c Constraints) *Session {
	return &Session{
		ID:          uuid.NewString(),
		StartedAt:   time.Now(),
		Constraints: c,
		stream:      stream,
	}
}

// Active reports whether the session still owns its stream.
func (s *Session) Active() bool {
	return s != nil && !s.closed.Load()
}

func (s *Session) close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		err = s.stream.Close()
	})
	return err
}

// Capturer hands out at most one live Session and encodes its frames.
type Capturer struct {
	opener  Opener
	encoder *Encoder
	logger  *logger.Logger

	mu      sync.Mutex
	current *Session
}

func NewCapturer(opener Opener, encoder *Encoder, logger *logger.Logger) *Capturer {
	return &Capturer{
		opener:  opener,
		encoder: encoder,
		logger:  logger,
	}
}

// Acquire opens the device. Constraints are advisory.
func (c *Capturer) Acquire(ctx context.Context, constraints Constraints) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.Active() {
		return nil, ErrSessionActive
	}

	stream, err := c.opener.Open(ctx, constraints)
	if err != nil {
		var devErr *DeviceError
		if errors.As(err, &devErr) {
			return nil, err
		}
		return nil, &DeviceError{Reason: ReasonOpenFailed, Err: err}
	}

	session := NewSession(stream, constraints)
	c.current = session
	c.logger.Info("Camera session %s opened (device %q)", session.ID, constraints.Device)
	return session, nil
}

// Release stops the stream and invalidates the session. Calling it again,
// or with nil, does nothing.
func (c *Capturer) Release(session *Session) {
	if session == nil {
		return
	}
	if session.Active() {
		if err := session.close(); err != nil {
			c.logger.Warning("Closing camera session %s: %v", session.ID, err)
		} else {
			c.logger.Info("Camera session %s closed", session.ID)
		}
	}

	c.mu.Lock()
	if c.current == session {
		c.current = nil
	}
	c.mu.Unlock()
}

// CaptureStill samples the current frame into the encoder's fixed raster.
// A stream without a frame of non-zero size yields ErrNotReady.
func (c *Capturer) CaptureStill(session *Session) (model.EncodedImage, error) {
	if !session.Active() {
		return model.EncodedImage{}, ErrSessionClosed
	}

	frame, err := session.stream.Frame()
	if err != nil {
		if errors.Is(err, ErrSessionClosed) {
			return model.EncodedImage{}, err
		}
		return model.EncodedImage{}, fmt.Errorf("failed to read frame: %w", err)
	}
	if frame == nil || frame.Bounds().Empty() {
		return model.EncodedImage{}, ErrNotReady
	}

	return c.encoder.Encode(frame)
}
