// Package gocvdevice opens local capture devices through OpenCV. It is the
// only package that links gocv, so the rest of the pipeline builds and
// tests without the native library.
package gocvdevice

import (
	"context"
	"image"
	"strconv"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"visionbridge/internal/logger"
	"visionbridge/internal/service/camera"
)

// Opener opens a local capture device through OpenCV.
type Opener struct {
	Logger *logger.Logger
}

func (o Opener) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var device interface{} = c.Device
	if c.Device == "" {
		device = 0
	} else if id, err := strconv.Atoi(c.Device); err == nil {
		device = id
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		reason := camera.ReasonOpenFailed
		if strings.Contains(strings.ToLower(err.Error()), "permission") {
			reason = camera.ReasonPermissionDenied
		}
		return nil, &camera.DeviceError{Reason: reason, Err: err}
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, &camera.DeviceError{Reason: camera.ReasonNoDevice}
	}

	if c.Width > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
	}
	if c.Height > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	}
	if c.FacingMode != "" && o.Logger != nil {
		o.Logger.Info("Facing mode %q is not selectable on local devices, using %v", c.FacingMode, device)
	}

	s := &deviceStream{
		capture: capture,
		latest:  gocv.NewMat(),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// deviceStream keeps the newest decoded frame, the way a video element
// always shows the current picture.
type deviceStream struct {
	capture *gocv.VideoCapture

	mu     sync.Mutex
	latest gocv.Mat
	closed bool

	done   chan struct{}
	exited chan struct{}
}

func (s *deviceStream) readLoop() {
	defer close(s.exited)

	frame := gocv.NewMat()
	defer frame.Close()

	for {
		select {
		case <-s.done:
			return
		default:
		}

		if ok := s.capture.Read(&frame); !ok || frame.Empty() {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		clone := frame.Clone()
		s.mu.Lock()
		s.latest.Close()
		s.latest = clone
		s.mu.Unlock()
	}
}

func (s *deviceStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, camera.ErrSessionClosed
	}
	if s.latest.Empty() || s.latest.Cols() == 0 || s.latest.Rows() == 0 {
		return nil, nil
	}
	return s.latest.ToImage()
}

func (s *deviceStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	<-s.exited

	s.mu.Lock()
	s.latest.Close()
	s.mu.Unlock()
	return s.capture.Close()
}
