package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a failed round trip.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindTimeout
	KindServer
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindServer:
		return "server"
	default:
		return "network"
	}
}

// Error is returned by every call that fails to produce a result.
type Error struct {
	Kind       ErrorKind
	StatusCode int    // set for KindServer
	Message    string // service-provided detail, if any
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindServer:
		if e.Message != "" {
			return fmt.Sprintf("analysis service error (HTTP %d): %s", e.StatusCode, e.Message)
		}
		return fmt.Sprintf("analysis service error (HTTP %d)", e.StatusCode)
	case KindTimeout:
		return fmt.Sprintf("analysis service timed out: %v", e.Err)
	default:
		return fmt.Sprintf("analysis service unreachable: %v", e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err and whether err is an *Error at all.
func KindOf(err error) (ErrorKind, bool) {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr.Kind, true
	}
	return KindNetwork, false
}

// transportError maps an http.Client failure to Network or Timeout.
func transportError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Err: err}
	}
	return &Error{Kind: KindNetwork, Err: err}
}
