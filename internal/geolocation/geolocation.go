// Package geolocation models a device location provider: one-shot fixes,
// continuous watches and a permission prompt, with the three platform error
// kinds mapped to readable messages.
package geolocation

import (
	"context"
	"errors"
	"time"

	"github.com/playperu/territoryrun/internal/geo"
)

type ErrorCode int

// Codes match the platform position error codes.
const (
	PermissionDenied    ErrorCode = 1
	PositionUnavailable ErrorCode = 2
	Timeout             ErrorCode = 3
)

// Error is a classified location failure.
type Error struct {
	Code ErrorCode
}

func (e *Error) Error() string {
	switch e.Code {
	case PermissionDenied:
		return "location access denied by user"
	case PositionUnavailable:
		return "location information unavailable"
	case Timeout:
		return "location request timed out"
	default:
		return "unknown location error"
	}
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrPermissionDenied    = &Error{Code: PermissionDenied}
	ErrPositionUnavailable = &Error{Code: PositionUnavailable}
	ErrTimeout             = &Error{Code: Timeout}
)

type PermissionState string

const (
	StateGranted PermissionState = "granted"
	StateDenied  PermissionState = "denied"
	StatePrompt  PermissionState = "prompt"
)

// Options are passed through to the platform unchanged.
type Options struct {
	EnableHighAccuracy bool
	Timeout            time.Duration // 0 waits forever
	MaximumAge         time.Duration // 0 never serves a cached fix
}

var DefaultOptions = Options{
	EnableHighAccuracy: true,
	Timeout:            10 * time.Second,
	MaximumAge:         0,
}

// Fix is a single position sample. Accuracy is in meters.
type Fix struct {
	Location  geo.Location `json:"location"`
	Accuracy  float64      `json:"accuracy"`
	Timestamp time.Time    `json:"timestamp"`
}

type WatchID int

// Platform is the device location API.
type Platform interface {
	GetCurrentPosition(ctx context.Context, opts Options) (Fix, error)
	WatchPosition(opts Options, onFix func(Fix), onErr func(error)) WatchID
	ClearWatch(id WatchID)
	Permission(ctx context.Context) (PermissionState, error)
}

// PermissionAwaiter is a Platform that can report the answer to the
// permission prompt on its own, without waiting for a fix.
type PermissionAwaiter interface {
	AwaitPermission(ctx context.Context, timeout time.Duration) (PermissionState, error)
}
