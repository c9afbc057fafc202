package input

import (
	"context"

	"formfill/internal/domain/entity"
)

type SelectionState string

const (
	SelectionIdle       SelectionState = "idle"
	SelectionArmed      SelectionState = "armed"
	SelectionPreviewing SelectionState = "previewing"
	SelectionCaptured   SelectionState = "captured"
)

type SelectionController interface {
	Start(ctx context.Context) error
	Cancel(ctx context.Context) error
	State() SelectionState
}

// CaptureHandler consumes the root element of a finished selection.
type CaptureHandler func(ctx context.Context, el entity.CapturedElement)
