package output

import (
	"context"

	"formfill/internal/domain/entity"
)

// SelectionSink receives overlay events from the page.
type SelectionSink func(entity.SelectionEvent)

type PagePort interface {
	Navigate(ctx context.Context, url string) error
	Info(ctx context.Context) (entity.PageInfo, error)

	InstallSelectionOverlay(ctx context.Context, sink SelectionSink) error
	RemoveSelectionOverlay(ctx context.Context) error

	ApplyValues(ctx context.Context, pairs []entity.FillPair) (entity.FillReport, error)

	// LifecycleContext is cancelled when the page navigates away or closes.
	LifecycleContext(ctx context.Context) (context.Context, context.CancelFunc)

	ScreenshotRect(ctx context.Context, rect entity.Rect) (*entity.Screenshot, error)

	Close()
}
