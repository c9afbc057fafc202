package input

import (
	"context"

	"formfill/internal/domain/entity"
)

type EpisodeExecutor interface {
	Execute(ctx context.Context, el entity.CapturedElement) (*entity.Episode, error)
}
