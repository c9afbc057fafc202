package output

import (
	"context"

	"formfill/internal/domain/entity"
)

type UserInteractionPort interface {
	ShowSelectionArmed(ctx context.Context)
	ShowSelectionCancelled(ctx context.Context)
	ShowEpisodeStart(ctx context.Context, episodeID string, fields int)
	ShowEpisodeResult(ctx context.Context, episode *entity.Episode)
	ShowError(ctx context.Context, err error)
}
