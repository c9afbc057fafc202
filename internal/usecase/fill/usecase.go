// Package fill runs one fill episode: normalize the captured element, ask the
// selected model for values and write them back into the page.
package fill

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"formfill/internal/application/port/input"
	"formfill/internal/application/port/output"
	"formfill/internal/domain/entity"
	"formfill/internal/usecase/mapper"
	"formfill/internal/usecase/normalizer"
	"formfill/internal/usecase/settings"
	"formfill/internal/usecase/writeback"

	"github.com/google/uuid"
)

var _ input.EpisodeExecutor = (*UseCase)(nil)

type Config struct {
	// PreviewDir receives a thumbnail of each captured element; empty disables it.
	PreviewDir string
}

type UseCase struct {
	normalizer *normalizer.Normalizer
	settings   *settings.Service
	factory    output.CompletionFactory
	mapper     *mapper.Mapper
	writeback  *writeback.Engine
	page       output.PagePort
	ui         output.UserInteractionPort
	logger     output.LoggerPort
	cfg        Config

	mu       sync.Mutex
	current  uint64
	cancelFn context.CancelFunc
	last     *entity.Episode
	wg       sync.WaitGroup
}

func NewUseCase(
	n *normalizer.Normalizer,
	s *settings.Service,
	factory output.CompletionFactory,
	m *mapper.Mapper,
	wb *writeback.Engine,
	page output.PagePort,
	ui output.UserInteractionPort,
	logger output.LoggerPort,
	cfg Config,
) *UseCase {
	return &UseCase{
		normalizer: n,
		settings:   s,
		factory:    factory,
		mapper:     m,
		writeback:  wb,
		page:       page,
		ui:         ui,
		logger:     logger,
		cfg:        cfg,
	}
}

// HandleCapture is the selection controller's capture handler.
func (u *UseCase) HandleCapture(ctx context.Context, el entity.CapturedElement) {
	u.wg.Add(1)
	defer u.wg.Done()

	if _, err := u.Execute(ctx, el); err != nil {
		u.logger.Warn("Episode failed", "error", err)
	}
}

// Wait blocks until episodes started through HandleCapture have finished.
func (u *UseCase) Wait() {
	u.wg.Wait()
}

// Abort cancels the in-flight episode, if any.
func (u *UseCase) Abort() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.cancelFn != nil {
		u.cancelFn()
	}
}

// Last returns a copy of the most recently finished episode.
func (u *UseCase) Last() (entity.Episode, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.last == nil {
		return entity.Episode{}, false
	}
	return *u.last, true
}

// Execute runs one episode. Starting an episode aborts the one still in flight.
func (u *UseCase) Execute(ctx context.Context, el entity.CapturedElement) (*entity.Episode, error) {
	ep := &entity.Episode{
		ID:        uuid.NewString(),
		PageURL:   el.PageURL,
		Status:    entity.EpisodeStatusRunning,
		StartedAt: time.Now(),
	}
	log := u.logger.WithFields(map[string]any{"episode": ep.ID, "page": el.PageURL})

	ctx, release := u.begin(ctx)
	defer release()

	snap, err := u.normalizer.Normalize(el.HTML)
	if err != nil {
		return u.fail(ctx, log, ep, entity.NewFillError(entity.FillErrNormalize, err))
	}
	ep.Snapshot = snap
	if snap.Empty() {
		return u.fail(ctx, log, ep, entity.NewFillError(entity.FillErrNoFields, errors.New("no input fields found")))
	}

	log.Info("Episode started", "fields", len(snap.Fields), "markup_len", len(snap.Markup))
	if u.ui != nil {
		u.ui.ShowEpisodeStart(ctx, ep.ID, len(snap.Fields))
	}

	backend, instruction, err := u.resolveBackend(ctx, ep)
	if err != nil {
		return u.fail(ctx, log, ep, err)
	}
	ep.Instruction = instruction

	if u.cfg.PreviewDir != "" && !el.Rect.Empty() {
		ep.PreviewPath = u.savePreview(ctx, log, ep.ID, el.Rect)
	}

	answers, pairs, err := u.mapper.RequestFill(ctx, backend, snap, instruction)
	ep.Answers = answers
	ep.Pairs = pairs
	if err != nil {
		return u.fail(ctx, log, ep, err)
	}
	if ctx.Err() != nil {
		return u.fail(ctx, log, ep, entity.NewFillError(entity.FillErrAborted, ctx.Err()))
	}

	report, err := u.writeback.Apply(ctx, pairs)
	ep.Report = report
	if err != nil {
		return u.fail(ctx, log, ep, err)
	}

	ep.Status = entity.EpisodeStatusCompleted
	ep.FinishedAt = time.Now()
	log.Info("Episode completed",
		"answers", len(answers),
		"applied", report.Applied(),
		"skipped", report.Skipped(),
		"duration_ms", ep.FinishedAt.Sub(ep.StartedAt).Milliseconds())

	u.finish(ctx, ep)
	return ep, nil
}

func (u *UseCase) resolveBackend(ctx context.Context, ep *entity.Episode) (output.CompletionPort, string, error) {
	model, err := u.settings.SelectedModel(ctx)
	if err != nil {
		return nil, "", entity.NewFillError(entity.FillErrNoModel, err)
	}
	ep.Model = model

	key, err := u.settings.SelectedAPIKey(ctx, model.Provider)
	if err != nil {
		return nil, "", entity.NewFillError(entity.FillErrNoCredentials, err)
	}

	prompt, err := u.settings.SelectedPrompt(ctx)
	if err != nil {
		return nil, "", entity.NewFillError(entity.FillErrNoPrompt, err)
	}

	backend, err := u.factory.NewCompletion(model.Provider, key.APIKey, model.Version)
	if err != nil {
		return nil, "", entity.NewFillError(entity.FillErrCompletionFailed, fmt.Errorf("create %s backend: %w", model.Provider, err))
	}
	return backend, prompt.Prompt, nil
}

// begin binds the episode to the page lifecycle and aborts the previous episode.
func (u *UseCase) begin(ctx context.Context) (context.Context, func()) {
	ctx, cancel := u.page.LifecycleContext(ctx)

	u.mu.Lock()
	if u.cancelFn != nil {
		u.logger.Info("Aborting in-flight episode")
		u.cancelFn()
	}
	u.current++
	token := u.current
	u.cancelFn = cancel
	u.mu.Unlock()

	return ctx, func() {
		cancel()
		u.mu.Lock()
		if u.current == token {
			u.cancelFn = nil
		}
		u.mu.Unlock()
	}
}

func (u *UseCase) fail(ctx context.Context, log output.LoggerPort, ep *entity.Episode, err error) (*entity.Episode, error) {
	ep.Status = entity.EpisodeStatusFailed
	ep.Error = err.Error()
	ep.FinishedAt = time.Now()

	kind, _ := entity.FillErrorKindOf(err)
	log.Error("Episode failed", "kind", kind, "error", err)

	if u.ui != nil {
		u.ui.ShowError(ctx, err)
	}
	u.finish(ctx, ep)
	return ep, err
}

func (u *UseCase) finish(ctx context.Context, ep *entity.Episode) {
	snapshot := *ep
	u.mu.Lock()
	u.last = &snapshot
	u.mu.Unlock()

	if u.ui != nil {
		u.ui.ShowEpisodeResult(ctx, ep)
	}
}

func (u *UseCase) savePreview(ctx context.Context, log output.LoggerPort, id string, rect entity.Rect) string {
	shot, err := u.page.ScreenshotRect(ctx, rect)
	if err != nil {
		log.Warn("Preview capture failed", "error", err)
		return ""
	}
	if err := os.MkdirAll(u.cfg.PreviewDir, 0755); err != nil {
		log.Warn("Preview dir not writable", "error", err)
		return ""
	}
	path := filepath.Join(u.cfg.PreviewDir, fmt.Sprintf("%s.%s", id, shot.Format))
	if err := os.WriteFile(path, shot.Data, 0644); err != nil {
		log.Warn("Preview write failed", "error", err)
		return ""
	}
	log.Debug("Preview saved", "path", path, "width", shot.Width, "height", shot.Height)
	return path
}
