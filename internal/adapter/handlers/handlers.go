// Package handlers exposes the use cases as named messages on the bus.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"formfill/internal/application/port/input"
	"formfill/internal/application/port/output"
	"formfill/internal/domain/entity"
	"formfill/internal/usecase/settings"
)

var ErrMissingField = errors.New("missing required field")

func decode(body json.RawMessage, v any) error {
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func required(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	return nil
}

// RegisterAll registers every handler on the registry.
func RegisterAll(
	registry output.HandlerRegistry,
	selection input.SelectionController,
	executor input.EpisodeExecutor,
	episodes EpisodeSource,
	svc *settings.Service,
) {
	registry.Register(NewStartSelectionHandler(selection))
	registry.Register(NewCancelSelectionHandler(selection))
	registry.Register(NewElementSelectedHandler(executor))
	registry.Register(NewSaveAPIKeyHandler(svc))
	registry.Register(NewGetAPIKeyHandler(svc))
	registry.Register(NewDeleteAPIKeyHandler(svc))
	registry.Register(NewSavePromptHandler(svc))
	registry.Register(NewUpdatePromptHandler(svc))
	registry.Register(NewSelectPromptHandler(svc))
	registry.Register(NewSelectModelHandler(svc))
	registry.Register(NewStatusHandler(selection, episodes, svc))
}

type StartSelectionHandler struct {
	selection input.SelectionController
}

func NewStartSelectionHandler(selection input.SelectionController) *StartSelectionHandler {
	return &StartSelectionHandler{selection: selection}
}

func (h *StartSelectionHandler) Name() entity.MessageName {
	return entity.MessageStartElementSelection
}

func (h *StartSelectionHandler) Handle(ctx context.Context, _ json.RawMessage) (any, error) {
	if err := h.selection.Start(ctx); err != nil {
		return nil, err
	}
	return map[string]string{
		"message": "Element selection started. Click on any element to select it.",
	}, nil
}

type CancelSelectionHandler struct {
	selection input.SelectionController
}

func NewCancelSelectionHandler(selection input.SelectionController) *CancelSelectionHandler {
	return &CancelSelectionHandler{selection: selection}
}

func (h *CancelSelectionHandler) Name() entity.MessageName {
	return entity.MessageCancelElementSelection
}

func (h *CancelSelectionHandler) Handle(ctx context.Context, _ json.RawMessage) (any, error) {
	return nil, h.selection.Cancel(ctx)
}

// ElementSelectedHandler runs an episode for markup sent by a client instead of
// the in-page picker.
type ElementSelectedHandler struct {
	executor input.EpisodeExecutor
}

func NewElementSelectedHandler(executor input.EpisodeExecutor) *ElementSelectedHandler {
	return &ElementSelectedHandler{executor: executor}
}

func (h *ElementSelectedHandler) Name() entity.MessageName {
	return entity.MessageElementSelected
}

type EpisodeResult struct {
	EpisodeID string               `json:"episodeId"`
	Status    entity.EpisodeStatus `json:"status"`
	Fields    int                  `json:"fields"`
	Values    []entity.FillPair    `json:"values"`
	Report    entity.FillReport    `json:"report"`
	Preview   string               `json:"preview,omitempty"`
}

func (h *ElementSelectedHandler) Handle(ctx context.Context, body json.RawMessage) (any, error) {
	var in struct {
		ElementHTML string      `json:"elementHtml"`
		Tag         string      `json:"tag"`
		PageURL     string      `json:"pageUrl"`
		Rect        entity.Rect `json:"rect"`
	}
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	if err := required("elementHtml", in.ElementHTML); err != nil {
		return nil, err
	}

	ep, err := h.executor.Execute(ctx, entity.CapturedElement{
		HTML:    in.ElementHTML,
		Tag:     in.Tag,
		PageURL: in.PageURL,
		Rect:    in.Rect,
	})
	if err != nil {
		return nil, err
	}

	result := EpisodeResult{
		EpisodeID: ep.ID,
		Status:    ep.Status,
		Values:    ep.Pairs,
		Report:    ep.Report,
		Preview:   ep.PreviewPath,
	}
	if ep.Snapshot != nil {
		result.Fields = len(ep.Snapshot.Fields)
	}
	return result, nil
}

type SaveAPIKeyHandler struct {
	svc *settings.Service
}

func NewSaveAPIKeyHandler(svc *settings.Service) *SaveAPIKeyHandler {
	return &SaveAPIKeyHandler{svc: svc}
}

func (h *SaveAPIKeyHandler) Name() entity.MessageName {
	return entity.MessageSaveAPIKey
}

func (h *SaveAPIKeyHandler) Handle(ctx context.Context, body json.RawMessage) (any, error) {
	var in struct {
		Name     string `json:"name"`
		APIKey   string `json:"apiKey"`
		Provider string `json:"apiKeyProvider"`
		Select   bool   `json:"select"`
	}
	if err := decode(body, &in); err != nil {
		return nil, err
	}

	key := entity.APIKey{Name: in.Name, Provider: entity.Provider(in.Provider), APIKey: in.APIKey}
	if err := h.svc.SaveAPIKey(ctx, key); err != nil {
		return nil, err
	}
	if in.Select {
		if err := h.svc.SelectAPIKey(ctx, in.Name); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

type maskedKey struct {
	Name     string          `json:"name"`
	Provider entity.Provider `json:"provider"`
	APIKey   string          `json:"apiKey"`
}

func mask(k entity.APIKey) maskedKey {
	return maskedKey{Name: k.Name, Provider: k.Provider, APIKey: settings.MaskAPIKey(k.APIKey)}
}

// GetAPIKeyHandler never returns a secret in clear. With a name it returns that
// key, with a provider the key selected for it, and otherwise every key.
type GetAPIKeyHandler struct {
	svc *settings.Service
}

func NewGetAPIKeyHandler(svc *settings.Service) *GetAPIKeyHandler {
	return &GetAPIKeyHandler{svc: svc}
}

func (h *GetAPIKeyHandler) Name() entity.MessageName {
	return entity.MessageGetAPIKey
}

func (h *GetAPIKeyHandler) Handle(ctx context.Context, body json.RawMessage) (any, error) {
	var in struct {
		Name     string `json:"name"`
		Provider string `json:"apiKeyProvider"`
	}
	if err := decode(body, &in); err != nil {
		return nil, err
	}

	switch {
	case in.Name != "":
		key, err := h.svc.APIKey(ctx, in.Name)
		if err != nil {
			return nil, err
		}
		return mask(key), nil
	case in.Provider != "":
		key, err := h.svc.SelectedAPIKey(ctx, entity.Provider(in.Provider))
		if err != nil {
			return nil, err
		}
		return mask(key), nil
	}

	keys, err := h.svc.ListAPIKeys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]maskedKey, 0, len(keys))
	for _, k := range keys {
		out = append(out, mask(k))
	}
	return out, nil
}

type DeleteAPIKeyHandler struct {
	svc *settings.Service
}

func NewDeleteAPIKeyHandler(svc *settings.Service) *DeleteAPIKeyHandler {
	return &DeleteAPIKeyHandler{svc: svc}
}

func (h *DeleteAPIKeyHandler) Name() entity.MessageName {
	return entity.MessageDeleteAPIKey
}

func (h *DeleteAPIKeyHandler) Handle(ctx context.Context, body json.RawMessage) (any, error) {
	var in struct {
		Name string `json:"name"`
	}
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	return nil, h.svc.DeleteAPIKey(ctx, in.Name)
}

type SavePromptHandler struct {
	svc *settings.Service
}

func NewSavePromptHandler(svc *settings.Service) *SavePromptHandler {
	return &SavePromptHandler{svc: svc}
}

func (h *SavePromptHandler) Name() entity.MessageName {
	return entity.MessageSavePrompt
}

func (h *SavePromptHandler) Handle(ctx context.Context, body json.RawMessage) (any, error) {
	var in struct {
		Name   string `json:"name"`
		Prompt string `json:"prompt"`
		Select bool   `json:"select"`
	}
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	if err := h.svc.SavePrompt(ctx, entity.Prompt{Name: in.Name, Prompt: in.Prompt}); err != nil {
		return nil, err
	}
	if in.Select {
		return nil, h.svc.SelectPrompt(ctx, in.Name)
	}
	return nil, nil
}

type UpdatePromptHandler struct {
	svc *settings.Service
}

func NewUpdatePromptHandler(svc *settings.Service) *UpdatePromptHandler {
	return &UpdatePromptHandler{svc: svc}
}

func (h *UpdatePromptHandler) Name() entity.MessageName {
	return entity.MessageUpdatePrompt
}

// Handle edits a prompt. An empty name keeps oldName.
func (h *UpdatePromptHandler) Handle(ctx context.Context, body json.RawMessage) (any, error) {
	var in struct {
		OldName string `json:"oldName"`
		Name    string `json:"name"`
		Prompt  string `json:"prompt"`
	}
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	if err := required("oldName", in.OldName); err != nil {
		return nil, err
	}
	if in.Name == "" {
		in.Name = in.OldName
	}
	return nil, h.svc.UpdatePrompt(ctx, in.OldName, in.Name, in.Prompt)
}

type SelectPromptHandler struct {
	svc *settings.Service
}

func NewSelectPromptHandler(svc *settings.Service) *SelectPromptHandler {
	return &SelectPromptHandler{svc: svc}
}

func (h *SelectPromptHandler) Name() entity.MessageName {
	return entity.MessageSelectPrompt
}

func (h *SelectPromptHandler) Handle(ctx context.Context, body json.RawMessage) (any, error) {
	var in struct {
		Name string `json:"name"`
	}
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	return nil, h.svc.SelectPrompt(ctx, in.Name)
}

type SelectModelHandler struct {
	svc *settings.Service
}

func NewSelectModelHandler(svc *settings.Service) *SelectModelHandler {
	return &SelectModelHandler{svc: svc}
}

func (h *SelectModelHandler) Name() entity.MessageName {
	return entity.MessageSelectModel
}

func (h *SelectModelHandler) Handle(ctx context.Context, body json.RawMessage) (any, error) {
	var in struct {
		ModelVersion string `json:"modelVersion"`
	}
	if err := decode(body, &in); err != nil {
		return nil, err
	}
	if err := required("modelVersion", in.ModelVersion); err != nil {
		return nil, err
	}
	if err := h.svc.SelectModel(ctx, in.ModelVersion); err != nil {
		return nil, err
	}
	model, _ := settings.LookupModel(in.ModelVersion)
	return model, nil
}

type EpisodeSource interface {
	Last() (entity.Episode, bool)
}

type StatusHandler struct {
	selection input.SelectionController
	episodes  EpisodeSource
	svc       *settings.Service
}

func NewStatusHandler(selection input.SelectionController, episodes EpisodeSource, svc *settings.Service) *StatusHandler {
	return &StatusHandler{selection: selection, episodes: episodes, svc: svc}
}

func (h *StatusHandler) Name() entity.MessageName {
	return entity.MessageStatus
}

type Status struct {
	Selection     input.SelectionState `json:"selection"`
	SelectedModel *entity.Model        `json:"selectedModel,omitempty"`
	Models        []entity.Model       `json:"models"`
	LastEpisode   *EpisodeSummary      `json:"lastEpisode,omitempty"`
}

type EpisodeSummary struct {
	ID      string               `json:"id"`
	PageURL string               `json:"pageUrl"`
	Status  entity.EpisodeStatus `json:"status"`
	Error   string               `json:"error,omitempty"`
	Applied int                  `json:"applied"`
	Skipped int                  `json:"skipped"`
}

func (h *StatusHandler) Handle(ctx context.Context, _ json.RawMessage) (any, error) {
	status := Status{
		Selection: h.selection.State(),
		Models:    settings.Catalog,
	}

	if model, err := h.svc.SelectedModel(ctx); err == nil {
		status.SelectedModel = &model
	} else if !errors.Is(err, settings.ErrNoModelSelected) {
		return nil, err
	}

	if ep, ok := h.episodes.Last(); ok {
		status.LastEpisode = &EpisodeSummary{
			ID:      ep.ID,
			PageURL: ep.PageURL,
			Status:  ep.Status,
			Error:   ep.Error,
			Applied: ep.Report.Applied(),
			Skipped: ep.Report.Skipped(),
		}
	}
	return status, nil
}
