package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"formfill/internal/application/port/input"
	"formfill/internal/application/service"
	"formfill/internal/domain/entity"
	"formfill/internal/infrastructure/logger"
	"formfill/internal/usecase/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStore) Close() error { return nil }

type fakeSelection struct {
	state    input.SelectionState
	starts   int
	cancels  int
	startErr error
}

func (s *fakeSelection) Start(context.Context) error {
	s.starts++
	if s.startErr != nil {
		return s.startErr
	}
	s.state = input.SelectionArmed
	return nil
}

func (s *fakeSelection) Cancel(context.Context) error {
	s.cancels++
	s.state = input.SelectionIdle
	return nil
}

func (s *fakeSelection) State() input.SelectionState { return s.state }

type fakeExecutor struct {
	got  entity.CapturedElement
	ep   *entity.Episode
	err  error
	last *entity.Episode
}

func (e *fakeExecutor) Execute(_ context.Context, el entity.CapturedElement) (*entity.Episode, error) {
	e.got = el
	e.last = e.ep
	return e.ep, e.err
}

func (e *fakeExecutor) Last() (entity.Episode, bool) {
	if e.last == nil {
		return entity.Episode{}, false
	}
	return *e.last, true
}

type fixture struct {
	registry  *service.HandlerRegistryImpl
	selection *fakeSelection
	executor  *fakeExecutor
	settings  *settings.Service
}

func newFixture() fixture {
	fx := fixture{
		registry:  service.NewHandlerRegistry(),
		selection: &fakeSelection{state: input.SelectionIdle},
		executor:  &fakeExecutor{},
		settings:  settings.NewService(&memStore{data: map[string]string{}}, logger.NewNop()),
	}
	RegisterAll(fx.registry, fx.selection, fx.executor, fx.executor, fx.settings)
	return fx
}

func (fx fixture) call(t *testing.T, name entity.MessageName, body string) (any, error) {
	t.Helper()
	h, ok := fx.registry.Get(name)
	require.True(t, ok, "handler %s not registered", name)
	return h.Handle(context.Background(), json.RawMessage(body))
}

func TestRegisterAll(t *testing.T) {
	fx := newFixture()
	assert.Len(t, fx.registry.Names(), 11)
}

func TestSelectionHandlers(t *testing.T) {
	fx := newFixture()

	out, err := fx.call(t, entity.MessageStartElementSelection, "")
	require.NoError(t, err)
	assert.Contains(t, out.(map[string]string)["message"], "Click on any element")
	assert.Equal(t, 1, fx.selection.starts)

	_, err = fx.call(t, entity.MessageCancelElementSelection, "{}")
	require.NoError(t, err)
	assert.Equal(t, 1, fx.selection.cancels)

	fx.selection.startErr = errors.New("no page")
	_, err = fx.call(t, entity.MessageStartElementSelection, "")
	assert.EqualError(t, err, "no page")
}

func TestElementSelectedHandler(t *testing.T) {
	fx := newFixture()
	fx.executor.ep = &entity.Episode{
		ID:       "ep-1",
		Status:   entity.EpisodeStatusCompleted,
		Snapshot: &entity.Snapshot{Fields: make([]entity.Field, 2)},
		Pairs:    []entity.FillPair{{FieldID: 1, Selector: `select[name="country"]`, Value: "US"}},
	}

	out, err := fx.call(t, entity.MessageElementSelected, `{"elementHtml":"<form></form>","pageUrl":"https://x.test"}`)
	require.NoError(t, err)

	result := out.(EpisodeResult)
	assert.Equal(t, "ep-1", result.EpisodeID)
	assert.Equal(t, 2, result.Fields)
	assert.Equal(t, "US", result.Values[0].Value)
	assert.Equal(t, "https://x.test", fx.executor.got.PageURL)

	_, err = fx.call(t, entity.MessageElementSelected, `{}`)
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = fx.call(t, entity.MessageElementSelected, `not json`)
	assert.Error(t, err)
}

func TestAPIKeyHandlers(t *testing.T) {
	fx := newFixture()

	_, err := fx.call(t, entity.MessageSaveAPIKey, `{"name":"work","apiKey":"sk-abcdef1234","apiKeyProvider":"openai","select":true}`)
	require.NoError(t, err)

	out, err := fx.call(t, entity.MessageGetAPIKey, `{"name":"work"}`)
	require.NoError(t, err)
	key := out.(maskedKey)
	assert.Equal(t, "*********1234", key.APIKey)
	assert.Equal(t, entity.ProviderOpenAI, key.Provider)

	out, err = fx.call(t, entity.MessageGetAPIKey, `{"apiKeyProvider":"openai"}`)
	require.NoError(t, err)
	assert.Equal(t, "work", out.(maskedKey).Name)

	out, err = fx.call(t, entity.MessageGetAPIKey, ``)
	require.NoError(t, err)
	assert.Len(t, out.([]maskedKey), 1)

	_, err = fx.call(t, entity.MessageSaveAPIKey, `{"name":"work","apiKey":"x","apiKeyProvider":"openai"}`)
	assert.ErrorIs(t, err, settings.ErrAPIKeyExists)

	_, err = fx.call(t, entity.MessageDeleteAPIKey, `{"name":"work"}`)
	require.NoError(t, err)

	_, err = fx.call(t, entity.MessageGetAPIKey, `{"apiKeyProvider":"openai"}`)
	assert.ErrorIs(t, err, settings.ErrNoKeySelected)

	_, err = fx.call(t, entity.MessageDeleteAPIKey, `{}`)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestPromptAndModelHandlers(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	_, err := fx.call(t, entity.MessageSavePrompt, `{"name":"me","prompt":"John Doe","select":true}`)
	require.NoError(t, err)
	p, err := fx.settings.SelectedPrompt(ctx)
	require.NoError(t, err)
	assert.Equal(t, "John Doe", p.Prompt)

	_, err = fx.call(t, entity.MessageSelectPrompt, `{"name":"other"}`)
	assert.ErrorIs(t, err, settings.ErrPromptNotFound)

	_, err = fx.call(t, entity.MessageUpdatePrompt, `{"oldName":"me","name":"jane","prompt":"Jane Doe"}`)
	require.NoError(t, err)
	p, err = fx.settings.SelectedPrompt(ctx)
	require.NoError(t, err)
	assert.Equal(t, entity.Prompt{Name: "jane", Prompt: "Jane Doe"}, p)

	_, err = fx.call(t, entity.MessageUpdatePrompt, `{"oldName":"jane","prompt":"J. Doe"}`)
	require.NoError(t, err)
	p, err = fx.settings.SelectedPrompt(ctx)
	require.NoError(t, err)
	assert.Equal(t, "J. Doe", p.Prompt)

	_, err = fx.call(t, entity.MessageUpdatePrompt, `{"prompt":"x"}`)
	assert.ErrorIs(t, err, ErrMissingField)

	out, err := fx.call(t, entity.MessageSelectModel, `{"modelVersion":"o4-mini"}`)
	require.NoError(t, err)
	assert.Equal(t, "O4 Mini", out.(entity.Model).DisplayName)

	_, err = fx.call(t, entity.MessageSelectModel, `{"modelVersion":"gpt-1"}`)
	assert.ErrorIs(t, err, settings.ErrModelNotFound)
}

func TestStatusHandler(t *testing.T) {
	fx := newFixture()

	out, err := fx.call(t, entity.MessageStatus, "")
	require.NoError(t, err)
	status := out.(Status)
	assert.Equal(t, input.SelectionIdle, status.Selection)
	assert.Nil(t, status.SelectedModel)
	assert.Nil(t, status.LastEpisode)
	assert.Len(t, status.Models, len(settings.Catalog))

	require.NoError(t, fx.settings.SelectModel(context.Background(), "gpt-4o"))
	fx.executor.last = &entity.Episode{
		ID:     "ep-9",
		Status: entity.EpisodeStatusFailed,
		Error:  "no_fields: no input fields found",
	}

	out, err = fx.call(t, entity.MessageStatus, "")
	require.NoError(t, err)
	status = out.(Status)
	require.NotNil(t, status.SelectedModel)
	assert.Equal(t, "gpt-4o", status.SelectedModel.Version)
	require.NotNil(t, status.LastEpisode)
	assert.Equal(t, "ep-9", status.LastEpisode.ID)
}
