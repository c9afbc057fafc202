// Package settings manages API keys, saved prompts and the model selection on
// top of a plain key/value store.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"formfill/internal/application/port/output"
	"formfill/internal/domain/entity"
)

const (
	KeyAPIKeys           = "apiKeys"
	KeyPrompts           = "prompts"
	KeySelectedModel     = "selectedModel"
	KeySelectedPrompt    = "selectedPrompt"
	keySelectedAPIKeyFmt = "selectedApiKey:%s"
)

var (
	ErrAPIKeyExists      = errors.New("api key already exists")
	ErrAPIKeyNotFound    = errors.New("api key not found")
	ErrPromptExists      = errors.New("prompt already exists")
	ErrPromptNotFound    = errors.New("prompt not found")
	ErrModelNotFound     = errors.New("model not found")
	ErrInvalidProvider   = errors.New("unknown provider")
	ErrNoKeySelected     = errors.New("no api key selected")
	ErrNoPromptSelected  = errors.New("no prompt selected")
	ErrNoModelSelected   = errors.New("no model selected")
	ErrEmptyName         = errors.New("name is required")
	ErrEmptyPromptText   = errors.New("prompt text is required")
	ErrEmptyAPIKeyString = errors.New("api key is required")
)

func SelectedAPIKeyKey(provider entity.Provider) string {
	return fmt.Sprintf(keySelectedAPIKeyFmt, provider)
}

// Service serializes read-modify-write cycles of this process. Writers in other
// processes sharing the store still race with last write wins.
type Service struct {
	store  output.SettingsPort
	logger output.LoggerPort
	mu     sync.Mutex
}

func NewService(store output.SettingsPort, logger output.LoggerPort) *Service {
	return &Service{
		store:  store,
		logger: logger.WithField("component", "settings"),
	}
}

// API keys

func (s *Service) SaveAPIKey(ctx context.Context, key entity.APIKey) error {
	key.Name = strings.TrimSpace(key.Name)
	if key.Name == "" {
		return ErrEmptyName
	}
	if key.APIKey == "" {
		return ErrEmptyAPIKeyString
	}
	if !key.Provider.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidProvider, key.Provider)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.listAPIKeys(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k.Name == key.Name {
			return fmt.Errorf("%w: %q", ErrAPIKeyExists, key.Name)
		}
	}
	keys = append(keys, key)
	if err := s.putJSON(ctx, KeyAPIKeys, keys); err != nil {
		return err
	}
	s.logger.Info("API key saved", "name", key.Name, "provider", key.Provider)
	return nil
}

// DeleteAPIKey removes the key and clears any selection that pointed at it.
func (s *Service) DeleteAPIKey(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.listAPIKeys(ctx)
	if err != nil {
		return err
	}

	var removed *entity.APIKey
	kept := keys[:0]
	for i := range keys {
		if keys[i].Name == name {
			k := keys[i]
			removed = &k
			continue
		}
		kept = append(kept, keys[i])
	}
	if removed == nil {
		return fmt.Errorf("%w: %q", ErrAPIKeyNotFound, name)
	}
	if err := s.putJSON(ctx, KeyAPIKeys, kept); err != nil {
		return err
	}

	pointer := SelectedAPIKeyKey(removed.Provider)
	selected, ok, err := s.store.Get(ctx, pointer)
	if err != nil {
		return fmt.Errorf("read %s: %w", pointer, err)
	}
	if ok && selected == name {
		if err := s.store.Remove(ctx, pointer); err != nil {
			return fmt.Errorf("clear %s: %w", pointer, err)
		}
	}

	s.logger.Info("API key deleted", "name", name)
	return nil
}

func (s *Service) ListAPIKeys(ctx context.Context) ([]entity.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listAPIKeys(ctx)
}

func (s *Service) APIKey(ctx context.Context, name string) (entity.APIKey, error) {
	keys, err := s.ListAPIKeys(ctx)
	if err != nil {
		return entity.APIKey{}, err
	}
	for _, k := range keys {
		if k.Name == name {
			return k, nil
		}
	}
	return entity.APIKey{}, fmt.Errorf("%w: %q", ErrAPIKeyNotFound, name)
}

// SelectAPIKey makes name the active key for its provider.
func (s *Service) SelectAPIKey(ctx context.Context, name string) error {
	key, err := s.APIKey(ctx, name)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, SelectedAPIKeyKey(key.Provider), key.Name)
}

// SelectedAPIKey returns the selected key for provider. Without an explicit
// selection the first saved key of that provider is used.
func (s *Service) SelectedAPIKey(ctx context.Context, provider entity.Provider) (entity.APIKey, error) {
	name, ok, err := s.store.Get(ctx, SelectedAPIKeyKey(provider))
	if err != nil {
		return entity.APIKey{}, fmt.Errorf("read selected api key: %w", err)
	}
	if ok && name != "" {
		return s.APIKey(ctx, name)
	}

	keys, err := s.ListAPIKeys(ctx)
	if err != nil {
		return entity.APIKey{}, err
	}
	for _, k := range keys {
		if k.Provider == provider {
			return k, nil
		}
	}
	return entity.APIKey{}, fmt.Errorf("%w for %s", ErrNoKeySelected, provider)
}

// Prompts

func (s *Service) SavePrompt(ctx context.Context, p entity.Prompt) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(p.Prompt) == "" {
		return ErrEmptyPromptText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prompts, err := s.listPrompts(ctx)
	if err != nil {
		return err
	}
	for _, existing := range prompts {
		if existing.Name == p.Name {
			return fmt.Errorf("%w: %q", ErrPromptExists, p.Name)
		}
	}
	prompts = append(prompts, p)
	if err := s.putJSON(ctx, KeyPrompts, prompts); err != nil {
		return err
	}
	s.logger.Info("Prompt saved", "name", p.Name)
	return nil
}

// UpdatePrompt replaces the prompt called oldName with newName and text. A rename
// keeps the prompt's position and moves the selection along with it.
func (s *Service) UpdatePrompt(ctx context.Context, oldName, newName, text string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyPromptText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prompts, err := s.listPrompts(ctx)
	if err != nil {
		return err
	}

	idx := -1
	for i := range prompts {
		switch prompts[i].Name {
		case oldName:
			idx = i
		case newName:
			return fmt.Errorf("%w: %q", ErrPromptExists, newName)
		}
	}
	if idx == -1 {
		return fmt.Errorf("%w: %q", ErrPromptNotFound, oldName)
	}

	prompts[idx] = entity.Prompt{Name: newName, Prompt: text}
	if err := s.putJSON(ctx, KeyPrompts, prompts); err != nil {
		return err
	}
	if newName == oldName {
		return nil
	}

	selected, ok, err := s.store.Get(ctx, KeySelectedPrompt)
	if err != nil {
		return fmt.Errorf("read %s: %w", KeySelectedPrompt, err)
	}
	if ok && selected == oldName {
		if err := s.store.Set(ctx, KeySelectedPrompt, newName); err != nil {
			return fmt.Errorf("write %s: %w", KeySelectedPrompt, err)
		}
	}
	s.logger.Info("Prompt renamed", "from", oldName, "to", newName)
	return nil
}

func (s *Service) DeletePrompt(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prompts, err := s.listPrompts(ctx)
	if err != nil {
		return err
	}

	found := false
	kept := prompts[:0]
	for _, p := range prompts {
		if p.Name == name {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return fmt.Errorf("%w: %q", ErrPromptNotFound, name)
	}
	if err := s.putJSON(ctx, KeyPrompts, kept); err != nil {
		return err
	}

	selected, ok, err := s.store.Get(ctx, KeySelectedPrompt)
	if err != nil {
		return fmt.Errorf("read %s: %w", KeySelectedPrompt, err)
	}
	if ok && selected == name {
		if err := s.store.Remove(ctx, KeySelectedPrompt); err != nil {
			return fmt.Errorf("clear %s: %w", KeySelectedPrompt, err)
		}
	}
	return nil
}

func (s *Service) ListPrompts(ctx context.Context) ([]entity.Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listPrompts(ctx)
}

func (s *Service) Prompt(ctx context.Context, name string) (entity.Prompt, error) {
	prompts, err := s.ListPrompts(ctx)
	if err != nil {
		return entity.Prompt{}, err
	}
	for _, p := range prompts {
		if p.Name == name {
			return p, nil
		}
	}
	return entity.Prompt{}, fmt.Errorf("%w: %q", ErrPromptNotFound, name)
}

func (s *Service) SelectPrompt(ctx context.Context, name string) error {
	if _, err := s.Prompt(ctx, name); err != nil {
		return err
	}
	return s.store.Set(ctx, KeySelectedPrompt, name)
}

func (s *Service) SelectedPrompt(ctx context.Context) (entity.Prompt, error) {
	name, ok, err := s.store.Get(ctx, KeySelectedPrompt)
	if err != nil {
		return entity.Prompt{}, fmt.Errorf("read selected prompt: %w", err)
	}
	if !ok || name == "" {
		return entity.Prompt{}, ErrNoPromptSelected
	}
	return s.Prompt(ctx, name)
}

// Models

func (s *Service) SelectModel(ctx context.Context, version string) error {
	if _, ok := LookupModel(version); !ok {
		return fmt.Errorf("%w: %q", ErrModelNotFound, version)
	}
	return s.store.Set(ctx, KeySelectedModel, version)
}

func (s *Service) SelectedModel(ctx context.Context) (entity.Model, error) {
	version, ok, err := s.store.Get(ctx, KeySelectedModel)
	if err != nil {
		return entity.Model{}, fmt.Errorf("read selected model: %w", err)
	}
	if !ok || version == "" {
		return entity.Model{}, ErrNoModelSelected
	}
	model, found := LookupModel(version)
	if !found {
		return entity.Model{}, fmt.Errorf("%w: %q", ErrModelNotFound, version)
	}
	return model, nil
}

func (s *Service) listAPIKeys(ctx context.Context) ([]entity.APIKey, error) {
	var keys []entity.APIKey
	if err := s.getJSON(ctx, KeyAPIKeys, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Service) listPrompts(ctx context.Context) ([]entity.Prompt, error) {
	var prompts []entity.Prompt
	if err := s.getJSON(ctx, KeyPrompts, &prompts); err != nil {
		return nil, err
	}
	return prompts, nil
}

func (s *Service) getJSON(ctx context.Context, key string, v any) error {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Service) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.store.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// MaskAPIKey keeps the last four characters of a secret.
func MaskAPIKey(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

// ApplySeed imports seed records. Existing names are left untouched and
// selections are only made when the seed names them.
func (s *Service) ApplySeed(ctx context.Context, seed entity.SettingsSeed) error {
	for _, k := range seed.APIKeys {
		if err := s.SaveAPIKey(ctx, k); err != nil && !errors.Is(err, ErrAPIKeyExists) {
			return fmt.Errorf("seed api key %q: %w", k.Name, err)
		}
	}
	for _, p := range seed.Prompts {
		if err := s.SavePrompt(ctx, p); err != nil && !errors.Is(err, ErrPromptExists) {
			return fmt.Errorf("seed prompt %q: %w", p.Name, err)
		}
	}
	for _, name := range seed.SelectedAPIKeys {
		if err := s.SelectAPIKey(ctx, name); err != nil {
			return fmt.Errorf("seed selected api key: %w", err)
		}
	}
	if seed.SelectedPrompt != "" {
		if err := s.SelectPrompt(ctx, seed.SelectedPrompt); err != nil {
			return fmt.Errorf("seed selected prompt: %w", err)
		}
	}
	if seed.SelectedModel != "" {
		if err := s.SelectModel(ctx, seed.SelectedModel); err != nil {
			return fmt.Errorf("seed selected model: %w", err)
		}
	}
	s.logger.Info("Settings seed applied",
		"api_keys", len(seed.APIKeys),
		"prompts", len(seed.Prompts))
	return nil
}
