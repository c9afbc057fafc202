package settings

import "formfill/internal/domain/entity"

// Catalog is the static table of models the completion backends can serve.
var Catalog = []entity.Model{
	{DisplayName: "Claude Sonnet 4", Version: "claude-sonnet-4-20250514", Provider: entity.ProviderAnthropic},
	{DisplayName: "Claude Haiku", Version: "claude-3-5-haiku-20241022", Provider: entity.ProviderAnthropic},
	{DisplayName: "GPT-4o", Version: "gpt-4o", Provider: entity.ProviderOpenAI},
	{DisplayName: "O3 Mini", Version: "o3-mini", Provider: entity.ProviderOpenAI},
	{DisplayName: "O4 Mini", Version: "o4-mini", Provider: entity.ProviderOpenAI},
	{DisplayName: "Gemini 2.5 Pro", Version: "gemini-2.5-pro", Provider: entity.ProviderGoogle},
}

func ModelsByProvider(provider entity.Provider) []entity.Model {
	var models []entity.Model
	for _, m := range Catalog {
		if m.Provider == provider {
			models = append(models, m)
		}
	}
	return models
}

func LookupModel(version string) (entity.Model, bool) {
	for _, m := range Catalog {
		if m.Version == version {
			return m, true
		}
	}
	return entity.Model{}, false
}
