package entity

type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
	ProviderGoogle    Provider = "google"
)

var Providers = []Provider{ProviderAnthropic, ProviderOpenAI, ProviderGoogle}

func (p Provider) Valid() bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

type APIKey struct {
	Name     string   `json:"name" yaml:"name"`
	Provider Provider `json:"provider" yaml:"provider"`
	APIKey   string   `json:"apiKey" yaml:"api_key"`
}

type Prompt struct {
	Name   string `json:"name" yaml:"name"`
	Prompt string `json:"prompt" yaml:"prompt"`
}

type Model struct {
	DisplayName string   `json:"displayName"`
	Version     string   `json:"version"`
	Provider    Provider `json:"provider"`
}

// SettingsSeed is imported once at startup. Records that already exist are kept.
type SettingsSeed struct {
	APIKeys         []APIKey `yaml:"api_keys"`
	Prompts         []Prompt `yaml:"prompts"`
	SelectedAPIKeys []string `yaml:"selected_api_keys"`
	SelectedPrompt  string   `yaml:"selected_prompt"`
	SelectedModel   string   `yaml:"selected_model"`
}
