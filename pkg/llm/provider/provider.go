// Package provider resolves the configured completion backend.
package provider

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/ene/pkg/llm"
	"github.com/papercomputeco/ene/pkg/llm/provider/ollama"
	"github.com/papercomputeco/ene/pkg/llm/provider/openai"
)

// Config selects and parameterizes a backend.
type Config struct {
	Provider string // "openai" or "ollama"
	Model    string
	APIKey   string
	BaseURL  string
}

// New resolves the configured backend.
//
// An empty provider with no API key returns (nil, nil): the capability is
// absent rather than misconfigured, and callers degrade per the
// unavailability contract. With an API key but no provider, openai is
// assumed.
func New(cfg Config) (llm.Completer, error) {
	name := strings.ToLower(cfg.Provider)
	if name == "" {
		if cfg.APIKey == "" {
			return nil, nil
		}
		name = "openai"
	}

	switch name {
	case "openai":
		if cfg.APIKey == "" {
			return nil, nil
		}
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com"
		}
		return openai.New(cfg.APIKey, model, baseURL), nil

	case "ollama":
		model := cfg.Model
		if model == "" {
			model = "llama3.2"
		}
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.New(model, baseURL), nil

	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
