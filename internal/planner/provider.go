package planner

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Supported vision model providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
	ProviderMistral   = "mistral"
)

// ProviderConfig selects and authenticates the vision model.
type ProviderConfig struct {
	Provider string
	Model    string
	// APIKey falls back to the provider's usual environment variable.
	APIKey string
	// BaseURL overrides the provider endpoint (Ollama host, OpenAI-compatible proxy).
	BaseURL string
}

// NewModel creates the langchaingo client for cfg.
func NewModel(cfg ProviderConfig) (llms.Model, error) {
	logger := log.WithFields(logrus.Fields{
		"provider": cfg.Provider,
		"model":    cfg.Model,
	})
	logger.Info("Creating vision model client")

	var model llms.Model
	var err error

	switch strings.ToLower(cfg.Provider) {
	case ProviderAnthropic:
		model, err = createAnthropicClient(cfg)
	case ProviderOpenAI:
		model, err = createOpenAIClient(cfg)
	case ProviderOllama:
		model, err = createOllamaClient(cfg)
	case ProviderMistral:
		model, err = createMistralClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported vision model provider: %s", cfg.Provider)
	}

	if err != nil {
		logger.WithError(err).Error("Failed to create vision model client")
		return nil, fmt.Errorf("error creating vision model client: %w", err)
	}
	return model, nil
}

func apiKey(cfg ProviderConfig, env string) (string, error) {
	if cfg.APIKey != "" {
		return cfg.APIKey, nil
	}
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s API key is not set (%s)", cfg.Provider, env)
}

func createAnthropicClient(cfg ProviderConfig) (llms.Model, error) {
	key, err := apiKey(cfg, "ANTHROPIC_API_KEY")
	if err != nil {
		return nil, err
	}
	opts := []anthropic.Option{
		anthropic.WithModel(cfg.Model),
		anthropic.WithToken(key),
		anthropic.WithHTTPClient(NewHTTPClient()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	return anthropic.New(opts...)
}

func createOpenAIClient(cfg ProviderConfig) (llms.Model, error) {
	key, err := apiKey(cfg, "OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(key),
		openai.WithHTTPClient(NewHTTPClient()),
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	return openai.New(opts...)
}

func createOllamaClient(cfg ProviderConfig) (llms.Model, error) {
	host := cfg.BaseURL
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	return ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(host),
		ollama.WithHTTPClient(NewHTTPClient()),
	)
}

func createMistralClient(cfg ProviderConfig) (llms.Model, error) {
	key, err := apiKey(cfg, "MISTRAL_API_KEY")
	if err != nil {
		return nil, err
	}
	opts := []mistral.Option{
		mistral.WithModel(cfg.Model),
		mistral.WithAPIKey(key),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, mistral.WithEndpoint(cfg.BaseURL))
	}
	return mistral.New(opts...)
}

// usesImageURL reports whether the provider expects images as data URLs
// rather than binary parts.
func usesImageURL(provider string) bool {
	switch strings.ToLower(provider) {
	case ProviderOpenAI, ProviderMistral:
		return true
	default:
		return false
	}
}
