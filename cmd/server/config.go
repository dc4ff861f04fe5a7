package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ferrywell/genchat-web-ui/internal/services"
	"github.com/ferrywell/genchat-web-ui/internal/session"
	"gopkg.in/yaml.v3"
)

// llmConfig builds the provider factory the session controller uses to turn
// the browser-submitted credential into a client.
type llmConfig interface {
	factory(systemPrompt string, logger *slog.Logger) session.ProviderFactory
}

// BaseLLMConfig contains the common fields for all provider configurations.
// The credential itself is never part of the config; it only ever arrives
// from the browser form at runtime.
type BaseLLMConfig struct {
	Provider        string   `yaml:"provider"`
	Model           string   `yaml:"model"`
	Temperature     *float32 `yaml:"temperature"`
	TopK            *int     `yaml:"topK"`
	TopP            *float32 `yaml:"topP"`
	MaxOutputTokens int      `yaml:"maxOutputTokens"`
}

func (b BaseLLMConfig) params() services.GenerationParams {
	p := services.DefaultGenerationParams()
	if b.Temperature != nil {
		p.Temperature = b.Temperature
	}
	if b.TopK != nil {
		p.TopK = b.TopK
	}
	if b.TopP != nil {
		p.TopP = b.TopP
	}
	if b.MaxOutputTokens > 0 {
		p.MaxOutputTokens = b.MaxOutputTokens
	}
	return p
}

type config struct {
	Port           string    `yaml:"port"`
	SystemPrompt   string    `yaml:"systemPrompt"`
	WelcomeMessage string    `yaml:"welcomeMessage"`
	LLM            llmConfig `yaml:"llm"`
}

type geminiConfig struct {
	BaseLLMConfig `yaml:",inline"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
}

func defaultConfig() config {
	return config{
		Port: "8080",
		SystemPrompt: "You are a friendly assistant embedded in a small chat widget. " +
			"Answer concisely and helpfully.",
		WelcomeMessage: "Hello! Ask me anything and I'll answer as the response streams in.",
		LLM:            &geminiConfig{BaseLLMConfig{Provider: "gemini", Model: "gemini-2.0-flash"}},
	}
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port           string         `yaml:"port"`
		SystemPrompt   string         `yaml:"systemPrompt"`
		WelcomeMessage string         `yaml:"welcomeMessage"`
		LLM            map[string]any `yaml:"llm"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	def := defaultConfig()
	c.Port = rawConfig.Port
	if c.Port == "" {
		c.Port = def.Port
	}
	c.SystemPrompt = rawConfig.SystemPrompt
	if c.SystemPrompt == "" {
		c.SystemPrompt = def.SystemPrompt
	}
	c.WelcomeMessage = rawConfig.WelcomeMessage
	if c.WelcomeMessage == "" {
		c.WelcomeMessage = def.WelcomeMessage
	}

	if rawConfig.LLM == nil {
		c.LLM = def.LLM
		return nil
	}

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "gemini":
		llm = &geminiConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	case "openai":
		llm = &openAIConfig{}
	case "ollama":
		llm = &ollamaConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm
	return nil
}

func (g *geminiConfig) factory(systemPrompt string, logger *slog.Logger) session.ProviderFactory {
	model := g.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	params := g.params()
	return func(credential string) (session.LLM, error) {
		return services.NewGemini(context.Background(), credential, model, systemPrompt, params, logger)
	}
}

func (a *anthropicConfig) factory(systemPrompt string, _ *slog.Logger) session.ProviderFactory {
	model := a.Model
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	params := a.params()
	return func(credential string) (session.LLM, error) {
		return services.NewAnthropic(credential, model, systemPrompt, params)
	}
}

func (o *openAIConfig) factory(systemPrompt string, logger *slog.Logger) session.ProviderFactory {
	model := o.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	params := o.params()
	return func(credential string) (session.LLM, error) {
		return services.NewOpenAI(credential, model, systemPrompt, params, logger)
	}
}

// For ollama the browser-submitted credential is the server URL rather than
// an API key; a malformed URL is reported just like a bad key.
func (o *ollamaConfig) factory(systemPrompt string, _ *slog.Logger) session.ProviderFactory {
	model := o.Model
	if model == "" {
		model = "llama3.2"
	}
	params := o.params()
	return func(credential string) (session.LLM, error) {
		return services.NewOllama(credential, model, systemPrompt, params)
	}
}
