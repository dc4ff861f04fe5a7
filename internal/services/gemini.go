package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/ferrywell/genchat-web-ui/internal/models"
	"google.golang.org/genai"
)

// Gemini provides an implementation of the LLM interface for the Gemini API.
// It is the default provider: the generation parameter surface (temperature,
// top-k, top-p, max output tokens) maps onto its GenerateContentConfig
// one-to-one.
type Gemini struct {
	model        string
	systemPrompt string
	params       GenerationParams

	client *genai.Client

	logger *slog.Logger
}

// NewGemini creates a Gemini instance from a runtime API key. Construction
// fails for an empty key or when the SDK rejects the client configuration,
// leaving no side effects.
func NewGemini(ctx context.Context, apiKey, model, systemPrompt string, params GenerationParams, logger *slog.Logger) (Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return Gemini{}, fmt.Errorf("api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return Gemini{}, fmt.Errorf("error creating client: %w", err)
	}

	return Gemini{
		model:        model,
		systemPrompt: systemPrompt,
		params:       params,
		client:       client,
		logger:       logger.With(slog.String("module", "gemini")),
	}, nil
}

func geminiContents(messages []models.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		if msg.Text == "" {
			continue
		}
		var role genai.Role = genai.RoleModel
		if msg.Sender == models.SenderUser {
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(msg.Text, role))
	}
	return contents
}

func (g Gemini) generateConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if g.systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(g.systemPrompt, genai.RoleUser)
	}
	if g.params.Temperature != nil {
		cfg.Temperature = genai.Ptr(*g.params.Temperature)
	}
	if g.params.TopK != nil {
		cfg.TopK = genai.Ptr(float32(*g.params.TopK))
	}
	if g.params.TopP != nil {
		cfg.TopP = genai.Ptr(*g.params.TopP)
	}
	if g.params.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = int32(g.params.MaxOutputTokens)
	}
	return cfg
}

// Chat streams responses from the Gemini API for the given conversation. It
// returns an iterator that yields response text fragments and potential
// errors; the response is streamed incrementally so callers can render
// partial output as it arrives.
func (g Gemini) Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		contents := geminiContents(messages)

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, g.generateConfig()) {
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				yield("", fmt.Errorf("error receiving response: %w", err))
				return
			}

			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}
