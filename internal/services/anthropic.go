package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"

	"github.com/ferrywell/genchat-web-ui/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Anthropic provides an interface to the Anthropic API for large language
// model interactions. It implements the LLM interface and handles streaming
// chat completions using Claude models.
type Anthropic struct {
	apiKey       string
	model        string
	systemPrompt string
	params       GenerationParams

	client *http.Client
}

type anthropicChatRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
	TopK        *int               `json:"top_k,omitempty"`
	TopP        *float32           `json:"top_p,omitempty"`
	Stream      bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicStreamResponse struct {
	Type  string `json:"type"`
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

const anthropicAPIEndpoint = "https://api.anthropic.com/v1"

// NewAnthropic creates an Anthropic instance from a runtime API key.
// Construction fails for an empty key.
func NewAnthropic(apiKey, model, systemPrompt string, params GenerationParams) (Anthropic, error) {
	if strings.TrimSpace(apiKey) == "" {
		return Anthropic{}, fmt.Errorf("api key is required")
	}

	return Anthropic{
		apiKey:       apiKey,
		model:        model,
		systemPrompt: systemPrompt,
		params:       params,
		client:       &http.Client{},
	}, nil
}

func anthropicMessages(messages []models.Message) []anthropicMessage {
	msgs := make([]anthropicMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Text == "" {
			continue
		}
		msgs = append(msgs, anthropicMessage{
			Role:    string(msg.Sender),
			Content: msg.Text,
		})
	}
	return msgs
}

// Chat streams responses from the Anthropic API for the given conversation.
// It returns an iterator that yields response text fragments and potential
// errors. The context can be used to cancel ongoing requests.
func (a Anthropic) Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		maxTokens := a.params.MaxOutputTokens
		if maxTokens <= 0 {
			maxTokens = 1024
		}
		reqBody := anthropicChatRequest{
			Model:       a.model,
			Messages:    anthropicMessages(messages),
			System:      a.systemPrompt,
			MaxTokens:   maxTokens,
			Temperature: a.params.Temperature,
			TopK:        a.params.TopK,
			TopP:        a.params.TopP,
			Stream:      true,
		}

		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			yield("", fmt.Errorf("error marshaling request: %w", err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			anthropicAPIEndpoint+"/messages", bytes.NewBuffer(jsonBody))
		if err != nil {
			yield("", fmt.Errorf("error creating request: %w", err))
			return
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-api-key", a.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")

		resp, err := a.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer resp.Body.Close()

		for ev, err := range sse.Read(resp.Body, nil) {
			if err != nil {
				yield("", fmt.Errorf("error reading response: %w", err))
				return
			}
			switch ev.Type {
			case "error":
				var e anthropicError
				if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
					yield("", fmt.Errorf("error unmarshaling error: %w", err))
					return
				}
				yield("", fmt.Errorf("anthropic error %s: %s", e.Error.Type, e.Error.Message))
				return
			case "message_stop":
				return
			case "content_block_delta":
				var res anthropicStreamResponse
				if err := json.Unmarshal([]byte(ev.Data), &res); err != nil {
					yield("", fmt.Errorf("error unmarshaling response: %w", err))
					return
				}
				if !yield(res.Delta.Text, nil) {
					return
				}
			default:
				continue
			}
		}
	}
}
