package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"
	"strings"

	"github.com/ferrywell/genchat-web-ui/internal/models"
	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI provides an implementation of the LLM interface for interacting with
// OpenAI's language models.
type OpenAI struct {
	model        string
	systemPrompt string
	params       GenerationParams

	client *goopenai.Client

	logger *slog.Logger
}

// NewOpenAI creates an OpenAI instance from a runtime API key. Construction
// fails for an empty key. The top-k parameter is not part of the OpenAI API
// and is skipped.
func NewOpenAI(apiKey, model, systemPrompt string, params GenerationParams, logger *slog.Logger) (OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return OpenAI{}, fmt.Errorf("api key is required")
	}

	return OpenAI{
		model:        model,
		systemPrompt: systemPrompt,
		params:       params,
		client:       goopenai.NewClient(apiKey),
		logger:       logger.With(slog.String("module", "openai")),
	}, nil
}

func openAIMessages(messages []models.Message) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Text == "" {
			continue
		}
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    string(msg.Sender),
			Content: msg.Text,
		})
	}
	return msgs
}

func (o OpenAI) chatRequest(messages []goopenai.ChatCompletionMessage) goopenai.ChatCompletionRequest {
	req := goopenai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   true,
	}

	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.TopP != nil {
		req.TopP = *o.params.TopP
	}
	if o.params.MaxOutputTokens > 0 {
		req.MaxTokens = o.params.MaxOutputTokens
	}

	return req
}

// Chat is a wrapper around the OpenAI chat completion streaming API.
func (o OpenAI) Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		msgs := openAIMessages(messages)
		if o.systemPrompt != "" {
			msgs = slices.Insert(msgs, 0, goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleSystem,
				Content: o.systemPrompt,
			})
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stream, err := o.client.CreateChatCompletionStream(ctx, o.chatRequest(msgs))
		if err != nil {
			yield("", fmt.Errorf("error sending request: %w", err))
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				if errors.Is(err, context.Canceled) {
					return
				}
				yield("", fmt.Errorf("error receiving response: %w", err))
				return
			}

			if len(response.Choices) == 0 {
				continue
			}

			delta := response.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if !yield(delta, nil) {
				return
			}
		}
	}
}
