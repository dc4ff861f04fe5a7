package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"slices"

	"github.com/ferrywell/genchat-web-ui/internal/models"
	"github.com/ollama/ollama/api"
)

// Ollama provides an implementation of the LLM interface for a self-hosted
// Ollama server. The runtime credential is the server URL rather than an API
// key; a malformed URL is the construction-failure path.
type Ollama struct {
	host         string
	model        string
	systemPrompt string
	params       GenerationParams

	client *api.Client
}

// NewOllama creates an Ollama instance pointing at the given server URL.
func NewOllama(host, model, systemPrompt string, params GenerationParams) (Ollama, error) {
	u, err := url.ParseRequestURI(host)
	if err != nil {
		return Ollama{}, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Ollama{}, fmt.Errorf("invalid server url: %q", host)
	}

	return Ollama{
		host:         host,
		model:        model,
		systemPrompt: systemPrompt,
		params:       params,
		client:       api.NewClient(u, &http.Client{}),
	}, nil
}

func (o Ollama) chatOptions() map[string]any {
	opts := map[string]any{}
	if o.params.Temperature != nil {
		opts["temperature"] = *o.params.Temperature
	}
	if o.params.TopK != nil {
		opts["top_k"] = *o.params.TopK
	}
	if o.params.TopP != nil {
		opts["top_p"] = *o.params.TopP
	}
	if o.params.MaxOutputTokens > 0 {
		opts["num_predict"] = o.params.MaxOutputTokens
	}
	return opts
}

// Chat implements the LLM interface by streaming responses from the Ollama
// model. The response is streamed incrementally, allowing for real-time
// rendering of model output.
func (o Ollama) Chat(ctx context.Context, messages []models.Message) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		msgs := make([]api.Message, 0, len(messages)+1)
		for _, msg := range messages {
			if msg.Text == "" {
				continue
			}
			msgs = append(msgs, api.Message{
				Role:    string(msg.Sender),
				Content: msg.Text,
			})
		}
		if o.systemPrompt != "" {
			msgs = slices.Insert(msgs, 0, api.Message{
				Role:    "system",
				Content: o.systemPrompt,
			})
		}

		stream := true
		req := api.ChatRequest{
			Model:    o.model,
			Messages: msgs,
			Stream:   &stream,
			Options:  o.chatOptions(),
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		stopped := false
		if err := o.client.Chat(ctx, &req, func(res api.ChatResponse) error {
			if stopped || res.Message.Content == "" {
				return nil
			}
			if !yield(res.Message.Content, nil) {
				stopped = true
				cancel()
			}
			return nil
		}); err != nil {
			if stopped || errors.Is(err, context.Canceled) {
				return
			}
			yield("", fmt.Errorf("error sending request: %w", err))
		}
	}
}
