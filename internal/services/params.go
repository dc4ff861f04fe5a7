package services

// GenerationParams carries the fixed sampling configuration applied to every
// chat request. Nil fields fall back to the provider's own defaults; not
// every provider supports every knob (the OpenAI API has no top-k, for
// example) and unsupported ones are silently skipped.
type GenerationParams struct {
	Temperature     *float32
	TopK            *int
	TopP            *float32
	MaxOutputTokens int
}

// DefaultGenerationParams returns the chat-tuned defaults used when the
// config file does not override them.
func DefaultGenerationParams() GenerationParams {
	temp := float32(0.9)
	topK := 40
	topP := float32(0.95)
	return GenerationParams{
		Temperature:     &temp,
		TopK:            &topK,
		TopP:            &topP,
		MaxOutputTokens: 1024,
	}
}
