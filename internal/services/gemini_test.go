package services

import (
	"testing"

	"github.com/ferrywell/genchat-web-ui/internal/models"
	"google.golang.org/genai"
)

func TestGeminiContents(t *testing.T) {
	messages := []models.Message{
		{Sender: models.SenderAssistant, Text: "Welcome!"},
		{Sender: models.SenderUser, Text: "Hello"},
		{Sender: models.SenderAssistant, Text: ""},
	}

	contents := geminiContents(messages)
	if len(contents) != 2 {
		t.Fatalf("geminiContents() length = %d, want 2 (empty text skipped)", len(contents))
	}
	if contents[0].Role != string(genai.RoleModel) {
		t.Errorf("contents[0].Role = %q, want %q", contents[0].Role, genai.RoleModel)
	}
	if contents[1].Role != string(genai.RoleUser) {
		t.Errorf("contents[1].Role = %q, want %q", contents[1].Role, genai.RoleUser)
	}
	if got := contents[1].Parts[0].Text; got != "Hello" {
		t.Errorf("contents[1] text = %q, want %q", got, "Hello")
	}
}

func TestGeminiGenerateConfig(t *testing.T) {
	g := Gemini{
		systemPrompt: "be nice",
		params:       DefaultGenerationParams(),
	}

	cfg := g.generateConfig()
	if cfg.SystemInstruction == nil {
		t.Fatal("generateConfig() should carry the system instruction")
	}
	if cfg.Temperature == nil || *cfg.Temperature != 0.9 {
		t.Errorf("Temperature = %v, want 0.9", cfg.Temperature)
	}
	if cfg.TopK == nil || *cfg.TopK != 40 {
		t.Errorf("TopK = %v, want 40", cfg.TopK)
	}
	if cfg.TopP == nil || *cfg.TopP != 0.95 {
		t.Errorf("TopP = %v, want 0.95", cfg.TopP)
	}
	if cfg.MaxOutputTokens != 1024 {
		t.Errorf("MaxOutputTokens = %d, want 1024", cfg.MaxOutputTokens)
	}
}
