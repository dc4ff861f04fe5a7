package handlers

import (
	"strings"
	"testing"
)

func TestMarkdownRender(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "emphasis",
			source: "**bold** text",
			want:   "<strong>bold</strong>",
		},
		{
			name:   "fenced code",
			source: "```go\nfmt.Println(\"hi\")\n```",
			want:   "<pre",
		},
	}

	md := newMarkdown()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := md.render(tt.source)
			if err != nil {
				t.Fatalf("render() error = %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("render(%q) = %q, want it to contain %q", tt.source, got, tt.want)
			}
		})
	}
}

func TestMarkdownRenderDropsRawHTML(t *testing.T) {
	md := newMarkdown()
	got, err := md.render(`<script>alert("x")</script>`)
	if err != nil {
		t.Fatalf("render() error = %v", err)
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("render() = %q, raw HTML must not pass through", got)
	}
}
