package handlers

import (
	"strings"

	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// markdown converts chat text to HTML before it reaches the browser. Model
// output is markdown in practice, so fenced code blocks get syntax
// highlighting. Raw HTML in the source is dropped by the renderer, which also
// covers user-typed messages.
type markdown struct {
	md goldmark.Markdown
}

func newMarkdown() *markdown {
	return &markdown{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle("monokai"),
				),
			),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
			),
		),
	}
}

func (m *markdown) render(source string) (string, error) {
	var sb strings.Builder
	if err := m.md.Convert([]byte(source), &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}
