package utils

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Streaming re-renders the assistant message on every chunk, so the renderer
// is kept between calls and rebuilt only when the width changes.
var mdRendererCache struct {
	sync.Mutex
	renderer *glamour.TermRenderer
	width    int
}

// RenderMarkdown renders text for a terminal of the given width. On error the
// text is returned unchanged.
func RenderMarkdown(text string, width int) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	rendered, err := RenderMarkdownWithError(text, width)
	if err != nil {
		return text
	}
	return rendered
}

func RenderMarkdownWithError(text string, width int) (string, error) {
	if width < 20 {
		width = 20
	}

	mdRendererCache.Lock()
	defer mdRendererCache.Unlock()

	if mdRendererCache.renderer == nil || mdRendererCache.width != width {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return "", err
		}
		mdRendererCache.renderer = renderer
		mdRendererCache.width = width
	}

	rendered, err := mdRendererCache.renderer.Render(text)
	if err != nil {
		return "", err
	}
	return strings.Trim(rendered, "\n"), nil
}
