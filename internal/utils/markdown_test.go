package utils

import (
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMarkdownStripsMarkup(t *testing.T) {
	out, err := RenderMarkdownWithError("# Title\n\nsome **bold** text", 60)
	require.NoError(t, err)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "bold")
	assert.NotContains(t, out, "**")
}

func TestRenderMarkdownEmpty(t *testing.T) {
	assert.Equal(t, "", RenderMarkdown("", 80))
	assert.Equal(t, "  ", RenderMarkdown("  ", 80))
}

func TestRenderMarkdownHandlesPartialInput(t *testing.T) {
	// Mid-stream text often ends inside an unterminated code fence.
	out := RenderMarkdown("Here:\n\n```go\nfunc main() {", 40)
	assert.Contains(t, ansi.Strip(out), "func main()")
}

func TestRenderMarkdownRebuildsOnWidthChange(t *testing.T) {
	RenderMarkdown("a", 40)
	assert.Equal(t, 40, mdRendererCache.width)
	RenderMarkdown("a", 70)
	assert.Equal(t, 70, mdRendererCache.width)
}
