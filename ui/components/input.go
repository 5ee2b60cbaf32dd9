package components

import (
	"github.com/Rorical/streamchat/ui/styles"
)

func RenderInput(inputView string, width int) string {
	inputStyle := styles.InputStyle(width)
	return inputStyle.Render(inputView)
}
