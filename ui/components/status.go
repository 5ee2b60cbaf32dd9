package components

import (
	"github.com/Rorical/streamchat/ui/styles"
)

// RenderStatus draws the bottom bar. While a turn is in flight it shows the
// spinner and the stop hint.
func RenderStatus(status string, busy, failed bool, spinnerView string, width int) string {
	statusStyle := styles.StatusStyle(width)
	if failed {
		statusStyle = styles.ErrorStatusStyle(width)
	}

	content := status
	if busy {
		content = spinnerView + " " + status + "  " + styles.HintStyle().Render("esc: stop generating")
	} else {
		content += "  " + styles.HintStyle().Render("enter: send · ctrl+c: quit")
	}

	return statusStyle.Render(content)
}

func RenderHeader(title string, width int) string {
	return styles.HeaderStyle(width).Render(title)
}
