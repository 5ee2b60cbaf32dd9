package components

import (
	"strings"

	"github.com/Rorical/streamchat/internal/models"
	"github.com/Rorical/streamchat/internal/utils"
	"github.com/Rorical/streamchat/ui/styles"
)

// RenderMessages draws the conversation log. thinkingView replaces the body
// of an empty trailing assistant message while the first token is awaited.
func RenderMessages(messages []models.Message, width int, thinkingView string) string {
	var b strings.Builder

	systemStyle := styles.SystemStyle()
	userStyle := styles.UserStyle()
	assistantStyle := styles.AssistantStyle()
	labelStyle := styles.AssistantLabelStyle()
	contentWidth := max(width-6, 20)

	for i, msg := range messages {
		switch msg.Role {
		case models.System:
			b.WriteString(systemStyle.Render(msg.Text) + "\n\n")
		case models.Human:
			b.WriteString(userStyle.Width(contentWidth).Render("You: "+msg.Text) + "\n\n")
		case models.AI:
			body := utils.RenderMarkdown(msg.Text, contentWidth)
			if msg.Text == "" && i == len(messages)-1 {
				body = thinkingView
			}
			b.WriteString(assistantStyle.Render(labelStyle.Render("Assistant")+"\n"+body) + "\n\n")
		}
	}

	return b.String()
}
