package models

import "fmt"

// Role identifies who authored a message.
type Role string

const (
	Human  Role = "human"
	AI     Role = "ai"
	System Role = "system"
)

// ParseRole validates a wire role name.
func ParseRole(name string) (Role, error) {
	switch r := Role(name); r {
	case Human, AI, System:
		return r, nil
	default:
		return "", fmt.Errorf("unrecognized role %q", name)
	}
}

// Message is one entry of the conversation log. On the wire the role is
// carried in the "name" field.
type Message struct {
	Role Role   `json:"name"`
	Text string `json:"text"`
}

// ChatRequest is the body of POST /api.
type ChatRequest struct {
	Messages []WireMessage `json:"messages"`
	Prompt   string        `json:"prompt"`
}

// WireMessage keeps the role as an unchecked string so the relay can reject
// the whole request when any entry carries an unknown role.
type WireMessage struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// NewChatRequest converts a validated history into its wire form.
func NewChatRequest(history []Message, prompt string) ChatRequest {
	wire := make([]WireMessage, len(history))
	for i, msg := range history {
		wire[i] = WireMessage{Name: string(msg.Role), Text: msg.Text}
	}
	return ChatRequest{Messages: wire, Prompt: prompt}
}

// History maps the wire messages back to typed messages, failing on the
// first entry whose role is not human, ai or system.
func (r ChatRequest) History() ([]Message, error) {
	history := make([]Message, 0, len(r.Messages))
	for i, wm := range r.Messages {
		role, err := ParseRole(wm.Name)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		history = append(history, Message{Role: role, Text: wm.Text})
	}
	return history, nil
}
