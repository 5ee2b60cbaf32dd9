package models

// AppModel represents the UI state - only local UI concerns
type AppModel struct {
	Messages          []Message // Last snapshot received from the controller
	AssistantThinking bool      // Waiting for the first token
	IsWriting         bool      // Tokens are arriving
	Status            string    // Status bar text
	Failed            bool      // Last turn ended with an error
	Width             int       // Terminal width
	Height            int       // Terminal height
	ServerURL         string    // Relay the client talks to
}

// Busy reports whether a turn is in flight.
func (m AppModel) Busy() bool {
	return m.AssistantThinking || m.IsWriting
}
