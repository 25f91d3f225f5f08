package models

// Request is one incoming natural-language request.
type Request struct {
	// ID uniquely identifies the request.
	ID string `json:"id"`
	// Text is the raw request text.
	Text string `json:"text"`
	// ConversationID links the request to a conversation, if any.
	ConversationID string `json:"conversation_id,omitempty"`
	// Context carries caller-supplied key/value context for parameter
	// resolution.
	Context map[string]any `json:"context,omitempty"`
}
