// Package models defines the shared domain types for switchboard:
// classified intents, complexity scores, routing decisions, flow
// definitions, and task plans.
package models

// IntentType classifies the broad category of a request.
type IntentType string

const (
	// IntentInformational indicates a request for information.
	IntentInformational IntentType = "INFORMATIONAL"
	// IntentTransactional indicates a request to perform an action.
	IntentTransactional IntentType = "TRANSACTIONAL"
	// IntentConversational indicates small talk or a social exchange.
	IntentConversational IntentType = "CONVERSATIONAL"
	// IntentAnalytical indicates a request requiring analysis or reasoning.
	IntentAnalytical IntentType = "ANALYTICAL"
)

// Valid returns true if the intent type is a known value.
func (t IntentType) Valid() bool {
	switch t {
	case IntentInformational, IntentTransactional, IntentConversational, IntentAnalytical:
		return true
	default:
		return false
	}
}

// Entity is a single extracted entity from a request.
type Entity struct {
	// Name is the entity label (e.g. "amount", "recipient").
	Name string `json:"name"`
	// Value is the raw extracted text.
	Value string `json:"value"`
}

// Intent is the classified interpretation of a request.
// It is produced once per request by the intent classifier and never
// mutated afterward.
type Intent struct {
	// Type is the broad category of the request.
	Type IntentType `json:"type"`
	// Domain is the business domain the request falls into (e.g. "banking").
	Domain string `json:"domain,omitempty"`
	// Entities lists extracted entities in the order they appear.
	Entities []Entity `json:"entities,omitempty"`
	// Confidence is the classifier's confidence in [0,1].
	Confidence float64 `json:"confidence"`
}

// Key returns the exact-match lookup key for flow matching, combining
// intent type and domain.
func (i Intent) Key() string {
	return string(i.Type) + ":" + i.Domain
}

// MemorySnapshot is a read-only view of prior conversation state,
// retrieved from the external memory subsystem before routing.
type MemorySnapshot struct {
	// ConversationID identifies the conversation the snapshot belongs to.
	ConversationID string `json:"conversation_id,omitempty"`
	// Items maps memory keys to retrieved values.
	Items map[string]any `json:"items,omitempty"`
	// Turns is the number of prior turns in the conversation.
	Turns int `json:"turns,omitempty"`
}

// Lookup returns the value for a memory key, or nil if absent.
func (m MemorySnapshot) Lookup(key string) any {
	if m.Items == nil {
		return nil
	}
	return m.Items[key]
}
