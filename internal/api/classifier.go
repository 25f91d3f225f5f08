package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/switchboard-ai/switchboard/internal/collab"
	"github.com/switchboard-ai/switchboard/pkg/models"
)

const classifierSystemPrompt = `You classify natural language requests for a request router.
Respond with a single JSON object and nothing else:
{
  "type": "INFORMATIONAL" | "TRANSACTIONAL" | "CONVERSATIONAL" | "ANALYTICAL",
  "domain": "<lowercase domain, e.g. banking, support, general>",
  "entities": [{"name": "<entity name>", "value": "<entity value>"}],
  "confidence": <0.0-1.0>
}`

// IntentClassifier extracts structured intents using the Anthropic API.
type IntentClassifier struct {
	client *Client
}

// NewIntentClassifier creates a classifier backed by the given client.
func NewIntentClassifier(client *Client) *IntentClassifier {
	return &IntentClassifier{client: client}
}

var _ collab.Classifier = (*IntentClassifier)(nil)

// Classify sends the request text to the model and parses the intent
// from its JSON response.
func (c *IntentClassifier) Classify(ctx context.Context, text string, mem models.MemorySnapshot) (models.Intent, error) {
	prompt := text
	if summary := memorySummary(mem); summary != "" {
		prompt = fmt.Sprintf("Conversation so far:\n%s\n\nRequest: %s", summary, text)
	}

	raw, err := c.client.complete(ctx, classifierSystemPrompt, prompt, 1024)
	if err != nil {
		return models.Intent{}, fmt.Errorf("classify request: %w", err)
	}

	payload, err := extractJSON(raw)
	if err != nil {
		return models.Intent{}, fmt.Errorf("classify request: %w", err)
	}

	var parsed struct {
		Type       string          `json:"type"`
		Domain     string          `json:"domain"`
		Entities   []models.Entity `json:"entities"`
		Confidence float64         `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return models.Intent{}, fmt.Errorf("parse classification: %w", err)
	}

	intent := models.Intent{
		Type:       models.IntentType(strings.ToUpper(parsed.Type)),
		Domain:     strings.ToLower(parsed.Domain),
		Entities:   parsed.Entities,
		Confidence: parsed.Confidence,
	}
	if !intent.Type.Valid() {
		return models.Intent{}, fmt.Errorf("parse classification: unknown intent type %q", parsed.Type)
	}
	return intent, nil
}

// memorySummary renders a compact view of conversation memory for
// inclusion in prompts.
func memorySummary(mem models.MemorySnapshot) string {
	if len(mem.Items) == 0 && mem.Turns == 0 {
		return ""
	}
	var sb strings.Builder
	if mem.Turns > 0 {
		fmt.Fprintf(&sb, "turns: %d\n", mem.Turns)
	}
	for k, v := range mem.Items {
		fmt.Fprintf(&sb, "%s: %v\n", k, v)
	}
	return strings.TrimSpace(sb.String())
}
