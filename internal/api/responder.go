package api

import (
	"context"
	"fmt"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

const responderSystemPrompt = `You answer user requests directly and concisely. No tool use is available; answer from general knowledge and the provided conversation memory.`

// Responder produces direct answers for requests that need no tools or
// decomposition.
type Responder struct {
	client *Client
}

// NewResponder creates a responder backed by the given client.
func NewResponder(client *Client) *Responder {
	return &Responder{client: client}
}

// Respond returns a direct answer to the request.
func (r *Responder) Respond(ctx context.Context, req models.Request, intent models.Intent, mem models.MemorySnapshot) (string, error) {
	prompt := req.Text
	if summary := memorySummary(mem); summary != "" {
		prompt = fmt.Sprintf("Conversation so far:\n%s\n\nRequest: %s", summary, req.Text)
	}

	text, err := r.client.complete(ctx, responderSystemPrompt, prompt, 2048)
	if err != nil {
		return "", fmt.Errorf("respond to request: %w", err)
	}
	return text, nil
}
