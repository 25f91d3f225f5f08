package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/switchboard-ai/switchboard/internal/collab"
	"github.com/switchboard-ai/switchboard/pkg/models"
)

const agentSystemPrompt = `You are %s, a sub-agent executing one step of a larger task.
Complete the step using the provided parameters.
If the step produces structured data, respond with a single JSON object; otherwise respond with plain text.`

// AgentInvoker executes AGENT_CALL steps by delegating to the model.
type AgentInvoker struct {
	client *Client
}

// NewAgentInvoker creates an invoker backed by the given client.
func NewAgentInvoker(client *Client) *AgentInvoker {
	return &AgentInvoker{client: client}
}

var _ collab.Invoker = (*AgentInvoker)(nil)

// Invoke runs a single agent step and returns its result. Structured
// JSON responses populate Output; anything else lands in Text.
func (a *AgentInvoker) Invoke(ctx context.Context, step *models.TaskStep, params map[string]any) (*models.StepResult, error) {
	name := step.Selection.Name
	if name == "" {
		name = "a general-purpose assistant"
	}

	paramJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode step parameters: %w", err)
	}

	system := fmt.Sprintf(agentSystemPrompt, name)
	prompt := fmt.Sprintf("Step: %s\nParameters:\n%s", step.Description, paramJSON)

	text, err := a.client.complete(ctx, system, prompt, 4096)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", collab.ErrUnavailable, err)
	}

	result := &models.StepResult{Text: text}
	if payload, err := extractJSON(text); err == nil {
		var output map[string]any
		if json.Unmarshal([]byte(payload), &output) == nil {
			result.Output = output
		}
	}
	return result, nil
}
