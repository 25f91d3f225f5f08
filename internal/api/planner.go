package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/switchboard-ai/switchboard/internal/collab"
	"github.com/switchboard-ai/switchboard/pkg/models"
)

const plannerSystemPrompt = `You break a complex request into executable subtasks for a task scheduler.
Respond with a single JSON array and nothing else. Each element:
{
  "id": "<short_snake_case_id>",
  "description": "<what the subtask does>",
  "type": "TOOL_CALL" | "AGENT_CALL" | "DECISION" | "DATA_TRANSFORM" | "VALIDATION",
  "depends_on": ["<ids of subtasks that must complete first>"],
  "condition": "<optional: prior_subtask_id.field that must be truthy>",
  "critical": <true if the request fails without this subtask>,
  "run_on_failure": <true only for cleanup that runs when earlier subtasks fail>
}
Rules:
- IDs must be unique and every depends_on entry must name another subtask.
- Never create circular dependencies.
- Subtasks with no ordering constraint between them should not depend on each other.`

// TaskPlanner produces subtask breakdowns using the Anthropic API.
type TaskPlanner struct {
	client *Client
}

// NewTaskPlanner creates a planner backed by the given client.
func NewTaskPlanner(client *Client) *TaskPlanner {
	return &TaskPlanner{client: client}
}

var _ collab.Planner = (*TaskPlanner)(nil)

// Plan asks the model for a subtask breakdown of the request.
func (p *TaskPlanner) Plan(ctx context.Context, req models.Request, intent models.Intent, mem models.MemorySnapshot) ([]collab.SubTask, error) {
	prompt := fmt.Sprintf("Request: %s\nIntent: %s in domain %s", req.Text, intent.Type, intent.Domain)
	if summary := memorySummary(mem); summary != "" {
		prompt += "\nConversation memory:\n" + summary
	}

	raw, err := p.client.complete(ctx, plannerSystemPrompt, prompt, 4096)
	if err != nil {
		return nil, fmt.Errorf("plan request: %w", err)
	}

	payload, err := extractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("plan request: %w", err)
	}

	var subtasks []collab.SubTask
	if err := json.Unmarshal([]byte(payload), &subtasks); err != nil {
		return nil, fmt.Errorf("parse breakdown: %w", err)
	}
	return subtasks, nil
}
