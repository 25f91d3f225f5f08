package collab

import (
	"context"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

// RuleSelector picks collaborators by step type: tool-ish steps go to
// tools, everything else to agents. Names default to the step ID so
// invokers can dispatch without extra configuration.
type RuleSelector struct{}

var _ Selector = RuleSelector{}

// Select assigns a collaborator to the step.
func (RuleSelector) Select(_ context.Context, step *models.TaskStep) (models.CollaboratorSelection, error) {
	kind := models.CollaboratorAgent
	switch step.Type {
	case models.StepTypeToolCall, models.StepTypeDataTransform, models.StepTypeValidation:
		kind = models.CollaboratorTool
	}
	return models.CollaboratorSelection{Kind: kind, Name: step.StepID}, nil
}
