package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/switchboard-ai/switchboard/internal/orchestrator"
	"github.com/switchboard-ai/switchboard/pkg/models"
)

var runConversationID string

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Route and execute a request",
	Long: `Route a natural language request and execute it on the selected
path. Prints the answer, the routing decision, and per-step outcomes
for plan-backed paths.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, cleanup, err := buildApp()
		if err != nil {
			return err
		}
		defer cleanup()

		req := models.Request{
			Text:           strings.Join(args, " "),
			ConversationID: runConversationID,
		}

		resp, err := application.engine.Handle(context.Background(), req)
		if err != nil {
			return err
		}

		printDecision(resp.Decision)
		if resp.Result != nil {
			printPlanOutcome(resp)
		}

		fmt.Println()
		fmt.Println(resp.Text)
		fmt.Printf("\n%s %s in %s\n", color.HiBlackString("handled"),
			color.CyanString(string(resp.Metadata.ExecutionPath)), resp.Metadata.Duration.Round(time.Millisecond))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runConversationID, "conversation", "", "Conversation ID for memory retrieval")
}

func printDecision(d models.RoutingDecision) {
	fmt.Printf("%s %s (confidence %.2f)\n", color.HiBlackString("path:"),
		pathColor(d.Path), d.Confidence)
	if d.Reasoning != "" {
		fmt.Printf("%s %s\n", color.HiBlackString("why: "), d.Reasoning)
	}
}

func printPlanOutcome(resp *orchestrator.Response) {
	for _, step := range resp.Plan.Steps {
		marker := statusMarker(step.Status)
		fmt.Printf("  %s %s", marker, step.StepID)
		if step.Error != "" {
			fmt.Printf("  %s", color.RedString(step.Error))
		}
		fmt.Println()
	}
	if resp.Result.Status != models.PlanStatusCompleted {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.YellowString("plan:"), resp.Result.Reasoning)
	}
}

func pathColor(p models.ExecutionPath) string {
	switch p {
	case models.PathPredefined:
		return color.MagentaString(string(p))
	case models.PathSimple:
		return color.GreenString(string(p))
	case models.PathMedium:
		return color.YellowString(string(p))
	default:
		return color.RedString(string(p))
	}
}

func statusMarker(s models.StepStatus) string {
	switch s {
	case models.StepStatusCompleted:
		return color.GreenString("✓")
	case models.StepStatusFailed:
		return color.RedString("✗")
	case models.StepStatusSkipped:
		return color.YellowString("−")
	default:
		return color.HiBlackString("·")
	}
}
