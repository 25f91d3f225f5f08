package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

var routeCmd = &cobra.Command{
	Use:   "route <request>",
	Short: "Show the routing decision without executing",
	Long: `Classify and score a request and print the routing decision,
including the complexity sub-scores, without running anything.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, cleanup, err := buildApp()
		if err != nil {
			return err
		}
		defer cleanup()

		req := models.Request{Text: strings.Join(args, " ")}
		intent, score, decision := application.engine.Route(context.Background(), req)

		if intent.Type != "" {
			fmt.Printf("%s %s in %s", color.HiBlackString("intent:"), intent.Type, intent.Domain)
			if len(intent.Entities) > 0 {
				var parts []string
				for _, e := range intent.Entities {
					parts = append(parts, fmt.Sprintf("%s=%s", e.Name, e.Value))
				}
				fmt.Printf("  [%s]", strings.Join(parts, " "))
			}
			fmt.Println()
		} else {
			fmt.Printf("%s unclassifiable\n", color.HiBlackString("intent:"))
		}

		fmt.Printf("%s intent=%.2f tool=%.2f domain=%.2f state=%.2f → %s\n",
			color.HiBlackString("score: "),
			score.IntentIndicator, score.ToolRequirement,
			score.DomainComplexity, score.StateDependency,
			color.CyanString("%.2f", score.Final))
		printDecision(decision)
		if decision.MatchedFlow != nil {
			fmt.Printf("%s %s\n", color.HiBlackString("flow: "), decision.MatchedFlow.FlowID)
		}
		return nil
	},
}
