package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

var plansLimit int
var plansSteps bool

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Show recent plan executions from the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, cleanup, err := buildApp()
		if err != nil {
			return err
		}
		defer cleanup()

		if application.store == nil {
			return fmt.Errorf("no database configured; set state.db_path in the configuration")
		}

		plans, err := application.store.ListRecentPlans(plansLimit)
		if err != nil {
			return err
		}
		if len(plans) == 0 {
			fmt.Println("No plans recorded yet.")
			return nil
		}

		for _, p := range plans {
			fmt.Printf("%s  %s  %s  %s  %s\n",
				p.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				color.CyanString(string(p.Path)),
				planStatusColor(p.Status),
				p.Duration.Round(time.Millisecond),
				p.ID)
			if p.Reasoning != "" {
				fmt.Printf("    %s\n", color.HiBlackString(p.Reasoning))
			}
			if plansSteps {
				steps, err := application.store.ListPlanSteps(p.ID)
				if err != nil {
					return err
				}
				for _, s := range steps {
					fmt.Printf("    %s %s (%d attempts)", statusMarker(s.Status), s.StepID, s.Attempts)
					if s.Error != "" {
						fmt.Printf("  %s", color.RedString(s.Error))
					}
					fmt.Println()
				}
			}
		}
		return nil
	},
}

func init() {
	plansCmd.Flags().IntVar(&plansLimit, "limit", 20, "Maximum number of plans to show")
	plansCmd.Flags().BoolVar(&plansSteps, "steps", false, "Show per-step outcomes")
}

func planStatusColor(s models.PlanStatus) string {
	switch s {
	case models.PlanStatusCompleted:
		return color.GreenString(string(s))
	case models.PlanStatusPartiallyFailed:
		return color.YellowString(string(s))
	default:
		return color.RedString(string(s))
	}
}
