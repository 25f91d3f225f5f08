package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "switchboard",
	Short: "Natural language request router",
	Long: `Switchboard routes natural language requests to the cheapest
execution path that can satisfy them.

Each request is classified, scored for complexity, and matched against
predefined flows. Simple requests get a direct answer, medium ones a
single collaborator call, and complex ones are decomposed into a task
plan executed as a dependency graph with retries and parallelism.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(flowsCmd)
	rootCmd.AddCommand(plansCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
