package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/switchboard-ai/switchboard/internal/config"
	"github.com/switchboard-ai/switchboard/internal/flow"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Inspect predefined flows",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listFlows()
	},
}

var flowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered flows and their metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listFlows()
	},
}

var flowsCheckCmd = &cobra.Command{
	Use:   "check [dir]",
	Short: "Validate flow definition files",
	Long: `Load flow definitions and report problems: invalid YAML, bad
regex patterns, duplicate step IDs, or dangling dependencies.

Without an argument, checks the configured flows.dir.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) == 1 {
			dir = args[0]
		}
		return checkFlows(dir)
	},
}

func init() {
	flowsCmd.AddCommand(flowsListCmd)
	flowsCmd.AddCommand(flowsCheckCmd)
}

func listFlows() error {
	application, cleanup, err := buildApp()
	if err != nil {
		return err
	}
	defer cleanup()

	flows := application.flows.List()
	if len(flows) == 0 {
		fmt.Println("No flows registered. Set flows.dir in the configuration.")
		return nil
	}

	sort.Slice(flows, func(i, j int) bool {
		return flows[i].Metrics.UsageCount > flows[j].Metrics.UsageCount
	})

	for _, f := range flows {
		fmt.Printf("%s  %s\n", color.CyanString(f.FlowID), f.Description)
		if f.IntentKey != "" {
			fmt.Printf("  intent:  %s\n", f.IntentKey)
		}
		if f.Pattern != "" {
			fmt.Printf("  pattern: %s\n", f.Pattern)
		}
		fmt.Printf("  steps:   %d\n", len(f.Template.Steps))
		m := f.Metrics
		if m.UsageCount > 0 {
			fmt.Printf("  usage:   %d runs, %.0f%% success, avg %s\n",
				m.UsageCount, m.SuccessRate()*100, m.AverageLatency.Round(time.Millisecond))
		} else {
			fmt.Printf("  usage:   %s\n", color.HiBlackString("never run"))
		}
		fmt.Println()
	}
	return nil
}

// checkFlows validates every flow file in dir against a throwaway
// registry, so duplicate flow IDs across files are caught too.
func checkFlows(dir string) error {
	if dir == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dir = cfg.Flows.Dir
	}
	if dir == "" {
		return fmt.Errorf("no flows directory: pass one or set flows.dir")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read flows dir: %w", err)
	}

	reg := flow.NewRegistry()
	files, problems := 0, 0
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		ext := filepath.Ext(de.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		files++
		path := filepath.Join(dir, de.Name())
		defs, err := flow.LoadFile(path)
		if err != nil {
			problems++
			fmt.Printf("%s %s: %v\n", color.RedString("✗"), de.Name(), err)
			continue
		}
		ok := true
		for _, def := range defs {
			if err := reg.Register(def); err != nil {
				problems++
				ok = false
				fmt.Printf("%s %s: %v\n", color.RedString("✗"), de.Name(), err)
			}
		}
		if ok {
			fmt.Printf("%s %s: %d flow(s)\n", color.GreenString("✓"), de.Name(), len(defs))
		}
	}

	if files == 0 {
		fmt.Printf("No flow files in %s\n", dir)
		return nil
	}
	if problems > 0 {
		return fmt.Errorf("%d problem(s) in %d file(s)", problems, files)
	}
	fmt.Printf("%d file(s) OK, %d flow(s) registered\n", files, len(reg.List()))
	return nil
}
