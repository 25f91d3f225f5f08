package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/switchboard-ai/switchboard/pkg/models"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive session with conversation memory",
	Long: `Start an interactive session. Each line is routed and executed as
a request; the conversation memory carries across turns, so follow-ups
like "cancel it" resolve against earlier requests.

With flows.watch enabled, flow definitions reload on file changes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, cleanup, err := buildApp()
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if application.cfg.Flows.Watch && application.cfg.Flows.Dir != "" {
			// Watch blocks until ctx is cancelled, so it gets its own
			// goroutine; the REPL owns this one.
			go func() {
				err := application.flows.Watch(ctx, application.cfg.Flows.Dir, func(count int, err error) {
					if err != nil {
						fmt.Fprintf(os.Stderr, "%s flow reload failed: %v\n", color.YellowString("!"), err)
						return
					}
					fmt.Printf("%s reloaded %d flows\n", color.HiBlackString("·"), count)
				})
				if err != nil && !errors.Is(err, context.Canceled) {
					fmt.Fprintf(os.Stderr, "%s flow watching stopped: %v\n", color.YellowString("!"), err)
				}
			}()
		}

		conversationID := uuid.NewString()
		fmt.Printf("switchboard %s  (conversation %s, empty line to exit)\n", Version(), conversationID[:8])

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print(color.CyanString("> "))
			if !scanner.Scan() {
				break
			}
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				break
			}

			resp, err := application.engine.Handle(ctx, models.Request{
				Text:           text,
				ConversationID: conversationID,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
				continue
			}
			application.memory.AddTurn(conversationID)

			fmt.Println(resp.Text)
			fmt.Printf("%s %s, %s\n", color.HiBlackString("·"),
				pathColor(resp.Decision.Path), resp.Metadata.Duration.Round(time.Millisecond))
		}
		return scanner.Err()
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
