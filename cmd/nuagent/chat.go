package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mgreenly/nuagent/internal/presenter"
	"github.com/mgreenly/nuagent/internal/repl"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long:  `Starts the REPL: reads lines from stdin, routes /-prefixed lines to commands and everything else through the Exchange Orchestrator.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		convID, err := a.gateway.CreateConversation(ctx)
		if err != nil {
			return err
		}
		a.activeConvID = convID

		if os.Getenv("CI") != "true" {
			if err := a.supervisor.Start(ctx); err != nil {
				a.present.Error(err, "failed to start background workers")
			}
			defer a.supervisor.Stop()
		}

		r := repl.New(convID, repl.Deps{
			Gateway:      a.gateway,
			Config:       a.cfg,
			Registry:     a.registry,
			Adapter:      a.adapter,
			Orchestrator: a.orch,
			Supervisor:   a.supervisor,
			Presenter:    a.present,
		})

		a.present.Info("nuagent chat — /help for commands, /exit to quit")
		for {
			if ctx.Err() != nil {
				a.present.Warning("interrupted")
				return nil
			}
			line, ok := presenter.ReadLine("> ")
			if !ok {
				return nil
			}
			out := r.Dispatch(ctx, line)
			if out.Exit {
				return nil
			}
		}
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Start a new conversation and print its id",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.gateway.CreateConversation(ctx)
		if err != nil {
			return err
		}
		a.present.Success(fmt.Sprintf("started conversation %d", id))
		return nil
	},
}
