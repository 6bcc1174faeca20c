package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Inspect or drive background workers outside the REPL",
	Long:  `Starts the three background workers in the foreground and reports their status, without opening a chat session. Useful for diagnosing worker behavior standalone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		action := "status"
		if len(args) > 0 {
			action = args[0]
		}

		switch action {
		case "status":
			for name, st := range a.supervisor.Statuses() {
				a.present.Info(fmt.Sprintf("%s: running=%v paused=%v total=%d completed=%d failed=%d",
					name, st.Running, st.Paused, st.Total, st.Completed, st.Failed))
			}
		case "start":
			if err := a.supervisor.Start(ctx); err != nil {
				return err
			}
			a.present.Success("workers started; press Ctrl-C to stop")
			<-ctx.Done()
			a.supervisor.Stop()
		default:
			return fmt.Errorf("unknown worker action: %s (expected status|start)", action)
		}
		return nil
	},
}
