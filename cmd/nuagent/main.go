// Package main is the entry point for nuagent, the agent execution
// core's CLI. It bootstraps configuration, builds the command tree,
// and wraps every command with a tracing shutdown — grounded on
// cmd/kodelet/main.go's init()/cobra wiring, renamed KODELET_ -> NUAGENT_
// and trimmed to the provider/model/logging flags this spec actually uses.
package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mgreenly/nuagent/internal/config"
	"github.com/mgreenly/nuagent/internal/logger"
	"github.com/mgreenly/nuagent/internal/tracing"
)

func init() {
	config.Bootstrap(context.Background())
}

var rootCmd = &cobra.Command{
	Use:   "nuagent",
	Short: "nuagent is a multi-provider LLM agent execution core",
	Long:  `nuagent runs an interactive REPL over a durable conversation store, orchestrating tool calls across pluggable LLM providers.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			_ = cmd.Help()
			os.Exit(1)
		}
	},
}

func main() {
	ctx := context.Background()

	cobra.OnInitialize(func() {
		if level := viper.GetString("log_level"); level != "" {
			if err := logger.SetLogLevel(level); err != nil {
				logger.G(ctx).WithField("error", err).WithField("log_level", level).Warn("invalid log level, using default")
			}
		}
		if format := viper.GetString("log_format"); format != "" {
			logger.SetLogFormat(format)
		}
	})

	rootCmd.PersistentFlags().String("provider", "anthropic", "LLM provider (anthropic, openai, gemini)")
	rootCmd.PersistentFlags().String("model", "claude-sonnet-4-5", "orchestrator model (overrides config)")
	rootCmd.PersistentFlags().String("summarizer-model", "claude-3-5-haiku-latest", "summarizer worker model")
	rootCmd.PersistentFlags().Int("max-tool-iterations", 32, "soft cap on tool-call iterations per exchange")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().String("log-format", "fmt", "log format (json, text, fmt)")
	rootCmd.PersistentFlags().Bool("tracing", false, "enable OpenTelemetry spans")

	_ = viper.BindPFlag("provider", rootCmd.PersistentFlags().Lookup("provider"))
	_ = viper.BindPFlag("model", rootCmd.PersistentFlags().Lookup("model"))
	_ = viper.BindPFlag("summarizer_model", rootCmd.PersistentFlags().Lookup("summarizer-model"))
	_ = viper.BindPFlag("max_tool_iterations", rootCmd.PersistentFlags().Lookup("max-tool-iterations"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("tracing.enabled", rootCmd.PersistentFlags().Lookup("tracing"))

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(dbCmd)

	shutdown, err := tracing.Init(ctx, tracing.Config{
		Enabled:        viper.GetBool("tracing.enabled"),
		ServiceName:    "nuagent",
		ServiceVersion: "dev",
		SamplerType:    "always",
		SamplerRatio:   1,
	})
	if err != nil {
		logger.G(ctx).WithField("error", err).Warn("failed to initialize tracing")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.G(ctx).WithField("error", err).Warn("failed to shut down tracing")
			}
		}()
	}

	rootCmd.SetContext(ctx)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.G(ctx).WithField("error", err).Error("command failed")
		os.Exit(1)
	}
}
