package config

import (
	"context"
	"strings"

	"github.com/spf13/viper"

	"github.com/mgreenly/nuagent/internal/logger"
)

// Bootstrap wires viper's process-startup defaults, env prefix, and
// config-file search path — grounded on the teacher's
// cmd/kodelet/main.go init(), renamed KODELET_ -> NUAGENT_.
func Bootstrap(ctx context.Context) {
	viper.SetDefault("max_tool_iterations", 32) // Open Question (i)
	viper.SetDefault("embedding_dim", 1536)      // Open Question (ii)
	viper.SetDefault("embedding_batch_size", 10)
	viper.SetDefault("embedding_rate_limit_ms", 100)
	viper.SetDefault("provider", "anthropic")
	viper.SetDefault("model", "claude-sonnet-4-5")
	viper.SetDefault("summarizer_model", "claude-3-5-haiku-latest")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "fmt")

	viper.SetEnvPrefix("NUAGENT")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.nuagent")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err == nil {
		logger.G(ctx).WithField("config_file", viper.ConfigFileUsed()).Debug("using config file")
	}
}
