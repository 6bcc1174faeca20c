package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/mgreenly/nuagent/internal/config"
	"github.com/mgreenly/nuagent/internal/eventbus"
	"github.com/mgreenly/nuagent/internal/orchestrator"
	"github.com/mgreenly/nuagent/internal/presenter"
	"github.com/mgreenly/nuagent/internal/provider"
	"github.com/mgreenly/nuagent/internal/store"
	"github.com/mgreenly/nuagent/internal/store/migrations"
	"github.com/mgreenly/nuagent/internal/tool"
	"github.com/mgreenly/nuagent/internal/worker"
)

// app bundles everything a command needs once the database is open.
// Built once per process invocation; chat/worker/db subcommands each
// use the slice of it they need.
type app struct {
	gateway    *store.Gateway
	cfg        *config.Store
	registry   *tool.Registry
	adapter    provider.Adapter
	bus        *eventbus.Bus
	orch       *orchestrator.Orchestrator
	supervisor *worker.Supervisor
	present    *presenter.TerminalPresenter

	// activeConvID is read by the background workers to exclude the
	// REPL's in-progress conversation from summarization/embedding
	// (§4.7); the chat command points it at its own conversation id
	// once one exists.
	activeConvID int64
}

func buildApp(ctx context.Context) (*app, error) {
	dbPath, err := store.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	if override := viper.GetString("database"); override != "" {
		dbPath = override
	}

	db, err := store.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.NewMigrationRunner(db).Run(ctx, migrations.All()); err != nil {
		return nil, err
	}

	gateway := store.New(db)
	cfg := config.NewStore(db)

	providerName := viper.GetString("provider")
	model := viper.GetString("model")
	apiKey, err := config.APIKey(providerName)
	if err != nil {
		return nil, err
	}
	adapter, err := provider.New(providerName, model, apiKey)
	if err != nil {
		return nil, err
	}

	registry := tool.NewRegistry(
		tool.NewBashTool(),
		tool.NewDBQueryTool(),
		tool.NewFileEditTool(),
		tool.NewFileReadTool(),
		tool.NewFileWriteTool(),
	)

	bus := eventbus.New()
	workingDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	a := &app{
		gateway:  gateway,
		cfg:      cfg,
		registry: registry,
		adapter:  adapter,
		bus:      bus,
		present:  presenter.New(),
	}

	maxIterations := int(viper.GetInt("max_tool_iterations"))
	a.orch = orchestrator.New(gateway, registry, adapter, bus, model, workingDir, maxIterations, nil)
	a.supervisor = buildSupervisor(gateway, cfg, providerName, a.activeConversationID)

	return a, nil
}

func (a *app) activeConversationID() int64 { return a.activeConvID }

func (a *app) Close() error {
	return a.gateway.Close()
}

// buildSupervisor registers the three background workers (§4.7). The
// summarizer workers reuse the main provider at the configured
// summarizer_model; the embedding worker needs an OpenAI key
// specifically since that's the only adapter exposing an Embedder
// (DOMAIN STACK). A worker whose credential is missing is simply not
// registered — the supervisor only starts what it knows about.
func buildSupervisor(gateway *store.Gateway, cfg *config.Store, providerName string, activeConvID func() int64) *worker.Supervisor {
	sup := worker.NewSupervisor(cfg)
	critical := sup.Critical()

	summarizerModel := viper.GetString("summarizer_model")
	if key, err := config.APIKey(providerName); err == nil {
		if summarizerAdapter, err := provider.New(providerName, summarizerModel, key); err == nil {
			sup.Register("conversation_summarizer", worker.NewConversationSummarizer(gateway, summarizerAdapter, critical, activeConvID))
			sup.Register("exchange_summarizer", worker.NewExchangeSummarizer(gateway, summarizerAdapter, critical, activeConvID))
		}
	}

	if key, err := config.APIKey("openai"); err == nil {
		embedder := provider.NewOpenAIEmbedder("text-embedding-3-small", key)
		batchSize := int(viper.GetInt("embedding_batch_size"))
		rateLimit := time.Duration(viper.GetInt("embedding_rate_limit_ms")) * time.Millisecond
		sup.Register("embedding_generator", worker.NewEmbeddingGenerator(gateway, embedder, critical, nil, activeConvID, batchSize, rateLimit))
	}

	return sup
}
