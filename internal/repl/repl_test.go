package repl

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

type fakeAdapter struct {
	model   string
	content string
}

func (f *fakeAdapter) Name() string    { return "fake" }
func (f *fakeAdapter) Model() string   { return f.model }
func (f *fakeAdapter) MaxContext() int { return 1000 }
func (f *fakeAdapter) CalculateCost(int, int) float64                   { return 0 }
func (f *fakeAdapter) FormatTools(*tool.Registry) []provider.ToolSchema { return nil }
func (f *fakeAdapter) SendMessage(context.Context, []provider.Message, string, []provider.ToolSchema) (provider.Response, error) {
	content := f.content
	return provider.Response{Content: &content}, nil
}

// capturingPresenter records every call so tests can assert on output
// without a terminal, satisfying presenter.Presenter directly.
type capturingPresenter struct {
	infos      []string
	warnings   []string
	errors     []string
	successes  []string
	statsCalls int
	quiet      bool
}

func (p *capturingPresenter) Error(err error, context string) {
	if err == nil {
		return
	}
	p.errors = append(p.errors, context+": "+err.Error())
}
func (p *capturingPresenter) Success(m string) { p.successes = append(p.successes, m) }
func (p *capturingPresenter) Warning(m string) { p.warnings = append(p.warnings, m) }
func (p *capturingPresenter) Info(m string)    { p.infos = append(p.infos, m) }
func (p *capturingPresenter) Stats(presenter.Usage) { p.statsCalls++ }
func (p *capturingPresenter) Separator()            {}
func (p *capturingPresenter) SetQuiet(q bool)       { p.quiet = q }
func (p *capturingPresenter) IsQuiet() bool         { return p.quiet }

func newHarness(t *testing.T) (*REPL, *capturingPresenter, int64) {
	t.Helper()
	ctx := context.Background()

	gw, err := store.NewWithMigrations(ctx, ":memory:", migrations.All())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })

	db, err := store.Open(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, store.NewMigrationRunner(db).Run(ctx, migrations.All()))
	t.Cleanup(func() { _ = db.Close() })
	cfg := config.NewStore(db)

	convID, err := gw.CreateConversation(ctx)
	require.NoError(t, err)

	reg := tool.NewRegistry()
	adapter := &fakeAdapter{model: "test-model", content: "ok"}
	bus := eventbus.New()
	orch := orchestrator.New(gw, reg, adapter, bus, "test-model", "/work", 0, nil)
	sup := worker.NewSupervisor(cfg)

	cap := &capturingPresenter{}
	r := New(convID, Deps{
		Gateway: gw, Config: cfg, Registry: reg, Adapter: adapter,
		Orchestrator: orch, Supervisor: sup, Presenter: cap,
	})
	return r, cap, convID
}

func TestDispatch_PlainTextRunsATurn(t *testing.T) {
	r, cap, _ := newHarness(t)
	out := r.Dispatch(context.Background(), "hello there")
	assert.False(t, out.Exit)
	require.Len(t, cap.infos, 1)
	assert.Equal(t, "ok", cap.infos[0])
}

func TestDispatch_BlankLineIsNoop(t *testing.T) {
	r, cap, _ := newHarness(t)
	r.Dispatch(context.Background(), "   ")
	assert.Empty(t, cap.infos)
	assert.Empty(t, cap.warnings)
}

func TestDispatch_ExitReturnsExitOutcome(t *testing.T) {
	r, _, _ := newHarness(t)
	out := r.Dispatch(context.Background(), "/exit")
	assert.True(t, out.Exit)
}

func TestDispatch_UnknownCommandWarns(t *testing.T) {
	r, cap, _ := newHarness(t)
	r.Dispatch(context.Background(), "/bogus")
	require.Len(t, cap.warnings, 1)
	assert.True(t, strings.HasPrefix(cap.warnings[0], "Unknown command:"))
}

func TestDispatch_ResetStartsNewConversation(t *testing.T) {
	r, cap, orig := newHarness(t)
	r.Dispatch(context.Background(), "/reset")
	require.Len(t, cap.successes, 1)
	assert.NotEqual(t, orig, r.conversationID)
}

func TestDispatch_DebugToggle(t *testing.T) {
	r, cap, _ := newHarness(t)
	r.Dispatch(context.Background(), "/debug on")
	assert.True(t, r.debug)
	require.NotEmpty(t, cap.successes)
}

func TestDispatch_ToolsListsRegistry(t *testing.T) {
	r, cap, _ := newHarness(t)
	r.Dispatch(context.Background(), "/tools")
	require.Len(t, cap.infos, 1)
}

func TestDispatch_ModelShowsCurrent(t *testing.T) {
	r, cap, _ := newHarness(t)
	r.Dispatch(context.Background(), "/model")
	require.Len(t, cap.infos, 1)
	assert.Contains(t, cap.infos[0], "test-model")
}

func TestDispatch_WorkerStatusUnknownWorkerWarns(t *testing.T) {
	r, cap, _ := newHarness(t)
	r.Dispatch(context.Background(), "/worker nope status")
	require.Len(t, cap.warnings, 1)
}
