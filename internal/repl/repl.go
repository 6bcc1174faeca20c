// Package repl implements the Input Pipeline (§2, §6.4): routes a
// line of user input either to a `/`-prefixed command or to the
// Exchange Orchestrator, and handles Ctrl-C cancellation cleanly.
// Kept thin per SPEC_FULL.md's module layout note — command dispatch
// is a flat switch, not a registry, mirroring the size of the
// surface the spec actually asks for.
package repl

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mgreenly/nuagent/internal/config"
	"github.com/mgreenly/nuagent/internal/orchestrator"
	"github.com/mgreenly/nuagent/internal/presenter"
	"github.com/mgreenly/nuagent/internal/provider"
	"github.com/mgreenly/nuagent/internal/store"
	"github.com/mgreenly/nuagent/internal/tool"
	"github.com/mgreenly/nuagent/internal/worker"
)

// REPL holds everything one interactive session needs to route input.
type REPL struct {
	gateway      *store.Gateway
	cfg          *config.Store
	registry     *tool.Registry
	adapter      provider.Adapter
	orchestrator *orchestrator.Orchestrator
	supervisor   *worker.Supervisor
	present      presenter.Presenter

	conversationID int64
	debug          bool
	verbosity      int
	redaction      bool
	spellcheck     bool
}

// Deps bundles the REPL's wiring, assembled once by the chat command.
type Deps struct {
	Gateway      *store.Gateway
	Config       *config.Store
	Registry     *tool.Registry
	Adapter      provider.Adapter
	Orchestrator *orchestrator.Orchestrator
	Supervisor   *worker.Supervisor
	Presenter    presenter.Presenter
}

// New starts (or resumes) a REPL bound to conversationID.
func New(conversationID int64, deps Deps) *REPL {
	return &REPL{
		gateway: deps.Gateway, cfg: deps.Config, registry: deps.Registry,
		adapter: deps.Adapter, orchestrator: deps.Orchestrator, supervisor: deps.Supervisor,
		present: deps.Presenter, conversationID: conversationID,
		redaction: true, spellcheck: true,
	}
}

// Outcome reports what handling one line of input produced, so the
// caller's read loop knows whether to keep going.
type Outcome struct {
	Exit bool
}

// Dispatch routes one line of raw input, exactly as typed at the
// prompt. Blank lines are a no-op.
func (r *REPL) Dispatch(ctx context.Context, line string) Outcome {
	line = strings.TrimSpace(line)
	if line == "" {
		return Outcome{}
	}

	if strings.HasPrefix(line, "/") {
		return r.command(ctx, line)
	}

	r.turn(ctx, line)
	return Outcome{}
}

func (r *REPL) turn(ctx context.Context, userInput string) {
	var spell *orchestrator.SpellCorrection
	if r.spellcheck {
		spell = nil // spellchecker provider wiring is a chat-command concern, not the REPL's
	}

	result, err := r.orchestrator.ProcessTurn(ctx, r.conversationID, userInput, spell)
	if err != nil {
		if ctx.Err() != nil {
			r.present.Warning("cancelled")
			return
		}
		r.present.Error(err, "turn failed")
		return
	}

	if result.Failed {
		r.present.Error(fmt.Errorf("%s", result.FailReason), "exchange failed")
		return
	}

	r.present.Info(result.Response)
	if r.debug {
		r.present.Stats(presenter.Usage{
			TokensInput: result.Metrics.TokensInput, TokensOutput: result.Metrics.TokensOutput,
			Spend: result.Metrics.Spend, ToolCalls: result.Metrics.ToolCallCount,
		})
	}
}

// command dispatches one `/`-prefixed line (§6.4). Unknown commands
// print "Unknown command: ..." and the REPL keeps running.
func (r *REPL) command(ctx context.Context, line string) Outcome {
	fields := strings.Fields(line)
	name := fields[0]
	args := fields[1:]

	switch name {
	case "/help":
		r.help()
	case "/exit":
		return Outcome{Exit: true}
	case "/reset":
		r.reset(ctx)
	case "/clear":
		r.present.Separator()
	case "/debug":
		r.toggleDebug(args)
	case "/verbosity":
		r.setVerbosity(args)
	case "/redaction":
		r.toggle(&r.redaction, args, "redaction")
	case "/spellcheck":
		r.toggle(&r.spellcheck, args, "spellcheck")
	case "/model":
		r.model(ctx, args)
	case "/models":
		r.models()
	case "/tools":
		r.tools()
	case "/info":
		r.info(ctx)
	case "/worker":
		r.worker(ctx, args)
	case "/rag":
		r.present.Info("rag fragments are attached to every turn automatically; no manual query surface yet")
	case "/migrate-exchanges":
		r.present.Info("run `nuagent db migrate-exchanges` from the shell instead")
	case "/backup":
		r.present.Info("run `nuagent db backup` from the shell instead")
	default:
		r.present.Warning("Unknown command: " + name)
	}
	return Outcome{}
}

func (r *REPL) help() {
	r.present.Info(strings.Join([]string{
		"/help", "/exit", "/reset", "/clear",
		"/debug on|off", "/verbosity <n>", "/redaction on|off", "/spellcheck on|off",
		"/model [orchestrator|spellchecker|summarizer] <name>", "/models", "/tools", "/info",
		"/worker <name> on|off|start|stop|status", "/rag", "/migrate-exchanges", "/backup",
	}, "\n"))
}

func (r *REPL) reset(ctx context.Context) {
	id, err := r.gateway.CreateConversation(ctx)
	if err != nil {
		r.present.Error(err, "reset failed")
		return
	}
	r.conversationID = id
	r.present.Success(fmt.Sprintf("started conversation %d", id))
}

func (r *REPL) toggleDebug(args []string) {
	r.toggle(&r.debug, args, "debug")
}

func (r *REPL) toggle(flag *bool, args []string, label string) {
	if len(args) == 0 {
		r.present.Info(fmt.Sprintf("%s is %s", label, onOff(*flag)))
		return
	}
	switch args[0] {
	case "on":
		*flag = true
	case "off":
		*flag = false
	default:
		r.present.Warning("expected on|off")
		return
	}
	r.present.Success(fmt.Sprintf("%s %s", label, onOff(*flag)))
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func (r *REPL) setVerbosity(args []string) {
	if len(args) != 1 {
		r.present.Warning("usage: /verbosity <n>")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		r.present.Warning("verbosity must be an integer")
		return
	}
	r.verbosity = n
	r.present.Success(fmt.Sprintf("verbosity set to %d", n))
}

func (r *REPL) model(ctx context.Context, args []string) {
	if len(args) == 0 {
		r.present.Info("current model: " + r.adapter.Model())
		return
	}
	target, name := "orchestrator", args[0]
	if len(args) >= 2 {
		target, name = args[0], args[1]
	}
	key := target + "_model"
	if err := r.cfg.Set(ctx, key, name); err != nil {
		r.present.Error(err, "model swap failed")
		return
	}
	r.present.Success(fmt.Sprintf("%s model stored as %s = %s (the running session keeps its current model)", target, key, name))
}

func (r *REPL) models() {
	r.present.Info(fmt.Sprintf("%s/%s (max context %d)", r.adapter.Name(), r.adapter.Model(), r.adapter.MaxContext()))
}

func (r *REPL) tools() {
	r.present.Info(strings.Join(r.registry.Names(), ", "))
}

func (r *REPL) info(ctx context.Context) {
	idle, err := r.gateway.WorkersIdle(ctx)
	if err != nil {
		r.present.Error(err, "info failed")
		return
	}

	conv, err := r.gateway.GetConversation(ctx, r.conversationID)
	if err != nil {
		r.present.Error(err, "info failed")
		return
	}
	session, err := r.gateway.SessionTokens(ctx, r.conversationID, conv.CreatedAt)
	if err != nil {
		r.present.Error(err, "info failed")
		return
	}

	r.present.Info(fmt.Sprintf("conversation=%d provider=%s model=%s workers_idle=%v tokens_input=%d tokens_output=%d spend=$%.4f",
		r.conversationID, r.adapter.Name(), r.adapter.Model(), idle, session.Input, session.Output, session.Spend))
}

func (r *REPL) worker(ctx context.Context, args []string) {
	if len(args) < 2 {
		r.present.Warning("usage: /worker <name> on|off|start|stop|status")
		return
	}
	name, action := args[0], args[1]

	switch action {
	case "status":
		statuses := r.supervisor.Statuses()
		st, ok := statuses[name]
		if !ok {
			r.present.Warning("unknown worker: " + name)
			return
		}
		r.present.Info(fmt.Sprintf("%s: running=%v paused=%v total=%d completed=%d failed=%d spend=$%.4f",
			name, st.Running, st.Paused, st.Total, st.Completed, st.Failed, st.Spend))
	case "start", "on":
		started, err := r.supervisor.StartOne(ctx, name)
		if err != nil {
			r.present.Error(err, "worker start failed")
			return
		}
		r.present.Success(fmt.Sprintf("%s started=%v", name, started))
	case "stop", "off":
		stopped := r.supervisor.StopOne(name)
		r.present.Success(fmt.Sprintf("%s stopped=%v", name, stopped))
	default:
		r.present.Warning("unknown worker action: " + action)
	}
}
