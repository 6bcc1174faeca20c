// Package executor implements the Parallel Executor (§4.4): it runs
// one batch of independent tool calls concurrently, preserving input
// order in the output and isolating panics/errors into structured
// results so no exception escapes the batch.
//
// Grounded on the teacher's pkg/tools/batch.go BatchTool.Execute,
// which fans a single invocation list out across goroutines and joins
// on a sync.WaitGroup. This package generalizes that to operate on
// scheduler-produced batches (so cancellation can be shared across an
// entire turn, not just one BatchTool call) and adds the panic
// isolation and cancellation propagation the teacher's version has no
// use for, since it never ran batches back-to-back under a shared context.
package executor

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/mgreenly/nuagent/internal/scheduler"
	"github.com/mgreenly/nuagent/internal/tool"
	"github.com/mgreenly/nuagent/internal/tracing"
)

// Outcome pairs a scheduled call with its result, satisfying P5 (order
// preservation): output[i].Call == input[i].
type Outcome struct {
	Call   scheduler.Call
	Result tool.Result
}

// Execute runs every call in a single batch on its own goroutine and
// waits for all of them, returning |batch| outcomes in input order
// (§4.4's contract). A panic in one call's Execute is recovered and
// turned into an error result for that slot only; it never aborts
// sibling calls or the caller. Context cancellation (user interrupt,
// §5) is observed per-call: a call that hasn't started yet when ctx is
// already done is turned into a cancellation result instead of running.
func Execute(ctx context.Context, registry *tool.Registry, state tool.State, batch []scheduler.Call) []Outcome {
	outcomes := make([]Outcome, len(batch))
	if len(batch) == 0 {
		return outcomes
	}

	// A plain (non-WithContext) group: runOne never returns a non-nil
	// error, since it isolates every failure into a Result instead, so
	// one call's failure must never cancel its siblings' contexts.
	var g errgroup.Group
	for i, call := range batch {
		i, call := i, call
		g.Go(func() error {
			outcomes[i] = Outcome{Call: call, Result: runOne(ctx, registry, state, call)}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// runOne invokes a single tool call, recovering from panics and
// surfacing a cancelled result if ctx was already done before the
// tool's own Execute had a chance to observe it.
func runOne(ctx context.Context, registry *tool.Registry, state tool.State, call scheduler.Call) (result tool.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = tool.BaseResult{ToolName: call.ToolName, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return tool.BaseResult{ToolName: call.ToolName, Error: "cancelled: " + err.Error()}
	}

	t, err := registry.Lookup(call.ToolName)
	if err != nil {
		return tool.ErrorResult(call.ToolName, err)
	}

	if err := t.ValidateInput(state, call.Parameters); err != nil {
		return tool.BaseResult{ToolName: call.ToolName, Error: "invalid input: " + err.Error()}
	}

	var out tool.Result
	_ = tracing.WithSpan(ctx, "executor.tool_call", func(ctx context.Context) error {
		out = t.Execute(ctx, state, call.Parameters)
		if out.IsError() {
			return fmt.Errorf("%s", out.GetError())
		}
		return nil
	}, attribute.String("tool_name", call.ToolName))
	return out
}

// Errors collects every failing outcome's error into one
// *multierror.Error for logging a batch-level summary — individual
// failures still live in their own Outcome for the caller to persist,
// this is purely for a single log line per turn.
func Errors(outcomes []Outcome) error {
	var result *multierror.Error
	for _, o := range outcomes {
		if o.Result != nil && o.Result.IsError() {
			result = multierror.Append(result, fmt.Errorf("%s: %s", o.Call.ToolName, o.Result.GetError()))
		}
	}
	return result.ErrorOrNil()
}

// ExecuteBatches runs every batch produced by the scheduler in
// sequence (batches are ordered by dependency), flattening into one
// order-preserving outcome slice for the whole tool-call list. Stops
// early and marks the remainder cancelled if ctx is done between batches.
func ExecuteBatches(ctx context.Context, registry *tool.Registry, state tool.State, batches [][]scheduler.Call) []Outcome {
	var all []Outcome
	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			for _, call := range batch {
				all = append(all, Outcome{Call: call, Result: tool.BaseResult{ToolName: call.ToolName, Error: "cancelled: " + err.Error()}})
			}
			continue
		}
		all = append(all, Execute(ctx, registry, state, batch)...)
	}
	return all
}
