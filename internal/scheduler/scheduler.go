// Package scheduler implements the Dependency Scheduler (§4.3): it
// groups an ordered list of tool calls from one assistant message into
// sequential batches of mutually-independent calls, using the
// classification and affected-path model from internal/tool.
//
// There is no teacher precedent for this component — kodelet's
// pkg/tools/batch.go runs every call in a BatchTool invocation
// unconditionally in parallel with no conflict analysis. This package
// is grounded on that file's call-list shape (an ordered slice of
// named, parameterized invocations) and generalizes it with the
// classification kodelet's Tool interface never needed.
package scheduler

import (
	"github.com/mgreenly/nuagent/internal/tool"
)

// Call is one entry in the ordered tool-call list T from §4.3.
type Call struct {
	ID         string
	ToolName   string
	Parameters string
}

// kind is the per-call classification used by the batching rule.
type kind int

const (
	kindRead kind = iota
	kindWrite
	kindUnconfinedWrite
)

// classify applies §4.3's "Classification per call" table: an
// unconfined write is a barrier whatever its paths; any other non-file
// tool (paths == nil) is treated as a read with no conflicts.
func classify(t tool.Tool, state tool.State, parameters string) (kind, []string) {
	c := t.Classification()
	if c.Scope == tool.ScopeUnconfined && c.OperationType == tool.OpWrite {
		return kindUnconfinedWrite, nil
	}
	paths := t.AffectedPaths(state, parameters)
	if paths == nil {
		return kindRead, nil
	}
	if c.OperationType == tool.OpWrite {
		return kindWrite, paths
	}
	return kindRead, paths
}

// batchState tracks the per-batch path bookkeeping the rule needs:
// every path touched so far (for write-vs-anything conflicts) and the
// subset touched by a write (for read-after-write conflicts).
type batchState struct {
	touched map[string]bool
	written map[string]bool
}

func newBatchState() *batchState {
	return &batchState{touched: map[string]bool{}, written: map[string]bool{}}
}

func (b *batchState) record(k kind, paths []string) {
	for _, p := range paths {
		b.touched[p] = true
		if k == kindWrite {
			b.written[p] = true
		}
	}
}

// conflicts implements step 4 of the batching rule:
//   - write c conflicts iff any path in P appears in the current batch (any op).
//   - read c conflicts iff a prior write in the current batch affects any path in P.
func (b *batchState) conflicts(k kind, paths []string) bool {
	switch k {
	case kindWrite:
		for _, p := range paths {
			if b.touched[p] {
				return true
			}
		}
	case kindRead:
		for _, p := range paths {
			if b.written[p] {
				return true
			}
		}
	}
	return false
}

// Batch groups an ordered tool-call list into sequential batches of
// mutually-independent calls (§4.3's contract). The flattened
// concatenation of the result equals calls in order (invariant
// enforced by construction: every call is appended to exactly one batch).
func Batch(registry *tool.Registry, state tool.State, calls []Call) ([][]Call, error) {
	var batches [][]Call
	var current []Call
	bs := newBatchState()
	hasUnconfinedWrite := false

	closeBatch := func() {
		if len(current) > 0 {
			batches = append(batches, current)
		}
		current = nil
		bs = newBatchState()
		hasUnconfinedWrite = false
	}

	for _, c := range calls {
		t, err := registry.Lookup(c.ToolName)
		if err != nil {
			return nil, err
		}
		k, paths := classify(t, state, c.Parameters)

		switch {
		case len(current) == 0:
			current = append(current, c)
		case k == kindUnconfinedWrite:
			closeBatch()
			current = []Call{c}
			closeBatch()
			continue
		case hasUnconfinedWrite:
			closeBatch()
			current = []Call{c}
		case bs.conflicts(k, paths):
			closeBatch()
			current = []Call{c}
		default:
			current = append(current, c)
		}

		if k == kindUnconfinedWrite {
			hasUnconfinedWrite = true
		} else {
			bs.record(k, paths)
		}
	}
	closeBatch()

	return batches, nil
}
