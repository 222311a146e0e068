/*
Package merge reconciles objective records with the hierarchical payload
of the analytics proxy.

PURPOSE:
  Given a flat list of objectives and an arbitrarily nested tree of
  organizational nodes, find for every agency leaf the best-matching
  objective with a layered fuzzy lookup, and write the value (plus a
  derived realization rate for prepaid cards) back into the node.

PIPELINE (one synchronous pass):
  Finder -> objective.Filter -> BuildIndex -> walker -> rewrapped payload

FAILURE ISOLATION:
  MergeObjectives and MergeRecords never return an error and never panic.
  A failing Finder, a panic while walking, anything: the pass is abandoned,
  the caller gets its original payload back, and the cause goes to
  Observer.Failed. The input payload is never mutated; a merged pass
  returns a rebuilt copy.

CONCURRENCY:
  An Engine holds no per-pass state and is safe for concurrent use, as long
  as the Finder and Observer are.

USAGE:
  engine := merge.NewEngine(store, merge.WithObserver(merge.NewZapObserver(logger)))
  res := engine.MergeObjectives(ctx, payload, merge.TargetSavings, 2024, objective.IntPtr(3))
  writeJSON(w, http.StatusOK, res.Payload)

SEE ALSO:
  - index.go: Lookup tables and matching cascade
  - walker.go: Traversal and write-back
  - target.go: Which objectives a pass uses and where it writes
*/
package merge

import (
	"context"
	"errors"
	"fmt"

	"github.com/Modou1ngom/cofidash/hierarchy"
	"github.com/Modou1ngom/cofidash/objective"
)

// envelopeKey wraps the payload in some proxy responses.
const envelopeKey = "data"

var (
	// ErrNoFinder is reported when MergeObjectives runs without a Finder.
	ErrNoFinder = errors.New("merge engine has no objective finder")
)

// PanicError carries a recovered panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("merge pass panicked: %v", e.Value)
}

// Result is the outcome of one pass.
type Result struct {
	Payload   map[string]any
	Stats     Stats
	Abandoned bool
}

// Engine runs merge passes.
type Engine struct {
	finder   objective.Finder
	observer Observer
}

type Option func(*Engine)

// WithObserver installs the diagnostics hook.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// NewEngine creates an engine reading objectives from finder.
func NewEngine(finder objective.Finder, opts ...Option) *Engine {
	e := &Engine{finder: finder, observer: NopObserver{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MergeObjectives queries the finder for the target's objectives in
// (year, month) and merges them into payload.
func (e *Engine) MergeObjectives(ctx context.Context, payload map[string]any, target Target, year int, month *int) (res Result) {
	defer e.recoverPass(payload, &res)

	if e.finder == nil {
		return e.abandon(payload, ErrNoFinder)
	}
	records, err := e.finder.FindObjectives(ctx, target.Query(year, month))
	if err != nil {
		return e.abandon(payload, fmt.Errorf("find %s objectives for %d/%s: %w", target.Name, year, monthLabel(month), err))
	}
	return e.MergeRecords(payload, records, target, year, month)
}

// MergeRecords merges an in-memory objective list into payload. Records
// outside the target's (types, year, month) selection are ignored.
func (e *Engine) MergeRecords(payload map[string]any, records []objective.Record, target Target, year int, month *int) (res Result) {
	defer e.recoverPass(payload, &res)

	if payload == nil {
		return Result{Payload: payload}
	}

	candidates := objective.Filter(records, target.Query(year, month))
	index := BuildIndex(candidates, target.Strategy)
	if target.Strategy == StrategySum {
		e.observer.AggregateBuilt(index.Groups())
	}

	data, wrapped := unwrap(payload)
	tree := hierarchy.FromAny(data)

	wc := newWalkContext(index, target, e.observer)
	wc.walkPayload(tree)

	stats := wc.stats
	stats.Candidates = index.Records()
	stats.Groups = index.Groups()
	return Result{Payload: rewrap(payload, tree.Map(), wrapped), Stats: stats}
}

// recoverPass turns a panic of the deferring pass into an abandoned result.
func (e *Engine) recoverPass(payload map[string]any, res *Result) {
	if r := recover(); r != nil {
		*res = e.abandon(payload, &PanicError{Value: r})
	}
}

func (e *Engine) abandon(payload map[string]any, err error) Result {
	e.observer.Failed(err)
	return Result{Payload: payload, Abandoned: true}
}

// unwrap returns payload["data"] when it is an object.
func unwrap(payload map[string]any) (map[string]any, bool) {
	if inner, ok := payload[envelopeKey].(map[string]any); ok {
		return inner, true
	}
	return payload, false
}

// rewrap puts merged back under "data" in a shallow copy of payload.
func rewrap(payload, merged map[string]any, wrapped bool) map[string]any {
	if !wrapped {
		return merged
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	out[envelopeKey] = merged
	return out
}

func monthLabel(month *int) string {
	if month == nil {
		return "-"
	}
	return fmt.Sprintf("%02d", *month)
}
