package builder

import (
	"fmt"

	"github.com/stskit-go/dispocore/core"
)

// Constructor applies a deterministic graph mutation using the resolved
// builderConfig. Constructors must validate their own preconditions and
// return sentinel errors rather than panicking.
type Constructor func(g *core.Graph, cfg builderConfig) error

// BuildGraph creates a new core.Graph with graph options gopts, resolves the
// builder configuration from bopts, and applies all constructors in order.
// Any constructor error is wrapped with "BuildGraph: %w" and returned
// immediately; no partial cleanup is attempted.
func BuildGraph(gopts []core.GraphOption, bopts []BuilderOption, cons ...Constructor) (*core.Graph, error) {
	g := core.NewGraph(gopts...)
	if err := ApplyTo(g, bopts, cons...); err != nil {
		return nil, err
	}
	return g, nil
}

// ApplyTo runs cons against an already-existing graph g, in order, the same
// way BuildGraph does for a freshly created one. Callers that rebuild a
// long-lived graph repeatedly — rather than starting fresh each time — use
// this directly so any state a constructor chooses not to overwrite survives
// the rebuild.
func ApplyTo(g *core.Graph, bopts []BuilderOption, cons ...Constructor) error {
	if g == nil {
		return fmt.Errorf("ApplyTo: nil graph: %w", ErrConstructFailed)
	}

	cfg := newBuilderConfig(bopts...)

	for i, fn := range cons {
		if fn == nil {
			return fmt.Errorf("ApplyTo: nil constructor at index %d: %w", i, ErrConstructFailed)
		}
		if err := fn(g, *cfg); err != nil {
			return fmt.Errorf("ApplyTo: %w", err)
		}
	}
	return nil
}

// Wrap adapts a plain graph-mutating function into a Constructor for callers
// outside this package, which cannot name the unexported builderConfig type
// and so cannot write a Constructor literal directly. ereignisgraph's
// node/edge builders, which need no RNG/ID-scheme/weight-function config,
// use this.
func Wrap(fn func(g *core.Graph) error) Constructor {
	return func(g *core.Graph, _ builderConfig) error {
		return fn(g)
	}
}
