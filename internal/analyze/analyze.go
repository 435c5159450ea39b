// Package analyze provides an independent, Datalog-based auditor for the
// structural invariants spec.md §8 requires of an RPG (dangling edges,
// functional-edge acyclicity). It is not on the hot path of any mutation —
// Store enforces those invariants transactionally at write time — but it
// gives encode/evolve callers a way to double-check a graph (e.g. after an
// Import, or before shipping an evolution result) the way the teacher's own
// kernel double-checks constitution facts against its schema at boot.
package analyze

import (
	"fmt"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"github.com/pleaseai/soop-sub000/internal/graph"
)

// Violation is one invariant breach a Check run discovered.
type Violation struct {
	Kind string // "cycle" | "dangling"
	Src  string
	Dst  string // empty for "cycle"
}

func (v Violation) String() string {
	if v.Kind == "cycle" {
		return fmt.Sprintf("cycle: %s reaches itself via functional edges", v.Src)
	}
	return fmt.Sprintf("dangling: edge %s -> %s references a missing node", v.Src, v.Dst)
}

// Engine holds the compiled invariant schema. Build once, reuse across many
// Check calls — analysis.AnalyzeOneUnit is the expensive step.
type Engine struct {
	programInfo *analysis.ProgramInfo
}

// NewEngine compiles invariantSchema. A failure here means the embedded
// schema itself is broken, not that any particular graph is invalid.
func NewEngine() (*Engine, error) {
	parsed, err := parse.Unit(strings.NewReader(invariantSchema))
	if err != nil {
		return nil, fmt.Errorf("analyze: parse invariant schema: %w", err)
	}
	info, err := analysis.AnalyzeOneUnit(parsed, nil)
	if err != nil {
		return nil, fmt.Errorf("analyze: analyze invariant schema: %w", err)
	}
	return &Engine{programInfo: info}, nil
}

// Check loads nodes and edges as EDB facts, evaluates to fixpoint, and
// returns every has_cycle/dangling fact the Datalog engine derives.
func (e *Engine) Check(nodes []graph.Node, edges []graph.Edge) ([]Violation, error) {
	base := factstore.NewSimpleInMemoryStore()

	for _, n := range nodes {
		atom, err := nodeAtom(n.ID)
		if err != nil {
			return nil, fmt.Errorf("analyze: node %q: %w", n.ID, err)
		}
		base.Add(atom)
	}
	for _, ed := range edges {
		if ed.Type == graph.DataFlow {
			continue
		}
		any, err := edgeAtom("any_edge", ed.Source, ed.Target)
		if err != nil {
			return nil, fmt.Errorf("analyze: edge %s->%s: %w", ed.Source, ed.Target, err)
		}
		base.Add(any)
		if ed.Type == graph.Functional {
			fe, err := edgeAtom("func_edge", ed.Source, ed.Target)
			if err != nil {
				return nil, fmt.Errorf("analyze: functional edge %s->%s: %w", ed.Source, ed.Target, err)
			}
			base.Add(fe)
		}
	}

	store := factstore.FactStore(base)
	const derivedFactLimit = 200000
	if _, err := engine.EvalProgramWithStats(e.programInfo, store, engine.WithCreatedFactLimit(derivedFactLimit)); err != nil {
		return nil, fmt.Errorf("analyze: evaluate: %w", err)
	}

	var violations []Violation
	for pred := range e.programInfo.Decls {
		switch pred.Symbol {
		case "has_cycle":
			_ = store.GetFacts(ast.NewQuery(pred), func(a ast.Atom) error {
				violations = append(violations, Violation{Kind: "cycle", Src: stringArg(a, 0)})
				return nil
			})
		case "dangling":
			_ = store.GetFacts(ast.NewQuery(pred), func(a ast.Atom) error {
				violations = append(violations, Violation{Kind: "dangling", Src: stringArg(a, 0), Dst: stringArg(a, 1)})
				return nil
			})
		}
	}
	return violations, nil
}

func nodeAtom(id string) (ast.Atom, error) {
	return ast.NewAtom("node", ast.String(id)), nil
}

func edgeAtom(predicate, src, dst string) (ast.Atom, error) {
	return ast.NewAtom(predicate, ast.String(src), ast.String(dst)), nil
}

func stringArg(a ast.Atom, i int) string {
	if i >= len(a.Args) {
		return ""
	}
	if c, ok := a.Args[i].(ast.Constant); ok {
		return c.Symbol
	}
	return fmt.Sprintf("%v", a.Args[i])
}
