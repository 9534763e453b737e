// Copyright 2020 CUE Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package engine executes a compiled database.Database: spec.md §4.4's
// query engine (disjunction, conjunction, procession, soft cuts, Once
// clauses) and, in query.go, spec.md §4.5's native-call dispatch.
// It is grounded on agdust/lumber's src/program/unification/database.rs,
// which keeps disjunction/conjunction/procession/definition search and
// expression evaluation in one mutually recursive impl block — the same
// reason this package, rather than two separate ones, holds both.
//
// Every search function is expressed as a lazy, backtracking generator
// using Go 1.23's range-over-func iterators (iter.Seq), the idiomatic
// analog of the originally Rust lazy iterator chains spec.md §9 Design
// Notes describes: a yield returning false means the caller has enough
// solutions and every pending alternative should be abandoned without
// further work.
package engine

import (
	"iter"

	"lumberlang.dev/lumber/internal/binding"
	"lumberlang.dev/lumber/internal/database"
	"lumberlang.dev/lumber/internal/pattern"
)

// Solve runs body against a fresh Binding, yielding one Binding per
// solution. The returned iterator is lazy: nothing runs until the
// caller starts ranging over it, and a break stops the search at
// whatever point it had reached.
func Solve(db *database.Database, body *database.Body) iter.Seq[*binding.Binding] {
	return func(yield func(*binding.Binding) bool) {
		solveBody(db, binding.New(), body, yield)
	}
}

// SolveIn is Solve starting from an existing Binding (for example one
// whose argument variables were bound before searching); Question and
// Program.Ask use Solve, not SolveIn.
func SolveIn(db *database.Database, b *binding.Binding, body *database.Body) iter.Seq[*binding.Binding] {
	return func(yield func(*binding.Binding) bool) {
		solveBody(db, b, body, yield)
	}
}

// solveBody, and every solve* function below, returns false exactly
// when yield itself returned false at some point, propagating the
// caller's request to stop back up through the search; true means the
// search space was (or was about to be) exhausted along that path
// without anyone asking to stop — it is not a success/failure signal.
func solveBody(db *database.Database, b *binding.Binding, body *database.Body, yield func(*binding.Binding) bool) bool {
	if body == nil || body.Disjunction == nil {
		return yield(b)
	}
	return solveDisjunction(db, b, body.Disjunction, yield)
}

func solveDisjunction(db *database.Database, b *binding.Binding, d *database.Disjunction, yield func(*binding.Binding) bool) bool {
	for _, c := range d.Cases {
		if c.Tail == nil {
			if !solveConjunction(db, b, &c.Head, yield) {
				return false
			}
			continue
		}

		committed := false
		cont := solveConjunction(db, b, &c.Head, func(nb *binding.Binding) bool {
			committed = true
			return solveConjunction(db, nb, c.Tail, yield)
		})
		if committed {
			// This case's soft implication (`->`) has committed the
			// whole disjunction to it: sibling cases are never tried,
			// regardless of how the committed branch's search ended.
			return cont
		}
		// Head never succeeded: the implication's Tail is skipped and
		// the disjunction falls through to the next case.
	}
	return true
}

func solveConjunction(db *database.Database, b *binding.Binding, c *database.Conjunction, yield func(*binding.Binding) bool) bool {
	return solveConjunctionFrom(db, b, c, 0, yield)
}

func solveConjunctionFrom(db *database.Database, b *binding.Binding, c *database.Conjunction, idx int, yield func(*binding.Binding) bool) bool {
	if idx >= len(c.Terms) {
		return yield(b)
	}
	return solveProcession(db, b, &c.Terms[idx], func(nb *binding.Binding) bool {
		return solveConjunctionFrom(db, nb, c, idx+1, yield)
	})
}

func solveProcession(db *database.Database, b *binding.Binding, p *database.Procession, yield func(*binding.Binding) bool) bool {
	return solveSteps(db, b, p.Steps, yield)
}

// solveSteps implements spec.md §4.4's procession-level soft cut: every
// step but the last contributes only its first solution before the
// procession moves on; only the final step's alternatives are fully
// explored (and so remain available to outer backtracking).
func solveSteps(db *database.Database, b *binding.Binding, steps []database.Step, yield func(*binding.Binding) bool) bool {
	if len(steps) == 0 {
		return yield(b)
	}
	if len(steps) == 1 {
		return solveStep(db, b, &steps[0], yield)
	}

	var first *binding.Binding
	solveStep(db, b, &steps[0], func(nb *binding.Binding) bool {
		first = nb
		return false
	})
	if first == nil {
		return true
	}
	return solveSteps(db, first, steps[1:], yield)
}

func solveStep(db *database.Database, b *binding.Binding, step *database.Step, yield func(*binding.Binding) bool) bool {
	switch step.Kind {
	case database.StepQuery:
		return solveQuery(db, b, step.Handle, step.Args, yield)
	case database.StepBody:
		return solveBody(db, b, step.Body, yield)
	case database.StepUnify:
		nb, ok := binding.Unify(b.Clone(), step.Lhs, b.Generation(), step.Rhs, b.Generation())
		if !ok {
			return true
		}
		return yield(nb)
	case database.StepAggregate:
		return solveAggregate(db, b, step, yield)
	default:
		return true
	}
}

// solveAggregate implements spec.md §4.5's list aggregation `[ P : Body ]`:
// Body is exhausted against a snapshot of b, collecting
// snapshot.Extract(P) for every solution in discovery order, and the
// result is unified with Dest in the *outer*, continuing binding — Body's
// own variable bindings never escape beyond the extracted values
// themselves.
func solveAggregate(db *database.Database, b *binding.Binding, step *database.Step, yield func(*binding.Binding) bool) bool {
	snapshot := b.Clone()
	var items []pattern.Pattern
	solveBody(db, snapshot, step.Body, func(nb *binding.Binding) bool {
		items = append(items, nb.Extract(step.Pattern))
		return true
	})

	list := pattern.List(items, nil)
	nb, ok := binding.Unify(b.Clone(), step.Dest, b.Generation(), list, b.Generation())
	if !ok {
		return true
	}
	return yield(nb)
}

