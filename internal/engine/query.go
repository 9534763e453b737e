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

package engine

import (
	"lumberlang.dev/lumber/ast"
	"lumberlang.dev/lumber/internal/binding"
	"lumberlang.dev/lumber/internal/database"
	"lumberlang.dev/lumber/internal/handle"
	"lumberlang.dev/lumber/internal/pattern"
)

// solveQuery dispatches a call to either a native function or a
// compiled Definition's clauses, unifying args against whichever answers
// it.
func solveQuery(db *database.Database, b *binding.Binding, h handle.Handle, args []pattern.Pattern, yield func(*binding.Binding) bool) bool {
	key := h.Key()
	if fn, ok := db.Natives[key]; ok {
		return solveNative(db, b, fn, args, yield)
	}
	def, ok := db.Definitions[key]
	if !ok {
		// No clause and no native answers this handle. Compilation only
		// produces handles the resolver already proved exist somewhere,
		// so in practice this means a native the host has not yet
		// registered — the query simply has no solutions.
		return true
	}
	return solveDefinition(db, b, def, args, yield)
}

// solveDefinition tries def's clauses in declaration order. Each
// attempt gets its own generation (spec.md §5) so that one clause's
// variables can never collide with another's, or with a recursive call
// to the same clause.
func solveDefinition(db *database.Database, b *binding.Binding, def *database.Definition, args []pattern.Pattern, yield func(*binding.Binding) bool) bool {
	callerGen := b.Generation()

	for i := range def.Clauses {
		cl := &def.Clauses[i]
		attempt := b.Clone()
		gen := attempt.StartGeneration()

		cur := attempt
		unified := true
		for j, harg := range cl.HeadArgs {
			nu, ok := binding.Unify(cur, harg, gen, args[j], callerGen)
			if !ok {
				unified = false
				break
			}
			cur = nu
		}
		if !unified {
			continue
		}

		if cl.Kind == ast.Once {
			var first *binding.Binding
			solveBody(db, cur, cl.Body, func(s *binding.Binding) bool {
				first = s
				return false
			})
			if first == nil {
				// Body failed outright: Once still only ever commits on
				// success, so an unsuccessful attempt falls through to
				// the next clause rather than aborting the predicate.
				continue
			}
			return yield(first)
		}

		if !solveBody(db, cur, cl.Body, yield) {
			return false
		}
	}
	return true
}

// solveNative drives a host-registered NativeFunc, unifying each
// yielded result vector against the call's argument patterns exactly
// like a clause's head.
func solveNative(db *database.Database, b *binding.Binding, fn database.NativeFunc, args []pattern.Pattern, yield func(*binding.Binding) bool) bool {
	gen := b.Generation()
	for result := range fn(b, args) {
		if len(result) != len(args) {
			continue
		}
		attempt := b.Clone()
		cur := attempt
		ok := true
		for i := range args {
			nu, okU := binding.Unify(cur, args[i], gen, result[i], gen)
			if !okU {
				ok = false
				break
			}
			cur = nu
		}
		if !ok {
			continue
		}
		if !yield(cur) {
			return false
		}
	}
	return true
}
