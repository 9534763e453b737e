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

// Package binding implements spec.md §5's generation-scoped variable
// store and spec.md §4.3's unification algorithm over it. It is grounded
// on agdust/lumber's src/program/unification/patterns.rs (unify_patterns
// and friends) and src/program/unification/database.rs, which keep
// binding mutation and unification in the same unit rather than
// splitting them across packages.
package binding

import (
	"sort"

	"lumberlang.dev/lumber/internal/pattern"
)

// Binding is the mutable variable store a query thread carries through
// one resolution attempt. The zero value is not usable; call New.
//
// Mutation is copy-on-write at the caller's discretion: Clone does a
// cheap shallow copy (the underlying map is only duplicated, not deep
// copied pattern-by-pattern), so the query engine can fork a Binding
// before trying a disjunction alternative and discard the fork on
// failure without having mutated the original. This is the simple
// dirty-flag-free alternative to the persistent HAMT a production
// implementation might reach for — see DESIGN.md for the tradeoff.
type Binding struct {
	values map[pattern.Variable]pattern.Pattern
	nextID uint64

	generation      uint64
	generationStack []uint64
}

// New creates an empty Binding at generation 1 (0 is reserved as the
// "un-aged" sentinel pattern.Variable.Generation uses).
func New() *Binding {
	return &Binding{
		values:     make(map[pattern.Variable]pattern.Pattern),
		generation: 1,
	}
}

// Clone returns an independent copy of b. Mutating the clone never
// affects b, and vice versa.
func (b *Binding) Clone() *Binding {
	values := make(map[pattern.Variable]pattern.Pattern, len(b.values))
	for k, v := range b.values {
		values[k] = v
	}
	stack := make([]uint64, len(b.generationStack))
	copy(stack, b.generationStack)
	return &Binding{
		values:          values,
		nextID:          b.nextID,
		generation:      b.generation,
		generationStack: stack,
	}
}

// Generation returns the current generation, the tag FreshVariable and
// DefaultAge-filled clause variables are stamped with.
func (b *Binding) Generation() uint64 { return b.generation }

// StartGeneration pushes a new, strictly greater generation and returns
// it — called once per clause invocation (spec.md §5) so that the
// clause's un-aged compiled pattern gets a generation distinct from its
// caller's and from any sibling invocation of the same clause.
func (b *Binding) StartGeneration() uint64 {
	b.generationStack = append(b.generationStack, b.generation)
	b.generation++
	return b.generation
}

// EndGeneration pops back to the generation active before the matching
// StartGeneration. Bindings made on variables of the popped generation
// remain in the map (and are still visible to anything that captured a
// reference to one of those variables, e.g. a struct built at a deeper
// call and returned outward). The popped number is not retired: the next
// StartGeneration hands the same number out again.
func (b *Binding) EndGeneration() {
	n := len(b.generationStack)
	if n == 0 {
		return
	}
	b.generation = b.generationStack[n-1]
	b.generationStack = b.generationStack[:n-1]
}

// FreshVariable allocates a variable whose ID is one greater than the
// last ID this Binding (or the Binding it was cloned from) minted,
// stamped with the current generation.
func (b *Binding) FreshVariable() pattern.Variable {
	b.nextID++
	return pattern.Variable{ID: b.nextID, Generation: b.generation}
}

// Get returns the pattern directly bound to v, if any. It does not
// follow variable-to-variable chains; use Resolve for that.
func (b *Binding) Get(v pattern.Variable) (pattern.Pattern, bool) {
	p, ok := b.values[v]
	return p, ok
}

// Set binds v to p, overwriting any previous binding. Callers are
// expected to have already checked the occurs rule.
func (b *Binding) Set(v pattern.Variable, p pattern.Pattern) {
	b.values[v] = p
}

// Resolve follows p through the chain of variable-to-variable bindings
// until it reaches either an unbound variable or a non-variable pattern.
// It does not recurse into p's children (a Struct whose contents are
// bound is returned as-is; use Extract to fully substitute).
func (b *Binding) Resolve(p pattern.Pattern) pattern.Pattern {
	for p.Kind == pattern.KindVariable {
		bound, ok := b.Get(p.Var)
		if !ok {
			return p
		}
		p = bound
	}
	return p
}

// Variables returns every variable b currently holds a binding for, in
// deterministic (generation-then-ID) order. It exists for internal/debug
// and tests; the query engine itself never needs to enumerate the whole
// store.
func (b *Binding) Variables() []pattern.Variable {
	vars := make([]pattern.Variable, 0, len(b.values))
	for v := range b.values {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Less(vars[j]) })
	return vars
}

// Extract fully dereferences p, recursively substituting every bound
// variable with its binding, to produce a self-contained result pattern
// (spec.md §5's extract). Variables left unbound after substitution are
// returned as-is.
func (b *Binding) Extract(p pattern.Pattern) pattern.Pattern {
	p = b.Resolve(p)
	switch p.Kind {
	case pattern.KindStruct:
		if p.StructContents != nil {
			c := b.Extract(*p.StructContents)
			p.StructContents = &c
		}
		return p
	case pattern.KindList, pattern.KindRecord, pattern.KindAll:
		items := make([]pattern.Pattern, len(p.Items))
		for i, it := range p.Items {
			items[i] = b.Extract(it)
		}
		p.Items = items
		if p.Tail != nil {
			t := b.Extract(*p.Tail)
			p.Tail = &t
		}
		return p
	default:
		return p
	}
}
