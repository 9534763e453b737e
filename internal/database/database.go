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

// Package database holds the compiled, query-engine-ready form of a
// Lumber program: handles already resolved, patterns already translated
// from ast.Pattern into pattern.Pattern, operators already climbed into
// nested Query steps. It is grounded on agdust/lumber's src/program/mod.rs,
// which plays the same "final compiled form the unifier runs against"
// role relative to src/ast.
package database

import (
	"iter"

	"lumberlang.dev/lumber/ast"
	"lumberlang.dev/lumber/internal/binding"
	"lumberlang.dev/lumber/internal/handle"
	"lumberlang.dev/lumber/internal/pattern"
)

// Clause is one compiled fact/rule/function. HeadArgs and Body are
// un-aged (every pattern.Variable has Generation == 0): the engine calls
// binding.Binding.StartGeneration and stamps them fresh on every
// invocation (spec.md §5) rather than this package ever cloning or
// renaming a clause body itself.
type Clause struct {
	HeadArgs []pattern.Pattern
	Kind     ast.RuleKind // Multi allows backtracking into further clauses/solutions; Once commits to the first.
	Body     *Body        // nil for a fact
}

// Definition is every compiled clause sharing one Handle.
type Definition struct {
	Handle  handle.Handle
	Clauses []Clause
}

// NativeFunc is the host-function ABI spec.md §6 describes: a closure
// the host registers under a Handle, invoked with the binding it should
// read argument patterns through and the (already Extract-able) argument
// patterns themselves, returning a lazy sequence of result argument
// vectors — each one holding one pattern per argument position (the same
// length as args), unified back against the call's arguments and
// consumed by the engine one at a time exactly like a clause's
// alternative solutions.
type NativeFunc func(b *binding.Binding, args []pattern.Pattern) iter.Seq[[]pattern.Pattern]

// Database is the fully compiled, directly executable program: every
// Handle already resolved, so the engine never consults the resolver or
// operator table again once compile.Compiler.Finish has returned one.
type Database struct {
	Definitions map[handle.Key]*Definition
	Natives     map[handle.Key]NativeFunc

	// NativeHandles records the atom-ful Handle each Natives entry was
	// registered under, keyed the same way. Natives alone only needs the
	// opaque Key to run a query, but Runtime.Link needs the actual Scope
	// and Arity atoms back so a linked library's native table can be
	// rebased onto the host's own Interner.
	NativeHandles map[handle.Key]handle.Handle
}

// New returns an empty Database.
func New() *Database {
	return &Database{
		Definitions:   make(map[handle.Key]*Definition),
		Natives:       make(map[handle.Key]NativeFunc),
		NativeHandles: make(map[handle.Key]handle.Handle),
	}
}

// AddClause appends clause to h's Definition, creating it if needed.
func (db *Database) AddClause(h handle.Handle, clause Clause) {
	def, ok := db.Definitions[h.Key()]
	if !ok {
		def = &Definition{Handle: h}
		db.Definitions[h.Key()] = def
	}
	def.Clauses = append(def.Clauses, clause)
}

// RegisterNative binds fn to h, overwriting any previous registration —
// used both for host natives (runtime.Runtime.RegisterNative, which
// Builder.Bind feeds) and by runtime.New's loading of the
// engine.StandardLibrary arithmetic/comparison natives.
func (db *Database) RegisterNative(h handle.Handle, fn NativeFunc) {
	db.Natives[h.Key()] = fn
	db.NativeHandles[h.Key()] = h
}

// Body is the compiled form of ast.Body: a Disjunction of Conjunctions
// of Processions of Steps, with every Query's Handle already resolved
// and every Pattern already lowered.
type Body struct {
	Disjunction *Disjunction
}

type Disjunction struct {
	Cases []DisjCase
}

// DisjCase is one `head` or `head -> tail` alternative. Tail non-nil
// marks a soft-cut (spec.md §4.4): once Head succeeds at least once,
// sibling cases are abandoned in favor of Tail.
type DisjCase struct {
	Head Conjunction
	Tail *Conjunction
}

type Conjunction struct {
	Terms []Procession
}

// Procession is a comma-joined sequence of Steps with a soft cut between
// each pair (spec.md §4.4): once Step i has produced a solution and
// Step i+1 is entered, Step i is never backtracked into again in search
// of a further solution — only Step i+1 (and beyond) backtracks.
type Procession struct {
	Steps []Step
}

// StepKind tags the shapes a compiled Step can take. Compilation
// resolves every ast.StepRelation into a StepQuery (via the module's
// operator table) and every expression inside a StepUnification into a
// chain of
// synthesized StepQuery native calls, and every ast.Aggregation into a
// StepAggregate, so only these variants survive into the compiled Body.
type StepKind int

const (
	StepQuery StepKind = iota
	StepBody
	StepUnify
	StepAggregate
)

type Step struct {
	Kind StepKind

	Handle handle.Handle     // StepQuery
	Args   []pattern.Pattern // StepQuery

	Body *Body // StepBody, StepAggregate

	Lhs, Rhs pattern.Pattern // StepUnify

	Dest    pattern.Pattern // StepAggregate: the variable the collected list binds to
	Pattern pattern.Pattern // StepAggregate: extracted per solution of Body
}
