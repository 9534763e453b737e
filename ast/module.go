// Copyright 2018 The CUE Authors
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

package ast

import "lumberlang.dev/lumber/token"

// Clause is one `fact.` / `rule :- body.` / `func! <- expr.` entry of a
// Definition (spec.md §3). HeadArgs unify against the caller's arguments
// when the clause's Handle is queried; a value-returning rule
// (`func! <- expr`) reaches internal/compile as an ordinary clause whose
// last HeadArgs entry (and last Handle arity position) is already the
// destination argument — compile adds nothing to it.
type Clause struct {
	Pos      token.Pos
	Handle   Handle
	HeadArgs []Pattern
	Kind     RuleKind
	Body     *Body // nil for a fact
}

// DeclKind tags one top-level declaration of a module.
type DeclKind int

const (
	DeclClause DeclKind = iota
	DeclPub
	DeclMut
	DeclIncomplete
	DeclUse
	DeclNative
	DeclOp
)

// UseDecl is `:- use mod::*.` (Alias/Source nil) or
// `:- use mod::name/Arity as alias/Arity.`.
type UseDecl struct {
	Pos    token.Pos
	Module Scope
	Source *Handle
	Alias  *Handle
}

// OpDecl is `:- op prec, assoc, atom.`, optionally restricted to a unary
// (prefix) role; the handle it binds to is the same-named predicate in
// the declaring module's own scope.
type OpDecl struct {
	Pos        token.Pos
	Operator   Atom
	Arity      OpArity
	Precedence int
	Assoc      Assoc
	Handle     Handle
}

// Decl is one top-level declaration. Exactly one of the pointer fields is
// set, selected by Kind.
type Decl struct {
	Pos token.Pos
	Kind DeclKind

	Clause     *Clause
	Pub        *Handle
	Mut        *Handle
	Incomplete *Handle
	Use        *UseDecl
	Native     *Handle
	Op         *OpDecl
}

// Module is one compilation unit: a scope plus its declarations, as
// produced by the external parser for one source file (or module block).
type Module struct {
	Scope Scope
	Decls []Decl
}
