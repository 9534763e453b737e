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

// Package ast defines the tree an external Lumber parser hands to
// lumberlang.dev/lumber/internal/compile. The grammar that produces this
// tree (the PEG surface syntax described in spec.md §6) is explicitly out
// of scope for this module; ast is the interface boundary the parser
// targets, the same role cue/ast plays for the CUE parser.
package ast

import (
	"strconv"
	"strings"

	"lumberlang.dev/lumber/token"
)

// Atom is a raw, uninterned identifier as the parser produced it. The
// compiler interns these into internal/atom.Atom tokens.
type Atom = string

// Scope is the syntactic form of spec.md §3's Scope: an ordered path,
// optionally rooted in a linked library.
type Scope struct {
	Library Atom // "" unless the path starts with a library root.
	Path    []Atom
}

// Push returns a copy of s with name appended.
func (s Scope) Push(name Atom) Scope {
	path := make([]Atom, len(s.Path)+1)
	copy(path, s.Path)
	path[len(s.Path)] = name
	return Scope{Library: s.Library, Path: path}
}

func (s Scope) String() string {
	var b strings.Builder
	if s.Library != "" {
		b.WriteString(s.Library)
		b.WriteString("::")
	}
	b.WriteString(strings.Join(s.Path, "::"))
	return b.String()
}

// Arity is one element of spec.md §3's mixed positional/named arity
// signature: either a plain field count or a named field.
type Arity struct {
	Named bool
	Count int  // meaningful when !Named
	Name  Atom // meaningful when Named
}

func (a Arity) String() string {
	if a.Named {
		return "/:" + a.Name
	}
	return "/" + strconv.Itoa(a.Count)
}

// Handle is the syntactic predicate identity: scope plus arity signature.
type Handle struct {
	Pos   token.Pos
	Scope Scope
	Arity []Arity
}

func (h Handle) String() string {
	var b strings.Builder
	b.WriteString(h.Scope.String())
	for _, a := range h.Arity {
		b.WriteString(a.String())
	}
	return b.String()
}

// Identifier names a variable occurrence, or marks it a wildcard ("_" or
// "_Name"), which never contributes to the singleton-variable check
// (spec.md §3 Invariants).
type Identifier struct {
	Pos      token.Pos
	Name     Atom
	Wildcard bool
}

// OpArity distinguishes a unary (prefix) operator occurrence from a
// binary (infix) one, per spec.md §4.2.
type OpArity int

const (
	Unary OpArity = iota
	Binary
)

// Assoc is the associativity of a binary operator.
type Assoc int

const (
	AssocLeft Assoc = iota
	AssocRight
	AssocNone
)

// RuleKind distinguishes an ordinary (Multi) clause from a terminating
// (Once) clause, per spec.md §3's Definition and §8 property 7.
type RuleKind int

const (
	Multi RuleKind = iota
	Once
)
