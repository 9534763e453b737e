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

// Package errors defines the error and warning types shared across name
// resolution and compilation (spec.md §7). Resolution and parse errors are
// collected per module rather than surfaced one at a time, so that a user
// sees every problem at once (§7 Policy). A unification failure at run
// time is not an error under this package at all — it is the absence of
// a next binding, per §4.3; Kind Runtime is reserved for exceptional
// runtime conditions.
package errors

import (
	"fmt"
	"sort"
	"strings"

	"lumberlang.dev/lumber/token"
)

// A Kind distinguishes the four error/warning categories named in spec.md
// §7. Parse and Resolution errors are collected together; Runtime and
// Warning are kept in separate lists by the caller.
type Kind int

const (
	// Parse indicates a syntactic failure reported by the (external) PEG
	// parser.
	Parse Kind = iota
	// Resolution indicates a name- or operator-resolution failure:
	// unresolved, ambiguous, alias cycle, not visible, or a conflicting
	// declaration.
	Resolution
	// Runtime indicates a truly exceptional runtime condition: an
	// unimplemented feature (mutable predicates) or extraction of a
	// still-unbound native argument.
	Runtime
)

func (k Kind) String() string {
	switch k {
	case Parse:
		return "parse error"
	case Resolution:
		return "resolution error"
	case Runtime:
		return "runtime error"
	default:
		return "error"
	}
}

// Error is the interface satisfied by every diagnostic this module
// produces. It carries enough information to point at source text even
// though Lumber itself never produces a token.Pos — that is the
// responsibility of the (out-of-scope) parser that built the AST.
type Error interface {
	error
	Kind() Kind
	Position() token.Pos
	// Path is the module/handle path this diagnostic concerns, innermost
	// first — used to give ambiguity and alias-loop errors a trail.
	Path() []string
}

type baseError struct {
	kind Kind
	pos  token.Pos
	path []string
	msg  string
}

func (e *baseError) Error() string {
	var b strings.Builder
	if e.pos.IsValid() {
		fmt.Fprintf(&b, "%s: ", e.pos)
	}
	b.WriteString(e.msg)
	if len(e.path) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(e.path, " -> "))
	}
	return b.String()
}

func (e *baseError) Kind() Kind        { return e.kind }
func (e *baseError) Position() token.Pos { return e.pos }
func (e *baseError) Path() []string     { return e.path }

// Newf builds a new Error of the given kind at the given position.
func Newf(kind Kind, pos token.Pos, format string, args ...interface{}) Error {
	return &baseError{kind: kind, pos: pos, msg: fmt.Sprintf(format, args...)}
}

// WithPath attaches a resolution path (e.g. an alias chain or an
// ambiguous candidate list) to an error for display.
func WithPath(err Error, path ...string) Error {
	return &baseError{kind: err.Kind(), pos: err.Position(), msg: err.Error(), path: path}
}

// A Warning is a non-fatal diagnostic: today this is exclusively the
// singleton-variable check (spec.md §3 Invariants, §8).
type Warning struct {
	Pos     token.Pos
	Message string
}

func (w Warning) String() string {
	if w.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", w.Pos, w.Message)
	}
	return w.Message
}

// List collects every Parse/Resolution error produced while processing one
// module, or one set of linked modules. Per §7 Policy these are gathered
// and returned together rather than failing fast on the first one.
type List []Error

func (l *List) Add(err Error) {
	if err != nil {
		*l = append(*l, err)
	}
}

func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Sanitize sorts errors by position and removes exact duplicate messages,
// mirroring cue/errors.Sanitize so repeated reports of the same fact (e.g.
// an alias declared under two names, spec.md §4.1) surface once.
func (l List) Sanitize() List {
	if len(l) == 0 {
		return l
	}
	sorted := make(List, len(l))
	copy(sorted, l)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := sorted[i].Position(), sorted[j].Position()
		if pi.IsValid() && pj.IsValid() {
			return pi.Before(pj)
		}
		return sorted[i].Error() < sorted[j].Error()
	})
	out := sorted[:0]
	var last string
	for _, e := range sorted {
		if s := e.Error(); len(out) == 0 || s != last {
			out = append(out, e)
			last = s
		}
	}
	return out
}

func (l List) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}
