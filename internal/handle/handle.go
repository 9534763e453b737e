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

// Package handle implements spec.md §3's Scope, Arity and Handle: the
// hierarchical-path-plus-arity identity of a predicate. It is the
// runtime, atom-interned counterpart of lumber/ast's syntactic Scope and
// Handle, grounded on agdust/lumber's src/program/handle.rs and
// internal/core/adt.Feature's interned-identity role.
package handle

import (
	"fmt"
	"strconv"
	"strings"

	"lumberlang.dev/lumber/internal/atom"
)

// Scope is an ordered path of interned atoms, optionally rooted in a
// library (an external, linked namespace — spec.md §3).
type Scope struct {
	Library atom.Atom // atom.Invalid unless library-rooted
	Path    []atom.Atom
}

// Push returns a new Scope with name appended.
func (s Scope) Push(name atom.Atom) Scope {
	path := make([]atom.Atom, len(s.Path)+1)
	copy(path, s.Path)
	path[len(s.Path)] = name
	return Scope{Library: s.Library, Path: path}
}

// AddLib roots a scope (produced while compiling a library's own
// sources) in lib, for use once that library is linked into a host
// program under that name.
func (s Scope) AddLib(lib atom.Atom) Scope {
	s.Library = lib
	return s
}

// IsAncestorOrEqual reports whether s is an ancestor scope of other, or
// equal to it — the relation spec.md §3 calls "contains or equals" and
// §4.1 step 4 uses for visibility: a handle defined in s is visible from
// other's scope only if this holds (or the handle is exported).
func (s Scope) IsAncestorOrEqual(other Scope) bool {
	if s.Library != other.Library {
		return false
	}
	if len(s.Path) > len(other.Path) {
		return false
	}
	for i, a := range s.Path {
		if other.Path[i] != a {
			return false
		}
	}
	return true
}

// Equal reports structural equality.
func (s Scope) Equal(other Scope) bool {
	if s.Library != other.Library || len(s.Path) != len(other.Path) {
		return false
	}
	for i, a := range s.Path {
		if other.Path[i] != a {
			return false
		}
	}
	return true
}

// Less is a total order over scopes: library root first, then
// lexicographic path comparison. It exists for deterministic iteration
// (error message ordering, candidate-set display) and is unrelated to
// the ancestor relation used for visibility.
func (s Scope) Less(other Scope) bool {
	if s.Library != other.Library {
		return s.Library < other.Library
	}
	for i := 0; i < len(s.Path) && i < len(other.Path); i++ {
		if s.Path[i] != other.Path[i] {
			return s.Path[i] < other.Path[i]
		}
	}
	return len(s.Path) < len(other.Path)
}

// Key computes the hashable identity of a Scope, used to key the module
// registry (one ModuleHeader per compiled module).
func (s Scope) Key() Key {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.", s.Library)
	for _, a := range s.Path {
		fmt.Fprintf(&b, "%d,", a)
	}
	return Key(b.String())
}

func (s Scope) String(in *atom.Interner) string {
	var b strings.Builder
	if s.Library != atom.Invalid {
		b.WriteString(in.String(s.Library))
		b.WriteString("::")
	}
	parts := make([]string, len(s.Path))
	for i, a := range s.Path {
		parts[i] = in.String(a)
	}
	b.WriteString(strings.Join(parts, "::"))
	return b.String()
}

// Arity is one element of a Handle's signature: either a positional
// count or a named field, per spec.md §3.
type Arity struct {
	Named bool
	Count int
	Name  atom.Atom
}

func (a Arity) String(in *atom.Interner) string {
	if a.Named {
		return "/:" + in.String(a.Name)
	}
	return "/" + strconv.Itoa(a.Count)
}

// Handle identifies a predicate: a Scope plus an ordered Arity
// signature (spec.md §3). Handle is not comparable and cannot be used as
// a map key directly — its Scope.Path and Arity slices make the struct
// non-comparable in Go, so Handle is always accessed through the
// interned, flat Key below when used as a lookup key.
type Handle struct {
	Scope Scope
	Arity []Arity
}

// Key is the hashable, comparable identity of a Handle, used as the key
// type for every handle-indexed map in this module (definitions,
// aliases, exports, the compiled Database, ...). It is built from the
// already-interned atom integers, so it needs no Interner to compute and
// cannot collide between distinct handles.
type Key string

// Key computes h's lookup key.
func (h Handle) Key() Key {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.", h.Scope.Library)
	for _, a := range h.Scope.Path {
		fmt.Fprintf(&b, "%d,", a)
	}
	b.WriteByte('#')
	for _, a := range h.Arity {
		if a.Named {
			fmt.Fprintf(&b, "n%d;", a.Name)
		} else {
			fmt.Fprintf(&b, "p%d;", a.Count)
		}
	}
	return Key(b.String())
}

// Relocate rewrites h to live in scope, keeping its arity and trailing
// name, the way glob search relocates a handle into each candidate
// module before recursing (spec.md §4.1 step 3).
func (h Handle) Relocate(scope Scope) Handle {
	if len(h.Scope.Path) == 0 {
		return Handle{Scope: scope, Arity: h.Arity}
	}
	name := h.Scope.Path[len(h.Scope.Path)-1]
	return Handle{Scope: scope.Push(name), Arity: h.Arity}
}

// Head returns the display form of h without its library root, per
// spec.md §3.
func (h Handle) Head() Handle {
	h.Scope.Library = atom.Invalid
	return h
}

// LocalKey returns the Key of h with its scope reduced to just its own
// name (the last path element, no library, no ancestor path) — the key
// ModuleHeader's Definitions/Exports/Natives/Mutables/Incompletes maps
// are indexed by, regardless of h's full absolute scope.
func (h Handle) LocalKey() Key {
	local := h
	if n := len(h.Scope.Path); n > 0 {
		local.Scope = Scope{Path: []atom.Atom{h.Scope.Path[n-1]}}
	} else {
		local.Scope = Scope{}
	}
	return local.Key()
}

func (h Handle) String(in *atom.Interner) string {
	var b strings.Builder
	b.WriteString(h.Scope.String(in))
	for _, a := range h.Arity {
		b.WriteString(a.String(in))
	}
	return b.String()
}
