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

package handle

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	qt "github.com/go-quicktest/qt"

	"lumberlang.dev/lumber/internal/atom"
)

func TestScopeIsAncestorOrEqual(t *testing.T) {
	in := atom.NewInterner()
	a, b := in.Intern("a"), in.Intern("b")

	root := Scope{Path: []atom.Atom{a}}
	child := Scope{Path: []atom.Atom{a, b}}

	qt.Assert(t, qt.IsTrue(root.IsAncestorOrEqual(child)))
	qt.Assert(t, qt.IsTrue(root.IsAncestorOrEqual(root)))
	qt.Assert(t, qt.IsFalse(child.IsAncestorOrEqual(root)))
}

func TestScopeIsAncestorOrEqualRequiresSameLibrary(t *testing.T) {
	in := atom.NewInterner()
	a := in.Intern("a")
	lib1, lib2 := in.Intern("lib1"), in.Intern("lib2")

	s1 := Scope{Library: lib1, Path: []atom.Atom{a}}
	s2 := Scope{Library: lib2, Path: []atom.Atom{a}}
	qt.Assert(t, qt.IsFalse(s1.IsAncestorOrEqual(s2)))
}

func TestHandleKeyDistinguishesArity(t *testing.T) {
	in := atom.NewInterner()
	name := in.Intern("foo")
	scope := Scope{Path: []atom.Atom{name}}

	h2 := Handle{Scope: scope, Arity: []Arity{{Count: 1}, {Count: 2}}}
	h1 := Handle{Scope: scope, Arity: []Arity{{Count: 1}}}

	qt.Assert(t, qt.IsTrue(h1.Key() != h2.Key()))
}

func TestHandleKeyDistinguishesNamedVsPositional(t *testing.T) {
	in := atom.NewInterner()
	name := in.Intern("foo")
	field := in.Intern("x")
	scope := Scope{Path: []atom.Atom{name}}

	named := Handle{Scope: scope, Arity: []Arity{{Named: true, Name: field}}}
	positional := Handle{Scope: scope, Arity: []Arity{{Count: int(field)}}}

	qt.Assert(t, qt.IsTrue(named.Key() != positional.Key()))
}

func TestRelocateKeepsArityChangesScope(t *testing.T) {
	in := atom.NewInterner()
	foo := in.Intern("foo")
	modA := in.Intern("a")
	modB := in.Intern("b")

	h := Handle{Scope: Scope{Path: []atom.Atom{modA, foo}}, Arity: []Arity{{Count: 2}}}
	relocated := h.Relocate(Scope{Path: []atom.Atom{modB}})

	if diff := cmp.Diff([]atom.Atom{modB, foo}, relocated.Scope.Path); diff != "" {
		t.Fatalf("relocated scope path mismatch (-want +got):\n%s", diff)
	}
	qt.Assert(t, qt.DeepEquals(relocated.Arity, h.Arity))
}

func TestLocalKeyIgnoresAncestorPath(t *testing.T) {
	in := atom.NewInterner()
	modA, modB, foo := in.Intern("a"), in.Intern("b"), in.Intern("foo")

	h1 := Handle{Scope: Scope{Path: []atom.Atom{modA, foo}}, Arity: []Arity{{Count: 1}}}
	h2 := Handle{Scope: Scope{Path: []atom.Atom{modB, foo}}, Arity: []Arity{{Count: 1}}}

	qt.Assert(t, qt.Equals(h1.LocalKey(), h2.LocalKey()))
}
