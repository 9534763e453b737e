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

package runtime

import (
	"iter"
	"testing"

	qt "github.com/go-quicktest/qt"

	"lumberlang.dev/lumber/ast"
	"lumberlang.dev/lumber/internal/atom"
	"lumberlang.dev/lumber/internal/binding"
	"lumberlang.dev/lumber/internal/engine"
	"lumberlang.dev/lumber/internal/handle"
	"lumberlang.dev/lumber/internal/pattern"
	"lumberlang.dev/lumber/token"
)

func TestNewRegistersStandardLibrary(t *testing.T) {
	r := New()

	plus := handle.Handle{
		Scope: handle.Scope{Path: []atom.Atom{r.Interner.Intern("+")}},
		Arity: []handle.Arity{{Count: 3}},
	}
	_, ok := r.DB.Natives[plus.Key()]
	qt.Assert(t, qt.IsTrue(ok))
}

func TestCompilerNilBeforeCompile(t *testing.T) {
	r := New()
	qt.Assert(t, qt.IsNil(r.Compiler()))
}

func TestCompilePreservesPreexistingNatives(t *testing.T) {
	r := New()

	double := handle.Handle{
		Scope: handle.Scope{Path: []atom.Atom{r.Interner.Intern("double")}},
		Arity: []handle.Arity{{Count: 2}},
	}
	native := func(b *binding.Binding, args []pattern.Pattern) iter.Seq[[]pattern.Pattern] {
		return func(yield func([]pattern.Pattern) bool) {}
	}
	r.DB.RegisterNative(double, native)

	mod := &ast.Module{Scope: ast.Scope{Path: []ast.Atom{"main"}}}
	err := r.Compile([]*ast.Module{mod})
	qt.Assert(t, qt.IsNil(err))

	_, ok := r.DB.Natives[double.Key()]
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.IsNotNil(r.Compiler()))
}

func TestRegisterNativeQualifiedPath(t *testing.T) {
	r := New()
	r.RegisterNative([]string{"str", "upper"}, 2, func(b *binding.Binding, args []pattern.Pattern) iter.Seq[[]pattern.Pattern] {
		return func(yield func([]pattern.Pattern) bool) {}
	})

	h := handle.Handle{
		Scope: handle.Scope{Path: []atom.Atom{r.Interner.Intern("str"), r.Interner.Intern("upper")}},
		Arity: []handle.Arity{{Count: 2}},
	}
	_, ok := r.DB.Natives[h.Key()]
	qt.Assert(t, qt.IsTrue(ok))
}

func TestCompileErrorLeavesDatabaseUntouched(t *testing.T) {
	r := New()
	before := r.DB

	// A clause whose handle has a nonzero arity but whose head carries no
	// arguments still compiles (arity is declared on the handle, not
	// inferred from HeadArgs), so use a dangling glob to force Finish to
	// fail instead.
	mod := &ast.Module{
		Scope: ast.Scope{Path: []ast.Atom{"main"}},
		Decls: []ast.Decl{
			{Kind: ast.DeclUse, Use: &ast.UseDecl{Module: ast.Scope{Path: []ast.Atom{"missing"}}}},
		},
	}
	err := r.Compile([]*ast.Module{mod})
	qt.Assert(t, qt.IsNotNil(err))
	qt.Assert(t, qt.Equals(r.DB, before))
}

func TestLinkMakesLibraryExportsReachableThroughGlob(t *testing.T) {
	lib := New()
	libMod := &ast.Module{
		Scope: ast.Scope{Path: []ast.Atom{"core"}},
		Decls: []ast.Decl{
			{Kind: ast.DeclPub, Pub: &ast.Handle{
				Scope: ast.Scope{Path: []ast.Atom{"hello"}},
				Arity: []ast.Arity{{Count: 1}},
			}},
			{Kind: ast.DeclClause, Clause: &ast.Clause{
				Handle: ast.Handle{
					Scope: ast.Scope{Path: []ast.Atom{"hello"}},
					Arity: []ast.Arity{{Count: 1}},
				},
				HeadArgs: []ast.Pattern{ast.Struct(token.NoPos, "world", nil)},
				Kind:     ast.Multi,
			}},
		},
	}
	qt.Assert(t, qt.IsNil(lib.Compile([]*ast.Module{libMod})))

	host := New()
	qt.Assert(t, qt.IsNil(host.Link("greeter", lib)))

	// greeter::core is the library's own "core" module, re-rooted under
	// the name it was linked as (spec.md §4.1's "dispatch to that
	// library's resolve").
	mainMod := &ast.Module{
		Scope: ast.Scope{Path: []ast.Atom{"main"}},
		Decls: []ast.Decl{
			{Kind: ast.DeclUse, Use: &ast.UseDecl{Module: ast.Scope{Library: "greeter", Path: []ast.Atom{"core"}}}},
		},
	}
	err := host.Compile([]*ast.Module{mainMod})
	qt.Assert(t, qt.IsNil(err))

	hello := handle.Handle{
		Scope: handle.Scope{Library: host.Interner.Intern("greeter"), Path: []atom.Atom{host.Interner.Intern("core"), host.Interner.Intern("hello")}},
		Arity: []handle.Arity{{Count: 1}},
	}
	def, ok := host.DB.Definitions[hello.Key()]
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.HasLen(def.Clauses, 1))
	qt.Assert(t, qt.Equals(host.Interner.String(def.Clauses[0].HeadArgs[0].StructName), "world"))
}

func TestLinkRebasesNativeHandles(t *testing.T) {
	lib := New()
	lib.RegisterNative([]string{"double"}, 2, func(b *binding.Binding, args []pattern.Pattern) iter.Seq[[]pattern.Pattern] {
		return func(yield func([]pattern.Pattern) bool) {}
	})
	libMod := &ast.Module{Scope: ast.Scope{Path: []ast.Atom{"mathlib"}}}
	qt.Assert(t, qt.IsNil(lib.Compile([]*ast.Module{libMod})))

	host := New()
	qt.Assert(t, qt.IsNil(host.Link("mathlib", lib)))
	qt.Assert(t, qt.IsNotNil(host.Libraries[host.Interner.Intern("mathlib")]))

	mainMod := &ast.Module{Scope: ast.Scope{Path: []ast.Atom{"main"}}}
	qt.Assert(t, qt.IsNil(host.Compile([]*ast.Module{mainMod})))

	double := handle.Handle{
		Scope: handle.Scope{Library: host.Interner.Intern("mathlib"), Path: []atom.Atom{host.Interner.Intern("double")}},
		Arity: []handle.Arity{{Count: 2}},
	}
	_, ok := host.DB.Natives[double.Key()]
	qt.Assert(t, qt.IsTrue(ok))
}

func TestCompileQuestionAgainstCompiledModule(t *testing.T) {
	r := New()
	mod := &ast.Module{
		Scope: ast.Scope{Path: []ast.Atom{"main"}},
		Decls: []ast.Decl{
			{Kind: ast.DeclClause, Clause: &ast.Clause{
				Handle: ast.Handle{
					Scope: ast.Scope{Path: []ast.Atom{"fact"}},
					Arity: []ast.Arity{{Count: 1}},
				},
				HeadArgs: []ast.Pattern{ast.Struct(token.NoPos, "ok", nil)},
				Kind:     ast.Multi,
			}},
		},
	}
	err := r.Compile([]*ast.Module{mod})
	qt.Assert(t, qt.IsNil(err))

	body := &ast.Body{Disjunction: &ast.Disjunction{Cases: []ast.DisjCase{{
		Head: ast.Conjunction{Terms: []ast.Procession{{Steps: []ast.Step{{
			Kind: ast.StepQuery,
			Query: &ast.Query{
				Handle: ast.Handle{Scope: ast.Scope{Path: []ast.Atom{"fact"}}, Arity: []ast.Arity{{Count: 1}}},
				Args:   []ast.Expression{ast.Value(ast.Variable(ast.Identifier{Name: "X"}))},
			},
		}}}}},
	}}}}

	mainScope := handle.Scope{Path: []atom.Atom{r.Interner.Intern("main")}}
	compiled, names, err := r.Compiler().CompileQuestion(mainScope, body)
	qt.Assert(t, qt.IsNil(err))

	x := names["X"]
	var got []string
	for b := range engine.Solve(r.DB, compiled) {
		got = append(got, r.Interner.String(b.Extract(pattern.Var(x)).StructName))
	}
	qt.Assert(t, qt.DeepEquals(got, []string{"ok"}))
}
