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

// Package runtime is spec.md §6's single mutable container: the one
// Interner and compiled Database a Builder accumulates modules and
// native registrations into, and a Program runs queries against. There
// is no on-disk configuration layer (spec.md's scope has none to carry
// over) — Runtime itself is the configuration object, the way
// cue/cuecontext.Context is the single handle CUE call sites thread
// through rather than reading ambient global state.
package runtime

import (
	"fmt"

	"lumberlang.dev/lumber/ast"
	"lumberlang.dev/lumber/errors"
	"lumberlang.dev/lumber/internal/atom"
	"lumberlang.dev/lumber/internal/compile"
	"lumberlang.dev/lumber/internal/database"
	"lumberlang.dev/lumber/internal/engine"
	"lumberlang.dev/lumber/internal/handle"
	"lumberlang.dev/lumber/internal/resolver"
)

// Runtime owns the atom interner and compiled database for one Lumber
// program. It is not safe for concurrent use (spec.md §5: the engine is
// single-threaded cooperative).
type Runtime struct {
	Interner *atom.Interner
	DB       *database.Database

	// Libraries is spec.md §4.1's Input "library table (Atom → compiled
	// library database)": every Runtime linked in via Link, keyed by the
	// Atom it was linked under and rebased onto this Runtime's own
	// Interner, merged into DB on every subsequent Compile.
	Libraries map[atom.Atom]*database.Database

	// libraryHeaders holds every linked library's atom-translated module
	// headers, re-registered into the registry of each freshly built
	// Compiler — Compile constructs one from scratch on every call, so a
	// library linked before that call must be re-applied each time.
	libraryHeaders []*resolver.ModuleHeader

	// compiler is the Compiler that produced DB, kept alive so a Question
	// (an ad hoc body compiled after the fact, outside any module) can
	// still resolve bare and qualified handles through the same registry
	// and operator tables the program's modules compiled against.
	compiler *compile.Compiler
}

// New returns a Runtime with the default standard library already
// registered, but no user modules compiled yet.
func New() *Runtime {
	r := &Runtime{
		Interner:  atom.NewInterner(),
		DB:        database.New(),
		Libraries: make(map[atom.Atom]*database.Database),
	}
	r.loadStandardLibrary()
	return r
}

func (r *Runtime) loadStandardLibrary() {
	for _, b := range engine.StandardLibrary() {
		name := r.Interner.Intern(b.Name)
		h := handle.Handle{
			Scope: handle.Scope{Path: []atom.Atom{name}},
			Arity: []handle.Arity{{Count: b.Arity}},
		}
		r.DB.RegisterNative(h, b.Func)
	}
}

// Compile lowers modules into r's Database, replacing any previously
// compiled definitions (natives registered via RegisterNative survive,
// since they are seeded into the new Compiler before Finish runs, so
// the resolver's unbound-native check can see them too). Every library
// linked in with Link is re-registered and re-merged on each call, since
// a fresh Compiler and Database are built from scratch every time.
func (r *Runtime) Compile(modules []*ast.Module) error {
	c := compile.NewCompiler(r.Interner)
	c.SeedNatives(r.DB.Natives, r.DB.NativeHandles)
	for _, header := range r.libraryHeaders {
		c.LinkLibrary(header)
	}
	for _, m := range modules {
		c.AddModule(m)
	}
	db, err := c.Finish()
	if err != nil {
		return err
	}
	for _, lib := range r.Libraries {
		for k, def := range lib.Definitions {
			db.Definitions[k] = def
		}
		for k, fn := range lib.Natives {
			db.Natives[k] = fn
		}
		for k, h := range lib.NativeHandles {
			db.NativeHandles[k] = h
		}
	}
	r.DB = db
	r.compiler = c
	return nil
}

// Warnings returns every non-fatal diagnostic Compile's last run
// accumulated (spec.md §3's singleton-variable check), or nil if Compile
// has never been called.
func (r *Runtime) Warnings() []errors.Warning {
	if r.compiler == nil {
		return nil
	}
	return r.compiler.Warnings()
}

// Link registers lib's compiled modules under name as a linked library
// (spec.md §4.1's Input "a library table (Atom → compiled library
// database)", §6's Builder::link). lib must already have compiled
// modules of its own. Every atom lib's Database and module headers carry
// — struct names, record field keys, handle scopes and arities — is
// rebased from lib's own Interner onto r's, since an atom.Atom is only
// ever meaningful against the Interner that minted it, then re-rooted
// under name so it is found through the ordinary glob/alias resolution
// path once name is glob-imported or aliased from.
func (r *Runtime) Link(name string, lib *Runtime) error {
	if lib.compiler == nil {
		return fmt.Errorf("runtime: library %q has no compiled modules to link", name)
	}

	libAtom := r.Interner.Intern(name)
	tr := newTranslator(lib.Interner, r.Interner, libAtom)

	libDB := database.New()
	for _, def := range lib.DB.Definitions {
		translated := tr.definition(def)
		libDB.Definitions[translated.Handle.Key()] = translated
	}
	for k, h := range lib.DB.NativeHandles {
		fn, ok := lib.DB.Natives[k]
		if !ok {
			continue
		}
		libDB.RegisterNative(tr.handle(h), fn)
	}

	for _, header := range lib.compiler.ModuleHeaders() {
		r.libraryHeaders = append(r.libraryHeaders, tr.header(header))
	}

	r.Libraries[libAtom] = libDB
	return nil
}

// Compiler returns the Compiler that produced DB, or nil if Compile has
// never been called. Program uses it to lower Questions against the
// same module registry and operator tables the program's own clauses
// resolved against.
func (r *Runtime) Compiler() *compile.Compiler {
	return r.compiler
}

// RegisterNative wires fn as the native implementation of the predicate
// named path/arity (path's last element is the predicate's own name,
// any elements before it are the module path it is declared under).
func (r *Runtime) RegisterNative(path []string, arity int, fn database.NativeFunc) {
	atoms := make([]atom.Atom, len(path))
	for i, p := range path {
		atoms[i] = r.Interner.Intern(p)
	}
	h := handle.Handle{
		Scope: handle.Scope{Path: atoms},
		Arity: []handle.Arity{{Count: arity}},
	}
	r.DB.RegisterNative(h, fn)
}
