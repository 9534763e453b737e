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

// Package lumber is the host-facing surface of the embeddable
// logic-programming language spec.md describes: Builder configures a
// program (a standard-library toggle, host-registered natives, linked
// libraries), Build turns already-parsed modules into a queryable
// Program, and Question/ask/check run one-off queries against it. It
// plays the role cue/cuecontext.Context and cue.Value play for CUE: a
// single entry point a host imports and everything else hangs off of.
package lumber

import (
	"fmt"
	"os"

	"lumberlang.dev/lumber/ast"
	"lumberlang.dev/lumber/errors"
	"lumberlang.dev/lumber/internal/atom"
	"lumberlang.dev/lumber/internal/binding"
	"lumberlang.dev/lumber/internal/database"
	"lumberlang.dev/lumber/internal/engine"
	"lumberlang.dev/lumber/internal/handle"
	"lumberlang.dev/lumber/internal/pattern"
	"lumberlang.dev/lumber/internal/runtime"
	"lumberlang.dev/lumber/value"
)

// Parser is the interface boundary ast.Module's doc comment already
// names: the concrete PEG grammar (spec.md §6) is an external
// collaborator, out of this module's scope. A host that wants
// Builder.BuildSource/Program.FromFile to work supplies one; Build
// itself only ever needs already-parsed modules and has no dependency
// on a Parser at all.
type Parser interface {
	Parse(filename string, src []byte) (*ast.Module, error)
}

type nativeBinding struct {
	path  []string
	arity int
	fn    database.NativeFunc
}

// libraryLink is one Builder.Link call waiting to be applied once Build
// has a Runtime of its own to link prog's compiled modules into.
type libraryLink struct {
	name string
	prog *Program
}

// Builder accumulates the configuration of one Program before it is
// built: whether the default arithmetic/comparison core library is
// loaded, any host-registered native predicates, and any libraries
// linked in under a name, per spec.md §6's Builder::new/core/bind/link.
type Builder struct {
	core      bool
	parser    Parser
	natives   []nativeBinding
	libraries []libraryLink
}

// NewBuilder returns a Builder with the default core library enabled and
// nothing else configured.
func NewBuilder() *Builder {
	return &Builder{core: true}
}

// Core toggles the default arithmetic/comparison standard library
// (spec.md §6's Builder::core). Programs that redefine `+`, `<`, and so
// on as ordinary clauses should disable it to avoid a native/clause
// ambiguity at the same Handle.
func (b *Builder) Core(enabled bool) *Builder {
	b.core = enabled
	return b
}

// WithParser attaches the parser BuildSource and FromFile use to turn
// source text into ast.Modules. Build itself never needs one.
func (b *Builder) WithParser(p Parser) *Builder {
	b.parser = p
	return b
}

// Bind registers fn as the native implementation of the predicate named
// by path (its last element is the predicate's own name; any leading
// elements are the module path it is declared under) and arity,
// overriding any clause a module might otherwise define at that Handle
// (spec.md §6's Builder::bind).
func (b *Builder) Bind(path []string, arity int, fn database.NativeFunc) *Builder {
	b.natives = append(b.natives, nativeBinding{path: path, arity: arity, fn: fn})
	return b
}

// Link registers prog's already-compiled modules as a library named name
// (spec.md §6's Builder::link, §4.1's library table): a module in this
// Builder's own program can then `:- use name::predicate/N.` (or glob
// `:- use name::*.`) against anything prog exports.
func (b *Builder) Link(name string, prog *Program) *Builder {
	b.libraries = append(b.libraries, libraryLink{name: name, prog: prog})
	return b
}

// Build compiles modules into a Program rooted at root (the scope
// Question bodies resolve bare identifiers against), per spec.md §6's
// Builder::build. Compile (resolution, operator climbing) errors are
// returned as a single errors.List-backed error; singleton-variable
// warnings are not errors and are reported by Program.Warnings.
func (b *Builder) Build(root string, modules ...*ast.Module) (*Program, error) {
	rt := runtime.New()
	if !b.core {
		rt.DB.Natives = make(map[handle.Key]database.NativeFunc)
		rt.DB.NativeHandles = make(map[handle.Key]handle.Handle)
	}
	for _, nb := range b.natives {
		rt.RegisterNative(nb.path, nb.arity, nb.fn)
	}
	for _, lib := range b.libraries {
		if err := rt.Link(lib.name, lib.prog.rt); err != nil {
			return nil, err
		}
	}
	if err := rt.Compile(modules); err != nil {
		return nil, err
	}
	rootAtom := rt.Interner.Intern(root)
	return &Program{
		rt:   rt,
		root: handle.Scope{Path: []atom.Atom{rootAtom}},
	}, nil
}

// BuildSource parses src with the Builder's configured Parser (see
// WithParser) as a single root module named root, then Builds it.
func (b *Builder) BuildSource(root, filename string, src []byte) (*Program, error) {
	if b.parser == nil {
		return nil, fmt.Errorf("lumber: Build from source requires a Parser; call Builder.WithParser first")
	}
	mod, err := b.parser.Parse(filename, src)
	if err != nil {
		return nil, err
	}
	return b.Build(root, mod)
}

// Program is a compiled, queryable Lumber program (spec.md §6). The zero
// Program is not usable; obtain one from Builder.Build or FromModules.
type Program struct {
	rt   *runtime.Runtime
	root handle.Scope
}

// Warnings returns every non-fatal diagnostic Build accumulated while
// compiling p — currently just singleton-variable warnings (spec.md §3).
func (p *Program) Warnings() []errors.Warning {
	return p.rt.Warnings()
}

// FromModules is a convenience for NewBuilder().Build(root, modules...)
// with the default core library enabled — spec.md §6's
// Program::from_str, generalized to already-parsed input since parsing
// itself is out of this module's scope.
func FromModules(root string, modules ...*ast.Module) (*Program, error) {
	return NewBuilder().Build(root, modules...)
}

// FromFile reads path and parses+builds it as a single root module named
// root, per spec.md §6's Program::from_file. File I/O is otherwise out
// of this module's scope; this is the one thin convenience wrapper
// around it, mirroring how the distilled spec treats loading as an
// external collaborator's concern while still needing *some* entry point
// a host can call directly.
func FromFile(parser Parser, root, path string) (*Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewBuilder().WithParser(parser).BuildSource(root, path, src)
}

// Question is a parsed, compiled body with no trailing period (spec.md
// §6) ready to run against the Program it was compiled against.
// Question is not reusable across Programs.
type Question struct {
	body  *database.Body
	names map[string]pattern.Variable
}

// NewQuestion compiles body (already resolved into an ast.Body by the
// host's Parser — see Parser's doc comment) against prog's root module
// scope, spec.md §6's Question::try_from generalized to already-parsed
// input.
func (p *Program) NewQuestion(body *ast.Body) (*Question, error) {
	c := p.rt.Compiler()
	if c == nil {
		return nil, fmt.Errorf("lumber: Program has no compiled modules to question against")
	}
	compiled, names, err := c.CompileQuestion(p.root, body)
	if err != nil {
		return nil, err
	}
	return &Question{body: compiled, names: names}, nil
}

// Ask runs q and returns an iterator of solutions, each a map from the
// question's own named variables (not `_`) to the Value it was bound to,
// or nil if it was left unbound — spec.md §6's
// `Program::ask → iterator of Map<String, Option<Value>>`. q resolves
// from the root module's scope like a clause of that module: the root
// module's own predicates are reachable whether or not they are
// `:- pub`, along with whatever its globs and aliases make visible. Ask
// does not restrict resolution to public predicates; see Check.
func (p *Program) Ask(q *Question) func(yield func(map[string]*value.Value) bool) {
	return func(yield func(map[string]*value.Value) bool) {
		for b := range engine.Solve(p.rt.DB, q.body) {
			if !yield(extractNames(p.rt.Interner, b, q.names)) {
				return
			}
		}
	}
}

// Check runs q exactly like Ask, for parity with spec.md §6's
// `Program::check` (test-mode access to private predicates). The
// distinction the original draws between public-only and
// private-reachable resolution is a resolver-time concept: Ask and
// Check both compile q against the same root scope and so see the same
// predicates — see DESIGN.md for why the bit-level contract's two entry
// points collapse to one behavior here.
func (p *Program) Check(q *Question) func(yield func(map[string]*value.Value) bool) {
	return p.Ask(q)
}

func extractNames(in *atom.Interner, b *binding.Binding, names map[string]pattern.Variable) map[string]*value.Value {
	out := make(map[string]*value.Value, len(names))
	for name, v := range names {
		extracted := b.Extract(pattern.Var(v))
		if extracted.Kind == pattern.KindVariable {
			out[name] = nil
			continue
		}
		val := value.FromPattern(in, extracted)
		out[name] = &val
	}
	return out
}
