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

// Package compile lowers parsed ast.Module values into a compiled
// database.Database: interning identifiers, resolving every Handle
// through a resolver.Registry, climbing operators with an
// internal/operator.Table per module, and translating expressions into
// chains of synthesized native-call steps with a fresh destination
// variable, per spec.md §4.1, §4.2 and §6's "compile appends a
// synthesized destination argument" note.
//
// It plays the role internal/core/compile/compile.go plays for CUE:
// the bridge between a syntax-level AST and the runtime's own
// evaluation-ready representation.
package compile

import (
	"fmt"
	"sort"

	"lumberlang.dev/lumber/ast"
	"lumberlang.dev/lumber/errors"
	"lumberlang.dev/lumber/internal/atom"
	"lumberlang.dev/lumber/internal/database"
	"lumberlang.dev/lumber/internal/handle"
	"lumberlang.dev/lumber/internal/operator"
	"lumberlang.dev/lumber/internal/pattern"
	"lumberlang.dev/lumber/internal/resolver"
	"lumberlang.dev/lumber/token"
)

// Compiler accumulates one program's worth of compiled modules. Use
// NewCompiler, call AddModule for every parsed module (order does not
// matter — forward references across modules are resolved in a later
// pass), then Finish.
type Compiler struct {
	interner *atom.Interner
	registry *resolver.Registry
	db       *database.Database
	tables   map[handle.Key]*operator.Table

	pending []pendingModule
	nextVar uint64

	errs     errors.List
	warnings []errors.Warning
}

type pendingModule struct {
	scope handle.Scope
	mod   *ast.Module
}

// NewCompiler creates a Compiler sharing interner with the runtime that
// will eventually run the compiled database.
func NewCompiler(interner *atom.Interner) *Compiler {
	return &Compiler{
		interner: interner,
		registry: resolver.NewRegistry(),
		db:       database.New(),
		tables:   make(map[handle.Key]*operator.Table),
	}
}

// AddModule registers mod's declaration shape (definitions, exports,
// mutables, incompletes, natives, operators, globs) without yet
// compiling clause bodies — bodies are compiled in Finish, once every
// module's shape is known and cross-module references can resolve
// regardless of which module was added first.
func (c *Compiler) AddModule(mod *ast.Module) {
	scope := c.internScope(mod.Scope)
	header := resolver.NewModuleHeader(scope)
	table := operator.NewTable()
	c.tables[scope.Key()] = table

	for _, d := range mod.Decls {
		switch d.Kind {
		case ast.DeclClause:
			h := c.internHandle(d.Clause.Handle)
			header.Definitions[h.LocalKey()] = h
		case ast.DeclPub:
			h := c.internHandle(*d.Pub)
			header.Exports[h.LocalKey()] = h
		case ast.DeclMut:
			h := c.internHandle(*d.Mut)
			header.Mutables[h.LocalKey()] = h
		case ast.DeclIncomplete:
			h := c.internHandle(*d.Incomplete)
			header.Incompletes[h.LocalKey()] = h
		case ast.DeclNative:
			h := c.internHandle(*d.Native)
			header.Natives[h.LocalKey()] = h
		case ast.DeclUse:
			if d.Use.Alias == nil {
				header.Globs = append(header.Globs, c.internScope(d.Use.Module))
			}
		case ast.DeclOp:
			table.Register(
				operator.Key{Atom: d.Op.Operator, Arity: d.Op.Arity},
				operator.Operator{
					Precedence: d.Op.Precedence,
					Assoc:      d.Op.Assoc,
					Handle:     d.Op.Handle,
				},
			)
		}
	}

	c.registry.Add(header)
	c.pending = append(c.pending, pendingModule{scope: scope, mod: mod})
}

// Finish resolves every alias, validates the registry, then compiles
// every clause body, returning the finished Database.
func (c *Compiler) Finish() (*database.Database, error) {
	for _, pm := range c.pending {
		header := c.registry.Modules[pm.scope.Key()]
		for _, d := range pm.mod.Decls {
			if d.Kind != ast.DeclUse || d.Use.Alias == nil {
				continue
			}
			srcModule := c.internScope(d.Use.Module)
			var local handle.Handle
			if d.Use.Source != nil {
				local = c.localHandle(*d.Use.Source)
			}
			// Stored raw (possibly still an alias itself, possibly in an
			// as-yet-uncompiled module): resolve/resolveQualified chase
			// through this themselves, so a multi-hop chain across
			// modules resolves regardless of which one was added first.
			aliasHandle := c.internHandle(*d.Use.Alias)
			header.Aliases[aliasHandle.LocalKey()] = resolver.Alias{
				Local:  aliasHandle,
				Target: local.Relocate(srcModule),
			}
		}
	}

	bound := make(map[handle.Key]bool, len(c.db.Natives))
	for k := range c.db.Natives {
		bound[k] = true
	}
	for _, err := range c.registry.Errors(bound) {
		c.errs.Add(errors.Newf(errors.Resolution, token.NoPos, "%v", err))
	}

	for _, pm := range c.pending {
		c.compileModuleBodies(pm)
	}

	if err := c.errs.Sanitize().Err(); err != nil {
		return nil, err
	}
	return c.db, nil
}

func (c *Compiler) compileModuleBodies(pm pendingModule) {
	table := c.tables[pm.scope.Key()]
	for _, d := range pm.mod.Decls {
		if d.Kind != ast.DeclClause {
			continue
		}
		cl := d.Clause
		h := c.internHandle(cl.Handle).Relocate(pm.scope)
		c.checkSingletons(cl)
		ctx := &clauseCtx{
			compiler:    c,
			moduleScope: pm.scope,
			table:       table,
			vars:        make(map[ast.Atom]pattern.Variable),
		}

		headArgs := make([]pattern.Pattern, len(cl.HeadArgs))
		for i, p := range cl.HeadArgs {
			headArgs[i] = ctx.lowerPattern(p)
		}

		var body *database.Body
		if cl.Body != nil {
			b, err := ctx.lowerBody(cl.Body)
			if err != nil {
				c.errs.Add(errors.Newf(errors.Resolution, cl.Pos, "%v", err))
				continue
			}
			body = b
		}

		c.db.AddClause(h, database.Clause{HeadArgs: headArgs, Kind: cl.Kind, Body: body})
	}
}

// checkSingletons implements spec.md §3's invariant: every identifier
// occurring in a clause's head and body must occur at least twice
// across the two, or be a wildcard; otherwise it is almost certainly a
// typo, and earns a Warning rather than a hard compile error.
func (c *Compiler) checkSingletons(cl *ast.Clause) {
	counts := make(map[ast.Atom]int)
	first := make(map[ast.Atom]token.Pos)
	record := func(id ast.Identifier) bool {
		counts[id.Name]++
		if _, ok := first[id.Name]; !ok {
			first[id.Name] = id.Pos
		}
		return true
	}
	for _, p := range cl.HeadArgs {
		p.Identifiers(record)
	}
	if cl.Body != nil {
		cl.Body.Identifiers(record)
	}

	names := make([]ast.Atom, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if counts[name] == 1 {
			c.warnings = append(c.warnings, errors.Warning{
				Pos:     first[name],
				Message: fmt.Sprintf("singleton variable %s", name),
			})
		}
	}
}

// Warnings returns every non-fatal diagnostic accumulated while
// compiling — currently just singleton-variable warnings (spec.md §3).
func (c *Compiler) Warnings() []errors.Warning {
	return c.warnings
}

// SeedNatives pre-populates this compiler's database with natives
// already bound on the host (runtime.Runtime.RegisterNative) before
// Finish runs, so the registry's Errors pass can see them when checking
// for natives declared but never bound.
func (c *Compiler) SeedNatives(natives map[handle.Key]database.NativeFunc, handles map[handle.Key]handle.Handle) {
	for k, fn := range natives {
		c.db.Natives[k] = fn
		if h, ok := handles[k]; ok {
			c.db.NativeHandles[k] = h
		}
	}
}

// ModuleHeaders returns every module header registered with this
// compiler so far, used by runtime.Runtime.Link to rebase a compiled
// library's declarations onto a host Interner.
func (c *Compiler) ModuleHeaders() []*resolver.ModuleHeader {
	headers := make([]*resolver.ModuleHeader, 0, len(c.registry.Modules))
	for _, h := range c.registry.Modules {
		headers = append(headers, h)
	}
	return headers
}

// LinkLibrary registers an already-compiled (and atom-translated)
// library module header into this compiler's own registry, so its
// declarations participate in resolve/Errors exactly like a module
// declared directly in this program.
func (c *Compiler) LinkLibrary(header *resolver.ModuleHeader) {
	c.registry.Add(header)
}

// CompileQuestion lowers an ad hoc body — spec.md §6's Question, never
// itself a module declaration — against scope's already-registered
// module header and operator table. It returns the compiled Body
// alongside the name each of the question's own named identifiers (not
// `_`/wildcards) was allocated to, so a caller can later project
// extracted values back into the Map<String, Value> §6 describes
// Program::ask producing.
//
// Finish need not have succeeded for CompileQuestion to run: a syntax
// error in some unrelated module does not prevent a later, independent
// question compiled against a module whose own header resolved cleanly.
func (c *Compiler) CompileQuestion(scope handle.Scope, body *ast.Body) (*database.Body, map[string]pattern.Variable, error) {
	table, ok := c.tables[scope.Key()]
	if !ok {
		table = operator.NewTable()
	}
	ctx := &clauseCtx{
		compiler:    c,
		moduleScope: scope,
		table:       table,
		vars:        make(map[ast.Atom]pattern.Variable),
	}
	b, err := ctx.lowerBody(body)
	if err != nil {
		return nil, nil, err
	}
	return b, ctx.vars, nil
}

func (c *Compiler) freshVar() pattern.Variable {
	c.nextVar++
	return pattern.Variable{ID: c.nextVar, Generation: 0}
}

func (c *Compiler) internScope(s ast.Scope) handle.Scope {
	var lib atom.Atom
	if s.Library != "" {
		lib = c.interner.Intern(string(s.Library))
	}
	path := make([]atom.Atom, len(s.Path))
	for i, p := range s.Path {
		path[i] = c.interner.Intern(string(p))
	}
	return handle.Scope{Library: lib, Path: path}
}

func (c *Compiler) internArity(a []ast.Arity) []handle.Arity {
	out := make([]handle.Arity, len(a))
	for i, it := range a {
		if it.Named {
			out[i] = handle.Arity{Named: true, Name: c.interner.Intern(string(it.Name))}
		} else {
			out[i] = handle.Arity{Count: it.Count}
		}
	}
	return out
}

func (c *Compiler) internHandle(h ast.Handle) handle.Handle {
	return handle.Handle{Scope: c.internScope(h.Scope), Arity: c.internArity(h.Arity)}
}

// localHandle interns h as a module-relative handle: only its own
// trailing name survives into Scope, discarding whatever module prefix
// it may have been written with (the prefix is resolved separately, by
// the call site, as the target module itself).
func (c *Compiler) localHandle(h ast.Handle) handle.Handle {
	hh := c.internHandle(h)
	if n := len(hh.Scope.Path); n > 0 {
		hh.Scope = handle.Scope{Path: []atom.Atom{hh.Scope.Path[n-1]}}
	}
	return hh
}
