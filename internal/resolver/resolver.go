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

// Package resolver implements spec.md §4.1's multi-module name
// resolution: glob imports, aliases, ambiguity detection and
// public/private visibility. It is grounded on agdust/lumber's
// src/ast/module_header.rs, whose ModuleHeader this package's
// ModuleHeader mirrors for globs, natives, exports, mutables,
// incompletes, definitions and aliases (operator tables are kept by
// internal/compile rather than in the header), adapted to the
// atom-interned handle.Handle identity this module uses instead of
// Rust's derive(Hash, Eq) structs.
package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mpvl/unique"

	"lumberlang.dev/lumber/internal/atom"
	"lumberlang.dev/lumber/internal/handle"
)

// ModuleHeader is the resolved declaration surface of one compiled
// module: everything needed to answer "what does identifier X refer to
// from inside this module", short of the clause bodies themselves.
type ModuleHeader struct {
	Scope handle.Scope

	// Definitions, Natives, Exports, Mutables and Incompletes are all
	// keyed by the local (module-relative) handle.Key — scope path of
	// length 1 (just the predicate's own name) plus arity — and all
	// carry the declared Handle itself, not just a presence flag, so a
	// linked library's header can be rebased onto a different Interner
	// (Runtime.Link) and so Errors can name the offending handle.
	Definitions map[handle.Key]handle.Handle
	Natives     map[handle.Key]handle.Handle
	Exports     map[handle.Key]handle.Handle
	Mutables    map[handle.Key]handle.Handle
	Incompletes map[handle.Key]handle.Handle

	// Aliases maps a local alias handle.Key to its declaration: Local is
	// the alias's own module-relative handle (kept, rather than just
	// discarded after computing the key, so a library's header can be
	// rebased onto a different Interner); Target is the raw (possibly
	// itself an alias, possibly library-qualified) reference the `:- use
	// mod::name/N as alias/N.` declaration named — resolve/resolveQualified
	// chase through this themselves, so a multi-hop chain resolves
	// regardless of which module was compiled first.
	Aliases map[handle.Key]Alias

	// Globs lists the modules imported with `:- use mod::*.`, searched
	// in declaration order when a bare identifier matches nothing local.
	Globs []handle.Scope
}

// Alias is one `:- use mod::name/N as alias/N.` declaration.
type Alias struct {
	Local  handle.Handle
	Target handle.Handle
}

// NewModuleHeader returns an empty header rooted at scope.
func NewModuleHeader(scope handle.Scope) *ModuleHeader {
	return &ModuleHeader{
		Scope:       scope,
		Definitions: make(map[handle.Key]handle.Handle),
		Natives:     make(map[handle.Key]handle.Handle),
		Exports:     make(map[handle.Key]handle.Handle),
		Mutables:    make(map[handle.Key]handle.Handle),
		Incompletes: make(map[handle.Key]handle.Handle),
		Aliases:     make(map[handle.Key]Alias),
	}
}

// Registry holds every compiled module's header, keyed by scope.
type Registry struct {
	Modules map[handle.Key]*ModuleHeader
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{Modules: make(map[handle.Key]*ModuleHeader)}
}

// Add registers mod, keyed by its own scope.
func (r *Registry) Add(mod *ModuleHeader) {
	r.Modules[mod.Scope.Key()] = mod
}

// Resolve answers "what does local refer to, used from inside from".
// local is always module-relative (its Scope has exactly one path
// element: the identifier's own name); the caller is responsible for
// having already expanded any explicit `mod::name` qualification into
// an absolute Scope before calling Resolve with that module directly,
// matching spec.md §4.1's separation between module-path resolution
// (glob/alias driven) and the final arity lookup within the resolved
// module.
func (r *Registry) Resolve(from handle.Scope, local handle.Handle) (handle.Handle, error) {
	mod, ok := r.Modules[from.Key()]
	if !ok {
		return handle.Handle{}, fmt.Errorf("resolver: unknown module %v", from)
	}
	return r.resolve(mod, local, map[handle.Key]bool{mod.Scope.Key(): true}, nil)
}

func (r *Registry) resolve(mod *ModuleHeader, local handle.Handle, visitedModules map[handle.Key]bool, aliasPath []handle.Key) (handle.Handle, error) {
	k := local.Key()

	if al, ok := mod.Aliases[k]; ok {
		return r.followAlias(mod, local, al.Target, aliasPath)
	}
	if _, ok := mod.Definitions[k]; ok {
		return local.Relocate(mod.Scope), nil
	}
	if _, ok := mod.Natives[k]; ok {
		return local.Relocate(mod.Scope), nil
	}

	var candidates []handle.Handle
	for _, g := range mod.Globs {
		gk := g.Key()
		if visitedModules[gk] {
			continue
		}
		gmod, ok := r.Modules[gk]
		if !ok {
			continue
		}
		nv := make(map[handle.Key]bool, len(visitedModules)+1)
		for v := range visitedModules {
			nv[v] = true
		}
		nv[gk] = true

		res, err := r.resolve(gmod, local, nv, aliasPath)
		if err != nil {
			continue
		}
		if r.visible(mod.Scope, res) {
			candidates = append(candidates, res)
		}
	}
	candidates = dedupe(candidates)

	switch len(candidates) {
	case 0:
		return handle.Handle{}, fmt.Errorf("resolver: %v not found from scope %v", local, mod.Scope)
	case 1:
		return candidates[0], nil
	default:
		return handle.Handle{}, fmt.Errorf("resolver: %v is ambiguous from scope %v (%d candidates)", local, mod.Scope, len(candidates))
	}
}

// ResolveQualified looks up local directly inside target (an explicitly
// `mod::name/N`-qualified reference never falls back to glob search),
// checking visibility from caller's perspective rather than target's —
// the distinction bare Resolve does not need, since there caller and
// the searched module are the same.
func (r *Registry) ResolveQualified(caller, target handle.Scope, local handle.Handle) (handle.Handle, error) {
	return r.resolveQualified(caller, target, local, nil)
}

func (r *Registry) resolveQualified(caller, target handle.Scope, local handle.Handle, aliasPath []handle.Key) (handle.Handle, error) {
	mod, ok := r.Modules[target.Key()]
	if !ok {
		return handle.Handle{}, fmt.Errorf("resolver: unknown module %v", target)
	}
	k := local.Key()

	var resolved handle.Handle
	if _, ok := mod.Definitions[k]; ok {
		resolved = local.Relocate(mod.Scope)
	} else if _, ok := mod.Natives[k]; ok {
		resolved = local.Relocate(mod.Scope)
	} else if al, ok := mod.Aliases[k]; ok {
		res, err := r.followAliasQualified(caller, mod, local, al.Target, aliasPath)
		if err != nil {
			return handle.Handle{}, err
		}
		resolved = res
	} else {
		return handle.Handle{}, fmt.Errorf("resolver: %v not found in module %v", local, target)
	}
	if !r.visible(caller, resolved) {
		return handle.Handle{}, fmt.Errorf("resolver: %v in module %v is not visible from %v", local, target, caller)
	}
	return resolved, nil
}

// followAlias chases raw — the target a `:- use ... as ...` declaration
// named, itself possibly another alias in its own module — recursing
// with mod.Scope's visibility rules, per spec.md §4.1 step 2. aliasPath
// tracks every alias handle already dereferenced on this chain; revisiting
// one is an alias loop, reported with the full chain.
func (r *Registry) followAlias(mod *ModuleHeader, local handle.Handle, raw handle.Handle, aliasPath []handle.Key) (handle.Handle, error) {
	here := local.Relocate(mod.Scope).Key()
	for _, k := range aliasPath {
		if k == here {
			return handle.Handle{}, aliasLoopError(append(aliasPath, here))
		}
	}
	nextPath := append(append([]handle.Key{}, aliasPath...), here)

	targetScope := moduleScopeOf(raw)
	targetMod, ok := r.Modules[targetScope.Key()]
	if !ok {
		return handle.Handle{}, fmt.Errorf("resolver: alias target module %v not found", targetScope)
	}
	return r.resolve(targetMod, localOf(raw), map[handle.Key]bool{targetMod.Scope.Key(): true}, nextPath)
}

// followAliasQualified is followAlias's ResolveQualified-side
// counterpart: visibility is still checked from caller's perspective by
// resolveQualified's own caller, once this returns.
func (r *Registry) followAliasQualified(caller handle.Scope, mod *ModuleHeader, local handle.Handle, raw handle.Handle, aliasPath []handle.Key) (handle.Handle, error) {
	here := local.Relocate(mod.Scope).Key()
	for _, k := range aliasPath {
		if k == here {
			return handle.Handle{}, aliasLoopError(append(aliasPath, here))
		}
	}
	nextPath := append(append([]handle.Key{}, aliasPath...), here)
	return r.resolveQualified(caller, moduleScopeOf(raw), localOf(raw), nextPath)
}

func aliasLoopError(path []handle.Key) error {
	names := make([]string, len(path))
	for i, k := range path {
		names[i] = string(k)
	}
	return fmt.Errorf("resolver: alias loop: %s", strings.Join(names, " -> "))
}

// moduleScopeOf returns the module scope an absolute handle's own
// definition lives in: every path element but the last.
func moduleScopeOf(h handle.Handle) handle.Scope {
	n := len(h.Scope.Path)
	if n == 0 {
		return handle.Scope{Library: h.Scope.Library}
	}
	return handle.Scope{Library: h.Scope.Library, Path: h.Scope.Path[:n-1]}
}

// localOf strips an absolute handle down to the module-relative form
// (just its own trailing name) resolve/resolveQualified expect as local.
func localOf(h handle.Handle) handle.Handle {
	n := len(h.Scope.Path)
	if n == 0 {
		return handle.Handle{Arity: h.Arity}
	}
	return handle.Handle{Scope: handle.Scope{Path: []atom.Atom{h.Scope.Path[n-1]}}, Arity: h.Arity}
}

// visible implements spec.md §4.1 step 4: a handle found while globbing
// is usable from "from" either because "from" is within the defining
// module's own subtree (private access from inside, or to an ancestor),
// or because the definition is explicitly exported.
func (r *Registry) visible(from handle.Scope, target handle.Handle) bool {
	if from.IsAncestorOrEqual(target.Scope) || target.Scope.IsAncestorOrEqual(from) {
		return true
	}
	definingMod, ok := r.Modules[moduleScopeOf(target).Key()]
	if !ok {
		return false
	}
	_, ok = definingMod.Exports[target.LocalKey()]
	return ok
}

// handleSet adapts a []handle.Handle to mpvl/unique's sort-then-collapse
// Interface (spec.md §4.1 step 3's candidate set): sorting by Key first
// makes every duplicate resolution of the same handle adjacent, so
// Sort's single pass can drop them with Truncate rather than this
// package tracking a seen-set of its own.
type handleSet struct {
	hs []handle.Handle
}

func (s *handleSet) Len() int      { return len(s.hs) }
func (s *handleSet) Less(i, j int) bool { return s.hs[i].Key() < s.hs[j].Key() }
func (s *handleSet) Swap(i, j int) { s.hs[i], s.hs[j] = s.hs[j], s.hs[i] }
func (s *handleSet) Truncate(n int) { s.hs = s.hs[:n] }

// dedupe collapses hs to its distinct handles, used by resolve to turn a
// glob search's raw candidate list into the 0/1/≥2 count §4.1 step 3's
// ambiguity decision switches on.
func dedupe(hs []handle.Handle) []handle.Handle {
	s := &handleSet{hs: hs}
	unique.Sort(s)
	return s.hs
}

// Errors validates every module's declarations against each other and
// against bound (the absolute handle.Key of every native the host has
// actually registered a NativeFunc under), the way module_header.rs's
// ModuleHeader::errors walks its own declarations looking for dangling
// references, conflicting declarations and alias cycles before the
// database is considered compiled (spec.md §4.1's Error pass). Pass nil
// for bound to skip the unbound-native check (e.g. validating a header
// before any host bindings exist yet).
func (r *Registry) Errors(bound map[handle.Key]bool) []error {
	var errs []error

	keys := make([]handle.Key, 0, len(r.Modules))
	for k := range r.Modules {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		mod := r.Modules[k]

		for _, g := range mod.Globs {
			if _, ok := r.Modules[g.Key()]; !ok {
				if g.Library != atom.Invalid {
					errs = append(errs, fmt.Errorf("resolver: module %v uses %v from an unlinked library", mod.Scope, g))
				} else {
					errs = append(errs, fmt.Errorf("resolver: module %v uses unknown module %v", mod.Scope, g))
				}
			}
		}

		errs = append(errs, r.nativeErrors(mod, bound)...)
		errs = append(errs, r.exportErrors(mod)...)
		errs = append(errs, r.aliasErrors(mod)...)
	}
	return errs
}

// nativeErrors implements the §3 invariant that a native handle may not
// also be a definition, alias, mutable or incomplete, plus the
// unbound-native check: every `:- native name/N.` must have a
// corresponding NativeFunc the host actually registered.
func (r *Registry) nativeErrors(mod *ModuleHeader, bound map[handle.Key]bool) []error {
	var errs []error
	for _, lk := range sortedKeys(mod.Natives) {
		h := mod.Natives[lk]
		abs := h.Relocate(mod.Scope)
		if bound != nil && !bound[abs.Key()] {
			errs = append(errs, fmt.Errorf("resolver: native %v declared in module %v is never bound by the host", abs, mod.Scope))
		}
		if _, ok := mod.Definitions[lk]; ok {
			errs = append(errs, fmt.Errorf("resolver: %v in module %v is declared both native and a definition", abs, mod.Scope))
		}
		if _, ok := mod.Aliases[lk]; ok {
			errs = append(errs, fmt.Errorf("resolver: %v in module %v is declared both native and an alias", abs, mod.Scope))
		}
		if _, ok := mod.Mutables[lk]; ok {
			errs = append(errs, fmt.Errorf("resolver: %v in module %v is declared both native and mutable", abs, mod.Scope))
		}
		if _, ok := mod.Incompletes[lk]; ok {
			errs = append(errs, fmt.Errorf("resolver: %v in module %v is declared both native and incomplete", abs, mod.Scope))
		}
	}
	return errs
}

// exportErrors flags a `:- pub name/N.` that names neither a local
// definition, a local native, nor an alias (which may itself resolve
// elsewhere) — it has nothing to actually export.
func (r *Registry) exportErrors(mod *ModuleHeader) []error {
	var errs []error
	for _, lk := range sortedKeys(mod.Exports) {
		h := mod.Exports[lk]
		if _, ok := mod.Definitions[lk]; ok {
			continue
		}
		if _, ok := mod.Natives[lk]; ok {
			continue
		}
		if _, ok := mod.Aliases[lk]; ok {
			continue
		}
		errs = append(errs, fmt.Errorf("resolver: export %v in module %v does not resolve to any definition or native", h.Relocate(mod.Scope), mod.Scope))
	}
	return errs
}

// aliasErrors resolves every alias mod declares (chasing through
// resolveQualified exactly as a real reference would, including alias
// loops), flags one that lands on a mutable or incomplete predicate or
// that shadows a local non-incomplete definition of the same name, and
// flags the same target aliased under more than one distinct local
// name (reported once per target, per spec.md §4.1's Error pass).
func (r *Registry) aliasErrors(mod *ModuleHeader) []error {
	var errs []error
	targetNames := make(map[handle.Key][]handle.Key)

	for _, lk := range sortedAliasKeys(mod.Aliases) {
		raw := mod.Aliases[lk].Target
		resolved, err := r.resolveQualified(mod.Scope, moduleScopeOf(raw), localOf(raw), nil)
		if err != nil {
			errs = append(errs, fmt.Errorf("resolver: alias %v in module %v: %v", lk, mod.Scope, err))
			continue
		}
		if targetMod, ok := r.Modules[moduleScopeOf(resolved).Key()]; ok {
			if _, ok := targetMod.Mutables[resolved.LocalKey()]; ok {
				errs = append(errs, fmt.Errorf("resolver: alias %v in module %v targets mutable predicate %v", lk, mod.Scope, resolved))
			}
			if _, ok := targetMod.Incompletes[resolved.LocalKey()]; ok {
				errs = append(errs, fmt.Errorf("resolver: alias %v in module %v targets incomplete predicate %v", lk, mod.Scope, resolved))
			}
		}
		if _, ok := mod.Definitions[lk]; ok {
			if _, incomplete := mod.Incompletes[lk]; !incomplete {
				errs = append(errs, fmt.Errorf("resolver: local definition %v in module %v conflicts with an imported alias of the same name", lk, mod.Scope))
			}
		}
		targetNames[resolved.Key()] = append(targetNames[resolved.Key()], lk)
	}

	targets := make([]handle.Key, 0, len(targetNames))
	for tk := range targetNames {
		targets = append(targets, tk)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	for _, tk := range targets {
		if names := targetNames[tk]; len(names) > 1 {
			errs = append(errs, fmt.Errorf("resolver: module %v aliases the same target under %d distinct names", mod.Scope, len(names)))
		}
	}
	return errs
}

func sortedKeys(m map[handle.Key]handle.Handle) []handle.Key {
	keys := make([]handle.Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedAliasKeys(m map[handle.Key]Alias) []handle.Key {
	keys := make([]handle.Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
