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

package resolver

import (
	"strings"
	"testing"

	qt "github.com/go-quicktest/qt"
	"github.com/rogpeppe/go-internal/txtar"

	"lumberlang.dev/lumber/internal/atom"
	"lumberlang.dev/lumber/internal/handle"
)

// parseFixtureArity turns "name/N" into a localHandle, sharing the same
// arity convention (one Arity slice element carrying the full positional
// count) the rest of this package's handles use.
func parseFixtureArity(in *atom.Interner, spec string) handle.Handle {
	name, countStr, _ := strings.Cut(spec, "/")
	var count int
	for _, r := range countStr {
		count = count*10 + int(r-'0')
	}
	return localHandle(in, name, count)
}

// buildRegistryFromTxtar loads a Registry from a golden multi-module
// fixture: one txtar section per module, named after its scope path,
// whose lines are one of:
//
//	define name/arity
//	export name/arity
//	glob modulepath
//	alias name/arity = modulepath::name/arity
//
// This mirrors the teacher's own idiom of expressing multi-file
// resolution fixtures as a single txtar archive rather than a slice of
// Go literals, adapted here since there is no on-disk module format to
// load the archive's sections as source text through.
func buildRegistryFromTxtar(t *testing.T, in *atom.Interner, data string) *Registry {
	t.Helper()
	arc := txtar.Parse([]byte(data))
	r := NewRegistry()

	headers := make(map[string]*ModuleHeader, len(arc.Files))
	for _, f := range arc.Files {
		headers[f.Name] = NewModuleHeader(scope(in, f.Name))
	}
	for _, f := range arc.Files {
		mod := headers[f.Name]
		for _, line := range strings.Split(string(f.Data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			fields := strings.Fields(line)
			switch fields[0] {
			case "define":
				h := parseFixtureArity(in, fields[1])
				mod.Definitions[h.LocalKey()] = h
			case "export":
				h := parseFixtureArity(in, fields[1])
				mod.Exports[h.LocalKey()] = h
			case "glob":
				mod.Globs = append(mod.Globs, scope(in, fields[1]))
			case "alias":
				// alias name/arity = modulepath::name/arity
				aliasHandle := parseFixtureArity(in, fields[1])
				targetMod, targetName, _ := strings.Cut(fields[3], "::")
				target := parseFixtureArity(in, targetName).Relocate(scope(in, targetMod))
				mod.Aliases[aliasHandle.LocalKey()] = Alias{Local: aliasHandle, Target: target}
			default:
				t.Fatalf("unknown fixture directive %q", fields[0])
			}
		}
	}
	for _, h := range headers {
		r.Add(h)
	}
	return r
}

const resolverFixture = `
-- lib --
define helper/1
export helper/1

-- main --
glob lib
alias greet/1 = lib::helper/1
`

func TestResolveFromTxtarFixture(t *testing.T) {
	in := atom.NewInterner()
	r := buildRegistryFromTxtar(t, in, resolverFixture)

	mainScope := scope(in, "main")
	got, err := r.Resolve(mainScope, localHandle(in, "helper", 1))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(got.Scope.Equal(scope(in, "lib"))))

	aliased, err := r.Resolve(mainScope, localHandle(in, "greet", 1))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(aliased.Scope.Equal(scope(in, "lib"))))
}

func scope(in *atom.Interner, names ...string) handle.Scope {
	path := make([]atom.Atom, len(names))
	for i, n := range names {
		path[i] = in.Intern(n)
	}
	return handle.Scope{Path: path}
}

func localHandle(in *atom.Interner, name string, arity int) handle.Handle {
	return handle.Handle{
		Scope: handle.Scope{Path: []atom.Atom{in.Intern(name)}},
		Arity: []handle.Arity{{Count: arity}},
	}
}

func TestResolveFindsLocalDefinitionFirst(t *testing.T) {
	in := atom.NewInterner()
	modScope := scope(in, "main")
	mod := NewModuleHeader(modScope)
	h := localHandle(in, "greet", 1)
	mod.Definitions[h.LocalKey()] = h

	r := NewRegistry()
	r.Add(mod)

	got, err := r.Resolve(modScope, localHandle(in, "greet", 1))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(got.Scope.Equal(modScope), true))
}

func TestResolveFindsThroughGlobImport(t *testing.T) {
	in := atom.NewInterner()
	libScope := scope(in, "lib")
	lib := NewModuleHeader(libScope)
	h := localHandle(in, "helper", 1)
	lib.Definitions[h.LocalKey()] = h
	lib.Exports[h.LocalKey()] = h

	mainScope := scope(in, "main")
	main := NewModuleHeader(mainScope)
	main.Globs = append(main.Globs, libScope)

	r := NewRegistry()
	r.Add(lib)
	r.Add(main)

	got, err := r.Resolve(mainScope, localHandle(in, "helper", 1))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(got.Scope.Equal(libScope)))
}

func TestResolveRejectsUnexportedAcrossUnrelatedModules(t *testing.T) {
	in := atom.NewInterner()
	libScope := scope(in, "lib")
	lib := NewModuleHeader(libScope)
	h := localHandle(in, "private", 1)
	lib.Definitions[h.LocalKey()] = h
	// not exported

	mainScope := scope(in, "main")
	main := NewModuleHeader(mainScope)
	main.Globs = append(main.Globs, libScope)

	r := NewRegistry()
	r.Add(lib)
	r.Add(main)

	_, err := r.Resolve(mainScope, localHandle(in, "private", 1))
	qt.Assert(t, qt.IsNotNil(err))
}

func TestResolveAmbiguousAcrossTwoGlobsFails(t *testing.T) {
	in := atom.NewInterner()
	h := localHandle(in, "dup", 1)

	lib1Scope := scope(in, "lib1")
	lib1 := NewModuleHeader(lib1Scope)
	lib1.Definitions[h.LocalKey()] = h
	lib1.Exports[h.LocalKey()] = h

	lib2Scope := scope(in, "lib2")
	lib2 := NewModuleHeader(lib2Scope)
	lib2.Definitions[h.LocalKey()] = h
	lib2.Exports[h.LocalKey()] = h

	mainScope := scope(in, "main")
	main := NewModuleHeader(mainScope)
	main.Globs = append(main.Globs, lib1Scope, lib2Scope)

	r := NewRegistry()
	r.Add(lib1)
	r.Add(lib2)
	r.Add(main)

	_, err := r.Resolve(mainScope, localHandle(in, "dup", 1))
	qt.Assert(t, qt.IsNotNil(err))
}

func TestResolveFollowsAlias(t *testing.T) {
	in := atom.NewInterner()
	libScope := scope(in, "lib")
	lib := NewModuleHeader(libScope)
	target := localHandle(in, "real", 1)
	lib.Definitions[target.LocalKey()] = target
	lib.Exports[target.LocalKey()] = target

	mainScope := scope(in, "main")
	main := NewModuleHeader(mainScope)
	aliasHandle := localHandle(in, "alias", 1)
	main.Aliases[aliasHandle.LocalKey()] = Alias{Local: aliasHandle, Target: target.Relocate(libScope)}

	r := NewRegistry()
	r.Add(lib)
	r.Add(main)

	got, err := r.Resolve(mainScope, aliasHandle)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(got.Scope.Equal(libScope)))
}

func TestResolveQualifiedBypassesGlobs(t *testing.T) {
	in := atom.NewInterner()
	libScope := scope(in, "lib")
	lib := NewModuleHeader(libScope)
	h := localHandle(in, "fn", 1)
	lib.Definitions[h.LocalKey()] = h
	lib.Exports[h.LocalKey()] = h

	mainScope := scope(in, "main")
	main := NewModuleHeader(mainScope)
	// no glob on main at all; ResolveQualified must still find it directly.

	r := NewRegistry()
	r.Add(lib)
	r.Add(main)

	got, err := r.ResolveQualified(mainScope, libScope, localHandle(in, "fn", 1))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(got.Scope.Equal(libScope)))
}

func TestResolveQualifiedRejectsUnexported(t *testing.T) {
	in := atom.NewInterner()
	libScope := scope(in, "lib")
	lib := NewModuleHeader(libScope)
	h := localHandle(in, "fn", 1)
	lib.Definitions[h.LocalKey()] = h

	mainScope := scope(in, "main")
	main := NewModuleHeader(mainScope)

	r := NewRegistry()
	r.Add(lib)
	r.Add(main)

	_, err := r.ResolveQualified(mainScope, libScope, localHandle(in, "fn", 1))
	qt.Assert(t, qt.IsNotNil(err))
}

func TestErrorsFlagsDanglingGlob(t *testing.T) {
	in := atom.NewInterner()
	mainScope := scope(in, "main")
	main := NewModuleHeader(mainScope)
	main.Globs = append(main.Globs, scope(in, "missing"))

	r := NewRegistry()
	r.Add(main)

	errs := r.Errors(nil)
	qt.Assert(t, qt.HasLen(errs, 1))
}

func TestResolveFollowsMultiHopAliasChain(t *testing.T) {
	in := atom.NewInterner()

	aScope := scope(in, "a")
	a := NewModuleHeader(aScope)
	real := localHandle(in, "real", 1)
	a.Definitions[real.LocalKey()] = real
	a.Exports[real.LocalKey()] = real

	bScope := scope(in, "b")
	b := NewModuleHeader(bScope)
	toA := localHandle(in, "to_a", 1)
	b.Aliases[toA.LocalKey()] = Alias{Local: toA, Target: real.Relocate(aScope)}
	b.Exports[toA.LocalKey()] = toA

	cScope := scope(in, "c")
	c := NewModuleHeader(cScope)
	toB := localHandle(in, "to_b", 1)
	c.Aliases[toB.LocalKey()] = Alias{Local: toB, Target: toA.Relocate(bScope)}

	r := NewRegistry()
	r.Add(a)
	r.Add(b)
	r.Add(c)

	got, err := r.Resolve(cScope, toB)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(got.Scope.Equal(aScope)))
}

func TestResolveDetectsAliasLoop(t *testing.T) {
	in := atom.NewInterner()

	mainScope := scope(in, "main")
	main := NewModuleHeader(mainScope)
	x := localHandle(in, "x", 1)
	y := localHandle(in, "y", 1)
	main.Aliases[x.LocalKey()] = Alias{Local: x, Target: y.Relocate(mainScope)}
	main.Aliases[y.LocalKey()] = Alias{Local: y, Target: x.Relocate(mainScope)}

	r := NewRegistry()
	r.Add(main)

	_, err := r.Resolve(mainScope, x)
	qt.Assert(t, qt.IsNotNil(err))
	qt.Assert(t, qt.StringContains(err.Error(), "alias loop"))
}

func TestErrorsFlagsUnboundNative(t *testing.T) {
	in := atom.NewInterner()
	mainScope := scope(in, "main")
	main := NewModuleHeader(mainScope)
	h := localHandle(in, "sys_call", 1)
	main.Natives[h.LocalKey()] = h

	r := NewRegistry()
	r.Add(main)

	errs := r.Errors(map[handle.Key]bool{})
	qt.Assert(t, qt.HasLen(errs, 1))
	qt.Assert(t, qt.StringContains(errs[0].Error(), "never bound"))
}

func TestErrorsIgnoresBoundNative(t *testing.T) {
	in := atom.NewInterner()
	mainScope := scope(in, "main")
	main := NewModuleHeader(mainScope)
	h := localHandle(in, "sys_call", 1)
	main.Natives[h.LocalKey()] = h

	r := NewRegistry()
	r.Add(main)

	bound := map[handle.Key]bool{h.Relocate(mainScope).Key(): true}
	qt.Assert(t, qt.HasLen(r.Errors(bound), 0))
}

func TestErrorsFlagsNativeConflictingWithDefinition(t *testing.T) {
	in := atom.NewInterner()
	mainScope := scope(in, "main")
	main := NewModuleHeader(mainScope)
	h := localHandle(in, "dup", 1)
	main.Natives[h.LocalKey()] = h
	main.Definitions[h.LocalKey()] = h

	r := NewRegistry()
	r.Add(main)

	errs := r.Errors(map[handle.Key]bool{h.Relocate(mainScope).Key(): true})
	qt.Assert(t, qt.HasLen(errs, 1))
	qt.Assert(t, qt.StringContains(errs[0].Error(), "both native and a definition"))
}

func TestErrorsFlagsExportWithNoTarget(t *testing.T) {
	in := atom.NewInterner()
	mainScope := scope(in, "main")
	main := NewModuleHeader(mainScope)
	h := localHandle(in, "ghost", 1)
	main.Exports[h.LocalKey()] = h
	// not backed by a definition, native or alias.

	r := NewRegistry()
	r.Add(main)

	errs := r.Errors(nil)
	qt.Assert(t, qt.HasLen(errs, 1))
	qt.Assert(t, qt.StringContains(errs[0].Error(), "does not resolve"))
}

func TestErrorsFlagsAliasTargetingMutable(t *testing.T) {
	in := atom.NewInterner()
	mainScope := scope(in, "main")
	main := NewModuleHeader(mainScope)
	counter := localHandle(in, "counter", 1)
	main.Definitions[counter.LocalKey()] = counter
	main.Mutables[counter.LocalKey()] = counter

	aliasHandle := localHandle(in, "c", 1)
	main.Aliases[aliasHandle.LocalKey()] = Alias{Local: aliasHandle, Target: counter.Relocate(mainScope)}

	r := NewRegistry()
	r.Add(main)

	errs := r.Errors(nil)
	qt.Assert(t, qt.HasLen(errs, 1))
	qt.Assert(t, qt.StringContains(errs[0].Error(), "targets mutable predicate"))
}

func TestErrorsFlagsLocalDefinitionConflictingWithAlias(t *testing.T) {
	in := atom.NewInterner()
	libScope := scope(in, "lib")
	lib := NewModuleHeader(libScope)
	target := localHandle(in, "real", 1)
	lib.Definitions[target.LocalKey()] = target
	lib.Exports[target.LocalKey()] = target

	mainScope := scope(in, "main")
	main := NewModuleHeader(mainScope)
	aliasHandle := localHandle(in, "dup", 1)
	main.Aliases[aliasHandle.LocalKey()] = Alias{Local: aliasHandle, Target: target.Relocate(libScope)}
	main.Definitions[aliasHandle.LocalKey()] = aliasHandle
	// no matching Incomplete entry, so this is a genuine conflict.

	r := NewRegistry()
	r.Add(lib)
	r.Add(main)

	errs := r.Errors(nil)
	qt.Assert(t, qt.HasLen(errs, 1))
	qt.Assert(t, qt.StringContains(errs[0].Error(), "conflicts with an imported alias"))
}

func TestErrorsAllowsIncompleteLocalDefinitionAlongsideAlias(t *testing.T) {
	in := atom.NewInterner()
	libScope := scope(in, "lib")
	lib := NewModuleHeader(libScope)
	target := localHandle(in, "real", 1)
	lib.Definitions[target.LocalKey()] = target
	lib.Exports[target.LocalKey()] = target

	mainScope := scope(in, "main")
	main := NewModuleHeader(mainScope)
	aliasHandle := localHandle(in, "dup", 1)
	main.Aliases[aliasHandle.LocalKey()] = Alias{Local: aliasHandle, Target: target.Relocate(libScope)}
	main.Definitions[aliasHandle.LocalKey()] = aliasHandle
	main.Incompletes[aliasHandle.LocalKey()] = aliasHandle

	r := NewRegistry()
	r.Add(lib)
	r.Add(main)

	qt.Assert(t, qt.HasLen(r.Errors(nil), 0))
}

func TestErrorsFlagsDuplicateAliasTarget(t *testing.T) {
	in := atom.NewInterner()
	libScope := scope(in, "lib")
	lib := NewModuleHeader(libScope)
	target := localHandle(in, "real", 1)
	lib.Definitions[target.LocalKey()] = target
	lib.Exports[target.LocalKey()] = target

	mainScope := scope(in, "main")
	main := NewModuleHeader(mainScope)
	a := localHandle(in, "a", 1)
	b := localHandle(in, "b", 1)
	main.Aliases[a.LocalKey()] = Alias{Local: a, Target: target.Relocate(libScope)}
	main.Aliases[b.LocalKey()] = Alias{Local: b, Target: target.Relocate(libScope)}

	r := NewRegistry()
	r.Add(lib)
	r.Add(main)

	errs := r.Errors(nil)
	qt.Assert(t, qt.HasLen(errs, 1))
	qt.Assert(t, qt.StringContains(errs[0].Error(), "distinct names"))
}

func TestDedupeCollapsesDuplicateHandles(t *testing.T) {
	in := atom.NewInterner()
	h := localHandle(in, "x", 1)
	got := dedupe([]handle.Handle{h, h, h})
	qt.Assert(t, qt.HasLen(got, 1))
}
