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
	"lumberlang.dev/lumber/internal/atom"
	"lumberlang.dev/lumber/internal/database"
	"lumberlang.dev/lumber/internal/handle"
	"lumberlang.dev/lumber/internal/pattern"
	"lumberlang.dev/lumber/internal/resolver"
)

// translator rebases every atom a linked library's compiled Database and
// ModuleHeaders carry from the library's own Interner onto the host's,
// since an atom.Atom is only ever a meaningful integer against the
// Interner that minted it (spec.md §3). libAtom is the name the library
// was linked under, rooting every one of its own module scopes (spec.md
// §4.1's "dispatch to that library's resolve").
type translator struct {
	from, to *atom.Interner
	libAtom  atom.Atom
	cache    map[atom.Atom]atom.Atom
}

func newTranslator(from, to *atom.Interner, libAtom atom.Atom) *translator {
	return &translator{from: from, to: to, libAtom: libAtom, cache: make(map[atom.Atom]atom.Atom)}
}

func (t *translator) atom(a atom.Atom) atom.Atom {
	if a == atom.Invalid {
		return atom.Invalid
	}
	if got, ok := t.cache[a]; ok {
		return got
	}
	got := t.to.Intern(t.from.String(a))
	t.cache[a] = got
	return got
}

func (t *translator) scope(s handle.Scope) handle.Scope {
	path := make([]atom.Atom, len(s.Path))
	for i, a := range s.Path {
		path[i] = t.atom(a)
	}
	lib := t.libAtom
	if s.Library != atom.Invalid {
		lib = t.atom(s.Library)
	}
	return handle.Scope{Library: lib, Path: path}
}

func (t *translator) arity(as []handle.Arity) []handle.Arity {
	out := make([]handle.Arity, len(as))
	for i, a := range as {
		if a.Named {
			out[i] = handle.Arity{Named: true, Name: t.atom(a.Name)}
		} else {
			out[i] = handle.Arity{Count: a.Count}
		}
	}
	return out
}

func (t *translator) handle(h handle.Handle) handle.Handle {
	return handle.Handle{Scope: t.scope(h.Scope), Arity: t.arity(h.Arity)}
}

func (t *translator) pattern(p pattern.Pattern) pattern.Pattern {
	switch p.Kind {
	case pattern.KindStruct:
		p.StructName = t.atom(p.StructName)
		if p.StructContents != nil {
			c := t.pattern(*p.StructContents)
			p.StructContents = &c
		}
	case pattern.KindList, pattern.KindRecord, pattern.KindAll:
		p.Items = t.patterns(p.Items)
		if p.Fields != nil {
			fields := make([]atom.Atom, len(p.Fields))
			for i, f := range p.Fields {
				fields[i] = t.atom(f)
			}
			p.Fields = fields
		}
		if p.Tail != nil {
			tail := t.pattern(*p.Tail)
			p.Tail = &tail
		}
	}
	return p
}

func (t *translator) patterns(ps []pattern.Pattern) []pattern.Pattern {
	out := make([]pattern.Pattern, len(ps))
	for i, p := range ps {
		out[i] = t.pattern(p)
	}
	return out
}

func (t *translator) step(s database.Step) database.Step {
	out := s
	switch s.Kind {
	case database.StepQuery:
		out.Handle = t.handle(s.Handle)
		out.Args = t.patterns(s.Args)
	case database.StepBody:
		out.Body = t.body(s.Body)
	case database.StepUnify:
		out.Lhs = t.pattern(s.Lhs)
		out.Rhs = t.pattern(s.Rhs)
	case database.StepAggregate:
		out.Body = t.body(s.Body)
		out.Dest = t.pattern(s.Dest)
		out.Pattern = t.pattern(s.Pattern)
	}
	return out
}

func (t *translator) procession(p database.Procession) database.Procession {
	steps := make([]database.Step, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = t.step(s)
	}
	return database.Procession{Steps: steps}
}

func (t *translator) conjunction(c database.Conjunction) database.Conjunction {
	terms := make([]database.Procession, len(c.Terms))
	for i, p := range c.Terms {
		terms[i] = t.procession(p)
	}
	return database.Conjunction{Terms: terms}
}

func (t *translator) disjCase(d database.DisjCase) database.DisjCase {
	out := database.DisjCase{Head: t.conjunction(d.Head)}
	if d.Tail != nil {
		tail := t.conjunction(*d.Tail)
		out.Tail = &tail
	}
	return out
}

func (t *translator) body(b *database.Body) *database.Body {
	if b == nil || b.Disjunction == nil {
		return b
	}
	cases := make([]database.DisjCase, len(b.Disjunction.Cases))
	for i, c := range b.Disjunction.Cases {
		cases[i] = t.disjCase(c)
	}
	return &database.Body{Disjunction: &database.Disjunction{Cases: cases}}
}

func (t *translator) clause(cl database.Clause) database.Clause {
	return database.Clause{
		HeadArgs: t.patterns(cl.HeadArgs),
		Kind:     cl.Kind,
		Body:     t.body(cl.Body),
	}
}

func (t *translator) definition(def *database.Definition) *database.Definition {
	out := &database.Definition{Handle: t.handle(def.Handle)}
	out.Clauses = make([]database.Clause, len(def.Clauses))
	for i, cl := range def.Clauses {
		out.Clauses[i] = t.clause(cl)
	}
	return out
}

// header rebases h — one module's declaration shape — onto t.to,
// rooting it in t.libAtom so it is found through the registered
// library's own scope (handle.Scope.Key already folds Library in).
func (t *translator) header(h *resolver.ModuleHeader) *resolver.ModuleHeader {
	out := resolver.NewModuleHeader(t.scope(h.Scope))

	for _, v := range h.Definitions {
		hh := t.handle(v)
		out.Definitions[hh.LocalKey()] = hh
	}
	for _, v := range h.Natives {
		hh := t.handle(v)
		out.Natives[hh.LocalKey()] = hh
	}
	for _, v := range h.Exports {
		hh := t.handle(v)
		out.Exports[hh.LocalKey()] = hh
	}
	for _, v := range h.Mutables {
		hh := t.handle(v)
		out.Mutables[hh.LocalKey()] = hh
	}
	for _, v := range h.Incompletes {
		hh := t.handle(v)
		out.Incompletes[hh.LocalKey()] = hh
	}
	for _, al := range h.Aliases {
		local := t.handle(al.Local)
		target := t.handle(al.Target)
		out.Aliases[local.LocalKey()] = resolver.Alias{Local: local, Target: target}
	}
	for _, g := range h.Globs {
		out.Globs = append(out.Globs, t.scope(g))
	}

	return out
}
