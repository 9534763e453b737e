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

// Package pattern implements spec.md §3's Pattern algebra: the tagged
// value type unification and the query engine operate on. It is grounded
// on agdust/lumber's src/program/unification/patterns.rs and on
// internal/core/adt's Value/Expr tagged-variant approach, trimmed to the
// variants spec.md names.
package pattern

import (
	"math/big"
	"sort"

	"github.com/cockroachdb/apd/v3"

	"lumberlang.dev/lumber/internal/atom"
)

// Kind tags the shape of a Pattern.
type Kind int

const (
	KindInt Kind = iota
	KindRational
	KindString
	KindVariable
	KindStruct
	KindList
	KindRecord
	KindAll
	KindBound
	KindUnbound
)

// Variable is spec.md §3's (id, generation) pair. A Generation of 0 is
// the "un-aged" sentinel a freshly compiled clause's variables carry
// until unification stamps them with the call's generation
// (internal/binding applies spec.md §3's default_age(g) lazily; §5's
// generation mechanism). DefaultAge below is the eager form.
type Variable struct {
	ID         uint64
	Generation uint64
}

// Less is the natural total order spec.md §4.3 rule 2 uses to pick a
// canonical representative when two unbound variables unify: the
// variable from the outer (numerically smaller) generation wins, so
// that after the inner generation's frame is popped (spec.md §5
// end_generation) the surviving binding is still reachable from the
// outer scope that can observe it.
func (v Variable) Less(other Variable) bool {
	if v.Generation != other.Generation {
		return v.Generation < other.Generation
	}
	return v.ID < other.ID
}

// Number is a single numeric literal value, using cockroachdb/apd's
// arbitrary-precision Decimal for integers (apd.Decimal with exponent 0)
// and math/big.Rat for rationals — see SPEC_FULL.md §B for why these two
// stand in for the out-of-scope numeric library.
type Number struct {
	Int      *apd.Decimal
	Rational *big.Rat
}

// Equal implements spec.md §9's "mathematical equality" resolution of
// Open Question (b): 3 and 3/1 are equal even though one is encoded as
// an integer and the other as a rational.
func (n Number) Equal(o Number) bool {
	switch {
	case n.Int != nil && o.Int != nil:
		return n.Int.Cmp(o.Int) == 0
	case n.Rational != nil && o.Rational != nil:
		return n.Rational.Cmp(o.Rational) == 0
	case n.Int != nil && o.Rational != nil:
		return asRat(n.Int).Cmp(o.Rational) == 0
	case n.Rational != nil && o.Int != nil:
		return n.Rational.Cmp(asRat(o.Int)) == 0
	}
	return false
}

func asRat(d *apd.Decimal) *big.Rat {
	r := new(big.Rat)
	r.SetString(d.Text('f'))
	return r
}

func (n Number) String() string {
	if n.Int != nil {
		return n.Int.Text('f')
	}
	return n.Rational.RatString()
}

// Pattern is spec.md §3's tagged runtime value. The zero Pattern is
// never meaningful; use one of the constructors.
type Pattern struct {
	Kind Kind

	Var    Variable // KindVariable
	Number Number   // KindInt, KindRational
	Str    string   // KindString

	StructName     atom.Atom // KindStruct
	StructContents *Pattern  // KindStruct, nil for a bare atom

	// KindList: Items are the elements, Tail (nil for a closed list) is
	// the variable or nested list that follows them.
	// KindRecord: Items are the field values, Fields the parallel keys,
	// sorted by ascending atom value, i.e. interning order rather than
	// spelling (the SortedMap of spec.md §3); Tail
	// (nil for a closed record) is the row variable.
	// KindAll: Items are the alternative constraints.
	Items  []Pattern
	Fields []atom.Atom
	Tail   *Pattern
}

func Int(d *apd.Decimal) Pattern      { return Pattern{Kind: KindInt, Number: Number{Int: d}} }
func Rational(r *big.Rat) Pattern     { return Pattern{Kind: KindRational, Number: Number{Rational: r}} }
func String(s string) Pattern         { return Pattern{Kind: KindString, Str: s} }
func Var(v Variable) Pattern          { return Pattern{Kind: KindVariable, Var: v} }
func Bound() Pattern                  { return Pattern{Kind: KindBound} }
func Unbound() Pattern                { return Pattern{Kind: KindUnbound} }

func Struct(name atom.Atom, contents *Pattern) Pattern {
	return Pattern{Kind: KindStruct, StructName: name, StructContents: contents}
}

func List(items []Pattern, tail *Pattern) Pattern {
	return Pattern{Kind: KindList, Items: items, Tail: tail}
}

// Record builds a record pattern, sorting fields by key as spec.md §3's
// SortedMap requires, so Equal/structural comparisons of two closed
// records never depend on the order fields were supplied in.
func Record(fields map[atom.Atom]Pattern, row *Pattern) Pattern {
	keys := make([]atom.Atom, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	items := make([]Pattern, len(keys))
	for i, k := range keys {
		items[i] = fields[k]
	}
	return Pattern{Kind: KindRecord, Fields: keys, Items: items, Tail: row}
}

func All(alternatives []Pattern) Pattern {
	return Pattern{Kind: KindAll, Items: alternatives}
}

// IsGround reports whether p contains no variables at all (a necessary,
// not sufficient, condition for Binding.extract to succeed on it without
// dereferencing).
func (p Pattern) IsGround() bool {
	ground := true
	p.Variables()(func(Variable) bool {
		ground = false
		return false
	})
	return ground
}

// Variables returns an iterator over every variable occurring (free)
// in p, used by the occurs check (spec.md §4.3 rule 5) and by IsGround.
func (p Pattern) Variables() func(yield func(Variable) bool) bool {
	return func(yield func(Variable) bool) bool {
		return p.walkVariables(yield)
	}
}

func (p Pattern) walkVariables(yield func(Variable) bool) bool {
	switch p.Kind {
	case KindVariable:
		return yield(p.Var)
	case KindStruct:
		if p.StructContents != nil {
			return p.StructContents.walkVariables(yield)
		}
		return true
	case KindList, KindRecord, KindAll:
		for _, item := range p.Items {
			if !item.walkVariables(yield) {
				return false
			}
		}
		if p.Tail != nil {
			return p.Tail.walkVariables(yield)
		}
		return true
	default:
		return true
	}
}

// DefaultAge fills every un-aged (Generation == 0) variable in p with g,
// implementing spec.md §3's default_age(g). Variables that already carry
// a generation are left untouched.
func (p Pattern) DefaultAge(g uint64) Pattern {
	switch p.Kind {
	case KindVariable:
		if p.Var.Generation == 0 {
			p.Var.Generation = g
		}
		return p
	case KindStruct:
		if p.StructContents != nil {
			c := p.StructContents.DefaultAge(g)
			p.StructContents = &c
		}
		return p
	case KindList, KindRecord, KindAll:
		items := make([]Pattern, len(p.Items))
		for i, it := range p.Items {
			items[i] = it.DefaultAge(g)
		}
		p.Items = items
		if p.Tail != nil {
			t := p.Tail.DefaultAge(g)
			p.Tail = &t
		}
		return p
	default:
		return p
	}
}
