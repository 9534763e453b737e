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

package binding

import (
	"lumberlang.dev/lumber/internal/atom"
	"lumberlang.dev/lumber/internal/pattern"
)

// Unify attempts to unify lhs and rhs under ages lhsAge/rhsAge — the
// generation any of lhs/rhs's un-aged (Generation == 0) variables should
// be stamped with before comparison, applied lazily to each variable as
// it is encountered rather than by rewriting the whole tree up front.
// This mirrors patterns.rs's unify_patterns_inner, which threads the two
// ages through the recursion instead of calling default_age eagerly.
//
// On success it returns the (possibly mutated) Binding and true. On
// failure it returns false; the Binding may have been partially mutated
// and must be discarded by the caller (the query engine always unifies
// against a Clone it is prepared to throw away).
func Unify(b *Binding, lhs pattern.Pattern, lhsAge uint64, rhs pattern.Pattern, rhsAge uint64) (*Binding, bool) {
	lhs = resolveAged(b, lhs, lhsAge)
	rhs = resolveAged(b, rhs, rhsAge)

	switch {
	case lhs.Kind == pattern.KindBound:
		if rhs.Kind == pattern.KindVariable {
			return b, false
		}
		return b, true
	case rhs.Kind == pattern.KindBound:
		if lhs.Kind == pattern.KindVariable {
			return b, false
		}
		return b, true
	case lhs.Kind == pattern.KindUnbound:
		return b, rhs.Kind == pattern.KindVariable
	case rhs.Kind == pattern.KindUnbound:
		return b, lhs.Kind == pattern.KindVariable
	}

	switch {
	case lhs.Kind == pattern.KindVariable && rhs.Kind == pattern.KindVariable:
		return unifyVarVar(b, lhs.Var, rhs.Var)
	case lhs.Kind == pattern.KindVariable:
		return bindVar(b, lhs.Var, rhs)
	case rhs.Kind == pattern.KindVariable:
		return bindVar(b, rhs.Var, lhs)
	}

	if lhs.Kind != rhs.Kind {
		// An int and a rational may still be the same number (spec.md
		// §9 Open Question (b): equality is mathematical).
		if isNumber(lhs.Kind) && isNumber(rhs.Kind) {
			if lhs.Number.Equal(rhs.Number) {
				return b, true
			}
		}
		return b, false
	}

	switch lhs.Kind {
	case pattern.KindInt, pattern.KindRational:
		return b, lhs.Number.Equal(rhs.Number)
	case pattern.KindString:
		return b, lhs.Str == rhs.Str
	case pattern.KindStruct:
		return unifyStruct(b, lhs, lhsAge, rhs, rhsAge)
	case pattern.KindList:
		return unifyLists(b, lhs.Items, lhs.Tail, lhsAge, rhs.Items, rhs.Tail, rhsAge)
	case pattern.KindRecord:
		return unifyRecords(b, lhs.Fields, lhs.Items, lhs.Tail, lhsAge, rhs.Fields, rhs.Items, rhs.Tail, rhsAge)
	case pattern.KindAll:
		return unifyAll(b, lhs.Items, lhsAge, rhs, rhsAge)
	default:
		return b, false
	}
}

func isNumber(k pattern.Kind) bool {
	return k == pattern.KindInt || k == pattern.KindRational
}

// resolveAged stamps p's current-layer variable (if any and un-aged)
// with age, then follows bound-variable chains exactly like
// Binding.Resolve, aging each link it crosses with the same age — a
// clause's compiled pattern is un-aged throughout, so every variable
// reached while walking it belongs to the same invocation.
func resolveAged(b *Binding, p pattern.Pattern, age uint64) pattern.Pattern {
	for p.Kind == pattern.KindVariable {
		v := p.Var
		if v.Generation == 0 {
			v.Generation = age
		}
		bound, ok := b.Get(v)
		if !ok {
			return pattern.Var(v)
		}
		p = bound
	}
	return p
}

func unifyVarVar(b *Binding, lhs, rhs pattern.Variable) (*Binding, bool) {
	if lhs == rhs {
		return b, true
	}
	if lhs.Less(rhs) {
		b.Set(rhs, pattern.Var(lhs))
	} else {
		b.Set(lhs, pattern.Var(rhs))
	}
	return b, true
}

// bindVar binds v to value, after checking the occurs rule (spec.md
// §4.3 rule 5): v must not itself appear free within value, or the
// binding would create a cyclic pattern.
func bindVar(b *Binding, v pattern.Variable, value pattern.Pattern) (*Binding, bool) {
	occurs := false
	value.Variables()(func(o pattern.Variable) bool {
		if o == v {
			occurs = true
			return false
		}
		return true
	})
	if occurs {
		return b, false
	}
	b.Set(v, value)
	return b, true
}

func unifyStruct(b *Binding, lhs pattern.Pattern, lhsAge uint64, rhs pattern.Pattern, rhsAge uint64) (*Binding, bool) {
	if lhs.StructName != rhs.StructName {
		return b, false
	}
	switch {
	case lhs.StructContents == nil && rhs.StructContents == nil:
		return b, true
	case lhs.StructContents == nil || rhs.StructContents == nil:
		return b, false
	default:
		return Unify(b, *lhs.StructContents, lhsAge, *rhs.StructContents, rhsAge)
	}
}

func unifyAll(b *Binding, alternatives []pattern.Pattern, altAge uint64, other pattern.Pattern, otherAge uint64) (*Binding, bool) {
	for _, alt := range alternatives {
		nb, ok := Unify(b, alt, altAge, other, otherAge)
		if !ok {
			return b, false
		}
		b = nb
	}
	return b, true
}

// unifyLists implements Prolog-style partial list unification: matching
// elements pairwise, then reconciling whatever is left once one side
// runs out, using that side's tail (if it has one, i.e. it is an open
// list) to absorb the other side's remainder.
func unifyLists(b *Binding, aItems []pattern.Pattern, aTail *pattern.Pattern, aAge uint64, bItems []pattern.Pattern, bTail *pattern.Pattern, bAge uint64) (*Binding, bool) {
	for len(aItems) > 0 && len(bItems) > 0 {
		nb, ok := Unify(b, aItems[0], aAge, bItems[0], bAge)
		if !ok {
			return b, false
		}
		b = nb
		aItems = aItems[1:]
		bItems = bItems[1:]
	}
	switch {
	case len(aItems) == 0 && len(bItems) == 0:
		switch {
		case aTail == nil && bTail == nil:
			return b, true
		case aTail != nil && bTail != nil:
			return Unify(b, *aTail, aAge, *bTail, bAge)
		case aTail != nil:
			return Unify(b, *aTail, aAge, pattern.List(nil, nil), bAge)
		default:
			return Unify(b, pattern.List(nil, nil), aAge, *bTail, bAge)
		}
	case len(aItems) == 0:
		if aTail == nil {
			return b, false
		}
		return Unify(b, *aTail, aAge, pattern.List(bItems, bTail), bAge)
	default:
		if bTail == nil {
			return b, false
		}
		return Unify(b, pattern.List(aItems, aTail), aAge, *bTail, bAge)
	}
}

// unifyRecords generalizes unifyLists to spec.md §3's sorted-field
// records with an optional row variable in place of a list tail. Fields
// present in only one side must be absorbed by the other side's row
// variable; when both sides have an open row, a fresh row variable
// represents what remains after each side's unique fields are
// distributed to the other.
func unifyRecords(b *Binding, aFields []atom.Atom, aItems []pattern.Pattern, aRow *pattern.Pattern, aAge uint64, bFields []atom.Atom, bItems []pattern.Pattern, bRow *pattern.Pattern, bAge uint64) (*Binding, bool) {
	var onlyAFields, onlyBFields []atom.Atom
	var onlyAItems, onlyBItems []pattern.Pattern

	i, j := 0, 0
	for i < len(aFields) && j < len(bFields) {
		switch {
		case aFields[i] == bFields[j]:
			nb, ok := Unify(b, aItems[i], aAge, bItems[j], bAge)
			if !ok {
				return b, false
			}
			b = nb
			i++
			j++
		case aFields[i] < bFields[j]:
			onlyAFields = append(onlyAFields, aFields[i])
			onlyAItems = append(onlyAItems, aItems[i])
			i++
		default:
			onlyBFields = append(onlyBFields, bFields[j])
			onlyBItems = append(onlyBItems, bItems[j])
			j++
		}
	}
	for ; i < len(aFields); i++ {
		onlyAFields = append(onlyAFields, aFields[i])
		onlyAItems = append(onlyAItems, aItems[i])
	}
	for ; j < len(bFields); j++ {
		onlyBFields = append(onlyBFields, bFields[j])
		onlyBItems = append(onlyBItems, bItems[j])
	}

	if len(onlyAFields) > 0 && bRow == nil {
		return b, false
	}
	if len(onlyBFields) > 0 && aRow == nil {
		return b, false
	}

	switch {
	case aRow == nil && bRow == nil:
		return b, true
	case aRow != nil && bRow != nil:
		rest := pattern.Var(b.FreshVariable())
		aTarget := pattern.Pattern{Kind: pattern.KindRecord, Fields: onlyBFields, Items: onlyBItems, Tail: &rest}
		bTarget := pattern.Pattern{Kind: pattern.KindRecord, Fields: onlyAFields, Items: onlyAItems, Tail: &rest}
		nb, ok := Unify(b, *aRow, aAge, aTarget, aAge)
		if !ok {
			return b, false
		}
		return Unify(nb, *bRow, bAge, bTarget, bAge)
	case aRow != nil:
		target := pattern.Pattern{Kind: pattern.KindRecord, Fields: onlyBFields, Items: onlyBItems}
		return Unify(b, *aRow, aAge, target, bAge)
	default:
		target := pattern.Pattern{Kind: pattern.KindRecord, Fields: onlyAFields, Items: onlyAItems}
		return Unify(b, *bRow, bAge, target, aAge)
	}
}
