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

package pattern

import (
	"math/big"
	"testing"

	"github.com/cockroachdb/apd/v3"
	qt "github.com/go-quicktest/qt"

	"lumberlang.dev/lumber/internal/atom"
)

func decimal(t *testing.T, s string) *apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(s)
	qt.Assert(t, qt.IsNil(err))
	return d
}

func TestNumberEqualMixedRepresentation(t *testing.T) {
	three := Number{Int: decimal(t, "3")}
	threeOverOne := Number{Rational: big.NewRat(3, 1)}
	threeOverTwo := Number{Rational: big.NewRat(3, 2)}

	qt.Assert(t, qt.IsTrue(three.Equal(threeOverOne)))
	qt.Assert(t, qt.IsTrue(threeOverOne.Equal(three)))
	qt.Assert(t, qt.IsFalse(three.Equal(threeOverTwo)))
}

func TestVariableLessOrdersByGenerationThenID(t *testing.T) {
	outer := Variable{ID: 100, Generation: 1}
	inner := Variable{ID: 1, Generation: 2}
	qt.Assert(t, qt.IsTrue(outer.Less(inner)))
	qt.Assert(t, qt.IsFalse(inner.Less(outer)))

	a := Variable{ID: 1, Generation: 5}
	b := Variable{ID: 2, Generation: 5}
	qt.Assert(t, qt.IsTrue(a.Less(b)))
}

func TestRecordSortsFieldsByKey(t *testing.T) {
	in := atom.NewInterner()
	zName, yName, aName := in.Intern("z"), in.Intern("y"), in.Intern("a")

	r := Record(map[atom.Atom]Pattern{
		zName: Int(decimal(t, "1")),
		yName: Int(decimal(t, "2")),
		aName: Int(decimal(t, "3")),
	}, nil)

	qt.Assert(t, qt.DeepEquals(r.Fields, []atom.Atom{zName, yName, aName}))
}

func TestIsGround(t *testing.T) {
	v := Var(Variable{ID: 1, Generation: 1})
	qt.Assert(t, qt.IsFalse(v.IsGround()))

	closed := List([]Pattern{Int(decimal(t, "1")), String("x")}, nil)
	qt.Assert(t, qt.IsTrue(closed.IsGround()))

	open := List([]Pattern{Int(decimal(t, "1"))}, &v)
	qt.Assert(t, qt.IsFalse(open.IsGround()))
}

func TestVariablesWalksNestedShapes(t *testing.T) {
	in := atom.NewInterner()
	v1 := Variable{ID: 1, Generation: 1}
	v2 := Variable{ID: 2, Generation: 1}

	s := Struct(in.Intern("pair"), &Pattern{
		Kind:  KindList,
		Items: []Pattern{Var(v1), Var(v2)},
	})

	var got []Variable
	s.Variables()(func(v Variable) bool {
		got = append(got, v)
		return true
	})
	qt.Assert(t, qt.DeepEquals(got, []Variable{v1, v2}))
}

func TestDefaultAgeOnlyFillsUnaged(t *testing.T) {
	alreadyAged := Variable{ID: 1, Generation: 7}
	unaged := Variable{ID: 2, Generation: 0}

	p := List([]Pattern{Var(alreadyAged), Var(unaged)}, nil)
	aged := p.DefaultAge(9)

	qt.Assert(t, qt.Equals(aged.Items[0].Var.Generation, uint64(7)))
	qt.Assert(t, qt.Equals(aged.Items[1].Var.Generation, uint64(9)))
}
