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

// natives.go supplies the built-in arithmetic and comparison predicates
// spec.md §4.2's default operator table binds to — the handles `:- op`
// declarations for `+`, `-`, `*`, `/`, `<`, `>`, `=<`, `>=` resolve to in
// a module that does not redefine them. They are implemented as
// NativeFunc values using cockroachdb/apd for integer arithmetic, the
// same arbitrary-precision decimal library internal/pattern.Number
// stores literals in.
package engine

import (
	"iter"
	"math/big"

	"github.com/cockroachdb/apd/v3"

	"lumberlang.dev/lumber/internal/binding"
	"lumberlang.dev/lumber/internal/database"
	"lumberlang.dev/lumber/internal/pattern"
)

var arithCtx = apd.BaseContext.WithPrecision(200)

// binaryArith builds a NativeFunc for a two-operand arithmetic operator
// called as op(A, B, Dest): both A and B must already be bound to
// numbers when the call runs (spec.md §4.5 leaves argument-mode
// checking to the native itself), and exactly one result — the computed
// Dest — is produced.
func binaryArith(op func(ctx *apd.Context, z, x, y *apd.Decimal) (apd.Condition, error)) database.NativeFunc {
	return func(b *binding.Binding, args []pattern.Pattern) iter.Seq[[]pattern.Pattern] {
		return func(yield func([]pattern.Pattern) bool) {
			if len(args) != 3 {
				return
			}
			x := b.Extract(args[0])
			y := b.Extract(args[1])
			if x.Kind != pattern.KindInt || y.Kind != pattern.KindInt {
				return
			}
			z := new(apd.Decimal)
			if _, err := op(arithCtx, z, x.Number.Int, y.Number.Int); err != nil {
				return
			}
			yield([]pattern.Pattern{x, y, pattern.Int(z)})
		}
	}
}

func compare(cmp func(a, b int) bool) database.NativeFunc {
	return func(b *binding.Binding, args []pattern.Pattern) iter.Seq[[]pattern.Pattern] {
		return func(yield func([]pattern.Pattern) bool) {
			if len(args) != 2 {
				return
			}
			x := b.Extract(args[0])
			y := b.Extract(args[1])
			if !isNumeric(x) || !isNumeric(y) {
				return
			}
			if cmp(compareNumbers(x.Number, y.Number), 0) {
				yield([]pattern.Pattern{x, y})
			}
		}
	}
}

func isNumeric(p pattern.Pattern) bool {
	return p.Kind == pattern.KindInt || p.Kind == pattern.KindRational
}

func compareNumbers(a, b pattern.Number) int {
	ra, rb := asRat(a), asRat(b)
	return ra.Cmp(rb)
}

func asRat(n pattern.Number) *big.Rat {
	if n.Rational != nil {
		return n.Rational
	}
	r := new(big.Rat)
	r.SetString(n.Int.Text('f'))
	return r
}

// Builtin is one entry of the default arithmetic/comparison library:
// Arity is the predicate's real total parameter count (for the four
// arithmetic operators this already includes the destination value
// position expression calls synthesize; comparisons produce no value
// and so need none).
type Builtin struct {
	Name  string
	Arity int
	Func  database.NativeFunc
}

// StandardLibrary returns the default arithmetic/comparison natives that
// runtime.New registers on every Runtime (a Builder with Core(false)
// discards them before compiling), matching the role module_header.rs's natives
// set plays for predicates the host (rather than any Lumber module)
// answers.
func StandardLibrary() []Builtin {
	return []Builtin{
		{"+", 3, binaryArith((*apd.Context).Add)},
		{"-", 3, binaryArith((*apd.Context).Sub)},
		{"*", 3, binaryArith((*apd.Context).Mul)},
		{"/", 3, binaryArith((*apd.Context).Quo)},
		{"<", 2, compare(func(a, b int) bool { return a < b })},
		{">", 2, compare(func(a, b int) bool { return a > b })},
		{"=<", 2, compare(func(a, b int) bool { return a <= b })},
		{">=", 2, compare(func(a, b int) bool { return a >= b })},
	}
}
