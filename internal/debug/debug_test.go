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

package debug

import (
	"testing"

	"github.com/cockroachdb/apd/v3"
	qt "github.com/go-quicktest/qt"

	"lumberlang.dev/lumber/internal/atom"
	"lumberlang.dev/lumber/internal/binding"
	"lumberlang.dev/lumber/internal/pattern"
)

func TestPatternRendersStruct(t *testing.T) {
	in := atom.NewInterner()
	inner := pattern.String("x")
	p := pattern.Struct(in.Intern("wrap"), &inner)
	qt.Assert(t, qt.Equals(Pattern(in, nil, p), `wrap("x")`))
}

func TestPatternRendersUnboundVariable(t *testing.T) {
	in := atom.NewInterner()
	p := pattern.Var(pattern.Variable{ID: 3, Generation: 1})
	qt.Assert(t, qt.Equals(Pattern(in, nil, p), "_3#1"))
}

func TestPatternDereferencesBoundVariable(t *testing.T) {
	in := atom.NewInterner()
	b := binding.New()
	v := b.FreshVariable()
	b.Set(v, pattern.String("resolved"))

	got := Pattern(in, b, pattern.Var(v))
	qt.Assert(t, qt.Equals(got, `"resolved"`))
}

func TestPatternRendersList(t *testing.T) {
	in := atom.NewInterner()
	p := pattern.List([]pattern.Pattern{pattern.Int(apd.New(1, 0)), pattern.Int(apd.New(2, 0))}, nil)
	qt.Assert(t, qt.Equals(Pattern(in, nil, p), "[1, 2]"))
}

func TestPatternRendersOpenList(t *testing.T) {
	in := atom.NewInterner()
	tail := pattern.Var(pattern.Variable{ID: 1})
	p := pattern.List([]pattern.Pattern{pattern.Int(apd.New(1, 0))}, &tail)
	qt.Assert(t, qt.Equals(Pattern(in, nil, p), "[1 | _1#0]"))
}

func TestBindingRendersSortedAssignments(t *testing.T) {
	in := atom.NewInterner()
	b := binding.New()
	v1 := b.FreshVariable()
	v2 := b.FreshVariable()
	b.Set(v2, pattern.String("second"))
	b.Set(v1, pattern.String("first"))

	got := Binding(in, b)
	qt.Assert(t, qt.Equals(got, `{_1#1 = "first", _2#1 = "second"}`))
}
