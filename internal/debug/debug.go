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

// Package debug renders a Pattern, Binding or compiled Body as an
// s-expression-shaped string. There is no query-engine background
// activity to log (spec.md §5: the engine only ever does work while a
// caller is pulling on an iterator) but the lazy search itself is hard
// to inspect from outside, so this package exists to make one pulled
// step visible on demand rather than to run continuously like a logger.
// It is grounded on cue/debug.go and internal/core/adt/debug.go, which
// split the same way: hand-written formatters for the evaluator's own
// tagged node kinds, falling back to github.com/kr/pretty only for
// foreign/host values it does not know how to render structurally.
package debug

import (
	"fmt"
	"strings"

	"github.com/kr/pretty"

	"lumberlang.dev/lumber/internal/atom"
	"lumberlang.dev/lumber/internal/binding"
	"lumberlang.dev/lumber/internal/pattern"
)

// Pattern renders p using in to resolve atoms back to their source
// names, dereferencing variables already bound in b if b is non-nil.
func Pattern(in *atom.Interner, b *binding.Binding, p pattern.Pattern) string {
	var out strings.Builder
	writePattern(&out, in, b, p)
	return out.String()
}

func writePattern(out *strings.Builder, in *atom.Interner, b *binding.Binding, p pattern.Pattern) {
	switch p.Kind {
	case pattern.KindInt, pattern.KindRational:
		out.WriteString(p.Number.String())
	case pattern.KindString:
		fmt.Fprintf(out, "%q", p.Str)
	case pattern.KindVariable:
		if b != nil {
			if resolved, ok := tryResolve(b, p); ok {
				writePattern(out, in, b, resolved)
				return
			}
		}
		fmt.Fprintf(out, "_%d#%d", p.Var.ID, p.Var.Generation)
	case pattern.KindStruct:
		out.WriteString(in.String(p.StructName))
		if p.StructContents != nil {
			out.WriteByte('(')
			writePattern(out, in, b, *p.StructContents)
			out.WriteByte(')')
		}
	case pattern.KindList:
		out.WriteByte('[')
		for i, it := range p.Items {
			if i > 0 {
				out.WriteString(", ")
			}
			writePattern(out, in, b, it)
		}
		if p.Tail != nil {
			out.WriteString(" | ")
			writePattern(out, in, b, *p.Tail)
		}
		out.WriteByte(']')
	case pattern.KindRecord:
		out.WriteByte('{')
		for i, f := range p.Fields {
			if i > 0 {
				out.WriteString(", ")
			}
			fmt.Fprintf(out, "%s: ", in.String(f))
			writePattern(out, in, b, p.Items[i])
		}
		if p.Tail != nil {
			out.WriteString(", ..")
			writePattern(out, in, b, *p.Tail)
		}
		out.WriteByte('}')
	case pattern.KindAll:
		out.WriteString("all(")
		for i, it := range p.Items {
			if i > 0 {
				out.WriteString(", ")
			}
			writePattern(out, in, b, it)
		}
		out.WriteByte(')')
	case pattern.KindBound:
		out.WriteString("bound")
	case pattern.KindUnbound:
		out.WriteString("unbound")
	default:
		fmt.Fprintf(out, "%# v", pretty.Formatter(p))
	}
}

func tryResolve(b *binding.Binding, p pattern.Pattern) (pattern.Pattern, bool) {
	r := b.Resolve(p)
	if r.Kind == pattern.KindVariable && r.Var == p.Var {
		return pattern.Pattern{}, false
	}
	return r, true
}

// Binding renders every variable b currently has a value for, in
// deterministic (sorted) order — used by tests and by ad hoc tracing
// rather than by any production code path.
func Binding(in *atom.Interner, b *binding.Binding) string {
	vars := b.Variables()
	var out strings.Builder
	out.WriteString("{")
	for i, v := range vars {
		if i > 0 {
			out.WriteString(", ")
		}
		val, _ := b.Get(v)
		fmt.Fprintf(&out, "_%d#%d = %s", v.ID, v.Generation, Pattern(in, b, val))
	}
	out.WriteString("}")
	return out.String()
}
