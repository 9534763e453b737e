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

// Package value defines Value, the host-visible marshalled form of an
// internal/pattern.Pattern (spec.md §6): a tagged variant with no
// exposed Variable identity or generation — a solution's remaining
// unbound variables marshal to Unresolved rather than leaking an
// internal handle a host program could not meaningfully do anything
// with. It is grounded on the role cue/cue.Value plays for CUE: the
// public, string-keyed counterpart of an internal, pointer/index-heavy
// evaluator value.
package value

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/mpvl/unique"

	"lumberlang.dev/lumber/internal/atom"
	"lumberlang.dev/lumber/internal/pattern"
)

// Kind tags the shape of a Value.
type Kind int

const (
	Int Kind = iota
	Rational
	String
	Struct
	List
	Record
	Unresolved // a variable the query left unbound
)

// Value is the host-facing result of a Question (spec.md §6).
type Value struct {
	Kind Kind

	IntVal      *apd.Decimal
	RationalVal *big.Rat
	StringVal   string

	StructName     string
	StructContents *Value

	Items []Value
	Tail  *Value // nil for a closed list; non-nil only when Kind == List and the query left the tail unbound

	Fields []string // Record: keys, parallel to Items, already sorted
}

func (v Value) String() string {
	switch v.Kind {
	case Int:
		return v.IntVal.Text('f')
	case Rational:
		return v.RationalVal.RatString()
	case String:
		return strconv_Quote(v.StringVal)
	case Struct:
		if v.StructContents == nil {
			return v.StructName
		}
		return v.StructName + "(" + v.StructContents.String() + ")"
	case List:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			parts[i] = it.String()
		}
		s := "[" + strings.Join(parts, ", ")
		if v.Tail != nil {
			s += " | " + v.Tail.String()
		}
		return s + "]"
	case Record:
		parts := make([]string, len(v.Items))
		for i, it := range v.Items {
			parts[i] = fmt.Sprintf("%s: %s", v.Fields[i], it.String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "_"
	}
}

func strconv_Quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// FromPattern marshals a fully extracted pattern.Pattern (spec.md §5's
// Binding.Extract having already been applied) into a host-visible
// Value.
func FromPattern(in *atom.Interner, p pattern.Pattern) Value {
	switch p.Kind {
	case pattern.KindInt:
		return Value{Kind: Int, IntVal: p.Number.Int}
	case pattern.KindRational:
		return Value{Kind: Rational, RationalVal: p.Number.Rational}
	case pattern.KindString:
		return Value{Kind: String, StringVal: p.Str}
	case pattern.KindVariable:
		return Value{Kind: Unresolved}
	case pattern.KindStruct:
		v := Value{Kind: Struct, StructName: in.String(p.StructName)}
		if p.StructContents != nil {
			c := FromPattern(in, *p.StructContents)
			v.StructContents = &c
		}
		return v
	case pattern.KindList:
		items := make([]Value, len(p.Items))
		for i, it := range p.Items {
			items[i] = FromPattern(in, it)
		}
		v := Value{Kind: List, Items: items}
		if p.Tail != nil {
			t := FromPattern(in, *p.Tail)
			v.Tail = &t
		}
		return v
	case pattern.KindRecord:
		items := make([]Value, len(p.Items))
		fields := make([]string, len(p.Fields))
		for i, it := range p.Items {
			items[i] = FromPattern(in, it)
		}
		for i, f := range p.Fields {
			fields[i] = in.String(f)
		}
		return NewRecord(fields, items)
	default:
		return Value{Kind: Unresolved}
	}
}

// ToPattern builds an internal, un-aged pattern.Pattern from a
// host-supplied Value.
func ToPattern(in *atom.Interner, v Value) pattern.Pattern {
	switch v.Kind {
	case Int:
		return pattern.Int(v.IntVal)
	case Rational:
		return pattern.Rational(v.RationalVal)
	case String:
		return pattern.String(v.StringVal)
	case Struct:
		var contents *pattern.Pattern
		if v.StructContents != nil {
			c := ToPattern(in, *v.StructContents)
			contents = &c
		}
		return pattern.Struct(in.Intern(v.StructName), contents)
	case List:
		items := make([]pattern.Pattern, len(v.Items))
		for i, it := range v.Items {
			items[i] = ToPattern(in, it)
		}
		var tail *pattern.Pattern
		if v.Tail != nil {
			t := ToPattern(in, *v.Tail)
			tail = &t
		}
		return pattern.List(items, tail)
	case Record:
		fields := make(map[atom.Atom]pattern.Pattern, len(v.Items))
		for i, f := range v.Fields {
			fields[in.Intern(f)] = ToPattern(in, v.Items[i])
		}
		return pattern.Record(fields, nil)
	default:
		return pattern.Pattern{}
	}
}

// field pairs one Record key with its Value, for sorting/deduping.
type field struct {
	name string
	val  Value
}

type fieldSet struct {
	fs []field
}

func (s *fieldSet) Len() int           { return len(s.fs) }
func (s *fieldSet) Less(i, j int) bool { return s.fs[i].name < s.fs[j].name }
func (s *fieldSet) Swap(i, j int)      { s.fs[i], s.fs[j] = s.fs[j], s.fs[i] }
func (s *fieldSet) Truncate(n int)     { s.fs = s.fs[:n] }

// NewRecord builds a Record Value from unordered, possibly duplicate-keyed
// fields/items pairs (e.g. assembled field-by-field by a host), sorting
// keys by name and dropping duplicate keys; FromPattern builds its
// Record Values through it too, so Fields are always in name order. A
// repeated key's
// surviving Value is whichever unique.Sort's collapse keeps; callers that
// care which one wins should dedupe their own input first.
func NewRecord(fields []string, items []Value) Value {
	fs := make([]field, len(fields))
	for i, f := range fields {
		fs[i] = field{name: f, val: items[i]}
	}
	s := &fieldSet{fs: fs}
	unique.Sort(s)
	out := Value{Kind: Record, Fields: make([]string, len(s.fs)), Items: make([]Value, len(s.fs))}
	for i, f := range s.fs {
		out.Fields[i] = f.name
		out.Items[i] = f.val
	}
	return out
}
