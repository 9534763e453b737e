// Copyright 2018 The CUE Authors
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

package ast

import (
	"math/big"

	"github.com/cockroachdb/apd/v3"

	"lumberlang.dev/lumber/token"
)

// PatternKind tags the syntactic shape of a Pattern, mirroring spec.md
// §3's tagged variant one-for-one at the AST level. Numeric literals
// arrive already parsed: the arbitrary-precision numeric library is an
// out-of-scope external collaborator (spec.md §1), so the parser is
// assumed to have already turned literal text into an apd.Decimal or
// big.Rat before handing Lumber this tree.
type PatternKind int

const (
	LiteralInt PatternKind = iota
	LiteralRational
	LiteralString
	PatVariable
	PatStruct
	PatList
	PatRecord
	PatAll
	PatBound
	PatUnbound
)

// RecordField is one key/value pair of a record pattern literal.
type RecordField struct {
	Key   Atom
	Value Pattern
}

// Pattern is the syntactic form of spec.md §3's Pattern. It carries no
// generation tag — that is assigned when internal/compile lowers it into
// internal/pattern.Pattern.
type Pattern struct {
	Pos token.Pos
	Kind PatternKind

	Int      *apd.Decimal // LiteralInt
	Rational *big.Rat     // LiteralRational
	String   string       // LiteralString

	Ident Identifier // PatVariable

	StructName     Atom     // PatStruct
	StructContents *Pattern // PatStruct, optional

	Items []Pattern // PatList (elements), PatRecord (values, paired with Fields), PatAll (alternatives)
	Tail  *Pattern  // PatList (tail) or PatRecord (row variable)

	Fields []Atom // PatRecord: keys, parallel to Items
}

// Variable builds a PatVariable pattern for a named identifier.
func Variable(id Identifier) Pattern {
	return Pattern{Pos: id.Pos, Kind: PatVariable, Ident: id}
}

// Struct builds a PatStruct pattern; contents may be nil for a bare atom.
func Struct(pos token.Pos, name Atom, contents *Pattern) Pattern {
	return Pattern{Pos: pos, Kind: PatStruct, StructName: name, StructContents: contents}
}

// List builds a PatList pattern. tail is nil for a closed list.
func List(pos token.Pos, items []Pattern, tail *Pattern) Pattern {
	return Pattern{Pos: pos, Kind: PatList, Items: items, Tail: tail}
}

// Record builds a PatRecord pattern. row is nil for a closed record.
func Record(pos token.Pos, fields []RecordField, row *Pattern) Pattern {
	p := Pattern{Pos: pos, Kind: PatRecord, Tail: row}
	for _, f := range fields {
		p.Fields = append(p.Fields, f.Key)
		p.Items = append(p.Items, f.Value)
	}
	return p
}

// All builds a PatAll (conjunction-of-constraints) pattern.
func All(pos token.Pos, alternatives []Pattern) Pattern {
	return Pattern{Pos: pos, Kind: PatAll, Items: alternatives}
}

// Identifiers yields every non-wildcard identifier occurring in p,
// counted once per occurrence (used by the singleton-variable check).
func (p Pattern) Identifiers(yield func(Identifier) bool) bool {
	switch p.Kind {
	case PatVariable:
		if !p.Ident.Wildcard {
			return yield(p.Ident)
		}
		return true
	case PatStruct:
		if p.StructContents != nil {
			return p.StructContents.Identifiers(yield)
		}
		return true
	case PatList, PatRecord, PatAll:
		for _, item := range p.Items {
			if !item.Identifiers(yield) {
				return false
			}
		}
		if p.Tail != nil {
			return p.Tail.Identifiers(yield)
		}
		return true
	default:
		return true
	}
}
