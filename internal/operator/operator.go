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

// Package operator implements spec.md §4.2: resolving a module's
// `:- op` declarations into a precedence table, and climbing a flat
// Expression of (operator, operand) Items into a nested call tree.
//
// The table itself is grounded on cue/ast's approach of keying parser
// behavior off a small enum (cue/ast.RelOp and friends); the climbing
// algorithm is the textbook precedence-climbing technique (as used by,
// among others, cue/parser's expression parser) adapted to spec.md's
// shape, since agdust/lumber's own climb() implementation was not among
// the retrieved original_source files — only its call sites were.
package operator

import (
	"fmt"

	"lumberlang.dev/lumber/ast"
	"lumberlang.dev/lumber/token"
)

// Key identifies one operator role: a textual operator can be both a
// prefix (Unary) and an infix (Binary) operator with independent
// precedence, per spec.md §4.2.
type Key struct {
	Atom  ast.Atom
	Arity ast.OpArity
}

// Operator is one resolved `:- op` declaration.
type Operator struct {
	Precedence int
	Assoc      ast.Assoc
	Handle     ast.Handle
}

// Table is a module's resolved operator set.
type Table struct {
	entries map[Key]Operator
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[Key]Operator)}
}

// Register adds or overwrites the operator identified by key. A later
// `:- op` declaration for the same (atom, arity) in the same module
// shadows an earlier one, matching ordinary declaration-order shadowing
// elsewhere in the language.
func (t *Table) Register(key Key, op Operator) {
	t.entries[key] = op
}

// Lookup returns the operator registered for key.
func (t *Table) Lookup(key Key) (Operator, bool) {
	op, ok := t.entries[key]
	return op, ok
}

// Climb rewrites expr's flat Item list into a single nested Term,
// resolving each operator against table by precedence and associativity.
// Groups (parenthesized sub-expressions) are climbed recursively.
func Climb(table *Table, expr ast.Expression) (ast.Term, error) {
	if len(expr.Items) == 0 {
		return ast.Term{}, fmt.Errorf("operator: empty expression at %v", expr.Pos)
	}
	pos := 0
	left, err := parseLead(table, expr.Items, &pos)
	if err != nil {
		return ast.Term{}, err
	}
	return climbBinary(table, expr.Items, &pos, left, 0)
}

// parseLead consumes items[0]: either a bare operand, or a prefix
// operator applied to it.
func parseLead(table *Table, items []ast.Item, pos *int) (ast.Term, error) {
	it := items[*pos]
	*pos++
	operand, err := resolveOperand(table, it.Operand)
	if err != nil {
		return ast.Term{}, err
	}
	if it.Operator == "" {
		return operand, nil
	}
	op, ok := table.Lookup(Key{it.Operator, ast.Unary})
	if !ok {
		return ast.Term{}, fmt.Errorf("operator: %q is not a prefix operator at %v", it.Operator, it.Pos)
	}
	return call(op.Handle, it.Pos, operand), nil
}

// climbBinary folds items[*pos:] onto left, honoring minPrec — the
// precedence floor a candidate infix operator must meet to bind here
// rather than be left for an enclosing call to fold.
func climbBinary(table *Table, items []ast.Item, pos *int, left ast.Term, minPrec int) (ast.Term, error) {
	for *pos < len(items) {
		it := items[*pos]
		op, ok := table.Lookup(Key{it.Operator, ast.Binary})
		if !ok || op.Precedence < minPrec {
			break
		}
		*pos++
		rhs, err := resolveOperand(table, it.Operand)
		if err != nil {
			return ast.Term{}, err
		}

		nextMin := op.Precedence + 1
		if op.Assoc == ast.AssocRight {
			nextMin = op.Precedence
		}
		for *pos < len(items) {
			peek, ok2 := table.Lookup(Key{items[*pos].Operator, ast.Binary})
			if !ok2 || peek.Precedence < nextMin {
				break
			}
			rhs, err = climbBinary(table, items, pos, rhs, peek.Precedence)
			if err != nil {
				return ast.Term{}, err
			}
		}

		left = call(op.Handle, it.Pos, left, rhs)
	}
	return left, nil
}

func resolveOperand(table *Table, t *ast.Term) (ast.Term, error) {
	if t.Group != nil {
		return Climb(table, *t.Group)
	}
	return *t, nil
}

func call(h ast.Handle, pos token.Pos, operands ...ast.Term) ast.Term {
	args := make([]ast.Expression, len(operands))
	for i, o := range operands {
		args[i] = ast.Expression{Pos: o.Pos, Items: []ast.Item{{Operand: &operands[i]}}}
	}
	q := &ast.Query{Pos: pos, Handle: h, Args: args}
	return ast.Term{Pos: pos, Call: q}
}
