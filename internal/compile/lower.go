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

package compile

import (
	"fmt"

	"lumberlang.dev/lumber/ast"
	"lumberlang.dev/lumber/internal/atom"
	"lumberlang.dev/lumber/internal/database"
	"lumberlang.dev/lumber/internal/handle"
	"lumberlang.dev/lumber/internal/operator"
	"lumberlang.dev/lumber/internal/pattern"
)

// clauseCtx carries the per-clause state lowering needs: the variable
// map a clause's named identifiers are allocated into (so every
// occurrence of the same name within one clause shares one
// pattern.Variable, while `_` always gets a fresh one), the compiling
// module's own scope and operator table, and a back-reference to the
// Compiler for interning and fresh-variable allocation.
type clauseCtx struct {
	compiler    *Compiler
	moduleScope handle.Scope
	table       *operator.Table
	vars        map[ast.Atom]pattern.Variable
}

func (ctx *clauseCtx) fresh() pattern.Variable { return ctx.compiler.freshVar() }

func (ctx *clauseCtx) lowerPattern(p ast.Pattern) pattern.Pattern {
	switch p.Kind {
	case ast.LiteralInt:
		return pattern.Int(p.Int)
	case ast.LiteralRational:
		return pattern.Rational(p.Rational)
	case ast.LiteralString:
		return pattern.String(p.String)
	case ast.PatVariable:
		return pattern.Var(ctx.lowerIdentifier(p.Ident))
	case ast.PatStruct:
		name := ctx.compiler.interner.Intern(string(p.StructName))
		var contents *pattern.Pattern
		if p.StructContents != nil {
			c := ctx.lowerPattern(*p.StructContents)
			contents = &c
		}
		return pattern.Struct(name, contents)
	case ast.PatList:
		items := make([]pattern.Pattern, len(p.Items))
		for i, it := range p.Items {
			items[i] = ctx.lowerPattern(it)
		}
		var tail *pattern.Pattern
		if p.Tail != nil {
			t := ctx.lowerPattern(*p.Tail)
			tail = &t
		}
		return pattern.List(items, tail)
	case ast.PatRecord:
		return ctx.lowerRecord(p)
	case ast.PatAll:
		items := make([]pattern.Pattern, len(p.Items))
		for i, it := range p.Items {
			items[i] = ctx.lowerPattern(it)
		}
		return pattern.All(items)
	case ast.PatBound:
		return pattern.Bound()
	case ast.PatUnbound:
		return pattern.Unbound()
	default:
		return pattern.Pattern{}
	}
}

func (ctx *clauseCtx) lowerIdentifier(id ast.Identifier) pattern.Variable {
	if id.Wildcard {
		return ctx.fresh()
	}
	if v, ok := ctx.vars[id.Name]; ok {
		return v
	}
	v := ctx.fresh()
	ctx.vars[id.Name] = v
	return v
}

func (ctx *clauseCtx) lowerBody(body *ast.Body) (*database.Body, error) {
	if body == nil || body.Disjunction == nil {
		return &database.Body{}, nil
	}
	disj, err := ctx.lowerDisjunction(body.Disjunction)
	if err != nil {
		return nil, err
	}
	return &database.Body{Disjunction: disj}, nil
}

func (ctx *clauseCtx) lowerDisjunction(d *ast.Disjunction) (*database.Disjunction, error) {
	cases := make([]database.DisjCase, len(d.Cases))
	for i, c := range d.Cases {
		head, err := ctx.lowerConjunction(&c.Head)
		if err != nil {
			return nil, err
		}
		var tail *database.Conjunction
		if c.Tail != nil {
			t, err := ctx.lowerConjunction(c.Tail)
			if err != nil {
				return nil, err
			}
			tail = t
		}
		cases[i] = database.DisjCase{Head: *head, Tail: tail}
	}
	return &database.Disjunction{Cases: cases}, nil
}

func (ctx *clauseCtx) lowerConjunction(c *ast.Conjunction) (*database.Conjunction, error) {
	terms := make([]database.Procession, len(c.Terms))
	for i, p := range c.Terms {
		pr, err := ctx.lowerProcession(&p)
		if err != nil {
			return nil, err
		}
		terms[i] = *pr
	}
	return &database.Conjunction{Terms: terms}, nil
}

func (ctx *clauseCtx) lowerProcession(p *ast.Procession) (*database.Procession, error) {
	var steps []database.Step
	for i := range p.Steps {
		ns, err := ctx.lowerStep(&p.Steps[i])
		if err != nil {
			return nil, err
		}
		steps = append(steps, ns...)
	}
	return &database.Procession{Steps: steps}, nil
}

func (ctx *clauseCtx) lowerStep(s *ast.Step) ([]database.Step, error) {
	switch s.Kind {
	case ast.StepQuery:
		argSteps, args, err := ctx.lowerArgs(s.Query.Args)
		if err != nil {
			return nil, err
		}
		h, err := ctx.resolveHandle(s.Query.Handle)
		if err != nil {
			return nil, err
		}
		return append(argSteps, database.Step{Kind: database.StepQuery, Handle: h, Args: args}), nil

	case ast.StepBody:
		b, err := ctx.lowerBody(s.Body)
		if err != nil {
			return nil, err
		}
		return []database.Step{{Kind: database.StepBody, Body: b}}, nil

	case ast.StepUnification:
		lhsSteps, lhsP, err := ctx.lowerExpression(s.Lhs)
		if err != nil {
			return nil, err
		}
		rhsSteps, rhsP, err := ctx.lowerExpression(s.Rhs)
		if err != nil {
			return nil, err
		}
		all := append(lhsSteps, rhsSteps...)
		all = append(all, database.Step{Kind: database.StepUnify, Lhs: lhsP, Rhs: rhsP})
		return all, nil

	case ast.StepRelation:
		var lhsSteps []database.Step
		var lhsP *pattern.Pattern
		if s.RelLhs != nil {
			steps, p, err := ctx.lowerTerm(*s.RelLhs)
			if err != nil {
				return nil, err
			}
			lhsSteps = steps
			lhsP = &p
		}
		rhsSteps, rhsP, err := ctx.lowerTerm(s.RelRhs)
		if err != nil {
			return nil, err
		}

		arity := ast.Binary
		if lhsP == nil {
			arity = ast.Unary
		}
		op, ok := ctx.table.Lookup(operator.Key{Atom: s.RelOperator, Arity: arity})
		if !ok {
			return nil, fmt.Errorf("compile: %q is not a registered relation operator at %v", s.RelOperator, s.Pos)
		}
		h, err := ctx.resolveHandle(op.Handle)
		if err != nil {
			return nil, err
		}

		var args []pattern.Pattern
		if lhsP != nil {
			args = append(args, *lhsP)
		}
		args = append(args, rhsP)

		steps := append(lhsSteps, rhsSteps...)
		steps = append(steps, database.Step{Kind: database.StepQuery, Handle: h, Args: args})
		return steps, nil

	default:
		return nil, fmt.Errorf("compile: unhandled step kind %v", s.Kind)
	}
}

func (ctx *clauseCtx) lowerArgs(exprs []ast.Expression) ([]database.Step, []pattern.Pattern, error) {
	var steps []database.Step
	patterns := make([]pattern.Pattern, len(exprs))
	for i, e := range exprs {
		s, p, err := ctx.lowerExpression(e)
		if err != nil {
			return nil, nil, err
		}
		steps = append(steps, s...)
		patterns[i] = p
	}
	return steps, patterns, nil
}

func (ctx *clauseCtx) lowerExpression(e ast.Expression) ([]database.Step, pattern.Pattern, error) {
	term, err := operator.Climb(ctx.table, e)
	if err != nil {
		return nil, pattern.Pattern{}, err
	}
	return ctx.lowerTerm(term)
}

func (ctx *clauseCtx) lowerTerm(t ast.Term) ([]database.Step, pattern.Pattern, error) {
	switch {
	case t.Pattern != nil:
		return nil, ctx.lowerPattern(*t.Pattern), nil
	case t.Call != nil:
		return ctx.lowerQueryAsValue(t.Call)
	case t.Group != nil:
		climbed, err := operator.Climb(ctx.table, *t.Group)
		if err != nil {
			return nil, pattern.Pattern{}, err
		}
		return ctx.lowerTerm(climbed)
	case t.Aggregate != nil:
		return ctx.lowerAggregation(t.Aggregate)
	default:
		return nil, pattern.Pattern{}, fmt.Errorf("compile: empty term at %v", t.Pos)
	}
}

// lowerAggregation compiles `[ P : Body ]` (spec.md §4.5) into a
// StepAggregate: Body's own variables are scoped to ctx like any other
// sub-body (so a variable shared between Body and an enclosing clause
// still refers to the same slot), while the collected list only ever
// carries fully extracted values out.
func (ctx *clauseCtx) lowerAggregation(a *ast.Aggregation) ([]database.Step, pattern.Pattern, error) {
	body, err := ctx.lowerBody(a.Body)
	if err != nil {
		return nil, pattern.Pattern{}, err
	}
	tmpl := ctx.lowerPattern(a.Pattern)
	dest := pattern.Var(ctx.fresh())
	step := database.Step{Kind: database.StepAggregate, Body: body, Pattern: tmpl, Dest: dest}
	return []database.Step{step}, dest, nil
}

// lowerQueryAsValue compiles a Query used in value position (spec.md
// §6's function-call sugar): its arguments are lowered as usual, then a
// fresh destination variable is appended as the call's trailing
// argument and returned as the expression's value, matching the trailing
// destination argument a `func! <- expr` rule's clause carries in its
// HeadArgs.
func (ctx *clauseCtx) lowerQueryAsValue(q *ast.Query) ([]database.Step, pattern.Pattern, error) {
	steps, args, err := ctx.lowerArgs(q.Args)
	if err != nil {
		return nil, pattern.Pattern{}, err
	}
	dest := pattern.Var(ctx.fresh())
	h, err := ctx.resolveHandle(q.Handle)
	if err != nil {
		return nil, pattern.Pattern{}, err
	}
	allArgs := append(args, dest)
	steps = append(steps, database.Step{Kind: database.StepQuery, Handle: h, Args: allArgs})
	return steps, dest, nil
}

// resolveHandle resolves h, either as a bare module-local identifier
// (Scope has a single path element, no `::` qualification) through
// ordinary glob/alias search, or as an explicitly qualified
// `mod::name/N` reference looked up directly in that module.
func (ctx *clauseCtx) resolveHandle(h ast.Handle) (handle.Handle, error) {
	scope := ctx.compiler.internScope(h.Scope)
	arity := ctx.compiler.internArity(h.Arity)

	var resolved handle.Handle
	var err error
	if len(scope.Path) <= 1 {
		local := handle.Handle{Scope: scope, Arity: arity}
		resolved, err = ctx.compiler.registry.Resolve(ctx.moduleScope, local)
	} else {
		target := handle.Scope{Library: scope.Library, Path: scope.Path[:len(scope.Path)-1]}
		local := handle.Handle{
			Scope: handle.Scope{Path: scope.Path[len(scope.Path)-1:]},
			Arity: arity,
		}
		resolved, err = ctx.compiler.registry.ResolveQualified(ctx.moduleScope, target, local)
	}
	if err != nil {
		return handle.Handle{}, err
	}
	modScope := handle.Scope{Library: resolved.Scope.Library}
	if n := len(resolved.Scope.Path); n > 0 {
		modScope.Path = resolved.Scope.Path[:n-1]
	}
	if mod, ok := ctx.compiler.registry.Modules[modScope.Key()]; ok {
		if _, ok := mod.Mutables[resolved.LocalKey()]; ok {
			return handle.Handle{}, fmt.Errorf("compile: %v is a mutable predicate; assertion/retraction is not yet implemented (spec.md §5, §9 open question (a))", resolved)
		}
	}
	return resolved, nil
}

func (ctx *clauseCtx) lowerRecord(p ast.Pattern) pattern.Pattern {
	fields := make(map[atom.Atom]pattern.Pattern, len(p.Fields))
	for i, k := range p.Fields {
		fields[ctx.compiler.interner.Intern(string(k))] = ctx.lowerPattern(p.Items[i])
	}
	var row *pattern.Pattern
	if p.Tail != nil {
		r := ctx.lowerPattern(*p.Tail)
		row = &r
	}
	return pattern.Record(fields, row)
}
