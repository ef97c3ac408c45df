// Package encoder is the expression-encoding collaborator described in
// §6.2: it turns AST expression nodes into smt.Expression terms using
// the Encoding Context's variable registry. The CHC builder never walks
// expression nodes itself; it asks this package.
package encoder

import (
	"fmt"

	"chcverify/internal/ast"
	"chcverify/internal/context"
	"chcverify/internal/smt"
)

type Encoder struct {
	ctx *context.Context
}

func New(ctx *context.Context) *Encoder {
	return &Encoder{ctx: ctx}
}

// Value returns the current symbolic value of an expression node.
// FunctionCall is deliberately not handled here: call sites have
// control-flow effects (assertions, summary applications, knowledge
// erasure) that belong to internal/chc, not to expression encoding.
func (e *Encoder) Value(expr ast.Expr) (*smt.Expression, error) {
	switch n := expr.(type) {
	case *ast.BoolLiteral:
		return smt.BoolConst(n.Value), nil
	case *ast.IntLiteral:
		return smt.IntConst(n.Value), nil
	case *ast.Identifier:
		return e.ctx.Variable(n.Decl).CurrentValue(), nil
	case *ast.UnaryExpr:
		v, err := e.Value(n.Operand)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case ast.OpNot:
			return smt.Not(v)
		case ast.OpNegate:
			return smt.Sub(smt.IntConst(0), v)
		}
		return nil, fmt.Errorf("encoder: unsupported unary operator %q", n.Op)
	case *ast.BinaryExpr:
		l, err := e.Value(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := e.Value(n.Right)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case ast.OpAdd:
			return smt.Add(l, r)
		case ast.OpSub:
			return smt.Sub(l, r)
		case ast.OpMul:
			return smt.Mul(l, r)
		case ast.OpEq:
			return smt.Eq(l, r)
		case ast.OpNeq:
			eq, err := smt.Eq(l, r)
			if err != nil {
				return nil, err
			}
			return smt.Not(eq)
		case ast.OpLt:
			return smt.Lt(l, r)
		case ast.OpLe:
			return smt.Le(l, r)
		case ast.OpGt:
			return smt.Gt(l, r)
		case ast.OpGe:
			return smt.Ge(l, r)
		case ast.OpAnd:
			return smt.And(l, r)
		case ast.OpOr:
			return smt.Or(l, r)
		}
		return nil, fmt.Errorf("encoder: unsupported binary operator %q", n.Op)
	case *ast.Assignment:
		return e.Value(n.Value)
	case *ast.FunctionCall:
		return nil, fmt.Errorf("encoder: function calls must be handled by the CFG builder")
	}
	return nil, fmt.Errorf("encoder: unsupported expression %T", expr)
}

// Assign performs the SSA write for `target = value`: it advances
// target's index and asserts that the fresh value equals value in the
// currently open scope.
func (e *Encoder) Assign(target *ast.VariableDeclaration, value *smt.Expression) (*smt.Expression, error) {
	sv := e.ctx.Variable(target)
	sv.IncreaseIndex()
	newVal := sv.CurrentValue()
	eq, err := smt.Eq(newVal, value)
	if err != nil {
		return nil, err
	}
	e.ctx.AddAssertion(eq)
	return newVal, nil
}
