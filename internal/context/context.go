// Package context implements the Encoding Context: per-analysis scratch
// state shared by every visit method in internal/chc.
package context

import (
	"chcverify/internal/ast"
	"chcverify/internal/smt"
)

// Context owns the registry of SymbolicVariables (one per source
// declaration), a stack of assumption scopes, and a handle to the
// active solver's relation registrar.
type Context struct {
	Solver smt.Registrar

	variables map[*ast.VariableDeclaration]*smt.SymbolicVariable
	scopes    [][]*smt.Expression

	// AssertionAccumulation, when false, documents that assumptions
	// live only inside a single rule edge and never leak between
	// edges. CHC always runs with this false; it is recorded for
	// callers that inspect the context's mode rather than enforced
	// by this package, since the push/pop discipline already
	// isolates each edge's assumptions.
	AssertionAccumulation bool
}

func New(solver smt.Registrar) *Context {
	return &Context{
		Solver:    solver,
		variables: make(map[*ast.VariableDeclaration]*smt.SymbolicVariable),
		scopes:    [][]*smt.Expression{nil},
	}
}

// Reset drops every accumulated assertion and reopens a single base
// scope. Called at the start of each function/constructor visit so
// that one function's SSA-equality facts never leak into another's
// rule bodies (§4.3).
func (c *Context) Reset() {
	c.scopes = [][]*smt.Expression{nil}
}

// Variable returns the SymbolicVariable for decl, creating it lazily
// from the declaration's sort on first use.
func (c *Context) Variable(decl *ast.VariableDeclaration) *smt.SymbolicVariable {
	if v, ok := c.variables[decl]; ok {
		return v
	}
	v := smt.NewSymbolicVariable(decl.Name, sortOf(decl.Type))
	c.variables[decl] = v
	return v
}

func sortOf(t ast.VarType) smt.Sort {
	switch t.Kind {
	case ast.TypeBool:
		return smt.BoolSort()
	case ast.TypeInt, ast.TypeAddress:
		return smt.IntSort()
	case ast.TypeMapping, ast.TypeArray:
		return smt.ArraySort(smt.IntSort(), smt.IntSort())
	default:
		return smt.IntSort()
	}
}

// PushSolver opens a fresh assumption scope. Every PushSolver must be
// paired with a PopSolver on every exit path of the visit method that
// opened it.
func (c *Context) PushSolver() {
	c.scopes = append(c.scopes, nil)
}

// PopSolver discards the most recently opened assumption scope,
// including every assertion added to it. The base scope Reset opens is
// never popped.
func (c *Context) PopSolver() {
	if len(c.scopes) <= 1 {
		return
	}
	c.scopes = c.scopes[:len(c.scopes)-1]
}

// ScopeDepth reports the number of currently open assumption scopes,
// used by tests asserting push/pop balance (§8, invariant 5).
func (c *Context) ScopeDepth() int { return len(c.scopes) }

// AddAssertion pushes e into the innermost open scope. Calling it with
// no open scope is a programmer error; it is silently dropped to avoid
// panicking mid-walk, matching the "recovered, surfaced" error policy.
func (c *Context) AddAssertion(e *smt.Expression) {
	if len(c.scopes) == 0 {
		return
	}
	top := len(c.scopes) - 1
	c.scopes[top] = append(c.scopes[top], e)
}

// Assertions returns the conjunction of every assertion in every
// currently open scope, in opening order. This conjunction becomes the
// `constraints` term of the next emitted Horn rule.
func (c *Context) Assertions() (*smt.Expression, error) {
	var all []*smt.Expression
	for _, scope := range c.scopes {
		all = append(all, scope...)
	}
	return smt.And(all...)
}

// ResetVariables bumps the SSA index of every registered variable whose
// declaration satisfies match. Used after an unknown call to forget
// state-variable and reference-typed knowledge (§4.3.4, §4.3.5).
func (c *Context) ResetVariables(match func(*ast.VariableDeclaration) bool) {
	for decl, v := range c.variables {
		if match(decl) {
			v.IncreaseIndex()
		}
	}
}
