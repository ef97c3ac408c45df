package chc

import (
	"fmt"

	"chcverify/internal/smt"
)

// Frame is the fixed argument-vector shape shared by every basic-block
// predicate inside one function visit: (error, state_pre, params_pre,
// state_post, params_cur, returns, locals...), per §3's predicate graph
// definition. State and parameter variables appear twice because the
// *same* SymbolicVariable's index-0 snapshot (state_pre/params_pre) and
// current value (state_post/params_cur) are different Expressions once
// the function body has advanced their index.
type Frame struct {
	errorVar   *smt.SymbolicVariable
	stateVars  []*smt.SymbolicVariable
	paramVars  []*smt.SymbolicVariable
	returnVars []*smt.SymbolicVariable
	localVars  []*smt.SymbolicVariable

	// nonNegativity holds the `sv >= 0` facts for this function's
	// uint-typed state variables and parameters at their zero SSA
	// index, asserted into the entry->body rule alongside the error
	// predicate's own zero fact.
	nonNegativity []*smt.Expression
}

func sorts(vars []*smt.SymbolicVariable) []smt.Sort {
	out := make([]smt.Sort, len(vars))
	for i, v := range vars {
		out[i] = v.Sort()
	}
	return out
}

func valuesAtZero(vars []*smt.SymbolicVariable) ([]*smt.Expression, error) {
	out := make([]*smt.Expression, len(vars))
	for i, v := range vars {
		e, err := v.ValueAt(0)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func currentValues(vars []*smt.SymbolicVariable) []*smt.Expression {
	out := make([]*smt.Expression, len(vars))
	for i, v := range vars {
		out[i] = v.CurrentValue()
	}
	return out
}

// blockDomain is the sort vector for a basic-block predicate inside
// this frame's function.
func (f *Frame) blockDomain() []smt.Sort {
	d := []smt.Sort{f.errorVar.Sort()}
	d = append(d, sorts(f.stateVars)...)  // state_pre
	d = append(d, sorts(f.paramVars)...)  // params_pre
	d = append(d, sorts(f.stateVars)...)  // state_post
	d = append(d, sorts(f.paramVars)...)  // params_cur
	d = append(d, sorts(f.returnVars)...)
	d = append(d, sorts(f.localVars)...)
	return d
}

// blockArgs is the argument vector matching blockDomain at the current
// point of the visit.
func (f *Frame) blockArgs() ([]*smt.Expression, error) {
	statePre, err := valuesAtZero(f.stateVars)
	if err != nil {
		return nil, err
	}
	paramsPre, err := valuesAtZero(f.paramVars)
	if err != nil {
		return nil, err
	}
	args := []*smt.Expression{f.errorVar.CurrentValue()}
	args = append(args, statePre...)
	args = append(args, paramsPre...)
	args = append(args, currentValues(f.stateVars)...)
	args = append(args, currentValues(f.paramVars)...)
	args = append(args, currentValues(f.returnVars)...)
	args = append(args, currentValues(f.localVars)...)
	return args, nil
}

// summaryDomain is §4.4's summary sort: (Int, state_pre..., params...,
// state_post..., returns...). Parameters appear only once, unlike a
// basic-block predicate: a summary never exposes a mutable copy.
func (f *Frame) summaryDomain() []smt.Sort {
	d := []smt.Sort{f.errorVar.Sort()}
	d = append(d, sorts(f.stateVars)...) // state_pre
	d = append(d, sorts(f.paramVars)...) // params_pre
	d = append(d, sorts(f.stateVars)...) // state_post
	d = append(d, sorts(f.returnVars)...)
	return d
}

func (f *Frame) summaryArgs() ([]*smt.Expression, error) {
	statePre, err := valuesAtZero(f.stateVars)
	if err != nil {
		return nil, err
	}
	paramsPre, err := valuesAtZero(f.paramVars)
	if err != nil {
		return nil, err
	}
	args := []*smt.Expression{f.errorVar.CurrentValue()}
	args = append(args, statePre...)
	args = append(args, paramsPre...)
	args = append(args, currentValues(f.stateVars)...)
	args = append(args, currentValues(f.returnVars)...)
	return args, nil
}

// uniquePrefix returns a monotonically-numbered name so that two
// structurally identical statements in different functions (e.g. two
// unrelated `if`s) never collide on a predicate name.
func (b *Builder) uniquePrefix(base string) string {
	b.blockCounter++
	return fmt.Sprintf("%s_%d", base, b.blockCounter)
}

// createBlock registers a fresh basic-block predicate for the current
// function's frame.
func (b *Builder) createBlock(base string) (*smt.SymbolicFunctionVariable, error) {
	name := b.uniquePrefix(base)
	return smt.NewSymbolicFunctionVariable(b.solver, name, b.frame.blockDomain())
}

// connect emits `implies(from ∧ context.assertions() ∧ constraints, to(args))`
// named "from_to_to", per §4.3.6, and returns the resulting application
// as the caller's new current_block.
func (b *Builder) connect(from *smt.Expression, to *smt.SymbolicFunctionVariable, args []*smt.Expression, constraints *smt.Expression) (*smt.Expression, error) {
	toApp, err := to.Apply(args...)
	if err != nil {
		return nil, fmt.Errorf("connect: apply %s: %w", to.Name(), err)
	}
	assumed, err := b.ctx.Assertions()
	if err != nil {
		return nil, err
	}
	conjuncts := []*smt.Expression{from, assumed}
	if constraints != nil {
		conjuncts = append(conjuncts, constraints)
	}
	body, err := smt.And(conjuncts...)
	if err != nil {
		return nil, err
	}
	rule, err := smt.Implies(body, toApp)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s_to_%s", from.String(), to.Name())
	if err := b.solver.AddRule(rule, name); err != nil {
		return nil, fmt.Errorf("connect %s: %w", name, err)
	}
	return toApp, nil
}

// connectToBlock is connect's common case: the destination predicate's
// own blockArgs for the currently active frame.
func (b *Builder) connectToBlock(from *smt.Expression, to *smt.SymbolicFunctionVariable, constraints *smt.Expression) (*smt.Expression, error) {
	args, err := b.frame.blockArgs()
	if err != nil {
		return nil, err
	}
	return b.connect(from, to, args, constraints)
}
