package chc

import (
	"fmt"

	"chcverify/internal/ast"
	"chcverify/internal/smt"
)

// visitFunctionCall implements §4.3.5's three-way split: assert
// conditions feed the verification-target/error-predicate machinery,
// internal calls apply the callee's summary, everything else is opaque.
func (b *Builder) visitFunctionCall(current *smt.Expression, vs visitState, call *ast.FunctionCall, target *ast.VariableDeclaration) (*smt.Expression, bool, error) {
	switch call.Kind {
	case ast.CallAssert:
		return b.visitAssert(current, call)
	case ast.CallInternal:
		return b.visitInternalCall(current, call, target)
	default:
		return b.visitUnknownCall(current, call, target)
	}
}

// visitAssert implements the assertion half of §4.3.5. A failing
// condition bumps the function's error index to this assert's own
// 1-based position among the contract's verification targets (so two
// different asserts are distinguishable in a counterexample) and routes
// through an assert_fail block into the current function's own
// summary predicate (or is left a dead end inside a constructor, which has
// none); a passing condition preserves the prior error value and
// narrows current_block by the asserted condition. The index bump
// follows visitInternalCall's pattern: both outcomes share one fresh
// SSA slot for errorVar, pinned to the right value by an equality
// constraint in each branch's rule body rather than by rewinding the
// index.
func (b *Builder) visitAssert(current *smt.Expression, call *ast.FunctionCall) (*smt.Expression, bool, error) {
	if len(call.Arguments) == 0 {
		return nil, false, fmt.Errorf("assert call with no condition")
	}
	cond, err := b.enc.Value(call.Arguments[0])
	if err != nil {
		return nil, false, err
	}
	b.verificationTargets = append(b.verificationTargets, call)
	targetIndex := len(b.verificationTargets)

	notCond, err := smt.Not(cond)
	if err != nil {
		return nil, false, err
	}

	prevErr := b.frame.errorVar.CurrentValue()
	b.frame.errorVar.IncreaseIndex()
	newErr := b.frame.errorVar.CurrentValue()

	errSet, err := smt.Eq(newErr, smt.IntConst(targetIndex))
	if err != nil {
		return nil, false, err
	}
	failConstraint, err := smt.And(notCond, errSet)
	if err != nil {
		return nil, false, err
	}

	failBlock, err := b.createBlock("assert_fail")
	if err != nil {
		return nil, false, err
	}
	failApp, err := b.connectToBlock(current, failBlock, failConstraint)
	if err != nil {
		return nil, false, err
	}

	if summaryPred, ok := b.summaries[b.currentFunction]; ok {
		sumArgs, err := b.frame.summaryArgs()
		if err != nil {
			return nil, false, err
		}
		if _, err := b.connect(failApp, summaryPred, sumArgs, nil); err != nil {
			return nil, false, err
		}
	}

	errPreserved, err := smt.Eq(newErr, prevErr)
	if err != nil {
		return nil, false, err
	}
	okConstraint, err := smt.And(cond, errPreserved)
	if err != nil {
		return nil, false, err
	}

	assertBlock, err := b.createBlock("assert_entry")
	if err != nil {
		return nil, false, err
	}
	next, err := b.connectToBlock(current, assertBlock, okConstraint)
	if err != nil {
		return nil, false, err
	}
	return next, false, nil
}

// visitInternalCall implements the internal-call half of §4.3.5:
// apply the callee's summary to the evaluated arguments and a fresh
// post-call state, and either propagate a nonzero callee error into
// the caller's own error index or preserve the caller's prior error
// value on the non-failing path.
func (b *Builder) visitInternalCall(current *smt.Expression, call *ast.FunctionCall, target *ast.VariableDeclaration) (*smt.Expression, bool, error) {
	callee := call.Target
	if callee == nil {
		return nil, false, fmt.Errorf("internal call has no resolved target")
	}
	summaryPred, ok := b.summaries[callee]
	if !ok {
		return b.visitUnknownCall(current, call, target)
	}

	argVals := make([]*smt.Expression, len(call.Arguments))
	for i, a := range call.Arguments {
		v, err := b.enc.Value(a)
		if err != nil {
			return nil, false, err
		}
		argVals[i] = v
	}

	preState := currentValues(b.frame.stateVars)
	bumpIndices(b.frame.stateVars)
	postState := currentValues(b.frame.stateVars)

	retSorts := make([]smt.Sort, len(callee.ReturnParameters))
	for i, r := range callee.ReturnParameters {
		retSorts[i] = b.ctx.Variable(r).Sort()
	}
	base := b.uniquePrefix("call_" + callee.Name)
	retVars := freshVars(base+"_ret", retSorts)
	callErr := smt.NewSymbolicVariable(base+"_err", smt.IntSort())

	sumArgs := []*smt.Expression{callErr.CurrentValue()}
	sumArgs = append(sumArgs, preState...)
	sumArgs = append(sumArgs, argVals...)
	sumArgs = append(sumArgs, postState...)
	sumArgs = append(sumArgs, currentValues(retVars)...)
	summaryApp, err := summaryPred.Apply(sumArgs...)
	if err != nil {
		return nil, false, err
	}

	prevErr := b.frame.errorVar.CurrentValue()
	b.frame.errorVar.IncreaseIndex()
	newErr := b.frame.errorVar.CurrentValue()

	callFailed, err := smt.Gt(callErr.CurrentValue(), smt.IntConst(0))
	if err != nil {
		return nil, false, err
	}
	errPropagated, err := smt.Eq(newErr, callErr.CurrentValue())
	if err != nil {
		return nil, false, err
	}
	failConstraint, err := smt.And(summaryApp, callFailed, errPropagated)
	if err != nil {
		return nil, false, err
	}

	callSucceeded, err := smt.Eq(callErr.CurrentValue(), smt.IntConst(0))
	if err != nil {
		return nil, false, err
	}
	errPreserved, err := smt.Eq(newErr, prevErr)
	if err != nil {
		return nil, false, err
	}
	okConstraint, err := smt.And(summaryApp, callSucceeded, errPreserved)
	if err != nil {
		return nil, false, err
	}

	callBlock, err := b.createBlock("call_" + callee.Name)
	if err != nil {
		return nil, false, err
	}
	if _, err := b.connectToBlock(current, callBlock, failConstraint); err != nil {
		return nil, false, err
	}
	next, err := b.connectToBlock(current, callBlock, okConstraint)
	if err != nil {
		return nil, false, err
	}

	if target != nil && len(retVars) > 0 {
		if _, err := b.enc.Assign(target, retVars[0].CurrentValue()); err != nil {
			return nil, false, err
		}
	}

	return next, false, nil
}

// visitUnknownCall implements §4.3.5's opaque-call case: arguments are
// still encoded (an argument the encoder cannot handle is an error;
// encoding changes no SSA index), but the call's own effect is modeled only as
// knowledge erasure, per §4.3.4's note on reference-typed locals and
// state variables.
func (b *Builder) visitUnknownCall(current *smt.Expression, call *ast.FunctionCall, target *ast.VariableDeclaration) (*smt.Expression, bool, error) {
	for _, a := range call.Arguments {
		if _, err := b.enc.Value(a); err != nil {
			return nil, false, err
		}
	}
	b.eraseKnowledge()
	if target != nil {
		b.ctx.Variable(target).IncreaseIndex()
	}
	block, err := b.createBlock("unknown_call")
	if err != nil {
		return nil, false, err
	}
	next, err := b.connectToBlock(current, block, nil)
	if err != nil {
		return nil, false, err
	}
	return next, true, nil
}
