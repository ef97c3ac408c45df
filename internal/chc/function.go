package chc

import (
	"fmt"

	"chcverify/internal/ast"
	"chcverify/internal/smt"
)

func collectLocals(blk *ast.Block) []*ast.VariableDeclaration {
	if blk == nil {
		return nil
	}
	var out []*ast.VariableDeclaration
	var walkStmt func(ast.Stmt)
	walkBlock := func(b *ast.Block) {
		if b == nil {
			return
		}
		for _, s := range b.Statements {
			walkStmt(s)
		}
	}
	walkStmt = func(s ast.Stmt) {
		switch n := s.(type) {
		case *ast.VarDeclStmt:
			out = append(out, n.Decl)
		case *ast.Block:
			walkBlock(n)
		case *ast.IfStmt:
			walkBlock(n.Then)
			walkBlock(n.Else)
		case *ast.WhileStmt:
			walkBlock(n.Body)
		case *ast.ForStmt:
			walkStmt(n.Init)
			walkBlock(n.Body)
			walkStmt(n.Post)
		}
	}
	walkBlock(blk)
	return out
}

// nonNegativityFact returns the `sv >= 0` fact for a uint-typed
// declaration's zero SSA index, or nil for anything else (§8 scenario
// 3: a uint parameter or state variable can never be negative, which
// the solver needs spelled out since smt.IntSort is otherwise unbounded
// in both directions).
func nonNegativityFact(sv *smt.SymbolicVariable, t ast.VarType) (*smt.Expression, error) {
	if t.Kind != ast.TypeInt || !t.IsUnsigned {
		return nil, nil
	}
	zero, err := sv.ValueAt(0)
	if err != nil {
		return nil, err
	}
	return smt.Ge(zero, smt.IntConst(0))
}

// newFrame resets every variable this function's basic blocks will
// reference to SSA index 0 (invariant 1) and returns the fixed
// argument-vector frame those blocks share.
func (b *Builder) newFrame(fn *ast.Function) (*Frame, error) {
	b.ctx.Reset()
	var nonNeg []*smt.Expression
	for i, sv := range b.stateVars {
		sv.ResetIndex()
		fact, err := nonNegativityFact(sv, b.contract.StateVariables[i].Type)
		if err != nil {
			return nil, err
		}
		if fact != nil {
			nonNeg = append(nonNeg, fact)
		}
	}
	params := make([]*smt.SymbolicVariable, len(fn.Parameters))
	for i, p := range fn.Parameters {
		sv := b.ctx.Variable(p)
		sv.ResetIndex()
		params[i] = sv
		fact, err := nonNegativityFact(sv, p.Type)
		if err != nil {
			return nil, err
		}
		if fact != nil {
			nonNeg = append(nonNeg, fact)
		}
	}
	rets := make([]*smt.SymbolicVariable, len(fn.ReturnParameters))
	for i, r := range fn.ReturnParameters {
		sv := b.ctx.Variable(r)
		sv.ResetIndex()
		rets[i] = sv
	}
	localDecls := collectLocals(fn.Body)
	locals := make([]*smt.SymbolicVariable, len(localDecls))
	for i, d := range localDecls {
		sv := b.ctx.Variable(d)
		sv.ResetIndex()
		locals[i] = sv
	}
	errorVar := smt.NewSymbolicVariable(fmt.Sprintf("err_%d", fn.ID), smt.IntSort())
	return &Frame{
		errorVar:      errorVar,
		stateVars:     b.stateVars,
		paramVars:     params,
		returnVars:    rets,
		localVars:     locals,
		nonNegativity: nonNeg,
	}, nil
}

// visitFunction implements §4.3.2: a non-constructor function's
// self-contained entry → body → summary chain, plus, for a public
// function, the interface/error rule pair.
func (b *Builder) visitFunction(fn *ast.Function) error {
	b.currentFunction = fn
	frame, err := b.newFrame(fn)
	if err != nil {
		return err
	}
	b.frame = frame
	defer func() {
		b.currentFunction = nil
		b.frame = nil
	}()

	entryPred, err := b.createBlock(fmt.Sprintf("function_entry_%s", fn.Name))
	if err != nil {
		return err
	}
	entryArgs, err := b.frame.blockArgs()
	if err != nil {
		return err
	}
	entryApp, err := entryPred.Apply(entryArgs...)
	if err != nil {
		return err
	}
	genesisApp, err := b.genesisPred.Apply()
	if err != nil {
		return err
	}
	rule1, err := smt.Implies(genesisApp, entryApp)
	if err != nil {
		return err
	}
	if err := b.solver.AddRule(rule1, "genesis_to_"+entryPred.Name()); err != nil {
		return err
	}

	bodyPred, err := b.createBlock(fmt.Sprintf("function_body_%s", fn.Name))
	if err != nil {
		return err
	}
	zeroErr, err := smt.Eq(b.frame.errorVar.CurrentValue(), smt.IntConst(0))
	if err != nil {
		return err
	}
	b.ctx.PushSolver()
	b.ctx.AddAssertion(zeroErr)
	for _, fact := range b.frame.nonNegativity {
		b.ctx.AddAssertion(fact)
	}
	bodyApp, err := b.connectToBlock(entryApp, bodyPred, nil)
	b.ctx.PopSolver()
	if err != nil {
		return err
	}

	current, _, err := b.visitBlock(bodyApp, visitState{}, fn.Body)
	if err != nil {
		return err
	}

	summaryPred := b.summaries[fn]
	sumArgs, err := b.frame.summaryArgs()
	if err != nil {
		return err
	}
	if _, err := b.connect(current, summaryPred, sumArgs, nil); err != nil {
		return err
	}

	if fn.IsPublic {
		if err := b.emitPublicEntryRules(fn, summaryPred); err != nil {
			return err
		}
	}
	return nil
}

// emitPublicEntryRules implements §4.3.2's public-function addendum: a
// fresh, quantified rule pair routing through the contract's interface
// predicate, plus a freshly SSA-refreshed error predicate recorded in
// functionErrors for later querying.
func (b *Builder) emitPublicEntryRules(fn *ast.Function, summaryPred *smt.SymbolicFunctionVariable) error {
	base := b.uniquePrefix("entry_" + fn.Name)

	errV := smt.NewSymbolicVariable(base+"_err", smt.IntSort())
	statePreV := freshVars(base+"_state_pre", sorts(b.stateVars))
	statePostV := freshVars(base+"_state_post", sorts(b.stateVars))
	paramsV := freshVars(base+"_params", sorts(b.frame.paramVars))
	retsV := freshVars(base+"_rets", sorts(b.frame.returnVars))

	ifacePre, err := b.interfacePred.Apply(currentValues(statePreV)...)
	if err != nil {
		return err
	}
	summaryArgs := append([]*smt.Expression{errV.CurrentValue()}, currentValues(statePreV)...)
	summaryArgs = append(summaryArgs, currentValues(paramsV)...)
	summaryArgs = append(summaryArgs, currentValues(statePostV)...)
	summaryArgs = append(summaryArgs, currentValues(retsV)...)
	summaryApp, err := summaryPred.Apply(summaryArgs...)
	if err != nil {
		return err
	}

	errPred, err := smt.NewSymbolicFunctionVariable(b.solver, b.functionPredicateName(fn, "error"), nil)
	if err != nil {
		return err
	}
	// SSA-refresh so each public function queries a distinct error
	// predicate instance, per §4.3.2's "SSA-refresh the error predicate".
	if err := errPred.IncreaseIndex(b.solver); err != nil {
		return err
	}
	errGoal, err := errPred.Apply()
	if err != nil {
		return err
	}

	errGt0, err := smt.Gt(errV.CurrentValue(), smt.IntConst(0))
	if err != nil {
		return err
	}
	failBody, err := smt.And(ifacePre, summaryApp, errGt0)
	if err != nil {
		return err
	}
	failRule, err := smt.Implies(failBody, errGoal)
	if err != nil {
		return err
	}
	if err := b.solver.AddRule(failRule, base+"_to_error"); err != nil {
		return err
	}

	errEq0, err := smt.Eq(errV.CurrentValue(), smt.IntConst(0))
	if err != nil {
		return err
	}
	okBody, err := smt.And(ifacePre, summaryApp, errEq0)
	if err != nil {
		return err
	}
	ifacePost, err := b.interfacePred.Apply(currentValues(statePostV)...)
	if err != nil {
		return err
	}
	okRule, err := smt.Implies(okBody, ifacePost)
	if err != nil {
		return err
	}
	if err := b.solver.AddRule(okRule, base+"_to_interface"); err != nil {
		return err
	}

	b.functionErrors[fn] = errPred
	return nil
}

func freshVars(prefix string, sortList []smt.Sort) []*smt.SymbolicVariable {
	out := make([]*smt.SymbolicVariable, len(sortList))
	for i, s := range sortList {
		out[i] = smt.NewSymbolicVariable(fmt.Sprintf("%s_%d", prefix, i), s)
	}
	return out
}

// visitConstructor implements §4.3.3. When a derived contract has no
// explicit constructor, base constructors are inlined by calling this
// repeatedly while b.frame stays owned by whichever constructor opened
// it first.
func (b *Builder) visitConstructor(fn *ast.Function, currentBlock *smt.Expression) (*smt.Expression, error) {
	opened := b.frame == nil
	if opened {
		b.currentFunction = fn
		frame, err := b.newFrame(fn)
		if err != nil {
			return nil, err
		}
		b.frame = frame
	}

	next, _, err := b.visitBlock(currentBlock, visitState{}, fn.Body)
	if err != nil {
		if opened {
			b.currentFunction = nil
			b.frame = nil
		}
		return nil, err
	}

	exitPred, err := b.createBlock("constructor_exit_" + fn.Name)
	if err != nil {
		return nil, err
	}
	next, err = b.connectToBlock(next, exitPred, nil)

	if opened {
		b.currentFunction = nil
		b.frame = nil
	}
	return next, err
}
