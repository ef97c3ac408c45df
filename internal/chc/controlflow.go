package chc

import (
	"fmt"

	"chcverify/internal/ast"
	"chcverify/internal/smt"
)

// visitState carries the loop-exit destinations break/continue jump to;
// it is the explicit substitute for the break_dest/continue_dest fields
// the original visitor kept as ambient mutable state (§9).
type visitState struct {
	breakDest    *smt.SymbolicFunctionVariable
	continueDest *smt.SymbolicFunctionVariable
}

// trackedVars lists every variable a branch or loop merge must
// reconcile: everything that can appear as a Frame argument.
func (b *Builder) trackedVars() []*smt.SymbolicVariable {
	vars := make([]*smt.SymbolicVariable, 0, 1+len(b.frame.stateVars)+len(b.frame.paramVars)+len(b.frame.returnVars)+len(b.frame.localVars))
	vars = append(vars, b.frame.errorVar)
	vars = append(vars, b.frame.stateVars...)
	vars = append(vars, b.frame.paramVars...)
	vars = append(vars, b.frame.returnVars...)
	vars = append(vars, b.frame.localVars...)
	return vars
}

func snapshotIndices(vars []*smt.SymbolicVariable) []int {
	out := make([]int, len(vars))
	for i, v := range vars {
		out[i] = v.CurrentIndex()
	}
	return out
}

func restoreIndices(vars []*smt.SymbolicVariable, idx []int) {
	for i, v := range vars {
		v.SetIndex(idx[i])
	}
}

func bumpIndices(vars []*smt.SymbolicVariable) {
	for _, v := range vars {
		v.IncreaseIndex()
	}
}

// visitBlock walks a statement list, threading the current_block
// application through each one. A nil return value means every path
// out of the block is already terminal (break/continue), so the
// caller must not emit anything past it.
func (b *Builder) visitBlock(current *smt.Expression, vs visitState, blk *ast.Block) (*smt.Expression, bool, error) {
	if blk == nil {
		return current, false, nil
	}
	unknownSeen := false
	for _, stmt := range blk.Statements {
		if current == nil {
			break
		}
		next, seen, err := b.visitStmt(current, vs, stmt)
		if err != nil {
			return nil, false, err
		}
		current = next
		unknownSeen = unknownSeen || seen
	}
	return current, unknownSeen, nil
}

func (b *Builder) visitStmt(current *smt.Expression, vs visitState, stmt ast.Stmt) (*smt.Expression, bool, error) {
	switch n := stmt.(type) {
	case *ast.Block:
		return b.visitBlock(current, vs, n)
	case *ast.ExprStmt:
		return b.visitExprStmt(current, vs, n.Expr)
	case *ast.VarDeclStmt:
		return b.visitVarDeclStmt(current, vs, n)
	case *ast.IfStmt:
		return b.visitIf(current, vs, n)
	case *ast.WhileStmt:
		return b.visitWhile(current, vs, n)
	case *ast.ForStmt:
		return b.visitFor(current, vs, n)
	case *ast.BreakStmt:
		if vs.breakDest == nil {
			return nil, false, fmt.Errorf("break outside a loop")
		}
		if _, err := b.connectToBlock(current, vs.breakDest, nil); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	case *ast.ContinueStmt:
		if vs.continueDest == nil {
			return nil, false, fmt.Errorf("continue outside a loop")
		}
		if _, err := b.connectToBlock(current, vs.continueDest, nil); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("unsupported statement %T", stmt)
	}
}

func (b *Builder) visitExprStmt(current *smt.Expression, vs visitState, expr ast.Expr) (*smt.Expression, bool, error) {
	switch e := expr.(type) {
	case *ast.FunctionCall:
		return b.visitFunctionCall(current, vs, e, nil)
	case *ast.Assignment:
		if call, ok := e.Value.(*ast.FunctionCall); ok {
			return b.visitFunctionCall(current, vs, call, e.Target)
		}
		val, err := b.enc.Value(e.Value)
		if err != nil {
			return nil, false, err
		}
		if _, err := b.enc.Assign(e.Target, val); err != nil {
			return nil, false, err
		}
		return current, false, nil
	default:
		if _, err := b.enc.Value(expr); err != nil {
			return nil, false, err
		}
		return current, false, nil
	}
}

func (b *Builder) visitVarDeclStmt(current *smt.Expression, vs visitState, n *ast.VarDeclStmt) (*smt.Expression, bool, error) {
	if n.Init == nil {
		return current, false, nil
	}
	if call, ok := n.Init.(*ast.FunctionCall); ok {
		return b.visitFunctionCall(current, vs, call, n.Decl)
	}
	val, err := b.enc.Value(n.Init)
	if err != nil {
		return nil, false, err
	}
	if _, err := b.enc.Assign(n.Decl, val); err != nil {
		return nil, false, err
	}
	return current, false, nil
}

// visitIf implements the then/else phi merge: each branch is walked
// from its own index snapshot, then both branches' final values are
// equated to a single fresh post-merge index before the join predicate
// is applied (§4.3.4).
func (b *Builder) visitIf(current *smt.Expression, vs visitState, n *ast.IfStmt) (*smt.Expression, bool, error) {
	cond, err := b.enc.Value(n.Cond)
	if err != nil {
		return nil, false, err
	}
	notCond, err := smt.Not(cond)
	if err != nil {
		return nil, false, err
	}

	vars := b.trackedVars()
	preIdx := snapshotIndices(vars)

	thenBlock, err := b.createBlock("if_then")
	if err != nil {
		return nil, false, err
	}
	thenApp, err := b.connectToBlock(current, thenBlock, cond)
	if err != nil {
		return nil, false, err
	}
	thenTail, thenUnknown, err := b.visitBlock(thenApp, vs, n.Then)
	if err != nil {
		return nil, false, err
	}
	thenVals := currentValues(vars)
	restoreIndices(vars, preIdx)

	var elseTail *smt.Expression
	elseUnknown := false
	var elseVals []*smt.Expression
	if n.Else != nil {
		elseBlock, err := b.createBlock("if_else")
		if err != nil {
			return nil, false, err
		}
		elseApp, err := b.connectToBlock(current, elseBlock, notCond)
		if err != nil {
			return nil, false, err
		}
		elseTail, elseUnknown, err = b.visitBlock(elseApp, vs, n.Else)
		if err != nil {
			return nil, false, err
		}
		elseVals = currentValues(vars)
		restoreIndices(vars, preIdx)
	} else {
		elseTail = current
		elseVals = currentValues(vars)
	}

	bumpIndices(vars)
	mergeVals := currentValues(vars)

	joinBlock, err := b.createBlock("if_join")
	if err != nil {
		return nil, false, err
	}

	if thenTail != nil {
		constraint, err := mergeEquality(mergeVals, thenVals)
		if err != nil {
			return nil, false, err
		}
		if _, err := b.connectToBlock(thenTail, joinBlock, constraint); err != nil {
			return nil, false, err
		}
	}
	if n.Else != nil {
		if elseTail != nil {
			constraint, err := mergeEquality(mergeVals, elseVals)
			if err != nil {
				return nil, false, err
			}
			if _, err := b.connectToBlock(elseTail, joinBlock, constraint); err != nil {
				return nil, false, err
			}
		}
	} else {
		eq, err := mergeEquality(mergeVals, elseVals)
		if err != nil {
			return nil, false, err
		}
		constraint, err := smt.And(notCond, eq)
		if err != nil {
			return nil, false, err
		}
		if _, err := b.connectToBlock(current, joinBlock, constraint); err != nil {
			return nil, false, err
		}
	}

	if thenTail == nil && (n.Else == nil || elseTail == nil) {
		return nil, thenUnknown || elseUnknown, nil
	}

	joinArgs, err := b.frame.blockArgs()
	if err != nil {
		return nil, false, err
	}
	joinApp, err := joinBlock.Apply(joinArgs...)
	if err != nil {
		return nil, false, err
	}
	return joinApp, thenUnknown || elseUnknown, nil
}

func mergeEquality(merge, branch []*smt.Expression) (*smt.Expression, error) {
	eqs := make([]*smt.Expression, len(merge))
	for i := range merge {
		eq, err := smt.Eq(merge[i], branch[i])
		if err != nil {
			return nil, err
		}
		eqs[i] = eq
	}
	return smt.And(eqs...)
}

// visitWhile implements the standard Horn-clause loop abstraction
// (§4.3.4): the header predicate's argument vector is a single fresh,
// unconstrained SSA index, reachable both from the pre-loop state and
// from the end of one body traversal. The solver, not the visitor,
// discovers what invariant makes both edges sound. A do-while loop
// (IsDoWhile) runs the body once unconditionally ahead of the header,
// mirroring the original visitor's `if (_while.isDoWhile())
// _while.body().accept(*this)` before it ever builds the header/cond
// machinery.
func (b *Builder) visitWhile(current *smt.Expression, vs visitState, n *ast.WhileStmt) (*smt.Expression, bool, error) {
	vars := b.trackedVars()

	headerPred, err := b.createBlock("while_header")
	if err != nil {
		return nil, false, err
	}

	exitBlock, err := b.createBlock("while_exit")
	if err != nil {
		return nil, false, err
	}
	loopVS := visitState{breakDest: exitBlock, continueDest: headerPred}

	entry := current
	entryUnknown := false
	if n.IsDoWhile {
		preBlock, err := b.createBlock("while_dowhile_entry")
		if err != nil {
			return nil, false, err
		}
		preApp, err := b.connectToBlock(current, preBlock, nil)
		if err != nil {
			return nil, false, err
		}
		tail, unknown, err := b.visitBlock(preApp, loopVS, n.Body)
		if err != nil {
			return nil, false, err
		}
		entry, entryUnknown = tail, unknown
		if entry == nil {
			return nil, entryUnknown, nil
		}
	}

	if _, err := b.connectToBlock(entry, headerPred, nil); err != nil {
		return nil, false, err
	}

	bumpIndices(vars)
	headerIdx := snapshotIndices(vars)

	cond, err := b.enc.Value(n.Cond)
	if err != nil {
		return nil, false, err
	}
	notCond, err := smt.Not(cond)
	if err != nil {
		return nil, false, err
	}
	headerArgs, err := b.frame.blockArgs()
	if err != nil {
		return nil, false, err
	}
	headerApp, err := headerPred.Apply(headerArgs...)
	if err != nil {
		return nil, false, err
	}

	bodyBlock, err := b.createBlock("while_body")
	if err != nil {
		return nil, false, err
	}
	bodyApp, err := b.connectToBlock(headerApp, bodyBlock, cond)
	if err != nil {
		return nil, false, err
	}
	bodyTail, bodyUnknown, err := b.visitBlock(bodyApp, loopVS, n.Body)
	if err != nil {
		return nil, false, err
	}
	if bodyTail != nil {
		if _, err := b.connectToBlock(bodyTail, headerPred, nil); err != nil {
			return nil, false, err
		}
	}

	restoreIndices(vars, headerIdx)
	exitApp, err := b.connectToBlock(headerApp, exitBlock, notCond)
	if err != nil {
		return nil, false, err
	}
	return exitApp, entryUnknown || bodyUnknown, nil
}

// visitFor implements §4.3.4's for-loop handling directly rather than
// desugaring to visitWhile: when there is a post-statement, continue
// must re-enter through it rather than skip past it, so it gets its own
// continueDest — a dedicated post-block predicate that itself edges
// back to the header — instead of sharing the header's, mirroring the
// original visitor's `m_continueDest = postLoop ? postLoopBlock.get() :
// loopHeaderBlock.get()`.
func (b *Builder) visitFor(current *smt.Expression, vs visitState, n *ast.ForStmt) (*smt.Expression, bool, error) {
	if n.Init != nil {
		next, seen, err := b.visitStmt(current, vs, n.Init)
		if err != nil {
			return nil, false, err
		}
		current = next
		if current == nil {
			return nil, seen, nil
		}
	}

	vars := b.trackedVars()

	headerPred, err := b.createBlock("for_header")
	if err != nil {
		return nil, false, err
	}
	if _, err := b.connectToBlock(current, headerPred, nil); err != nil {
		return nil, false, err
	}

	bumpIndices(vars)
	headerIdx := snapshotIndices(vars)

	var condVal *smt.Expression
	if n.Cond != nil {
		condVal, err = b.enc.Value(n.Cond)
		if err != nil {
			return nil, false, err
		}
	} else {
		condVal = smt.BoolConst(true)
	}
	notCond, err := smt.Not(condVal)
	if err != nil {
		return nil, false, err
	}
	headerArgs, err := b.frame.blockArgs()
	if err != nil {
		return nil, false, err
	}
	headerApp, err := headerPred.Apply(headerArgs...)
	if err != nil {
		return nil, false, err
	}

	exitBlock, err := b.createBlock("for_exit")
	if err != nil {
		return nil, false, err
	}

	continueDest := headerPred
	var postBlock *smt.SymbolicFunctionVariable
	var postApp *smt.Expression
	var postIdx []int
	if n.Post != nil {
		postBlock, err = b.createBlock("for_post")
		if err != nil {
			return nil, false, err
		}
		bumpIndices(vars)
		postIdx = snapshotIndices(vars)
		postArgs, err := b.frame.blockArgs()
		if err != nil {
			return nil, false, err
		}
		postApp, err = postBlock.Apply(postArgs...)
		if err != nil {
			return nil, false, err
		}
		restoreIndices(vars, headerIdx)
		continueDest = postBlock
	}
	loopVS := visitState{breakDest: exitBlock, continueDest: continueDest}

	bodyBlock, err := b.createBlock("for_body")
	if err != nil {
		return nil, false, err
	}
	bodyApp, err := b.connectToBlock(headerApp, bodyBlock, condVal)
	if err != nil {
		return nil, false, err
	}
	bodyTail, bodyUnknown, err := b.visitBlock(bodyApp, loopVS, n.Body)
	if err != nil {
		return nil, false, err
	}

	if n.Post != nil {
		if bodyTail != nil {
			if _, err := b.connectToBlock(bodyTail, postBlock, nil); err != nil {
				return nil, false, err
			}
		}
		restoreIndices(vars, postIdx)
		postTail, postUnknown, err := b.visitStmt(postApp, vs, n.Post)
		if err != nil {
			return nil, false, err
		}
		bodyUnknown = bodyUnknown || postUnknown
		if postTail != nil {
			if _, err := b.connectToBlock(postTail, headerPred, nil); err != nil {
				return nil, false, err
			}
		}
	} else if bodyTail != nil {
		if _, err := b.connectToBlock(bodyTail, headerPred, nil); err != nil {
			return nil, false, err
		}
	}

	restoreIndices(vars, headerIdx)
	exitApp, err := b.connectToBlock(headerApp, exitBlock, notCond)
	if err != nil {
		return nil, false, err
	}
	return exitApp, bodyUnknown, nil
}
