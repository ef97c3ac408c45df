package chc

import (
	"fmt"

	"chcverify/internal/ast"
	"chcverify/internal/smt"
)

// visitContract implements §4.3.1.
func (b *Builder) visitContract(c *ast.Contract) error {
	b.resetContractState(c)

	stateSorts := sorts(b.stateVars)

	var err error
	b.interfacePred, err = smt.NewSymbolicFunctionVariable(b.solver, b.contractName("interface"), stateSorts)
	if err != nil {
		return err
	}
	b.implicitConstructorPred, err = smt.NewSymbolicFunctionVariable(b.solver, b.contractName("implicit_constructor"), stateSorts)
	if err != nil {
		return err
	}
	b.genesisPred, err = smt.NewSymbolicFunctionVariable(b.solver, b.contractName("genesis"), nil)
	if err != nil {
		return err
	}

	// register a summary predicate per function defined by this
	// contract (§4.3.1; inherited functions are covered when their
	// defining contract is visited on its own - cross-contract
	// composition is out of scope, see DESIGN.md).
	for _, fn := range c.Functions {
		if fn.IsConstructor || !b.shouldVisitFunction(fn) {
			continue
		}
		frame, err := b.newFrame(fn)
		if err != nil {
			return err
		}
		pred, err := smt.NewSymbolicFunctionVariable(b.solver, b.functionPredicateName(fn, "summary"), frame.summaryDomain())
		if err != nil {
			return err
		}
		b.summaries[fn] = pred
	}

	genesisApp, err := b.genesisPred.Apply()
	if err != nil {
		return err
	}
	factRule, err := smt.Implies(smt.BoolConst(true), genesisApp)
	if err != nil {
		return err
	}
	if err := b.solver.AddRule(factRule, "genesis_fact_"+b.contract.Name); err != nil {
		return err
	}

	icApp, err := b.implicitConstructorPred.Apply(currentValues(b.stateVars)...)
	if err != nil {
		return err
	}
	icRule, err := smt.Implies(genesisApp, icApp)
	if err != nil {
		return err
	}
	if err := b.solver.AddRule(icRule, "genesis_to_implicit_constructor_"+b.contract.Name); err != nil {
		return err
	}

	currentBlock := icApp
	if c.Constructor != nil {
		currentBlock, err = b.visitConstructor(c.Constructor, currentBlock)
	} else {
		currentBlock, err = b.visitBaseConstructors(c, currentBlock)
	}
	if err != nil {
		return err
	}

	ifaceApp, err := b.interfacePred.Apply(currentValues(b.stateVars)...)
	if err != nil {
		return err
	}
	assumed, err := b.ctx.Assertions()
	if err != nil {
		return err
	}
	body, err := smt.And(currentBlock, assumed)
	if err != nil {
		return err
	}
	exitRule, err := smt.Implies(body, ifaceApp)
	if err != nil {
		return err
	}
	if err := b.solver.AddRule(exitRule, "to_interface_"+b.contract.Name); err != nil {
		return err
	}

	// visit every non-constructor function body, then query its error
	// predicate if it is public.
	for _, fn := range c.Functions {
		if fn.IsConstructor || !b.shouldVisitFunction(fn) {
			continue
		}
		if err := b.visitFunction(fn); err != nil {
			return fmt.Errorf("function %s: %w", fn.Name, err)
		}
	}

	for fn, errPred := range b.functionErrors {
		goal, err := errPred.Apply()
		if err != nil {
			return err
		}
		status, err := b.solver.Query(goal)
		if err != nil {
			b.reporter.Error(fn.Location, fmt.Sprintf("query for %s failed: %v", fn.Name, err))
			continue
		}
		b.report(fn, status)
	}

	return nil
}

// visitBaseConstructors inlines each base contract's constructor body,
// in c.Bases order (the linearization, nearest base first), when the
// derived contract has no explicit constructor of its own (§4.3.3).
func (b *Builder) visitBaseConstructors(c *ast.Contract, currentBlock *smt.Expression) (*smt.Expression, error) {
	for _, base := range c.Bases {
		if base.Constructor == nil {
			continue
		}
		if b.frame == nil {
			// the first base constructor opens the frame; every later
			// one reuses it, so state writes carry across the chain.
			b.currentFunction = base.Constructor
			frame, err := b.newFrame(base.Constructor)
			if err != nil {
				return nil, err
			}
			b.frame = frame
			defer func() {
				b.currentFunction = nil
				b.frame = nil
			}()
		}
		var err error
		currentBlock, err = b.visitConstructor(base.Constructor, currentBlock)
		if err != nil {
			return nil, err
		}
	}
	return currentBlock, nil
}

func (b *Builder) functionPredicateName(fn *ast.Function, base string) string {
	return fmt.Sprintf("%s_%s_%d", base, fn.Name, fn.ID)
}
