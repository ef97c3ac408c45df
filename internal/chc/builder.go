// Package chc is the CFG Builder / Rule Emitter: the component that
// walks a contract's AST and emits Horn rules over predicate symbols.
// It is a faithful rewrite of the original CHC.cpp's visit/endVisit
// pass, re-architected per §9: no virtual dispatch, no cyclic
// owner graph, an explicit visitor-state struct instead of ambient
// mutable fields, and result-typed errors instead of aborting
// assertions.
package chc

import (
	"fmt"

	"chcverify/internal/ast"
	"chcverify/internal/context"
	"chcverify/internal/diagnostics"
	"chcverify/internal/encoder"
	"chcverify/internal/smt"
	"chcverify/internal/solver"

	log "github.com/sirupsen/logrus"
)

// Builder owns one source unit's analysis. It is not safe for
// concurrent use; §5 specifies the core as single-threaded.
type Builder struct {
	solver   solver.Adapter
	ctx      *context.Context
	enc      *encoder.Encoder
	reporter *diagnostics.Reporter

	blockCounter int

	// per-contract state, reset by resetContractState.
	contract                *ast.Contract
	stateVars               []*smt.SymbolicVariable
	interfacePred           *smt.SymbolicFunctionVariable
	implicitConstructorPred *smt.SymbolicFunctionVariable
	genesisPred             *smt.SymbolicFunctionVariable
	summaries               map[*ast.Function]*smt.SymbolicFunctionVariable
	functionErrors          map[*ast.Function]*smt.SymbolicFunctionVariable
	verificationTargets     []*ast.FunctionCall

	// per-function state, valid only while visiting one function body.
	frame           *Frame
	currentFunction *ast.Function
}

func NewBuilder(adapter solver.Adapter, reporter *diagnostics.Reporter) *Builder {
	ctx := context.New(adapter)
	return &Builder{
		solver:   adapter,
		ctx:      ctx,
		enc:      encoder.New(ctx),
		reporter: reporter,
	}
}

// Analyze visits every contract in the unit that is neither an
// interface nor a library, per §4.6.
func (b *Builder) Analyze(unit *ast.SourceUnit) error {
	for _, c := range unit.Contracts {
		if !b.shouldVisitContract(c) {
			log.Infof("skipping %s: interface or library", c.Name)
			continue
		}
		if err := b.visitContract(c); err != nil {
			return fmt.Errorf("visiting contract %s: %w", c.Name, err)
		}
	}
	return nil
}

func (b *Builder) shouldVisitContract(c *ast.Contract) bool {
	return c.Kind == ast.ContractKindContract
}

func (b *Builder) shouldVisitFunction(fn *ast.Function) bool {
	return fn.IsImplemented
}

func (b *Builder) resetContractState(c *ast.Contract) {
	b.contract = c
	b.summaries = make(map[*ast.Function]*smt.SymbolicFunctionVariable)
	b.functionErrors = make(map[*ast.Function]*smt.SymbolicFunctionVariable)
	b.verificationTargets = nil

	b.stateVars = make([]*smt.SymbolicVariable, len(c.StateVariables))
	for i, decl := range c.StateVariables {
		sv := b.ctx.Variable(decl)
		sv.ResetIndex()
		b.stateVars[i] = sv
	}
}

// contractName suffixes a predicate base name with the contract's
// identity so that two contracts in one source unit never collide on
// `interface`/`error`/`implicit_constructor`.
func (b *Builder) contractName(base string) string {
	return fmt.Sprintf("%s_%s_%d", base, b.contract.Name, b.contract.ID)
}

// eraseKnowledge forgets state-variable and reference-typed local
// knowledge at an unknown call site (§4.3.4, §4.3.5); it is not re-run
// when the enclosing construct ends. Every affected variable's SSA index is advanced so every
// prior assumption about its value stops applying.
func (b *Builder) eraseKnowledge() {
	b.ctx.ResetVariables(func(decl *ast.VariableDeclaration) bool {
		for _, sv := range b.contract.StateVariables {
			if sv == decl {
				return true
			}
		}
		return decl.Type.IsReferenceLike()
	})
}

func (b *Builder) report(fn *ast.Function, status solver.Status) {
	loc := fn.Location
	switch status {
	case solver.StatusSat:
		b.reporter.Warning(loc, fmt.Sprintf("assertion in %s may fail", fn.Name))
	case solver.StatusUnknown:
		b.reporter.Warning(loc, fmt.Sprintf("solver answered unknown for %s", fn.Name))
	case solver.StatusConflicting:
		b.reporter.Warning(loc, fmt.Sprintf("solver back-ends disagreed for %s", fn.Name))
	case solver.StatusError:
		b.reporter.Error(loc, fmt.Sprintf("solver error while checking %s", fn.Name))
	case solver.StatusUnsat:
		// safe; nothing to report.
	}
}
