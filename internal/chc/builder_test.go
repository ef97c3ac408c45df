package chc

import (
	"strings"
	"testing"

	"chcverify/internal/ast"
	"chcverify/internal/diagnostics"
	"chcverify/internal/smt"
	"chcverify/internal/solver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter records every rule/relation it is handed and answers every
// query with a fixed status, so tests can assert on the shape of the
// emitted Horn-clause program without a real solver.
type fakeAdapter struct {
	relations map[string][]smt.Sort
	rules     []string
	ruleTexts []string
	queryWith solver.Status
}

func newFakeAdapter(answer solver.Status) *fakeAdapter {
	return &fakeAdapter{relations: make(map[string][]smt.Sort), queryWith: answer}
}

func (f *fakeAdapter) RegisterRelation(name string, domain []smt.Sort) error {
	f.relations[name] = domain
	return nil
}

func (f *fakeAdapter) AddRule(rule *smt.Expression, name string) error {
	f.rules = append(f.rules, name)
	f.ruleTexts = append(f.ruleTexts, rule.String())
	return nil
}

func (f *fakeAdapter) Query(goal *smt.Expression) (solver.Status, error) {
	return f.queryWith, nil
}

func (f *fakeAdapter) UnhandledQueries() []string { return nil }

func intDecl(id int, name string) *ast.VariableDeclaration {
	return &ast.VariableDeclaration{ID: id, Name: name, Type: ast.VarType{Kind: ast.TypeInt}}
}

// buildSetterContract constructs:
//
//	contract C {
//	    uint x;
//	    function setX(uint v) public { assert(v > 0); x = v; }
//	}
func buildSetterContract() (*ast.Contract, *ast.VariableDeclaration, *ast.VariableDeclaration) {
	xDecl := intDecl(1, "x")
	vDecl := intDecl(2, "v")

	assertCall := &ast.FunctionCall{
		Kind: ast.CallAssert,
		Arguments: []ast.Expr{
			&ast.BinaryExpr{Op: ast.OpGt, Left: &ast.Identifier{Decl: vDecl}, Right: &ast.IntLiteral{Value: 0}},
		},
	}
	assign := &ast.Assignment{Target: xDecl, Value: &ast.Identifier{Decl: vDecl}}

	fn := &ast.Function{
		ID:            1,
		Name:          "setX",
		Parameters:    []*ast.VariableDeclaration{vDecl},
		IsImplemented: true,
		IsPublic:      true,
		Body: &ast.Block{Statements: []ast.Stmt{
			&ast.ExprStmt{Expr: assertCall},
			&ast.ExprStmt{Expr: assign},
		}},
	}

	c := &ast.Contract{
		ID:             1,
		Name:           "C",
		Kind:           ast.ContractKindContract,
		StateVariables: []*ast.VariableDeclaration{xDecl},
		Functions:      []*ast.Function{fn},
	}
	fn.Contract = c
	return c, xDecl, vDecl
}

func Test_analyzeSimpleAssertSat(t *testing.T) {
	c, _, _ := buildSetterContract()
	adapter := newFakeAdapter(solver.StatusSat)
	reporter := diagnostics.NewReporter()
	b := NewBuilder(adapter, reporter)

	err := b.Analyze(&ast.SourceUnit{Contracts: []*ast.Contract{c}})
	require.NoError(t, err)

	assert.NotEmpty(t, adapter.rules)
	assert.Contains(t, adapter.relations, "interface_C_1")
	assert.False(t, reporter.HasErrors())
	assert.NotEmpty(t, reporter.Diagnostics())
}

func Test_analyzeSimpleAssertUnsat(t *testing.T) {
	c, _, _ := buildSetterContract()
	adapter := newFakeAdapter(solver.StatusUnsat)
	reporter := diagnostics.NewReporter()
	b := NewBuilder(adapter, reporter)

	err := b.Analyze(&ast.SourceUnit{Contracts: []*ast.Contract{c}})
	require.NoError(t, err)
	assert.Empty(t, reporter.Diagnostics())
}

func Test_analyzeSkipsLibrariesAndInterfaces(t *testing.T) {
	lib := &ast.Contract{ID: 2, Name: "L", Kind: ast.ContractKindLibrary}
	iface := &ast.Contract{ID: 20, Name: "I", Kind: ast.ContractKindInterface}
	adapter := newFakeAdapter(solver.StatusUnsat)
	reporter := diagnostics.NewReporter()
	b := NewBuilder(adapter, reporter)

	err := b.Analyze(&ast.SourceUnit{Contracts: []*ast.Contract{lib, iface}})
	require.NoError(t, err)
	assert.Empty(t, adapter.rules)
}

// buildCallerContract wires an internal call from caller() into callee(),
// exercising visitInternalCall's summary-application path.
func buildCallerContract() *ast.Contract {
	pDecl := intDecl(3, "p")
	calleeFn := &ast.Function{
		ID:            2,
		Name:          "callee",
		Parameters:    []*ast.VariableDeclaration{pDecl},
		IsImplemented: true,
		Body: &ast.Block{Statements: []ast.Stmt{
			&ast.ExprStmt{Expr: &ast.FunctionCall{
				Kind:      ast.CallAssert,
				Arguments: []ast.Expr{&ast.BinaryExpr{Op: ast.OpGe, Left: &ast.Identifier{Decl: pDecl}, Right: &ast.IntLiteral{Value: 0}}},
			}},
		}},
	}

	call := &ast.FunctionCall{
		Kind:      ast.CallInternal,
		Target:    calleeFn,
		Arguments: []ast.Expr{&ast.IntLiteral{Value: 1}},
	}
	callerFn := &ast.Function{
		ID:            3,
		Name:          "caller",
		IsImplemented: true,
		IsPublic:      true,
		Body: &ast.Block{Statements: []ast.Stmt{
			&ast.ExprStmt{Expr: call},
		}},
	}

	c := &ast.Contract{
		ID:        3,
		Name:      "D",
		Kind:      ast.ContractKindContract,
		Functions: []*ast.Function{calleeFn, callerFn},
	}
	calleeFn.Contract = c
	callerFn.Contract = c
	return c
}

func Test_analyzeInternalCall(t *testing.T) {
	c := buildCallerContract()
	adapter := newFakeAdapter(solver.StatusUnsat)
	reporter := diagnostics.NewReporter()
	b := NewBuilder(adapter, reporter)

	err := b.Analyze(&ast.SourceUnit{Contracts: []*ast.Contract{c}})
	require.NoError(t, err)
	assert.Contains(t, adapter.relations, "summary_callee_2")
}

// buildUnknownCallContract exercises the opaque-call knowledge-erasure
// path: an external call's only modeled effect is bumping every state
// variable's SSA index.
func buildUnknownCallContract() (*ast.Contract, *ast.VariableDeclaration) {
	xDecl := intDecl(4, "x")
	fn := &ast.Function{
		ID:            4,
		Name:          "touch",
		IsImplemented: true,
		IsPublic:      true,
		Body: &ast.Block{Statements: []ast.Stmt{
			&ast.ExprStmt{Expr: &ast.FunctionCall{Kind: ast.CallExternal}},
		}},
	}
	c := &ast.Contract{
		ID:             4,
		Name:           "E",
		Kind:           ast.ContractKindContract,
		StateVariables: []*ast.VariableDeclaration{xDecl},
		Functions:      []*ast.Function{fn},
	}
	fn.Contract = c
	return c, xDecl
}

func Test_analyzeUnknownCallErasesKnowledge(t *testing.T) {
	c, _ := buildUnknownCallContract()
	adapter := newFakeAdapter(solver.StatusUnsat)
	reporter := diagnostics.NewReporter()
	b := NewBuilder(adapter, reporter)

	err := b.Analyze(&ast.SourceUnit{Contracts: []*ast.Contract{c}})
	require.NoError(t, err)

	hasUnknownCallBlock := false
	for name := range adapter.relations {
		if len(name) >= len("unknown_call") && name[:len("unknown_call")] == "unknown_call" {
			hasUnknownCallBlock = true
		}
	}
	assert.True(t, hasUnknownCallBlock)

	// the erase bumps x, so the rule into the unknown_call block carries
	// x_1 as its state_post argument (the last one: touch has no
	// parameters, returns or locals).
	var unknownHead string
	for _, r := range adapter.ruleTexts {
		_, head, ok := splitImplies(r)
		if ok && strings.HasPrefix(head, "(unknown_call") {
			unknownHead = head
		}
	}
	headTokens := strings.Fields(strings.Trim(unknownHead, "()"))
	require.NotEmpty(t, headTokens)
	assert.Equal(t, "x_1", headTokens[len(headTokens)-1])
}

// buildBranchingContract exercises the if/else phi-merge path.
func buildBranchingContract() *ast.Contract {
	xDecl := intDecl(5, "x")
	vDecl := intDecl(6, "v")

	thenBlock := &ast.Block{Statements: []ast.Stmt{
		&ast.ExprStmt{Expr: &ast.Assignment{Target: xDecl, Value: &ast.IntLiteral{Value: 1}}},
	}}
	elseBlock := &ast.Block{Statements: []ast.Stmt{
		&ast.ExprStmt{Expr: &ast.Assignment{Target: xDecl, Value: &ast.IntLiteral{Value: 2}}},
	}}
	ifStmt := &ast.IfStmt{
		Cond: &ast.BinaryExpr{Op: ast.OpGt, Left: &ast.Identifier{Decl: vDecl}, Right: &ast.IntLiteral{Value: 0}},
		Then: thenBlock,
		Else: elseBlock,
	}

	fn := &ast.Function{
		ID:            5,
		Name:          "branch",
		Parameters:    []*ast.VariableDeclaration{vDecl},
		IsImplemented: true,
		IsPublic:      true,
		Body:          &ast.Block{Statements: []ast.Stmt{ifStmt}},
	}
	c := &ast.Contract{
		ID:             5,
		Name:           "F",
		Kind:           ast.ContractKindContract,
		StateVariables: []*ast.VariableDeclaration{xDecl},
		Functions:      []*ast.Function{fn},
	}
	fn.Contract = c
	return c
}

func Test_analyzeIfElseMerge(t *testing.T) {
	c := buildBranchingContract()
	adapter := newFakeAdapter(solver.StatusUnsat)
	reporter := diagnostics.NewReporter()
	b := NewBuilder(adapter, reporter)

	err := b.Analyze(&ast.SourceUnit{Contracts: []*ast.Contract{c}})
	require.NoError(t, err)

	joined := false
	for name := range adapter.relations {
		if len(name) >= len("if_join") && name[:len("if_join")] == "if_join" {
			joined = true
		}
	}
	assert.True(t, joined)
}

// buildLoopContract exercises visitWhile's header/body/exit wiring.
func buildLoopContract() *ast.Contract {
	iDecl := intDecl(7, "i")
	loop := &ast.WhileStmt{
		Cond: &ast.BinaryExpr{Op: ast.OpLt, Left: &ast.Identifier{Decl: iDecl}, Right: &ast.IntLiteral{Value: 10}},
		Body: &ast.Block{Statements: []ast.Stmt{
			&ast.ExprStmt{Expr: &ast.Assignment{Target: iDecl, Value: &ast.BinaryExpr{Op: ast.OpAdd, Left: &ast.Identifier{Decl: iDecl}, Right: &ast.IntLiteral{Value: 1}}}},
		}},
	}
	fn := &ast.Function{
		ID:            6,
		Name:          "loop",
		IsImplemented: true,
		IsPublic:      true,
		Body:          &ast.Block{Statements: []ast.Stmt{&ast.VarDeclStmt{Decl: iDecl, Init: &ast.IntLiteral{Value: 0}}, loop}},
	}
	c := &ast.Contract{
		ID:        6,
		Name:      "G",
		Kind:      ast.ContractKindContract,
		Functions: []*ast.Function{fn},
	}
	fn.Contract = c
	return c
}

func Test_analyzeWhileLoop(t *testing.T) {
	c := buildLoopContract()
	adapter := newFakeAdapter(solver.StatusUnsat)
	reporter := diagnostics.NewReporter()
	b := NewBuilder(adapter, reporter)

	err := b.Analyze(&ast.SourceUnit{Contracts: []*ast.Contract{c}})
	require.NoError(t, err)

	hasHeader, hasExit := false, false
	for name := range adapter.relations {
		if len(name) >= len("while_header") && name[:len("while_header")] == "while_header" {
			hasHeader = true
		}
		if len(name) >= len("while_exit") && name[:len("while_exit")] == "while_exit" {
			hasExit = true
		}
	}
	assert.True(t, hasHeader)
	assert.True(t, hasExit)
}

// buildEraseThenAssignContract exercises the if/else phi-merge
// together with knowledge erasure: the then branch makes an opaque
// external call (erasing s), the else branch assigns s = 42. Both are
// reported to visitBlock's unknownSeen return, so a function-level
// erase run again after the merge would desync the summary rule from
// whichever index the else branch actually left s at.
func buildEraseThenAssignContract() *ast.Contract {
	sDecl := intDecl(10, "s")
	flagDecl := &ast.VariableDeclaration{ID: 11, Name: "flag", Type: ast.VarType{Kind: ast.TypeBool}}

	ifStmt := &ast.IfStmt{
		Cond: &ast.Identifier{Decl: flagDecl},
		Then: &ast.Block{Statements: []ast.Stmt{
			&ast.ExprStmt{Expr: &ast.FunctionCall{Kind: ast.CallExternal}},
		}},
		Else: &ast.Block{Statements: []ast.Stmt{
			&ast.ExprStmt{Expr: &ast.Assignment{Target: sDecl, Value: &ast.IntLiteral{Value: 42}}},
		}},
	}

	fn := &ast.Function{
		ID:            10,
		Name:          "maybeTouch",
		Parameters:    []*ast.VariableDeclaration{flagDecl},
		IsImplemented: true,
		IsPublic:      true,
		Body:          &ast.Block{Statements: []ast.Stmt{ifStmt}},
	}
	c := &ast.Contract{
		ID:             10,
		Name:           "H",
		Kind:           ast.ContractKindContract,
		StateVariables: []*ast.VariableDeclaration{sDecl},
		Functions:      []*ast.Function{fn},
	}
	fn.Contract = c
	return c
}

// splitImplies parses a "(=> BODY HEAD)" rule string, respecting
// nested parens, so a test can inspect each side of a recorded rule
// without needing smt.Expression accessors.
func splitImplies(s string) (body, head string, ok bool) {
	const prefix = "(=> "
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, ")") {
		return "", "", false
	}
	rest := s[len(prefix) : len(s)-1]
	depth := 0
	for i, c := range rest {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 {
			return rest[:i+1], strings.TrimSpace(rest[i+1:]), true
		}
	}
	return "", "", false
}

// Test_analyzeEraseDoesNotDesyncSummaryFromMerge guards against a
// regression where a blanket knowledge-erase re-run at function exit,
// after the if/else phi-merge already settled s, would bump s's SSA
// index a second time with no connecting rule — leaving the summary
// rule's state_post argument for s referencing a symbol that appears
// nowhere in the rule's own body.
func Test_analyzeEraseDoesNotDesyncSummaryFromMerge(t *testing.T) {
	c := buildEraseThenAssignContract()
	adapter := newFakeAdapter(solver.StatusUnsat)
	reporter := diagnostics.NewReporter()
	b := NewBuilder(adapter, reporter)

	err := b.Analyze(&ast.SourceUnit{Contracts: []*ast.Contract{c}})
	require.NoError(t, err)

	var summaryRule string
	for _, r := range adapter.ruleTexts {
		body, head, ok := splitImplies(r)
		if !ok || !strings.HasPrefix(head, "(summary_maybeTouch_10 ") {
			continue
		}
		summaryRule = r
		headTokens := strings.Fields(strings.Trim(head, "()"))
		require.NotEmpty(t, headTokens)
		for _, tok := range headTokens[1:] {
			assert.Contains(t, body, tok,
				"summary rule's head argument %q does not appear in its own body %q; a knowledge erase after the merge desynced the rule", tok, body)
		}
	}
	require.NotEmpty(t, summaryRule, "expected a rule concluding the summary predicate")
}
