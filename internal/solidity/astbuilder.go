package solidity

import (
	"encoding/json"
	"fmt"
	"strings"

	"chcverify/internal/ast"

	solc "github.com/Notation/solc-go"
)

// BuildSourceUnit translates one compiled file's solc standard-json AST
// into the checker's own typed tree (§6.1). solc's AST is itself a
// polymorphic JSON document (every node tagged by "nodeType"), so it is
// walked here as generic maps rather than through solc-go's own output
// types, whose AST field is not given a stable Go shape across solc
// versions.
func BuildSourceUnit(output *solc.Output, file string) (*ast.SourceUnit, error) {
	srcOut, ok := output.Sources[file]
	if !ok {
		return nil, fmt.Errorf("BuildSourceUnit: no AST for %s in compiler output", file)
	}
	raw, err := json.Marshal(srcOut.AST)
	if err != nil {
		return nil, fmt.Errorf("BuildSourceUnit: remarshal AST: %w", err)
	}
	var root map[string]interface{}
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("BuildSourceUnit: %w", err)
	}

	w := newWalker(file)
	for _, n := range asSlice(root["nodes"]) {
		node, ok := n.(map[string]interface{})
		if !ok || nodeType(node) != "ContractDefinition" {
			continue
		}
		w.declareContract(node)
	}
	for _, c := range w.unit.Contracts {
		w.linkBases(c)
	}
	for _, pending := range w.pendingBodies {
		body, err := w.buildBlock(pending.fn, pending.node)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", pending.fn.Name, err)
		}
		pending.fn.Body = body
	}
	return w.unit, nil
}

func asSlice(v interface{}) []interface{} {
	s, _ := v.([]interface{})
	return s
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

func nodeType(n map[string]interface{}) string {
	s, _ := n["nodeType"].(string)
	return s
}

func strField(n map[string]interface{}, key string) string {
	s, _ := n[key].(string)
	return s
}

func boolField(n map[string]interface{}, key string) bool {
	b, _ := n[key].(bool)
	return b
}

func idField(n map[string]interface{}, key string) int {
	f, _ := n[key].(float64)
	return int(f)
}

type pendingBody struct {
	fn   *ast.Function
	node map[string]interface{}
}

type walker struct {
	file          string
	unit          *ast.SourceUnit
	declsByID     map[int]*ast.VariableDeclaration
	funcsByID     map[int]*ast.Function
	contractsByID map[int]*ast.Contract
	baseIDs       map[*ast.Contract][]int
	pendingBodies []pendingBody
}

func newWalker(file string) *walker {
	return &walker{
		file:          file,
		unit:          &ast.SourceUnit{},
		declsByID:     make(map[int]*ast.VariableDeclaration),
		funcsByID:     make(map[int]*ast.Function),
		contractsByID: make(map[int]*ast.Contract),
		baseIDs:       make(map[*ast.Contract][]int),
	}
}

func (w *walker) loc(n map[string]interface{}) ast.Location {
	return ast.Location{File: w.file}
}

func (w *walker) declareContract(n map[string]interface{}) {
	kind := ast.ContractKindContract
	switch strField(n, "contractKind") {
	case "interface":
		kind = ast.ContractKindInterface
	case "library":
		kind = ast.ContractKindLibrary
	}
	c := &ast.Contract{
		ID:       idField(n, "id"),
		Name:     strField(n, "name"),
		Kind:     kind,
		Location: w.loc(n),
	}
	w.unit.Contracts = append(w.unit.Contracts, c)
	w.contractsByID[c.ID] = c

	for _, baseRaw := range asSlice(n["linearizedBaseContracts"]) {
		if f, ok := baseRaw.(float64); ok {
			w.baseIDs[c] = append(w.baseIDs[c], int(f))
		}
	}

	for _, sub := range asSlice(n["nodes"]) {
		node := asMap(sub)
		switch nodeType(node) {
		case "VariableDeclaration":
			decl := w.declareVariable(node)
			c.StateVariables = append(c.StateVariables, decl)
		case "FunctionDefinition":
			fn := w.declareFunction(node, c)
			c.Functions = append(c.Functions, fn)
			if fn.IsConstructor {
				c.Constructor = fn
			}
		}
	}
}

// linkBases replaces a contract's recorded base ids with the already-
// built Contract pointers, skipping the contract's own id (which always
// leads linearizedBaseContracts) and any interface/library ancestor.
func (w *walker) linkBases(c *ast.Contract) {
	for _, id := range w.baseIDs[c] {
		if id == c.ID {
			continue
		}
		base, ok := w.contractsByID[id]
		if !ok || base.Kind != ast.ContractKindContract {
			continue
		}
		c.Bases = append(c.Bases, base)
	}
}

func (w *walker) declareVariable(n map[string]interface{}) *ast.VariableDeclaration {
	decl := &ast.VariableDeclaration{
		ID:       idField(n, "id"),
		Name:     strField(n, "name"),
		Type:     w.varType(n),
		Location: w.loc(n),
	}
	w.declsByID[decl.ID] = decl
	return decl
}

// isUnsignedIntName reports whether a Solidity elementary type name (or
// the leading word of a typeString) names the uint* family rather than
// int*: both collapse onto ast.TypeInt, but only uint* carries the
// IsUnsigned bit that seeds a non-negativity fact (§8 scenario 3).
func isUnsignedIntName(name string) bool {
	return strings.HasPrefix(name, "uint")
}

func (w *walker) varType(n map[string]interface{}) ast.VarType {
	typeName := asMap(n["typeName"])
	switch nodeType(typeName) {
	case "Mapping":
		return ast.VarType{Kind: ast.TypeMapping}
	case "ArrayTypeName":
		return ast.VarType{Kind: ast.TypeArray}
	case "ElementaryTypeName":
		name := strField(typeName, "name")
		switch name {
		case "bool":
			return ast.VarType{Kind: ast.TypeBool}
		case "address", "address payable":
			return ast.VarType{Kind: ast.TypeAddress}
		default:
			return ast.VarType{Kind: ast.TypeInt, IsUnsigned: isUnsignedIntName(name)}
		}
	}
	// fall back to the type string solc always provides, even when
	// typeName is absent (e.g. on a function's own return parameters).
	desc := asMap(n["typeDescriptions"])
	typeString := strField(desc, "typeString")
	switch typeString {
	case "bool":
		return ast.VarType{Kind: ast.TypeBool}
	default:
		return ast.VarType{Kind: ast.TypeInt, IsUnsigned: isUnsignedIntName(typeString)}
	}
}

func (w *walker) declareFunction(n map[string]interface{}, c *ast.Contract) *ast.Function {
	fn := &ast.Function{
		ID:            idField(n, "id"),
		Name:          strField(n, "name"),
		Contract:      c,
		IsConstructor: strField(n, "kind") == "constructor",
		IsImplemented: boolField(n, "implemented"),
		IsPublic:      isPublicVisibility(strField(n, "visibility")),
		Location:      w.loc(n),
	}
	if fn.IsConstructor {
		fn.Name = c.Name
	}
	for _, p := range asSlice(asMap(n["parameters"])["parameters"]) {
		fn.Parameters = append(fn.Parameters, w.declareVariable(asMap(p)))
	}
	for _, r := range asSlice(asMap(n["returnParameters"])["parameters"]) {
		fn.ReturnParameters = append(fn.ReturnParameters, w.declareVariable(asMap(r)))
	}
	w.funcsByID[fn.ID] = fn
	if body := asMap(n["body"]); fn.IsImplemented && body != nil {
		w.pendingBodies = append(w.pendingBodies, pendingBody{fn: fn, node: body})
	}
	return fn
}

func isPublicVisibility(v string) bool {
	return v == "public" || v == "external"
}

func (w *walker) buildBlock(fn *ast.Function, n map[string]interface{}) (*ast.Block, error) {
	blk := &ast.Block{}
	for _, s := range asSlice(n["statements"]) {
		stmt, err := w.buildStmt(fn, asMap(s))
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			blk.Statements = append(blk.Statements, stmt)
		}
	}
	return blk, nil
}

func (w *walker) buildStmt(fn *ast.Function, n map[string]interface{}) (ast.Stmt, error) {
	switch nodeType(n) {
	case "Block", "UncheckedBlock":
		return w.buildBlock(fn, n)
	case "IfStatement":
		cond, err := w.buildExpr(fn, asMap(n["condition"]))
		if err != nil {
			return nil, err
		}
		then, err := w.buildStmtAsBlock(fn, asMap(n["trueBody"]))
		if err != nil {
			return nil, err
		}
		var els *ast.Block
		if falseBody := asMap(n["falseBody"]); falseBody != nil {
			els, err = w.buildStmtAsBlock(fn, falseBody)
			if err != nil {
				return nil, err
			}
		}
		return &ast.IfStmt{Cond: cond, Then: then, Else: els, Loc: w.loc(n)}, nil
	case "WhileStatement":
		cond, err := w.buildExpr(fn, asMap(n["condition"]))
		if err != nil {
			return nil, err
		}
		body, err := w.buildStmtAsBlock(fn, asMap(n["body"]))
		if err != nil {
			return nil, err
		}
		return &ast.WhileStmt{Cond: cond, Body: body, Loc: w.loc(n)}, nil
	case "DoWhileStatement":
		cond, err := w.buildExpr(fn, asMap(n["condition"]))
		if err != nil {
			return nil, err
		}
		body, err := w.buildStmtAsBlock(fn, asMap(n["body"]))
		if err != nil {
			return nil, err
		}
		return &ast.WhileStmt{Cond: cond, Body: body, IsDoWhile: true, Loc: w.loc(n)}, nil
	case "ForStatement":
		var init ast.Stmt
		var err error
		if initNode := asMap(n["initializationExpression"]); initNode != nil {
			init, err = w.buildStmt(fn, initNode)
			if err != nil {
				return nil, err
			}
		}
		var cond ast.Expr
		if condNode := asMap(n["condition"]); condNode != nil {
			cond, err = w.buildExpr(fn, condNode)
			if err != nil {
				return nil, err
			}
		}
		var post ast.Stmt
		if postNode := asMap(n["loopExpression"]); postNode != nil {
			post, err = w.buildStmt(fn, postNode)
			if err != nil {
				return nil, err
			}
		}
		body, err := w.buildStmtAsBlock(fn, asMap(n["body"]))
		if err != nil {
			return nil, err
		}
		return &ast.ForStmt{Init: init, Cond: cond, Post: post, Body: body, Loc: w.loc(n)}, nil
	case "Break":
		return &ast.BreakStmt{Loc: w.loc(n)}, nil
	case "Continue":
		return &ast.ContinueStmt{Loc: w.loc(n)}, nil
	case "ExpressionStatement":
		expr, err := w.buildExpr(fn, asMap(n["expression"]))
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{Expr: expr, Loc: w.loc(n)}, nil
	case "VariableDeclarationStatement":
		decls := asSlice(n["declarations"])
		if len(decls) != 1 || decls[0] == nil {
			return nil, fmt.Errorf("multi-value variable declarations are not supported")
		}
		decl := w.declareVariable(asMap(decls[0]))
		var init ast.Expr
		if initNode := asMap(n["initialValue"]); initNode != nil {
			var err error
			init, err = w.buildExpr(fn, initNode)
			if err != nil {
				return nil, err
			}
		}
		return &ast.VarDeclStmt{Decl: decl, Init: init, Loc: w.loc(n)}, nil
	case "Return":
		// a return with a value is rewritten as an assignment to the
		// function's own (always-named) first return parameter; bare
		// `return;` is a no-op edge, since control simply falls through
		// to the already-scheduled summary connection.
		if expr := asMap(n["expression"]); expr != nil && len(fn.ReturnParameters) > 0 {
			val, err := w.buildExpr(fn, expr)
			if err != nil {
				return nil, err
			}
			return &ast.ExprStmt{
				Expr: &ast.Assignment{Target: fn.ReturnParameters[0], Value: val, Location: w.loc(n)},
				Loc:  w.loc(n),
			}, nil
		}
		return nil, nil
	case "EmitStatement", "PlaceholderStatement":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported statement node %q", nodeType(n))
	}
}

func (w *walker) buildStmtAsBlock(fn *ast.Function, n map[string]interface{}) (*ast.Block, error) {
	if n == nil {
		return &ast.Block{}, nil
	}
	if nodeType(n) == "Block" || nodeType(n) == "UncheckedBlock" {
		return w.buildBlock(fn, n)
	}
	stmt, err := w.buildStmt(fn, n)
	if err != nil {
		return nil, err
	}
	if stmt == nil {
		return &ast.Block{}, nil
	}
	return &ast.Block{Statements: []ast.Stmt{stmt}}, nil
}

func (w *walker) buildExpr(fn *ast.Function, n map[string]interface{}) (ast.Expr, error) {
	switch nodeType(n) {
	case "Identifier":
		decl, ok := w.declsByID[idField(n, "referencedDeclaration")]
		if !ok {
			return nil, fmt.Errorf("identifier %q has no resolved declaration", strField(n, "name"))
		}
		return &ast.Identifier{Decl: decl, Location: w.loc(n)}, nil
	case "Literal":
		switch strField(n, "kind") {
		case "bool":
			return &ast.BoolLiteral{Value: strField(n, "value") == "true", Location: w.loc(n)}, nil
		default:
			var v int64
			fmt.Sscanf(strField(n, "value"), "%d", &v)
			return &ast.IntLiteral{Value: v, Location: w.loc(n)}, nil
		}
	case "UnaryOperation":
		operand, err := w.buildExpr(fn, asMap(n["subExpression"]))
		if err != nil {
			return nil, err
		}
		op := ast.OpNot
		if strField(n, "operator") == "-" {
			op = ast.OpNegate
		}
		return &ast.UnaryExpr{Op: op, Operand: operand, Location: w.loc(n)}, nil
	case "BinaryOperation":
		left, err := w.buildExpr(fn, asMap(n["leftExpression"]))
		if err != nil {
			return nil, err
		}
		right, err := w.buildExpr(fn, asMap(n["rightExpression"]))
		if err != nil {
			return nil, err
		}
		op, err := binaryOp(strField(n, "operator"))
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpr{Op: op, Left: left, Right: right, Location: w.loc(n)}, nil
	case "Assignment":
		lhs := asMap(n["leftHandSide"])
		if nodeType(lhs) != "Identifier" {
			return nil, fmt.Errorf("unsupported assignment target %q", nodeType(lhs))
		}
		decl, ok := w.declsByID[idField(lhs, "referencedDeclaration")]
		if !ok {
			return nil, fmt.Errorf("assignment target %q has no resolved declaration", strField(lhs, "name"))
		}
		rhs, err := w.buildExpr(fn, asMap(n["rightHandSide"]))
		if err != nil {
			return nil, err
		}
		if op := strField(n, "operator"); op != "=" {
			binOp, err := binaryOp(op[:len(op)-1])
			if err != nil {
				return nil, err
			}
			rhs = &ast.BinaryExpr{Op: binOp, Left: &ast.Identifier{Decl: decl, Location: w.loc(n)}, Right: rhs, Location: w.loc(n)}
		}
		return &ast.Assignment{Target: decl, Value: rhs, Location: w.loc(n)}, nil
	case "TupleExpression":
		inner := asSlice(n["components"])
		if len(inner) == 1 {
			return w.buildExpr(fn, asMap(inner[0]))
		}
		return nil, fmt.Errorf("multi-component tuple expressions are not supported")
	case "FunctionCall":
		return w.buildFunctionCall(fn, n)
	default:
		return nil, fmt.Errorf("unsupported expression node %q", nodeType(n))
	}
}

func binaryOp(op string) (ast.BinaryOp, error) {
	switch op {
	case "+":
		return ast.OpAdd, nil
	case "-":
		return ast.OpSub, nil
	case "*":
		return ast.OpMul, nil
	case "==":
		return ast.OpEq, nil
	case "!=":
		return ast.OpNeq, nil
	case "<":
		return ast.OpLt, nil
	case "<=":
		return ast.OpLe, nil
	case ">":
		return ast.OpGt, nil
	case ">=":
		return ast.OpGe, nil
	case "&&":
		return ast.OpAnd, nil
	case "||":
		return ast.OpOr, nil
	}
	return "", fmt.Errorf("unsupported operator %q", op)
}

func (w *walker) buildFunctionCall(fn *ast.Function, n map[string]interface{}) (ast.Expr, error) {
	callee := asMap(n["expression"])
	args := make([]ast.Expr, 0, len(asSlice(n["arguments"])))
	for _, a := range asSlice(n["arguments"]) {
		expr, err := w.buildExpr(fn, asMap(a))
		if err != nil {
			return nil, err
		}
		args = append(args, expr)
	}

	if strField(n, "kind") == "typeConversion" {
		if len(args) == 1 {
			return args[0], nil
		}
	}

	name := strField(callee, "name")
	switch name {
	case "assert", "require":
		return &ast.FunctionCall{Kind: ast.CallAssert, Arguments: args[:1], Location: w.loc(n)}, nil
	case "keccak256":
		return &ast.FunctionCall{Kind: ast.CallKeccak256, Arguments: args, Location: w.loc(n)}, nil
	case "sha256":
		return &ast.FunctionCall{Kind: ast.CallSHA256, Arguments: args, Location: w.loc(n)}, nil
	case "ripemd160":
		return &ast.FunctionCall{Kind: ast.CallRIPEMD160, Arguments: args, Location: w.loc(n)}, nil
	case "ecrecover":
		return &ast.FunctionCall{Kind: ast.CallECRecover, Arguments: args, Location: w.loc(n)}, nil
	case "addmod":
		return &ast.FunctionCall{Kind: ast.CallAddMod, Arguments: args, Location: w.loc(n)}, nil
	case "mulmod":
		return &ast.FunctionCall{Kind: ast.CallMulMod, Arguments: args, Location: w.loc(n)}, nil
	}

	if nodeType(callee) == "Identifier" {
		if target, ok := w.funcsByID[idField(callee, "referencedDeclaration")]; ok {
			return &ast.FunctionCall{Kind: ast.CallInternal, Target: target, Arguments: args, Location: w.loc(n)}, nil
		}
	}
	if nodeType(callee) == "MemberAccess" {
		switch strField(callee, "memberName") {
		case "delegatecall":
			return &ast.FunctionCall{Kind: ast.CallDelegateCall, Arguments: args, Location: w.loc(n)}, nil
		case "call":
			return &ast.FunctionCall{Kind: ast.CallBareCall, Arguments: args, Location: w.loc(n)}, nil
		case "staticcall":
			return &ast.FunctionCall{Kind: ast.CallBareStaticCall, Arguments: args, Location: w.loc(n)}, nil
		}
		if target, ok := w.funcsByID[idField(callee, "referencedDeclaration")]; ok {
			return &ast.FunctionCall{Kind: ast.CallInternal, Target: target, Arguments: args, Location: w.loc(n)}, nil
		}
	}
	// anything else (external call, low-level call, contract creation)
	// is opaque to the checker, per §4.3.5.
	return &ast.FunctionCall{Kind: ast.CallExternal, Arguments: args, Location: w.loc(n)}, nil
}
