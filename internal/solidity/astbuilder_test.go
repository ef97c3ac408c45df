package solidity

import (
	"testing"

	"chcverify/internal/ast"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identifierNode(id int, name string) map[string]interface{} {
	return map[string]interface{}{
		"nodeType":              "Identifier",
		"name":                  name,
		"referencedDeclaration": float64(id),
	}
}

func intLiteralNode(v string) map[string]interface{} {
	return map[string]interface{}{"nodeType": "Literal", "kind": "number", "value": v}
}

func boolLiteralNode(v string) map[string]interface{} {
	return map[string]interface{}{"nodeType": "Literal", "kind": "bool", "value": v}
}

func binOpNode(op string, left, right map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"nodeType":        "BinaryOperation",
		"operator":        op,
		"leftExpression":  left,
		"rightExpression": right,
	}
}

func exprStmtNode(expr map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"nodeType": "ExpressionStatement", "expression": expr}
}

func blockNode(stmts ...map[string]interface{}) map[string]interface{} {
	out := make([]interface{}, len(stmts))
	for i, s := range stmts {
		out[i] = s
	}
	return map[string]interface{}{"nodeType": "Block", "statements": out}
}

func elementaryVarNode(id int, name, typeName string) map[string]interface{} {
	return map[string]interface{}{
		"nodeType": "VariableDeclaration",
		"id":       float64(id),
		"name":     name,
		"typeName": map[string]interface{}{"nodeType": "ElementaryTypeName", "name": typeName},
	}
}

func Test_varTypeMapping(t *testing.T) {
	w := newWalker("t.sol")

	boolDecl := w.declareVariable(elementaryVarNode(1, "b", "bool"))
	assert.Equal(t, ast.TypeBool, boolDecl.Type.Kind)

	addrDecl := w.declareVariable(elementaryVarNode(2, "a", "address"))
	assert.Equal(t, ast.TypeAddress, addrDecl.Type.Kind)

	intDecl := w.declareVariable(elementaryVarNode(3, "x", "uint256"))
	assert.Equal(t, ast.TypeInt, intDecl.Type.Kind)

	mapDecl := w.declareVariable(map[string]interface{}{
		"nodeType": "VariableDeclaration", "id": float64(4), "name": "m",
		"typeName": map[string]interface{}{"nodeType": "Mapping"},
	})
	assert.Equal(t, ast.TypeMapping, mapDecl.Type.Kind)
}

func Test_buildExprIdentifierAndLiteral(t *testing.T) {
	w := newWalker("t.sol")
	decl := &ast.VariableDeclaration{ID: 10, Name: "v", Type: ast.VarType{Kind: ast.TypeInt}}
	w.declsByID[10] = decl

	expr, err := w.buildExpr(nil, identifierNode(10, "v"))
	require.NoError(t, err)
	id, ok := expr.(*ast.Identifier)
	require.True(t, ok)
	assert.Same(t, decl, id.Decl)

	lit, err := w.buildExpr(nil, intLiteralNode("42"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), lit.(*ast.IntLiteral).Value)

	b, err := w.buildExpr(nil, boolLiteralNode("true"))
	require.NoError(t, err)
	assert.True(t, b.(*ast.BoolLiteral).Value)
}

func Test_buildExprBinaryOperation(t *testing.T) {
	w := newWalker("t.sol")
	w.declsByID[1] = &ast.VariableDeclaration{ID: 1, Name: "v", Type: ast.VarType{Kind: ast.TypeInt}}

	node := binOpNode(">", identifierNode(1, "v"), intLiteralNode("0"))
	expr, err := w.buildExpr(nil, node)
	require.NoError(t, err)
	bin := expr.(*ast.BinaryExpr)
	assert.Equal(t, ast.OpGt, bin.Op)
}

func Test_buildStmtIfStatement(t *testing.T) {
	w := newWalker("t.sol")
	vDecl := &ast.VariableDeclaration{ID: 1, Name: "v", Type: ast.VarType{Kind: ast.TypeInt}}
	xDecl := &ast.VariableDeclaration{ID: 2, Name: "x", Type: ast.VarType{Kind: ast.TypeInt}}
	w.declsByID[1] = vDecl
	w.declsByID[2] = xDecl

	assign := map[string]interface{}{
		"nodeType":      "Assignment",
		"operator":      "=",
		"leftHandSide":  identifierNode(2, "x"),
		"rightHandSide": identifierNode(1, "v"),
	}
	ifNode := map[string]interface{}{
		"nodeType":  "IfStatement",
		"condition": binOpNode(">", identifierNode(1, "v"), intLiteralNode("0")),
		"trueBody":  exprStmtNode(assign),
		"falseBody": blockNode(exprStmtNode(assign)),
	}

	stmt, err := w.buildStmt(nil, ifNode)
	require.NoError(t, err)
	n := stmt.(*ast.IfStmt)
	require.Len(t, n.Then.Statements, 1)
	require.NotNil(t, n.Else)
	require.Len(t, n.Else.Statements, 1)
}

func Test_buildFunctionCallAssert(t *testing.T) {
	w := newWalker("t.sol")
	w.declsByID[1] = &ast.VariableDeclaration{ID: 1, Name: "v", Type: ast.VarType{Kind: ast.TypeInt}}

	call := map[string]interface{}{
		"nodeType":   "FunctionCall",
		"kind":       "functionCall",
		"expression": map[string]interface{}{"nodeType": "Identifier", "name": "assert"},
		"arguments":  []interface{}{binOpNode(">", identifierNode(1, "v"), intLiteralNode("0"))},
	}
	expr, err := w.buildExpr(nil, call)
	require.NoError(t, err)
	fc := expr.(*ast.FunctionCall)
	assert.Equal(t, ast.CallAssert, fc.Kind)
	assert.Len(t, fc.Arguments, 1)
}

func Test_buildFunctionCallInternal(t *testing.T) {
	w := newWalker("t.sol")
	callee := &ast.Function{ID: 99, Name: "helper"}
	w.funcsByID[99] = callee

	call := map[string]interface{}{
		"nodeType":   "FunctionCall",
		"kind":       "functionCall",
		"expression": map[string]interface{}{"nodeType": "Identifier", "referencedDeclaration": float64(99), "name": "helper"},
		"arguments":  []interface{}{},
	}
	expr, err := w.buildExpr(nil, call)
	require.NoError(t, err)
	fc := expr.(*ast.FunctionCall)
	assert.Equal(t, ast.CallInternal, fc.Kind)
	assert.Same(t, callee, fc.Target)
}

func Test_declareContractWithStateVarsAndBases(t *testing.T) {
	w := newWalker("t.sol")

	base := map[string]interface{}{
		"nodeType":                "ContractDefinition",
		"id":                      float64(1),
		"name":                    "Base",
		"contractKind":            "contract",
		"linearizedBaseContracts": []interface{}{float64(1)},
		"nodes":                   []interface{}{elementaryVarNode(2, "x", "uint256")},
	}
	derived := map[string]interface{}{
		"nodeType":                "ContractDefinition",
		"id":                      float64(3),
		"name":                    "Derived",
		"contractKind":            "contract",
		"linearizedBaseContracts": []interface{}{float64(3), float64(1)},
		"nodes":                   []interface{}{},
	}

	w.declareContract(base)
	w.declareContract(derived)
	for _, c := range w.unit.Contracts {
		w.linkBases(c)
	}

	require.Len(t, w.unit.Contracts, 2)
	baseC := w.contractsByID[1]
	derivedC := w.contractsByID[3]
	require.Len(t, baseC.StateVariables, 1)
	assert.Equal(t, "x", baseC.StateVariables[0].Name)
	require.Len(t, derivedC.Bases, 1)
	assert.Same(t, baseC, derivedC.Bases[0])
}

func Test_declareFunctionConstructorNaming(t *testing.T) {
	w := newWalker("t.sol")
	c := &ast.Contract{ID: 1, Name: "C"}
	fnNode := map[string]interface{}{
		"nodeType":     "FunctionDefinition",
		"id":           float64(5),
		"kind":         "constructor",
		"implemented":  true,
		"visibility":   "public",
		"parameters":   map[string]interface{}{"parameters": []interface{}{}},
		"body":         blockNode(),
	}
	fn := w.declareFunction(fnNode, c)
	assert.True(t, fn.IsConstructor)
	assert.Equal(t, "C", fn.Name)
	assert.True(t, fn.IsPublic)
	require.Len(t, w.pendingBodies, 1)
}
