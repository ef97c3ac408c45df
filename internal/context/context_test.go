package context

import (
	"testing"

	"chcverify/internal/ast"
	"chcverify/internal/smt"

	"github.com/stretchr/testify/assert"
)

type fakeRegistrar struct{}

func (fakeRegistrar) RegisterRelation(string, []smt.Sort) error { return nil }

func Test_variableLazyCreation(t *testing.T) {
	ctx := New(fakeRegistrar{})
	decl := &ast.VariableDeclaration{ID: 1, Name: "x", Type: ast.VarType{Kind: ast.TypeInt}}

	v1 := ctx.Variable(decl)
	v2 := ctx.Variable(decl)
	assert.Same(t, v1, v2)
	assert.True(t, v1.Sort().Equal(smt.IntSort()))
}

func Test_variableSortMapping(t *testing.T) {
	ctx := New(fakeRegistrar{})
	boolDecl := &ast.VariableDeclaration{ID: 1, Type: ast.VarType{Kind: ast.TypeBool}}
	mapDecl := &ast.VariableDeclaration{ID: 2, Type: ast.VarType{Kind: ast.TypeMapping}}

	assert.True(t, ctx.Variable(boolDecl).Sort().Equal(smt.BoolSort()))
	assert.Equal(t, smt.KindArray, ctx.Variable(mapDecl).Sort().Kind())
}

func Test_scopeStack(t *testing.T) {
	ctx := New(fakeRegistrar{})
	assert.Equal(t, 1, ctx.ScopeDepth())

	ctx.AddAssertion(smt.BoolConst(true))
	base, err := ctx.Assertions()
	assert.Nil(t, err)
	assert.Equal(t, "(and true)", base.String())

	ctx.PushSolver()
	assert.Equal(t, 2, ctx.ScopeDepth())
	ctx.AddAssertion(smt.BoolConst(false))
	nested, err := ctx.Assertions()
	assert.Nil(t, err)
	assert.Equal(t, "(and true false)", nested.String())

	ctx.PopSolver()
	assert.Equal(t, 1, ctx.ScopeDepth())

	// the base scope is never popped.
	ctx.PopSolver()
	assert.Equal(t, 1, ctx.ScopeDepth())
}

func Test_resetClearsAssertions(t *testing.T) {
	ctx := New(fakeRegistrar{})
	ctx.AddAssertion(smt.BoolConst(true))
	ctx.Reset()
	assert.Equal(t, 1, ctx.ScopeDepth())
	assertions, err := ctx.Assertions()
	assert.Nil(t, err)
	assert.Equal(t, "true", assertions.String())
}

func Test_resetVariablesMatch(t *testing.T) {
	ctx := New(fakeRegistrar{})
	tracked := &ast.VariableDeclaration{ID: 1, Type: ast.VarType{Kind: ast.TypeInt}}
	untracked := &ast.VariableDeclaration{ID: 2, Type: ast.VarType{Kind: ast.TypeInt}}

	trackedVar := ctx.Variable(tracked)
	untrackedVar := ctx.Variable(untracked)

	ctx.ResetVariables(func(d *ast.VariableDeclaration) bool { return d == tracked })
	assert.Equal(t, 1, trackedVar.CurrentIndex())
	assert.Equal(t, 0, untrackedVar.CurrentIndex())
}
