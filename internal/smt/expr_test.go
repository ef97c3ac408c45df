package smt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_exprString(t *testing.T) {
	assert.Equal(t, "true", BoolConst(true).String())
	assert.Equal(t, "42", IntConst(42).String())

	a, err := Add(IntConst(1), IntConst(2))
	assert.Nil(t, err)
	assert.Equal(t, "(+ 1 2)", a.String())

	eq, err := Eq(IntConst(1), IntConst(1))
	assert.Nil(t, err)
	assert.Equal(t, "(= 1 1)", eq.String())
}

func Test_exprApply(t *testing.T) {
	fnSort := FunctionSort([]Sort{IntSort(), BoolSort()}, BoolSort())
	app, err := Apply("p", fnSort, IntConst(1), BoolConst(true))
	assert.Nil(t, err)
	assert.Equal(t, "(p 1 true)", app.String())
	assert.True(t, app.Sort().Equal(BoolSort()))

	_, err = Apply("p", fnSort, IntConst(1))
	assert.Error(t, err)

	_, err = Apply("p", fnSort, BoolConst(true), BoolConst(true))
	assert.Error(t, err)
}

func Test_exprSortMismatch(t *testing.T) {
	_, err := Eq(IntConst(1), BoolConst(true))
	assert.Error(t, err)

	_, err = Add(IntConst(1), BoolConst(true))
	assert.Error(t, err)
}

func Test_exprHashStable(t *testing.T) {
	a, _ := Add(IntConst(1), IntConst(2))
	b, _ := Add(IntConst(1), IntConst(2))
	assert.Equal(t, a.Hash(), b.Hash())

	c, _ := Add(IntConst(1), IntConst(3))
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func Test_exprLogic(t *testing.T) {
	p := Symbol("p", BoolSort())
	q := Symbol("q", BoolSort())

	and, err := And(p, q)
	assert.Nil(t, err)
	assert.Equal(t, "(and p q)", and.String())

	not, err := Not(p)
	assert.Nil(t, err)
	assert.Equal(t, "(not p)", not.String())

	implies, err := Implies(p, q)
	assert.Nil(t, err)
	assert.Equal(t, "(=> p q)", implies.String())

	// a nullary And is the Horn-rule body of an unconditional fact.
	trueAnd, err := And()
	assert.Nil(t, err)
	assert.Equal(t, "true", trueAnd.String())
}
