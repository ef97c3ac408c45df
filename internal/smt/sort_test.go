package smt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_sortEqual(t *testing.T) {
	assert.True(t, BoolSort().Equal(BoolSort()))
	assert.False(t, BoolSort().Equal(IntSort()))

	a1 := ArraySort(IntSort(), IntSort())
	a2 := ArraySort(IntSort(), IntSort())
	assert.True(t, a1.Equal(a2))

	a3 := ArraySort(IntSort(), BoolSort())
	assert.False(t, a1.Equal(a3))
}

func Test_sortString(t *testing.T) {
	assert.Equal(t, "Bool", BoolSort().String())
	assert.Equal(t, "Int", IntSort().String())
	assert.Contains(t, ArraySort(IntSort(), BoolSort()).String(), "Array")
	assert.Contains(t, TupleSort(IntSort(), BoolSort()).String(), "Tuple")
	assert.Contains(t, FunctionSort([]Sort{IntSort()}, BoolSort()).String(), "->")
}

func Test_sortZero(t *testing.T) {
	assert.Equal(t, "false", BoolSort().Zero().String())
	assert.Equal(t, "0", IntSort().Zero().String())
}
