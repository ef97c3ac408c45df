package solver

import (
	"testing"

	"chcverify/internal/smt"

	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_yicesFactRoundTrip(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	y := NewYices()
	defer y.Close()

	p, err := smt.NewSymbolicFunctionVariable(y, "p", []smt.Sort{smt.IntSort()})
	require.NoError(t, err)

	app5, err := p.Apply(smt.IntConst(5))
	require.NoError(t, err)

	fact, err := smt.Implies(smt.BoolConst(true), app5)
	require.NoError(t, err)
	require.NoError(t, y.AddRule(fact, "fact_p_5"))

	status, err := y.Query(app5)
	require.NoError(t, err)
	assert.Equal(t, StatusSat, status)

	notApp5, err := smt.Not(app5)
	require.NoError(t, err)
	status, err = y.Query(notApp5)
	require.NoError(t, err)
	assert.Equal(t, StatusUnsat, status)
}

// Test_yicesFreeVariableRuleCannotProveUnsat mirrors
// Test_nativeFreeVariableRuleCannotProveUnsat: a rule over a free
// variable is asserted as a constant rather than universally
// quantified, so Query cannot use it to rule out an instantiation it
// was never separately told about.
func Test_yicesFreeVariableRuleCannotProveUnsat(t *testing.T) {
	yices2.Init()
	defer yices2.Exit()

	y := NewYices()
	defer y.Close()

	p, err := smt.NewSymbolicFunctionVariable(y, "p", []smt.Sort{smt.IntSort()})
	require.NoError(t, err)

	x := smt.NewSymbolicVariable("x", smt.IntSort())
	appX, err := p.Apply(x.CurrentValue())
	require.NoError(t, err)

	rule, err := smt.Implies(smt.BoolConst(true), appX)
	require.NoError(t, err)
	require.NoError(t, y.AddRule(rule, "p_holds_for_x"))

	app10, err := p.Apply(smt.IntConst(10))
	require.NoError(t, err)
	notApp10, err := smt.Not(app10)
	require.NoError(t, err)

	status, err := y.Query(notApp10)
	require.NoError(t, err)
	assert.Equal(t, StatusSat, status)
}
