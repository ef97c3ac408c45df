package solver

import (
	"errors"
	"testing"

	"chcverify/internal/smt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	status Status
	err    error
	rules  []string
	unh    []string
}

func (s *stubAdapter) RegisterRelation(name string, domain []smt.Sort) error { return nil }
func (s *stubAdapter) AddRule(rule *smt.Expression, name string) error {
	s.rules = append(s.rules, name)
	return nil
}
func (s *stubAdapter) Query(goal *smt.Expression) (Status, error) { return s.status, s.err }
func (s *stubAdapter) UnhandledQueries() []string                 { return s.unh }

func Test_compositeAgreement(t *testing.T) {
	c := NewComposite(&stubAdapter{status: StatusUnsat}, &stubAdapter{status: StatusUnsat})
	status, err := c.Query(smt.BoolConst(true))
	require.NoError(t, err)
	assert.Equal(t, StatusUnsat, status)
}

func Test_compositeConflict(t *testing.T) {
	c := NewComposite(&stubAdapter{status: StatusSat}, &stubAdapter{status: StatusUnsat})
	status, err := c.Query(smt.BoolConst(true))
	require.NoError(t, err)
	assert.Equal(t, StatusConflicting, status)
}

func Test_compositeUnknownOutvoted(t *testing.T) {
	c := NewComposite(&stubAdapter{status: StatusUnknown}, &stubAdapter{status: StatusSat})
	status, err := c.Query(smt.BoolConst(true))
	require.NoError(t, err)
	assert.Equal(t, StatusSat, status)
}

func Test_compositeErrorWithNoDefiniteAnswer(t *testing.T) {
	c := NewComposite(&stubAdapter{status: StatusError, err: errors.New("boom")})
	status, err := c.Query(smt.BoolConst(true))
	assert.Error(t, err)
	assert.Equal(t, StatusError, status)
}

func Test_compositeFansOutRulesAndUnhandled(t *testing.T) {
	a := &stubAdapter{status: StatusUnsat, unh: []string{"q1"}}
	b := &stubAdapter{status: StatusUnsat, unh: []string{"q2"}}
	c := NewComposite(a, b)

	require.NoError(t, c.AddRule(smt.BoolConst(true), "r1"))
	assert.Equal(t, []string{"r1"}, a.rules)
	assert.Equal(t, []string{"r1"}, b.rules)

	assert.ElementsMatch(t, []string{"q1", "q2"}, c.UnhandledQueries())
}
