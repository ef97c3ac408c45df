package solver

import (
	"fmt"

	"chcverify/internal/smt"

	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"
)

// Yices is a second experimental, opt-in native back-end, restyled from
// the teacher's internal/smt.Solver (which wrapped a fixed 256-bit
// BitVec algebra) onto this package's Int/Bool/Array sorts:
// yices2.BvType(256) becomes yices2.IntType()/BoolType(), and
// NewUninterpretedTerm plays the same role for an uninterpreted relation
// it played for the teacher's symbolic arrays. Like Native, it asserts
// each rule's free variables as bare constants rather than universally
// quantifying them, so it shares Native's inability to prove a query
// unreachable; enabling both alongside Composite only confirms they
// reach the same unsound Sat answer for the same reason, which is
// useful evidence while that limitation stands but is not a
// cross-check in the soundness sense. config.Default leaves it off.
type Yices struct {
	ctx yices2.ContextT
	cfg yices2.ConfigT

	rels    map[string]yices2.TermT
	domains map[string][]smt.Sort
	terms   map[string]yices2.TermT

	unhandled []string
}

func NewYices() *Yices {
	var (
		ctx yices2.ContextT
		cfg yices2.ConfigT
	)
	yices2.InitConfig(&cfg)
	yices2.InitContext(cfg, &ctx)
	return &Yices{
		ctx:     ctx,
		cfg:     cfg,
		rels:    make(map[string]yices2.TermT),
		domains: make(map[string][]smt.Sort),
		terms:   make(map[string]yices2.TermT),
	}
}

func (y *Yices) yicesType(s smt.Sort) (yices2.TypeT, error) {
	switch s.Kind() {
	case smt.KindBool:
		return yices2.BoolType(), nil
	case smt.KindInt:
		return yices2.IntType(), nil
	case smt.KindArray:
		index, err := y.yicesType(s.Domain()[0])
		if err != nil {
			return 0, err
		}
		elem, err := y.yicesType(s.Codomain())
		if err != nil {
			return 0, err
		}
		return yices2.FunctionType1(index, elem), nil
	default:
		return 0, fmt.Errorf("yices: unsupported sort %s", s)
	}
}

func (y *Yices) RegisterRelation(name string, domain []smt.Sort) error {
	if _, ok := y.rels[name]; ok {
		return nil
	}
	domainTypes := make([]yices2.TypeT, len(domain))
	for i, d := range domain {
		t, err := y.yicesType(d)
		if err != nil {
			return err
		}
		domainTypes[i] = t
	}
	fnType := yices2.FunctionType(domainTypes, yices2.BoolType())
	term := yices2.NewUninterpretedTerm(fnType)
	yices2.SetTermName(term, name)
	y.rels[name] = term
	y.domains[name] = domain
	return nil
}

func (y *Yices) constFor(name string, s smt.Sort) (yices2.TermT, error) {
	if t, ok := y.terms[name]; ok {
		return t, nil
	}
	typ, err := y.yicesType(s)
	if err != nil {
		return 0, err
	}
	t := yices2.NewUninterpretedTerm(typ)
	yices2.SetTermName(t, name)
	y.terms[name] = t
	return t, nil
}

// convert mirrors Native.convert over yices2.TermT instead of go-z3
// values; it is the same tagged-kind switch, translated once per sort
// algebra rather than once per back-end API.
func (y *Yices) convert(e *smt.Expression) (yices2.TermT, error) {
	switch e.ExprKind() {
	case smt.ExprBoolConst:
		if e.String() == "true" {
			return yices2.True(), nil
		}
		return yices2.False(), nil
	case smt.ExprIntConst:
		return y.constFor("__lit_"+e.String(), smt.IntSort())
	case smt.ExprSymbol:
		return y.constFor(e.String(), e.Sort())
	case smt.ExprApp:
		rel, ok := y.rels[relationName(e)]
		if !ok {
			return 0, fmt.Errorf("yices: relation %q not registered", relationName(e))
		}
		args := make([]yices2.TermT, len(e.Args()))
		for i, a := range e.Args() {
			t, err := y.convert(a)
			if err != nil {
				return 0, err
			}
			args[i] = t
		}
		return yices2.Application(rel, args), nil
	case smt.ExprAnd:
		return y.nary(e, yices2.And)
	case smt.ExprOr:
		return y.nary(e, yices2.Or)
	case smt.ExprNot:
		arg, err := y.convert(e.Args()[0])
		if err != nil {
			return 0, err
		}
		return yices2.Not(arg), nil
	case smt.ExprImplies:
		l, r, err := y.binary(e)
		if err != nil {
			return 0, err
		}
		return yices2.Implies(l, r), nil
	case smt.ExprEq:
		l, r, err := y.binary(e)
		if err != nil {
			return 0, err
		}
		return yices2.Eq(l, r), nil
	case smt.ExprLt:
		l, r, err := y.binary(e)
		if err != nil {
			return 0, err
		}
		return yices2.ArithLt(l, r), nil
	case smt.ExprLe:
		l, r, err := y.binary(e)
		if err != nil {
			return 0, err
		}
		return yices2.ArithLeq(l, r), nil
	case smt.ExprGt:
		l, r, err := y.binary(e)
		if err != nil {
			return 0, err
		}
		return yices2.ArithGt(l, r), nil
	case smt.ExprGe:
		l, r, err := y.binary(e)
		if err != nil {
			return 0, err
		}
		return yices2.ArithGeq(l, r), nil
	case smt.ExprAdd:
		return y.nary(e, yices2.Sum)
	case smt.ExprSub:
		l, r, err := y.binary(e)
		if err != nil {
			return 0, err
		}
		return yices2.Sub(l, r), nil
	case smt.ExprMul:
		return y.nary(e, yices2.Product)
	default:
		return 0, fmt.Errorf("yices: unhandled expression kind %v", e.ExprKind())
	}
}

func (y *Yices) binary(e *smt.Expression) (yices2.TermT, yices2.TermT, error) {
	l, err := y.convert(e.Args()[0])
	if err != nil {
		return 0, 0, err
	}
	r, err := y.convert(e.Args()[1])
	if err != nil {
		return 0, 0, err
	}
	return l, r, nil
}

func (y *Yices) nary(e *smt.Expression, combine func([]yices2.TermT) yices2.TermT) (yices2.TermT, error) {
	terms := make([]yices2.TermT, len(e.Args()))
	for i, a := range e.Args() {
		t, err := y.convert(a)
		if err != nil {
			return 0, err
		}
		terms[i] = t
	}
	return combine(terms), nil
}

func (y *Yices) AddRule(rule *smt.Expression, name string) error {
	term, err := y.convert(rule)
	if err != nil {
		return fmt.Errorf("yices.AddRule %s: %w", name, err)
	}
	code := yices2.AssertFormula(y.ctx, term)
	if code < 0 {
		return fmt.Errorf("yices.AddRule %s: %s", name, yices2.ErrorString())
	}
	return nil
}

func (y *Yices) Query(goal *smt.Expression) (Status, error) {
	term, err := y.convert(goal)
	if err != nil {
		y.unhandled = append(y.unhandled, goal.String())
		return StatusError, err
	}
	yices2.Push(y.ctx)
	defer yices2.Pop(y.ctx)
	if yices2.AssertFormula(y.ctx, term) < 0 {
		return StatusError, fmt.Errorf("yices.Query: %s", yices2.ErrorString())
	}
	switch yices2.CheckContext(y.ctx, yices2.NullParamT) {
	case yices2.StatusSat:
		return StatusSat, nil
	case yices2.StatusUnsat:
		return StatusUnsat, nil
	default:
		return StatusUnknown, nil
	}
}

func (y *Yices) UnhandledQueries() []string { return y.unhandled }

func (y *Yices) Close() {
	yices2.FreeContext(y.ctx)
	yices2.FreeConfig(y.cfg)
}
