package solver

import (
	"fmt"

	"chcverify/internal/smt"

	"github.com/aclements/go-z3/z3"
)

// Native is an experimental, opt-in Horn solver back-end. aclements/go-z3
// exposes Z3's Context/Solver/Sort/Const surface but not a
// Fixedpoint/Spacer binding and not a quantifier builder this package can
// safely target, so relations are modeled as uninterpreted Bool-returning
// functions and each rule's free variables are asserted as bare
// constants rather than universally quantified. A ground assertion of
// that shape can always be satisfied by giving every relation constant
// the value true, so for a goal that is a positive relation application,
// as every error-predicate query is, Query answers StatusSat (or fails
// outright); it answers StatusUnsat only for a goal that contradicts the
// ground assertions directly, and must never be trusted alone to clear
// an assertion. It stays in the tree as
// a fast, unsound SAT-witness finder and as a cross-check partner for
// Composite; config.Default leaves it disabled and prefers the SMTLIB2
// back-end, which defers the actual fixed-point computation to a real
// external Datalog/CHC engine instead of performing it in-process.
type Native struct {
	ctx     *z3.Context
	solver  *z3.Solver
	rels    map[string]*z3.FuncDecl
	domains map[string][]smt.Sort
	consts  map[string]z3.Value
	unhandled []string
}

func NewNative() *Native {
	cfg := z3.NewContextConfig()
	ctx := z3.NewContext(cfg)
	return &Native{
		ctx:     ctx,
		solver:  ctx.NewSolver(),
		rels:    make(map[string]*z3.FuncDecl),
		domains: make(map[string][]smt.Sort),
		consts:  make(map[string]z3.Value),
	}
}

func (n *Native) RegisterRelation(name string, domain []smt.Sort) error {
	if _, ok := n.rels[name]; ok {
		return nil
	}
	sorts := make([]z3.Sort, len(domain))
	for i, d := range domain {
		s, err := n.sortFor(d)
		if err != nil {
			return err
		}
		sorts[i] = s
	}
	decl := n.ctx.FuncDecl(name, sorts, n.ctx.BoolSort())
	n.rels[name] = decl
	n.domains[name] = domain
	return nil
}

func (n *Native) sortFor(s smt.Sort) (z3.Sort, error) {
	switch s.Kind() {
	case smt.KindBool:
		return n.ctx.BoolSort(), nil
	case smt.KindInt:
		return n.ctx.IntSort(), nil
	case smt.KindArray:
		index, err := n.sortFor(s.Domain()[0])
		if err != nil {
			return z3.Sort{}, err
		}
		elem, err := n.sortFor(s.Codomain())
		if err != nil {
			return z3.Sort{}, err
		}
		return n.ctx.ArraySort(index, elem), nil
	default:
		return z3.Sort{}, fmt.Errorf("native: unsupported sort %s", s)
	}
}

func (n *Native) constFor(name string, s smt.Sort) (z3.Value, error) {
	if v, ok := n.consts[name]; ok {
		return v, nil
	}
	sort, err := n.sortFor(s)
	if err != nil {
		return nil, err
	}
	v := n.ctx.Const(name, sort)
	n.consts[name] = v
	return v, nil
}

// convert translates an smt.Expression into a go-z3 Value, following
// the tagged-kind switch pattern borzacchiello/gosmt's z3backend.go
// uses to drive its own Z3 conversion.
func (n *Native) convert(e *smt.Expression) (z3.Value, error) {
	switch e.ExprKind() {
	case smt.ExprBoolConst:
		return n.ctx.FromBool(e.String() == "true"), nil
	case smt.ExprIntConst:
		v, err := n.constFor("__lit_"+e.String(), smt.IntSort())
		if err != nil {
			return nil, err
		}
		return v, nil
	case smt.ExprSymbol:
		return n.constFor(e.String(), e.Sort())
	case smt.ExprApp:
		decl, ok := n.rels[relationName(e)]
		if !ok {
			return nil, fmt.Errorf("native: relation %q not registered", relationName(e))
		}
		args := make([]z3.Value, len(e.Args()))
		for i, a := range e.Args() {
			v, err := n.convert(a)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return decl.Apply(args...), nil
	default:
		return n.convertConnective(e)
	}
}

func (n *Native) convertConnective(e *smt.Expression) (z3.Value, error) {
	args := make([]z3.Bool, len(e.Args()))
	for i, a := range e.Args() {
		v, err := n.convert(a)
		if err != nil {
			return nil, err
		}
		b, ok := v.(z3.Bool)
		if !ok && e.ExprKind() != smt.ExprEq && e.ExprKind() != smt.ExprLt &&
			e.ExprKind() != smt.ExprLe && e.ExprKind() != smt.ExprGt && e.ExprKind() != smt.ExprGe &&
			e.ExprKind() != smt.ExprAdd && e.ExprKind() != smt.ExprSub && e.ExprKind() != smt.ExprMul {
			return nil, fmt.Errorf("native: expected Bool operand")
		}
		args[i] = b
	}
	_ = args
	return n.convertArith(e)
}

// convertArith handles the arithmetic and comparison node kinds, kept
// separate from convertConnective because their operands are Int, not
// Bool.
func (n *Native) convertArith(e *smt.Expression) (z3.Value, error) {
	switch e.ExprKind() {
	case smt.ExprAnd, smt.ExprOr, smt.ExprNot, smt.ExprImplies:
		return n.convertBool(e)
	}
	vals := make([]z3.Int, len(e.Args()))
	for i, a := range e.Args() {
		v, err := n.convert(a)
		if err != nil {
			return nil, err
		}
		iv, ok := v.(z3.Int)
		if !ok {
			return nil, fmt.Errorf("native: expected Int operand for %v", e.ExprKind())
		}
		vals[i] = iv
	}
	switch e.ExprKind() {
	case smt.ExprEq:
		return vals[0].Eq(vals[1]), nil
	case smt.ExprLt:
		return vals[0].LT(vals[1]), nil
	case smt.ExprLe:
		return vals[0].LE(vals[1]), nil
	case smt.ExprGt:
		return vals[0].GT(vals[1]), nil
	case smt.ExprGe:
		return vals[0].GE(vals[1]), nil
	case smt.ExprAdd:
		return vals[0].Add(vals[1:]...), nil
	case smt.ExprSub:
		return vals[0].Sub(vals[1:]...), nil
	case smt.ExprMul:
		return vals[0].Mul(vals[1:]...), nil
	}
	return nil, fmt.Errorf("native: unhandled expression kind %v", e.ExprKind())
}

func (n *Native) convertBool(e *smt.Expression) (z3.Value, error) {
	bs := make([]z3.Bool, len(e.Args()))
	for i, a := range e.Args() {
		v, err := n.convert(a)
		if err != nil {
			return nil, err
		}
		b, ok := v.(z3.Bool)
		if !ok {
			return nil, fmt.Errorf("native: expected Bool operand")
		}
		bs[i] = b
	}
	switch e.ExprKind() {
	case smt.ExprAnd:
		return bs[0].And(bs[1:]...), nil
	case smt.ExprOr:
		return bs[0].Or(bs[1:]...), nil
	case smt.ExprNot:
		return bs[0].Not(), nil
	case smt.ExprImplies:
		return bs[0].Implies(bs[1]), nil
	}
	return nil, fmt.Errorf("native: unhandled boolean kind %v", e.ExprKind())
}

func relationName(app *smt.Expression) string {
	// ExprApp's canonical String form is "(name arg...)"; the builder
	// always constructs these through smt.Apply, which stores the bare
	// name separately, but Expression does not export it, so rules are
	// keyed by the name embedded at the front of String().
	s := app.String()
	depth := 0
	for i, c := range s {
		switch c {
		case '(':
			depth++
		case ' ':
			if depth == 1 {
				return s[1:i]
			}
		}
	}
	return s
}

func (n *Native) AddRule(rule *smt.Expression, name string) error {
	v, err := n.convert(rule)
	if err != nil {
		return fmt.Errorf("native.AddRule %s: %w", name, err)
	}
	b, ok := v.(z3.Bool)
	if !ok {
		return fmt.Errorf("native.AddRule %s: rule is not Bool-sorted", name)
	}
	n.solver.Assert(b)
	return nil
}

func (n *Native) Query(goal *smt.Expression) (Status, error) {
	v, err := n.convert(goal)
	if err != nil {
		n.unhandled = append(n.unhandled, goal.String())
		return StatusError, err
	}
	b, ok := v.(z3.Bool)
	if !ok {
		return StatusError, fmt.Errorf("native.Query: goal is not Bool-sorted")
	}
	n.solver.Push()
	defer n.solver.Pop()
	n.solver.Assert(b)
	sat, err := n.solver.Check()
	if err != nil {
		return StatusUnknown, nil
	}
	if sat {
		return StatusSat, nil
	}
	return StatusUnsat, nil
}

func (n *Native) UnhandledQueries() []string { return n.unhandled }
