package smt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ExprKind tags an Expression node, following the tagged-kind pattern
// used throughout the SMT expression algebras in the retrieval pack.
type ExprKind int

const (
	ExprBoolConst ExprKind = iota
	ExprIntConst
	ExprSymbol
	ExprApp // application of a Function-sorted symbol, incl. predicates
	ExprAnd
	ExprOr
	ExprNot
	ExprImplies
	ExprEq
	ExprLt
	ExprLe
	ExprGt
	ExprGe
	ExprAdd
	ExprSub
	ExprMul
)

var exprKindNames = map[ExprKind]string{
	ExprBoolConst: "bool", ExprIntConst: "int", ExprSymbol: "sym", ExprApp: "app",
	ExprAnd: "and", ExprOr: "or", ExprNot: "not", ExprImplies: "=>", ExprEq: "=",
	ExprLt: "<", ExprLe: "<=", ExprGt: ">", ExprGe: ">=",
	ExprAdd: "+", ExprSub: "-", ExprMul: "*",
}

// Expression is a tagged first-order term. It carries its own sort and a
// memoized structural hash (Hash); rule and predicate names are built
// from String(), not from the hash.
type Expression struct {
	kind    ExprKind
	sort    Sort
	name    string // ExprSymbol / ExprApp: the symbol's name
	boolVal bool
	intVal  int64
	args    []*Expression
	hash    uint64
	hashSet bool
}

func (e *Expression) Kind() Kind { return e.sort.Kind() }
func (e *Expression) ExprKind() ExprKind { return e.kind }
func (e *Expression) Sort() Sort  { return e.sort }
func (e *Expression) Args() []*Expression { return e.args }

func (e *Expression) Hash() uint64 {
	if e.hashSet {
		return e.hash
	}
	h := xxhash.New()
	_, _ = h.Write([]byte(exprKindNames[e.kind]))
	_, _ = h.Write([]byte(e.sort.String()))
	_, _ = h.Write([]byte(e.name))
	if e.kind == ExprBoolConst {
		_, _ = h.Write([]byte(strconv.FormatBool(e.boolVal)))
	}
	if e.kind == ExprIntConst {
		_, _ = h.Write([]byte(strconv.FormatInt(e.intVal, 10)))
	}
	for _, a := range e.args {
		var buf [8]byte
		ah := a.Hash()
		for i := 0; i < 8; i++ {
			buf[i] = byte(ah >> (8 * i))
		}
		_, _ = h.Write(buf[:])
	}
	e.hash = h.Sum64()
	e.hashSet = true
	return e.hash
}

// String renders a canonical textual form, used both for rule naming
// and as the basis of SMT-LIB2 serialization. No simplification or
// normalization is performed; the back-end solver is expected to do
// that on its own term representation.
func (e *Expression) String() string {
	switch e.kind {
	case ExprBoolConst:
		return strconv.FormatBool(e.boolVal)
	case ExprIntConst:
		return strconv.FormatInt(e.intVal, 10)
	case ExprSymbol:
		return e.name
	case ExprApp:
		parts := make([]string, len(e.args))
		for i, a := range e.args {
			parts[i] = a.String()
		}
		return "(" + e.name + " " + strings.Join(parts, " ") + ")"
	default:
		parts := make([]string, len(e.args))
		for i, a := range e.args {
			parts[i] = a.String()
		}
		return "(" + exprKindNames[e.kind] + " " + strings.Join(parts, " ") + ")"
	}
}

func BoolConst(v bool) *Expression {
	return &Expression{kind: ExprBoolConst, sort: BoolSort(), boolVal: v}
}

func IntConst(v int64) *Expression {
	return &Expression{kind: ExprIntConst, sort: IntSort(), intVal: v}
}

// Symbol constructs a free variable or predicate-symbol reference of the
// given sort and name. Callers do not call this directly for predicate
// applications; use Apply.
func Symbol(name string, sort Sort) *Expression {
	return &Expression{kind: ExprSymbol, sort: sort, name: name}
}

// Apply applies a named Function-sorted symbol to arguments, producing
// an application Expression whose sort is the symbol's codomain. This
// is how predicate-symbol (relation) applications and summary-predicate
// applications are built.
func Apply(name string, fnSort Sort, args ...*Expression) (*Expression, error) {
	if fnSort.Kind() != KindFunction {
		return nil, fmt.Errorf("Apply: %s is not a function sort", fnSort)
	}
	domain := fnSort.Domain()
	if len(domain) != len(args) {
		return nil, fmt.Errorf("Apply %s: expected %d args, got %d", name, len(domain), len(args))
	}
	for i, a := range args {
		if !a.Sort().Equal(domain[i]) {
			return nil, fmt.Errorf("Apply %s: argument %d has sort %s, want %s", name, i, a.Sort(), domain[i])
		}
	}
	return &Expression{kind: ExprApp, sort: fnSort.Codomain(), name: name, args: append([]*Expression(nil), args...)}, nil
}

func boolNode(kind ExprKind, args ...*Expression) (*Expression, error) {
	for i, a := range args {
		if a.Sort().Kind() != KindBool {
			return nil, fmt.Errorf("%s: argument %d is not Bool", exprKindNames[kind], i)
		}
	}
	return &Expression{kind: kind, sort: BoolSort(), args: append([]*Expression(nil), args...)}, nil
}

func And(args ...*Expression) (*Expression, error) {
	if len(args) == 0 {
		return BoolConst(true), nil
	}
	return boolNode(ExprAnd, args...)
}

func Or(args ...*Expression) (*Expression, error) {
	if len(args) == 0 {
		return BoolConst(false), nil
	}
	return boolNode(ExprOr, args...)
}

func Not(e *Expression) (*Expression, error) {
	return boolNode(ExprNot, e)
}

func Implies(a, b *Expression) (*Expression, error) {
	return boolNode(ExprImplies, a, b)
}

func Eq(a, b *Expression) (*Expression, error) {
	if !a.Sort().Equal(b.Sort()) {
		return nil, fmt.Errorf("Eq: sort mismatch %s vs %s", a.Sort(), b.Sort())
	}
	return &Expression{kind: ExprEq, sort: BoolSort(), args: []*Expression{a, b}}, nil
}

func intCompare(kind ExprKind, a, b *Expression) (*Expression, error) {
	if a.Sort().Kind() != KindInt || b.Sort().Kind() != KindInt {
		return nil, fmt.Errorf("%s: operands must be Int", exprKindNames[kind])
	}
	return &Expression{kind: kind, sort: BoolSort(), args: []*Expression{a, b}}, nil
}

func Lt(a, b *Expression) (*Expression, error) { return intCompare(ExprLt, a, b) }
func Le(a, b *Expression) (*Expression, error) { return intCompare(ExprLe, a, b) }
func Gt(a, b *Expression) (*Expression, error) { return intCompare(ExprGt, a, b) }
func Ge(a, b *Expression) (*Expression, error) { return intCompare(ExprGe, a, b) }

func intArith(kind ExprKind, args ...*Expression) (*Expression, error) {
	for i, a := range args {
		if a.Sort().Kind() != KindInt {
			return nil, fmt.Errorf("%s: argument %d is not Int", exprKindNames[kind], i)
		}
	}
	return &Expression{kind: kind, sort: IntSort(), args: append([]*Expression(nil), args...)}, nil
}

func Add(args ...*Expression) (*Expression, error) { return intArith(ExprAdd, args...) }
func Sub(args ...*Expression) (*Expression, error) { return intArith(ExprSub, args...) }
func Mul(args ...*Expression) (*Expression, error) { return intArith(ExprMul, args...) }
