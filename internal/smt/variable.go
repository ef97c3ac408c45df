package smt

import "fmt"

// SymbolicVariable is an SSA-indexed symbolic value bound to one source
// declaration (or other stable identity). Issued indices are monotone:
// IncreaseIndex always hands out an index not issued since the last
// ResetIndex, even after SetIndex has rewound the current one.
type SymbolicVariable struct {
	name    string
	sort    Sort
	index   int
	highest int // largest index issued since the last ResetIndex
}

func NewSymbolicVariable(name string, sort Sort) *SymbolicVariable {
	return &SymbolicVariable{name: name, sort: sort}
}

func (v *SymbolicVariable) Name() string       { return v.name }
func (v *SymbolicVariable) Sort() Sort         { return v.sort }
func (v *SymbolicVariable) CurrentIndex() int  { return v.index }

// CurrentValue returns the Expression naming this variable at its
// current SSA index. It is stable until the next IncreaseIndex.
func (v *SymbolicVariable) CurrentValue() *Expression {
	val, _ := v.ValueAt(v.index)
	return val
}

// ValueAt returns the Expression naming this variable at a specific SSA
// index. Indices beyond the current one are not yet defined.
func (v *SymbolicVariable) ValueAt(i int) (*Expression, error) {
	if i > v.index {
		return nil, fmt.Errorf("ValueAt: %s has no value at index %d (current %d)", v.name, i, v.index)
	}
	return Symbol(fmt.Sprintf("%s_%d", v.name, i), v.sort), nil
}

// IncreaseIndex advances the SSA index to a fresh, never-issued value
// and returns it.
func (v *SymbolicVariable) IncreaseIndex() int {
	v.highest++
	v.index = v.highest
	return v.index
}

// ResetIndex rewinds to index 0, used when entering a fresh contract or
// function scope.
func (v *SymbolicVariable) ResetIndex() {
	v.index = 0
	v.highest = 0
}

// SetIndex rewinds or fast-forwards to an arbitrary, previously-issued
// index. Used by the CFG builder to replay a variable to its
// pre-branch index before walking a second branch from the same point.
func (v *SymbolicVariable) SetIndex(i int) { v.index = i }

// SetZeroValue returns the assumption `value_at(0) == sort.Zero()`; the
// caller is responsible for pushing it into the active Encoding Context
// scope.
func (v *SymbolicVariable) SetZeroValue() (*Expression, error) {
	zero, err := v.ValueAt(0)
	if err != nil {
		return nil, err
	}
	return Eq(zero, v.sort.Zero())
}

// Registrar is the minimal solver capability a predicate symbol needs at
// creation time: every predicate must be registered as a relation before
// it can appear in a rule (invariant 4).
type Registrar interface {
	RegisterRelation(name string, domain []Sort) error
}

// SymbolicFunctionVariable is a predicate symbol ("block"): a named,
// sorted relation with its own SSA index so the same logical block can
// be refreshed (e.g. a per-function error predicate queried more than
// once across a source unit).
type SymbolicFunctionVariable struct {
	name   string
	domain []Sort
	index  int
}

// NewSymbolicFunctionVariable creates a predicate symbol and registers
// it as a relation with reg.
func NewSymbolicFunctionVariable(reg Registrar, name string, domain []Sort) (*SymbolicFunctionVariable, error) {
	p := &SymbolicFunctionVariable{name: name, domain: append([]Sort(nil), domain...)}
	if err := reg.RegisterRelation(p.qualifiedName(), p.domain); err != nil {
		return nil, fmt.Errorf("NewSymbolicFunctionVariable %s: %w", name, err)
	}
	return p, nil
}

func (p *SymbolicFunctionVariable) qualifiedName() string {
	if p.index == 0 {
		return p.name
	}
	return fmt.Sprintf("%s_%d", p.name, p.index)
}

func (p *SymbolicFunctionVariable) Name() string    { return p.qualifiedName() }
func (p *SymbolicFunctionVariable) Domain() []Sort  { return p.domain }

func (p *SymbolicFunctionVariable) sort() Sort {
	return FunctionSort(p.domain, BoolSort())
}

// Apply applies this predicate symbol to an argument vector, yielding a
// Bool-sorted Expression.
func (p *SymbolicFunctionVariable) Apply(args ...*Expression) (*Expression, error) {
	return Apply(p.qualifiedName(), p.sort(), args...)
}

// IncreaseIndex refreshes this predicate to a fresh, distinct relation
// name and re-registers it with reg. Used for per-query error
// predicates (§4.3.2).
func (p *SymbolicFunctionVariable) IncreaseIndex(reg Registrar) error {
	p.index++
	if err := reg.RegisterRelation(p.qualifiedName(), p.domain); err != nil {
		return fmt.Errorf("IncreaseIndex %s: %w", p.name, err)
	}
	return nil
}
