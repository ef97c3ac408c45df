package smt

import "strings"

// Kind tags a Sort. The algebra deliberately has no BitVec: the checker
// reasons over unbounded Int and Bool values and composite Array/Tuple/
// Function sorts built from them.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindArray
	KindTuple
	KindFunction
)

// Sort is value-equal and shareable: two Sorts built the same way compare
// equal regardless of where they were constructed.
type Sort struct {
	kind       Kind
	domain     []Sort // Array: [index]; Function: call domain
	codomain   *Sort  // Array: element sort; Function: return sort
	components []Sort // Tuple
}

func BoolSort() Sort { return Sort{kind: KindBool} }
func IntSort() Sort  { return Sort{kind: KindInt} }

func ArraySort(index, element Sort) Sort {
	return Sort{kind: KindArray, domain: []Sort{index}, codomain: &element}
}

func TupleSort(components ...Sort) Sort {
	return Sort{kind: KindTuple, components: append([]Sort(nil), components...)}
}

func FunctionSort(domain []Sort, codomain Sort) Sort {
	return Sort{kind: KindFunction, domain: append([]Sort(nil), domain...), codomain: &codomain}
}

func (s Sort) Kind() Kind { return s.kind }

func (s Sort) Domain() []Sort { return s.domain }

func (s Sort) Codomain() Sort {
	if s.codomain == nil {
		return Sort{}
	}
	return *s.codomain
}

func (s Sort) Components() []Sort { return s.components }

// Equal is structural equality, not pointer identity.
func (s Sort) Equal(other Sort) bool {
	if s.kind != other.kind {
		return false
	}
	switch s.kind {
	case KindBool, KindInt:
		return true
	case KindArray:
		return s.domain[0].Equal(other.domain[0]) && s.codomain.Equal(*other.codomain)
	case KindTuple:
		if len(s.components) != len(other.components) {
			return false
		}
		for i := range s.components {
			if !s.components[i].Equal(other.components[i]) {
				return false
			}
		}
		return true
	case KindFunction:
		if len(s.domain) != len(other.domain) {
			return false
		}
		for i := range s.domain {
			if !s.domain[i].Equal(other.domain[i]) {
				return false
			}
		}
		return s.codomain.Equal(*other.codomain)
	}
	return false
}

func (s Sort) String() string {
	switch s.kind {
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindArray:
		return "(Array " + s.domain[0].String() + " " + s.codomain.String() + ")"
	case KindTuple:
		parts := make([]string, len(s.components))
		for i, c := range s.components {
			parts[i] = c.String()
		}
		return "(Tuple " + strings.Join(parts, " ") + ")"
	case KindFunction:
		parts := make([]string, len(s.domain))
		for i, d := range s.domain {
			parts[i] = d.String()
		}
		return "(" + strings.Join(parts, " ") + ") -> " + s.codomain.String()
	}
	return "?"
}

// Zero is the sort's canonical zero value expression, used by
// SetZeroValue to seed SSA index 0.
func (s Sort) Zero() *Expression {
	switch s.kind {
	case KindBool:
		return BoolConst(false)
	case KindInt:
		return IntConst(0)
	default:
		return Symbol("zero", s)
	}
}
