// Package solver defines the capability interface the CHC builder uses
// to talk to a back-end, plus three concrete adapters: a native
// in-process Horn solver, a secondary native cross-check solver, and an
// SMT-LIB2 text adapter exchanged through a host callback. A composite
// adapter layers several of these for cross-checking.
package solver

import "chcverify/internal/smt"

// Status is a query's outcome.
type Status int

const (
	StatusUnsat Status = iota // goal not reachable: safe
	StatusSat                 // goal reachable: an assertion may fail
	StatusUnknown
	StatusConflicting // multiple back-ends disagreed
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusUnsat:
		return "unsat"
	case StatusSat:
		return "sat"
	case StatusUnknown:
		return "unknown"
	case StatusConflicting:
		return "conflicting"
	case StatusError:
		return "error"
	default:
		return "?"
	}
}

// Adapter is the small capability interface every back-end implements
// (§4.5, §9 "shared back-end dispatch" re-architecture).
type Adapter interface {
	smt.Registrar
	AddRule(rule *smt.Expression, name string) error
	Query(goal *smt.Expression) (Status, error)
	UnhandledQueries() []string
}
