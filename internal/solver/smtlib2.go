package solver

import (
	"fmt"
	"sort"

	"chcverify/internal/config"
	"chcverify/internal/smt"

	"github.com/ethereum/go-ethereum/common"
)

// SMTLIB2Callback is the host hook described in §6.5: given a hash of
// the serialized query, it returns whether a recorded answer exists and
// its raw solver response text.
type SMTLIB2Callback = config.SMTCallback

// SMTLIB2 is the text-dialect adapter: it serializes the rule set and
// each query as SMT-LIB2 and exchanges them through a host-provided
// read-callback rather than an in-process solver, per §4.5/§6.3.
type SMTLIB2 struct {
	relations map[string][]smt.Sort
	rules     []string
	callback  SMTLIB2Callback
	responses map[common.Hash]string

	unhandled []string
}

func NewSMTLIB2(callback SMTLIB2Callback, responses map[common.Hash]string) *SMTLIB2 {
	return &SMTLIB2{
		relations: make(map[string][]smt.Sort),
		callback:  callback,
		responses: responses,
	}
}

func (s *SMTLIB2) RegisterRelation(name string, domain []smt.Sort) error {
	s.relations[name] = domain
	return nil
}

func sortLib2(sort smt.Sort) string {
	switch sort.Kind() {
	case smt.KindBool:
		return "Bool"
	case smt.KindInt:
		return "Int"
	case smt.KindArray:
		return "(Array " + sortLib2(sort.Domain()[0]) + " " + sortLib2(sort.Codomain()) + ")"
	default:
		return "Int"
	}
}

func (s *SMTLIB2) declarations() string {
	names := make([]string, 0, len(s.relations))
	for name := range s.relations {
		names = append(names, name)
	}
	sort.Strings(names)
	out := ""
	for _, name := range names {
		domain := s.relations[name]
		parts := ""
		for _, d := range domain {
			parts += sortLib2(d) + " "
		}
		out += fmt.Sprintf("(declare-rel %s (%s))\n", name, parts)
	}
	return out
}

func (s *SMTLIB2) AddRule(rule *smt.Expression, name string) error {
	s.rules = append(s.rules, fmt.Sprintf("(rule %s) ; %s", rule.String(), name))
	return nil
}

// Query serializes the accumulated declarations, rules, and goal, hashes
// the resulting text, and either replays a recorded answer or invokes
// the host callback.
func (s *SMTLIB2) Query(goal *smt.Expression) (Status, error) {
	script := s.declarations()
	for _, r := range s.rules {
		script += r + "\n"
	}
	script += fmt.Sprintf("(query %s)\n", goal.String())

	hash := config.HashQuery(script)
	if body, ok := s.responses[hash]; ok {
		return parseLib2Response(body), nil
	}
	if s.callback == nil {
		s.unhandled = append(s.unhandled, script)
		return StatusUnknown, nil
	}
	ok, body := s.callback(hash)
	if !ok {
		s.unhandled = append(s.unhandled, script)
		return StatusUnknown, nil
	}
	return parseLib2Response(body), nil
}

func parseLib2Response(body string) Status {
	switch body {
	case "sat":
		return StatusSat
	case "unsat":
		return StatusUnsat
	default:
		return StatusUnknown
	}
}

func (s *SMTLIB2) UnhandledQueries() []string { return s.unhandled }
