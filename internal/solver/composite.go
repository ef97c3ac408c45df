package solver

import "chcverify/internal/smt"

// Composite fans a relation/rule/query out to every enabled back-end
// and reconciles their answers, per §4.5's meta-adapter and §7's
// "conflicting back-ends" error kind.
type Composite struct {
	backends []Adapter
}

func NewComposite(backends ...Adapter) *Composite {
	return &Composite{backends: backends}
}

func (c *Composite) RegisterRelation(name string, domain []smt.Sort) error {
	for _, b := range c.backends {
		if err := b.RegisterRelation(name, domain); err != nil {
			return err
		}
	}
	return nil
}

func (c *Composite) AddRule(rule *smt.Expression, name string) error {
	for _, b := range c.backends {
		if err := b.AddRule(rule, name); err != nil {
			return err
		}
	}
	return nil
}

// Query asks every backend and reconciles. A backend answering Unknown
// never causes a conflict; it is simply out-voted by any definite
// answer. Two backends giving opposite definite answers is reported as
// Conflicting — the weakest answer per §7's "the weakest answer wins".
func (c *Composite) Query(goal *smt.Expression) (Status, error) {
	var (
		sawSat, sawUnsat bool
		lastErr          error
	)
	for _, b := range c.backends {
		status, err := b.Query(goal)
		if err != nil {
			lastErr = err
			continue
		}
		switch status {
		case StatusSat:
			sawSat = true
		case StatusUnsat:
			sawUnsat = true
		}
	}
	switch {
	case sawSat && sawUnsat:
		return StatusConflicting, nil
	case sawSat:
		return StatusSat, nil
	case sawUnsat:
		return StatusUnsat, nil
	case lastErr != nil:
		return StatusError, lastErr
	default:
		return StatusUnknown, nil
	}
}

func (c *Composite) UnhandledQueries() []string {
	var all []string
	for _, b := range c.backends {
		all = append(all, b.UnhandledQueries()...)
	}
	return all
}

// Close releases any backend that has a Close method (Yices's
// context/config; Native has none), so the driver's single Close check
// still reaches them when they are wrapped in a Composite.
func (c *Composite) Close() {
	for _, b := range c.backends {
		if closer, ok := b.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}
