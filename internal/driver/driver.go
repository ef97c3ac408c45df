// Package driver wires the compiler front end, the CHC builder, and a
// solver adapter together into one verification run, the way
// internal/gscanner.Analyzer wired the disassembler, module manager and
// execution strategy together in the original tool.
package driver

import (
	"fmt"
	"time"

	"chcverify/internal/chc"
	"chcverify/internal/config"
	"chcverify/internal/diagnostics"
	"chcverify/internal/solidity"
	"chcverify/internal/solver"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Driver runs one source file through compilation, translation and
// verification.
type Driver struct {
	cfg      config.Config
	reporter *diagnostics.Reporter
}

func New(cfg config.Config) *Driver {
	return &Driver{cfg: cfg, reporter: diagnostics.NewReporter()}
}

// Run compiles file, builds the typed AST, and verifies every contract
// in it. It returns the diagnostics collected along the way; a non-nil
// error means the run itself failed (compile error, malformed AST), not
// that an assertion was found violable.
func (d *Driver) Run(file string) (*diagnostics.Reporter, error) {
	startTime := time.Now()
	log.Infof("compiling %s", file)

	output, err := solidity.GetSolcJson(file)
	if err != nil {
		return nil, errors.Wrapf(err, "GetSolcJson")
	}

	unit, err := solidity.BuildSourceUnit(output, file)
	if err != nil {
		return nil, errors.Wrapf(err, "BuildSourceUnit")
	}
	log.Infof("translated %d contract(s)", len(unit.Contracts))

	adapter, err := d.buildAdapter()
	if err != nil {
		return nil, errors.Wrapf(err, "buildAdapter")
	}
	if closer, ok := adapter.(interface{ Close() }); ok {
		defer closer.Close()
	}

	builder := chc.NewBuilder(adapter, d.reporter)
	if err := builder.Analyze(unit); err != nil {
		return nil, errors.Wrapf(err, "Analyze")
	}

	if unhandled := unhandledQueries(adapter); len(unhandled) > 0 {
		log.Infof("%d query(ies) left unanswered by the configured back-ends", len(unhandled))
	}

	log.Infof("verification time used: %.3fs", time.Since(startTime).Seconds())
	return d.reporter, nil
}

func unhandledQueries(a solver.Adapter) []string {
	if u, ok := a.(interface{ UnhandledQueries() []string }); ok {
		return u.UnhandledQueries()
	}
	return nil
}

// buildAdapter assembles the configured solver back-ends into a single
// Adapter, per §7: native and text back-ends are optional and, when
// both are enabled, fanned out through a composite adapter so a
// disagreement between them is surfaced rather than silently resolved.
func (d *Driver) buildAdapter() (solver.Adapter, error) {
	var backends []solver.Adapter
	if d.cfg.EnabledSolvers.Native {
		backends = append(backends, solver.NewNative())
	}
	if d.cfg.EnabledSolvers.Yices {
		backends = append(backends, solver.NewYices())
	}
	if d.cfg.EnabledSolvers.Text {
		backends = append(backends, solver.NewSMTLIB2(d.cfg.SMTCallback, d.cfg.SMTLib2Responses))
	}
	switch len(backends) {
	case 0:
		return nil, fmt.Errorf("no solver back-end enabled")
	case 1:
		return backends[0], nil
	default:
		return solver.NewComposite(backends...), nil
	}
}
