// Package config holds the checker's only recognized configuration,
// per §6.5: no CLI flags, environment variables, or on-disk state reach
// the core beyond this struct.
package config

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type EnabledSolvers struct {
	// Native runs the in-process go-z3 back-end. It is unsound for
	// proving a query unreachable (see internal/solver.Native) and is
	// off by default; enable it only as a fast, best-effort SAT witness
	// finder or as a cross-check input to Composite.
	Native bool
	Text   bool
	// Yices runs the in-process Yices2 back-end. It shares Native's
	// unquantified-rule limitation (see internal/solver.Yices) and is
	// off by default for the same reason.
	Yices bool
}

// SMTCallback is the host hook for the text back-end (§6.3, §6.5).
type SMTCallback func(hash common.Hash) (success bool, body string)

type Config struct {
	EnabledSolvers EnabledSolvers

	// SMTLib2Responses replays pre-recorded solver answers, keyed by
	// the Keccak-256 hash of the serialized query text, mirroring the
	// original implementation's map<h256,string>; HashQuery computes the
	// key with go-ethereum's crypto.Keccak256Hash.
	SMTLib2Responses map[common.Hash]string

	SMTCallback SMTCallback
}

// Default enables only the SMT-LIB2 text back-end: it defers the actual
// fixed-point computation to a real external Datalog/CHC engine over
// the host callback (§6.3) rather than approximating it in-process, so
// unlike Native and Yices it never reports an answer it cannot justify.
func Default() Config {
	return Config{
		EnabledSolvers:   EnabledSolvers{Native: false, Text: true, Yices: false},
		SMTLib2Responses: make(map[common.Hash]string),
	}
}

// HashQuery computes the replay key for a serialized SMT-LIB2 query,
// the same crypto.Keccak256 the teacher's internal/util.GetCodeHash
// wraps, applied to the query text instead of contract bytecode.
func HashQuery(query string) common.Hash {
	return crypto.Keccak256Hash([]byte(query))
}
