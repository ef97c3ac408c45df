// Package diagnostics is the reporter collaborator described in §6.4,
// adapted from the teacher's internal/issuse.Issuse.
package diagnostics

import (
	"fmt"

	"chcverify/internal/ast"
)

type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

type Diagnostic struct {
	Severity Severity
	Message  string
	Location ast.Location
}

func (d Diagnostic) String() string {
	prefix := "warning"
	color := 33
	if d.Severity == SeverityError {
		prefix = "error"
		color = 31
	}
	text := fmt.Sprintf("%s: %s\n  at %s:%d", prefix, d.Message, d.Location.File, d.Location.Line)
	return Colour(color, text)
}

func Colour(code int, str string) string {
	return fmt.Sprintf("\033[%dm%s\033[0m", code, str)
}

// Reporter collects diagnostics for one source-unit analysis.
type Reporter struct {
	diagnostics []Diagnostic
}

func NewReporter() *Reporter {
	return &Reporter{}
}

func (r *Reporter) Warning(loc ast.Location, message string) {
	r.diagnostics = append(r.diagnostics, Diagnostic{Severity: SeverityWarning, Message: message, Location: loc})
}

func (r *Reporter) Error(loc ast.Location, message string) {
	r.diagnostics = append(r.diagnostics, Diagnostic{Severity: SeverityError, Message: message, Location: loc})
}

func (r *Reporter) Diagnostics() []Diagnostic { return r.diagnostics }

func (r *Reporter) HasErrors() bool {
	for _, d := range r.diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
