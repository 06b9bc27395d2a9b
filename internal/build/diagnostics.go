package build

import (
	"regexp"
	"strconv"
	"strings"
)

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is a problem the generator reported on standard error.
type Diagnostic struct {
	File     string   `json:"file"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

type diagnosticPattern struct {
	regex   *regexp.Regexp
	file    int
	line    int
	column  int
	message int
}

// Patterns are tried in order; the first match wins.
var diagnosticPatterns = []diagnosticPattern{
	// widgets/shape.proto:4:1: Expected top-level statement.
	{regex: regexp.MustCompile(`^([^:\s][^:]*):(\d+):(\d+):\s*(.*)$`), file: 1, line: 2, column: 3, message: 4},
	// widgets/shape.proto: File not found.
	{regex: regexp.MustCompile(`^([^:\s][^:]*\.proto):\s*(.*)$`), file: 1, message: 2},
}

// ParseDiagnostics extracts file-located problems from generator output.
// Lines that do not look like diagnostics are skipped.
func ParseDiagnostics(stderr string) []Diagnostic {
	var diags []Diagnostic
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if d, ok := matchDiagnostic(line); ok {
			diags = append(diags, d)
		}
	}
	return diags
}

func matchDiagnostic(line string) (Diagnostic, bool) {
	for _, p := range diagnosticPatterns {
		m := p.regex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		d := Diagnostic{File: m[p.file], Severity: SeverityError}
		if p.line > 0 {
			d.Line, _ = strconv.Atoi(m[p.line])
		}
		if p.column > 0 {
			d.Column, _ = strconv.Atoi(m[p.column])
		}
		msg := m[p.message]
		if rest, ok := strings.CutPrefix(msg, "warning:"); ok {
			d.Severity = SeverityWarning
			msg = strings.TrimSpace(rest)
		}
		d.Message = msg
		return d, true
	}
	return Diagnostic{}, false
}
