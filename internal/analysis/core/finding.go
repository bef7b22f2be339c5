// internal/analysis/core/finding.go
package core

import (
	"fmt"
	"strings"
)

// Severity represents how urgently a finding should be looked at. The values are
// lowercase so they can be used directly in config files and report output.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ParseSeverity converts a case-insensitive name into a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityError:
		return SeverityError, nil
	case SeverityWarning:
		return SeverityWarning, nil
	case SeverityInfo:
		return SeverityInfo, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// SARIFLevel maps the severity onto the SARIF result level vocabulary.
func (s Severity) SARIFLevel() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityInfo:
		return "note"
	default:
		return "warning"
	}
}

// Rank orders severities, higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	}
	return 0
}

// Position is a 1-based line and column. Columns count bytes.
type Position struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

// Finding is a single tainted argument reaching a sink.
type Finding struct {
	RuleID string `json:"rule_id" yaml:"rule_id"`
	CWE    int    `json:"cwe,omitempty" yaml:"cwe,omitempty"`
	File   string `json:"file" yaml:"file"`
	// Start and End delimit the tainted argument expression.
	Start Position `json:"start" yaml:"start"`
	End   Position `json:"end" yaml:"end"`
	// Sink is the method name that was called, e.g. "query".
	Sink string `json:"sink" yaml:"sink"`
	// ArgumentIndex is 0-based.
	ArgumentIndex int `json:"argument_index" yaml:"argument_index"`
	// Origin is the tainted variable the argument was derived from.
	Origin string `json:"origin" yaml:"origin"`
	// Source is the catalog entry at the root of the taint chain, when known.
	Source   string   `json:"source,omitempty" yaml:"source,omitempty"`
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
	Snippet  string   `json:"snippet,omitempty" yaml:"snippet,omitempty"`
}

// Location renders the finding's start as file:line:column.
func (f Finding) Location() string {
	return fmt.Sprintf("%s:%d:%d", f.File, f.Start.Line, f.Start.Column)
}

// Less orders findings by file, position, rule and argument.
func (f Finding) Less(other Finding) bool {
	if f.File != other.File {
		return f.File < other.File
	}
	if f.Start.Line != other.Start.Line {
		return f.Start.Line < other.Start.Line
	}
	if f.Start.Column != other.Start.Column {
		return f.Start.Column < other.Start.Column
	}
	if f.RuleID != other.RuleID {
		return f.RuleID < other.RuleID
	}
	return f.ArgumentIndex < other.ArgumentIndex
}
