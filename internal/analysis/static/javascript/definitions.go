// Filename: javascript/definitions.go
// Package javascript implements an intraprocedural taint engine for JavaScript
// and TypeScript. This file contains the built-in source catalog and the rules
// that pair it with sink catalogs.
package javascript

import (
	"fmt"
	"regexp"
)

// DefaultSources lists the expressions treated as untrusted input by every
// built-in rule. Entries are matched as text prefixes.
var DefaultSources = SourceCatalog{
	// Express / Connect
	"req.body",
	"req.query",
	"req.params",
	"request.body",
	"request.query",
	"request.params",
	// Koa
	"ctx.request.body",
	"ctx.query",
	"ctx.params",
	// AWS Lambda
	"event.queryStringParameters",
	"event.body",
	// Process environment
	"process.env",
	// Browser
	"window.location",
	"document.cookie",
	"localStorage.getItem",
	"sessionStorage.getItem",
}

// Rule IDs of the built-in rules.
const (
	RuleSQLInjection     = "sql-injection"
	RuleCommandInjection = "command-injection"
	RuleXSS              = "xss"
	RuleCodeInjection    = "code-injection"
	RulePathTraversal    = "path-traversal"
)

// Rule bundles the catalogs for one vulnerability class. The engine itself is
// identical for every rule; only the catalogs differ.
type Rule struct {
	ID          string
	Title       string
	Description string
	CWE         int
	Sources     SourceCatalog
	Sinks       SinkCatalog
}

var ruleIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// Validate checks that the rule can be run.
func (r Rule) Validate() error {
	if !ruleIDPattern.MatchString(r.ID) {
		return fmt.Errorf("rule id %q must be lowercase letters, digits and dashes", r.ID)
	}
	if len(r.Sources) == 0 {
		return fmt.Errorf("rule %s: source catalog is empty", r.ID)
	}
	if len(r.Sinks) == 0 {
		return fmt.Errorf("rule %s: sink catalog is empty", r.ID)
	}
	if r.CWE < 0 {
		return fmt.Errorf("rule %s: cwe must not be negative", r.ID)
	}
	return nil
}

// BuiltinRules returns fresh copies of the built-in rules, in a stable order.
func BuiltinRules() []Rule {
	return []Rule{
		{
			ID:          RuleSQLInjection,
			Title:       "SQL Injection",
			Description: "Untrusted input reaches a database query method.",
			CWE:         89,
			Sources:     DefaultSources.Merge(),
			Sinks:       SinkCatalog{"query", "execute", "exec", "prepare", "raw"},
		},
		{
			ID:          RuleCommandInjection,
			Title:       "Command Injection",
			Description: "Untrusted input reaches a child process API.",
			CWE:         78,
			Sources:     DefaultSources.Merge(),
			Sinks:       SinkCatalog{"exec", "execSync", "spawn", "spawnSync", "execFile", "execFileSync", "fork"},
		},
		{
			ID:          RuleXSS,
			Title:       "Cross-Site Scripting",
			Description: "Untrusted input is written into an HTML document or response.",
			CWE:         79,
			Sources:     DefaultSources.Merge(),
			Sinks:       SinkCatalog{"write", "writeln", "insertAdjacentHTML", "html", "append", "prepend", "send"},
		},
		{
			ID:          RuleCodeInjection,
			Title:       "Code Injection",
			Description: "Untrusted input is evaluated as code.",
			CWE:         94,
			Sources:     DefaultSources.Merge(),
			Sinks:       SinkCatalog{"eval", "runInNewContext", "runInThisContext", "runInContext", "compileFunction"},
		},
		{
			ID:          RulePathTraversal,
			Title:       "Path Traversal",
			Description: "Untrusted input is used as a file system path.",
			CWE:         22,
			Sources:     DefaultSources.Merge(),
			Sinks: SinkCatalog{
				"readFile", "readFileSync", "createReadStream",
				"writeFile", "writeFileSync", "unlink", "unlinkSync", "sendFile",
			},
		},
	}
}

// BuiltinRule returns the built-in rule with the given ID.
func BuiltinRule(id string) (Rule, bool) {
	for _, r := range BuiltinRules() {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}
