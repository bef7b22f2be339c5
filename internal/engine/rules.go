package engine

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/snitchlint/internal/analysis/core"
	"github.com/xkilldash9x/snitchlint/internal/analysis/static/javascript"
	"github.com/xkilldash9x/snitchlint/internal/config"
)

// RuleStatus is a resolved rule together with whether it will run.
type RuleStatus struct {
	Rule    javascript.Rule
	Enabled bool
	Builtin bool
}

// ResolveRules merges the configured rule overrides into the built-in rules
// and appends custom rules. Built-in rules come first in their fixed order,
// custom rules follow sorted by ID.
func ResolveRules(rules map[string]config.RuleConfig) ([]RuleStatus, error) {
	var out []RuleStatus

	for _, rule := range javascript.BuiltinRules() {
		rc, configured := rules[rule.ID]
		enabled := !configured || rc.Enabled
		if configured {
			if rc.Title != "" {
				rule.Title = rc.Title
			}
			if rc.Description != "" {
				rule.Description = rc.Description
			}
			if rc.CWE != 0 {
				rule.CWE = rc.CWE
			}
			rule.Sources = rule.Sources.Merge(rc.Sources...)
			rule.Sinks = rule.Sinks.Merge(rc.Sinks...)
		}
		out = append(out, RuleStatus{Rule: rule, Enabled: enabled, Builtin: true})
	}

	custom := make([]string, 0, len(rules))
	for id := range rules {
		if _, ok := javascript.BuiltinRule(id); !ok {
			custom = append(custom, id)
		}
	}
	sort.Strings(custom)

	for _, id := range custom {
		rc := rules[id]
		rule := javascript.Rule{
			ID:          id,
			Title:       rc.Title,
			Description: rc.Description,
			CWE:         rc.CWE,
			Sources:     javascript.SourceCatalog(nil).Merge(rc.Sources...),
			Sinks:       javascript.SinkCatalog(nil).Merge(rc.Sinks...),
		}
		if rule.Title == "" {
			rule.Title = id
		}
		if len(rule.Sources) == 0 {
			rule.Sources = javascript.DefaultSources.Merge()
		}
		if rc.Enabled {
			if err := rule.Validate(); err != nil {
				return nil, err
			}
		}
		out = append(out, RuleStatus{Rule: rule, Enabled: rc.Enabled})
	}
	return out, nil
}

// BuildAnalyzers creates one taint analyzer per enabled rule. When only is
// non-empty, just the named rules are built, regardless of whether the
// configuration enables them. Naming an unknown rule is an error.
func BuildAnalyzers(cfg *config.Config, only []string, logger *zap.Logger) ([]core.Analyzer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	statuses, err := ResolveRules(cfg.Rules)
	if err != nil {
		return nil, err
	}

	selected := make(map[string]bool, len(only))
	for _, id := range only {
		selected[strings.TrimSpace(id)] = false
	}
	for _, s := range statuses {
		if _, ok := selected[s.Rule.ID]; ok {
			selected[s.Rule.ID] = true
		}
	}
	var unknown []string
	for id, found := range selected {
		if !found {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown rule(s): %s", strings.Join(unknown, ", "))
	}

	var analyzers []core.Analyzer
	for _, s := range statuses {
		run := s.Enabled
		if len(selected) > 0 {
			_, run = selected[s.Rule.ID]
		}
		if !run {
			continue
		}
		a, err := javascript.NewTaintAnalyzer(s.Rule, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to build rule %s: %w", s.Rule.ID, err)
		}
		analyzers = append(analyzers, a)
	}
	if len(analyzers) == 0 {
		return nil, fmt.Errorf("no rules enabled")
	}
	return analyzers, nil
}
