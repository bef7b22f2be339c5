// internal/reporting/sarif_reporter.go
package reporting

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/snitchlint/internal/analysis/core"
	"github.com/xkilldash9x/snitchlint/internal/analysis/static/javascript"
	"github.com/xkilldash9x/snitchlint/internal/engine"
	"github.com/xkilldash9x/snitchlint/internal/reporting/sarif"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "snitchlint"
	ToolInfoURI  = "https://github.com/xkilldash9x/snitchlint"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
)

// SARIFReporter implements the Reporter interface for the SARIF 2.1.0 format.
// Results of every Write are collected into one run and encoded on Close.
// It is thread safe.
type SARIFReporter struct {
	writer  io.WriteCloser
	logger  *zap.Logger
	log     *sarif.Log
	baseDir string
	// mu protects the log structure and the rule index.
	mu        sync.Mutex
	ruleIndex map[string]int
}

// NewSARIFReporter creates a new reporter that writes SARIF output. Rules in
// opts are registered up front so the driver lists every rule that ran, even
// those without results.
func NewSARIFReporter(writer io.WriteCloser, opts Options, logger *zap.Logger) *SARIFReporter {
	driver := &sarif.ToolComponent{
		Name:           ToolName,
		InformationURI: pString(ToolInfoURI),
		// Initialize empty slices (not nil) for proper JSON marshalling
		Rules: []*sarif.ReportingDescriptor{},
	}
	if opts.ToolVersion != "" {
		driver.Version = pString(opts.ToolVersion)
	}

	r := &SARIFReporter{
		writer: writer,
		logger: logger.Named("sarif_reporter"),
		log: &sarif.Log{
			Version: SARIFVersion,
			Schema:  SARIFSchema,
			Runs: []*sarif.Run{
				{
					Tool:    &sarif.Tool{Driver: driver},
					Results: []*sarif.Result{},
				},
			},
		},
		baseDir:   opts.BaseDir,
		ruleIndex: make(map[string]int),
	}
	for _, rule := range opts.Rules {
		r.registerRule(rule)
	}
	return r
}

// Write converts the findings of a scan into SARIF results.
func (r *SARIFReporter) Write(result *engine.Result) error {
	if result == nil {
		return nil
	}
	startTime := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	if run.AutomationDetails == nil {
		run.AutomationDetails = &sarif.RunAutomationDetails{GUID: pString(result.ScanID)}
	}
	run.Invocations = append(run.Invocations, r.createInvocation(result))

	for _, finding := range result.Findings {
		index := r.ensureRule(finding)
		run.Results = append(run.Results, &sarif.Result{
			RuleID:              finding.RuleID,
			RuleIndex:           index,
			Message:             &sarif.Message{Text: pString(finding.Message)},
			Level:               sarif.Level(finding.Severity.SARIFLevel()),
			Locations:           r.createLocations(finding),
			PartialFingerprints: map[string]string{"snitchlint/v1": fingerprint(displayPath(r.baseDir, finding.File), finding)},
		})
	}

	if len(result.Findings) > 0 {
		r.logger.Debug("Wrote findings to SARIF buffer",
			zap.Int("findings_count", len(result.Findings)),
			zap.Duration("duration_ms", time.Since(startTime)),
		)
	}
	return nil
}

// Close finalizes the SARIF log and writes it to the output writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	r.logger.Debug("Finalizing SARIF report",
		zap.Int("total_results", len(run.Results)),
		zap.Int("total_rules", len(run.Tool.Driver.Rules)),
	)

	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")

	encodeErr := encoder.Encode(r.log)
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode SARIF log to JSON", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}
	if closeErr != nil {
		r.logger.Error("Failed to close output writer", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// registerRule adds a descriptor for rule. Must be called while holding the
// mutex or before the reporter is shared.
func (r *SARIFReporter) registerRule(rule javascript.Rule) int {
	if idx, ok := r.ruleIndex[rule.ID]; ok {
		return idx
	}
	driver := r.log.Runs[0].Tool.Driver

	title := rule.Title
	if title == "" {
		title = rule.ID
	}
	tags := []string{"security"}
	if rule.CWE > 0 {
		tags = append(tags, fmt.Sprintf("external/cwe/cwe-%d", rule.CWE))
	}
	markdownHelp := fmt.Sprintf("**%s**\n\n%s\n\nSink methods: `%v`", title, rule.Description, []string(rule.Sinks))

	descriptor := &sarif.ReportingDescriptor{
		ID:               rule.ID,
		Name:             pString(title),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(title)},
		FullDescription:  &sarif.MultiformatMessageString{Text: pString(rule.Description)},
		Help: &sarif.MultiformatMessageString{
			Text:     pString(rule.Description),
			Markdown: pString(markdownHelp),
		},
		DefaultConfiguration: &sarif.ReportingConfiguration{Level: sarif.LevelWarning},
		Properties: &sarif.PropertyBag{
			"tags":      tags,
			"precision": "medium",
			"cwe":       rule.CWE,
		},
	}
	driver.Rules = append(driver.Rules, descriptor)
	idx := len(driver.Rules) - 1
	r.ruleIndex[rule.ID] = idx
	r.logger.Debug("Registering SARIF rule definition", zap.String("rule_id", rule.ID))
	return idx
}

// ensureRule returns the descriptor index for the finding's rule, registering a
// minimal descriptor when the rule was not declared up front.
// NOTE: Must be called while holding the mutex.
func (r *SARIFReporter) ensureRule(finding core.Finding) int {
	if idx, ok := r.ruleIndex[finding.RuleID]; ok {
		return idx
	}
	rule, ok := javascript.BuiltinRule(finding.RuleID)
	if !ok {
		rule = javascript.Rule{ID: finding.RuleID, CWE: finding.CWE}
	}
	return r.registerRule(rule)
}

// createLocations converts finding details into SARIF location objects.
func (r *SARIFReporter) createLocations(finding core.Finding) []*sarif.Location {
	region := &sarif.Region{
		StartLine:   finding.Start.Line,
		StartColumn: finding.Start.Column,
		EndLine:     finding.End.Line,
		EndColumn:   finding.End.Column,
	}
	if finding.Snippet != "" {
		region.Snippet = &sarif.ArtifactContent{Text: pString(finding.Snippet)}
	}
	return []*sarif.Location{{
		PhysicalLocation: &sarif.PhysicalLocation{
			ArtifactLocation: &sarif.ArtifactLocation{URI: pString(displayPath(r.baseDir, finding.File))},
			Region:           region,
		},
	}}
}

func (r *SARIFReporter) createInvocation(result *engine.Result) *sarif.Invocation {
	inv := &sarif.Invocation{
		ExecutionSuccessful: result.Stats.FilesFailed == 0,
		StartTimeUTC:        pString(result.StartedAt.UTC().Format(time.RFC3339)),
		EndTimeUTC:          pString(result.FinishedAt.UTC().Format(time.RFC3339)),
	}
	for _, fr := range result.Files {
		if fr.Status != engine.StatusFailed {
			continue
		}
		inv.Notifications = append(inv.Notifications, &sarif.Notification{
			Level:   sarif.LevelError,
			Message: &sarif.Message{Text: pString(fr.Reason)},
			Locations: []*sarif.Location{{
				PhysicalLocation: &sarif.PhysicalLocation{
					ArtifactLocation: &sarif.ArtifactLocation{URI: pString(displayPath(r.baseDir, fr.Path))},
				},
			}},
		})
	}
	return inv
}

// fingerprint ignores line numbers so that moving code keeps the same value.
func fingerprint(path string, f core.Finding) string {
	key := fmt.Sprintf("%s|%s|%s|%s|%d|%s", path, f.RuleID, f.Sink, f.Origin, f.ArgumentIndex, f.Snippet)
	return uuid.NewMD5(uuid.Nil, []byte(key)).String()
}

// pString returns a pointer to the given string value. Helper for optional SARIF fields.
func pString(s string) *string {
	return &s
}
