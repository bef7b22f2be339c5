// internal/reporting/structured_reporter.go
package reporting

import (
	"fmt"
	"io"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/snitchlint/internal/analysis/core"
	"github.com/xkilldash9x/snitchlint/internal/engine"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Document is the machine readable form of one scan.
type Document struct {
	Tool       string              `json:"tool" yaml:"tool"`
	Version    string              `json:"version,omitempty" yaml:"version,omitempty"`
	ScanID     string              `json:"scan_id" yaml:"scan_id"`
	Roots      []string            `json:"roots" yaml:"roots"`
	Rules      []string            `json:"rules" yaml:"rules"`
	StartedAt  time.Time           `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time           `json:"finished_at" yaml:"finished_at"`
	Duration   string              `json:"duration" yaml:"duration"`
	Stats      engine.Stats        `json:"stats" yaml:"stats"`
	Problems   []engine.FileResult `json:"problems,omitempty" yaml:"problems,omitempty"`
	Findings   []core.Finding      `json:"findings" yaml:"findings"`
}

// NewDocument flattens result for serialization. Only skipped and failed files
// are listed; analyzed files are summarised by the stats.
func NewDocument(result *engine.Result, opts Options) Document {
	doc := Document{
		Tool:       ToolName,
		Version:    opts.ToolVersion,
		ScanID:     result.ScanID,
		Roots:      result.Roots,
		Rules:      result.Rules,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Duration:   result.Duration().String(),
		Stats:      result.Stats,
		Findings:   make([]core.Finding, 0, len(result.Findings)),
	}
	for _, f := range result.Findings {
		f.File = displayPath(opts.BaseDir, f.File)
		doc.Findings = append(doc.Findings, f)
	}
	for _, fr := range result.Files {
		if fr.Status != engine.StatusAnalyzed {
			fr.Path = displayPath(opts.BaseDir, fr.Path)
			doc.Problems = append(doc.Problems, fr)
		}
	}
	return doc
}

type encodeFunc func(w io.Writer, doc Document) error

// StructuredReporter writes one document per Write using a JSON or YAML
// encoder.
type StructuredReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	opts   Options
	encode encodeFunc
	// finish flushes encoder state before the writer is closed.
	finish func() error
	mu     sync.Mutex
}

// NewJSONReporter creates a reporter that writes indented JSON documents.
func NewJSONReporter(writer io.WriteCloser, opts Options, logger *zap.Logger) *StructuredReporter {
	return &StructuredReporter{
		writer: writer,
		logger: logger.Named("json_reporter"),
		opts:   opts,
		encode: func(w io.Writer, doc Document) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
}

// NewYAMLReporter creates a reporter that writes YAML documents. Successive
// writes are separated by "---".
func NewYAMLReporter(writer io.WriteCloser, opts Options, logger *zap.Logger) *StructuredReporter {
	enc := yaml.NewEncoder(writer)
	enc.SetIndent(2)
	return &StructuredReporter{
		writer: writer,
		logger: logger.Named("yaml_reporter"),
		opts:   opts,
		encode: func(_ io.Writer, doc Document) error {
			return enc.Encode(doc)
		},
		finish: enc.Close,
	}
}

// Write encodes result.
func (r *StructuredReporter) Write(result *engine.Result) error {
	if result == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.encode(r.writer, NewDocument(result, r.opts)); err != nil {
		r.logger.Error("Failed to encode report", zap.Error(err))
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// Close flushes the encoder and closes the underlying writer.
func (r *StructuredReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finish != nil {
		if err := r.finish(); err != nil {
			r.writer.Close()
			return fmt.Errorf("failed to flush report: %w", err)
		}
	}
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}
