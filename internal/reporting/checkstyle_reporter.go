// internal/reporting/checkstyle_reporter.go
package reporting

import (
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/xkilldash9x/snitchlint/internal/engine"
)

// CheckstyleVersion is the checkstyle schema version CI plugins expect.
const CheckstyleVersion = "4.3"

// CheckstyleReporter writes findings as checkstyle XML, the format most CI
// annotation plugins read. All writes accumulate into one document that is
// emitted on Close.
type CheckstyleReporter struct {
	writer  io.WriteCloser
	logger  *zap.Logger
	baseDir string
	doc     *etree.Document
	root    *etree.Element
	files   map[string]*etree.Element
	mu      sync.Mutex
}

// NewCheckstyleReporter creates a checkstyle reporter.
func NewCheckstyleReporter(writer io.WriteCloser, opts Options, logger *zap.Logger) *CheckstyleReporter {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("checkstyle")
	root.CreateAttr("version", CheckstyleVersion)

	return &CheckstyleReporter{
		writer:  writer,
		logger:  logger.Named("checkstyle_reporter"),
		baseDir: opts.BaseDir,
		doc:     doc,
		root:    root,
		files:   make(map[string]*etree.Element),
	}
}

// Write adds one <error> per finding, grouped under its <file>. Failed files
// get an error entry of their own.
func (r *CheckstyleReporter) Write(result *engine.Result) error {
	if result == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range result.Findings {
		e := r.file(f.File).CreateElement("error")
		e.CreateAttr("line", strconv.Itoa(f.Start.Line))
		e.CreateAttr("column", strconv.Itoa(f.Start.Column))
		e.CreateAttr("severity", string(f.Severity))
		e.CreateAttr("message", f.Message)
		e.CreateAttr("source", ToolName+"."+f.RuleID)
	}
	for _, fr := range result.Files {
		if fr.Status != engine.StatusFailed {
			continue
		}
		e := r.file(fr.Path).CreateElement("error")
		e.CreateAttr("severity", "error")
		e.CreateAttr("message", "file could not be analyzed: "+fr.Reason)
		e.CreateAttr("source", ToolName+".engine")
	}
	return nil
}

// file returns the <file> element for path, creating it on first use.
func (r *CheckstyleReporter) file(path string) *etree.Element {
	name := displayPath(r.baseDir, path)
	if el, ok := r.files[name]; ok {
		return el
	}
	el := r.root.CreateElement("file")
	el.CreateAttr("name", name)
	r.files[name] = el
	return el
}

// Close writes the document and closes the underlying writer.
func (r *CheckstyleReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.doc.Indent(2)
	_, writeErr := r.doc.WriteTo(r.writer)
	if writeErr != nil {
		r.logger.Error("Failed to write checkstyle report", zap.Error(writeErr))
	}
	closeErr := r.writer.Close()

	if writeErr != nil {
		return fmt.Errorf("failed to write checkstyle report: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}
