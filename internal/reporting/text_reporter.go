// internal/reporting/text_reporter.go
package reporting

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gookit/color"
	"go.uber.org/zap"

	"github.com/xkilldash9x/snitchlint/internal/analysis/core"
	"github.com/xkilldash9x/snitchlint/internal/engine"
)

var (
	errorTheme   = color.New(color.FgLightWhite, color.BgRed)
	warningTheme = color.New(color.FgBlack, color.BgYellow)
	defaultTheme = color.New(color.FgWhite, color.BgBlack)
)

// palette holds the render functions for one color mode.
type palette struct {
	severity func(core.Severity) string
	location func(a ...any) string
	danger   func(a ...any) string
	notice   func(a ...any) string
	success  func(a ...any) string
}

func newPalette(enableColor bool) palette {
	if !enableColor {
		return palette{
			severity: func(s core.Severity) string { return string(s) },
			location: fmt.Sprint,
			danger:   fmt.Sprint,
			notice:   fmt.Sprint,
			success:  fmt.Sprint,
		}
	}
	return palette{
		severity: highlight,
		location: color.Bold.Render,
		danger:   color.Danger.Render,
		notice:   color.Notice.Render,
		success:  color.Success.Render,
	}
}

// highlight colors a severity label.
func highlight(s core.Severity) string {
	label := " " + string(s) + " "
	switch s {
	case core.SeverityError:
		return errorTheme.Sprint(label)
	case core.SeverityWarning:
		return warningTheme.Sprint(label)
	default:
		return defaultTheme.Sprint(label)
	}
}

// TextReporter writes a human readable report. Each Write is rendered
// immediately.
type TextReporter struct {
	writer  io.WriteCloser
	logger  *zap.Logger
	colors  palette
	baseDir string
	mu      sync.Mutex
}

// NewTextReporter creates a reporter for terminals and logs.
func NewTextReporter(writer io.WriteCloser, opts Options, logger *zap.Logger) *TextReporter {
	return &TextReporter{
		writer:  writer,
		logger:  logger.Named("text_reporter"),
		colors:  newPalette(!opts.NoColor),
		baseDir: opts.BaseDir,
	}
}

// Write renders the findings followed by a summary.
func (r *TextReporter) Write(result *engine.Result) error {
	if result == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	w := bufio.NewWriter(r.writer)
	p := r.colors

	for _, f := range result.Findings {
		loc := fmt.Sprintf("%s:%d:%d", displayPath(r.baseDir, f.File), f.Start.Line, f.Start.Column)
		rule := f.RuleID
		if f.CWE > 0 {
			rule = fmt.Sprintf("%s (CWE-%d)", f.RuleID, f.CWE)
		}
		fmt.Fprintf(w, "%s %s %s\n", p.location(loc), p.severity(f.Severity), rule)
		fmt.Fprintf(w, "    %s\n", f.Message)
		if f.Snippet != "" {
			fmt.Fprintf(w, "  > %s\n", f.Snippet)
		}
		fmt.Fprintln(w)
	}

	for _, fr := range result.Files {
		if fr.Status == engine.StatusFailed {
			fmt.Fprintf(w, "%s %s: %s\n", p.danger("error"), displayPath(r.baseDir, fr.Path), fr.Reason)
		}
	}

	s := result.Stats
	fmt.Fprintln(w, p.notice("Summary:"))
	fmt.Fprintf(w, "  Files    : %d analyzed, %d skipped, %d failed\n", s.FilesAnalyzed, s.FilesSkipped, s.FilesFailed)
	if s.Findings > 0 {
		fmt.Fprintf(w, "  Findings : %s\n", p.danger(s.Findings))
	} else {
		fmt.Fprintf(w, "  Findings : %s\n", p.success(0))
	}
	fmt.Fprintf(w, "  Duration : %s\n", result.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  Scan ID  : %s\n", result.ScanID)

	if err := w.Flush(); err != nil {
		r.logger.Error("Failed to write text report", zap.Error(err))
		return fmt.Errorf("failed to write text report: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (r *TextReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writer.Close(); err != nil {
		return fmt.Errorf("failed to close output writer: %w", err)
	}
	return nil
}
