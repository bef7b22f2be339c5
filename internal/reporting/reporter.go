// internal/reporting/reporter.go
package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/snitchlint/internal/analysis/static/javascript"
	"github.com/xkilldash9x/snitchlint/internal/engine"
	"github.com/xkilldash9x/snitchlint/internal/observability"
)

// Reporter defines the interface for writing scan results to an output.
type Reporter interface {
	// Write renders a single scan result.
	Write(result *engine.Result) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// Options tune the rendering shared by all formats.
type Options struct {
	ToolVersion string
	// NoColor disables ANSI colors in the text format.
	NoColor bool
	// BaseDir, when set, makes reported paths relative to it.
	BaseDir string
	// Rules describes every rule that ran, used for SARIF rule metadata.
	Rules []javascript.Rule
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// NopCloser wraps w so that closing the reporter leaves w open.
func NopCloser(w io.Writer) io.WriteCloser {
	return &nopWriteCloser{w}
}

// IsStdout reports whether outputPath designates standard output.
func IsStdout(outputPath string) bool {
	return outputPath == "" || outputPath == "-" || outputPath == "stdout"
}

// New creates a new reporter based on the specified format and output path.
// A leading ~ in outputPath is expanded to the home directory.
func New(format, outputPath string, opts Options, logger *zap.Logger) (Reporter, error) {
	if !isKnownFormat(format) {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if IsStdout(outputPath) {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		path, err := homedir.Expand(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve output path %s: %w", outputPath, err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory for %s: %w", path, err)
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
		}
		writer = f
		// Files never get colors.
		opts.NoColor = true
	}
	return NewWithWriter(format, writer, opts, logger)
}

// NewWithWriter creates a reporter that takes ownership of w.
func NewWithWriter(format string, w io.WriteCloser, opts Options, logger *zap.Logger) (Reporter, error) {
	if logger == nil {
		logger = observability.GetLogger()
	}
	switch strings.ToLower(format) {
	case "sarif":
		return NewSARIFReporter(w, opts, logger), nil
	case "json":
		return NewJSONReporter(w, opts, logger), nil
	case "yaml":
		return NewYAMLReporter(w, opts, logger), nil
	case "text":
		return NewTextReporter(w, opts, logger), nil
	case "checkstyle":
		return NewCheckstyleReporter(w, opts, logger), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

func isKnownFormat(format string) bool {
	switch strings.ToLower(format) {
	case "sarif", "json", "yaml", "text", "checkstyle":
		return true
	}
	return false
}

// displayPath makes path relative to base when it lies under it.
func displayPath(base, path string) string {
	if base == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
