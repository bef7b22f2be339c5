package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/xkilldash9x/snitchlint/internal/analysis/core"
)

// AnalyzerError records the failure of a single analyzer on a single file.
type AnalyzerError struct {
	Analyzer string
	Err      error
}

func (e *AnalyzerError) Error() string {
	return fmt.Sprintf("analyzer %s: %v", e.Analyzer, e.Err)
}

func (e *AnalyzerError) Unwrap() error {
	return e.Err
}

// Registry runs an ordered set of analyzers against a file.
type Registry struct {
	analyzers []core.Analyzer
	logger    *zap.Logger
}

// NewRegistry creates a registry. Analyzers run in the order given.
func NewRegistry(logger *zap.Logger, analyzers ...core.Analyzer) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		analyzers: analyzers,
		logger:    logger.Named("registry"),
	}
}

// Analyzers returns the registered analyzers in run order.
func (r *Registry) Analyzers() []core.Analyzer {
	return append([]core.Analyzer(nil), r.analyzers...)
}

// Len returns the number of registered analyzers.
func (r *Registry) Len() int {
	return len(r.analyzers)
}

// Run executes every analyzer on file. A failing or panicking analyzer does not
// stop the others: its error is wrapped in an AnalyzerError and joined into the
// returned error, while findings from the remaining analyzers are still
// returned. Cancellation of ctx stops the run and returns ctx.Err().
func (r *Registry) Run(ctx context.Context, file *core.FileContext) ([]core.Finding, error) {
	var findings []core.Finding
	var errs []error

	for _, a := range r.analyzers {
		if err := ctx.Err(); err != nil {
			return findings, err
		}

		found, err := r.runOne(ctx, a, file)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return findings, err
			}
			r.logger.Error("Analyzer failed",
				zap.String("analyzer", a.Name()),
				zap.String("file", file.Path),
				zap.Error(err),
			)
			errs = append(errs, &AnalyzerError{Analyzer: a.Name(), Err: err})
			continue
		}
		findings = append(findings, found...)
	}
	return findings, errors.Join(errs...)
}

func (r *Registry) runOne(ctx context.Context, a core.Analyzer, file *core.FileContext) (findings []core.Finding, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Analyzer panicked",
				zap.String("analyzer", a.Name()),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			findings = nil
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return a.Analyze(ctx, file)
}
