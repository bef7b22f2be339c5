// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/snitchlint/internal/analysis/core"
	"github.com/xkilldash9x/snitchlint/internal/analysis/static/javascript"
	"github.com/xkilldash9x/snitchlint/internal/analysis/static/javascript/syntax"
	"github.com/xkilldash9x/snitchlint/internal/config"
	"github.com/xkilldash9x/snitchlint/internal/discovery"
)

// FileStatus describes what happened to a single file during a scan.
type FileStatus string

const (
	StatusAnalyzed FileStatus = "analyzed"
	StatusSkipped  FileStatus = "skipped"
	StatusFailed   FileStatus = "failed"
)

// FileResult is the outcome of analyzing one file.
type FileResult struct {
	Path      string         `json:"path" yaml:"path"`
	Status    FileStatus     `json:"status" yaml:"status"`
	Reason    string         `json:"reason,omitempty" yaml:"reason,omitempty"`
	HasErrors bool           `json:"has_syntax_errors,omitempty" yaml:"has_syntax_errors,omitempty"`
	Findings  []core.Finding `json:"-" yaml:"-"`
	Duration  time.Duration  `json:"duration" yaml:"duration"`
}

// Stats summarises a scan.
type Stats struct {
	FilesDiscovered int `json:"files_discovered" yaml:"files_discovered"`
	FilesAnalyzed   int `json:"files_analyzed" yaml:"files_analyzed"`
	FilesSkipped    int `json:"files_skipped" yaml:"files_skipped"`
	FilesFailed     int `json:"files_failed" yaml:"files_failed"`
	Findings        int `json:"findings" yaml:"findings"`
}

// Result is the outcome of a whole scan.
type Result struct {
	ScanID     string         `json:"scan_id" yaml:"scan_id"`
	Roots      []string       `json:"roots" yaml:"roots"`
	Rules      []string       `json:"rules" yaml:"rules"`
	StartedAt  time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time      `json:"finished_at" yaml:"finished_at"`
	Stats      Stats          `json:"stats" yaml:"stats"`
	Files      []FileResult   `json:"files" yaml:"files"`
	Findings   []core.Finding `json:"findings" yaml:"findings"`
}

// Duration returns how long the scan took.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// HasFindings reports whether the scan produced at least one finding.
func (r *Result) HasFindings() bool {
	return r != nil && len(r.Findings) > 0
}

// Engine discovers files and runs the registered analyzers over them with a
// bounded pool of workers.
type Engine struct {
	cfg        config.EngineConfig
	discoverer *discovery.Discoverer
	registry   *Registry
	logger     *zap.Logger
}

// New creates an engine. The discoverer and registry are required.
func New(cfg config.EngineConfig, discoverer *discovery.Discoverer, registry *Registry, logger *zap.Logger) (*Engine, error) {
	if discoverer == nil {
		return nil, errors.New("engine requires a discoverer")
	}
	if registry == nil || registry.Len() == 0 {
		return nil, errors.New("engine requires at least one analyzer")
	}
	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:        cfg,
		discoverer: discoverer,
		registry:   registry,
		logger:     logger.Named("engine"),
	}, nil
}

// NewFromConfig wires discovery and the rule analyzers from cfg. only
// restricts the run to the named rules.
func NewFromConfig(cfg *config.Config, only []string, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	disc, err := discovery.New(cfg.Discovery, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure discovery: %w", err)
	}
	analyzers, err := BuildAnalyzers(cfg, only, logger)
	if err != nil {
		return nil, err
	}
	return New(cfg.Engine, disc, NewRegistry(logger, analyzers...), logger)
}

// Registry returns the analyzers the engine runs.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Rules returns the rules behind the registered taint analyzers, in run order.
func (e *Engine) Rules() []javascript.Rule {
	var rules []javascript.Rule
	for _, a := range e.registry.Analyzers() {
		if ta, ok := a.(*javascript.TaintAnalyzer); ok {
			rules = append(rules, ta.Rule())
		}
	}
	return rules
}

// Discoverer returns the discoverer the engine expands roots with.
func (e *Engine) Discoverer() *discovery.Discoverer {
	return e.discoverer
}

// Scan discovers every file under roots and analyzes them concurrently.
// Per-file problems (oversized files, timeouts, analyzer errors) are recorded
// in the result and do not abort the scan. Cancelling ctx aborts the scan and
// returns ctx.Err().
func (e *Engine) Scan(ctx context.Context, roots []string) (*Result, error) {
	result := &Result{
		ScanID:    uuid.NewString(),
		Roots:     append([]string(nil), roots...),
		StartedAt: time.Now(),
	}
	for _, a := range e.registry.Analyzers() {
		result.Rules = append(result.Rules, a.Name())
	}
	logger := e.logger.With(zap.String("scan_id", result.ScanID))

	paths, err := e.discoverer.Discover(ctx, roots)
	if err != nil {
		return nil, err
	}
	logger.Info("Starting scan",
		zap.Int("files", len(paths)),
		zap.Int("rules", len(result.Rules)),
		zap.Int("workers", e.cfg.WorkerConcurrency),
	)

	files := make([]FileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.WorkerConcurrency)

	for i, path := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			fr := e.AnalyzeFile(gctx, path)
			if fr.Status == StatusFailed && gctx.Err() != nil {
				return gctx.Err()
			}
			files[i] = fr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Files = files
	result.summarize()
	result.Stats.FilesDiscovered = len(paths)
	result.FinishedAt = time.Now()

	logger.Info("Scan complete",
		zap.Int("analyzed", result.Stats.FilesAnalyzed),
		zap.Int("skipped", result.Stats.FilesSkipped),
		zap.Int("failed", result.Stats.FilesFailed),
		zap.Int("findings", result.Stats.Findings),
		zap.Duration("duration", result.Duration()),
	)
	return result, nil
}

// Rescan re-analyzes the changed paths and merges them into prev, returning a
// new result with its own scan ID. Paths that no longer exist are dropped;
// prev is not modified.
func (e *Engine) Rescan(ctx context.Context, prev *Result, changed []string) (*Result, error) {
	result := &Result{
		ScanID:    uuid.NewString(),
		Roots:     append([]string(nil), prev.Roots...),
		Rules:     append([]string(nil), prev.Rules...),
		StartedAt: time.Now(),
	}

	byPath := make(map[string]FileResult, len(prev.Files)+len(changed))
	for _, fr := range prev.Files {
		byPath[fr.Path] = fr
	}
	for _, path := range changed {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			delete(byPath, path)
			continue
		}
		fr := e.AnalyzeFile(ctx, path)
		if fr.Status == StatusFailed && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		byPath[path] = fr
	}

	result.Files = make([]FileResult, 0, len(byPath))
	for _, fr := range byPath {
		result.Files = append(result.Files, fr)
	}
	sort.Slice(result.Files, func(i, j int) bool { return result.Files[i].Path < result.Files[j].Path })
	result.summarize()
	result.Stats.FilesDiscovered = len(result.Files)
	result.FinishedAt = time.Now()

	e.logger.Info("Rescan complete",
		zap.String("scan_id", result.ScanID),
		zap.Int("changed", len(changed)),
		zap.Int("findings", result.Stats.Findings),
	)
	return result, nil
}

// summarize derives the stats and the sorted finding list from Files.
func (r *Result) summarize() {
	r.Stats = Stats{}
	r.Findings = []core.Finding{}
	for _, fr := range r.Files {
		switch fr.Status {
		case StatusAnalyzed:
			r.Stats.FilesAnalyzed++
		case StatusSkipped:
			r.Stats.FilesSkipped++
		case StatusFailed:
			r.Stats.FilesFailed++
		}
		r.Findings = append(r.Findings, fr.Findings...)
	}
	sort.SliceStable(r.Findings, func(i, j int) bool {
		return r.Findings[i].Less(r.Findings[j])
	})
	r.Stats.Findings = len(r.Findings)
}

// AnalyzeFile reads, parses and analyzes a single file under the configured
// file timeout. It never returns an error; failures are reported through the
// Status and Reason of the result.
func (e *Engine) AnalyzeFile(ctx context.Context, path string) FileResult {
	start := time.Now()
	fr := e.analyzeFile(ctx, path)
	fr.Path = path
	fr.Duration = time.Since(start)
	return fr
}

func (e *Engine) analyzeFile(ctx context.Context, path string) FileResult {
	logger := e.logger.With(zap.String("file", path))

	info, err := os.Stat(path)
	if err != nil {
		logger.Warn("Failed to stat file", zap.Error(err))
		return FileResult{Status: StatusFailed, Reason: err.Error()}
	}
	if e.cfg.MaxFileBytes > 0 && info.Size() > e.cfg.MaxFileBytes {
		logger.Debug("Skipping oversized file", zap.Int64("size", info.Size()))
		return FileResult{
			Status: StatusSkipped,
			Reason: fmt.Sprintf("file size %d exceeds limit of %d bytes", info.Size(), e.cfg.MaxFileBytes),
		}
	}

	src, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Failed to read file", zap.Error(err))
		return FileResult{Status: StatusFailed, Reason: err.Error()}
	}

	fileCtx := ctx
	if e.cfg.FileTimeout > 0 {
		var cancel context.CancelFunc
		fileCtx, cancel = context.WithTimeout(ctx, e.cfg.FileTimeout)
		defer cancel()
	}

	tree, err := syntax.Parse(fileCtx, path, src)
	if err != nil {
		return e.failure(ctx, logger, "parse", err)
	}
	if tree.HasErrors {
		logger.Debug("File contains syntax errors, analyzing recoverable parts")
	}

	fc := core.NewFileContext(path, tree, logger)
	findings, err := e.registry.Run(fileCtx, fc)
	if err != nil {
		// The file is marked failed, but the findings of the analyzers that
		// succeeded are kept.
		failed := e.failure(ctx, logger, "analysis", err)
		failed.HasErrors = tree.HasErrors
		failed.Findings = findings
		return failed
	}
	return FileResult{Status: StatusAnalyzed, HasErrors: tree.HasErrors, Findings: findings}
}

// failure classifies err the way the worker pool reports task failures.
func (e *Engine) failure(parent context.Context, logger *zap.Logger, stage string, err error) FileResult {
	switch {
	case parent.Err() != nil:
		logger.Debug("File processing cancelled", zap.String("stage", stage))
		return FileResult{Status: StatusFailed, Reason: "cancelled"}
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("File processing timed out", zap.String("stage", stage), zap.Duration("timeout", e.cfg.FileTimeout))
		return FileResult{Status: StatusFailed, Reason: fmt.Sprintf("timed out after %s", e.cfg.FileTimeout)}
	default:
		logger.Error("File processing failed", zap.String("stage", stage), zap.Error(err))
		return FileResult{Status: StatusFailed, Reason: fmt.Sprintf("%s: %v", stage, err)}
	}
}
