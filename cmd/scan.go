// File: cmd/scan.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/xkilldash9x/snitchlint/internal/analysis/static/javascript"
	"github.com/xkilldash9x/snitchlint/internal/config"
	"github.com/xkilldash9x/snitchlint/internal/engine"
	"github.com/xkilldash9x/snitchlint/internal/reporting"
	"github.com/xkilldash9x/snitchlint/internal/store"
)

// scanOptions holds the scan flags that have no config key.
type scanOptions struct {
	rules   []string
	exclude []string
}

// newScanCmd creates and configures the `scan` command.
func newScanCmd(state *cliState) *cobra.Command {
	opts := &scanOptions{}
	scanCmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Scans JavaScript and TypeScript files for tainted data reaching dangerous calls",
		Long: `Scans every .js, .jsx, .mjs, .cjs, .ts and .tsx file under the given paths
(the current directory when none are given) and reports each call whose
arguments carry untrusted input into a dangerous method.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := state.logger()
			cfg := applyScanOptions(state.cfg, opts)

			eng, err := engine.NewFromConfig(cfg, opts.rules, logger)
			if err != nil {
				return err
			}

			result, err := eng.Scan(ctx, scanRoots(args))
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Scan aborted")
				}
				return err
			}

			if err := writeReport(cmd.OutOrStdout(), cfg.Report, eng.Rules(), result, logger); err != nil {
				return err
			}
			if cfg.Store.Enabled() {
				if err := persistResult(ctx, cfg.Store, result, logger); err != nil {
					return err
				}
			}
			if cfg.Report.FailOnFindings && result.HasFindings() {
				return ErrFindingsPresent
			}
			return nil
		},
	}

	flags := scanCmd.Flags()
	flags.StringP("format", "f", "", "report format: "+strings.Join(config.SupportedFormats, ", ")+" (overrides config/env)")
	flags.StringP("output", "o", "", "write the report to this file instead of stdout")
	flags.IntP("concurrency", "j", 0, "number of files analyzed in parallel (overrides config/env)")
	flags.Duration("timeout", 0, "per-file analysis timeout (overrides config/env)")
	flags.Bool("no-color", false, "disable colors in the text report")
	flags.Bool("fail-on-findings", false, "exit with a non-zero status when findings are reported")
	flags.Bool("include-hidden", false, "also scan hidden files and directories")
	flags.String("store-dsn", "", "PostgreSQL DSN; when set, the scan is recorded in the history database")
	flags.Bool("changed", false, "only scan files that differ from HEAD in the git work tree")
	flags.StringSliceVar(&opts.rules, "rules", nil, "only run these rule IDs (comma separated)")
	flags.StringSliceVar(&opts.exclude, "exclude", nil, "additional file or directory patterns to exclude")

	bindReportFlags(flags)
	bindFlag(flags, "concurrency", "engine.worker_concurrency")
	bindFlag(flags, "timeout", "engine.file_timeout")
	bindFlag(flags, "include-hidden", "discovery.include_hidden")
	bindFlag(flags, "changed", "discovery.changed_only")
	bindFlag(flags, "store-dsn", "store.dsn")
	bindFlag(flags, "fail-on-findings", "report.fail_on_findings")

	return scanCmd
}

// bindReportFlags binds the report flags shared by scan and watch.
func bindReportFlags(flags *pflag.FlagSet) {
	bindFlag(flags, "format", "report.format")
	bindFlag(flags, "output", "report.output")
	bindFlag(flags, "no-color", "report.no_color")
}

// applyScanOptions returns a copy of cfg with the flag-only options applied.
func applyScanOptions(cfg *config.Config, opts *scanOptions) *config.Config {
	out := *cfg
	out.Discovery.Exclude = append(append([]string(nil), cfg.Discovery.Exclude...), opts.exclude...)
	return &out
}

func scanRoots(args []string) []string {
	if len(args) == 0 {
		return []string{"."}
	}
	return args
}

// writeReport renders one result in the configured format. stdout is used
// when the report has no output file.
func writeReport(stdout io.Writer, rc config.ReportConfig, rules []javascript.Rule, result *engine.Result, logger *zap.Logger) error {
	opts := reporting.Options{
		ToolVersion: Version,
		NoColor:     rc.NoColor,
		Rules:       rules,
	}
	if wd, err := os.Getwd(); err == nil {
		opts.BaseDir = wd
	}

	var (
		reporter reporting.Reporter
		err      error
	)
	if reporting.IsStdout(rc.Output) {
		reporter, err = reporting.NewWithWriter(rc.Format, reporting.NopCloser(stdout), opts, logger)
	} else {
		reporter, err = reporting.New(rc.Format, rc.Output, opts, logger)
	}
	if err != nil {
		return fmt.Errorf("failed to create reporter: %w", err)
	}

	if err := reporter.Write(result); err != nil {
		_ = reporter.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := reporter.Close(); err != nil {
		return fmt.Errorf("failed to finalize report: %w", err)
	}
	if !reporting.IsStdout(rc.Output) {
		logger.Info("Report written", zap.String("path", rc.Output), zap.String("format", rc.Format))
	}
	return nil
}

// persistResult records result in the scan history database.
func persistResult(ctx context.Context, cfg config.StoreConfig, result *engine.Result, logger *zap.Logger) error {
	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open scan history: %w", err)
	}
	defer st.Close()

	if err := st.PersistResult(ctx, result); err != nil {
		return fmt.Errorf("failed to persist scan results: %w", err)
	}
	return nil
}
