// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/snitchlint/internal/config"
	"github.com/xkilldash9x/snitchlint/internal/observability"
)

// ErrFindingsPresent is returned by scan when --fail-on-findings is set and
// the scan reported at least one finding.
var ErrFindingsPresent = errors.New("findings present")

// cliState is shared by the commands of one root command instance.
type cliState struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

// logger returns the global logger once PersistentPreRunE has initialized it.
func (s *cliState) logger() *zap.Logger {
	return observability.GetLogger()
}

// NewRootCommand builds a fresh command tree with its own viper instance.
func NewRootCommand() *cobra.Command {
	state := &cliState{v: viper.New()}
	config.SetDefaults(state.v)

	rootCmd := &cobra.Command{
		Use:   "snitchlint",
		Short: "snitchlint finds untrusted input flowing into dangerous calls in JavaScript and TypeScript.",
		Long: `snitchlint is a static taint checker for JavaScript and TypeScript.

It marks variables assigned from request data and other untrusted sources,
follows them through assignments, concatenation and template literals, and
reports where they are passed to dangerous methods such as query, exec or eval.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := bindAnnotatedFlags(state.v, cmd.Flags()); err != nil {
				return err
			}
			if err := initializeConfig(cmd, state); err != nil {
				return err
			}
			observability.Initialize(state.cfg.Logger, os.Stderr)
			observability.GetLogger().Debug("Starting snitchlint",
				zap.String("version", Version),
				zap.String("config_file", state.v.ConfigFileUsed()),
			)
			return nil
		},
	}
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&state.cfgFile, "config", "c", "", "config file (default is ./snitchlint.yaml, then ~/.config/snitchlint/snitchlint.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error (overrides config/env)")
	flags.String("log-format", "", "log format: console or json (overrides config/env)")
	flags.String("log-file", "", "also write JSON logs to this rotating file (overrides config/env)")
	bindFlag(flags, "log-level", "logger.level")
	bindFlag(flags, "log-format", "logger.format")
	bindFlag(flags, "log-file", "logger.log_file")

	rootCmd.AddCommand(
		newScanCmd(state),
		newWatchCmd(state),
		newRulesCmd(state),
		newHistoryCmd(state),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command tree with args taken from the process. Errors are
// printed to stderr; the caller decides on the exit code.
func Execute(ctx context.Context) error {
	return ExecuteArgs(ctx, os.Args[1:])
}

// ExecuteArgs runs a fresh command tree with args.
func ExecuteArgs(ctx context.Context, args []string) error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(ctx)
	defer observability.Sync()

	switch {
	case err == nil, errors.Is(err, ErrFindingsPresent):
	case errors.Is(err, context.Canceled):
		observability.GetLogger().Warn("Command aborted")
	default:
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

// initializeConfig reads the config file and environment into state.v and
// unmarshals the result into state.cfg.
func initializeConfig(cmd *cobra.Command, state *cliState) error {
	v := state.v
	if state.cfgFile != "" {
		path, err := homedir.Expand(state.cfgFile)
		if err != nil {
			return fmt.Errorf("failed to resolve config path: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "snitchlint"))
		}
		v.SetConfigName("snitchlint")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SNITCHLINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars
	}

	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		return err
	}
	state.cfg = cfg
	return nil
}

// viperKeyAnnotation marks a flag with the config key it overrides.
const viperKeyAnnotation = "snitchlint_viper_key"

// bindFlag records that the named flag overrides key. The binding happens in
// bindAnnotatedFlags, once the command that owns the flag is known, so that
// subcommands sharing a key do not replace each other's bindings.
func bindFlag(flags *pflag.FlagSet, name, key string) {
	if err := flags.SetAnnotation(name, viperKeyAnnotation, []string{key}); err != nil {
		panic(fmt.Sprintf("failed to annotate flag %s: %v", name, err))
	}
}

// bindAnnotatedFlags binds every annotated flag of the running command.
func bindAnnotatedFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		for _, key := range f.Annotations[viperKeyAnnotation] {
			if err := v.BindPFlag(key, f); err != nil {
				errs = append(errs, fmt.Errorf("failed to bind flag --%s to %s: %w", f.Name, key, err))
			}
		}
	})
	return errors.Join(errs...)
}
