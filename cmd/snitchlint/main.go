// File: cmd/snitchlint/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"

	"github.com/xkilldash9x/snitchlint/cmd"
	"github.com/xkilldash9x/snitchlint/internal/observability"
)

const panicLogFile = "snitchlint-panic.log"

// Exit codes. Findings only fail the run with --fail-on-findings.
const (
	exitOK       = 0
	exitFindings = 1
	exitError    = 2
)

// Define function variables for dependency injection/mocking in tests.
var (
	osWriteFile = os.WriteFile
	// Allows mocking os.Exit in tests.
	osExit = os.Exit
)

// main is the entry point of the application.
func main() {
	defer handlePanic()

	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM) for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if code := run(ctx, os.Args[1:]); code != exitOK {
		osExit(code)
	}
}

// run executes the CLI and maps its error to an exit code.
func run(ctx context.Context, args []string) int {
	err := cmd.ExecuteArgs(ctx, args)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, cmd.ErrFindingsPresent):
		return exitFindings
	case errors.Is(err, context.Canceled):
		// Interrupted by the user; cmd.ExecuteArgs already logged it.
		return exitOK
	default:
		return exitError
	}
}

// handlePanic writes the panic and its stack to a log file in the temp
// directory and exits with the error code.
func handlePanic() {
	if r := recover(); r != nil {
		// Ensure logs are flushed before proceeding.
		observability.Sync()

		panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
		path := filepath.Join(os.TempDir(), panicLogFile)

		if err := osWriteFile(path, []byte(panicMessage), 0o644); err != nil {
			// If logging fails, print to stderr as a fallback.
			fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
			fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
			osExit(exitError)
			return // Return facilitates testing when osExit is mocked.
		}

		fmt.Fprintf(os.Stderr, "snitchlint crashed: %v\nDetails logged to %s\n", r, path)
		osExit(exitError)
	}
}
