package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mira/interpreter-go/pkg/interpreter"
	"mira/interpreter-go/pkg/native"
)

const cliToolVersion = "mira 0.0.0-dev"

// Process exit codes.
const (
	exitOK           = 0
	exitFailure      = 1
	exitABIViolation = 4
)

// exitError carries a non-default exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(stderr, err)
	return exitCodeFor(err)
}

func exitCodeFor(err error) int {
	var coded *exitError
	if errors.As(err, &coded) {
		return coded.code
	}
	var violation *native.ABIViolation
	if errors.As(err, &violation) {
		return exitABIViolation
	}
	if code, ok := interpreter.ExitCodeFromError(err); ok {
		return code
	}
	return exitFailure
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "mira",
		Short:         "Run and check mira program documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides log.level")
	pf.Uint64Var(&flags.heapLimit, "heap-limit", 0, "Host heap limit in bytes, 0 for unlimited; overrides heap.limit")
	pf.StringVar(&flags.arch, "arch", "", "Native target arch (x86_64, x86, aarch64); overrides target.arch")
	pf.StringVar(&flags.allocator, "allocator", "", "Initial allocator holder (prelude, host, none); overrides run.allocator")

	root.AddCommand(
		newRunCmd(flags),
		newCheckCmd(flags),
		newRolesCmd(flags),
		newVersionCmd(),
	)
	return root
}
