package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mira/interpreter-go/pkg/ast"
	"mira/interpreter-go/pkg/driver"
	"mira/interpreter-go/pkg/interpreter"
	"mira/interpreter-go/pkg/native"
	"mira/interpreter-go/pkg/roles"
	"mira/interpreter-go/pkg/typechecker"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run [entry.yml]",
		Short: "Run a program document",
		Long: `Runs the entry document's main function. Without an argument the entry
comes from the nearest mira.yml or mira.toml.

Exit codes: 0 success, 1 error, 3 halted, 4 ABI violation.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolveSettings(cmd, flags, args)
			if err != nil {
				return err
			}
			lggr, err := s.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = lggr.Sync() }()

			program, err := driver.LoadProgram(s.entry)
			if err != nil {
				return err
			}
			interp, err := s.newInterpreter(lggr, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			lggr.Debugw("Running program", "name", program.Name, "allocator", s.allocator, "arch", s.target.Arch)
			if err := runModule(interp, program.Module); err != nil {
				lggr.Errorw("Program failed", "err", err)
				return err
			}
			return nil
		},
	}
}

// runModule runs module, turning an ABI violation panic into an error.
// Other panics propagate.
func runModule(interp *interpreter.Interpreter, module *ast.Module) (err error) {
	defer func() {
		if r := recover(); r != nil {
			violation, ok := r.(*native.ABIViolation)
			if !ok {
				panic(r)
			}
			err = violation
		}
	}()
	_, err = interp.Run(module)
	return err
}

func newCheckCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check [entry.yml]",
		Short: "Statically check a program document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolveSettings(cmd, flags, args)
			if err != nil {
				return err
			}
			lggr, err := s.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = lggr.Sync() }()

			program, err := driver.LoadProgram(s.entry)
			if err != nil {
				return err
			}
			binder := native.NewBinder(native.HostLibrary(native.NewHeap(s.heapLimit)), s.target, lggr)
			pc := typechecker.NewProgramChecker(lggr, binder)
			pc.DeclareBuiltins(interpreter.BuiltinNames()...)
			result, err := pc.Check(interpreter.Prelude(s.allocator == interpreter.AllocatorPrelude), program.Module)
			if err != nil {
				return err
			}
			return reportDiagnostics(cmd.ErrOrStderr(), cmd.OutOrStdout(), program.Origins, result.Diagnostics)
		},
	}
}

// reportDiagnostics prints diags; nodes without an origin come from the
// prelude.
func reportDiagnostics(stderr, stdout io.Writer, origins ast.Origins, diags []typechecker.Diagnostic) error {
	for _, diag := range diags {
		path, ok := origins.Lookup(diag.Node)
		if !ok {
			path = preludeOrigin
		}
		fmt.Fprintf(stderr, "check: %s\n", typechecker.DescribeDiagnostic(diag, path))
	}
	if typechecker.HasErrors(diags) {
		return &exitError{code: exitFailure, err: fmt.Errorf("check: found %d diagnostic(s)", len(diags))}
	}
	fmt.Fprintln(stdout, "check: ok")
	return nil
}

const preludeOrigin = "<prelude>"

func newRolesCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "roles [entry.yml]",
		Short: "Show which declaration holds each reserved role",
		Long: `Evaluates the entry document's declarations without calling main and
prints the holder of every reserved role, or - when untagged.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolveSettings(cmd, flags, args)
			if err != nil {
				return err
			}
			lggr, err := s.newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = lggr.Sync() }()

			program, err := driver.LoadProgram(s.entry)
			if err != nil {
				return err
			}
			interp, err := s.newInterpreter(lggr, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := interp.EvaluateModule(program.Module); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, role := range roles.Reserved() {
				name := "-"
				if holder, ok := interp.Roles().Resolve(role); ok {
					name = holder.Name
				}
				fmt.Fprintf(out, "%s\t%s\n", role, name)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), cliToolVersion)
		},
	}
}
