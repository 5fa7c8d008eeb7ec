package interpreter

import (
	"errors"
	"fmt"
	"strings"

	"mira/interpreter-go/pkg/alloc"
)

// HaltError terminates the program. It is produced by the halt statement
// and by fatal allocator initialization failures.
type HaltError struct {
	Message string
	// Trace lists the active call frames, innermost first.
	Trace []string
	Cause error
}

func (e *HaltError) Error() string {
	if len(e.Trace) == 0 {
		return "halt: " + e.Message
	}
	return fmt.Sprintf("halt: %s (in %s)", e.Message, strings.Join(e.Trace, " <- "))
}

func (e *HaltError) Unwrap() error { return e.Cause }

// ExitCodeHalt is the process exit code for a halted program.
const ExitCodeHalt = 3

// ExitCodeFromError returns the exit code if err halted the program.
func ExitCodeFromError(err error) (int, bool) {
	var halt *HaltError
	if errors.As(err, &halt) {
		return ExitCodeHalt, true
	}
	return 0, false
}

// fatal turns an allocator initialization failure into a halt; other
// errors pass through.
func (i *Interpreter) fatal(err error) error {
	var initErr *alloc.InitializationError
	if !errors.As(err, &initErr) {
		return err
	}
	var halt *HaltError
	if errors.As(err, &halt) {
		return err
	}
	return &HaltError{Message: initErr.Error(), Trace: i.trace(), Cause: err}
}

func (i *Interpreter) trace() []string {
	values := i.frames.Values()
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.(frame).name)
	}
	return out
}
