package interpreter

import (
	"errors"
	"fmt"
	"strings"

	"mira/interpreter-go/pkg/runtime"
)

// ErrReturnOutsideFunction rejects a return evaluated at module level.
var ErrReturnOutsideFunction = errors.New("interpreter: return statement outside a function")

type returnSignal struct {
	value runtime.Value
}

func (r returnSignal) Error() string {
	return "return"
}

// ArityError reports a call whose argument count does not fit the
// declared parameters.
type ArityError struct {
	Function string
	Expected int
	Got      int
	Variadic bool
}

func (e *ArityError) Error() string {
	if e.Variadic {
		return fmt.Sprintf("function '%s' expects at least %d arguments, got %d", e.Function, e.Expected, e.Got)
	}
	return fmt.Sprintf("function '%s' expects %d arguments, got %d", e.Function, e.Expected, e.Got)
}

// TypeMismatchError reports a value that does not fit an annotation.
type TypeMismatchError struct {
	Context  string
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Context, e.Expected, e.Actual)
}

// formatHalt substitutes each {} in format with the next argument.
func formatHalt(format string, args []runtime.Value) string {
	var b strings.Builder
	next := 0
	for {
		idx := strings.Index(format, "{}")
		if idx < 0 || next >= len(args) {
			b.WriteString(format)
			break
		}
		b.WriteString(format[:idx])
		b.WriteString(runtime.Describe(args[next]))
		next++
		format = format[idx+2:]
	}
	return b.String()
}
