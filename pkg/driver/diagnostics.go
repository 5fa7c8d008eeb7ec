package driver

import (
	"fmt"
	"strings"
)

// DiagnosticSeverity captures load diagnostic levels.
type DiagnosticSeverity string

const (
	SeverityError   DiagnosticSeverity = "error"
	SeverityWarning DiagnosticSeverity = "warning"
)

// DiagnosticLocation references a position in a program document.
type DiagnosticLocation struct {
	Path   string
	Line   int
	Column int
}

// LoadDiagnostic represents a structured program-document diagnostic.
type LoadDiagnostic struct {
	Severity DiagnosticSeverity
	Message  string
	Location DiagnosticLocation
}

// LoadDiagnosticError wraps a diagnostic for error handling.
type LoadDiagnosticError struct {
	Diagnostic LoadDiagnostic
}

func (e *LoadDiagnosticError) Error() string {
	return DescribeLoadDiagnostic(e.Diagnostic)
}

// DescribeLoadDiagnostic formats a load diagnostic for CLI output.
func DescribeLoadDiagnostic(diag LoadDiagnostic) string {
	message := strings.TrimSpace(diag.Message)
	prefix := "load: "
	if diag.Severity == SeverityWarning {
		prefix = "warning: load: "
	}
	if location := formatDiagnosticLocation(diag.Location); location != "" {
		return fmt.Sprintf("%s%s %s", prefix, location, message)
	}
	return prefix + message
}

func formatDiagnosticLocation(loc DiagnosticLocation) string {
	path := strings.TrimSpace(loc.Path)
	line := loc.Line
	column := loc.Column
	switch {
	case path != "" && line > 0 && column > 0:
		return fmt.Sprintf("%s:%d:%d", path, line, column)
	case path != "" && line > 0:
		return fmt.Sprintf("%s:%d", path, line)
	case path != "":
		return path
	case line > 0 && column > 0:
		return fmt.Sprintf("line %d, column %d", line, column)
	case line > 0:
		return fmt.Sprintf("line %d", line)
	default:
		return ""
	}
}
