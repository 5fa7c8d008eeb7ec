package typechecker

import (
	"fmt"
	"strings"
)

// ConformanceError rejects an impl whose method table does not equal the
// trait's required set, or a value that is required to satisfy a trait
// without a declared impl.
type ConformanceError struct {
	Trait      string
	Type       string
	Missing    []string
	Extra      []string
	Mismatched []string
	Reason     string
	// Required is set when a value failed a trait requirement rather than
	// an impl failing its declaration check.
	Required bool
}

func (e *ConformanceError) Error() string {
	if e.Required {
		return fmt.Sprintf("typechecker: %s does not implement trait %s: %s", e.Type, e.Trait, e.Reason)
	}
	var parts []string
	for _, name := range e.Missing {
		parts = append(parts, fmt.Sprintf("missing method '%s'", name))
	}
	for _, name := range e.Extra {
		parts = append(parts, fmt.Sprintf("method '%s' is not part of the trait", name))
	}
	parts = append(parts, e.Mismatched...)
	if e.Reason != "" {
		parts = append(parts, e.Reason)
	}
	return fmt.Sprintf("typechecker: impl %s for %s: %s", e.Trait, e.Type, strings.Join(parts, "; "))
}

// DuplicateDeclarationError reports a top-level name declared twice.
type DuplicateDeclarationError struct {
	Kind string
	Name string
}

func (e *DuplicateDeclarationError) Error() string {
	return fmt.Sprintf("typechecker: %s '%s' is already defined", e.Kind, e.Name)
}
