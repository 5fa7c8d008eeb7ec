package runtime

import "fmt"

// UnboundNameError reports a lookup or assignment on an undeclared name.
type UnboundNameError struct {
	Name string
}

func (e *UnboundNameError) Error() string {
	return fmt.Sprintf("unbound name '%s'", e.Name)
}

// DuplicateBindingError reports a second definition of a name in one scope.
type DuplicateBindingError struct {
	Name string
}

func (e *DuplicateBindingError) Error() string {
	return fmt.Sprintf("'%s' is already defined in this scope", e.Name)
}

// ImmutableBindingError reports an assignment to a binding declared immutable.
type ImmutableBindingError struct {
	Name string
}

func (e *ImmutableBindingError) Error() string {
	return fmt.Sprintf("cannot assign to immutable binding '%s'", e.Name)
}

// DanglingReferenceError reports access to storage whose scope has returned.
type DanglingReferenceError struct {
	Name string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("reference to '%s' outlived its call frame", e.Name)
}

func (e *DanglingReferenceError) Unwrap() error { return ErrReleased }
