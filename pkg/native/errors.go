package native

import "fmt"

// NativeBindingError rejects an external declaration whose signature does
// not agree with the host symbol.
type NativeBindingError struct {
	Name   string
	Reason string
}

func (e *NativeBindingError) Error() string {
	return fmt.Sprintf("native binding %s: %s", e.Name, e.Reason)
}

// ABIViolation is raised (as a panic) when a call hands a bound function a
// value whose tag does not match the declared kind. It is not recoverable
// by the program.
type ABIViolation struct {
	Function string
	Index    int
	Want     Kind
	Got      string
}

func (e *ABIViolation) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("ABI violation in %s: return value is %s, declared %s", e.Function, e.Got, e.Want)
	}
	return fmt.Sprintf("ABI violation in %s: argument %d is %s, declared %s", e.Function, e.Index, e.Got, e.Want)
}

// HostError wraps a fault raised inside a host symbol.
type HostError struct {
	Function string
	Cause    error
}

func (e *HostError) Error() string {
	return fmt.Sprintf("host call %s failed: %v", e.Function, e.Cause)
}

func (e *HostError) Unwrap() error { return e.Cause }
