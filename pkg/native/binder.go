package native

import (
	"fmt"
	"math"
	"reflect"

	"mira/interpreter-go/pkg/logger"
	"mira/interpreter-go/pkg/runtime"
)

// Library is a table of host symbols. Every symbol is a Go func whose
// parameter and result types spell out its native kinds.
type Library struct {
	symbols map[string]reflect.Value
}

func NewLibrary() *Library {
	return &Library{symbols: make(map[string]reflect.Value)}
}

// Register adds a host symbol. fn must be a func value.
func (l *Library) Register(name string, fn any) error {
	val := reflect.ValueOf(fn)
	if val.Kind() != reflect.Func || val.IsNil() {
		return fmt.Errorf("host symbol %s: expected func, got %T", name, fn)
	}
	l.symbols[name] = val
	return nil
}

// MustRegister is Register for static symbol tables.
func (l *Library) MustRegister(name string, fn any) {
	if err := l.Register(name, fn); err != nil {
		panic(err)
	}
}

func (l *Library) lookup(name string) (reflect.Value, bool) {
	fn, ok := l.symbols[name]
	return fn, ok
}

// Binder checks external declarations against a Library and produces
// callable Functions.
type Binder struct {
	lib    *Library
	target Target
	lggr   logger.Logger
}

func NewBinder(lib *Library, target Target, lggr logger.Logger) *Binder {
	if lggr == nil {
		lggr = logger.Nop()
	}
	return &Binder{lib: lib, target: target, lggr: lggr.Named("native")}
}

// Target reports the architecture the binder marshals for.
func (b *Binder) Target() Target { return b.target }

// Bind validates sig against the host symbol of the same name. Any arity or
// kind disagreement is a NativeBindingError, raised before the function
// can be called.
func (b *Binder) Bind(sig Signature) (*Function, error) {
	fn, ok := b.lib.lookup(sig.Name)
	if !ok {
		return nil, &NativeBindingError{Name: sig.Name, Reason: "no host symbol with this name"}
	}
	fnType := fn.Type()
	if fnType.IsVariadic() {
		return nil, &NativeBindingError{Name: sig.Name, Reason: "variadic host symbols cannot be bound"}
	}
	if fnType.NumIn() != len(sig.Params) {
		return nil, &NativeBindingError{
			Name:   sig.Name,
			Reason: fmt.Sprintf("declared %d parameters, host symbol takes %d", len(sig.Params), fnType.NumIn()),
		}
	}
	for idx, kind := range sig.Params {
		if want := kind.hostType(); want == nil || fnType.In(idx) != want {
			return nil, &NativeBindingError{
				Name:   sig.Name,
				Reason: fmt.Sprintf("parameter %d declared %s, host symbol takes %s", idx, kind, fnType.In(idx)),
			}
		}
	}
	ret := sig.Return
	if ret == "" {
		ret = Void
	}
	switch {
	case ret == Void && fnType.NumOut() != 0:
		return nil, &NativeBindingError{Name: sig.Name, Reason: fmt.Sprintf("declared void, host symbol returns %d values", fnType.NumOut())}
	case ret != Void && fnType.NumOut() != 1:
		return nil, &NativeBindingError{Name: sig.Name, Reason: fmt.Sprintf("declared %s, host symbol returns %d values", ret, fnType.NumOut())}
	case ret != Void && fnType.Out(0) != ret.hostType():
		return nil, &NativeBindingError{Name: sig.Name, Reason: fmt.Sprintf("declared %s, host symbol returns %s", ret, fnType.Out(0))}
	}
	sig.Return = ret
	b.lggr.Debugw("Bound native function", "signature", sig.String())
	return &Function{sig: sig, fn: fn, target: b.target}, nil
}

// Function is a bound external declaration.
type Function struct {
	sig    Signature
	fn     reflect.Value
	target Target
}

// Invoke marshals args, calls the host symbol and converts the result back.
// A value whose tag does not fit its declared kind panics with *ABIViolation.
// Faults inside the host symbol are returned as *HostError.
func (f *Function) Invoke(args []runtime.Value) (result runtime.Value, err error) {
	if len(args) != len(f.sig.Params) {
		panic(&ABIViolation{Function: f.sig.Name, Index: len(args), Want: Void, Got: fmt.Sprintf("%d arguments for %d parameters", len(args), len(f.sig.Params))})
	}
	callArgs := make([]reflect.Value, len(args))
	for idx, kind := range f.sig.Params {
		callArgs[idx] = f.toHost(idx, kind, args[idx])
	}

	var results []reflect.Value
	func() {
		defer func() {
			if r := recover(); r != nil {
				cause, ok := r.(error)
				if !ok {
					cause = fmt.Errorf("%v", r)
				}
				err = &HostError{Function: f.sig.Name, Cause: cause}
			}
		}()
		results = f.fn.Call(callArgs)
	}()
	if err != nil {
		return nil, err
	}
	if f.sig.Return == Void {
		return runtime.VoidValue{}, nil
	}
	return f.fromHost(results[0]), nil
}

func (f *Function) toHost(idx int, kind Kind, arg runtime.Value) reflect.Value {
	violation := func() *ABIViolation {
		got := "<nil>"
		if arg != nil {
			got = arg.Kind().String()
		}
		return &ABIViolation{Function: f.sig.Name, Index: idx, Want: kind, Got: got}
	}
	switch kind {
	case Word:
		num, ok := arg.(runtime.NumberValue)
		if !ok {
			panic(violation())
		}
		word, ok := f.wordOf(num.Val)
		if !ok {
			v := violation()
			v.Got = fmt.Sprintf("number %s outside the %d-bit word range", runtime.Describe(num), f.target.WordBits())
			panic(v)
		}
		return reflect.ValueOf(word)
	case Ptr:
		handle, ok := arg.(runtime.HandleValue)
		if !ok {
			panic(violation())
		}
		return reflect.ValueOf(handle.Addr)
	case Bytes:
		text, ok := arg.(runtime.TextValue)
		if !ok {
			panic(violation())
		}
		return reflect.ValueOf([]byte(text.Val))
	default:
		panic(violation())
	}
}

func (f *Function) wordOf(v float64) (uint64, bool) {
	if math.IsNaN(v) || v < 0 || v != math.Trunc(v) {
		return 0, false
	}
	if v >= math.Exp2(float64(f.target.WordBits())) {
		return 0, false
	}
	return uint64(v), true
}

func (f *Function) fromHost(val reflect.Value) runtime.Value {
	switch f.sig.Return {
	case Word:
		return runtime.NumberValue{Val: float64(val.Uint() & f.target.MaxWord())}
	case Ptr:
		return runtime.HandleValue{Addr: uintptr(val.Uint())}
	case Bytes:
		return runtime.TextValue{Val: string(val.Bytes())}
	default:
		panic(&ABIViolation{Function: f.sig.Name, Index: -1, Want: f.sig.Return, Got: val.Type().String()})
	}
}
