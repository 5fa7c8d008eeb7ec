package interpreter

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"mira/interpreter-go/pkg/alloc"
	"mira/interpreter-go/pkg/roles"
	"mira/interpreter-go/pkg/runtime"
	"mira/interpreter-go/pkg/stdlib"
)

// Default holders of the callable roles. Programs may retag any of them.
const (
	builtinHostPrint     = "host_print"
	builtinHostDuplicate = "host_duplicate"
	builtinHostClone     = "host_clone"
)

// BuiltinNames lists the names bound before the prelude runs.
func BuiltinNames() []string {
	return []string{
		builtinHostPrint, builtinHostDuplicate, builtinHostClone,
		"print", "clone", "len",
		"allocate", "reallocate", "release",
		"buf_new", "buf_push", "buf_text", "buf_len", "buf_free",
	}
}

func (i *Interpreter) installBuiltins() error {
	builtins := []runtime.NativeFunctionValue{
		{Name: builtinHostPrint, Arity: -1, Impl: i.builtinHostPrint},
		{Name: builtinHostDuplicate, Arity: 1, Impl: func(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
			return runtime.Duplicate(args[0]), nil
		}},
		{Name: builtinHostClone, Arity: 1, Impl: func(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
			return runtime.DeepCopy(args[0])
		}},
		{Name: "print", Arity: -1, Impl: i.forwardRole(roles.Print, "print")},
		{Name: "clone", Arity: 1, Impl: i.forwardRole(roles.Clone, "clone")},
		{Name: "len", Arity: 1, Impl: builtinLen},
		{Name: "allocate", Arity: 1, Impl: i.builtinAllocate},
		{Name: "reallocate", Arity: 2, Impl: i.builtinReallocate},
		{Name: "release", Arity: 1, Impl: i.builtinRelease},
		{Name: "buf_new", Arity: 1, Impl: i.builtinBufNew},
		{Name: "buf_push", Arity: 2, Impl: i.builtinBufPush},
		{Name: "buf_text", Arity: 1, Impl: i.builtinBufText},
		{Name: "buf_len", Arity: 1, Impl: i.builtinBufLen},
		{Name: "buf_free", Arity: 1, Impl: i.builtinBufFree},
	}
	byName := make(map[string]runtime.NativeFunctionValue, len(builtins))
	for _, fn := range builtins {
		if err := i.defineGlobal("builtin", fn.Name, fn); err != nil {
			return err
		}
		byName[fn.Name] = fn
	}
	i.roles.Tag(roles.Print, builtinHostPrint, byName[builtinHostPrint])
	i.roles.Tag(roles.Duplicate, builtinHostDuplicate, byName[builtinHostDuplicate])
	i.roles.Tag(roles.Clone, builtinHostClone, byName[builtinHostClone])
	return nil
}

func (i *Interpreter) builtinHostPrint(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
	parts := make([]string, len(args))
	for idx, arg := range args {
		parts[idx] = runtime.Describe(arg)
	}
	if _, err := fmt.Fprintln(i.stdout, strings.Join(parts, " ")); err != nil {
		return nil, err
	}
	return runtime.VoidValue{}, nil
}

// forwardRole returns a builtin that calls whatever currently holds role.
func (i *Interpreter) forwardRole(role roles.Role, self string) runtime.NativeFunc {
	return func(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
		fn, holder, err := i.roleHolder(role)
		if err != nil {
			return nil, err
		}
		if native, ok := fn.(runtime.NativeFunctionValue); ok && native.Name == self {
			return nil, fmt.Errorf("'%s' role is held by the %s forwarder itself", role, holder)
		}
		bound := make([]argument, len(args))
		for idx, arg := range args {
			bound[idx] = argument{value: arg}
		}
		return i.callValue(fn, nil, bound, holder)
	}
}

func builtinLen(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
	switch v := args[0].(type) {
	case runtime.TextValue:
		return runtime.NumberValue{Val: float64(len(v.Val))}, nil
	case *runtime.SequenceValue:
		return runtime.NumberValue{Val: float64(len(v.Items))}, nil
	case runtime.HandleValue:
		if buf, ok := stdlib.FromHandle(v); ok {
			return runtime.NumberValue{Val: float64(buf.Len())}, nil
		}
	}
	return nil, fmt.Errorf("len: unsupported %s", args[0].Kind())
}

func sizeArg(fn string, val runtime.Value) (uint64, error) {
	num, ok := val.(runtime.NumberValue)
	if !ok || num.Val < 0 || num.Val != math.Trunc(num.Val) {
		return 0, &TypeMismatchError{Context: fn + " size", Expected: "non-negative integer", Actual: runtime.Describe(val)}
	}
	return uint64(num.Val), nil
}

func handleArg(fn string, val runtime.Value) (runtime.HandleValue, error) {
	h, ok := val.(runtime.HandleValue)
	if !ok {
		return runtime.HandleValue{}, &TypeMismatchError{Context: fn, Expected: "handle", Actual: val.Kind().String()}
	}
	return h, nil
}

func (i *Interpreter) builtinAllocate(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
	size, err := sizeArg("allocate", args[0])
	if err != nil {
		return nil, err
	}
	return i.allocs.Allocate(size)
}

// rawHandleArg rejects buffer handles; their storage belongs to the buffer
// and is released through buf_free.
func rawHandleArg(fn string, val runtime.Value) (runtime.HandleValue, error) {
	h, err := handleArg(fn, val)
	if err != nil {
		return h, err
	}
	if _, ok := stdlib.FromHandle(h); ok {
		return h, &TypeMismatchError{Context: fn, Expected: "raw handle (use buf_free for buffers)", Actual: "buffer handle"}
	}
	return h, nil
}

// builtinReallocate returns void when the allocator cannot resize a live
// block. The original handle stays valid in that case.
func (i *Interpreter) builtinReallocate(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
	h, err := rawHandleArg("reallocate", args[0])
	if err != nil {
		return nil, err
	}
	size, err := sizeArg("reallocate", args[1])
	if err != nil {
		return nil, err
	}
	next, err := i.allocs.Reallocate(h, size)
	if err != nil {
		var allocErr *alloc.AllocatorError
		if _, live := i.allocs.SizeOf(h); live && errors.As(err, &allocErr) {
			i.lggr.Warnw("Reallocate returned failure to program", "size", size, "handle", h.Addr, "err", err)
			return runtime.VoidValue{}, nil
		}
		return nil, err
	}
	return next, nil
}

func (i *Interpreter) builtinRelease(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
	h, err := rawHandleArg("release", args[0])
	if err != nil {
		return nil, err
	}
	return runtime.VoidValue{}, i.allocs.Release(h)
}

func (i *Interpreter) bufferArg(fn string, val runtime.Value) (*stdlib.Buffer, error) {
	buf, ok := stdlib.FromHandle(val)
	if !ok {
		return nil, &TypeMismatchError{Context: fn, Expected: "buffer handle", Actual: runtime.Describe(val)}
	}
	return buf, nil
}

func (i *Interpreter) builtinBufNew(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
	capacity, err := sizeArg("buf_new", args[0])
	if err != nil {
		return nil, err
	}
	buf, err := stdlib.NewBuffer(i.allocs, i.memory, capacity)
	if err != nil {
		return nil, err
	}
	return buf.Handle(), nil
}

func (i *Interpreter) builtinBufPush(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
	buf, err := i.bufferArg("buf_push", args[0])
	if err != nil {
		return nil, err
	}
	text, ok := args[1].(runtime.TextValue)
	if !ok {
		return nil, &TypeMismatchError{Context: "buf_push", Expected: "text", Actual: args[1].Kind().String()}
	}
	return runtime.VoidValue{}, buf.Append([]byte(text.Val))
}

func (i *Interpreter) builtinBufText(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
	buf, err := i.bufferArg("buf_text", args[0])
	if err != nil {
		return nil, err
	}
	data, err := buf.Bytes()
	if err != nil {
		return nil, err
	}
	return runtime.TextValue{Val: string(data)}, nil
}

func (i *Interpreter) builtinBufLen(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
	buf, err := i.bufferArg("buf_len", args[0])
	if err != nil {
		return nil, err
	}
	return runtime.NumberValue{Val: float64(buf.Len())}, nil
}

func (i *Interpreter) builtinBufFree(_ *runtime.NativeCallContext, args []runtime.Value) (runtime.Value, error) {
	buf, err := i.bufferArg("buf_free", args[0])
	if err != nil {
		return nil, err
	}
	return runtime.VoidValue{}, buf.Free()
}
