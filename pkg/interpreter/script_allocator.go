package interpreter

import (
	"fmt"

	"mira/interpreter-go/pkg/runtime"
)

// scriptAllocator adapts a struct that implements the Allocator trait to
// the allocator registry. Each request becomes a method call on the
// tagged instance.
type scriptAllocator struct {
	interp   *Interpreter
	name     string
	receiver argument
}

func (a *scriptAllocator) Allocate(size uint64) (runtime.HandleValue, error) {
	out, err := a.interp.callMethod(a.receiver, "allocate", runtime.NumberValue{Val: float64(size)})
	if err != nil {
		return runtime.HandleValue{}, err
	}
	return a.handle("allocate", out)
}

func (a *scriptAllocator) Reallocate(h runtime.HandleValue, size uint64) (runtime.HandleValue, error) {
	out, err := a.interp.callMethod(a.receiver, "reallocate", runtime.HandleValue{Addr: h.Addr}, runtime.NumberValue{Val: float64(size)})
	if err != nil {
		return runtime.HandleValue{}, err
	}
	return a.handle("reallocate", out)
}

func (a *scriptAllocator) Release(h runtime.HandleValue) error {
	_, err := a.interp.callMethod(a.receiver, "release", runtime.HandleValue{Addr: h.Addr})
	return err
}

func (a *scriptAllocator) handle(op string, out runtime.Value) (runtime.HandleValue, error) {
	h, ok := out.(runtime.HandleValue)
	if !ok {
		return runtime.HandleValue{}, fmt.Errorf("allocator %s: %s returned %s, expected handle", a.name, op, out.Kind())
	}
	return runtime.HandleValue{Addr: h.Addr}, nil
}
