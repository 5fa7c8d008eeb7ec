package alloc

import (
	"fmt"

	"mira/interpreter-go/pkg/native"
	"mira/interpreter-go/pkg/runtime"
)

// NativeAllocator backs the registry with the host's malloc, realloc and
// free symbols.
type NativeAllocator struct {
	malloc  *native.Function
	realloc *native.Function
	free    *native.Function
}

// NewNativeAllocator binds the three host symbols through b.
func NewNativeAllocator(b *native.Binder) (*NativeAllocator, error) {
	bind := func(name string, params []native.Kind, ret native.Kind) (*native.Function, error) {
		fn, err := b.Bind(native.Signature{Name: name, Params: params, Return: ret})
		if err != nil {
			return nil, fmt.Errorf("native allocator: %w", err)
		}
		return fn, nil
	}
	malloc, err := bind(native.SymMalloc, []native.Kind{native.Word}, native.Ptr)
	if err != nil {
		return nil, err
	}
	realloc, err := bind(native.SymRealloc, []native.Kind{native.Ptr, native.Word}, native.Ptr)
	if err != nil {
		return nil, err
	}
	free, err := bind(native.SymFree, []native.Kind{native.Ptr}, native.Void)
	if err != nil {
		return nil, err
	}
	return &NativeAllocator{malloc: malloc, realloc: realloc, free: free}, nil
}

func (a *NativeAllocator) Allocate(size uint64) (runtime.HandleValue, error) {
	out, err := a.malloc.Invoke([]runtime.Value{runtime.NumberValue{Val: float64(size)}})
	if err != nil {
		return runtime.HandleValue{}, err
	}
	return asHandle(out), nil
}

func (a *NativeAllocator) Reallocate(handle runtime.HandleValue, size uint64) (runtime.HandleValue, error) {
	out, err := a.realloc.Invoke([]runtime.Value{runtime.HandleValue{Addr: handle.Addr}, runtime.NumberValue{Val: float64(size)}})
	if err != nil {
		return runtime.HandleValue{}, err
	}
	return asHandle(out), nil
}

func (a *NativeAllocator) Release(handle runtime.HandleValue) error {
	_, err := a.free.Invoke([]runtime.Value{runtime.HandleValue{Addr: handle.Addr}})
	return err
}

func asHandle(v runtime.Value) runtime.HandleValue {
	h, _ := v.(runtime.HandleValue)
	return h
}
