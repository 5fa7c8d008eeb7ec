package alloc

import (
	"errors"
	"fmt"

	"mira/interpreter-go/pkg/logger"
	"mira/interpreter-go/pkg/roles"
	"mira/interpreter-go/pkg/runtime"
)

// Allocator is the low-level allocation capability. Implementors report
// native failure either as an error or by returning a null handle.
type Allocator interface {
	Allocate(size uint64) (runtime.HandleValue, error)
	Reallocate(handle runtime.HandleValue, size uint64) (runtime.HandleValue, error)
	Release(handle runtime.HandleValue) error
}

// ErrNoActiveAllocator is wrapped by every InitializationError.
var ErrNoActiveAllocator = errors.New("no active allocator")

// InitializationError is returned when the registry is used before any
// implementor holds the allocator role. Callers must treat it as fatal.
type InitializationError struct {
	Op string
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("%s: %v; tag a declaration with the '%s' role first", e.Op, ErrNoActiveAllocator, roles.Allocator)
}

func (e *InitializationError) Unwrap() error { return ErrNoActiveAllocator }

// AllocatorError is a failed allocation request.
type AllocatorError struct {
	Op     string
	Size   uint64
	Handle uintptr
	Reason string
	Cause  error
}

func (e *AllocatorError) Error() string {
	msg := fmt.Sprintf("%s of %d bytes failed", e.Op, e.Size)
	if e.Op == "release" {
		msg = "release failed"
	}
	if e.Handle != 0 {
		msg += fmt.Sprintf(" (handle 0x%x)", e.Handle)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *AllocatorError) Unwrap() error { return e.Cause }

type liveKey struct {
	owner string
	addr  uintptr
}

type liveBlock struct {
	size      uint64
	allocator Allocator
}

// Registry routes allocation requests to whichever implementor currently
// holds the allocator role. Blocks are reallocated and released by the
// implementor that produced them, so a retag only changes where new
// allocations go.
type Registry struct {
	roles *roles.Registry
	lggr  logger.Logger
	live  map[liveKey]liveBlock
}

func NewRegistry(reg *roles.Registry, lggr logger.Logger) *Registry {
	if lggr == nil {
		lggr = logger.Nop()
	}
	return &Registry{roles: reg, lggr: lggr.Named("alloc"), live: make(map[liveKey]liveBlock)}
}

// Install tags a as the active allocator under name.
func (r *Registry) Install(name string, a Allocator) {
	r.roles.Tag(roles.Allocator, name, a)
}

// Active returns the current implementor and its name.
func (r *Registry) Active(op string) (Allocator, string, error) {
	holder, ok := r.roles.Resolve(roles.Allocator)
	if !ok {
		return nil, "", &InitializationError{Op: op}
	}
	a, ok := holder.Value.(Allocator)
	if !ok || a == nil {
		return nil, "", &InitializationError{Op: op}
	}
	return a, holder.Name, nil
}

// Allocate requests size bytes from the active implementor.
func (r *Registry) Allocate(size uint64) (runtime.HandleValue, error) {
	a, name, err := r.Active("allocate")
	if err != nil {
		return runtime.HandleValue{}, err
	}
	h, err := a.Allocate(size)
	if err == nil && h.IsNull() {
		err = &AllocatorError{Op: "allocate", Size: size, Reason: "native allocator returned null"}
	}
	if err != nil {
		r.lggr.Warnw("Allocation failed", "allocator", name, "size", size, "err", err)
		return runtime.HandleValue{}, asAllocatorError(err, "allocate", size, 0)
	}
	h.Label = name
	r.live[liveKey{name, h.Addr}] = liveBlock{size: size, allocator: a}
	r.lggr.Debugw("Allocated", "allocator", name, "size", size, "handle", h.Addr)
	return h, nil
}

// Reallocate resizes the block behind h. On failure the returned error is
// an *AllocatorError and h stays valid and owned by the caller.
func (r *Registry) Reallocate(h runtime.HandleValue, size uint64) (runtime.HandleValue, error) {
	if _, _, err := r.Active("reallocate"); err != nil {
		return h, err
	}
	key := liveKey{h.Label, h.Addr}
	block, ok := r.live[key]
	if !ok {
		return h, &AllocatorError{Op: "reallocate", Size: size, Handle: h.Addr, Reason: "handle is not live"}
	}
	next, err := block.allocator.Reallocate(h, size)
	if err == nil && next.IsNull() {
		err = &AllocatorError{Op: "reallocate", Size: size, Handle: h.Addr, Reason: "native allocator returned null"}
	}
	if err != nil {
		r.lggr.Warnw("Reallocation failed", "allocator", h.Label, "size", size, "handle", h.Addr, "err", err)
		return h, asAllocatorError(err, "reallocate", size, h.Addr)
	}
	delete(r.live, key)
	next.Label = h.Label
	next.Resource = h.Resource
	r.live[liveKey{next.Label, next.Addr}] = liveBlock{size: size, allocator: block.allocator}
	r.lggr.Debugw("Reallocated", "allocator", h.Label, "size", size, "from", h.Addr, "to", next.Addr)
	return next, nil
}

// Release frees the block behind h. Releasing a handle twice is an error,
// never a second native free.
func (r *Registry) Release(h runtime.HandleValue) error {
	if _, _, err := r.Active("release"); err != nil {
		return err
	}
	key := liveKey{h.Label, h.Addr}
	block, ok := r.live[key]
	if !ok {
		return &AllocatorError{Op: "release", Handle: h.Addr, Reason: "handle is not live"}
	}
	if err := block.allocator.Release(h); err != nil {
		return asAllocatorError(err, "release", 0, h.Addr)
	}
	delete(r.live, key)
	r.lggr.Debugw("Released", "allocator", h.Label, "handle", h.Addr)
	return nil
}

// Live reports the number of outstanding blocks.
func (r *Registry) Live() int { return len(r.live) }

// SizeOf returns the size recorded for a live handle.
func (r *Registry) SizeOf(h runtime.HandleValue) (uint64, bool) {
	block, ok := r.live[liveKey{h.Label, h.Addr}]
	return block.size, ok
}

func asAllocatorError(err error, op string, size uint64, handle uintptr) error {
	var allocErr *AllocatorError
	if errors.As(err, &allocErr) {
		return err
	}
	return &AllocatorError{Op: op, Size: size, Handle: handle, Cause: err}
}
