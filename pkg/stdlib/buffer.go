// Package stdlib holds the standard-library containers. Every byte they
// hold lives in memory obtained from the allocator registry.
package stdlib

import (
	"errors"
	"fmt"

	"mira/interpreter-go/pkg/alloc"
	"mira/interpreter-go/pkg/native"
	"mira/interpreter-go/pkg/runtime"
)

// ErrBufferReleased is returned by operations on a freed buffer.
var ErrBufferReleased = errors.New("buffer released")

const minCapacity = 8

// Memory reads and writes allocator blocks through the host's mem_* symbols.
type Memory struct {
	store *native.Function
	load  *native.Function
}

func NewMemory(b *native.Binder) (*Memory, error) {
	store, err := b.Bind(native.Signature{
		Name:   native.SymMemStore,
		Params: []native.Kind{native.Ptr, native.Word, native.Bytes},
		Return: native.Word,
	})
	if err != nil {
		return nil, err
	}
	load, err := b.Bind(native.Signature{
		Name:   native.SymMemLoad,
		Params: []native.Kind{native.Ptr, native.Word, native.Word},
		Return: native.Bytes,
	})
	if err != nil {
		return nil, err
	}
	return &Memory{store: store, load: load}, nil
}

func (m *Memory) Store(h runtime.HandleValue, offset uint64, data []byte) error {
	_, err := m.store.Invoke([]runtime.Value{
		runtime.HandleValue{Addr: h.Addr},
		runtime.NumberValue{Val: float64(offset)},
		runtime.TextValue{Val: string(data)},
	})
	return err
}

func (m *Memory) Load(h runtime.HandleValue, offset, n uint64) ([]byte, error) {
	out, err := m.load.Invoke([]runtime.Value{
		runtime.HandleValue{Addr: h.Addr},
		runtime.NumberValue{Val: float64(offset)},
		runtime.NumberValue{Val: float64(n)},
	})
	if err != nil {
		return nil, err
	}
	text, _ := out.(runtime.TextValue)
	return []byte(text.Val), nil
}

// Buffer is a growable byte container.
type Buffer struct {
	reg      *alloc.Registry
	mem      *Memory
	handle   runtime.HandleValue
	length   uint64
	capacity uint64
	released bool
}

// NewBuffer allocates a buffer with room for capacity bytes.
func NewBuffer(reg *alloc.Registry, mem *Memory, capacity uint64) (*Buffer, error) {
	if capacity < minCapacity {
		capacity = minCapacity
	}
	h, err := reg.Allocate(capacity)
	if err != nil {
		return nil, err
	}
	b := &Buffer{reg: reg, mem: mem, handle: h, capacity: capacity}
	b.handle.Resource = b
	return b, nil
}

// Handle is the program-visible token for the buffer.
func (b *Buffer) Handle() runtime.HandleValue { return b.handle }

func (b *Buffer) Len() uint64 { return b.length }
func (b *Buffer) Cap() uint64 { return b.capacity }

// Append writes data at the end, growing the block when needed. A failed
// grow leaves the buffer exactly as it was.
func (b *Buffer) Append(data []byte) error {
	if b.released {
		return ErrBufferReleased
	}
	need := b.length + uint64(len(data))
	if need > b.capacity {
		newCap := b.capacity * 2
		for newCap < need {
			newCap *= 2
		}
		grown, err := b.reg.Reallocate(b.handle, newCap)
		if err != nil {
			return fmt.Errorf("buffer grow to %d: %w", newCap, err)
		}
		b.handle = grown
		b.handle.Resource = b
		b.capacity = newCap
	}
	if len(data) == 0 {
		return nil
	}
	if err := b.mem.Store(b.handle, b.length, data); err != nil {
		return err
	}
	b.length = need
	return nil
}

// Bytes copies the buffer contents out.
func (b *Buffer) Bytes() ([]byte, error) {
	if b.released {
		return nil, ErrBufferReleased
	}
	return b.mem.Load(b.handle, 0, b.length)
}

// Free returns the block to the allocator that produced it.
func (b *Buffer) Free() error {
	if b.released {
		return ErrBufferReleased
	}
	if err := b.reg.Release(b.handle); err != nil {
		return err
	}
	b.released = true
	return nil
}

// CloneHandle gives clone semantics to buffer handles: a new block with a
// copy of the bytes.
func (b *Buffer) CloneHandle(runtime.HandleValue) (runtime.HandleValue, error) {
	data, err := b.Bytes()
	if err != nil {
		return runtime.HandleValue{}, err
	}
	dup, err := NewBuffer(b.reg, b.mem, b.capacity)
	if err != nil {
		return runtime.HandleValue{}, err
	}
	if err := dup.Append(data); err != nil {
		return runtime.HandleValue{}, err
	}
	return dup.Handle(), nil
}

// FromHandle recovers the buffer behind a program-visible handle.
func FromHandle(v runtime.Value) (*Buffer, bool) {
	h, ok := v.(runtime.HandleValue)
	if !ok {
		return nil, false
	}
	b, ok := h.Resource.(*Buffer)
	return b, ok
}
