package native

import (
	"errors"
	"fmt"
)

// ErrBadPointer is raised by the heap for addresses it did not hand out.
var ErrBadPointer = errors.New("pointer not owned by the host heap")

const (
	heapBase  uintptr = 0x1000
	heapAlign uintptr = 16
)

// MaxBlock is the largest single block the heap hands out, limit or not.
// Larger requests fail with the null address.
const MaxBlock uint64 = 1 << 30

// Heap is the host's bounded heap. A limit of 0 means no total limit,
// though blocks are still capped at MaxBlock. An allocation that would
// exceed either returns the null address, which is the failure sentinel
// malloc and realloc report.
type Heap struct {
	limit  uint64
	used   uint64
	next   uintptr
	blocks map[uintptr][]byte
}

func NewHeap(limit uint64) *Heap {
	return &Heap{limit: limit, next: heapBase, blocks: make(map[uintptr][]byte)}
}

// Used reports the number of bytes currently allocated.
func (h *Heap) Used() uint64 { return h.used }

// Live reports the number of live blocks.
func (h *Heap) Live() int { return len(h.blocks) }

func (h *Heap) fits(extra uint64) bool {
	return h.limit == 0 || extra <= h.limit-h.used
}

func (h *Heap) place(block []byte) uintptr {
	addr := h.next
	step := (uintptr(len(block)) + heapAlign - 1) &^ (heapAlign - 1)
	if step == 0 {
		step = heapAlign
	}
	h.next += step
	h.blocks[addr] = block
	h.used += uint64(len(block))
	return addr
}

// Malloc returns a zeroed block of size bytes, or 0 when the limit is hit.
func (h *Heap) Malloc(size uint64) uintptr {
	if size > MaxBlock || !h.fits(size) {
		return 0
	}
	return h.place(make([]byte, size))
}

// Realloc moves the block at addr into a block of size bytes. On failure
// it returns 0 and the original block is untouched.
func (h *Heap) Realloc(addr uintptr, size uint64) uintptr {
	if addr == 0 {
		return h.Malloc(size)
	}
	old, ok := h.blocks[addr]
	if !ok || size > MaxBlock {
		return 0
	}
	if size > uint64(len(old)) && !h.fits(size-uint64(len(old))) {
		return 0
	}
	block := make([]byte, size)
	copy(block, old)
	delete(h.blocks, addr)
	h.used -= uint64(len(old))
	return h.place(block)
}

// Free releases the block at addr. Freeing an unknown address (including
// a second free) is a host fault.
func (h *Heap) Free(addr uintptr) {
	block, ok := h.blocks[addr]
	if !ok {
		panic(fmt.Errorf("free 0x%x: %w", addr, ErrBadPointer))
	}
	delete(h.blocks, addr)
	h.used -= uint64(len(block))
}

// Size returns the block length at addr.
func (h *Heap) Size(addr uintptr) uint64 {
	return uint64(len(h.block(addr, "size")))
}

// Store copies data into the block at addr starting at offset and returns
// the number of bytes written.
func (h *Heap) Store(addr uintptr, offset uint64, data []byte) uint64 {
	block := h.block(addr, "store")
	if offset > uint64(len(block)) || uint64(len(data)) > uint64(len(block))-offset {
		panic(fmt.Errorf("store 0x%x: %d bytes at offset %d exceed block of %d", addr, len(data), offset, len(block)))
	}
	return uint64(copy(block[offset:], data))
}

// Load reads n bytes from the block at addr starting at offset.
func (h *Heap) Load(addr uintptr, offset, n uint64) []byte {
	block := h.block(addr, "load")
	if offset > uint64(len(block)) || n > uint64(len(block))-offset {
		panic(fmt.Errorf("load 0x%x: %d bytes at offset %d exceed block of %d", addr, n, offset, len(block)))
	}
	out := make([]byte, n)
	copy(out, block[offset:])
	return out
}

func (h *Heap) block(addr uintptr, op string) []byte {
	block, ok := h.blocks[addr]
	if !ok {
		panic(fmt.Errorf("%s 0x%x: %w", op, addr, ErrBadPointer))
	}
	return block
}
