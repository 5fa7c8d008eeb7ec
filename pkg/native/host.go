package native

import (
	"golang.org/x/sys/unix"
)

// Host symbol names provided by HostLibrary.
const (
	SymMalloc   = "malloc"
	SymRealloc  = "realloc"
	SymFree     = "free"
	SymMemStore = "mem_store"
	SymMemLoad  = "mem_load"
	SymMemSize  = "mem_size"
	SymWrite    = "write"
)

// HostLibrary exposes the host heap and file-descriptor output as native
// symbols. Their Go signatures determine the kinds external declarations
// must use:
//
//	malloc(word) -> ptr
//	realloc(ptr, word) -> ptr
//	free(ptr) -> void
//	mem_store(ptr, word, bytes) -> word
//	mem_load(ptr, word, word) -> bytes
//	mem_size(ptr) -> word
//	write(word, bytes) -> word
func HostLibrary(heap *Heap) *Library {
	lib := NewLibrary()
	lib.MustRegister(SymMalloc, func(size uint64) uintptr { return heap.Malloc(size) })
	lib.MustRegister(SymRealloc, func(addr uintptr, size uint64) uintptr { return heap.Realloc(addr, size) })
	lib.MustRegister(SymFree, func(addr uintptr) { heap.Free(addr) })
	lib.MustRegister(SymMemStore, func(addr uintptr, offset uint64, data []byte) uint64 {
		return heap.Store(addr, offset, data)
	})
	lib.MustRegister(SymMemLoad, func(addr uintptr, offset, n uint64) []byte { return heap.Load(addr, offset, n) })
	lib.MustRegister(SymMemSize, func(addr uintptr) uint64 { return heap.Size(addr) })
	lib.MustRegister(SymWrite, hostWrite)
	return lib
}

func hostWrite(fd uint64, data []byte) uint64 {
	n, err := unix.Write(int(fd), data)
	if err != nil {
		panic(err)
	}
	return uint64(n)
}
