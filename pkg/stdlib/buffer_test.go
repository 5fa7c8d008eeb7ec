package stdlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mira/interpreter-go/pkg/alloc"
	"mira/interpreter-go/pkg/logger"
	"mira/interpreter-go/pkg/native"
	"mira/interpreter-go/pkg/roles"
	"mira/interpreter-go/pkg/runtime"
)

type fixture struct {
	reg  *alloc.Registry
	mem  *Memory
	heap *native.Heap
}

func newFixture(t *testing.T, limit uint64) fixture {
	t.Helper()
	lggr := logger.Test(t)
	heap := native.NewHeap(limit)
	binder := native.NewBinder(native.HostLibrary(heap), native.HostTarget(), lggr)
	na, err := alloc.NewNativeAllocator(binder)
	require.NoError(t, err)
	reg := alloc.NewRegistry(roles.NewRegistry(lggr), lggr)
	reg.Install("SystemAllocator", na)
	mem, err := NewMemory(binder)
	require.NoError(t, err)
	return fixture{reg: reg, mem: mem, heap: heap}
}

func TestBufferAppendGrowsThroughRegistry(t *testing.T) {
	f := newFixture(t, 0)
	buf, err := NewBuffer(f.reg, f.mem, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(minCapacity), buf.Cap())

	require.NoError(t, buf.Append([]byte("hello ")))
	require.NoError(t, buf.Append([]byte("world")))
	assert.Equal(t, uint64(11), buf.Len())
	assert.Equal(t, uint64(16), buf.Cap())

	data, err := buf.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	assert.Equal(t, uint64(16), f.heap.Used())

	require.NoError(t, buf.Free())
	assert.Zero(t, f.heap.Used())
	assert.ErrorIs(t, buf.Free(), ErrBufferReleased)
}

func TestBufferFailedGrowKeepsContents(t *testing.T) {
	f := newFixture(t, 12)
	buf, err := NewBuffer(f.reg, f.mem, 8)
	require.NoError(t, err)
	require.NoError(t, buf.Append([]byte("12345678")))

	err = buf.Append([]byte("9"))
	var allocErr *alloc.AllocatorError
	require.ErrorAs(t, err, &allocErr)
	assert.Equal(t, "reallocate", allocErr.Op)

	data, err := buf.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "12345678", string(data))
	assert.Equal(t, uint64(8), buf.Cap())
}

func TestBufferWithoutAllocatorIsFatal(t *testing.T) {
	reg := alloc.NewRegistry(roles.NewRegistry(nil), nil)
	_, err := NewBuffer(reg, nil, 8)
	require.ErrorIs(t, err, alloc.ErrNoActiveAllocator)
}

func TestBufferDeepCopy(t *testing.T) {
	f := newFixture(t, 0)
	buf, err := NewBuffer(f.reg, f.mem, 8)
	require.NoError(t, err)
	require.NoError(t, buf.Append([]byte("abc")))

	copied, err := runtime.DeepCopy(buf.Handle())
	require.NoError(t, err)
	dup, ok := FromHandle(copied)
	require.True(t, ok)
	assert.NotEqual(t, buf.Handle().Addr, dup.Handle().Addr)

	require.NoError(t, dup.Append([]byte("d")))
	orig, err := buf.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "abc", string(orig))
	clone, err := dup.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(clone))
	assert.Equal(t, 2, f.reg.Live())
}
