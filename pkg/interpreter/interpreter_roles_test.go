package interpreter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"mira/interpreter-go/pkg/alloc"
	"mira/interpreter-go/pkg/ast"
	"mira/interpreter-go/pkg/logger"
	"mira/interpreter-go/pkg/roles"
	"mira/interpreter-go/pkg/runtime"
)

func countingAllocator() []ast.Statement {
	return []ast.Statement{
		ast.Struct("Counting", []*ast.StructFieldDefinition{ast.Field("count")}),
		ast.Impl("Allocator", "Counting",
			ast.Method("allocate", params(ast.Param("size")),
				ast.AssignOp(ast.AssignmentAdd, ast.Member(ast.ID("self"), "count"), ast.Num(1)),
				ast.Ret(ast.Call("malloc", ast.ID("size"))),
			),
			ast.Method("reallocate", params(ast.Param("handle"), ast.Param("size")),
				ast.Ret(ast.Call("realloc", ast.ID("handle"), ast.ID("size"))),
			),
			ast.Method("release", params(ast.Param("handle")),
				ast.Call("free", ast.ID("handle")),
			),
		),
	}
}

func TestPrintRoutesThroughRoleHolder(t *testing.T) {
	interp, out := newTestInterpreter(t)
	_, err := runMain(t, interp,
		ast.Fn("shout", params(ast.Param("msg")), ast.Call("host_print", ast.Str("!"), ast.ID("msg"))),
		ast.Fn("main", nil,
			ast.Call("print", ast.Str("a"), ast.Num(1)),
			ast.Role("print", "shout"),
			ast.Call("print", ast.Str("hi")),
		),
	)
	require.NoError(t, err)
	assert.Equal(t, "a 1\n! hi\n", out.String())
}

func TestPrintForwarderCannotHoldItsOwnRole(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	_, err := runMain(t, interp,
		ast.Fn("main", nil,
			ast.Role("print", "print"),
			ast.Call("print", ast.Str("loop")),
		),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forwarder itself")
}

func TestDuplicateRoleRetagChangesCopyParameters(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	val, err := runMain(t, interp,
		ast.Fn("always_seven", params(ast.Param("v")), ast.Ret(ast.Num(7))),
		ast.Fn("echo", params(ast.CopyParam("v")), ast.Ret(ast.ID("v"))),
		ast.Fn("main", nil, ast.Ret(ast.Call("echo", ast.Num(1)))),
		ast.Role("duplicate", "always_seven"),
	)
	require.NoError(t, err)
	requireNumber(t, val, 7)
}

func TestCloneDeepCopiesReferences(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	val, err := runMain(t, interp,
		ast.Fn("main", nil,
			ast.Var("a", ast.Num(1)),
			ast.Let("r", ast.Ref(ast.ID("a"))),
			ast.Let("c", ast.Call("clone", ast.ID("r"))),
			ast.Assign(ast.Deref(ast.ID("c")), ast.Num(50)),
			ast.Ret(ast.Bin("+", ast.ID("a"), ast.Deref(ast.ID("c")))),
		),
	)
	require.NoError(t, err)
	requireNumber(t, val, 51)
}

func TestUnknownRoleRejected(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	err := interp.EvaluateModule(ast.Mod(
		ast.Fn("f", nil),
		ast.Role("logger", "f"),
	))
	var unknown *roles.UnknownRoleError
	require.ErrorAs(t, err, &unknown)
}

func TestRetagAllocatorToScriptStruct(t *testing.T) {
	lggr, logs := logger.TestObserved(t, zapcore.InfoLevel)
	interp, _ := newTestInterpreter(t, func(o *Options) {
		o.Logger = lggr
		o.Roles = roles.NewRegistry(lggr)
	})
	before, err := interp.Allocators().Allocate(16)
	require.NoError(t, err)
	assert.Equal(t, SystemAllocatorName, before.Label)

	val, err := runMain(t, interp, append(countingAllocator(),
		ast.Fn("main", nil,
			ast.Var("c", ast.StructLit("Counting", ast.FieldInit("count", ast.Num(0)))),
			ast.Role("allocator", "c"),
			ast.Let("h", ast.Call("allocate", ast.Num(8))),
			ast.Let("g", ast.Call("allocate", ast.Num(8))),
			ast.Call("release", ast.ID("h")),
			ast.Call("release", ast.ID("g")),
			ast.Ret(ast.Member(ast.ID("c"), "count")),
		),
	)...)
	require.NoError(t, err)
	requireNumber(t, val, 2)

	holder, ok := interp.Roles().Resolve(roles.Allocator)
	require.True(t, ok)
	assert.Equal(t, "c", holder.Name)

	retags := logs.FilterMessage("Role retagged").All()
	require.NotEmpty(t, retags)
	assert.Equal(t, "c", retags[len(retags)-1].ContextMap()["to"])

	// blocks allocated before the retag go back to the allocator that made them
	require.NoError(t, interp.Allocators().Release(before))
	assert.Equal(t, 0, interp.Allocators().Live())
	assert.Equal(t, 0, interp.Heap().Live())
}

func TestAllocatorRoleRequiresImpl(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	err := interp.EvaluateModule(ast.Mod(
		ast.WithRoles(ast.Struct("Fake", nil,
			ast.Method("allocate", params(ast.Param("size")), ast.Ret(ast.Call("malloc", ast.ID("size")))),
			ast.Method("reallocate", params(ast.Param("handle"), ast.Param("size")), ast.Ret(ast.Call("realloc", ast.ID("handle"), ast.ID("size")))),
			ast.Method("release", params(ast.Param("handle")), ast.Call("free", ast.ID("handle"))),
		), "allocator"),
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not implement trait Allocator")

	holder, ok := interp.Roles().Resolve(roles.Allocator)
	require.True(t, ok)
	assert.Equal(t, SystemAllocatorName, holder.Name)
}

func TestAllocatorNoneHaltsOnFirstAllocation(t *testing.T) {
	interp, _ := newTestInterpreter(t, func(o *Options) { o.Allocator = AllocatorNone })
	_, err := runMain(t, interp,
		ast.Fn("main", nil, ast.Call("allocate", ast.Num(8))),
	)
	var halt *HaltError
	require.ErrorAs(t, err, &halt)
	assert.ErrorIs(t, err, alloc.ErrNoActiveAllocator)
	assert.Equal(t, []string{"main"}, halt.Trace)
}

func TestAllocatorHostMode(t *testing.T) {
	interp, _ := newTestInterpreter(t, func(o *Options) { o.Allocator = AllocatorHost })
	val, err := runMain(t, interp,
		ast.Fn("main", nil, ast.Ret(ast.Call("allocate", ast.Num(8)))),
	)
	require.NoError(t, err)
	h, ok := val.(runtime.HandleValue)
	require.True(t, ok)
	assert.Equal(t, "HostAllocator", h.Label)
	assert.Equal(t, 1, interp.Heap().Live())
}

func TestReallocateFailureKeepsOriginal(t *testing.T) {
	interp, _ := newTestInterpreter(t, func(o *Options) { o.HeapLimit = 64 })
	h, err := interp.Allocators().Allocate(32)
	require.NoError(t, err)

	same, err := interp.Allocators().Reallocate(h, 1024)
	var allocErr *alloc.AllocatorError
	require.ErrorAs(t, err, &allocErr)
	assert.Equal(t, "reallocate", allocErr.Op)
	assert.Equal(t, h, same)

	size, ok := interp.Allocators().SizeOf(h)
	require.True(t, ok)
	assert.Equal(t, uint64(32), size)
	require.NoError(t, interp.Allocators().Release(h))

	err = interp.Allocators().Release(h)
	require.ErrorAs(t, err, &allocErr)
	assert.Contains(t, allocErr.Reason, "not live")
}

func TestAllocateFailureInScript(t *testing.T) {
	interp, _ := newTestInterpreter(t, func(o *Options) { o.HeapLimit = 16 })
	_, err := runMain(t, interp,
		ast.Fn("main", nil, ast.Call("allocate", ast.Num(1024))),
	)
	var allocErr *alloc.AllocatorError
	require.ErrorAs(t, err, &allocErr)
	assert.Equal(t, uint64(1024), allocErr.Size)
}
