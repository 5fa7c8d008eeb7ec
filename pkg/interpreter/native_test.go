package interpreter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mira/interpreter-go/pkg/alloc"
	"mira/interpreter-go/pkg/ast"
	"mira/interpreter-go/pkg/native"
	"mira/interpreter-go/pkg/runtime"
	"mira/interpreter-go/pkg/stdlib"
)

func TestExternBindingErrorAtDeclaration(t *testing.T) {
	tests := []struct {
		name   string
		extern *ast.ExternFunctionDefinition
	}{
		{"unknown symbol", ast.Extern("not_a_symbol", "word")},
		{"wrong parameter kind", ast.Extern(native.SymMemSize, "word", "bytes")},
		{"wrong return kind", ast.Extern(native.SymMemSize, "ptr", "ptr")},
		{"void parameter", ast.Extern(native.SymMemSize, "word", "void")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interp, _ := newTestInterpreter(t)
			err := interp.EvaluateModule(ast.Mod(tt.extern))
			var bindErr *native.NativeBindingError
			require.ErrorAs(t, err, &bindErr)
			assert.False(t, interp.GlobalEnvironment().Has(tt.extern.ID.Name))
		})
	}
}

func TestExternCallMarshalsKinds(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	val, err := runMain(t, interp,
		ast.Extern(native.SymMemSize, "word", "ptr"),
		ast.Fn("main", nil,
			ast.Let("h", ast.Call("malloc", ast.Num(24))),
			ast.Let("n", ast.Call(native.SymMemSize, ast.ID("h"))),
			ast.Call("free", ast.ID("h")),
			ast.Ret(ast.ID("n")),
		),
	)
	require.NoError(t, err)
	requireNumber(t, val, 24)
	assert.Equal(t, 0, interp.Heap().Live())
}

func abiViolationFrom(fn func()) (violation *native.ABIViolation) {
	defer func() {
		if r := recover(); r != nil {
			violation, _ = r.(*native.ABIViolation)
		}
	}()
	fn()
	return nil
}

func TestExternKindMismatchPanicsWithABIViolation(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	violation := abiViolationFrom(func() {
		_, _ = runMain(t, interp,
			ast.Extern(native.SymMemSize, "word", "ptr"),
			ast.Fn("main", nil, ast.Call(native.SymMemSize, ast.Str("not a pointer"))),
		)
	})
	require.NotNil(t, violation)
	assert.Equal(t, native.SymMemSize, violation.Function)
	assert.Equal(t, 0, violation.Index)
	assert.Equal(t, native.Ptr, violation.Want)
	assert.Equal(t, "text", violation.Got)
	assert.Equal(t, 0, interp.frames.Size())
}

func TestNegativeWordIsABIViolation(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	violation := abiViolationFrom(func() {
		_, _ = runMain(t, interp, ast.Fn("main", nil, ast.Call("malloc", ast.Num(-1))))
	})
	require.NotNil(t, violation)
	assert.Equal(t, native.Word, violation.Want)
}

func TestThirtyTwoBitTargetBoundsWords(t *testing.T) {
	interp, _ := newTestInterpreter(t, func(o *Options) {
		o.Target = native.Target{Arch: native.ArchX86, OS: "linux"}
	})
	violation := abiViolationFrom(func() {
		_, _ = runMain(t, interp, ast.Fn("main", nil, ast.Call("malloc", ast.Num(1<<33))))
	})
	require.NotNil(t, violation)
	assert.Contains(t, violation.Got, "32-bit")
}

func TestBufferBuiltins(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	val, err := runMain(t, interp,
		ast.Fn("main", nil,
			ast.Let("b", ast.Call("buf_new", ast.Num(2))),
			ast.Call("buf_push", ast.ID("b"), ast.Str("hello, ")),
			ast.Call("buf_push", ast.ID("b"), ast.Str("world")),
			ast.Let("text", ast.Call("buf_text", ast.ID("b"))),
			ast.Let("n", ast.Call("buf_len", ast.ID("b"))),
			ast.Call("buf_free", ast.ID("b")),
			ast.Ret(ast.Bin("+", ast.ID("text"), ast.Bin("+", ast.Str(" "), ast.Str("ok")))),
		),
	)
	require.NoError(t, err)
	assert.Equal(t, runtime.TextValue{Val: "hello, world ok"}, val)
	assert.Equal(t, 0, interp.Allocators().Live())
	assert.Equal(t, 0, interp.Heap().Live())
}

func TestCloneOfBufferCopiesBytes(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	val, err := runMain(t, interp,
		ast.Fn("main", nil,
			ast.Let("a", ast.Call("buf_new", ast.Num(8))),
			ast.Call("buf_push", ast.ID("a"), ast.Str("abc")),
			ast.Let("b", ast.Call("clone", ast.ID("a"))),
			ast.Call("buf_push", ast.ID("b"), ast.Str("def")),
			ast.Ret(ast.Bin("+", ast.Call("buf_text", ast.ID("a")), ast.Call("buf_text", ast.ID("b")))),
		),
	)
	require.NoError(t, err)
	assert.Equal(t, runtime.TextValue{Val: "abcabcdef"}, val)
	assert.Equal(t, 2, interp.Allocators().Live())
}

func TestBufferGrowFailureKeepsContents(t *testing.T) {
	interp, _ := newTestInterpreter(t, func(o *Options) { o.HeapLimit = 48 })
	buf, err := stdlib.NewBuffer(interp.Allocators(), interp.memory, 16)
	require.NoError(t, err)
	require.NoError(t, buf.Append([]byte("0123456789")))

	err = buf.Append(make([]byte, 40))
	var allocErr *alloc.AllocatorError
	require.ErrorAs(t, err, &allocErr)

	data, err := buf.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
	assert.Equal(t, uint64(16), buf.Cap())
	require.NoError(t, buf.Free())
	assert.Equal(t, 0, interp.Heap().Live())
}

func TestScriptReallocateFailureKeepsOriginalUsable(t *testing.T) {
	interp, _ := newTestInterpreter(t, func(o *Options) { o.HeapLimit = 64 })
	val, err := runMain(t, interp,
		ast.Extern(native.SymMemStore, "word", "ptr", "word", "bytes"),
		ast.Extern(native.SymMemLoad, "bytes", "ptr", "word", "word"),
		ast.Fn("main", nil,
			ast.Let("h", ast.Call("allocate", ast.Num(32))),
			ast.Let("r", ast.Call("reallocate", ast.ID("h"), ast.Num(1024))),
			ast.Var("status", ast.Str("resized ")),
			ast.If(ast.ID("r"),
				ast.Block(),
				ast.Block(ast.Assign(ast.ID("status"), ast.Str("kept "))),
			),
			ast.Call(native.SymMemStore, ast.ID("h"), ast.Num(0), ast.Str("ok")),
			ast.Let("text", ast.Call(native.SymMemLoad, ast.ID("h"), ast.Num(0), ast.Num(2))),
			ast.Call("release", ast.ID("h")),
			ast.Ret(ast.Bin("+", ast.ID("status"), ast.ID("text"))),
		),
	)
	require.NoError(t, err)
	assert.Equal(t, runtime.TextValue{Val: "kept ok"}, val)
	assert.Equal(t, 0, interp.Allocators().Live())
	assert.Equal(t, 0, interp.Heap().Live())
}

func TestScriptReallocateOfDeadHandleFails(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	_, err := runMain(t, interp,
		ast.Fn("main", nil,
			ast.Let("h", ast.Call("allocate", ast.Num(8))),
			ast.Call("release", ast.ID("h")),
			ast.Call("reallocate", ast.ID("h"), ast.Num(16)),
		),
	)
	var allocErr *alloc.AllocatorError
	require.ErrorAs(t, err, &allocErr)
	assert.Contains(t, allocErr.Reason, "not live")
}

func TestOversizedAllocateIsAllocatorError(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	_, err := runMain(t, interp,
		ast.Fn("main", nil, ast.Call("allocate", ast.Num(1e12))),
	)
	var allocErr *alloc.AllocatorError
	require.ErrorAs(t, err, &allocErr)
	assert.Equal(t, uint64(1e12), allocErr.Size)
	assert.Equal(t, 0, interp.Heap().Live())
}

func TestRawAllocatorBuiltinsRejectBufferHandles(t *testing.T) {
	for _, call := range []*ast.FunctionCall{
		ast.Call("release", ast.ID("b")),
		ast.Call("reallocate", ast.ID("b"), ast.Num(64)),
	} {
		t.Run(call.Callee.(*ast.Identifier).Name, func(t *testing.T) {
			interp, _ := newTestInterpreter(t)
			_, err := runMain(t, interp,
				ast.Fn("main", nil,
					ast.Let("b", ast.Call("buf_new", ast.Num(8))),
					call,
				),
			)
			var mismatch *TypeMismatchError
			require.ErrorAs(t, err, &mismatch)
			assert.Contains(t, mismatch.Expected, "buf_free")
			assert.Equal(t, 1, interp.Allocators().Live())
		})
	}
}
