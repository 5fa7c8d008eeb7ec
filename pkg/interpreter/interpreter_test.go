package interpreter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mira/interpreter-go/pkg/ast"
	"mira/interpreter-go/pkg/logger"
	"mira/interpreter-go/pkg/roles"
	"mira/interpreter-go/pkg/runtime"
)

func newTestInterpreter(t *testing.T, configure ...func(*Options)) (*Interpreter, *bytes.Buffer) {
	t.Helper()
	lggr := logger.Test(t)
	out := &bytes.Buffer{}
	opts := Options{Logger: lggr, Roles: roles.NewRegistry(lggr), Stdout: out}
	for _, fn := range configure {
		fn(&opts)
	}
	interp, err := New(opts)
	require.NoError(t, err)
	return interp, out
}

func runMain(t *testing.T, interp *Interpreter, decls ...ast.Statement) (runtime.Value, error) {
	t.Helper()
	return interp.Run(ast.Mod(decls...))
}

func requireNumber(t *testing.T, val runtime.Value, want float64) {
	t.Helper()
	num, ok := val.(runtime.NumberValue)
	require.Truef(t, ok, "expected number, got %s", runtime.Describe(val))
	assert.Equal(t, want, num.Val)
}

func params(ps ...*ast.FunctionParameter) []*ast.FunctionParameter { return ps }

func TestNewEvaluatesPrelude(t *testing.T) {
	interp, _ := newTestInterpreter(t)

	holder, ok := interp.Roles().Resolve(roles.Allocator)
	require.True(t, ok)
	assert.Equal(t, SystemAllocatorName, holder.Name)
	assert.True(t, interp.Checker().Conforms(SystemAllocatorName, "Allocator"))

	for _, name := range BuiltinNames() {
		assert.Truef(t, interp.GlobalEnvironment().Has(name), "builtin %s", name)
	}
	printer, ok := interp.Roles().Resolve(roles.Print)
	require.True(t, ok)
	assert.Equal(t, "host_print", printer.Name)
}

func TestRunRequiresMain(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	_, err := runMain(t, interp, ast.Fn("helper", nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no main function")
}

func TestArithmeticAndComparison(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	val, err := runMain(t, interp, ast.Fn("main", nil,
		ast.Let("x", ast.Bin("*", ast.Num(6), ast.Num(7))),
		ast.If(ast.Bin(">", ast.ID("x"), ast.Num(40)),
			ast.Block(ast.Ret(ast.Bin("%", ast.ID("x"), ast.Num(5)))),
			ast.Block(ast.Ret(ast.Num(-1))),
		),
	))
	require.NoError(t, err)
	requireNumber(t, val, 2)
}

func TestTextConcatenation(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	val, err := runMain(t, interp, ast.Fn("main", nil,
		ast.Ret(ast.Bin("+", ast.Str("mi"), ast.Str("ra"))),
	))
	require.NoError(t, err)
	assert.Equal(t, runtime.TextValue{Val: "mira"}, val)
}

func TestDivisionByZero(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	_, err := runMain(t, interp, ast.Fn("main", nil,
		ast.Ret(ast.Bin("/", ast.Num(1), ast.Num(0))),
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestUnboundName(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	_, err := runMain(t, interp, ast.Fn("main", nil, ast.Ret(ast.ID("missing"))))
	var unbound *runtime.UnboundNameError
	require.ErrorAs(t, err, &unbound)
	assert.Equal(t, "missing", unbound.Name)
}

func TestModuleLevelReturnRejected(t *testing.T) {
	for name, stmt := range map[string]ast.Statement{
		"bare":     ast.Ret(ast.Num(1)),
		"in block": ast.If(ast.Num(1), ast.Block(ast.Ret(ast.Num(1))), nil),
	} {
		t.Run(name, func(t *testing.T) {
			interp, _ := newTestInterpreter(t)
			err := interp.EvaluateModule(ast.Mod(stmt))
			require.ErrorIs(t, err, ErrReturnOutsideFunction)
			assert.Contains(t, err.Error(), "outside a function")
		})
	}
}

func TestDuplicateDeclarationRejected(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	err := interp.EvaluateModule(ast.Mod(
		ast.Fn("twice", nil),
		ast.Fn("twice", nil),
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "twice")
}

func TestPreludeNamesAreReserved(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	err := interp.EvaluateModule(ast.Mod(ast.Fn("print", nil)))
	require.Error(t, err)
}

func TestCallDepthLimit(t *testing.T) {
	interp, _ := newTestInterpreter(t, func(o *Options) { o.MaxCallDepth = 16 })
	_, err := runMain(t, interp,
		ast.Fn("loop", nil, ast.Ret(ast.Call("loop"))),
		ast.Fn("main", nil, ast.Ret(ast.Call("loop"))),
	)
	var halt *HaltError
	require.ErrorAs(t, err, &halt)
	assert.Contains(t, halt.Message, "call depth exceeded 16")
}

func TestHaltFormatsMessageAndTrace(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	_, err := runMain(t, interp,
		ast.Fn("inner", params(ast.Param("v")), ast.Halt("bad value {} of {}", ast.ID("v"), ast.Str("y"))),
		ast.Fn("main", nil, ast.Call("inner", ast.Num(4))),
	)
	var halt *HaltError
	require.ErrorAs(t, err, &halt)
	assert.Equal(t, "bad value 4 of y", halt.Message)
	assert.Equal(t, []string{"inner", "main"}, halt.Trace)
	assert.Equal(t, "halt: bad value 4 of y (in inner <- main)", halt.Error())

	code, ok := ExitCodeFromError(err)
	require.True(t, ok)
	assert.Equal(t, ExitCodeHalt, code)
}

func TestFormatHaltWithFewerArguments(t *testing.T) {
	assert.Equal(t, "a 1 b {}", formatHalt("a {} b {}", []runtime.Value{runtime.NumberValue{Val: 1}}))
	assert.Equal(t, "plain", formatHalt("plain", nil))
}

func TestCallFunctionFromHost(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	require.NoError(t, interp.EvaluateModule(ast.Mod(
		ast.Fn("add", params(ast.Param("a"), ast.Param("b")), ast.Ret(ast.Bin("+", ast.ID("a"), ast.ID("b")))),
	)))
	fn, err := interp.GlobalEnvironment().Lookup("add")
	require.NoError(t, err)
	val, err := interp.CallFunction(fn, runtime.NumberValue{Val: 2}, runtime.NumberValue{Val: 3})
	require.NoError(t, err)
	requireNumber(t, val, 5)
}

func TestParseAllocatorMode(t *testing.T) {
	mode, err := ParseAllocatorMode("")
	require.NoError(t, err)
	assert.Equal(t, AllocatorPrelude, mode)

	mode, err = ParseAllocatorMode("host")
	require.NoError(t, err)
	assert.Equal(t, AllocatorHost, mode)

	_, err = ParseAllocatorMode("arena")
	require.Error(t, err)
}
