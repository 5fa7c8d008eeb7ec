package interpreter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mira/interpreter-go/pkg/ast"
	"mira/interpreter-go/pkg/runtime"
	"mira/interpreter-go/pkg/typechecker"
)

func shapeDecls() []ast.Statement {
	return []ast.Statement{
		ast.Trait("Shape", ast.TraitFn("area", true)),
		ast.Struct("Square", []*ast.StructFieldDefinition{ast.Field("side")},
			ast.Method("area", nil, ast.Ret(ast.Bin("*",
				ast.Member(ast.ID("self"), "side"),
				ast.Member(ast.ID("self"), "side"),
			))),
		),
	}
}

func TestImplConformanceCheckedAtDeclaration(t *testing.T) {
	cases := []struct {
		name  string
		impl  *ast.ImplementationDefinition
		check func(t *testing.T, err *typechecker.ConformanceError)
	}{
		{
			name: "missing method",
			impl: ast.Impl("Shape", "Square"),
			check: func(t *testing.T, err *typechecker.ConformanceError) {
				assert.Equal(t, []string{"area"}, err.Missing)
			},
		},
		{
			name: "extra method",
			impl: ast.Impl("Shape", "Square",
				ast.Method("area", nil, ast.Ret(ast.Num(1))),
				ast.Method("perimeter", nil, ast.Ret(ast.Num(4))),
			),
			check: func(t *testing.T, err *typechecker.ConformanceError) {
				assert.Equal(t, []string{"perimeter"}, err.Extra)
			},
		},
		{
			name: "wrong arity",
			impl: ast.Impl("Shape", "Square",
				ast.Method("area", params(ast.Param("scale")), ast.Ret(ast.Num(1))),
			),
			check: func(t *testing.T, err *typechecker.ConformanceError) {
				require.Len(t, err.Mismatched, 1)
				assert.Contains(t, err.Mismatched[0], "takes 1 parameters")
			},
		},
		{
			name: "missing receiver",
			impl: ast.Impl("Shape", "Square",
				ast.Fn("area", nil, ast.Ret(ast.Num(1))),
			),
			check: func(t *testing.T, err *typechecker.ConformanceError) {
				require.Len(t, err.Mismatched, 1)
				assert.Contains(t, err.Mismatched[0], "must take a receiver")
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			interp, _ := newTestInterpreter(t)
			err := interp.EvaluateModule(ast.Mod(append(shapeDecls(), tc.impl)...))
			var conformance *typechecker.ConformanceError
			require.ErrorAs(t, err, &conformance)
			assert.Equal(t, "Shape", conformance.Trait)
			assert.Equal(t, "Square", conformance.Type)
			tc.check(t, conformance)
			assert.False(t, interp.Checker().Conforms("Square", "Shape"))
		})
	}
}

func TestRejectedImplMethodLeavesTypeNonConforming(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	trait := ast.Trait("Pair", ast.TraitFn("m", true, ast.Param("a"), ast.Param("b")))
	target := ast.Struct("S", nil)
	err := interp.EvaluateModule(ast.Mod(trait, target,
		ast.Impl("Pair", "S", ast.Method("m", params(ast.VariadicParam("a"), ast.Param("b")))),
	))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variadic parameter 'a' must be last")
	assert.False(t, interp.Checker().Conforms("S", "Pair"))

	require.NoError(t, interp.EvaluateModule(ast.Mod(
		ast.Impl("Pair", "S", ast.Method("m", params(ast.Param("a"), ast.Param("b")))),
	)))
	assert.True(t, interp.Checker().Conforms("S", "Pair"))
}

func TestShapeMatchWithoutImplIsNotConformance(t *testing.T) {
	decls := append(shapeDecls(),
		ast.Fn("measure", params(ast.TypedParam("s", "Shape")), ast.Ret(ast.MethodCall(ast.ID("s"), "area"))),
		ast.Fn("measure_any", params(ast.Param("s")), ast.Ret(ast.MethodCall(ast.ID("s"), "area"))),
	)

	interp, _ := newTestInterpreter(t)
	val, err := runMain(t, interp, append(decls,
		ast.Fn("main", nil,
			ast.Let("sq", ast.StructLit("Square", ast.FieldInit("side", ast.Num(3)))),
			ast.Ret(ast.Call("measure_any", ast.ID("sq"))),
		),
	)...)
	require.NoError(t, err)
	requireNumber(t, val, 9)

	interp, _ = newTestInterpreter(t)
	_, err = runMain(t, interp, append(decls,
		ast.Fn("main", nil,
			ast.Let("sq", ast.StructLit("Square", ast.FieldInit("side", ast.Num(3)))),
			ast.Ret(ast.Call("measure", ast.ID("sq"))),
		),
	)...)
	var conformance *typechecker.ConformanceError
	require.ErrorAs(t, err, &conformance)
	assert.True(t, conformance.Required)
	assert.Contains(t, conformance.Error(), "Square does not implement trait Shape")
}

func TestDeclaredImplSatisfiesTraitParameter(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	val, err := runMain(t, interp,
		ast.Trait("Shape", ast.TraitFn("area", true)),
		ast.Struct("Rect", []*ast.StructFieldDefinition{ast.Field("w"), ast.Field("h")}),
		ast.Impl("Shape", "Rect",
			ast.Method("area", nil, ast.Ret(ast.Bin("*",
				ast.Member(ast.ID("self"), "w"),
				ast.Member(ast.ID("self"), "h"),
			))),
		),
		ast.Fn("measure", params(ast.TypedParam("s", "Shape")), ast.Ret(ast.MethodCall(ast.ID("s"), "area"))),
		ast.Fn("main", nil,
			ast.Ret(ast.Call("measure", ast.StructLit("Rect", ast.FieldInit("w", ast.Num(2)), ast.FieldInit("h", ast.Num(5))))),
		),
	)
	require.NoError(t, err)
	requireNumber(t, val, 10)
}

func TestTraitDefaultAndOverride(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	val, err := runMain(t, interp,
		ast.Trait("Greeter",
			ast.TraitFn("name", true),
			ast.TraitDefault("greet", true, nil,
				ast.Ret(ast.Bin("+", ast.Str("hello "), ast.MethodCall(ast.ID("self"), "name"))),
			),
		),
		ast.Struct("A", nil),
		ast.Struct("B", nil),
		ast.Impl("Greeter", "A", ast.Method("name", nil, ast.Ret(ast.Str("a")))),
		ast.Impl("Greeter", "B",
			ast.Method("name", nil, ast.Ret(ast.Str("b"))),
			ast.Method("greet", nil, ast.Ret(ast.Str("custom"))),
		),
		ast.Fn("main", nil,
			ast.Let("a", ast.StructLit("A")),
			ast.Let("b", ast.StructLit("B")),
			ast.Ret(ast.Bin("+", ast.MethodCall(ast.ID("a"), "greet"),
				ast.Bin("+", ast.Str("/"), ast.MethodCall(ast.ID("b"), "greet")))),
		),
	)
	require.NoError(t, err)
	assert.Equal(t, runtime.TextValue{Val: "hello a/custom"}, val)
}

func TestMethodsMutateReceiverStorage(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	val, err := runMain(t, interp,
		ast.Struct("Counter", []*ast.StructFieldDefinition{ast.Field("n")},
			ast.Method("tick", nil, ast.AssignOp(ast.AssignmentAdd, ast.Member(ast.ID("self"), "n"), ast.Num(1))),
			ast.Fn("zero", nil, ast.Ret(ast.StructLit("Counter", ast.FieldInit("n", ast.Num(0))))),
		),
		ast.Fn("main", nil,
			ast.Var("c", ast.MethodCall(ast.ID("Counter"), "zero")),
			ast.MethodCall(ast.ID("c"), "tick"),
			ast.Let("t", ast.Member(ast.ID("c"), "tick")),
			ast.CallExpr(ast.ID("t")),
			ast.Ret(ast.Member(ast.ID("c"), "n")),
		),
	)
	require.NoError(t, err)
	requireNumber(t, val, 2)
}

func TestAmbiguousTraitMethod(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	_, err := runMain(t, interp,
		ast.Trait("Left", ast.TraitFn("side", true)),
		ast.Trait("Right", ast.TraitFn("side", true)),
		ast.Struct("Both", nil),
		ast.Impl("Left", "Both", ast.Method("side", nil, ast.Ret(ast.Str("l")))),
		ast.Impl("Right", "Both", ast.Method("side", nil, ast.Ret(ast.Str("r")))),
		ast.Fn("main", nil, ast.Ret(ast.MethodCall(ast.StructLit("Both"), "side"))),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestStructLiteralRequiresEveryField(t *testing.T) {
	interp, _ := newTestInterpreter(t)
	_, err := runMain(t, interp,
		ast.Struct("Pair", []*ast.StructFieldDefinition{ast.Field("a"), ast.Field("b")}),
		ast.Fn("main", nil, ast.Ret(ast.StructLit("Pair", ast.FieldInit("a", ast.Num(1))))),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing field 'b'")
}
