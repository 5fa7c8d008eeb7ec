package interpreter

import (
	"mira/interpreter-go/pkg/ast"
	"mira/interpreter-go/pkg/native"
	"mira/interpreter-go/pkg/roles"
	"mira/interpreter-go/pkg/typechecker"
)

// SystemAllocatorName is the prelude struct that forwards to the host heap.
const SystemAllocatorName = "SystemAllocator"

// Prelude is the module evaluated before every program. It declares the
// Allocator trait, the host memory externs and SystemAllocator, tagged as
// the allocator when withAllocator is set.
func Prelude(withAllocator bool) *ast.Module {
	allocator := ast.Struct(SystemAllocatorName, nil)
	if withAllocator {
		allocator = ast.WithRoles(allocator, string(roles.Allocator))
	}
	return ast.NewModule("prelude", []ast.Statement{
		ast.Trait(typechecker.AllocatorTrait,
			ast.TraitFn("allocate", true, ast.Param("size")),
			ast.TraitFn("reallocate", true, ast.Param("handle"), ast.Param("size")),
			ast.TraitFn("release", true, ast.Param("handle")),
		),
		ast.Extern(native.SymMalloc, string(native.Ptr), string(native.Word)),
		ast.Extern(native.SymRealloc, string(native.Ptr), string(native.Ptr), string(native.Word)),
		ast.Extern(native.SymFree, string(native.Void), string(native.Ptr)),
		allocator,
		ast.Impl(typechecker.AllocatorTrait, SystemAllocatorName,
			ast.Method("allocate", []*ast.FunctionParameter{ast.Param("size")},
				ast.Ret(ast.Call(native.SymMalloc, ast.ID("size"))),
			),
			ast.Method("reallocate", []*ast.FunctionParameter{ast.Param("handle"), ast.Param("size")},
				ast.Ret(ast.Call(native.SymRealloc, ast.ID("handle"), ast.ID("size"))),
			),
			ast.Method("release", []*ast.FunctionParameter{ast.Param("handle")},
				ast.Call(native.SymFree, ast.ID("handle")),
			),
		),
	})
}
