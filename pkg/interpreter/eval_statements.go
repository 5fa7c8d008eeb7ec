package interpreter

import (
	"fmt"

	"mira/interpreter-go/pkg/ast"
	"mira/interpreter-go/pkg/runtime"
)

func (i *Interpreter) evaluateStatement(node ast.Statement, env *runtime.Environment) (runtime.Value, error) {
	switch n := node.(type) {
	case *ast.VariableDeclaration:
		return i.evaluateVariableDeclaration(n, env)
	case *ast.ReturnStatement:
		return i.evaluateReturnStatement(n, env)
	case *ast.HaltStatement:
		return i.evaluateHaltStatement(n, env)
	case *ast.RoleStatement:
		if err := i.tagRole(n.Role, n.Target, env); err != nil {
			return nil, err
		}
		return runtime.VoidValue{}, nil
	case ast.Expression:
		return i.evaluateExpression(n, env)
	case nil:
		return nil, fmt.Errorf("interpreter: nil statement")
	default:
		return nil, fmt.Errorf("interpreter: %s is only allowed at module level", n.NodeType())
	}
}

// evaluateStatements runs body in env and yields the value of the last
// statement.
func (i *Interpreter) evaluateStatements(body []ast.Statement, env *runtime.Environment) (runtime.Value, error) {
	var result runtime.Value = runtime.VoidValue{}
	for _, stmt := range body {
		val, err := i.evaluateStatement(stmt, env)
		if err != nil {
			return nil, err
		}
		result = val
	}
	return result, nil
}

// evaluateBlock runs the block in a child scope that is released when the
// block ends.
func (i *Interpreter) evaluateBlock(block *ast.BlockExpression, env *runtime.Environment) (runtime.Value, error) {
	if block == nil {
		return runtime.VoidValue{}, nil
	}
	scope := env.Extend()
	defer scope.Release()
	return i.evaluateStatements(block.Body, scope)
}

// evaluateVariableDeclaration binds a new name to a copy of the value, so
// two declarations never share storage.
func (i *Interpreter) evaluateVariableDeclaration(decl *ast.VariableDeclaration, env *runtime.Environment) (runtime.Value, error) {
	if decl.Name == nil {
		return nil, fmt.Errorf("interpreter: variable declaration missing name")
	}
	val, err := i.evaluateExpression(decl.Value, env)
	if err != nil {
		return nil, err
	}
	if decl.TypeName != nil {
		if err := i.checkValueType(fmt.Sprintf("variable '%s'", decl.Name.Name), decl.TypeName.Name, val); err != nil {
			return nil, err
		}
	}
	val = runtime.Duplicate(val)
	if err := env.Define(decl.Name.Name, val, decl.Mutable); err != nil {
		return nil, err
	}
	return val, nil
}

func (i *Interpreter) evaluateReturnStatement(stmt *ast.ReturnStatement, env *runtime.Environment) (runtime.Value, error) {
	var val runtime.Value = runtime.VoidValue{}
	if stmt.Argument != nil {
		var err error
		val, err = i.evaluateExpression(stmt.Argument, env)
		if err != nil {
			return nil, err
		}
	}
	return nil, returnSignal{value: val}
}

// evaluateHaltStatement stops the program with a formatted message and the
// current call trace.
func (i *Interpreter) evaluateHaltStatement(stmt *ast.HaltStatement, env *runtime.Environment) (runtime.Value, error) {
	args := make([]runtime.Value, 0, len(stmt.Arguments))
	for _, expr := range stmt.Arguments {
		val, err := i.evaluateExpression(expr, env)
		if err != nil {
			return nil, err
		}
		args = append(args, val)
	}
	return nil, &HaltError{Message: formatHalt(stmt.Format, args), Trace: i.trace()}
}
