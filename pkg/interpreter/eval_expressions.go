package interpreter

import (
	"fmt"
	"math"

	"mira/interpreter-go/pkg/ast"
	"mira/interpreter-go/pkg/runtime"
)

// evaluateExpression evaluates expressions.
func (i *Interpreter) evaluateExpression(node ast.Expression, env *runtime.Environment) (runtime.Value, error) {
	switch n := node.(type) {
	case *ast.NumberLiteral:
		return runtime.NumberValue{Val: n.Value}, nil
	case *ast.StringLiteral:
		return runtime.TextValue{Val: n.Value}, nil
	case *ast.Identifier:
		return env.Lookup(n.Name)
	case *ast.StructLiteral:
		return i.evaluateStructLiteral(n, env)
	case *ast.MemberAccessExpression:
		return i.evaluateMemberAccess(n, env)
	case *ast.IndexExpression:
		loc, _, err := i.resolveLocation(n, env)
		if err != nil {
			return nil, err
		}
		return i.readLocation(loc)
	case *ast.FunctionCall:
		return i.evaluateFunctionCall(n, env)
	case *ast.BinaryExpression:
		return i.evaluateBinaryExpression(n, env)
	case *ast.ReferenceExpression:
		return i.evaluateReference(n, env)
	case *ast.DereferenceExpression:
		loc, _, err := i.resolveLocation(n, env)
		if err != nil {
			return nil, err
		}
		return i.readLocation(loc)
	case *ast.AssignmentExpression:
		return i.evaluateAssignment(n, env)
	case *ast.BlockExpression:
		return i.evaluateBlock(n, env)
	case *ast.IfExpression:
		return i.evaluateIfExpression(n, env)
	case nil:
		return nil, fmt.Errorf("interpreter: nil expression")
	default:
		return nil, fmt.Errorf("interpreter: unsupported expression type: %s", n.NodeType())
	}
}

func (i *Interpreter) readLocation(loc location) (runtime.Value, error) {
	val, err := loc.cell.Get()
	if err != nil {
		return nil, &runtime.DanglingReferenceError{Name: loc.name}
	}
	return val, nil
}

// evaluateStructLiteral builds an instance with every declared field
// initialized. Field values are stored by value.
func (i *Interpreter) evaluateStructLiteral(lit *ast.StructLiteral, env *runtime.Environment) (runtime.Value, error) {
	if lit.StructType == nil {
		return nil, fmt.Errorf("interpreter: struct literal missing type")
	}
	def, ok := i.structs[lit.StructType.Name]
	if !ok {
		return nil, fmt.Errorf("unknown struct '%s'", lit.StructType.Name)
	}
	declared := make(map[string]*ast.StructFieldDefinition, len(def.Node.Fields))
	for _, field := range def.Node.Fields {
		declared[field.Name.Name] = field
	}
	inst := &runtime.StructInstanceValue{Definition: def, Fields: make(map[string]*runtime.Cell, len(declared))}
	for _, init := range lit.Fields {
		name := init.Name.Name
		field, ok := declared[name]
		if !ok {
			return nil, fmt.Errorf("struct %s has no field '%s'", lit.StructType.Name, name)
		}
		if _, dup := inst.Fields[name]; dup {
			return nil, fmt.Errorf("struct %s literal sets field '%s' twice", lit.StructType.Name, name)
		}
		val, err := i.evaluateExpression(init.Value, env)
		if err != nil {
			return nil, err
		}
		if field.TypeName != nil {
			if err := i.checkValueType(fmt.Sprintf("field '%s' of %s", name, lit.StructType.Name), field.TypeName.Name, val); err != nil {
				return nil, err
			}
		}
		inst.Fields[name] = runtime.NewCell(runtime.Duplicate(val))
	}
	for name := range declared {
		if _, ok := inst.Fields[name]; !ok {
			return nil, fmt.Errorf("struct %s literal is missing field '%s'", lit.StructType.Name, name)
		}
	}
	return inst, nil
}

// evaluateMemberAccess reads a field, or binds a method to the receiver's
// storage when no field has that name.
func (i *Interpreter) evaluateMemberAccess(expr *ast.MemberAccessExpression, env *runtime.Environment) (runtime.Value, error) {
	objVal, loc, err := i.valueWithLocation(expr.Object, env)
	if err != nil {
		return nil, err
	}
	name := expr.Member.Name
	switch obj := objVal.(type) {
	case *runtime.StructInstanceValue:
		if cell, ok := obj.Fields[name]; ok {
			val, err := cell.Get()
			if err != nil {
				return nil, &runtime.DanglingReferenceError{Name: loc.name + "." + name}
			}
			return val, nil
		}
		fn, err := i.findMethod(obj.TypeName(), name)
		if err != nil {
			return nil, err
		}
		if !fn.Declaration.HasReceiver {
			return fn, nil
		}
		cell := loc.cell
		if cell == nil {
			cell = runtime.NewCell(obj)
		}
		return runtime.BoundMethodValue{Receiver: cell, Mutable: loc.mutable, Method: fn}, nil
	case *runtime.StructDefinitionValue:
		return i.findMethod(obj.Node.ID.Name, name)
	default:
		return nil, fmt.Errorf("cannot access '%s' on %s", name, objVal.Kind())
	}
}

// evaluateReference takes a reference to a storage location. The reference
// is writable only if the location is.
func (i *Interpreter) evaluateReference(expr *ast.ReferenceExpression, env *runtime.Environment) (runtime.Value, error) {
	loc, ok, err := i.resolveLocation(expr.Target, env)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("cannot take a reference to a temporary")
	}
	if loc.cell.Released() {
		return nil, &runtime.DanglingReferenceError{Name: loc.name}
	}
	return &runtime.ReferenceValue{Name: loc.name, Cell: loc.cell, Mutable: loc.mutable}, nil
}

// evaluateAssignment writes through the target's storage, which is the
// caller's storage when the target is an alias parameter.
func (i *Interpreter) evaluateAssignment(expr *ast.AssignmentExpression, env *runtime.Environment) (runtime.Value, error) {
	if expr.Left == nil {
		return nil, fmt.Errorf("interpreter: assignment missing target")
	}
	loc, ok, err := i.resolveLocation(expr.Left, env)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("interpreter: invalid assignment target %s", expr.Left.NodeType())
	}
	if !loc.mutable {
		return nil, &runtime.ImmutableBindingError{Name: loc.name}
	}
	value, err := i.evaluateExpression(expr.Right, env)
	if err != nil {
		return nil, err
	}
	if op, compound := expr.Operator.BinaryOperator(); compound {
		current, err := i.readLocation(loc)
		if err != nil {
			return nil, err
		}
		value, err = applyBinaryOperator(op, current, value)
		if err != nil {
			return nil, err
		}
	} else if expr.Operator != ast.AssignmentAssign {
		return nil, fmt.Errorf("interpreter: unsupported assignment operator %s", expr.Operator)
	}
	value = runtime.Duplicate(value)
	if err := loc.cell.Set(value); err != nil {
		return nil, &runtime.DanglingReferenceError{Name: loc.name}
	}
	return value, nil
}

func (i *Interpreter) evaluateBinaryExpression(expr *ast.BinaryExpression, env *runtime.Environment) (runtime.Value, error) {
	left, err := i.evaluateExpression(expr.Left, env)
	if err != nil {
		return nil, err
	}
	right, err := i.evaluateExpression(expr.Right, env)
	if err != nil {
		return nil, err
	}
	return applyBinaryOperator(expr.Operator, left, right)
}

func applyBinaryOperator(op string, left, right runtime.Value) (runtime.Value, error) {
	switch op {
	case "==":
		return boolNumber(valuesEqual(left, right)), nil
	case "!=":
		return boolNumber(!valuesEqual(left, right)), nil
	}
	if lt, ok := left.(runtime.TextValue); ok {
		rt, ok := right.(runtime.TextValue)
		if !ok {
			return nil, fmt.Errorf("operator %s: cannot combine text with %s", op, right.Kind())
		}
		switch op {
		case "+":
			return runtime.TextValue{Val: lt.Val + rt.Val}, nil
		case "<":
			return boolNumber(lt.Val < rt.Val), nil
		case "<=":
			return boolNumber(lt.Val <= rt.Val), nil
		case ">":
			return boolNumber(lt.Val > rt.Val), nil
		case ">=":
			return boolNumber(lt.Val >= rt.Val), nil
		}
		return nil, fmt.Errorf("operator %s is not defined for text", op)
	}
	ln, lok := left.(runtime.NumberValue)
	rn, rok := right.(runtime.NumberValue)
	if !lok || !rok {
		return nil, fmt.Errorf("operator %s requires numbers, got %s and %s", op, left.Kind(), right.Kind())
	}
	switch op {
	case "+":
		return runtime.NumberValue{Val: ln.Val + rn.Val}, nil
	case "-":
		return runtime.NumberValue{Val: ln.Val - rn.Val}, nil
	case "*":
		return runtime.NumberValue{Val: ln.Val * rn.Val}, nil
	case "/":
		if rn.Val == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return runtime.NumberValue{Val: ln.Val / rn.Val}, nil
	case "%":
		if rn.Val == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return runtime.NumberValue{Val: math.Mod(ln.Val, rn.Val)}, nil
	case "<":
		return boolNumber(ln.Val < rn.Val), nil
	case "<=":
		return boolNumber(ln.Val <= rn.Val), nil
	case ">":
		return boolNumber(ln.Val > rn.Val), nil
	case ">=":
		return boolNumber(ln.Val >= rn.Val), nil
	default:
		return nil, fmt.Errorf("unsupported operator %s", op)
	}
}

func boolNumber(b bool) runtime.NumberValue {
	if b {
		return runtime.NumberValue{Val: 1}
	}
	return runtime.NumberValue{Val: 0}
}

func valuesEqual(left, right runtime.Value) bool {
	switch l := left.(type) {
	case runtime.NumberValue:
		r, ok := right.(runtime.NumberValue)
		return ok && l.Val == r.Val
	case runtime.TextValue:
		r, ok := right.(runtime.TextValue)
		return ok && l.Val == r.Val
	case runtime.VoidValue:
		_, ok := right.(runtime.VoidValue)
		return ok
	case runtime.HandleValue:
		r, ok := right.(runtime.HandleValue)
		return ok && l.Addr == r.Addr && l.Resource == r.Resource
	case *runtime.ReferenceValue:
		r, ok := right.(*runtime.ReferenceValue)
		return ok && l.Cell == r.Cell
	default:
		return left == right
	}
}

// isTruthy: zero, empty text and void are false.
func isTruthy(val runtime.Value) bool {
	switch v := val.(type) {
	case runtime.NumberValue:
		return v.Val != 0
	case runtime.TextValue:
		return v.Val != ""
	case runtime.VoidValue, nil:
		return false
	default:
		return true
	}
}

func (i *Interpreter) evaluateIfExpression(expr *ast.IfExpression, env *runtime.Environment) (runtime.Value, error) {
	cond, err := i.evaluateExpression(expr.Condition, env)
	if err != nil {
		return nil, err
	}
	if isTruthy(cond) {
		return i.evaluateBlock(expr.Then, env)
	}
	if expr.Else != nil {
		return i.evaluateBlock(expr.Else, env)
	}
	return runtime.VoidValue{}, nil
}
